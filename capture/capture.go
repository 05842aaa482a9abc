/*
Copyright © 2025 the GreenGrids authors.
This file is part of GreenGrids.

GreenGrids is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GreenGrids is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GreenGrids.  If not, see <http://www.gnu.org/licenses/>.*/

// Package capture models carbon capture interventions applied to the
// dispersed concentrations of a survey year. A scenario bundles one or
// more interventions; running it against a dataset records, for every
// district that has a dispersion result, the concentration before
// capture, the amount captured, and the concentration that remains.
package capture

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/emission"
)

// Intervention is one capture measure applied across a scenario.
type Intervention interface {
	// Name identifies the intervention in reports and stored
	// results.
	Name() string

	// Fraction returns the share of a district's dispersed CO₂ the
	// intervention removes, for a district of the given area class.
	Fraction(class emission.AreaType) float64
}

// Measure is an Intervention with a fixed capture fraction per area
// class.
type Measure struct {
	// Label is the intervention name.
	Label string

	// ByClass holds per-class capture fractions. Classes not listed
	// use Default.
	ByClass map[emission.AreaType]float64

	// Default is the capture fraction for classes not in ByClass.
	Default float64
}

// Name implements Intervention.
func (m *Measure) Name() string { return m.Label }

// Fraction implements Intervention.
func (m *Measure) Fraction(class emission.AreaType) float64 {
	if f, ok := m.ByClass[class]; ok {
		return f
	}
	return m.Default
}

// The built-in scenario names.
const (
	Baseline         = "baseline"
	TreePlanting     = "tree_planting"
	UrbanGreening    = "urban_greening"
	DirectAirCapture = "direct_air_capture"
	Custom           = "custom"
)

// Scenario is a named set of interventions applied together.
type Scenario struct {
	Name          string
	Interventions []Intervention
}

// TotalFraction returns the combined capture fraction of the scenario's
// interventions for one area class, clamped to [0, 1].
func (s *Scenario) TotalFraction(class emission.AreaType) float64 {
	var f float64
	for _, iv := range s.Interventions {
		f += iv.Fraction(class)
	}
	return math.Min(math.Max(f, 0), 1)
}

// DefaultScenarios returns the built-in scenario catalog. Tree planting
// captures most where plantable land is plentiful, urban greening works
// best downtown, and direct air capture is siting-independent.
func DefaultScenarios() map[string]*Scenario {
	return map[string]*Scenario{
		Baseline: {Name: Baseline},
		TreePlanting: {Name: TreePlanting, Interventions: []Intervention{
			&Measure{
				Label: TreePlanting,
				ByClass: map[emission.AreaType]float64{
					emission.Urban:    0.08,
					emission.Suburban: 0.12,
					emission.Rural:    0.15,
				},
			},
		}},
		UrbanGreening: {Name: UrbanGreening, Interventions: []Intervention{
			&Measure{
				Label: UrbanGreening,
				ByClass: map[emission.AreaType]float64{
					emission.Urban:    0.12,
					emission.Suburban: 0.05,
				},
				Default: 0.02,
			},
		}},
		DirectAirCapture: {Name: DirectAirCapture, Interventions: []Intervention{
			&Measure{Label: DirectAirCapture, Default: 0.2},
		}},
	}
}

// CustomScenario builds a scenario from a map of intervention names to
// capture fractions, as supplied by API callers. The interventions are
// applied in name order.
func CustomScenario(interventions map[string]float64) *Scenario {
	names := make([]string, 0, len(interventions))
	for name := range interventions {
		names = append(names, name)
	}
	sort.Strings(names)
	s := &Scenario{Name: Custom}
	for _, name := range names {
		s.Interventions = append(s.Interventions,
			&Measure{Label: name, Default: interventions[name]})
	}
	return s
}

// ScenarioNames lists the recognized scenario names in sorted order.
func ScenarioNames() []string {
	names := []string{Custom}
	for name := range DefaultScenarios() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScenarioByName returns the named built-in scenario. The name "custom"
// builds a scenario from the provided interventions map instead.
// Unknown names are an error listing the recognized scenarios.
func ScenarioByName(name string, interventions map[string]float64) (*Scenario, error) {
	if name == Custom {
		return CustomScenario(interventions), nil
	}
	s, ok := DefaultScenarios()[name]
	if !ok {
		return nil, fmt.Errorf("greengrids: unknown capture scenario %q (recognized scenarios are %s)",
			name, strings.Join(ScenarioNames(), ", "))
	}
	return s, nil
}

// Run applies a capture scenario to one year of a dataset. For every
// district with a dispersion result it stores the concentration before
// capture, the captured amount, and the remaining concentration.
// Districts without a dispersion result are skipped. It reports the
// number of districts captured, and returns a MissingYearError if the
// year is not present.
//
// A nil classifier uses the built-in district classification.
func Run(ds *greengrids.Dataset, year string, s *Scenario, c *emission.Classifier) (int, error) {
	if c == nil {
		c = emission.NewClassifier()
	}
	yd := ds.Year(year)
	if yd == nil {
		return 0, greengrids.MissingYearError{Year: year}
	}
	var n int
	for _, name := range yd.RegionNames() {
		r := yd.Region(name)
		before, ok := r.AfterDispersion()
		if !ok {
			continue
		}
		captured := round2(before * s.TotalFraction(c.Classify(name)))
		after := round2(before - captured)
		if after < 0 {
			after = 0
		}
		r.SetCapture(before, after, captured)
		n++
	}
	return n, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
