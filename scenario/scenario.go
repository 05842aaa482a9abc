/*
Copyright © 2026 the GreenGrids authors.
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

// Package scenario runs complete what-if workflows over a survey
// dataset: fill in missing emission inventories, disperse the
// resulting concentrations, then apply a capture scenario. Workflows
// can be run singly, compared side by side on isolated dataset copies,
// exported as spreadsheet reports, and recorded in a run history.
package scenario

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/capture"
	"github.com/HMNS19/greengrids/emission"
	"github.com/HMNS19/greengrids/internal/hash"
	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
)

func init() {
	gob.Register(&RunSummary{})
}

// Params configures one workflow run.
type Params struct {
	// Scenario is the capture scenario name.
	Scenario string `json:"scenario_name"`

	// Year selects the survey year to simulate.
	Year string `json:"year"`

	// Steps bounds the dispersion simulation. Values less than one
	// run until convergence or the configured iteration limit.
	Steps int `json:"steps"`

	// WindSpeed and WindDirection describe the prevailing wind.
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection string  `json:"wind_direction"`

	// Seed fixes the emission generator sampling sequence for
	// districts that have no inventory yet.
	Seed int64 `json:"seed"`

	// Interventions supplies the capture fractions for the "custom"
	// scenario. It is ignored for the built-in scenarios.
	Interventions map[string]float64 `json:"interventions,omitempty"`

	// Sim overrides the simulation configuration. Nil uses the
	// defaults.
	Sim *greengrids.SimConfig `json:"sim,omitempty"`
}

// DefaultParams mirrors the service defaults: a 20 step simulation of
// 2025 under a moderate northeasterly wind, with no capture.
func DefaultParams() Params {
	return Params{
		Scenario:      capture.Baseline,
		Year:          "2025",
		Steps:         20,
		WindSpeed:     5,
		WindDirection: "NE",
		Seed:          1,
	}
}

// runKey is the hashable form of Params: interventions flattened to a
// sorted slice so equal configurations always hash equally.
type runKey struct {
	Scenario, Year, Direction string
	Steps                     int
	Speed                     float64
	Seed                      int64
	Interventions             []string
	Sim                       greengrids.SimConfig
}

func (p Params) key() string {
	k := runKey{
		Scenario:  p.Scenario,
		Year:      p.Year,
		Direction: p.WindDirection,
		Steps:     p.Steps,
		Speed:     p.WindSpeed,
		Seed:      p.Seed,
	}
	for name, f := range p.Interventions {
		k.Interventions = append(k.Interventions, fmt.Sprintf("%s=%g", name, f))
	}
	sort.Strings(k.Interventions)
	if p.Sim != nil {
		k.Sim = *p.Sim
	}
	return hash.Key("run", k)
}

// RunSummary reports one completed workflow run.
type RunSummary struct {
	Scenario string `json:"scenario_name"`
	Year     string `json:"year"`
	Params   Params `json:"params"`

	// Generated counts the districts whose emission inventory was
	// filled in; Captured counts the districts the capture scenario
	// was applied to.
	Generated int `json:"generated_districts"`
	Captured  int `json:"captured_districts"`

	// TotalCapture sums the captured concentration over all
	// districts. MeanAfter and MaxAfter summarize the
	// concentrations remaining after capture.
	TotalCapture float64 `json:"total_capture"`
	MeanAfter    float64 `json:"mean_concentration_after"`
	MaxAfter     float64 `json:"max_concentration_after"`

	Results []*capture.Result `json:"results"`
}

// Workflow runs emission generation, dispersion, and capture as one
// unit against a dataset. Completed runs are deduplicated and cached
// by their configuration, in memory and, if CacheDir is set, on disk.
type Workflow struct {
	Dataset    *greengrids.Dataset
	Classifier *emission.Classifier

	// CacheDir, if nonempty, persists run summaries to disk so they
	// survive restarts.
	CacheDir string

	Log logrus.FieldLogger

	cacheOnce sync.Once
	cache     *requestcache.Cache
}

// Workflow run summaries kept in the in-memory cache.
const cachedRuns = 100

// NewWorkflow returns a Workflow over ds using the built-in district
// classification.
func NewWorkflow(ds *greengrids.Dataset) *Workflow {
	return &Workflow{
		Dataset:    ds,
		Classifier: emission.NewClassifier(),
		Log:        logrus.StandardLogger(),
	}
}

// Run executes the workflow for one configuration: resolve the capture
// scenario, fill in missing emission inventories for the year, run the
// dispersion simulation, and apply the scenario. The dataset is
// updated in place and a summary of the run is returned. Repeating a
// configuration returns the cached summary.
func (w *Workflow) Run(ctx context.Context, p Params) (*RunSummary, error) {
	w.cacheOnce.Do(func() {
		if w.CacheDir == "" {
			w.cache = requestcache.NewCache(w.run, runtime.GOMAXPROCS(-1),
				requestcache.Deduplicate(), requestcache.Memory(cachedRuns))
		} else {
			w.cache = requestcache.NewCache(w.run, runtime.GOMAXPROCS(-1),
				requestcache.Deduplicate(), requestcache.Memory(cachedRuns),
				requestcache.Disk(w.CacheDir, requestcache.MarshalGob, requestcache.UnmarshalGob))
		}
	})
	req := w.cache.NewRequest(ctx, p, p.key())
	resultI, err := req.Result()
	if err != nil {
		return nil, err
	}
	return resultI.(*RunSummary), nil
}

func (w *Workflow) run(ctx context.Context, request interface{}) (interface{}, error) {
	p := request.(Params)
	w.Log.WithFields(logrus.Fields{
		"scenario": p.Scenario,
		"year":     p.Year,
		"steps":    p.Steps,
		"seed":     p.Seed,
	}).Info("greengrids running workflow")

	// Resolve the scenario before touching the dataset so an unknown
	// name leaves no partial results behind.
	scen, err := capture.ScenarioByName(p.Scenario, p.Interventions)
	if err != nil {
		return nil, err
	}

	gen := emission.NewGenerator(p.Seed)
	gen.Classifier = w.Classifier
	generated := gen.GenerateYear(w.Dataset, p.Year)

	wind := &greengrids.Wind{Speed: p.WindSpeed, Direction: p.WindDirection}
	if err := greengrids.RunDispersion(w.Dataset, p.Year, p.Steps, wind, p.Sim); err != nil {
		return nil, err
	}

	captured, err := capture.Run(w.Dataset, p.Year, scen, w.Classifier)
	if err != nil {
		return nil, err
	}

	s := &RunSummary{
		Scenario:  p.Scenario,
		Year:      p.Year,
		Params:    p,
		Generated: generated,
		Captured:  captured,
		Results:   capture.Results(w.Dataset, p.Year, scen, w.Classifier),
	}

	yd := w.Dataset.Year(p.Year)
	var after []float64
	var total float64
	for _, name := range yd.RegionNames() {
		if _, a, c, ok := yd.Region(name).Capture(); ok {
			after = append(after, a)
			total += c
		}
	}
	if len(after) > 0 {
		s.TotalCapture = round2(total)
		s.MeanAfter = stats.StatsMean(after)
		s.MaxAfter = stats.StatsMax(after)
	}
	return s, nil
}

// Comparison reports scenario outcomes side by side.
type Comparison struct {
	Year string `json:"year"`

	// Summaries holds one run summary per compared scenario, in
	// input order.
	Summaries []*RunSummary `json:"summaries"`

	// Ranking lists the scenario names by descending total capture.
	Ranking []string `json:"ranking"`
}

// Compare runs each named scenario against an isolated copy of the
// dataset and reports the outcomes side by side. The runs execute
// concurrently and ds itself is never modified. An empty scenario list
// compares the baseline against tree planting.
func Compare(ctx context.Context, ds *greengrids.Dataset, scenarios []string, p Params) (*Comparison, error) {
	if len(scenarios) == 0 {
		scenarios = []string{capture.Baseline, capture.TreePlanting}
	}
	summaries := make([]*RunSummary, len(scenarios))
	errs := make([]error, len(scenarios))
	var wg sync.WaitGroup
	wg.Add(len(scenarios))
	for i, name := range scenarios {
		go func(i int, name string) {
			defer wg.Done()
			pp := p
			pp.Scenario = name
			summaries[i], errs[i] = NewWorkflow(ds.Copy()).Run(ctx, pp)
		}(i, name)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	c := &Comparison{Year: p.Year, Summaries: summaries}
	ranked := make([]*RunSummary, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalCapture > ranked[j].TotalCapture
	})
	for _, s := range ranked {
		c.Ranking = append(c.Ranking, s.Scenario)
	}
	return c, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
