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

package capture

import (
	"errors"
	"strings"
	"testing"

	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/emission"
	"github.com/kr/pretty"
)

func testDataset(year string, names ...string) *greengrids.Dataset {
	yd := greengrids.NewYearData()
	for _, name := range names {
		yd.AddRegion(name, &greengrids.Region{})
	}
	ds := greengrids.NewDataset()
	ds.AddYear(year, yd)
	return ds
}

func TestScenarioByName(t *testing.T) {
	for _, name := range []string{Baseline, TreePlanting, UrbanGreening, DirectAirCapture} {
		s, err := ScenarioByName(name, nil)
		if err != nil {
			t.Fatal(err)
		}
		if s.Name != name {
			t.Errorf("scenario name = %q, want %q", s.Name, name)
		}
	}

	s, err := ScenarioByName(Custom, map[string]float64{"rooftop_gardens": 0.03, "algae_ponds": 0.05})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Interventions) != 2 || s.Interventions[0].Name() != "algae_ponds" {
		t.Errorf("custom interventions out of order: %v", s.Interventions)
	}

	_, err = ScenarioByName("geoengineering", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown scenario")
	}
	if !strings.Contains(err.Error(), TreePlanting) {
		t.Errorf("error does not list known scenarios: %v", err)
	}
}

func TestTotalFraction(t *testing.T) {
	cases := []struct {
		scenario string
		class    emission.AreaType
		want     float64
	}{
		{Baseline, emission.Urban, 0},
		{TreePlanting, emission.Urban, 0.08},
		{TreePlanting, emission.Suburban, 0.12},
		{TreePlanting, emission.Rural, 0.15},
		{UrbanGreening, emission.Urban, 0.12},
		{UrbanGreening, emission.Rural, 0.02},
		{DirectAirCapture, emission.Suburban, 0.2},
	}
	catalog := DefaultScenarios()
	for _, c := range cases {
		if got := catalog[c.scenario].TotalFraction(c.class); got != c.want {
			t.Errorf("%s/%s fraction = %g, want %g", c.scenario, c.class, got, c.want)
		}
	}

	over := CustomScenario(map[string]float64{"a": 0.9, "b": 0.5})
	if got := over.TotalFraction(emission.Urban); got != 1 {
		t.Errorf("overlapping fractions = %g, want clamped to 1", got)
	}
	under := CustomScenario(map[string]float64{"a": -0.5})
	if got := under.TotalFraction(emission.Urban); got != 0 {
		t.Errorf("negative fraction = %g, want clamped to 0", got)
	}
}

func TestRun(t *testing.T) {
	ds := testDataset("2025", "Bengaluru Urban", "Hosakote", "Gubbi", "Kolar")
	yd := ds.Year("2025")
	yd.Region("Bengaluru Urban").SetAfterDispersion(2)
	yd.Region("Hosakote").SetAfterDispersion(1.5)
	yd.Region("Gubbi").SetAfterDispersion(0.6)
	// Kolar has no dispersion result and must be skipped.

	s, err := ScenarioByName(TreePlanting, nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := Run(ds, "2025", s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("captured %d districts, want 3", n)
	}

	cases := []struct {
		district               string
		before, after, capture float64
	}{
		{"Bengaluru Urban", 2, 1.84, 0.16},
		{"Hosakote", 1.5, 1.32, 0.18},
		{"Gubbi", 0.6, 0.51, 0.09},
	}
	for _, c := range cases {
		before, after, captured, ok := yd.Region(c.district).Capture()
		if !ok {
			t.Fatalf("%s: no capture data", c.district)
		}
		if before != c.before || after != c.after || captured != c.capture {
			t.Errorf("%s: got %g, %g, %g, want %g, %g, %g", c.district,
				before, after, captured, c.before, c.after, c.capture)
		}
	}
	if _, _, _, ok := yd.Region("Kolar").Capture(); ok {
		t.Error("captured a district with no dispersion result")
	}
}

func TestRunBaseline(t *testing.T) {
	ds := testDataset("2025", "Gubbi")
	ds.Year("2025").Region("Gubbi").SetAfterDispersion(2)

	n, err := Run(ds, "2025", DefaultScenarios()[Baseline], nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("captured %d districts, want 1", n)
	}
	before, after, captured, ok := ds.Year("2025").Region("Gubbi").Capture()
	if !ok || before != 2 || after != 2 || captured != 0 {
		t.Errorf("baseline capture = %g, %g, %g (ok=%v), want 2, 2, 0", before, after, captured, ok)
	}
}

func TestRunClampsAtFullCapture(t *testing.T) {
	ds := testDataset("2025", "Gubbi")
	ds.Year("2025").Region("Gubbi").SetAfterDispersion(0.8)

	s := CustomScenario(map[string]float64{"everything": 1.5})
	if _, err := Run(ds, "2025", s, nil); err != nil {
		t.Fatal(err)
	}
	before, after, captured, _ := ds.Year("2025").Region("Gubbi").Capture()
	if before != 0.8 || after != 0 || captured != 0.8 {
		t.Errorf("got %g, %g, %g, want 0.8, 0, 0.8", before, after, captured)
	}
}

func TestRunMissingYear(t *testing.T) {
	ds := testDataset("2025", "Gubbi")
	_, err := Run(ds, "1999", DefaultScenarios()[Baseline], nil)
	var missing greengrids.MissingYearError
	if !errors.As(err, &missing) {
		t.Fatalf("expected a missing year error, got %v", err)
	}
	if missing.Year != "1999" {
		t.Errorf("missing year = %q, want %q", missing.Year, "1999")
	}
}

func TestResults(t *testing.T) {
	ds := testDataset("2025", "Bengaluru Urban", "Kolar")
	yd := ds.Year("2025")
	yd.Region("Bengaluru Urban").SetEmissions(1000, 2000, 1500, 4500)
	yd.Region("Bengaluru Urban").SetAfterDispersion(2)

	s, err := ScenarioByName(TreePlanting, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Run(ds, "2025", s, nil); err != nil {
		t.Fatal(err)
	}

	got := Results(ds, "2025", s, nil)
	want := []*Result{
		{
			District:         "Bengaluru Urban",
			Year:             "2025",
			BeforeCapture:    2,
			AfterCapture:     1.84,
			TotalCapture:     0.16,
			PercentReduction: 8,
			Interventions:    map[string]float64{TreePlanting: 0.08},
			TotalEmission:    4500,
		},
		{
			District:      "Kolar",
			Year:          "2025",
			Interventions: map[string]float64{TreePlanting: 0.12},
		},
	}
	if diff := pretty.Diff(got, want); len(diff) != 0 {
		t.Error(diff)
	}

	if Results(ds, "1999", s, nil) != nil {
		t.Error("expected nil results for a missing year")
	}
}
