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

package greengridsutil

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/capture"
	"github.com/HMNS19/greengrids/emission"
	"github.com/HMNS19/greengrids/scenario"
)

const testTolerance = 1.e-8

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// The tests below mutate the shared Cfg, so this one must run first.
func TestConfigDefaults(t *testing.T) {
	p, err := ParamsConfig(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(scenario.DefaultParams(), p); len(diff) > 0 {
		t.Errorf("workflow parameter defaults differ: %v", diff)
	}
	if s := SimulationConfig(Cfg); *s != *greengrids.DefaultSimConfig() {
		t.Errorf("simulation defaults differ: %# v", pretty.Formatter(s))
	}
	if w := WindConfig(Cfg); w.Speed != 5 || w.Direction != "NE" {
		t.Errorf("wind defaults differ: %# v", pretty.Formatter(w))
	}
}

func TestVersionCmd(t *testing.T) {
	buf := new(bytes.Buffer)
	Root.SetOut(buf)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("GreenGrids v%s\n", greengrids.Version)
	if buf.String() != want {
		t.Errorf("want %q, got %q", want, buf.String())
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("addr = \"localhost:9999\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	Cfg.Set("config", path)
	if err := Root.PersistentPreRunE(nil, nil); err != nil {
		t.Fatal(err)
	}
	if got := Cfg.GetString("addr"); got != "localhost:9999" {
		t.Errorf("want addr localhost:9999, got %q", got)
	}
	Cfg.Set("config", "")
}

func TestRunCmd(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "output.csv")
	saved := filepath.Join(dir, "saved.json")
	Cfg.Set("DataFile", filepath.Join("testdata", "dataset.json"))
	Cfg.Set("OutputFile", output)
	Cfg.Set("SaveFile", saved)
	Cfg.Set("Year", "2025")
	Cfg.Set("Steps", 1)
	Cfg.Set("Wind.Speed", 0.0)
	buf := new(bytes.Buffer)
	Root.SetOut(buf)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"district", "year", "FinalConcentration", "InitialConcentration", "TotalEmission"},
		{"A", "2025", "0.55", "1", "100"},
		{"B", "2025", "0.15", "0", "0"},
		{"C", "2025", "0.15", "0", "0"},
		{"D", "2025", "0.15", "0", "0"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("output rows differ: %v", pretty.Diff(want, rows))
	}

	if _, err := os.Stat(filepath.Join(dir, "output.log")); err != nil {
		t.Errorf("log file was not created: %v", err)
	}

	ds, err := greengrids.ReadDatasetFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := ds.Year("2025").Region("A").AfterDispersion(); !ok || different(v, 0.55, testTolerance) {
		t.Errorf("saved dataset: want A after dispersion 0.55, got %g (ok=%v)", v, ok)
	}
	if !strings.Contains(buf.String(), "Initializing model...") {
		t.Errorf("missing simulation log output in %q", buf.String())
	}
}

func TestEmissionsCmd(t *testing.T) {
	Cfg.Set("DataFile", filepath.Join("testdata", "dataset.json"))
	Cfg.Set("Year", "2025")
	buf := new(bytes.Buffer)
	Root.SetOut(buf)
	Root.SetArgs([]string{"emissions"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Year           string             `json:"year"`
		Districts      []*emission.Record `json:"districts"`
		TotalDistricts int                `json:"total_districts"`
	}
	if err := json.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Year != "2025" || out.TotalDistricts != 4 {
		t.Errorf("want year 2025 with 4 districts, got %s with %d", out.Year, out.TotalDistricts)
	}
	if len(out.Districts) != 4 {
		t.Fatalf("want 4 district records, got %d", len(out.Districts))
	}
	wantA := &emission.Record{
		District:            "A",
		Year:                "2025",
		TransportEmission:   60,
		IndustrialEmission:  25,
		ResidentialEmission: 15,
		TotalEmission:       100,
		Breakdown:           emission.Breakdown{Transport: 60, Industrial: 25, Residential: 15},
	}
	if diff := pretty.Diff(wantA, out.Districts[0]); len(diff) > 0 {
		t.Errorf("district A record differs: %v", diff)
	}
	if !strings.Contains(buf.String(), "4 districts") {
		t.Errorf("missing summary line in %q", buf.String())
	}
}

func TestCaptureCmd(t *testing.T) {
	dir := t.TempDir()
	dispersed := filepath.Join(dir, "dispersed.json")
	Cfg.Set("DataFile", filepath.Join("testdata", "dataset.json"))
	Cfg.Set("OutputFile", filepath.Join(dir, "run.csv"))
	Cfg.Set("SaveFile", dispersed)
	Cfg.Set("Year", "2025")
	Cfg.Set("Steps", 1)
	Cfg.Set("Wind.Speed", 0.0)
	Root.SetOut(new(bytes.Buffer))
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	Cfg.Set("DataFile", dispersed)
	Cfg.Set("SaveFile", "")
	Cfg.Set("Scenario", capture.TreePlanting)
	buf := new(bytes.Buffer)
	Root.SetOut(buf)
	Root.SetArgs([]string{"capture"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Scenario string            `json:"scenario_name"`
		Year     string            `json:"year"`
		Captured int               `json:"captured_districts"`
		Results  []*capture.Result `json:"results"`
	}
	if err := json.NewDecoder(buf).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Scenario != capture.TreePlanting || out.Year != "2025" || out.Captured != 4 {
		t.Errorf("want tree_planting 2025 with 4 captured districts, got %+v", out)
	}
	if len(out.Results) != 4 {
		t.Fatalf("want 4 capture results, got %d", len(out.Results))
	}
	wantA := &capture.Result{
		District:         "A",
		Year:             "2025",
		BeforeCapture:    0.55,
		AfterCapture:     0.47,
		TotalCapture:     0.08,
		PercentReduction: 14.55,
		Interventions:    map[string]float64{capture.TreePlanting: 0.15},
		TotalEmission:    100,
	}
	if diff := pretty.Diff(wantA, out.Results[0]); len(diff) > 0 {
		t.Errorf("district A result differs: %v", diff)
	}
}

func TestWorkflowCmd(t *testing.T) {
	dir := t.TempDir()
	saved := filepath.Join(dir, "workflow.json")
	hist := filepath.Join(dir, "history.db")
	Cfg.Set("DataFile", filepath.Join("testdata", "dataset.json"))
	Cfg.Set("Scenario", capture.TreePlanting)
	Cfg.Set("Year", "2025")
	Cfg.Set("Steps", 1)
	Cfg.Set("Wind.Speed", 0.0)
	Cfg.Set("HistoryFile", hist)
	Cfg.Set("SaveFile", saved)
	buf := new(bytes.Buffer)
	Root.SetOut(buf)
	Root.SetArgs([]string{"workflow"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	var s scenario.RunSummary
	if err := json.NewDecoder(buf).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Scenario != capture.TreePlanting || s.Captured != 4 {
		t.Errorf("want tree_planting with 4 captured districts, got %s with %d", s.Scenario, s.Captured)
	}
	if different(s.TotalCapture, 0.14, testTolerance) {
		t.Errorf("want total capture 0.14, got %g", s.TotalCapture)
	}
	if different(s.MeanAfter, 0.215, testTolerance) || different(s.MaxAfter, 0.47, testTolerance) {
		t.Errorf("want mean 0.215 and max 0.47 after capture, got %g and %g", s.MeanAfter, s.MaxAfter)
	}

	ds, err := greengrids.ReadDatasetFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	if _, after, _, ok := ds.Year("2025").Region("A").Capture(); !ok || different(after, 0.47, testTolerance) {
		t.Errorf("saved dataset: want A after capture 0.47, got %g (ok=%v)", after, ok)
	}

	h, err := scenario.OpenHistory(hist)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	runs, err := h.Runs(context.Background(), capture.TreePlanting, "2025")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("want 1 recorded run, got %d", len(runs))
	}
	if runs[0].Scenario != capture.TreePlanting || different(runs[0].Summary.TotalCapture, 0.14, testTolerance) {
		t.Errorf("recorded run differs: %# v", pretty.Formatter(runs[0]))
	}
}

func TestCompareCmd(t *testing.T) {
	report := filepath.Join(t.TempDir(), "comparison.xlsx")
	Cfg.Set("DataFile", filepath.Join("testdata", "dataset.json"))
	Cfg.Set("Year", "2025")
	Cfg.Set("Steps", 1)
	Cfg.Set("Wind.Speed", 0.0)
	Cfg.Set("HistoryFile", "")
	Cfg.Set("ReportFile", report)
	buf := new(bytes.Buffer)
	Root.SetOut(buf)
	Root.SetArgs([]string{"compare"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	var cmp scenario.Comparison
	if err := json.NewDecoder(buf).Decode(&cmp); err != nil {
		t.Fatal(err)
	}
	if len(cmp.Summaries) != 2 {
		t.Fatalf("want 2 scenario summaries, got %d", len(cmp.Summaries))
	}
	if cmp.Summaries[0].Scenario != capture.Baseline || cmp.Summaries[1].Scenario != capture.TreePlanting {
		t.Errorf("want summaries in input order, got %s then %s",
			cmp.Summaries[0].Scenario, cmp.Summaries[1].Scenario)
	}
	if len(cmp.Ranking) == 0 || cmp.Ranking[0] != capture.TreePlanting {
		t.Errorf("want tree_planting ranked first, got %v", cmp.Ranking)
	}
	if fi, err := os.Stat(report); err != nil || fi.Size() == 0 {
		t.Errorf("comparison report was not written: %v", err)
	}
}

func TestAQHistoryCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "testkey" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"list":[{"main":{"aqi":2},"components":{"pm2_5":10.5,"pm10":20,"no2":5,"o3":30,"co":400}}]}`)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "aqi.csv")
	Cfg.Set("AQI.Key", "testkey")
	Cfg.Set("AQI.URL", srv.URL)
	Cfg.Set("AQI.LocationFile", filepath.Join("testdata", "locations.csv"))
	Cfg.Set("AQI.OutputFile", out)
	Cfg.Set("AQI.StartYear", 2024)
	Cfg.Set("AQI.EndYear", 2024)
	buf := new(bytes.Buffer)
	Root.SetOut(buf)
	Root.SetArgs([]string{"aqhistory"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"area", "year", "latitude", "longitude", "aqi_openweather_avg", "pm2_5_avg", "pm10_avg", "no2_avg", "o3_avg", "co_avg"},
		{"Anekal", "2024", "12.84", "77.75", "2", "10.5", "20", "5", "30", "400"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("average rows differ: %v", pretty.Diff(want, rows))
	}
	if !strings.Contains(buf.String(), "Wrote 1 yearly averages") {
		t.Errorf("missing completion message in %q", buf.String())
	}
}
