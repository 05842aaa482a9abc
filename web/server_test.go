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

package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kr/pretty"

	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/capture"
	"github.com/HMNS19/greengrids/emission"
	"github.com/HMNS19/greengrids/scenario"
)

// testDataset builds a one-year dataset. A negative emission leaves
// the district without an inventory.
func testDataset(year string, names []string, emissions []float64) *greengrids.Dataset {
	yd := greengrids.NewYearData()
	for i, name := range names {
		r := new(greengrids.Region)
		if emissions[i] >= 0 {
			r.SetEmissions(emissions[i], 0, 0, emissions[i])
		}
		yd.AddRegion(name, r)
	}
	ds := greengrids.NewDataset()
	ds.AddYear(year, yd)
	return ds
}

func newTestServer(t *testing.T, c *Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(c)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return s, srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &e)
	return e.Error
}

func TestNewServer(t *testing.T) {
	if _, err := NewServer(nil); err == nil {
		t.Error("no error for a nil configuration")
	}
	if _, err := NewServer(&Config{}); err == nil {
		t.Error("no error for a missing dataset")
	}
}

func TestServerIndex(t *testing.T) {
	ds := testDataset("2025", []string{"A"}, []float64{100})
	_, srv := newTestServer(t, &Config{Dataset: ds})

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index returned %d", resp.StatusCode)
	}
	for _, want := range []string{greengrids.Version, "2025", "/api/workflow/run", capture.TreePlanting} {
		if !strings.Contains(string(body), want) {
			t.Errorf("index page is missing %q", want)
		}
	}
}

func TestServerEmissions(t *testing.T) {
	ds := greengrids.NewDataset()
	yd := greengrids.NewYearData()
	anekal := new(greengrids.Region)
	anekal.SetEmissions(60, 25, 15, 100)
	yd.AddRegion("Anekal", anekal)
	yd.AddRegion("Hosakote", new(greengrids.Region))
	ds.AddYear("2025", yd)
	_, srv := newTestServer(t, &Config{Dataset: ds})

	resp, err := http.Get(srv.URL + "/api/emissions/district/Anekal")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("district request returned %d", resp.StatusCode)
	}
	var rec emission.Record
	decodeBody(t, resp, &rec)
	want := emission.Record{
		District:            "Anekal",
		Year:                "2025",
		TransportEmission:   60,
		IndustrialEmission:  25,
		ResidentialEmission: 15,
		TotalEmission:       100,
		Breakdown:           emission.Breakdown{Transport: 60, Industrial: 25, Residential: 15},
	}
	if diff := pretty.Diff(rec, want); len(diff) != 0 {
		t.Error(diff)
	}

	// Hosakote has no inventory yet.
	resp, err = http.Get(srv.URL + "/api/emissions/district/Hosakote")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("uninventoried district returned %d", resp.StatusCode)
	}
	if msg := errorBody(t, resp); !strings.Contains(msg, "no emission data") {
		t.Errorf("unexpected error %q", msg)
	}

	resp, err = http.Get(srv.URL + "/api/emissions/all")
	if err != nil {
		t.Fatal(err)
	}
	var all struct {
		Year           string             `json:"year"`
		Districts      []*emission.Record `json:"districts"`
		TotalDistricts int                `json:"total_districts"`
	}
	decodeBody(t, resp, &all)
	if all.Year != "2025" || all.TotalDistricts != 1 || len(all.Districts) != 1 {
		t.Errorf("all emissions = %s", pretty.Sprint(all))
	}

	resp, err = http.Get(srv.URL + "/api/emissions/all?year=1999")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown year returned %d", resp.StatusCode)
	}
	if msg := errorBody(t, resp); !strings.Contains(msg, "1999") {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestServerDispersion(t *testing.T) {
	ds := testDataset("2025", []string{"A", "B", "C", "D"}, []float64{100, 0, 0, 0})
	_, srv := newTestServer(t, &Config{Dataset: ds})

	resp := postJSON(t, srv.URL+"/api/dispersion/simulate",
		`{"steps": 1, "wind_speed": 0, "year": "2025"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("simulate returned %d", resp.StatusCode)
	}
	var run struct {
		Success          bool `json:"success"`
		SimulationParams struct {
			Steps int             `json:"steps"`
			Wind  greengrids.Wind `json:"wind"`
			Year  string          `json:"year"`
		} `json:"simulation_params"`
		Results        []*greengrids.ConcentrationRecord `json:"results"`
		TotalDistricts int                               `json:"total_districts"`
	}
	decodeBody(t, resp, &run)
	if !run.Success {
		t.Error("simulate did not report success")
	}
	if run.SimulationParams.Steps != 1 || run.SimulationParams.Year != "2025" {
		t.Errorf("echoed params = %s", pretty.Sprint(run.SimulationParams))
	}
	if run.SimulationParams.Wind.Direction != "NE" {
		t.Errorf("wind direction = %q, want the NE default", run.SimulationParams.Wind.Direction)
	}
	if run.TotalDistricts != 4 || len(run.Results) != 4 {
		t.Fatalf("got %d results over %d districts, want 4", len(run.Results), run.TotalDistricts)
	}
	a := run.Results[0]
	if a.District != "A" || a.InitialConcentration == nil || a.FinalConcentration == nil {
		t.Fatalf("district A = %s", pretty.Sprint(a))
	}
	if *a.InitialConcentration != 1 || *a.FinalConcentration != 0.55 {
		t.Errorf("district A concentrations = (%g, %g), want (1, 0.55)",
			*a.InitialConcentration, *a.FinalConcentration)
	}

	// The finished run is visible to subsequent reads.
	resp, err := http.Get(srv.URL + "/api/dispersion/results?year=2025")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Year           string                            `json:"year"`
		Results        []*greengrids.ConcentrationRecord `json:"results"`
		TotalDistricts int                               `json:"total_districts"`
	}
	decodeBody(t, resp, &got)
	if got.TotalDistricts != 4 {
		t.Fatalf("results request reported %d districts, want 4", got.TotalDistricts)
	}
	b := got.Results[1]
	if b.District != "B" || b.FinalConcentration == nil || *b.FinalConcentration != 0.15 {
		t.Errorf("district B = %s", pretty.Sprint(b))
	}

	// Unknown years are reported, not simulated.
	resp = postJSON(t, srv.URL+"/api/dispersion/simulate", `{"year": "1999"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("simulating an unknown year returned %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp, err = http.Get(srv.URL + "/api/dispersion/results?year=1999")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("results for an unknown year returned %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestServerCapture(t *testing.T) {
	ds := testDataset("2025", []string{"A", "B", "C", "D"}, []float64{100, 0, 0, 0})
	_, srv := newTestServer(t, &Config{Dataset: ds})

	resp := postJSON(t, srv.URL+"/api/dispersion/simulate", `{"steps": 1, "wind_speed": 0}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("simulate returned %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/capture/simulate",
		`{"scenario_name": "tree_planting", "year": "2025"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("capture simulate returned %d", resp.StatusCode)
	}
	var cr struct {
		Success           bool   `json:"success"`
		Scenario          string `json:"scenario_name"`
		Year              string `json:"year"`
		CapturedDistricts int    `json:"captured_districts"`
		Message           string `json:"message"`
	}
	decodeBody(t, resp, &cr)
	if !cr.Success || cr.Scenario != capture.TreePlanting || cr.CapturedDistricts != 4 {
		t.Errorf("capture response = %s", pretty.Sprint(cr))
	}

	resp, err := http.Get(srv.URL + "/api/capture/results/tree_planting?year=2025")
	if err != nil {
		t.Fatal(err)
	}
	var res struct {
		Scenario       string            `json:"scenario_name"`
		Year           string            `json:"year"`
		Results        []*capture.Result `json:"results"`
		TotalDistricts int               `json:"total_districts"`
	}
	decodeBody(t, resp, &res)
	if res.Scenario != capture.TreePlanting || res.TotalDistricts != 4 {
		t.Fatalf("capture results = %s", pretty.Sprint(res))
	}
	want := &capture.Result{
		District:         "A",
		Year:             "2025",
		BeforeCapture:    0.55,
		AfterCapture:     0.47,
		TotalCapture:     0.08,
		PercentReduction: 14.55,
		Interventions:    map[string]float64{capture.TreePlanting: 0.15},
		TotalEmission:    100,
	}
	if diff := pretty.Diff(res.Results[0], want); len(diff) != 0 {
		t.Error(diff)
	}

	// An unknown scenario cannot run.
	resp = postJSON(t, srv.URL+"/api/capture/simulate", `{"scenario_name": "geoengineering"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown scenario returned %d", resp.StatusCode)
	}
	if msg := errorBody(t, resp); !strings.Contains(msg, "unknown capture scenario") {
		t.Errorf("unexpected error %q", msg)
	}

	// Stored results are still readable under any label; the records
	// just carry no intervention annotation.
	resp, err = http.Get(srv.URL + "/api/capture/results/geoengineering?year=2025")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results under an unknown label returned %d", resp.StatusCode)
	}
	decodeBody(t, resp, &res)
	if res.Scenario != "geoengineering" || len(res.Results) != 4 {
		t.Fatalf("capture results = %s", pretty.Sprint(res))
	}
	if len(res.Results[0].Interventions) != 0 {
		t.Errorf("unknown label annotated interventions %v", res.Results[0].Interventions)
	}
}

func TestServerWorkflow(t *testing.T) {
	ds := testDataset("2025", []string{"A", "B", "C", "D"}, []float64{100, 0, 0, 0})
	_, srv := newTestServer(t, &Config{
		Dataset:     ds,
		HistoryPath: filepath.Join(t.TempDir(), "runs.db"),
	})

	resp := postJSON(t, srv.URL+"/api/workflow/run",
		`{"scenario_name": "tree_planting", "year": "2025", "dispersion": {"steps": 1, "wind_speed": 0}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("workflow run returned %d", resp.StatusCode)
	}
	var wr struct {
		Success  bool                 `json:"success"`
		Scenario string               `json:"scenario_name"`
		Year     string               `json:"year"`
		Message  string               `json:"message"`
		Summary  *scenario.RunSummary `json:"summary"`
	}
	decodeBody(t, resp, &wr)
	if !wr.Success || wr.Scenario != capture.TreePlanting || wr.Year != "2025" {
		t.Errorf("workflow response = %s", pretty.Sprint(wr))
	}
	if wr.Summary == nil {
		t.Fatal("no summary in the response")
	}
	if wr.Summary.Captured != 4 || wr.Summary.TotalCapture != 0.14 {
		t.Errorf("summary captured %d districts totaling %g, want 4 totaling 0.14",
			wr.Summary.Captured, wr.Summary.TotalCapture)
	}

	// The workflow's dataset replaced the served one.
	resp, err := http.Get(srv.URL + "/api/dispersion/results?year=2025")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Results []*greengrids.ConcentrationRecord `json:"results"`
	}
	decodeBody(t, resp, &got)
	if len(got.Results) != 4 || got.Results[0].FinalConcentration == nil {
		t.Fatalf("dispersion results after workflow = %s", pretty.Sprint(got))
	}
	if *got.Results[0].FinalConcentration != 0.55 {
		t.Errorf("district A dispersed to %g, want 0.55", *got.Results[0].FinalConcentration)
	}

	// The run landed in the history.
	resp, err = http.Get(srv.URL + "/api/workflow/history")
	if err != nil {
		t.Fatal(err)
	}
	var h struct {
		Runs  []*scenario.Run `json:"runs"`
		Count int             `json:"count"`
	}
	decodeBody(t, resp, &h)
	if h.Count != 1 || len(h.Runs) != 1 {
		t.Fatalf("history holds %d runs, want 1", h.Count)
	}
	if h.Runs[0].Scenario != capture.TreePlanting || h.Runs[0].Summary.TotalCapture != 0.14 {
		t.Errorf("recorded run = %s", pretty.Sprint(h.Runs[0]))
	}

	// Unknown scenarios are rejected before anything runs.
	resp = postJSON(t, srv.URL+"/api/workflow/run", `{"scenario_name": "geoengineering"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown scenario returned %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestServerHistoryNotConfigured(t *testing.T) {
	ds := testDataset("2025", []string{"A"}, []float64{100})
	_, srv := newTestServer(t, &Config{Dataset: ds})

	resp, err := http.Get(srv.URL + "/api/workflow/history")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("history without a store returned %d", resp.StatusCode)
	}
	if msg := errorBody(t, resp); !strings.Contains(msg, "not configured") {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestServerCompare(t *testing.T) {
	ds := testDataset("2025",
		[]string{"Anekal", "Hosakote", "Kolar", "Srinivaspura"},
		[]float64{-1, -1, -1, -1})
	_, srv := newTestServer(t, &Config{Dataset: ds})

	resp := postJSON(t, srv.URL+"/api/workflow/compare", `{"year": "2025", "steps": 1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("compare returned %d", resp.StatusCode)
	}
	var cr struct {
		Success    bool                 `json:"success"`
		Scenarios  []string             `json:"scenario_names"`
		Year       string               `json:"year"`
		Message    string               `json:"message"`
		Comparison *scenario.Comparison `json:"comparison"`
	}
	decodeBody(t, resp, &cr)
	if !cr.Success || cr.Year != "2025" {
		t.Errorf("compare response = %s", pretty.Sprint(cr))
	}
	if len(cr.Scenarios) != 2 || cr.Scenarios[0] != capture.Baseline ||
		cr.Scenarios[1] != capture.TreePlanting {
		t.Errorf("scenarios = %v, want the default pair", cr.Scenarios)
	}
	if cr.Comparison == nil || len(cr.Comparison.Ranking) != 2 {
		t.Fatalf("comparison = %s", pretty.Sprint(cr.Comparison))
	}
	if cr.Comparison.Ranking[0] != capture.TreePlanting {
		t.Errorf("ranking = %v, want tree planting first", cr.Comparison.Ranking)
	}

	// Comparisons never modify the served dataset.
	if ds.Year("2025").Region("Anekal").HasEmission() {
		t.Error("the comparison wrote into the served dataset")
	}
}

func TestServerCharts(t *testing.T) {
	ds := testDataset("2025", []string{"A", "B", "C", "D"}, []float64{100, 0, 0, 0})
	_, srv := newTestServer(t, &Config{Dataset: ds})

	// Before any run the dispersed grid has no values to draw.
	resp, err := http.Get(srv.URL + "/api/charts/heatmap.png?year=2025")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("heatmap before a run returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/dispersion/simulate", `{"steps": 1, "wind_speed": 0}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("simulate returned %d", resp.StatusCode)
	}

	for _, path := range []string{
		"/api/charts/concentrations.png?year=2025",
		"/api/charts/heatmap.png?year=2025",
		"/api/charts/heatmap.png?year=2025&stage=initial",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s returned %d", path, resp.StatusCode)
			continue
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s served Content-Type %q", path, ct)
		}
		if !bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")) {
			t.Errorf("%s did not serve a PNG", path)
		}
	}

	resp, err = http.Get(srv.URL + "/api/charts/concentrations.png?year=1999")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("chart for an unknown year returned %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestServerStatusStream(t *testing.T) {
	ds := testDataset("2025", []string{"A", "B", "C", "D"}, []float64{100, 0, 0, 0})
	s, srv := newTestServer(t, &Config{Dataset: ds})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// The subscription is registered by the handler goroutine after
	// the handshake; wait for it before starting the run.
	for i := 0; ; i++ {
		s.hub.mu.Lock()
		n := len(s.hub.conns)
		s.hub.mu.Unlock()
		if n > 0 {
			break
		}
		if i > 100 {
			t.Fatal("the subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp := postJSON(t, srv.URL+"/api/dispersion/simulate", `{"steps": 10, "wind_speed": 0}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("simulate returned %d", resp.StatusCode)
	}

	var sims, convs int
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var e StatusEvent
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("stream ended early: %v", err)
		}
		switch e.Type {
		case "simulation":
			sims++
		case "convergence":
			convs++
			if e.Iteration != 10 {
				t.Errorf("convergence checked at iteration %d, want 10", e.Iteration)
			}
		case "done":
			if sims != 10 {
				t.Errorf("streamed %d simulation updates, want 10", sims)
			}
			if convs != 1 {
				t.Errorf("streamed %d convergence updates, want 1", convs)
			}
			if !strings.Contains(e.Text, "2025") {
				t.Errorf("completion text %q does not name the year", e.Text)
			}
			return
		default:
			t.Fatalf("unknown event type %q", e.Type)
		}
	}
}
