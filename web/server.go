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

// Package web serves the survey dataset over HTTP: JSON endpoints for
// emission inventories, dispersion simulations, capture scenarios, and
// complete workflows, plus PNG charts and a websocket stream of live
// simulation progress.
//
// Mutating requests run against an isolated deep copy of the dataset
// and install the copy when they finish, so readers always see either
// the state before a run or the state after it, never a partially
// updated year.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	greengrids "github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/capture"
	"github.com/HMNS19/greengrids/emission"
	"github.com/HMNS19/greengrids/scenario"
)

// Config holds the server settings.
type Config struct {
	// Dataset is the survey data the server reads and simulates
	// against.
	Dataset *greengrids.Dataset

	// DefaultYear is used when a request does not name a year. It
	// defaults to the standard workflow year.
	DefaultYear string

	// CacheDir, if nonempty, persists workflow run summaries to disk
	// so repeated runs are served without recomputing.
	CacheDir string

	// HistoryPath is the SQLite file recording completed workflow
	// runs. Empty disables recording.
	HistoryPath string
}

// Server serves the GreenGrids HTTP API.
type Server struct {
	Log logrus.FieldLogger

	defaultYear string
	cacheDir    string

	mu sync.RWMutex
	ds *greengrids.Dataset

	classifier *emission.Classifier
	history    *scenario.History
	hub        *statusHub
	router     *mux.Router
}

// NewServer builds a Server for the given configuration.
func NewServer(c *Config) (*Server, error) {
	if c == nil || c.Dataset == nil {
		return nil, errors.New("greengrids: web server needs a dataset")
	}
	s := &Server{
		Log:         logrus.StandardLogger(),
		defaultYear: c.DefaultYear,
		cacheDir:    c.CacheDir,
		ds:          c.Dataset,
		classifier:  emission.NewClassifier(),
		hub:         newStatusHub(),
	}
	if s.defaultYear == "" {
		s.defaultYear = scenario.DefaultParams().Year
	}
	if c.HistoryPath != "" {
		h, err := scenario.OpenHistory(c.HistoryPath)
		if err != nil {
			return nil, err
		}
		s.history = h
	}
	s.router = s.routes()
	return s, nil
}

// Close releases the server's resources.
func (s *Server) Close() error {
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.index).Methods("GET")
	r.HandleFunc("/api/emissions/district/{name}", s.emissionsDistrict).Methods("GET")
	r.HandleFunc("/api/emissions/all", s.emissionsAll).Methods("GET")
	r.HandleFunc("/api/dispersion/simulate", s.dispersionSimulate).Methods("POST")
	r.HandleFunc("/api/dispersion/results", s.dispersionResults).Methods("GET")
	r.HandleFunc("/api/capture/simulate", s.captureSimulate).Methods("POST")
	r.HandleFunc("/api/capture/results/{scenario}", s.captureResults).Methods("GET")
	r.HandleFunc("/api/workflow/run", s.workflowRun).Methods("POST")
	r.HandleFunc("/api/workflow/compare", s.workflowCompare).Methods("POST")
	r.HandleFunc("/api/workflow/history", s.workflowHistory).Methods("GET")
	r.HandleFunc("/api/charts/concentrations.png", s.concentrationsChart).Methods("GET")
	r.HandleFunc("/api/charts/heatmap.png", s.heatmapChart).Methods("GET")
	r.HandleFunc("/ws/status", s.status)
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Log.WithFields(logrus.Fields{
		"url":  r.URL.String(),
		"addr": r.RemoteAddr,
	}).Info("greengrids web request")
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully, draining in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.Log.WithFields(logrus.Fields{"addr": addr}).Info("greengrids web serving")
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

// dataset returns the currently installed dataset. The returned value
// must be treated as read-only; mutating handlers work on a Copy and
// install it with setDataset.
func (s *Server) dataset() *greengrids.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

func (s *Server) setDataset(ds *greengrids.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
}

// year returns the year a request asks about.
func (s *Server) year(r *http.Request) string {
	if y := r.URL.Query().Get("year"); y != "" {
		return y
	}
	return s.defaultYear
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.WithError(err).Error("greengrids web encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode fills v from the request body. An empty body is not an
// error; v keeps its preset defaults.
func (s *Server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("decoding request: %v", err)
	}
	return nil
}

// statusFor maps an operation error to a response status: a missing
// year is the client asking about data that does not exist.
func statusFor(err error) int {
	var missing greengrids.MissingYearError
	if errors.As(err, &missing) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type simulationParams struct {
	Steps int              `json:"steps"`
	Wind  *greengrids.Wind `json:"wind"`
	Year  string           `json:"year"`
}

type dispersionResponse struct {
	Success          bool                              `json:"success"`
	SimulationParams simulationParams                  `json:"simulation_params"`
	Results          []*greengrids.ConcentrationRecord `json:"results"`
	TotalDistricts   int                               `json:"total_districts"`
}

type resultsResponse struct {
	Year           string                            `json:"year"`
	Results        []*greengrids.ConcentrationRecord `json:"results"`
	TotalDistricts int                               `json:"total_districts"`
}

type emissionsResponse struct {
	Year           string             `json:"year"`
	Districts      []*emission.Record `json:"districts"`
	TotalDistricts int                `json:"total_districts"`
}

type captureRunResponse struct {
	Success           bool   `json:"success"`
	Scenario          string `json:"scenario_name"`
	Year              string `json:"year"`
	CapturedDistricts int    `json:"captured_districts"`
	Message           string `json:"message"`
}

type captureResultsResponse struct {
	Scenario       string            `json:"scenario_name"`
	Year           string            `json:"year"`
	Results        []*capture.Result `json:"results"`
	TotalDistricts int               `json:"total_districts"`
}

type workflowResponse struct {
	Success  bool                 `json:"success"`
	Scenario string               `json:"scenario_name"`
	Year     string               `json:"year"`
	Message  string               `json:"message"`
	Summary  *scenario.RunSummary `json:"summary"`
}

type compareResponse struct {
	Success    bool                 `json:"success"`
	Scenarios  []string             `json:"scenario_names"`
	Year       string               `json:"year"`
	Message    string               `json:"message"`
	Comparison *scenario.Comparison `json:"comparison"`
}

type historyResponse struct {
	Runs  []*scenario.Run `json:"runs"`
	Count int             `json:"count"`
}

func (s *Server) emissionsDistrict(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	year := s.year(r)
	rec := emission.ByDistrict(s.dataset(), name, year)
	if rec == nil {
		s.writeError(w, http.StatusNotFound,
			fmt.Errorf("no emission data for %s in %s", name, year))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) emissionsAll(w http.ResponseWriter, r *http.Request) {
	year := s.year(r)
	ds := s.dataset()
	if ds.Year(year) == nil {
		s.writeError(w, http.StatusNotFound, greengrids.MissingYearError{Year: year})
		return
	}
	recs := emission.All(ds, year)
	s.writeJSON(w, http.StatusOK, &emissionsResponse{
		Year:           year,
		Districts:      recs,
		TotalDistricts: len(recs),
	})
}

func (s *Server) dispersionSimulate(w http.ResponseWriter, r *http.Request) {
	base := scenario.DefaultParams()
	req := struct {
		Steps         int     `json:"steps"`
		WindSpeed     float64 `json:"wind_speed"`
		WindDirection string  `json:"wind_direction"`
		Year          string  `json:"year"`
	}{
		Steps:         base.Steps,
		WindSpeed:     base.WindSpeed,
		WindDirection: base.WindDirection,
		Year:          s.defaultYear,
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ds := s.dataset().Copy()
	wind := &greengrids.Wind{Speed: req.WindSpeed, Direction: req.WindDirection}
	if err := s.runDispersion(ds, req.Year, req.Steps, wind); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.setDataset(ds)

	results := greengrids.AllConcentrations(ds, req.Year)
	s.writeJSON(w, http.StatusOK, &dispersionResponse{
		Success: true,
		SimulationParams: simulationParams{
			Steps: req.Steps,
			Wind:  wind,
			Year:  req.Year,
		},
		Results:        results,
		TotalDistricts: len(results),
	})
}

func (s *Server) dispersionResults(w http.ResponseWriter, r *http.Request) {
	year := s.year(r)
	ds := s.dataset()
	if ds.Year(year) == nil {
		s.writeError(w, http.StatusNotFound, greengrids.MissingYearError{Year: year})
		return
	}
	results := greengrids.AllConcentrations(ds, year)
	s.writeJSON(w, http.StatusOK, &resultsResponse{
		Year:           year,
		Results:        results,
		TotalDistricts: len(results),
	})
}

func (s *Server) captureSimulate(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Scenario      string             `json:"scenario_name"`
		Year          string             `json:"year"`
		Interventions map[string]float64 `json:"interventions"`
	}{Scenario: capture.Custom, Year: s.defaultYear}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	scen, err := capture.ScenarioByName(req.Scenario, req.Interventions)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ds := s.dataset().Copy()
	n, err := capture.Run(ds, req.Year, scen, s.classifier)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.setDataset(ds)

	s.writeJSON(w, http.StatusOK, &captureRunResponse{
		Success:           true,
		Scenario:          scen.Name,
		Year:              req.Year,
		CapturedDistricts: n,
		Message:           "Capture simulation completed successfully",
	})
}

func (s *Server) captureResults(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["scenario"]
	year := s.year(r)
	ds := s.dataset()
	if ds.Year(year) == nil {
		s.writeError(w, http.StatusNotFound, greengrids.MissingYearError{Year: year})
		return
	}
	// An unrecognized name still returns the stored outcome; it just
	// cannot be annotated with the scenario's intervention fractions.
	scen, _ := capture.ScenarioByName(name, nil)
	results := capture.Results(ds, year, scen, s.classifier)
	s.writeJSON(w, http.StatusOK, &captureResultsResponse{
		Scenario:       name,
		Year:           year,
		Results:        results,
		TotalDistricts: len(results),
	})
}

func (s *Server) workflowRun(w http.ResponseWriter, r *http.Request) {
	base := scenario.DefaultParams()
	req := struct {
		Scenario   string `json:"scenario_name"`
		Year       string `json:"year"`
		Dispersion struct {
			Steps         int     `json:"steps"`
			WindSpeed     float64 `json:"wind_speed"`
			WindDirection string  `json:"wind_direction"`
		} `json:"dispersion"`
		Capture struct {
			Interventions map[string]float64 `json:"interventions"`
		} `json:"capture"`
	}{Scenario: capture.Custom, Year: base.Year}
	req.Dispersion.Steps = base.Steps
	req.Dispersion.WindSpeed = base.WindSpeed
	req.Dispersion.WindDirection = base.WindDirection
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	p := base
	p.Scenario = req.Scenario
	p.Year = req.Year
	p.Steps = req.Dispersion.Steps
	p.WindSpeed = req.Dispersion.WindSpeed
	p.WindDirection = req.Dispersion.WindDirection
	p.Interventions = req.Capture.Interventions
	if _, err := capture.ScenarioByName(p.Scenario, p.Interventions); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	wf := scenario.NewWorkflow(s.dataset().Copy())
	wf.CacheDir = s.cacheDir
	wf.Log = s.Log
	summary, err := wf.Run(r.Context(), p)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.setDataset(wf.Dataset)

	if s.history != nil {
		if err := s.history.Record(r.Context(), summary); err != nil {
			s.Log.WithError(err).Error("greengrids web recording run history")
		}
	}
	s.writeJSON(w, http.StatusOK, &workflowResponse{
		Success:  true,
		Scenario: summary.Scenario,
		Year:     summary.Year,
		Message:  "Complete workflow executed successfully",
		Summary:  summary,
	})
}

func (s *Server) workflowCompare(w http.ResponseWriter, r *http.Request) {
	base := scenario.DefaultParams()
	req := struct {
		ScenarioNames []string           `json:"scenario_names"`
		Year          string             `json:"year"`
		Steps         int                `json:"steps"`
		WindSpeed     float64            `json:"wind_speed"`
		WindDirection string             `json:"wind_direction"`
		Interventions map[string]float64 `json:"interventions"`
	}{
		Year:          base.Year,
		Steps:         base.Steps,
		WindSpeed:     base.WindSpeed,
		WindDirection: base.WindDirection,
	}
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, name := range req.ScenarioNames {
		if _, err := capture.ScenarioByName(name, req.Interventions); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	p := base
	p.Year = req.Year
	p.Steps = req.Steps
	p.WindSpeed = req.WindSpeed
	p.WindDirection = req.WindDirection
	p.Interventions = req.Interventions
	cmp, err := scenario.Compare(r.Context(), s.dataset(), req.ScenarioNames, p)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	names := make([]string, len(cmp.Summaries))
	for i, sm := range cmp.Summaries {
		names[i] = sm.Scenario
	}
	s.writeJSON(w, http.StatusOK, &compareResponse{
		Success:    true,
		Scenarios:  names,
		Year:       p.Year,
		Message:    "Scenario comparison completed successfully",
		Comparison: cmp,
	})
}

func (s *Server) workflowHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, errors.New("run history is not configured"))
		return
	}
	q := r.URL.Query()
	runs, err := s.history.Runs(r.Context(), q.Get("scenario"), q.Get("year"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &historyResponse{Runs: runs, Count: len(runs)})
}
