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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/aqhist"
	"github.com/HMNS19/greengrids/capture"
	"github.com/HMNS19/greengrids/emission"
	"github.com/HMNS19/greengrids/scenario"
)

// loadDataset reads the survey dataset at path.
func loadDataset(path string) (*greengrids.Dataset, error) {
	if path == "" {
		return nil, fmt.Errorf("greengrids: no survey dataset specified; set the DataFile configuration variable")
	}
	return greengrids.ReadDatasetFile(path)
}

// Run runs a dispersion simulation.
//
// CobraCommand is the cobra.Command instance where Run is called from.
// It is needed to print certain outputs to the terminal.
//
// DataFile is the path to the survey dataset. OutputFile is the path to
// the desired output CSV location, and SaveFile, if nonempty, is where
// the dispersed dataset is written when the run finishes.
//
// LogFile is the path to the desired logfile location.
//
// Year is the survey year to simulate and Steps is the number of
// iterations to calculate. If Steps < 1, the simulation runs until the
// concentrations stop drifting.
//
// OutputVariables specifies which model variables should be included in
// the output file.
func Run(CobraCommand *cobra.Command, DataFile, OutputFile, SaveFile, LogFile, Year string,
	OutputVariables map[string]string, Steps int, wind *greengrids.Wind, sim *greengrids.SimConfig) error {

	startTime := time.Now()

	// Start a function to receive and print log messages.
	logfile, err := os.Create(LogFile)
	if err != nil {
		return fmt.Errorf("greengrids: problem creating log file: %v", err)
	}
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log.SetOutput(mw)
	cConverge := make(chan greengrids.ConvergenceStatus)
	cLog := make(chan *greengrids.SimulationStatus)
	cLogTick := time.Tick(2 * time.Second)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		for msg := range cConverge {
			log.Println(msg.String())
		}
		wg.Done()
	}()
	go func() {
		for msg := range cLog {
			select {
			case <-cLogTick:
				log.Println(msg.String())
			default:
				runtime.Gosched()
			}
		}
		wg.Done()
	}()

	defer func() { // Wait for the logging to finish.
		close(cConverge)
		close(cLog)
		wg.Wait()
		logfile.Close()
	}()

	ds, err := loadDataset(DataFile)
	if err != nil {
		return err
	}

	o, err := greengrids.NewOutputter(OutputFile, OutputVariables, nil)
	if err != nil {
		return err
	}
	log.Println("Parsing output variable expressions...")

	m := greengrids.DefaultSimulation(ds, Year, Steps, wind, sim, cLog, cConverge)
	m.CleanupFuncs = append(m.CleanupFuncs, o.Output())

	log.Println("Initializing model...")
	if err = m.Init(); err != nil {
		return err
	}

	log.Println("Running simulation...")
	if err = m.Run(); err != nil {
		return err
	}

	if err = m.Cleanup(); err != nil {
		return err
	}

	if SaveFile != "" {
		if err := greengrids.WriteDatasetFile(ds, SaveFile); err != nil {
			return err
		}
	}

	elapsedTime := time.Since(startTime)
	log.Printf("Elapsed time: %f seconds", elapsedTime.Seconds())

	return nil
}

// Emissions prints the per-district emission inventory for year along
// with the year's aggregate statistics.
func Emissions(cmd *cobra.Command, ds *greengrids.Dataset, year string) error {
	summary, err := emission.Summarize(ds, year)
	if err != nil {
		return err
	}
	records := emission.All(ds, year)
	e := json.NewEncoder(cmd.OutOrStdout())
	e.SetIndent("", "    ")
	err = e.Encode(struct {
		Year           string             `json:"year"`
		Districts      []*emission.Record `json:"districts"`
		TotalDistricts int                `json:"total_districts"`
	}{year, records, len(records)})
	if err != nil {
		return err
	}
	cmd.Println(summary.String())
	return nil
}

// Capture applies scen to the dispersed concentrations for year and
// prints the per-district results. The updated dataset is written to
// saveFile when it is nonempty.
func Capture(cmd *cobra.Command, ds *greengrids.Dataset, scen *capture.Scenario, year, saveFile string) error {
	classifier := emission.NewClassifier()
	captured, err := capture.Run(ds, year, scen, classifier)
	if err != nil {
		return err
	}
	results := capture.Results(ds, year, scen, classifier)
	e := json.NewEncoder(cmd.OutOrStdout())
	e.SetIndent("", "    ")
	err = e.Encode(struct {
		Scenario string            `json:"scenario_name"`
		Year     string            `json:"year"`
		Captured int               `json:"captured_districts"`
		Results  []*capture.Result `json:"results"`
	}{scen.Name, year, captured, results})
	if err != nil {
		return err
	}
	if saveFile != "" {
		return greengrids.WriteDatasetFile(ds, saveFile)
	}
	return nil
}

// RunWorkflow executes the complete generate, disperse, and capture
// workflow for one scenario and prints the run summary. The summary is
// appended to the history database at historyFile when it is nonempty,
// and the final dataset is written to saveFile when it is nonempty.
func RunWorkflow(cmd *cobra.Command, ds *greengrids.Dataset, p scenario.Params, cacheDir, historyFile, saveFile string) error {
	w := scenario.NewWorkflow(ds)
	w.CacheDir = cacheDir
	ctx := context.TODO()
	summary, err := w.Run(ctx, p)
	if err != nil {
		return err
	}
	e := json.NewEncoder(cmd.OutOrStdout())
	e.SetIndent("", "    ")
	if err := e.Encode(summary); err != nil {
		return err
	}
	if historyFile != "" {
		h, err := scenario.OpenHistory(historyFile)
		if err != nil {
			return err
		}
		defer h.Close()
		if err := h.Record(ctx, summary); err != nil {
			return err
		}
	}
	if saveFile != "" {
		return greengrids.WriteDatasetFile(w.Dataset, saveFile)
	}
	return nil
}

// CompareScenarios runs the complete workflow once per named scenario
// under identical dispersion conditions and prints the comparison. A
// spreadsheet report is written to reportFile when it is nonempty.
func CompareScenarios(cmd *cobra.Command, ds *greengrids.Dataset, scenarios []string, p scenario.Params, reportFile string) error {
	c, err := scenario.Compare(context.TODO(), ds, scenarios, p)
	if err != nil {
		return err
	}
	e := json.NewEncoder(cmd.OutOrStdout())
	e.SetIndent("", "    ")
	if err := e.Encode(c); err != nil {
		return err
	}
	if reportFile != "" {
		return c.WriteReport(reportFile)
	}
	return nil
}

// AQHistory fetches yearly air quality averages for the areas listed in
// locationFile and writes them to outputFile as CSV. key is the
// OpenWeatherMap API key supplied by the caller.
func AQHistory(cmd *cobra.Command, locationFile, outputFile, key, apiURL string, startYear, endYear int, cacheDir string) error {
	if locationFile == "" {
		return fmt.Errorf("greengrids: no location file specified; set the AQI.LocationFile configuration variable")
	}
	f, err := os.Open(locationFile)
	if err != nil {
		return fmt.Errorf("greengrids: problem opening location file: %v", err)
	}
	areas, err := aqhist.ReadAreas(f)
	f.Close()
	if err != nil {
		return err
	}

	c := aqhist.NewClient(key)
	if apiURL != "" {
		c.URL = apiURL
	}
	if startYear != 0 {
		c.StartYear = startYear
	}
	if endYear != 0 {
		c.EndYear = endYear
	}
	c.CacheDir = cacheDir
	avgs, err := c.History(context.TODO(), areas)
	if err != nil {
		return err
	}

	w, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("greengrids: problem creating output file: %v", err)
	}
	if err := aqhist.WriteAverages(w, avgs); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	cmd.Printf("Wrote %d yearly averages for %d areas to %s\n", len(avgs), len(areas), outputFile)
	return nil
}
