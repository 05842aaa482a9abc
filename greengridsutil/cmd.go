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

// Package greengridsutil provides the GreenGrids command line interface.
package greengridsutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/aqhist"
	"github.com/HMNS19/greengrids/capture"
	"github.com/HMNS19/greengrids/web"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to GreenGrids.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "DataFile",
			usage: `
              DataFile is the path to the survey dataset in JSON format.
              It can be a local path or an http://, https://, gs://, s3://,
              or file:// URL, and it can include environment variables.`,
			defaultVal: "",
			flagsets: []*pflag.FlagSet{runCmd.Flags(), emissionsCmd.Flags(), captureCmd.Flags(),
				workflowCmd.Flags(), compareCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "SaveFile",
			usage: `
              SaveFile is the path where the updated dataset is written after
              the command finishes. The dataset is not saved when SaveFile
              is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), captureCmd.Flags(), workflowCmd.Flags()},
		},
		{
			name: "Year",
			usage: `
              Year is the survey year to operate on.`,
			defaultVal: "2025",
			flagsets: []*pflag.FlagSet{runCmd.Flags(), emissionsCmd.Flags(), captureCmd.Flags(),
				workflowCmd.Flags(), compareCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output CSV file.
              It can include environment variables.`,
			defaultVal: "greengrids_output.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be
              saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which model variables should be included
              in the output file. Each value is an expression over the
              per-district variables, for example
              {"Drop":"InitialConcentration - FinalConcentration"}.
              It can include environment variables.`,
			defaultVal: map[string]string{
				"InitialConcentration": "InitialConcentration",
				"FinalConcentration":   "FinalConcentration",
				"TotalEmission":        "TotalEmission",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Steps",
			usage: `
              Steps is the number of dispersion iterations to run. When Steps
              is zero or negative the simulation runs until the concentrations
              stop drifting or Sim.MaxIterations is reached.`,
			defaultVal: 20,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Wind.Speed",
			usage: `
              Wind.Speed is the prevailing wind speed. It scales the advection
              multiplier linearly.`,
			defaultVal: 5.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Wind.Direction",
			usage: `
              Wind.Direction is the compass direction of the prevailing wind.
              Accepted labels are N, NE, E, SE, S, SW, W, and NW. An
              unrecognized label disables the wind term.`,
			defaultVal: "NE",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Seed",
			usage: `
              Seed initializes the emission generator so that inventories
              generated for districts without survey data are reproducible.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Scenario",
			usage: `
              Scenario is the name of the capture scenario to apply. The
              built-in scenarios are baseline, tree_planting, urban_greening,
              direct_air_capture, and custom.`,
			defaultVal: capture.Baseline,
			flagsets:   []*pflag.FlagSet{captureCmd.Flags(), workflowCmd.Flags()},
		},
		{
			name: "Scenarios",
			usage: `
              Scenarios lists the capture scenarios to compare.`,
			defaultVal: []string{capture.Baseline, capture.TreePlanting},
			flagsets:   []*pflag.FlagSet{compareCmd.Flags()},
		},
		{
			name: "Interventions",
			usage: `
              Interventions maps intervention names to capture fractions for
              the custom scenario, specified as a json object like
              {"tree_planting": "0.15"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{captureCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "InterventionFile",
			usage: `
              InterventionFile is the path to a TOML file mapping intervention
              names to capture fractions for the custom scenario, one
              'name = fraction' line per intervention. Fractions are written
              as decimals, for example tree_planting = 0.15. Entries from the
              Interventions variable override entries from this file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{captureCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Sim.CellArea",
			usage: `
              Sim.CellArea is the nominal area of each grid cell, used to
              convert a district's total emission into its seeded
              concentration.`,
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Sim.DispersionRate",
			usage: `
              Sim.DispersionRate is the fraction of a cell's concentration
              that leaks toward each of its neighbors per timestep.`,
			defaultVal: 0.15,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Sim.WindEffect",
			usage: `
              Sim.WindEffect scales the wind speed's contribution to the
              inbound advection multiplier.`,
			defaultVal: 0.3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Sim.MaxIterations",
			usage: `
              Sim.MaxIterations bounds the simulation length when Steps does
              not request a specific iteration count.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "Sim.ConvergenceThreshold",
			usage: `
              Sim.ConvergenceThreshold is the maximum absolute per-district
              drift from the seeded concentrations below which the run is
              considered steady.`,
			defaultVal: 0.01,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workflowCmd.Flags(), compareCmd.Flags()},
		},
		{
			name: "CacheDir",
			usage: `
              CacheDir is a directory where workflow run summaries and
              upstream air quality responses are cached. Caching is disabled
              when CacheDir is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{workflowCmd.Flags(), serveCmd.Flags(), aqhistoryCmd.Flags()},
		},
		{
			name: "HistoryFile",
			usage: `
              HistoryFile is the path to the sqlite database where workflow
              run summaries are recorded. History is disabled when
              HistoryFile is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{workflowCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "ReportFile",
			usage: `
              ReportFile is the path where the scenario comparison spreadsheet
              (.xlsx) is written. No spreadsheet is written when ReportFile
              is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{compareCmd.Flags()},
		},
		{
			name: "addr",
			usage: `
              addr is the address and port the web interface listens on.`,
			defaultVal: "localhost:8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "open",
			usage: `
              open, if true, opens the web interface in a browser after the
              server starts.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "AQI.Key",
			usage: `
              AQI.Key is the OpenWeatherMap API key used to query historical
              air pollution data. There is no built-in key; requests fail
              until one is configured.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{aqhistoryCmd.Flags()},
		},
		{
			name: "AQI.URL",
			usage: `
              AQI.URL is the upstream air pollution history endpoint.`,
			defaultVal: aqhist.DefaultURL,
			flagsets:   []*pflag.FlagSet{aqhistoryCmd.Flags()},
		},
		{
			name: "AQI.LocationFile",
			usage: `
              AQI.LocationFile is the path to a CSV file listing the areas to
              query. The header row must name an area, latitude, and
              longitude column.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{aqhistoryCmd.Flags()},
		},
		{
			name: "AQI.OutputFile",
			usage: `
              AQI.OutputFile is the path to the desired yearly average CSV
              file.`,
			defaultVal: "aqi_history.csv",
			flagsets:   []*pflag.FlagSet{aqhistoryCmd.Flags()},
		},
		{
			name: "AQI.StartYear",
			usage: `
              AQI.StartYear is the first calendar year to fetch.`,
			defaultVal: 2020,
			flagsets:   []*pflag.FlagSet{aqhistoryCmd.Flags()},
		},
		{
			name: "AQI.EndYear",
			usage: `
              AQI.EndYear is the last calendar year to fetch. Zero means the
              current year.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{aqhistoryCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GREENGRIDS")
	// Nested configuration keys hold dots, which cannot appear in
	// environment variable names.
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := b.String()
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(emissionsCmd)
	Root.AddCommand(captureCmd)
	Root.AddCommand(workflowCmd)
	Root.AddCommand(compareCmd)
	Root.AddCommand(aqhistoryCmd)
	Root.AddCommand(serveCmd)
}

// outChan returns a channel printing to standard output.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			fmt.Println(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("greengrids: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "greengrids",
	Short: "A CO2 emission and dispersion model for city districts.",
	Long: `GreenGrids models CO2 emissions, dispersion, and capture scenarios
for the districts of a city survey. Use the subcommands specified below
to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GREENGRIDS_var' where 'var'
is the name of the variable to be set, with any dots replaced by underscores.
Many configuration variables are additionally allowed to contain environment
variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of GreenGrids.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("GreenGrids v%s\n", greengrids.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a dispersion simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a dispersion simulation.",
	Long: `run simulates CO2 dispersion across the district grid for one survey
year and writes per-district results to a CSV file. The dispersed dataset
can be saved with the SaveFile variable for later capture runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		vars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(vars)
		if err != nil {
			return err
		}
		return Run(
			cmd,
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("DataFile")), outChan),
			outputFile,
			os.ExpandEnv(Cfg.GetString("SaveFile")),
			checkLogFile(os.ExpandEnv(Cfg.GetString("LogFile")), outputFile),
			Cfg.GetString("Year"),
			outputVars,
			Cfg.GetInt("Steps"),
			WindConfig(Cfg),
			SimulationConfig(Cfg))
	},
	DisableAutoGenTag: true,
}

// emissionsCmd is a command that reports the emission inventory.
var emissionsCmd = &cobra.Command{
	Use:   "emissions",
	Short: "Report the emission inventory.",
	Long: `emissions prints the per-district emission inventory for one survey
year along with the year's aggregate statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		ds, err := loadDataset(maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("DataFile")), outChan))
		if err != nil {
			return err
		}
		return Emissions(cmd, ds, Cfg.GetString("Year"))
	},
	DisableAutoGenTag: true,
}

// captureCmd is a command that applies a carbon capture scenario.
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Apply a carbon capture scenario.",
	Long: `capture applies a named capture scenario to the dispersed
concentrations of one survey year and prints the per-district results.
The dataset must already hold dispersion results for the year; run the
run or workflow command first, or load a dataset saved by one of them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		interventions, err := Interventions(Cfg)
		if err != nil {
			return err
		}
		scen, err := capture.ScenarioByName(Cfg.GetString("Scenario"), interventions)
		if err != nil {
			return err
		}
		ds, err := loadDataset(maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("DataFile")), outChan))
		if err != nil {
			return err
		}
		return Capture(cmd, ds, scen, Cfg.GetString("Year"), os.ExpandEnv(Cfg.GetString("SaveFile")))
	},
	DisableAutoGenTag: true,
}

// workflowCmd is a command that runs the complete modeling workflow.
var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run the complete modeling workflow.",
	Long: `workflow fills in missing emission inventories, runs a dispersion
simulation, and applies a capture scenario in one step, then prints the
run summary. Summaries are cached in CacheDir and recorded to
HistoryFile when those variables are set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		p, err := ParamsConfig(Cfg)
		if err != nil {
			return err
		}
		ds, err := loadDataset(maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("DataFile")), outChan))
		if err != nil {
			return err
		}
		return RunWorkflow(
			cmd, ds, p,
			os.ExpandEnv(Cfg.GetString("CacheDir")),
			os.ExpandEnv(Cfg.GetString("HistoryFile")),
			os.ExpandEnv(Cfg.GetString("SaveFile")))
	},
	DisableAutoGenTag: true,
}

// compareCmd is a command that compares capture scenarios.
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare capture scenarios.",
	Long: `compare runs the complete workflow once per named scenario under
identical dispersion conditions and prints the scenarios ranked by
total capture. A spreadsheet report is written when ReportFile is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		p, err := ParamsConfig(Cfg)
		if err != nil {
			return err
		}
		ds, err := loadDataset(maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("DataFile")), outChan))
		if err != nil {
			return err
		}
		return CompareScenarios(
			cmd, ds,
			expandStringSlice(Cfg.GetStringSlice("Scenarios")),
			p,
			os.ExpandEnv(Cfg.GetString("ReportFile")))
	},
	DisableAutoGenTag: true,
}

// aqhistoryCmd is a command that fetches historical air quality data.
var aqhistoryCmd = &cobra.Command{
	Use:   "aqhistory",
	Short: "Fetch historical air quality averages.",
	Long: `aqhistory queries the OpenWeatherMap air pollution history API for
each area listed in AQI.LocationFile and writes yearly average
concentrations to a CSV file. An API key must be supplied through the
AQI.Key variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		return AQHistory(
			cmd,
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("AQI.LocationFile")), outChan),
			os.ExpandEnv(Cfg.GetString("AQI.OutputFile")),
			Cfg.GetString("AQI.Key"),
			os.ExpandEnv(Cfg.GetString("AQI.URL")),
			Cfg.GetInt("AQI.StartYear"),
			Cfg.GetInt("AQI.EndYear"),
			os.ExpandEnv(Cfg.GetString("CacheDir")))
	},
	DisableAutoGenTag: true,
}

// serveCmd is a command that starts the web interface.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface.",
	Long: `serve starts an HTTP server hosting the GreenGrids dashboard and
JSON API. The API exposes emission inventories, dispersion runs,
capture scenarios, complete workflows, PNG charts, and a websocket
stream of simulation progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		ds, err := loadDataset(maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("DataFile")), outChan))
		if err != nil {
			return err
		}
		s, err := web.NewServer(&web.Config{
			Dataset:     ds,
			DefaultYear: Cfg.GetString("Year"),
			CacheDir:    os.ExpandEnv(Cfg.GetString("CacheDir")),
			HistoryPath: os.ExpandEnv(Cfg.GetString("HistoryFile")),
		})
		if err != nil {
			return err
		}
		defer s.Close()

		addr := Cfg.GetString("addr")
		cmd.Printf("GreenGrids serving on http://%s\n", addr)
		if Cfg.GetBool("open") {
			open.Run("http://" + addr)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return s.ListenAndServe(ctx, addr)
	},
	DisableAutoGenTag: true,
}
