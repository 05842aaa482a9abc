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
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/scenario"
)

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		vars[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return vars, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.csv")`)
	}
	f = os.ExpandEnv(f)
	if IsBlob(f) {
		url, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		_, err = OpenBucket(context.TODO(), url.Scheme+"://"+url.Host)
		if err != nil {
			return f, fmt.Errorf("greengrids: error when checking OutputFile location: %v", err)
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("greengrids: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string), nil
	case map[string]interface{}:
		return cast.ToStringMapString(i), nil
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("greengrids: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("greengrids: invalid type for configuration variable %s: %#v", varName, i)
	}
}

// Interventions assembles the intervention fractions for a custom capture
// scenario. Fractions come from the TOML file named by the InterventionFile
// variable, if there is one, and entries from the Interventions variable
// override file entries of the same name. The result is nil when neither
// source names an intervention.
func Interventions(cfg *viper.Viper) (map[string]float64, error) {
	o := make(map[string]float64)
	if f := os.ExpandEnv(cfg.GetString("InterventionFile")); f != "" {
		if _, err := toml.DecodeFile(f, &o); err != nil {
			return nil, fmt.Errorf("greengrids: reading intervention file: %v", err)
		}
	}
	if cfg.Get("Interventions") != nil {
		flagVals, err := GetStringMapString("Interventions", cfg)
		if err != nil {
			return nil, err
		}
		for k, v := range flagVals {
			frac, err := cast.ToFloat64E(os.ExpandEnv(v))
			if err != nil {
				return nil, fmt.Errorf("greengrids: parsing intervention fraction for %s: %v", k, err)
			}
			o[os.ExpandEnv(k)] = frac
		}
	}
	if len(o) == 0 {
		return nil, nil
	}
	return o, nil
}

// SimulationConfig creates a dispersion simulation configuration from the
// Sim.* configuration variables.
func SimulationConfig(cfg *viper.Viper) *greengrids.SimConfig {
	return &greengrids.SimConfig{
		CellArea:             cfg.GetFloat64("Sim.CellArea"),
		DispersionRate:       cfg.GetFloat64("Sim.DispersionRate"),
		WindEffect:           cfg.GetFloat64("Sim.WindEffect"),
		MaxIterations:        cfg.GetInt("Sim.MaxIterations"),
		ConvergenceThreshold: cfg.GetFloat64("Sim.ConvergenceThreshold"),
	}
}

// WindConfig creates the prevailing wind from the Wind.* configuration
// variables.
func WindConfig(cfg *viper.Viper) *greengrids.Wind {
	return &greengrids.Wind{
		Speed:     cfg.GetFloat64("Wind.Speed"),
		Direction: cfg.GetString("Wind.Direction"),
	}
}

// ParamsConfig creates scenario workflow parameters from the
// configuration variables.
func ParamsConfig(cfg *viper.Viper) (scenario.Params, error) {
	p := scenario.DefaultParams()
	p.Scenario = cfg.GetString("Scenario")
	p.Year = cfg.GetString("Year")
	p.Steps = cfg.GetInt("Steps")
	p.WindSpeed = cfg.GetFloat64("Wind.Speed")
	p.WindDirection = cfg.GetString("Wind.Direction")
	p.Seed = cfg.GetInt64("Seed")
	interventions, err := Interventions(cfg)
	if err != nil {
		return p, err
	}
	p.Interventions = interventions
	// Leaving Sim unset when it matches the defaults keeps cached run
	// keys stable across equivalent configurations.
	if s := SimulationConfig(cfg); *s != *greengrids.DefaultSimConfig() {
		p.Sim = s
	}
	return p, nil
}
