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

package greengrids

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/Knetic/govaluate"
)

// LoadDataset reads a dataset from r, preserving the document order of
// years and regions.
func LoadDataset(r io.Reader) (*Dataset, error) {
	ds := NewDataset()
	dec := json.NewDecoder(r)
	if err := dec.Decode(ds); err != nil {
		return nil, fmt.Errorf("greengrids: decoding dataset: %w", err)
	}
	return ds, nil
}

// ReadDatasetFile reads a dataset from a JSON file.
func ReadDatasetFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("greengrids: opening dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f)
}

// Write writes the dataset to w as indented JSON, in document order.
func (d *Dataset) Write(w io.Writer) error {
	b, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return fmt.Errorf("greengrids: encoding dataset: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}

// WriteDatasetFile writes the dataset to a JSON file.
func WriteDatasetFile(d *Dataset, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("greengrids: creating dataset file: %w", err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// cellOutputData returns the values an output expression can refer to
// for one cell. Attributes that have not been computed evaluate to
// zero.
func cellOutputData(c *Cell) map[string]interface{} {
	transport, industrial, residential := c.region.SectorEmissions()
	initial, _ := c.region.Concentration()
	final, _ := c.region.AfterDispersion()
	before, after, captured, _ := c.region.Capture()
	return map[string]interface{}{
		"TotalEmission":        c.region.Emission(),
		"TransportEmission":    transport,
		"IndustrialEmission":   industrial,
		"ResidentialEmission":  residential,
		"InitialConcentration": initial,
		"FinalConcentration":   final,
		"BeforeCapture":        before,
		"AfterCapture":         after,
		"TotalCapture":         captured,
		"Neighbors":            float64(len(c.Neighbors)),
		"Row":                  float64(c.Row),
		"Col":                  float64(c.Col),
	}
}

// Outputter holds the configuration for writing simulation results to
// a CSV file.
//
// outputVariables maps output column names to expressions that define
// how they are calculated. Expressions can use the built-in cell
// variables and the functions in outputFunctions.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	outputFunctions map[string]govaluate.ExpressionFunction
	expressions     map[string]*govaluate.EvaluableExpression
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions:
//
// 'exp(x)' applies the exponential function e^x.
//
// 'log(x)' applies the natural logarithm.
//
// 'sqrt(x)' takes the square root.
//
// 'abs(x)' takes the absolute value.
//
// Every expression is parsed up front, and every variable it refers to
// is checked against the variables the model can supply, so a
// misspelled column definition fails here rather than at the end of a
// simulation.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	one := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("greengrids: got %d arguments for function %q, but need 1", len(arg), name)
			}
			return f(arg[0].(float64)), nil
		}
	}
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp":  one("exp", math.Exp),
		"log":  one("log", math.Log),
		"sqrt": one("sqrt", math.Sqrt),
		"abs":  one("abs", math.Abs),
	}
	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := &Outputter{
		fileName:        fileName,
		outputVariables: outputVariables,
		outputFunctions: defaultOutputFuncs,
		expressions:     make(map[string]*govaluate.EvaluableExpression, len(outputVariables)),
	}

	modelVars := cellOutputData(&Cell{region: new(Region)})
	for name, expr := range o.outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("greengrids: output variable %q: %v", name, err)
		}
		for _, v := range expression.Vars() {
			if _, ok := modelVars[v]; !ok {
				return nil, fmt.Errorf("greengrids: output variable %q: undefined variable name %q", name, v)
			}
		}
		o.expressions[name] = expression
	}
	return o, nil
}

// OutputNames returns the output column names in the order they will
// be written.
func (o *Outputter) OutputNames() []string {
	names := make([]string, 0, len(o.outputVariables))
	for name := range o.outputVariables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Output returns a DomainManipulator that writes the model's cells to
// the outputter's CSV file, one row per region in discovery order. The
// first two columns are the region name and the year; the remaining
// columns are the configured output variables in sorted name order.
func (o *Outputter) Output() DomainManipulator {
	return func(m *Model) error {
		f, err := os.Create(o.fileName)
		if err != nil {
			return fmt.Errorf("greengrids: creating output file: %w", err)
		}
		defer f.Close()

		w := csv.NewWriter(f)
		names := o.OutputNames()
		if err := w.Write(append([]string{"district", "year"}, names...)); err != nil {
			return err
		}
		row := make([]string, 0, len(names)+2)
		for _, c := range m.Cells {
			data := cellOutputData(c)
			row = append(row[:0], c.Name, m.Year)
			for _, name := range names {
				result, err := o.expressions[name].Evaluate(data)
				if err != nil {
					return fmt.Errorf("greengrids: evaluating output variable %q for %q: %v", name, c.Name, err)
				}
				v, ok := result.(float64)
				if !ok {
					return fmt.Errorf("greengrids: output variable %q for %q is not a number: %v", name, c.Name, result)
				}
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}
}
