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
	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/emission"
)

// Result reports the stored capture outcome for one district.
type Result struct {
	District         string             `json:"district"`
	Year             string             `json:"year"`
	BeforeCapture    float64            `json:"co2_before_capture"`
	AfterCapture     float64            `json:"co2_after_capture"`
	TotalCapture     float64            `json:"total_capture"`
	PercentReduction float64            `json:"percent_reduction"`
	Interventions    map[string]float64 `json:"interventions"`
	TotalEmission    float64            `json:"total_emission"`
}

// Results reports the stored capture outcome for every district of a
// year, in dataset order. Districts that have not been captured report
// zeros. If s is non-nil each record also lists the scenario's
// interventions with the capture fraction applied to that district. It
// returns nil if the year is absent.
//
// A nil classifier uses the built-in district classification.
func Results(ds *greengrids.Dataset, year string, s *Scenario, c *emission.Classifier) []*Result {
	if c == nil {
		c = emission.NewClassifier()
	}
	yd := ds.Year(year)
	if yd == nil {
		return nil
	}
	var out []*Result
	for _, name := range yd.RegionNames() {
		r := yd.Region(name)
		res := &Result{
			District:      name,
			Year:          year,
			Interventions: map[string]float64{},
			TotalEmission: r.Emission(),
		}
		if before, after, captured, ok := r.Capture(); ok {
			res.BeforeCapture = before
			res.AfterCapture = after
			res.TotalCapture = captured
			if before > 0 {
				res.PercentReduction = round2(captured / before * 100)
			}
		}
		if s != nil {
			class := c.Classify(name)
			for _, iv := range s.Interventions {
				res.Interventions[iv.Name()] = iv.Fraction(class)
			}
		}
		out = append(out, res)
	}
	return out
}
