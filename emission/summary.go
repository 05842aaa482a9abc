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

package emission

import (
	"fmt"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/HMNS19/greengrids"
	"github.com/ctessum/unit"
	"gonum.org/v1/gonum/floats"
)

var yearDim unit.Dimension

func init() {
	yearDim = unit.NewDimension("yr")
}

// kilogramsPerYear is the dimension set for annual emission rates.
var kilogramsPerYear = unit.Dimensions{
	unit.MassDim: 1,
	yearDim:      -1,
}

// Stored emission values are tonnes per year.
const kilogramsPerTonne = 1000

// Summary aggregates the stored district emission totals for one year.
// The distribution statistics are in tonnes per year.
type Summary struct {
	Year      string
	Districts int

	// Total is the summed emission of all districts [kg/yr].
	Total *unit.Unit

	Mean, Min, Max, StdDev float64
}

// Summarize aggregates the stored district emission totals for one
// year. Districts without a generated inventory are left out of the
// statistics.
func Summarize(ds *greengrids.Dataset, year string) (*Summary, error) {
	yd := ds.Year(year)
	if yd == nil {
		return nil, greengrids.MissingYearError{Year: year}
	}
	var totals []float64
	for _, name := range yd.RegionNames() {
		if r := yd.Region(name); r.HasEmission() {
			totals = append(totals, r.Emission())
		}
	}
	s := &Summary{Year: year, Districts: len(totals)}
	if len(totals) == 0 {
		s.Total = unit.New(0, kilogramsPerYear)
		return s, nil
	}
	s.Total = unit.New(floats.Sum(totals)*kilogramsPerTonne, kilogramsPerYear)
	s.Mean = stats.StatsMean(totals)
	s.Min = stats.StatsMin(totals)
	s.Max = stats.StatsMax(totals)
	if len(totals) > 1 {
		s.StdDev = stats.StatsSampleStandardDeviation(totals)
	}
	return s, nil
}

func (s *Summary) String() string {
	return fmt.Sprintf("year %s: %d districts, total %v, "+
		"mean %.2f t/yr in [%.2f, %.2f], sd %.2f",
		s.Year, s.Districts, s.Total, s.Mean, s.Min, s.Max, s.StdDev)
}
