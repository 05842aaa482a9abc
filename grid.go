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
	"math"

	"github.com/ctessum/sparse"
)

// ConcentrationGrid renders a year's current concentrations onto its
// square grid as a dense array indexed by (row, column). Grid slots
// with no region, and regions with no computed concentration, hold
// NaN so renderers can tell them apart from zero.
func ConcentrationGrid(ds *Dataset, year string) (*sparse.DenseArray, error) {
	return concentrationGrid(ds, year, (*Region).Concentration)
}

// FinalConcentrationGrid is like ConcentrationGrid but renders the
// post-dispersion snapshots.
func FinalConcentrationGrid(ds *Dataset, year string) (*sparse.DenseArray, error) {
	return concentrationGrid(ds, year, (*Region).AfterDispersion)
}

func concentrationGrid(ds *Dataset, year string, value func(*Region) (float64, bool)) (*sparse.DenseArray, error) {
	yd := ds.Year(year)
	if yd == nil {
		return nil, MissingYearError{Year: year}
	}
	names := yd.RegionNames()
	t := NewTopology(names)
	a := sparse.ZerosDense(t.GridSize, t.GridSize)
	for i := range a.Elements {
		a.Elements[i] = math.NaN()
	}
	for _, name := range names {
		if v, ok := value(yd.Region(name)); ok {
			row, col, _ := t.Position(name)
			a.Set(v, row, col)
		}
	}
	return a, nil
}
