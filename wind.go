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

// Wind describes the prevailing wind during a dispersion run.
type Wind struct {
	// Speed is the wind speed in arbitrary units; it scales the
	// advection multiplier linearly.
	Speed float64 `json:"speed"`

	// Direction is one of the eight compass labels N, NE, E, SE, S,
	// SW, W, or NW. An unrecognized label disables the wind term.
	Direction string `json:"direction"`
}

// compassVectors maps each compass label to its (row, column) unit
// vector on the grid, with north pointing toward lower row indices.
var compassVectors = map[string][2]int{
	"N":  {-1, 0},
	"NE": {-1, 1},
	"E":  {0, 1},
	"SE": {1, 1},
	"S":  {1, 0},
	"SW": {1, -1},
	"W":  {0, -1},
	"NW": {-1, -1},
}

// Vector returns the grid unit vector for the wind's direction. ok is
// false for an unrecognized label.
func (w *Wind) Vector() (dr, dc int, ok bool) {
	if w == nil {
		return 0, 0, false
	}
	v, ok := compassVectors[w.Direction]
	return v[0], v[1], ok
}

// Factor returns the multiplier applied to all inbound neighbor
// contributions: 1 + speed × windEffect. The same factor applies to
// every edge no matter where the neighbor lies relative to the wind;
// the direction only gates whether the wind term is applied at all.
// A nil wind or an unrecognized direction yields the neutral factor 1.
func (w *Wind) Factor(windEffect float64) float64 {
	if w == nil {
		return 1
	}
	if _, ok := compassVectors[w.Direction]; !ok {
		return 1
	}
	return 1 + w.Speed*windEffect
}
