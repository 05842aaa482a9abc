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

import "math"

// mooreOffsets are the eight (row, column) neighbor offsets, scanned
// in this exact order so that neighbor lists are reproducible from run
// to run.
var mooreOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Topology arranges an ordered sequence of region names on a square
// grid and derives which regions border which. Regions fill the grid
// row by row in the order given; when the region count is not a
// perfect square the last row is left ragged, so cells adjacent to the
// empty tail have fewer neighbors and adjacency is not necessarily
// symmetric in count.
type Topology struct {
	// GridSize is the side length of the square grid, the ceiling of
	// the square root of the region count.
	GridSize int

	names     []string
	positions map[string][2]int
	neighbors map[string][]string
}

// NewTopology builds the grid topology for names, which must be in
// discovery order.
func NewTopology(names []string) *Topology {
	t := &Topology{
		names:     append([]string(nil), names...),
		positions: make(map[string][2]int, len(names)),
		neighbors: make(map[string][]string, len(names)),
	}
	if len(names) == 0 {
		return t
	}
	t.GridSize = int(math.Ceil(math.Sqrt(float64(len(t.names)))))
	for i, name := range t.names {
		t.positions[name] = [2]int{i / t.GridSize, i % t.GridSize}
	}
	for i, name := range t.names {
		row, col := i/t.GridSize, i%t.GridSize
		var nb []string
		for _, off := range mooreOffsets {
			r, c := row+off[0], col+off[1]
			if r < 0 || r >= t.GridSize || c < 0 || c >= t.GridSize {
				continue
			}
			j := r*t.GridSize + c
			if j >= len(t.names) {
				// Ragged tail of the last row.
				continue
			}
			nb = append(nb, t.names[j])
		}
		t.neighbors[name] = nb
	}
	return t
}

// Len returns the number of regions placed on the grid.
func (t *Topology) Len() int {
	return len(t.names)
}

// Names returns the region names in placement order.
func (t *Topology) Names() []string {
	return append([]string(nil), t.names...)
}

// Neighbors returns the named region's neighbors in scan order, or nil
// for a region that is not on the grid. The returned slice is shared
// and must not be modified.
func (t *Topology) Neighbors(name string) []string {
	if t == nil {
		return nil
	}
	return t.neighbors[name]
}

// Position returns the grid coordinates of a region.
func (t *Topology) Position(name string) (row, col int, ok bool) {
	p, ok := t.positions[name]
	return p[0], p[1], ok
}
