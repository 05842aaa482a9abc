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

// round2 rounds to two decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SeedConcentrations returns a DomainManipulator that sets every
// cell's starting concentration to its region's total emission divided
// by the cell area. Regions without a recorded emission seed at zero.
// The seeded values are exact, not rounded, and are kept as the
// baseline the convergence check compares against.
func SeedConcentrations() DomainManipulator {
	return func(m *Model) error {
		for _, c := range m.Cells {
			v := c.region.Emission() / m.Config.CellArea
			c.C0 = v
			c.Ci = v
			c.Cf = v
			c.region.SetConcentration(v)
		}
		return nil
	}
}

// AdvanceStep returns a CellManipulator that promotes the previous
// timestep's result to the current timestep's starting concentration.
// It must run on every cell before any cell exchanges with its
// neighbors, so that all exchanges within a timestep read the same
// snapshot.
func AdvanceStep() CellManipulator {
	return func(c *Cell, Δt float64) {
		c.Ci = c.Cf
	}
}

// NeighborExchange returns a CellManipulator that applies one timestep
// of the exchange rule: the cell loses dispersionRate times its
// concentration toward each neighbor, and gains dispersionRate times
// each neighbor's concentration scaled by the wind factor. The result
// is clamped at zero and rounded to two decimal places, and is
// mirrored to the region record so that queries always see the latest
// state.
//
// Outgoing mass scales with the cell's own neighbor count while each
// neighbor's incoming contribution does not, so mass is conserved only
// on a full grid with neutral wind. Wind inflates inbound
// contributions uniformly, injecting mass rather than transporting it.
func NeighborExchange(c *SimConfig, wind *Wind) CellManipulator {
	factor := wind.Factor(c.WindEffect)
	rate := c.DispersionRate
	return func(cell *Cell, Δt float64) {
		outgoing := cell.Ci * rate * float64(len(cell.Neighbors)) * Δt
		var incoming float64
		for _, nb := range cell.Neighbors {
			incoming += nb.Ci * rate * factor * Δt
		}
		v := cell.Ci - outgoing + incoming
		if v < 0 {
			v = 0
		}
		cell.Cf = round2(v)
		cell.region.SetConcentration(cell.Cf)
	}
}

// FinalizeConcentrations returns a DomainManipulator that snapshots
// each cell's final concentration into its region's post-dispersion
// attribute. The current concentration attribute is left in place.
func FinalizeConcentrations() DomainManipulator {
	return func(m *Model) error {
		for _, c := range m.Cells {
			c.region.SetAfterDispersion(c.Cf)
		}
		return nil
	}
}
