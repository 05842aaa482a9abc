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

// Package greengrids implements a grid-based CO₂ dispersion model for
// district survey data. Districts are arranged on a square grid in the
// order they appear in the dataset, seeded with concentrations derived
// from their emissions, and then exchange concentration with their
// Moore neighbors over discrete timesteps until the system settles or
// a step budget runs out.
package greengrids

// Version is the version of this software.
const Version = "0.3.1"

// DefaultSimulation assembles a Model that runs the standard
// dispersion pipeline against one year of a dataset: build the region
// grid, seed concentrations from emissions, exchange with neighbors
// each timestep, check for convergence every tenth step, and snapshot
// the final concentrations when done. If steps > 0 it bounds the run
// length, otherwise the configured MaxIterations does. cLog and
// cConverge may be nil; if they are not, the caller must drain them
// while the simulation runs.
func DefaultSimulation(ds *Dataset, year string, steps int, wind *Wind, c *SimConfig, cLog chan *SimulationStatus, cConverge chan ConvergenceStatus) *Model {
	if c == nil {
		c = DefaultSimConfig()
	}
	return &Model{
		Config: c,
		InitFuncs: []DomainManipulator{
			RegionGrid(ds, year),
			SeedConcentrations(),
		},
		RunFuncs: []DomainManipulator{
			Log(cLog),
			Calculations(AdvanceStep()),
			Calculations(NeighborExchange(c, wind)),
			SteadyConvergenceCheck(steps, cConverge),
		},
		CleanupFuncs: []DomainManipulator{
			FinalizeConcentrations(),
		},
	}
}

// RunDispersion runs a complete dispersion simulation for one year of
// a dataset, writing per-step concentrations and the final snapshot
// back to the year's regions. It returns a MissingYearError, with the
// dataset untouched, if the year is not present.
func RunDispersion(ds *Dataset, year string, steps int, wind *Wind, c *SimConfig) error {
	m := DefaultSimulation(ds, year, steps, wind, c, nil, nil)
	if err := m.Init(); err != nil {
		return err
	}
	if err := m.Run(); err != nil {
		return err
	}
	return m.Cleanup()
}

// Reset removes the concentration and post-dispersion attributes from
// every region in the given year, so that queries report no data for
// them rather than zero. Emissions and all other attributes are left
// in place.
func Reset(ds *Dataset, year string) error {
	yd := ds.Year(year)
	if yd == nil {
		return MissingYearError{Year: year}
	}
	for _, name := range yd.RegionNames() {
		yd.Region(name).ClearConcentrations()
	}
	return nil
}
