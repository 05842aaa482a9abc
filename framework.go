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
	"fmt"
	"sync"
)

// DomainManipulator is a function that operates on the entire model
// domain.
type DomainManipulator func(m *Model) error

// CellManipulator is a function that operates on a single grid cell,
// where Δt is the timestep duration.
type CellManipulator func(c *Cell, Δt float64)

// SimConfig holds the tunable parameters of a dispersion run.
type SimConfig struct {
	// CellArea is the nominal area of each grid cell, used to convert
	// a region's total emission into its seeded concentration.
	CellArea float64

	// DispersionRate is the fraction of a cell's concentration that
	// leaks toward each of its neighbors per timestep.
	DispersionRate float64

	// WindEffect scales the wind speed's contribution to the inbound
	// advection multiplier.
	WindEffect float64

	// MaxIterations bounds the simulation length when the caller does
	// not request a specific step count.
	MaxIterations int

	// ConvergenceThreshold is the maximum absolute per-region drift
	// from the seeded concentrations below which the run is considered
	// steady.
	ConvergenceThreshold float64
}

// DefaultSimConfig returns the standard simulation parameters.
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		CellArea:             100,
		DispersionRate:       0.15,
		WindEffect:           0.3,
		MaxIterations:        50,
		ConvergenceThreshold: 0.01,
	}
}

// Valid returns an error if any parameter is outside its sensible
// range.
func (c *SimConfig) Valid() error {
	if c.CellArea <= 0 {
		return fmt.Errorf("greengrids: CellArea must be positive, got %g", c.CellArea)
	}
	if c.DispersionRate < 0 || c.DispersionRate > 1 {
		return fmt.Errorf("greengrids: DispersionRate must be in [0, 1], got %g", c.DispersionRate)
	}
	if c.WindEffect < 0 {
		return fmt.Errorf("greengrids: WindEffect must be non-negative, got %g", c.WindEffect)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("greengrids: MaxIterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.ConvergenceThreshold <= 0 {
		return fmt.Errorf("greengrids: ConvergenceThreshold must be positive, got %g", c.ConvergenceThreshold)
	}
	return nil
}

// Cell is one region placed on the simulation grid.
type Cell struct {
	// Name is the region's name in the dataset.
	Name string

	// Row and Col are the cell's grid coordinates.
	Row, Col int

	// C0 is the concentration seeded at the start of the run, Ci is
	// the concentration at the beginning of the current timestep, and
	// Cf is the concentration being computed for the end of it. All
	// cells advance Ci together before any cell computes Cf, so each
	// timestep sees a consistent snapshot of its neighbors.
	C0, Ci, Cf float64

	// Neighbors are the bordering cells in scan order.
	Neighbors []*Cell

	region *Region

	sync.RWMutex
}

func (c *Cell) String() string {
	return fmt.Sprintf("Cell{%s: row=%d, col=%d}", c.Name, c.Row, c.Col)
}

// Region returns the dataset record this cell is a view over. Writes
// to the cell's concentration are mirrored there.
func (c *Cell) Region() *Region {
	return c.region
}

// Model is a dispersion simulation domain. Simulations are composed
// from three lists of manipulator functions: InitFuncs set up the
// domain, RunFuncs are applied repeatedly until one of them marks the
// model Done, and CleanupFuncs finish the simulation.
type Model struct {
	InitFuncs    []DomainManipulator
	RunFuncs     []DomainManipulator
	CleanupFuncs []DomainManipulator

	// Config holds the simulation parameters. If it is nil when Init
	// runs, DefaultSimConfig is used.
	Config *SimConfig

	// Cells are the grid cells in region discovery order.
	Cells []*Cell

	// Topology is the grid the cells are arranged on.
	Topology *Topology

	// Year is the dataset year the domain was built from.
	Year string

	// Dt is the timestep duration. It defaults to 1.
	Dt float64

	// Done signals that the simulation has converged or exhausted its
	// step budget.
	Done bool

	index map[string]*Cell
}

// Init initializes the model by running its InitFuncs in order.
func (m *Model) Init() error {
	if m.Config == nil {
		m.Config = DefaultSimConfig()
	}
	if err := m.Config.Valid(); err != nil {
		return err
	}
	if m.Dt == 0 {
		m.Dt = 1
	}
	for _, f := range m.InitFuncs {
		if err := f(m); err != nil {
			return fmt.Errorf("greengrids: initializing model: %w", err)
		}
	}
	return nil
}

// Run repeatedly applies the model's RunFuncs, in order, until one of
// them sets Done.
func (m *Model) Run() error {
	for !m.Done {
		for _, f := range m.RunFuncs {
			if err := f(m); err != nil {
				return fmt.Errorf("greengrids: running simulation: %w", err)
			}
		}
	}
	return nil
}

// Cleanup finishes the simulation by running the model's CleanupFuncs
// in order.
func (m *Model) Cleanup() error {
	for _, f := range m.CleanupFuncs {
		if err := f(m); err != nil {
			return fmt.Errorf("greengrids: cleaning up simulation: %w", err)
		}
	}
	return nil
}

// Cell returns the grid cell for the named region, or nil if the
// domain does not contain it.
func (m *Model) Cell(name string) *Cell {
	return m.index[name]
}

// RegionGrid returns a DomainManipulator that builds the simulation
// grid for one year of a dataset: it arranges the year's regions on a
// square grid in discovery order and links each cell to its
// neighbors. It fails, leaving the dataset untouched, if the year is
// not present.
func RegionGrid(ds *Dataset, year string) DomainManipulator {
	return func(m *Model) error {
		yd := ds.Year(year)
		if yd == nil {
			return MissingYearError{Year: year}
		}
		names := yd.RegionNames()
		m.Topology = NewTopology(names)
		m.Year = year
		m.Cells = make([]*Cell, 0, len(names))
		m.index = make(map[string]*Cell, len(names))
		for _, name := range names {
			row, col, _ := m.Topology.Position(name)
			c := &Cell{
				Name:   name,
				Row:    row,
				Col:    col,
				region: yd.Region(name),
			}
			m.Cells = append(m.Cells, c)
			m.index[name] = c
		}
		for _, c := range m.Cells {
			for _, nb := range m.Topology.Neighbors(c.Name) {
				c.Neighbors = append(c.Neighbors, m.index[nb])
			}
		}
		return nil
	}
}
