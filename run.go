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
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
)

// convergenceCheckPeriod is how many iterations pass between
// convergence checks.
const convergenceCheckPeriod = 10

// Calculations returns a function that concurrently runs a series of
// calculations on all of the model grid cells. All calculators in one
// Calculations group run against the same cell back to back; when an
// ordering barrier is needed between calculators, compose them as
// separate Calculations entries in the model's RunFuncs.
func Calculations(calculators ...CellManipulator) DomainManipulator {

	nprocs := runtime.GOMAXPROCS(0) // number of processors
	var wg sync.WaitGroup

	return func(m *Model) error {
		// Concurrently run all of the calculators on all of the cells.
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				var c *Cell
				for ii := pp; ii < len(m.Cells); ii += nprocs {
					c = m.Cells[ii]
					c.Lock() // Lock the cell to avoid race conditions
					for _, f := range calculators {
						f(c, m.Dt)
					}
					c.Unlock() // Unlock the cell: we're done editing it
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		return nil
	}
}

// ConvergenceStatus holds the result of one convergence check.
type ConvergenceStatus struct {
	// Iteration is the timestep at which the check ran.
	Iteration int

	// MaxDifference is the largest absolute drift of any region's
	// concentration from its seeded value.
	MaxDifference float64

	// Converged reports whether the drift fell below the configured
	// threshold.
	Converged bool
}

func (s ConvergenceStatus) String() string {
	return fmt.Sprintf("Iteration %-4d  max seed drift=%.4g  converged=%v",
		s.Iteration, s.MaxDifference, s.Converged)
}

// SteadyConvergenceCheck returns a DomainManipulator that decides when
// a simulation is finished and sets the Done flag. If steps > 0, the
// simulation runs at most that many timesteps; otherwise the
// configured MaxIterations bounds it. Independently of the bound,
// every tenth timestep the current concentrations are compared
// against the seeded ones, and the run stops early once no region has
// drifted by more than the configured threshold. If cConverge is not
// nil, the result of each check is sent to it.
func SteadyConvergenceCheck(steps int, cConverge chan ConvergenceStatus) DomainManipulator {

	iteration := 0
	var diffs []float64

	return func(m *Model) error {
		iteration++
		budget := steps
		if budget < 1 {
			budget = m.Config.MaxIterations
		}
		if iteration%convergenceCheckPeriod == 0 && len(m.Cells) > 0 {
			diffs = diffs[:0]
			for _, c := range m.Cells {
				diffs = append(diffs, math.Abs(c.Cf-c.C0))
			}
			status := ConvergenceStatus{
				Iteration:     iteration,
				MaxDifference: floats.Max(diffs),
			}
			if status.MaxDifference < m.Config.ConvergenceThreshold {
				status.Converged = true
				m.Done = true
			}
			if cConverge != nil {
				cConverge <- status
			}
		}
		if iteration >= budget {
			m.Done = true
		}
		return nil
	}
}

// SimulationStatus holds information about the progress of a
// simulation.
type SimulationStatus struct {
	// Iteration is the number of timesteps completed so far.
	Iteration int

	// Walltime is the time elapsed since the simulation started, and
	// StepTime is the time the most recent timestep took.
	Walltime, StepTime time.Duration

	// SystemTotal is the sum of all cell concentrations, useful for
	// watching mass drift.
	SystemTotal float64
}

func (s *SimulationStatus) String() string {
	return fmt.Sprintf("Iteration %-4d  walltime=%6.3gs  Δwalltime=%4.2gms  total=%.4g",
		s.Iteration, s.Walltime.Seconds(),
		float64(s.StepTime.Nanoseconds())/1e6, s.SystemTotal)
}

// Log returns a DomainManipulator that sends a status message to c
// after every timestep.
func Log(c chan *SimulationStatus) DomainManipulator {
	startTime := time.Now()
	timeStepTime := time.Now()

	iteration := 0
	var totals []float64

	return func(m *Model) error {
		iteration++
		totals = totals[:0]
		for _, cell := range m.Cells {
			totals = append(totals, cell.Cf)
		}
		if c != nil {
			c <- &SimulationStatus{
				Iteration:   iteration,
				Walltime:    time.Since(startTime),
				StepTime:    time.Since(timeStepTime),
				SystemTotal: floats.Sum(totals),
			}
		}
		timeStepTime = time.Now()
		return nil
	}
}
