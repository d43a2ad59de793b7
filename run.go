/*
Copyright © 2026 the PyLag authors.
This file is part of PyLag.

PyLag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PyLag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PyLag.  If not, see <http://www.gnu.org/licenses/>.
*/

package pylag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ReadData returns a run function that refreshes the field snapshots
// so they bound the current simulation time. It runs serially before
// the particle fan-out, so a snapshot swap is atomic with respect to
// particle updates. The per-read timeout bounds each refresh; zero
// means no deadline.
func ReadData(timeout time.Duration) DomainManipulator {
	return func(m *Model) error {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return m.DS.ReadData(ctx, m.T)
	}
}

// Steppers returns a run function that advances every particle by one
// timestep, fanning out across GOMAXPROCS workers. Each worker mutates
// only its own stride of the particle array; the field snapshots and
// mesh are read-only during the fan-out. Joining the workers is the
// synchronisation barrier before the next data read.
func Steppers(num NumMethod) DomainManipulator {
	nprocs := runtime.GOMAXPROCS(0)

	return func(m *Model) error {
		var wg sync.WaitGroup
		errs := make([]error, nprocs)
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				defer wg.Done()
				for i := pp; i < len(m.Particles); i += nprocs {
					p := m.Particles[i]

					switch p.Status {
					case StatusBeached:
						if m.DS.IsWet(m.T, p.Host) {
							p.Status = StatusActive
						} else {
							continue
						}
					case StatusActive:
					default:
						continue
					}

					before := p.Status
					if err := num.Step(m.DS, m.T, p); err != nil {
						var ne *NumericalError
						if errors.As(err, &ne) {
							// A NaN in a sampled field loses the
							// particle, not the run.
							log.WithFields(log.Fields{
								"particle": p.ID, "t": m.T,
							}).Warn(ne.Error())
							p.Status = StatusOutOfDomain
							continue
						}
						errs[pp] = err
						return
					}

					if p.Status == StatusActive {
						if m.Config.Simulation.AllowBeaching && !m.DS.IsWet(m.T, p.Host) {
							p.Status = StatusBeached
						} else if err := m.applyRestoring(p); err != nil {
							if _, ok := boundaryStatus(err); ok {
								p.Status = StatusOutOfDomain
							} else {
								errs[pp] = err
								return
							}
						}
					}
					if m.Config.General.FullLogging && p.Status != before {
						log.WithFields(log.Fields{
							"particle": p.ID, "t": m.T,
						}).Debugf("status %s -> %s", before, p.Status)
					}
				}
			}(pp)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// SimulationDone returns a run function that ends the run once the
// clock has covered the configured span.
func SimulationDone() DomainManipulator {
	return func(m *Model) error {
		if m.T+m.Dt >= m.EndTime {
			m.Done = true
		}
		return nil
	}
}

// SetDuration returns an init function that derives the simulated
// span from the configured start and end datetimes.
func SetDuration() DomainManipulator {
	return func(m *Model) error {
		d, err := m.Config.Duration()
		if err != nil {
			return err
		}
		m.EndTime = d
		return nil
	}
}

// Log returns a run function that writes step progress to w.
func Log(w io.Writer) DomainManipulator {
	startTime := time.Now()
	stepTime := time.Now()

	return func(m *Model) error {
		active := 0
		for _, p := range m.Particles {
			if p.Status == StatusActive {
				active++
			}
		}
		fmt.Fprintf(w, "Step %-6d  t=%8.0fs  walltime=%6.3gh  Δwalltime=%4.2gs  active=%d/%d\n",
			m.nStep, m.T, time.Since(startTime).Hours(),
			time.Since(stepTime).Seconds(), active, len(m.Particles))
		stepTime = time.Now()
		return nil
	}
}

// RunPeriodically wraps a run function so it executes only every
// interval seconds of simulated time.
func RunPeriodically(interval float64, f DomainManipulator) DomainManipulator {
	elapsed := 0.0
	return func(m *Model) error {
		elapsed += m.Dt
		if elapsed >= interval {
			elapsed = 0
			return f(m)
		}
		return nil
	}
}
