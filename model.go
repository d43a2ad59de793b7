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
	"fmt"
	"runtime"
	"sync"
)

// Model holds the current state of a particle-tracking run: the field
// source, the particle population, and the simulation clock. Behaviour
// is assembled from DomainManipulator pipelines: InitFuncs run once,
// RunFuncs run every timestep until Done, CleanupFuncs run at the end.
type Model struct {
	Config Config

	// DS supplies all Eulerian field data.
	DS FieldSource

	InitFuncs    []DomainManipulator
	RunFuncs     []DomainManipulator
	CleanupFuncs []DomainManipulator

	// Particles is the tracked population. Only the driver mutates
	// particle state.
	Particles []*Particle

	// seeds retains the initial population so ensembles can re-seed.
	seeds []Particle

	// T is the current simulation time in seconds since the start;
	// Dt the timestep; EndTime the total span.
	T, Dt, EndTime float64

	// Done terminates the run loop.
	Done bool

	nStep int
}

// DomainManipulator is a function that operates on the whole model
// state between or during timesteps.
type DomainManipulator func(m *Model) error

// Init runs the initialisation pipeline.
func (m *Model) Init() error {
	m.Dt = m.Config.Simulation.TimeStep
	for _, f := range m.InitFuncs {
		if err := f(m); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the per-timestep pipeline until the simulation is done
// or the context is cancelled. Cancellation is cooperative: the
// current timestep always completes.
func (m *Model) Run(ctx context.Context) error {
	for !m.Done {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pylag: run cancelled at t=%g s: %w", m.T, err)
		}
		for _, f := range m.RunFuncs {
			if err := f(m); err != nil {
				return err
			}
		}
		m.T += m.Dt
		m.nStep++
	}
	for _, f := range m.CleanupFuncs {
		if err := f(m); err != nil {
			return err
		}
	}
	return nil
}

// Seed installs the particle population, assigns the per-particle
// random streams, and resolves initial host elements with the global
// search. Seeds whose position cannot be located are marked out of
// domain rather than failing the run.
func (m *Model) Seed(particles []*Particle) error {
	m.Particles = particles
	for i, p := range m.Particles {
		if p.ID == 0 {
			p.ID = i
		}
		p.rng = newStreamRNG(m.Config.Simulation.Seed, p.ID)
		p.Host = -1
		if err := m.DS.SetLocalCoordinates(p); err != nil {
			if _, ok := boundaryStatus(err); ok {
				p.Status = StatusOutOfDomain
				continue
			}
			return fmt.Errorf("pylag.Seed: particle %d: %v", p.ID, err)
		}
		p.Status = StatusActive
	}
	m.seeds = make([]Particle, len(particles))
	for i, p := range particles {
		m.seeds[i] = *p
	}
	return nil
}

// Reseed restores the retained seed population, resetting the clock
// and every particle's random stream, so ensemble members rerun from
// identical initial conditions.
func (m *Model) Reseed() {
	for i := range m.seeds {
		*m.Particles[i] = m.seeds[i]
		m.Particles[i].rng = newStreamRNG(m.Config.Simulation.Seed, m.Particles[i].ID)
	}
	m.T = 0
	m.nStep = 0
	m.Done = false
}

// ParticleDiagnostics is the per-particle snapshot exposed to the
// output layer.
type ParticleDiagnostics struct {
	ID, GroupID int
	X1, X2, X3  float64
	Host        int
	H, Zeta     float64
	Status      Status
}

// Diagnostics gathers a snapshot of the whole population at time t,
// accumulating into per-worker buffers merged after the join.
// Particles that have left the domain stop contributing positions.
func (m *Model) Diagnostics(t float64) []ParticleDiagnostics {
	nprocs := runtime.GOMAXPROCS(0)
	bufs := make([][]ParticleDiagnostics, nprocs)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for i := pp; i < len(m.Particles); i += nprocs {
				p := m.Particles[i]
				d := ParticleDiagnostics{
					ID: p.ID, GroupID: p.GroupID,
					Status: p.Status,
				}
				if p.Status != StatusOutOfDomain {
					d.X1, d.X2, d.X3 = p.X1, p.X2, p.X3
					d.Host = p.Host
					d.H = m.DS.Bathymetry(p)
					d.Zeta = m.DS.SeaSurfaceElevation(t, p)
				} else {
					d.Host = -1
				}
				bufs[pp] = append(bufs[pp], d)
			}
		}(pp)
	}
	wg.Wait()

	out := make([]ParticleDiagnostics, 0, len(m.Particles))
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out
}

// applyRestoring pins the particle's vertical coordinate to a fixed
// depth below the moving surface, a fixed height above the bed, or the
// surface itself, after the step has committed.
func (m *Model) applyRestoring(p *Particle) error {
	s := &m.Config.Simulation
	if !s.SurfaceOnly && !s.DepthRestoring && !s.HeightRestoring {
		return nil
	}

	h := m.DS.Bathymetry(p)
	zeta := m.DS.SeaSurfaceElevation(m.T, p)
	depth := h + zeta
	if depth <= 0 {
		return nil
	}

	var zCart float64
	switch {
	case s.SurfaceOnly:
		zCart = zeta
	case s.DepthRestoring:
		zCart = zeta + s.FixedDepth
	case s.HeightRestoring:
		zCart = -h + s.FixedHeight
	}

	if m.Config.SigmaDepth() {
		p.X3 = (zCart - zeta) / depth
	} else {
		p.X3 = zCart
	}
	return m.DS.SetLocalCoordinates(p)
}
