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
	"errors"
	"math"
)

// ItMethod computes the displacement contribution of a single physical
// process over one (sub-)step. Implementations never mutate the
// particle; the contribution accumulates into delta. A returned status
// other than HostFound reports a boundary interaction discovered while
// evaluating the process, with delta left at zero, so the caller can
// intervene.
type ItMethod interface {
	Step(ds FieldSource, t float64, p *Particle, delta *Delta) (HostStatus, error)
	Timestep() float64
}

// boundaryStatus extracts the host status from a SetLocalCoordinates
// error, distinguishing boundary interactions from faults.
func boundaryStatus(err error) (HostStatus, bool) {
	var be *BoundaryError
	if errors.As(err, &be) {
		return be.Status, true
	}
	return HostFound, false
}

// AdvRK4 is classical fourth-order Runge-Kutta advection.
type AdvRK4 struct {
	Dt float64
}

func (m *AdvRK4) Timestep() float64 { return m.Dt }

// Step evaluates the velocity at the four RK4 stages. Between stages
// the stage position is re-located on a scratch copy of the particle;
// if the stage position has left the domain, the step returns early
// with a zero delta and the boundary status.
func (m *AdvRK4) Step(ds FieldSource, t float64, p *Particle, delta *Delta) (HostStatus, error) {
	stageTimes := [4]float64{0, 0.5, 0.5, 1}
	var kx, ky, kz [4]float64

	u, v, w, err := ds.Velocity(t, p)
	if err != nil {
		return HostFound, err
	}
	kx[0], ky[0], kz[0] = u*m.Dt, v*m.Dt, w*m.Dt

	for stage := 1; stage < 4; stage++ {
		c := stageTimes[stage]
		trial := *p
		trial.X1 = p.X1 + c*kx[stage-1]
		trial.X2 = p.X2 + c*ky[stage-1]
		trial.X3 = p.X3 + c*kz[stage-1]
		if err := ds.SetLocalCoordinates(&trial); err != nil {
			if status, ok := boundaryStatus(err); ok {
				return status, nil
			}
			return HostFound, err
		}
		u, v, w, err := ds.Velocity(t+c*m.Dt, &trial)
		if err != nil {
			return HostFound, err
		}
		kx[stage], ky[stage], kz[stage] = u*m.Dt, v*m.Dt, w*m.Dt
	}

	delta.DX += (kx[0] + 2*kx[1] + 2*kx[2] + kx[3]) / 6
	delta.DY += (ky[0] + 2*ky[1] + 2*ky[2] + ky[3]) / 6
	delta.DZ += (kz[0] + 2*kz[1] + 2*kz[2] + kz[3]) / 6
	return HostFound, nil
}

// AdvEuler is forward-Euler advection.
type AdvEuler struct {
	Dt float64
}

func (m *AdvEuler) Timestep() float64 { return m.Dt }

func (m *AdvEuler) Step(ds FieldSource, t float64, p *Particle, delta *Delta) (HostStatus, error) {
	u, v, w, err := ds.Velocity(t, p)
	if err != nil {
		return HostFound, err
	}
	delta.DX += u * m.Dt
	delta.DY += v * m.Dt
	delta.DZ += w * m.Dt
	return HostFound, nil
}

// DiffVisser is the well-mixed-consistent vertical random walk of
// Visser (1997). The diffusivity is evaluated at an advectively
// corrected midpoint z + k'Δt/2, reflected back inside the column when
// the correction overshoots a bound.
type DiffVisser struct {
	Dt float64
}

func (m *DiffVisser) Timestep() float64 { return m.Dt }

func (m *DiffVisser) Step(ds FieldSource, t float64, p *Particle, delta *Delta) (HostStatus, error) {
	kPrime, err := ds.VerticalEddyDiffusivityDerivative(t, p)
	if err != nil {
		return HostFound, err
	}

	zmin, zmax := ds.ZMin(t, p), ds.ZMax(t, p)
	zStar := p.X3 + 0.5*kPrime*m.Dt
	if zStar < zmin {
		zStar = 2*zmin - zStar
	} else if zStar > zmax {
		zStar = 2*zmax - zStar
	}

	trial := *p
	trial.X3 = zStar
	if err := ds.SetLocalCoordinates(&trial); err != nil {
		if status, ok := boundaryStatus(err); ok {
			return status, nil
		}
		return HostFound, err
	}
	kMid, err := ds.VerticalEddyDiffusivity(t, &trial)
	if err != nil {
		return HostFound, err
	}

	delta.DZ += kPrime*m.Dt + p.rng.uniform()*math.Sqrt(2*kMid*m.Dt*varianceFactor)
	return HostFound, nil
}

// DiffNaive is the uncorrected vertical random walk. It violates the
// well-mixed condition in non-uniform diffusivity and exists for
// comparison runs.
type DiffNaive struct {
	Dt float64
}

func (m *DiffNaive) Timestep() float64 { return m.Dt }

func (m *DiffNaive) Step(ds FieldSource, t float64, p *Particle, delta *Delta) (HostStatus, error) {
	k, err := ds.VerticalEddyDiffusivity(t, p)
	if err != nil {
		return HostFound, err
	}
	delta.DZ += p.rng.uniform() * math.Sqrt(2*k*m.Dt*varianceFactor)
	return HostFound, nil
}

// DiffHorizontal is the two-dimensional horizontal random walk driven
// by the horizontal eddy viscosity and its gradient.
type DiffHorizontal struct {
	Dt float64
}

func (m *DiffHorizontal) Timestep() float64 { return m.Dt }

func (m *DiffHorizontal) Step(ds FieldSource, t float64, p *Particle, delta *Delta) (HostStatus, error) {
	ah, err := ds.HorizontalEddyViscosity(t, p)
	if err != nil {
		return HostFound, err
	}
	dax, day, err := ds.HorizontalEddyViscosityGradient(t, p)
	if err != nil {
		return HostFound, err
	}
	amp := math.Sqrt(2 * ah * m.Dt * varianceFactor)
	delta.DX += dax*m.Dt + p.rng.uniform()*amp
	delta.DY += day*m.Dt + p.rng.uniform()*amp
	return HostFound, nil
}
