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
	"math"
)

// ColumnSource is a single-water-column field source in the style of a
// GOTM turbulence-model run: no horizontal structure, analytic or
// tabulated vertical diffusivity, and optional prescribed velocity.
// It is also the workhorse for analytic verification runs.
type ColumnSource struct {
	// Bottom and Surface bound the vertical coordinate.
	Bottom, Surface float64

	// Kh returns the vertical eddy diffusivity at height z. Nil means
	// zero diffusivity.
	Kh func(z float64) float64

	// KhDeriv returns dKh/dz at z. When nil the derivative is taken
	// by central difference with the standard increment.
	KhDeriv func(z float64) float64

	// Ah and AhGrad prescribe the horizontal eddy viscosity field.
	// Nil means zero.
	Ah     func(x, y float64) float64
	AhGrad func(x, y float64) (dax, day float64)

	// Vel prescribes the velocity field. Nil means quiescent water.
	Vel func(t, x, y, z float64) (u, v, w float64)

	// Depth is the static bathymetry reported for diagnostics.
	Depth float64
}

var _ FieldSource = &ColumnSource{}

// ReadData is a no-op: the column holds no time-indexed snapshots.
func (s *ColumnSource) ReadData(ctx context.Context, t float64) error { return nil }

// SetLocalCoordinates is trivial for a column: there is a single
// notional element.
func (s *ColumnSource) SetLocalCoordinates(p *Particle) error {
	p.Host = 0
	p.Phi = [3]float64{1, 0, 0}
	return nil
}

// FindHost always resolves to the single column element.
func (s *ColumnSource) FindHost(p *Particle, x, y float64) (HostStatus, int) {
	return HostFound, 0
}

func (s *ColumnSource) Velocity(t float64, p *Particle) (u, v, w float64, err error) {
	if s.Vel == nil {
		return 0, 0, 0, nil
	}
	u, v, w = s.Vel(t, p.X1, p.X2, p.X3)
	if math.IsNaN(u) || math.IsNaN(v) || math.IsNaN(w) {
		return 0, 0, 0, &NumericalError{ParticleID: p.ID, Quantity: "velocity"}
	}
	return u, v, w, nil
}

func (s *ColumnSource) VerticalEddyDiffusivity(t float64, p *Particle) (float64, error) {
	if s.Kh == nil {
		return 0, nil
	}
	return s.Kh(p.X3), nil
}

func (s *ColumnSource) VerticalEddyDiffusivityDerivative(t float64, p *Particle) (float64, error) {
	if s.Kh == nil {
		return 0, nil
	}
	if s.KhDeriv != nil {
		return s.KhDeriv(p.X3), nil
	}
	inc := sigmaDerivInc * (s.Surface - s.Bottom)
	zp, zm := p.X3+inc, p.X3-inc
	if zp > s.Surface {
		zp, zm = p.X3, p.X3-2*inc
	} else if zm < s.Bottom {
		zp, zm = p.X3+2*inc, p.X3
	}
	return (s.Kh(zp) - s.Kh(zm)) / (zp - zm), nil
}

func (s *ColumnSource) HorizontalEddyViscosity(t float64, p *Particle) (float64, error) {
	if s.Ah == nil {
		return 0, nil
	}
	return s.Ah(p.X1, p.X2), nil
}

func (s *ColumnSource) HorizontalEddyViscosityGradient(t float64, p *Particle) (dax, day float64, err error) {
	if s.AhGrad == nil {
		return 0, 0, nil
	}
	dax, day = s.AhGrad(p.X1, p.X2)
	return dax, day, nil
}

func (s *ColumnSource) ZMin(t float64, p *Particle) float64 { return s.Bottom }

func (s *ColumnSource) ZMax(t float64, p *Particle) float64 { return s.Surface }

func (s *ColumnSource) Bathymetry(p *Particle) float64 { return s.Depth }

func (s *ColumnSource) SeaSurfaceElevation(t float64, p *Particle) float64 { return 0 }

func (s *ColumnSource) IsWet(t float64, host int) bool { return true }
