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

	"github.com/ctessum/sparse"
)

// FieldSource is the sole interface between the particle-tracking core
// and the hydrodynamic data layer. Implementations bind a mesh and a
// pair of time-bounded field snapshots and answer pointwise queries at
// arbitrary (t, x, y, z). All query methods require that
// SetLocalCoordinates has been called for the particle since it last
// moved; they never mutate the particle.
//
// ReadData is called serially between particle fan-outs, so snapshot
// refreshes are atomic with respect to particle updates.
type FieldSource interface {
	// ReadData ensures the held snapshots bound simulation time t,
	// advancing the reading frame when t has moved past tNext. It is
	// a no-op when t is already bounded.
	ReadData(ctx context.Context, t float64) error

	// SetLocalCoordinates resolves the particle's host element,
	// barycentric coordinates, and vertical layer indices from its
	// position. Returns *BoundaryError when the position escapes the
	// domain.
	SetLocalCoordinates(p *Particle) error

	// FindHost locates the element containing (x, y), walking from
	// the particle's current host when possible.
	FindHost(p *Particle, x, y float64) (HostStatus, int)

	// Velocity returns the Cartesian velocity (u, v, w) at the
	// particle position, in m/s.
	Velocity(t float64, p *Particle) (u, v, w float64, err error)

	// VerticalEddyDiffusivity returns k at the particle position in
	// the working vertical coordinate.
	VerticalEddyDiffusivity(t float64, p *Particle) (float64, error)

	// VerticalEddyDiffusivityDerivative returns dk/dz at the particle
	// position by central difference.
	VerticalEddyDiffusivityDerivative(t float64, p *Particle) (float64, error)

	// HorizontalEddyViscosity returns A_h at the particle position.
	HorizontalEddyViscosity(t float64, p *Particle) (float64, error)

	// HorizontalEddyViscosityGradient returns (dA/dx, dA/dy) at the
	// particle position, computed from nodal values with the
	// element's constant linear basis.
	HorizontalEddyViscosityGradient(t float64, p *Particle) (dax, day float64, err error)

	// ZMin and ZMax bound the vertical coordinate at the particle's
	// horizontal position and time.
	ZMin(t float64, p *Particle) float64
	ZMax(t float64, p *Particle) float64

	// Bathymetry returns the static water depth (positive down) at
	// the particle's horizontal position.
	Bathymetry(p *Particle) float64

	// SeaSurfaceElevation returns ζ at the particle's horizontal
	// position and time.
	SeaSurfaceElevation(t float64, p *Particle) float64

	// IsWet reports whether the given element is wet at time t.
	// Consulted only when beaching is enabled.
	IsWet(t float64, host int) bool
}

// frame holds one pair of time-bounded field snapshots. Fields are nil
// when the source file does not carry them.
type frame struct {
	tLast, tNext float64

	// Nodal sea-surface elevation, shape [nnodes].
	zetaLast, zetaNext *sparse.DenseArray

	// Element-centred velocity on sigma layers, shape [nlay][nelems].
	uLast, uNext *sparse.DenseArray
	vLast, vNext *sparse.DenseArray

	// Nodal sigma velocity and vertical eddy diffusivity on sigma
	// levels, shape [nlev][nnodes].
	omegaLast, omegaNext *sparse.DenseArray
	khLast, khNext       *sparse.DenseArray

	// Nodal horizontal eddy viscosity on sigma layers, shape
	// [nlay][nnodes].
	ahLast, ahNext *sparse.DenseArray

	// Element wet mask, shape [nelems]; nil when the source carries
	// no wetting and drying.
	wetLast, wetNext *sparse.DenseArray
}

// bounds reports whether t falls inside the held reading frame.
func (f *frame) bounds(t float64) bool {
	return t >= f.tLast && t < f.tNext
}
