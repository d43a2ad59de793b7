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

import "context"

// meshSource is a FieldSource over a test mesh with spatially constant
// fields, used to exercise stepping and boundary handling without a
// NetCDF fixture.
type meshSource struct {
	g       *Grid
	u, v, w float64
	kh      float64
	wet     func(host int) bool
}

var _ FieldSource = &meshSource{}
var _ gridded = &meshSource{}

func (s *meshSource) Grid() *Grid { return s.g }

func (s *meshSource) ReadData(ctx context.Context, t float64) error { return nil }

func (s *meshSource) FindHost(p *Particle, x, y float64) (HostStatus, int) {
	if p.Host >= 0 && p.Host < s.g.Nelems {
		status, host := s.g.FindHostLocal(x, y, p.Host)
		if status != SearchFail {
			return status, host
		}
	}
	return s.g.FindHostGlobal(x, y)
}

func (s *meshSource) SetLocalCoordinates(p *Particle) error {
	status, host := s.FindHost(p, p.X1, p.X2)
	if status != HostFound {
		return &BoundaryError{Status: status}
	}
	p.Host = host
	p.Phi = s.g.Barycentric(p.X1, p.X2, host)

	nlev := s.g.Siglev.Shape[0]
	lev := make([]float64, nlev)
	for k := 0; k < nlev; k++ {
		lev[k] = s.g.nodalSigma(s.g.Siglev, k, host, p.Phi)
	}
	nlay := s.g.Siglay.Shape[0]
	lay := make([]float64, nlay)
	for k := 0; k < nlay; k++ {
		lay[k] = s.g.nodalSigma(s.g.Siglay, k, host, p.Phi)
	}
	p.LevelLoc = locateSigma(lev, p.X3)
	p.LayerLoc = locateSigma(lay, p.X3)
	p.KLayer = p.LevelLoc.KUpper
	p.InVerticalBoundaryLayer = p.LayerLoc.BoundaryLayer
	return nil
}

func (s *meshSource) Velocity(t float64, p *Particle) (float64, float64, float64, error) {
	return s.u, s.v, s.w, nil
}

func (s *meshSource) VerticalEddyDiffusivity(t float64, p *Particle) (float64, error) {
	return s.kh, nil
}

func (s *meshSource) VerticalEddyDiffusivityDerivative(t float64, p *Particle) (float64, error) {
	return 0, nil
}

func (s *meshSource) HorizontalEddyViscosity(t float64, p *Particle) (float64, error) {
	return 0, nil
}

func (s *meshSource) HorizontalEddyViscosityGradient(t float64, p *Particle) (float64, float64, error) {
	return 0, 0, nil
}

func (s *meshSource) ZMin(t float64, p *Particle) float64 { return -1 }

func (s *meshSource) ZMax(t float64, p *Particle) float64 { return 0 }

func (s *meshSource) Bathymetry(p *Particle) float64 {
	return s.g.interpNodal(s.g.H, p.Host, p.Phi)
}

func (s *meshSource) SeaSurfaceElevation(t float64, p *Particle) float64 { return 0 }

func (s *meshSource) IsWet(t float64, host int) bool {
	if s.wet == nil {
		return true
	}
	return s.wet(host)
}
