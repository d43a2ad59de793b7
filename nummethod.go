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

// maxBCIters bounds the reflect-and-relocate loop after a land
// crossing; particles still outside after this many corrections are
// marked out of domain.
const maxBCIters = 10

// NumMethod composes the iterative methods into one model step,
// committing the particle's new state including boundary handling.
type NumMethod interface {
	Step(ds FieldSource, t float64, p *Particle) error
}

// dispatchTable is the per-run dispatch record: the concrete iterative
// methods and boundary calculators are chosen once at startup so the
// per-particle hot path involves no configuration lookups.
type dispatchTable struct {
	adv   ItMethod // nil when advection is disabled
	vdiff ItMethod // nil when vertical diffusion is disabled
	hdiff ItMethod // nil when horizontal diffusion is disabled

	horizBC HorizBoundary // nil marks land-crossing particles out of domain
	vertBC  VertBoundary
}

// gridded is implemented by field sources backed by an unstructured
// mesh; the horizontal boundary calculators need the mesh geometry.
type gridded interface {
	Grid() *Grid
}

// commitDelta advances the particle by the accumulated delta, running
// the horizontal boundary loop until a host resolves, then the
// vertical boundary condition, and finally recommitting the local
// coordinates. t1 is the time the step lands on.
func (dsp *dispatchTable) commitDelta(ds FieldSource, t1 float64, p *Particle, d *Delta) error {
	xOld, yOld := p.X1, p.X2
	xNew, yNew := xOld+d.DX, yOld+d.DY

	host := p.Host
	for iter := 0; ; iter++ {
		status, h := ds.FindHost(p, xNew, yNew)
		if status == HostFound {
			host = h
			break
		}
		switch status {
		case OpenCross, SearchFail:
			p.Status = StatusOutOfDomain
			return nil
		case LandCross:
			if dsp.horizBC == nil || iter >= maxBCIters {
				p.Status = StatusOutOfDomain
				return nil
			}
			g, ok := ds.(gridded)
			if !ok {
				xNew, yNew = xOld, yOld
				continue
			}
			var err error
			xNew, yNew, _, err = dsp.horizBC.Apply(g.Grid(), h, xOld, yOld, xNew, yNew)
			if err != nil {
				// Geometry did not yield a crossing edge; fall back
				// to restoring the pre-step position.
				xNew, yNew = xOld, yOld
			}
		}
	}

	p.X1, p.X2, p.Host = xNew, yNew, host
	if err := ds.SetLocalCoordinates(p); err != nil {
		if _, ok := boundaryStatus(err); ok {
			p.Status = StatusOutOfDomain
			return nil
		}
		return err
	}

	z := p.X3 + d.DZ
	zmin, zmax := ds.ZMin(t1, p), ds.ZMax(t1, p)
	if z < zmin || z > zmax {
		if dsp.vertBC != nil {
			var status Status
			z, status = dsp.vertBC.Apply(zmin, zmax, z)
			if status != StatusActive {
				p.X3 = z
				p.Status = status
				return nil
			}
		}
	}
	p.X3 = z
	return ds.SetLocalCoordinates(p)
}

// StdNumMethod runs every iterative method once per step on the start
// position, sums the contributions, and commits.
type StdNumMethod struct {
	dispatchTable
	Dt float64
}

// NewStdNumMethod composes the given iterative methods and boundary
// calculators; nil methods are skipped.
func NewStdNumMethod(dt float64, adv, vdiff, hdiff ItMethod, hbc HorizBoundary, vbc VertBoundary) *StdNumMethod {
	return &StdNumMethod{
		dispatchTable: dispatchTable{adv: adv, vdiff: vdiff, hdiff: hdiff, horizBC: hbc, vertBC: vbc},
		Dt:            dt,
	}
}

func (m *StdNumMethod) Step(ds FieldSource, t float64, p *Particle) error {
	var d Delta
	for _, it := range []ItMethod{m.adv, m.vdiff, m.hdiff} {
		if it == nil {
			continue
		}
		status, err := it.Step(ds, t, p, &d)
		if err != nil {
			return err
		}
		if status == OpenCross {
			p.Status = StatusOutOfDomain
			return nil
		}
		// A land interaction found mid-evaluation contributes no
		// displacement; the commit loop below handles any crossing of
		// the summed delta.
	}
	return m.commitDelta(ds, t+m.Dt, p, &d)
}

// OperatorSplit0 advects over nInner sub-steps, committing the
// position and checking boundaries after each, then applies one full
// diffusive step.
type OperatorSplit0 struct {
	dispatchTable
	Dt     float64
	NInner int
}

// NewOperatorSplit0 composes the operator-split method. The advective
// method must already carry the inner timestep Dt/nInner.
func NewOperatorSplit0(dt float64, nInner int, adv, vdiff, hdiff ItMethod, hbc HorizBoundary, vbc VertBoundary) *OperatorSplit0 {
	return &OperatorSplit0{
		dispatchTable: dispatchTable{adv: adv, vdiff: vdiff, hdiff: hdiff, horizBC: hbc, vertBC: vbc},
		Dt:            dt,
		NInner:        nInner,
	}
}

func (m *OperatorSplit0) Step(ds FieldSource, t float64, p *Particle) error {
	if m.adv != nil {
		dtInner := m.Dt / float64(m.NInner)
		for i := 0; i < m.NInner; i++ {
			var d Delta
			ti := t + float64(i)*dtInner
			status, err := m.adv.Step(ds, ti, p, &d)
			if err != nil {
				return err
			}
			if status == OpenCross {
				p.Status = StatusOutOfDomain
				return nil
			}
			if err := m.commitDelta(ds, ti+dtInner, p, &d); err != nil {
				return err
			}
			if p.Status != StatusActive {
				return nil
			}
		}
	}

	var d Delta
	for _, it := range []ItMethod{m.vdiff, m.hdiff} {
		if it == nil {
			continue
		}
		status, err := it.Step(ds, t, p, &d)
		if err != nil {
			return err
		}
		if status == OpenCross {
			p.Status = StatusOutOfDomain
			return nil
		}
	}
	return m.commitDelta(ds, t+m.Dt, p, &d)
}
