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
	"math"
	"sort"

	"github.com/cenkalti/backoff"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"
)

// FVCOM variable names.
const (
	varTime   = "time"
	varZeta   = "zeta"
	varU      = "u"
	varV      = "v"
	varOmega  = "omega"
	varKh     = "kh"
	varAh     = "viscofh"
	varWet    = "wet_cells"
	varNV     = "nv"
	varNBE    = "nbe"
	varX      = "x"
	varY      = "y"
	varXC     = "xc"
	varYC     = "yc"
	varSiglev = "siglev"
	varSiglay = "siglay"
	varH      = "h"
	varA1U    = "a1u"
	varA2U    = "a2u"
)

// sigmaDerivInc is the sigma increment for the numerical vertical
// diffusivity derivative.
const sigmaDerivInc = 1e-3

// maxReadRetries bounds the retry of transient NetCDF read faults.
const maxReadRetries = 3

// FVCOMSource samples FVCOM output held in a NetCDF-3 file. It
// implements FieldSource on the native unstructured triangular mesh
// with terrain-following vertical coordinates: u and v live at element
// centres on sigma layers, omega and kh at nodes on sigma levels,
// zeta at nodes, and viscofh at nodes on sigma layers.
//
// The mesh tables are expected in processed grid-metrics form:
// zero-based connectivity, with land and open boundaries marked in nbe
// as -1 and -2. Producing that file from raw FVCOM output is the job
// of the grid-metrics preprocessor, not this sampler.
type FVCOMSource struct {
	grid *Grid
	f    *cdf.File

	// times holds the record times in seconds relative to the
	// simulation start.
	times []float64

	fr frame

	// sigmaDepth selects terrain-following particle depth
	// coordinates; otherwise X3 is Cartesian metres.
	sigmaDepth bool

	// FullLogging reports every clamped out-of-range interpolation
	// fraction instead of clamping silently.
	FullLogging bool

	// t is the last simulation time passed to ReadData; used for the
	// surface elevation term when locating Cartesian positions.
	t float64
}

// NewFVCOMSource opens an FVCOM NetCDF file and loads its mesh tables.
// The reading frame is empty until the first ReadData call.
func NewFVCOMSource(rw cdf.ReaderWriterAt, sigmaDepth bool) (*FVCOMSource, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("pylag.NewFVCOMSource: %v", err)
	}
	s := &FVCOMSource{f: f, sigmaDepth: sigmaDepth}

	times, err := s.readVar(varTime, -1)
	if err != nil {
		return nil, fmt.Errorf("pylag.NewFVCOMSource: %v", err)
	}
	s.times = times.Elements

	if s.grid, err = s.loadGrid(); err != nil {
		return nil, fmt.Errorf("pylag.NewFVCOMSource: %v", err)
	}
	s.fr.tLast = math.Inf(1)
	s.fr.tNext = math.Inf(-1)
	return s, nil
}

// Grid returns the mesh the source is bound to.
func (s *FVCOMSource) Grid() *Grid { return s.grid }

func (s *FVCOMSource) loadGrid() (*Grid, error) {
	nv, err := s.readVar(varNV, -1)
	if err != nil {
		return nil, err
	}
	nbe, err := s.readVar(varNBE, -1)
	if err != nil {
		return nil, err
	}
	nelems := nv.Shape[1]
	g := &Grid{Nelems: nelems}
	for i := 0; i < 3; i++ {
		g.NV[i] = make([]int, nelems)
		g.NBE[i] = make([]int, nelems)
		for e := 0; e < nelems; e++ {
			g.NV[i][e] = int(nv.Get(i, e))
			g.NBE[i][e] = int(nbe.Get(i, e))
		}
	}

	x, err := s.readVar(varX, -1)
	if err != nil {
		return nil, err
	}
	y, err := s.readVar(varY, -1)
	if err != nil {
		return nil, err
	}
	g.X, g.Y = x.Elements, y.Elements
	g.Nnodes = len(g.X)

	if xc, err := s.readVar(varXC, -1); err == nil {
		yc, err := s.readVar(varYC, -1)
		if err != nil {
			return nil, err
		}
		g.XC, g.YC = xc.Elements, yc.Elements
	}

	if g.Siglev, err = s.readVar(varSiglev, -1); err != nil {
		return nil, err
	}
	if g.Siglay, err = s.readVar(varSiglay, -1); err != nil {
		return nil, err
	}
	h, err := s.readVar(varH, -1)
	if err != nil {
		return nil, err
	}
	g.H = h.Elements

	if a1u, err := s.readVar(varA1U, -1); err == nil {
		a2u, err := s.readVar(varA2U, -1)
		if err != nil {
			return nil, err
		}
		for j := 0; j < 4; j++ {
			g.A1u[j] = make([]float64, nelems)
			g.A2u[j] = make([]float64, nelems)
			for e := 0; e < nelems; e++ {
				g.A1u[j][e] = a1u.Get(j, e)
				g.A2u[j][e] = a2u.Get(j, e)
			}
		}
	}
	return NewGrid(g)
}

// readVar reads variable v from the file, the whole variable when
// ti < 0 or the time slice at record ti otherwise.
func (s *FVCOMSource) readVar(v string, ti int) (*sparse.DenseArray, error) {
	found := false
	for _, name := range s.f.Header.Variables() {
		if name == v {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no variable %q in file", v)
	}
	dims := s.f.Header.Lengths(v)

	var begin, end []int
	var shape []int
	if ti < 0 {
		shape = dims
	} else {
		begin = make([]int, len(dims))
		end = make([]int, len(dims))
		copy(end, dims)
		begin[0], end[0] = ti, ti+1
		shape = dims[1:]
	}
	if len(shape) == 0 {
		shape = []int{1}
	}

	out := sparse.ZerosDense(shape...)
	r := s.f.Reader(v, begin, end)
	buf := r.Zero(len(out.Elements))
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading %q: %v", v, err)
	}
	switch b := buf.(type) {
	case []float64:
		copy(out.Elements, b)
	case []float32:
		for i, v := range b {
			out.Elements[i] = float64(v)
		}
	case []int32:
		for i, v := range b {
			out.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("variable %q has unsupported type %T", v, buf)
	}
	return out, nil
}

// readVarRetry reads a time slice, retrying transient faults with
// exponential backoff and honouring the context deadline.
func (s *FVCOMSource) readVarRetry(ctx context.Context, v string, ti int) (*sparse.DenseArray, error) {
	var out *sparse.DenseArray
	op := func() error {
		var err error
		out, err = s.readVar(v, ti)
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxReadRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if ctx.Err() != nil {
			return nil, ErrFieldIOTimeout
		}
		return nil, err
	}
	return out, nil
}

// ReadData advances the reading frame so that it bounds simulation
// time t. It must be called serially between particle fan-outs.
func (s *FVCOMSource) ReadData(ctx context.Context, t float64) error {
	s.t = t
	if s.fr.bounds(t) {
		return nil
	}
	n := len(s.times)
	i := sort.SearchFloat64s(s.times, t)
	if i >= n || s.times[i] != t {
		i--
	}
	if i < 0 || i >= n-1 {
		return &FieldIOError{Time: t, Err: fmt.Errorf("no records bounding requested time")}
	}

	read := func(v string, last, next **sparse.DenseArray, optional bool) error {
		a, err := s.readVarRetry(ctx, v, i)
		if err != nil {
			if optional {
				*last, *next = nil, nil
				return nil
			}
			return err
		}
		b, err := s.readVarRetry(ctx, v, i+1)
		if err != nil {
			return err
		}
		*last, *next = a, b
		return nil
	}

	var fr frame
	fr.tLast, fr.tNext = s.times[i], s.times[i+1]
	if err := read(varZeta, &fr.zetaLast, &fr.zetaNext, false); err != nil {
		return s.ioErr(t, err)
	}
	if err := read(varU, &fr.uLast, &fr.uNext, false); err != nil {
		return s.ioErr(t, err)
	}
	if err := read(varV, &fr.vLast, &fr.vNext, false); err != nil {
		return s.ioErr(t, err)
	}
	if err := read(varOmega, &fr.omegaLast, &fr.omegaNext, false); err != nil {
		return s.ioErr(t, err)
	}
	if err := read(varKh, &fr.khLast, &fr.khNext, false); err != nil {
		return s.ioErr(t, err)
	}
	if err := read(varAh, &fr.ahLast, &fr.ahNext, true); err != nil {
		return s.ioErr(t, err)
	}
	if err := read(varWet, &fr.wetLast, &fr.wetNext, true); err != nil {
		return s.ioErr(t, err)
	}
	s.fr = fr
	return nil
}

func (s *FVCOMSource) ioErr(t float64, err error) error {
	if err == ErrFieldIOTimeout {
		return err
	}
	if _, ok := err.(*FieldIOError); ok {
		return err
	}
	return &FieldIOError{Time: t, Err: err}
}

// fraction returns the time interpolation fraction within the current
// reading frame, clamped to [0, 1]. Out-of-range times are reported
// when full logging is on.
func (s *FVCOMSource) fraction(t float64) float64 {
	if s.FullLogging && (t < s.fr.tLast || t >= s.fr.tNext) {
		raw := (t - s.fr.tLast) / (s.fr.tNext - s.fr.tLast)
		log.Warn((&OutOfRangeError{Quantity: "time", Value: raw}).Error())
	}
	return timeFraction(t, s.fr.tLast, s.fr.tNext)
}

// FindHost locates the element containing (x, y), walking locally from
// the particle's current host and falling back to the global search
// once when the walk does not converge.
func (s *FVCOMSource) FindHost(p *Particle, x, y float64) (HostStatus, int) {
	if p.Host >= 0 && p.Host < s.grid.Nelems {
		status, host := s.grid.FindHostLocal(x, y, p.Host)
		if status != SearchFail {
			return status, host
		}
	}
	return s.grid.FindHostGlobal(x, y)
}

// sigma returns the terrain-following coordinate of the particle's
// vertical position, converting from Cartesian metres when the source
// runs with Cartesian depth coordinates.
func (s *FVCOMSource) sigma(p *Particle, e int, phi [3]float64) float64 {
	if s.sigmaDepth {
		return p.X3
	}
	h := s.grid.interpNodal(s.grid.H, e, phi)
	zeta := s.zetaAt(s.t, e, phi)
	d := h + zeta
	if d <= 0 {
		return 0
	}
	return (p.X3 - zeta) / d
}

// SetLocalCoordinates resolves the particle's host element,
// barycentric coordinates, and vertical layer indices.
func (s *FVCOMSource) SetLocalCoordinates(p *Particle) error {
	status, host := s.FindHost(p, p.X1, p.X2)
	if status != HostFound {
		return &BoundaryError{Status: status}
	}
	p.Host = host
	p.Phi = s.grid.Barycentric(p.X1, p.X2, host)
	s.setVerticalCoordinates(p)
	return nil
}

// setVerticalCoordinates locates X3 within the layer and level stacks
// at the particle's horizontal position.
func (s *FVCOMSource) setVerticalCoordinates(p *Particle) {
	sig := s.sigma(p, p.Host, p.Phi)
	p.LayerLoc = locateSigma(s.localSigma(s.grid.Siglay, p), sig)
	p.LevelLoc = locateSigma(s.localSigma(s.grid.Siglev, p), sig)
	p.KLayer = p.LevelLoc.KUpper
	p.InVerticalBoundaryLayer = p.LayerLoc.BoundaryLayer
}

// localSigma evaluates a nodal sigma table at the particle's
// horizontal position for every index in the stack.
func (s *FVCOMSource) localSigma(table *sparse.DenseArray, p *Particle) []float64 {
	n := table.Shape[0]
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		out[k] = s.grid.nodalSigma(table, k, p.Host, p.Phi)
	}
	return out
}

// nodalAt interpolates a nodal field pair at stack index k to the
// particle position at time fraction alpha.
func (s *FVCOMSource) nodalAt(last, next *sparse.DenseArray, alpha float64, k int, p *Particle) float64 {
	var a, b [3]float64
	for i := 0; i < 3; i++ {
		n := s.grid.NV[i][p.Host]
		a[i] = last.Get(k, n)
		b[i] = next.Get(k, n)
	}
	return linear(alpha, interpWithinElement(p.Phi, a), interpWithinElement(p.Phi, b))
}

// nodalVertical interpolates a level- or layer-defined nodal field to
// the particle position using the given vertical location.
func (s *FVCOMSource) nodalVertical(last, next *sparse.DenseArray, alpha float64, loc sigmaLocation, p *Particle) float64 {
	lower := s.nodalAt(last, next, alpha, loc.KLower, p)
	if loc.BoundaryLayer {
		return lower
	}
	upper := s.nodalAt(last, next, alpha, loc.KUpper, p)
	return linear(loc.Beta, lower, upper)
}

// elemCentredAt interpolates an element-centred field pair at layer k
// to the particle position at time fraction alpha.
func (s *FVCOMSource) elemCentredAt(last, next *sparse.DenseArray, alpha float64, k int, p *Particle) float64 {
	e := p.Host
	elems := [4]int{e, s.grid.NBE[0][e], s.grid.NBE[1][e], s.grid.NBE[2][e]}
	var vals [4]float64
	for j, ej := range elems {
		if ej < 0 {
			continue
		}
		vals[j] = linear(alpha, last.Get(k, ej), next.Get(k, ej))
	}
	return s.grid.interpElemCentred(vals, e, p.X1, p.X2)
}

// zetaAt evaluates the sea-surface elevation at an arbitrary element
// position and time.
func (s *FVCOMSource) zetaAt(t float64, e int, phi [3]float64) float64 {
	alpha := s.fraction(t)
	var a, b [3]float64
	for i := 0; i < 3; i++ {
		n := s.grid.NV[i][e]
		a[i] = s.fr.zetaLast.Get(n)
		b[i] = s.fr.zetaNext.Get(n)
	}
	return linear(alpha, interpWithinElement(phi, a), interpWithinElement(phi, b))
}

// depth returns the total water column depth h+ζ at the particle
// position and time.
func (s *FVCOMSource) depth(t float64, p *Particle) float64 {
	return s.Bathymetry(p) + s.SeaSurfaceElevation(t, p)
}

// Velocity returns the Cartesian velocity at the particle position.
// u and v interpolate the element-centred layer fields bilinearly in
// time and linearly in sigma; the sigma velocity omega interpolates at
// nodes on levels and is scaled by the water column depth to m/s.
func (s *FVCOMSource) Velocity(t float64, p *Particle) (u, v, w float64, err error) {
	alpha := s.fraction(t)

	loc := p.LayerLoc
	u = s.elemCentredAt(s.fr.uLast, s.fr.uNext, alpha, loc.KLower, p)
	v = s.elemCentredAt(s.fr.vLast, s.fr.vNext, alpha, loc.KLower, p)
	if !loc.BoundaryLayer {
		uu := s.elemCentredAt(s.fr.uLast, s.fr.uNext, alpha, loc.KUpper, p)
		vu := s.elemCentredAt(s.fr.vLast, s.fr.vNext, alpha, loc.KUpper, p)
		u = linear(loc.Beta, u, uu)
		v = linear(loc.Beta, v, vu)
	}

	omega := s.nodalVertical(s.fr.omegaLast, s.fr.omegaNext, alpha, p.LevelLoc, p)
	w = omega * s.depth(t, p)

	if math.IsNaN(u) || math.IsNaN(v) || math.IsNaN(w) {
		return 0, 0, 0, &NumericalError{ParticleID: p.ID, Quantity: "velocity"}
	}
	return u, v, w, nil
}

// VerticalEddyDiffusivity returns k at the particle position. In
// sigma depth coordinates the metric value is divided by (h+ζ)².
func (s *FVCOMSource) VerticalEddyDiffusivity(t float64, p *Particle) (float64, error) {
	alpha := s.fraction(t)
	kh := s.nodalVertical(s.fr.khLast, s.fr.khNext, alpha, p.LevelLoc, p)
	if s.sigmaDepth {
		d := s.depth(t, p)
		kh /= d * d
	}
	if math.IsNaN(kh) {
		return 0, &NumericalError{ParticleID: p.ID, Quantity: "vertical eddy diffusivity"}
	}
	return kh, nil
}

// VerticalEddyDiffusivityDerivative returns dk/dz by central
// difference. The probe points shift downward at the surface so they
// stay in the water column.
func (s *FVCOMSource) VerticalEddyDiffusivityDerivative(t float64, p *Particle) (float64, error) {
	zmin, zmax := s.ZMin(t, p), s.ZMax(t, p)
	inc := sigmaDerivInc
	if !s.sigmaDepth {
		inc *= zmax - zmin
	}

	zp, zm := p.X3+inc, p.X3-inc
	if zp > zmax {
		zp, zm = p.X3, p.X3-2*inc
	} else if zm < zmin {
		zp, zm = p.X3+2*inc, p.X3
	}

	pp, pm := *p, *p
	pp.X3, pm.X3 = zp, zm
	s.setVerticalCoordinates(&pp)
	s.setVerticalCoordinates(&pm)
	kp, err := s.VerticalEddyDiffusivity(t, &pp)
	if err != nil {
		return 0, err
	}
	km, err := s.VerticalEddyDiffusivity(t, &pm)
	if err != nil {
		return 0, err
	}
	return (kp - km) / (zp - zm), nil
}

// HorizontalEddyViscosity returns A_h at the particle position from
// the nodal layer field.
func (s *FVCOMSource) HorizontalEddyViscosity(t float64, p *Particle) (float64, error) {
	if s.fr.ahLast == nil {
		return 0, nil
	}
	alpha := s.fraction(t)
	ah := s.nodalVertical(s.fr.ahLast, s.fr.ahNext, alpha, p.LayerLoc, p)
	if math.IsNaN(ah) {
		return 0, &NumericalError{ParticleID: p.ID, Quantity: "horizontal eddy viscosity"}
	}
	return ah, nil
}

// HorizontalEddyViscosityGradient returns (dA/dx, dA/dy) from the
// nodal values using the element's constant linear basis.
func (s *FVCOMSource) HorizontalEddyViscosityGradient(t float64, p *Particle) (dax, day float64, err error) {
	if s.fr.ahLast == nil {
		return 0, 0, nil
	}
	alpha := s.fraction(t)
	gx, gy := s.grid.basisGradient(p.Host)

	loc := p.LayerLoc
	for i := 0; i < 3; i++ {
		n := s.grid.NV[i][p.Host]
		a := linear(alpha, s.fr.ahLast.Get(loc.KLower, n), s.fr.ahNext.Get(loc.KLower, n))
		if !loc.BoundaryLayer {
			u := linear(alpha, s.fr.ahLast.Get(loc.KUpper, n), s.fr.ahNext.Get(loc.KUpper, n))
			a = linear(loc.Beta, a, u)
		}
		dax += a * gx[i]
		day += a * gy[i]
	}
	if math.IsNaN(dax) || math.IsNaN(day) {
		return 0, 0, &NumericalError{ParticleID: p.ID, Quantity: "horizontal eddy viscosity gradient"}
	}
	return dax, day, nil
}

// ZMin returns the lower vertical bound at the particle position: -1
// in sigma coordinates, the negated bathymetry in Cartesian.
func (s *FVCOMSource) ZMin(t float64, p *Particle) float64 {
	if s.sigmaDepth {
		return -1
	}
	return -s.Bathymetry(p)
}

// ZMax returns the upper vertical bound at the particle position: 0 in
// sigma coordinates, the sea surface elevation in Cartesian.
func (s *FVCOMSource) ZMax(t float64, p *Particle) float64 {
	if s.sigmaDepth {
		return 0
	}
	return s.SeaSurfaceElevation(t, p)
}

// Bathymetry returns the static water depth at the particle position.
func (s *FVCOMSource) Bathymetry(p *Particle) float64 {
	return s.grid.interpNodal(s.grid.H, p.Host, p.Phi)
}

// SeaSurfaceElevation returns ζ at the particle position and time.
func (s *FVCOMSource) SeaSurfaceElevation(t float64, p *Particle) float64 {
	return s.zetaAt(t, p.Host, p.Phi)
}

// IsWet reports whether the element is wet at time t. Sources without
// a wet mask report all elements wet.
func (s *FVCOMSource) IsWet(t float64, host int) bool {
	if s.fr.wetLast == nil {
		return true
	}
	a := s.fraction(t)
	mask := s.fr.wetLast
	if a >= 0.5 {
		mask = s.fr.wetNext
	}
	return mask.Get(host) > 0.5
}
