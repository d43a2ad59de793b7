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
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
)

// fvcomTestFile writes a two-record FVCOM-style NetCDF file on the
// gridTestData mesh. u ramps from uLast to uNext between the records;
// all other dynamic fields are steady: v = -0.07, omega = 0,
// kh = 0.01, viscofh = 2 + 0.1x, zeta = 0.5.
func fvcomTestFile(t *testing.T, g *Grid, uLast, uNext float64) string {
	t.Helper()

	nlev := g.Siglev.Shape[0]
	nlay := g.Siglay.Shape[0]

	h := cdf.NewHeader(
		[]string{"time", "siglev", "siglay", "node", "nele", "three"},
		[]int{2, nlev, nlay, g.Nnodes, g.Nelems, 3})
	h.AddAttribute("", "source", "pylag test fixture")

	h.AddVariable(varTime, []string{"time"}, []float64{0})
	h.AddVariable(varNV, []string{"three", "nele"}, []int32{0})
	h.AddVariable(varNBE, []string{"three", "nele"}, []int32{0})
	h.AddVariable(varX, []string{"node"}, []float64{0})
	h.AddVariable(varY, []string{"node"}, []float64{0})
	h.AddVariable(varXC, []string{"nele"}, []float64{0})
	h.AddVariable(varYC, []string{"nele"}, []float64{0})
	h.AddVariable(varSiglev, []string{"siglev", "node"}, []float64{0})
	h.AddVariable(varSiglay, []string{"siglay", "node"}, []float64{0})
	h.AddVariable(varH, []string{"node"}, []float64{0})
	h.AddVariable(varZeta, []string{"time", "node"}, []float32{0})
	h.AddVariable(varU, []string{"time", "siglay", "nele"}, []float32{0})
	h.AddVariable(varV, []string{"time", "siglay", "nele"}, []float32{0})
	h.AddVariable(varOmega, []string{"time", "siglev", "node"}, []float32{0})
	h.AddVariable(varKh, []string{"time", "siglev", "node"}, []float32{0})
	h.AddVariable(varAh, []string{"time", "siglay", "node"}, []float32{0})
	h.Define()

	path := filepath.Join(t.TempDir(), "fvcom.nc")
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	f, err := cdf.Create(w, h)
	if err != nil {
		t.Fatal(err)
	}

	// io.EOF marks a fully written variable.
	write := func(name string, buf interface{}) {
		if _, err := f.Writer(name, nil, nil).Write(buf); err != nil && err != io.EOF {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	write(varTime, []float64{0, 10})

	conn := func(table [3][]int) []int32 {
		buf := make([]int32, 0, 3*g.Nelems)
		for i := 0; i < 3; i++ {
			for e := 0; e < g.Nelems; e++ {
				buf = append(buf, int32(table[i][e]))
			}
		}
		return buf
	}
	write(varNV, conn(g.NV))
	write(varNBE, conn(g.NBE))
	write(varX, g.X)
	write(varY, g.Y)
	write(varXC, g.XC)
	write(varYC, g.YC)
	write(varSiglev, g.Siglev.Elements)
	write(varSiglay, g.Siglay.Elements)
	write(varH, g.H)

	constF := func(n int, v float64) []float32 {
		buf := make([]float32, n)
		for i := range buf {
			buf[i] = float32(v)
		}
		return buf
	}
	write(varZeta, constF(2*g.Nnodes, 0.5))

	ubuf := make([]float32, 0, 2*nlay*g.Nelems)
	for _, uv := range []float64{uLast, uNext} {
		for i := 0; i < nlay*g.Nelems; i++ {
			ubuf = append(ubuf, float32(uv))
		}
	}
	write(varU, ubuf)
	write(varV, constF(2*nlay*g.Nelems, -0.07))
	write(varOmega, constF(2*nlev*g.Nnodes, 0))
	write(varKh, constF(2*nlev*g.Nnodes, 0.01))

	// viscofh = 2 + 0.1x at nodes on layers.
	ahNodes := make([]float32, 0, 2*nlay*g.Nnodes)
	for rec := 0; rec < 2; rec++ {
		for k := 0; k < nlay; k++ {
			for n := 0; n < g.Nnodes; n++ {
				ahNodes = append(ahNodes, float32(2+0.1*g.X[n]))
			}
		}
	}
	write(varAh, ahNodes)

	return path
}

func openFVCOMSource(t *testing.T, path string, sigmaDepth bool) (*FVCOMSource, *os.File) {
	t.Helper()
	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewFVCOMSource(r, sigmaDepth)
	if err != nil {
		t.Fatal(err)
	}
	return s, r
}

func fvcomTestParticle(t *testing.T, s *FVCOMSource, x, y, sig float64) *Particle {
	t.Helper()
	p := &Particle{X1: x, X2: y, X3: sig, Host: -1, Status: StatusActive}
	if err := s.SetLocalCoordinates(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFVCOMRoundTrip(t *testing.T) {
	const tolerance = 1e-6 // float32 storage

	g := gridTestData(t, 4, 4, 100, 6, 20)
	path := fvcomTestFile(t, g, 0.11, 0.11)

	s, r := openFVCOMSource(t, path, true)
	defer r.Close()

	if s.Grid().Nelems != g.Nelems || s.Grid().Nnodes != g.Nnodes {
		t.Fatalf("mesh round trip: %d elements, %d nodes", s.Grid().Nelems, s.Grid().Nnodes)
	}

	if err := s.ReadData(context.Background(), 2.5); err != nil {
		t.Fatal(err)
	}
	p := fvcomTestParticle(t, s, 222, 222, -0.5)

	u, v, w, err := s.Velocity(2.5, p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(u-0.11) > tolerance || math.Abs(v+0.07) > tolerance || math.Abs(w) > tolerance {
		t.Errorf("velocity (%g, %g, %g), want (0.11, -0.07, 0)", u, v, w)
	}

	if hb := s.Bathymetry(p); math.Abs(hb-20) > tolerance {
		t.Errorf("bathymetry %g, want 20", hb)
	}
	if z := s.SeaSurfaceElevation(2.5, p); math.Abs(z-0.5) > tolerance {
		t.Errorf("zeta %g, want 0.5", z)
	}

	// kh is stored in m²/s; sigma depth coordinates divide by (h+ζ)².
	kh, err := s.VerticalEddyDiffusivity(2.5, p)
	if err != nil {
		t.Fatal(err)
	}
	want := 0.01 / (20.5 * 20.5)
	if math.Abs(kh-want) > tolerance {
		t.Errorf("kh = %g, want %g", kh, want)
	}

	// The kh profile is uniform, so its derivative vanishes.
	dk, err := s.VerticalEddyDiffusivityDerivative(2.5, p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dk) > 1e-4 {
		t.Errorf("dk/dz = %g, want ≈ 0", dk)
	}

	ah, err := s.HorizontalEddyViscosity(2.5, p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ah-(2+0.1*222)) > 1e-3 {
		t.Errorf("A_h = %g, want %g", ah, 2+0.1*222)
	}
	dax, day, err := s.HorizontalEddyViscosityGradient(2.5, p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dax-0.1) > 1e-6 || math.Abs(day) > 1e-6 {
		t.Errorf("A_h gradient (%g, %g), want (0.1, 0)", dax, day)
	}

	if zmin, zmax := s.ZMin(2.5, p), s.ZMax(2.5, p); zmin != -1 || zmax != 0 {
		t.Errorf("sigma bounds (%g, %g), want (-1, 0)", zmin, zmax)
	}
	if !s.IsWet(2.5, p.Host) {
		t.Error("source without a wet mask must report wet")
	}
}

func TestFVCOMTimeInterpolation(t *testing.T) {
	g := gridTestData(t, 4, 4, 100, 6, 20)
	path := fvcomTestFile(t, g, 0.1, 0.2)

	s, r := openFVCOMSource(t, path, true)
	defer r.Close()

	if err := s.ReadData(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	p := fvcomTestParticle(t, s, 222, 222, -0.5)
	u, _, _, err := s.Velocity(5, p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(u-0.15) > 1e-6 {
		t.Errorf("u at the record midpoint = %g, want 0.15", u)
	}
}

// ReadData must be a no-op when the frame already bounds t, and must
// reject times outside the file span.
func TestFVCOMReadDataFraming(t *testing.T) {
	g := gridTestData(t, 4, 4, 100, 6, 20)
	path := fvcomTestFile(t, g, 0.11, 0.11)

	s, r := openFVCOMSource(t, path, true)
	defer r.Close()

	ctx := context.Background()
	if err := s.ReadData(ctx, 0); err != nil {
		t.Fatal(err)
	}
	frameBefore := s.fr
	if err := s.ReadData(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if s.fr.uLast != frameBefore.uLast {
		t.Error("re-read within the frame replaced the snapshots")
	}

	if err := s.ReadData(ctx, 100); err == nil {
		t.Fatal("expected a FieldIOError past the end of the file")
	} else if _, ok := err.(*FieldIOError); !ok {
		t.Fatalf("error type %T, want *FieldIOError", err)
	}
	if err := s.ReadData(ctx, -5); err == nil {
		t.Fatal("expected a FieldIOError before the start of the file")
	}
}

func TestFVCOMCartesianBounds(t *testing.T) {
	g := gridTestData(t, 4, 4, 100, 6, 20)
	path := fvcomTestFile(t, g, 0.11, 0.11)

	s, r := openFVCOMSource(t, path, false)
	defer r.Close()

	if err := s.ReadData(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	p := fvcomTestParticle(t, s, 222, 222, -10)

	if zmin := s.ZMin(0, p); math.Abs(zmin+20) > 1e-6 {
		t.Errorf("Cartesian zmin = %g, want -20", zmin)
	}
	if zmax := s.ZMax(0, p); math.Abs(zmax-0.5) > 1e-6 {
		t.Errorf("Cartesian zmax = %g, want ζ = 0.5", zmax)
	}
}
