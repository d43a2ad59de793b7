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
	"testing"
	"time"
)

func testModel(t *testing.T, ds FieldSource, cfg Config, num NumMethod, particles []*Particle) *Model {
	t.Helper()
	m := &Model{
		Config:  cfg,
		DS:      ds,
		EndTime: 10 * cfg.Simulation.TimeStep,
		InitFuncs: []DomainManipulator{
			ReadData(time.Second),
			func(m *Model) error { return m.Seed(particles) },
		},
		RunFuncs: []DomainManipulator{
			ReadData(time.Second),
			Steppers(num),
			SimulationDone(),
		},
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	return m
}

func diffusiveConfig() Config {
	return Config{
		Simulation: SimulationConfig{TimeStep: 1, Seed: 1234},
		Numerics:   NumericsConfig{DifIterativeMethod: "visser"},
	}
}

// Identical seeds and RNG streams must give bitwise-identical
// trajectories from run to run.
func TestRunReproducible(t *testing.T) {
	g := gridTestData(t, 4, 4, 10, 6, 20)

	run := func() []float64 {
		ds := &meshSource{g: g, u: 0.05, v: 0.02, kh: 1e-4}
		cfg := diffusiveConfig()
		num := NewStdNumMethod(1, &AdvRK4{Dt: 1}, &DiffVisser{Dt: 1}, nil,
			NewReflectingHorizBoundary(false), NewReflectingVertBoundary())

		particles := make([]*Particle, 10)
		for i := range particles {
			particles[i] = &Particle{ID: i, X1: 12.5 + float64(i), X2: 20.5, X3: -0.5}
		}
		m := testModel(t, ds, cfg, num, particles)
		if err := m.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		out := make([]float64, 0, 3*len(particles))
		for _, p := range m.Particles {
			out = append(out, p.X1, p.X2, p.X3)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("trajectories diverge at component %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestReseedRestoresInitialState(t *testing.T) {
	g := gridTestData(t, 4, 4, 10, 6, 20)
	ds := &meshSource{g: g, u: 0.1, kh: 1e-4}
	cfg := diffusiveConfig()
	num := NewStdNumMethod(1, &AdvEuler{Dt: 1}, &DiffVisser{Dt: 1}, nil,
		NewReflectingHorizBoundary(false), NewReflectingVertBoundary())

	particles := []*Particle{{ID: 0, X1: 15.5, X2: 20.5, X3: -0.5}}
	m := testModel(t, ds, cfg, num, particles)
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := *m.Particles[0]

	m.Reseed()
	if m.Particles[0].X1 != 15.5 || m.T != 0 || m.Done {
		t.Fatal("Reseed did not restore the initial state")
	}
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := *m.Particles[0]

	if first.X1 != second.X1 || first.X2 != second.X2 || first.X3 != second.X3 {
		t.Errorf("rerun diverged: (%g,%g,%g) vs (%g,%g,%g)",
			first.X1, first.X2, first.X3, second.X1, second.X2, second.X3)
	}
}

// Out-of-domain particles stop moving and report no position in
// diagnostics.
func TestOutOfDomainStopsContributing(t *testing.T) {
	g := gridTestData(t, 4, 4, 1, 6, 20)
	markOpenEast(g, 4, 1)
	ds := &meshSource{g: g, u: 0.5}
	cfg := Config{Simulation: SimulationConfig{TimeStep: 1}}
	num := NewStdNumMethod(1, &AdvEuler{Dt: 1}, nil, nil,
		NewReflectingHorizBoundary(false), NewReflectingVertBoundary())

	particles := []*Particle{{ID: 7, X1: 3.8, X2: 2.5, X3: -0.5}}
	m := testModel(t, ds, cfg, num, particles)
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	p := m.Particles[0]
	if p.Status != StatusOutOfDomain {
		t.Fatalf("status %v, want out_of_domain", p.Status)
	}
	d := m.Diagnostics(m.T)
	if d[0].Status != StatusOutOfDomain || d[0].Host != -1 || d[0].X1 != 0 {
		t.Errorf("diagnostics for a lost particle: %+v", d[0])
	}
}

// A particle on a dry element beaches, then refloats when the element
// wets again.
func TestBeachingAndRefloating(t *testing.T) {
	g := gridTestData(t, 4, 4, 1, 6, 20)
	wet := false
	ds := &meshSource{g: g, u: 0.01, wet: func(host int) bool { return wet }}
	cfg := Config{Simulation: SimulationConfig{TimeStep: 1, AllowBeaching: true}}
	num := NewStdNumMethod(1, &AdvEuler{Dt: 1}, nil, nil,
		NewReflectingHorizBoundary(false), NewReflectingVertBoundary())

	particles := []*Particle{{ID: 0, X1: 2.2, X2: 2.5, X3: -0.5}}
	m := testModel(t, ds, cfg, num, particles)

	step := Steppers(num)
	if err := step(m); err != nil {
		t.Fatal(err)
	}
	p := m.Particles[0]
	if p.Status != StatusBeached {
		t.Fatalf("status %v on a dry element, want beached", p.Status)
	}
	xBeached := p.X1

	// Still dry: the particle must not move.
	if err := step(m); err != nil {
		t.Fatal(err)
	}
	if p.X1 != xBeached {
		t.Error("beached particle moved")
	}

	wet = true
	if err := step(m); err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusActive {
		t.Errorf("status %v after rewetting, want active", p.Status)
	}
	if p.X1 <= xBeached {
		t.Error("refloated particle did not resume moving")
	}
}

// For a uniform velocity field the operator-split composition must
// agree with the standard method to numerical precision.
func TestOperatorSplitMatchesStandardUniformFlow(t *testing.T) {
	const tolerance = 1e-9

	g := gridTestData(t, 6, 6, 10, 6, 20)
	ds := &meshSource{g: g, u: 0.08, v: -0.04}

	stepBoth := func(num NumMethod) (float64, float64) {
		p := &Particle{ID: 0, X1: 31, X2: 33, X3: -0.5, Host: -1, rng: newStreamRNG(1, 0)}
		if err := ds.SetLocalCoordinates(p); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			if err := num.Step(ds, float64(i), p); err != nil {
				t.Fatal(err)
			}
		}
		return p.X1, p.X2
	}

	sx, sy := stepBoth(NewStdNumMethod(1, &AdvRK4{Dt: 1}, nil, nil,
		NewReflectingHorizBoundary(false), NewReflectingVertBoundary()))
	ox, oy := stepBoth(NewOperatorSplit0(1, 4, &AdvRK4{Dt: 0.25}, nil, nil,
		NewReflectingHorizBoundary(false), NewReflectingVertBoundary()))

	if math.Abs(sx-ox) > tolerance || math.Abs(sy-oy) > tolerance {
		t.Errorf("standard (%g,%g) vs operator split (%g,%g)", sx, sy, ox, oy)
	}
}

// Depth restoring pins particles to a fixed depth below the surface
// after every step.
func TestDepthRestoring(t *testing.T) {
	g := gridTestData(t, 4, 4, 10, 6, 20)
	ds := &meshSource{g: g, u: 0.05, w: 0.001}
	cfg := Config{Simulation: SimulationConfig{
		TimeStep: 1, DepthRestoring: true, FixedDepth: -5,
	}}
	num := NewStdNumMethod(1, &AdvEuler{Dt: 1}, nil, nil,
		NewReflectingHorizBoundary(false), NewReflectingVertBoundary())

	particles := []*Particle{{ID: 0, X1: 12.5, X2: 20.5, X3: -0.5}}
	m := testModel(t, ds, cfg, num, particles)
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// σ for 5 m below a flat surface over 20 m of water.
	if want := -5.0 / 20.0; math.Abs(m.Particles[0].X3-want) > 1e-12 {
		t.Errorf("restored σ = %g, want %g", m.Particles[0].X3, want)
	}
}

func TestSurfaceOnly(t *testing.T) {
	g := gridTestData(t, 4, 4, 10, 6, 20)
	ds := &meshSource{g: g, u: 0.05, w: -0.002, kh: 1e-3}
	cfg := Config{Simulation: SimulationConfig{TimeStep: 1, SurfaceOnly: true}}
	num := NewStdNumMethod(1, &AdvEuler{Dt: 1}, nil, nil,
		NewReflectingHorizBoundary(false), NewReflectingVertBoundary())

	particles := []*Particle{{ID: 0, X1: 12.5, X2: 20.5, X3: 0}}
	m := testModel(t, ds, cfg, num, particles)
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Particles[0].X3 != 0 {
		t.Errorf("surface-only particle drifted to σ = %g", m.Particles[0].X3)
	}
}

// Cooperative cancellation stops the run between timesteps.
func TestRunCancellation(t *testing.T) {
	g := gridTestData(t, 4, 4, 10, 6, 20)
	ds := &meshSource{g: g, u: 0.01}
	cfg := Config{Simulation: SimulationConfig{TimeStep: 1}}
	num := NewStdNumMethod(1, &AdvEuler{Dt: 1}, nil, nil,
		NewReflectingHorizBoundary(false), NewReflectingVertBoundary())

	particles := []*Particle{{ID: 0, X1: 12.5, X2: 20.5, X3: -0.5}}
	m := testModel(t, ds, cfg, num, particles)
	m.EndTime = math.Inf(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); err == nil {
		t.Fatal("cancelled run returned nil error")
	}
}
