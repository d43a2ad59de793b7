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
	"fmt"
	"io"
	"os"

	"github.com/ctessum/cdf"
)

// TrajectoryWriter accumulates per-interval particle snapshots and
// writes them as a NetCDF trajectory file readable by the standard
// viewers.
type TrajectoryWriter struct {
	times []float64
	snaps [][]ParticleDiagnostics
}

// NewTrajectoryWriter returns an empty trajectory accumulator.
func NewTrajectoryWriter() *TrajectoryWriter {
	return &TrajectoryWriter{}
}

// Record appends a population snapshot taken at time t.
func (tw *TrajectoryWriter) Record(t float64, d []ParticleDiagnostics) {
	tw.times = append(tw.times, t)
	tw.snaps = append(tw.snaps, d)
}

// RecordTrajectories returns a run function that snapshots the
// population every interval seconds of simulated time.
func RecordTrajectories(tw *TrajectoryWriter, interval float64) DomainManipulator {
	return RunPeriodically(interval, func(m *Model) error {
		tw.Record(m.T, m.Diagnostics(m.T))
		return nil
	})
}

// Write encodes the accumulated snapshots to w as NetCDF-3.
func (tw *TrajectoryWriter) Write(w *os.File) error {
	if len(tw.snaps) == 0 {
		return fmt.Errorf("pylag.TrajectoryWriter: nothing recorded")
	}
	nt := len(tw.snaps)
	np := len(tw.snaps[0])

	h := cdf.NewHeader([]string{"time", "particles"}, []int{nt, np})
	h.AddAttribute("", "title", "PyLag particle trajectories")

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "seconds since simulation start")
	for _, v := range []struct{ name, units string }{
		{"x1", "m or degrees_east"},
		{"x2", "m or degrees_north"},
		{"x3", "sigma or m"},
		{"h", "m"},
		{"zeta", "m"},
	} {
		h.AddVariable(v.name, []string{"time", "particles"}, []float32{0})
		h.AddAttribute(v.name, "units", v.units)
	}
	h.AddVariable("host", []string{"time", "particles"}, []int32{0})
	h.AddVariable("status", []string{"time", "particles"}, []int32{0})
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("pylag.TrajectoryWriter: %v", err)
	}

	// The cdf writer reports io.EOF once a variable's extent is fully
	// written; that is completion, not a fault.
	if _, err := f.Writer("time", nil, nil).Write(tw.times); err != nil && err != io.EOF {
		return fmt.Errorf("pylag.TrajectoryWriter: writing time: %v", err)
	}

	writeF := func(name string, get func(ParticleDiagnostics) float64) error {
		buf := make([]float32, 0, nt*np)
		for _, snap := range tw.snaps {
			for _, d := range snap {
				buf = append(buf, float32(get(d)))
			}
		}
		_, err := f.Writer(name, nil, nil).Write(buf)
		if err != nil && err != io.EOF {
			return fmt.Errorf("pylag.TrajectoryWriter: writing %s: %v", name, err)
		}
		return nil
	}
	writeI := func(name string, get func(ParticleDiagnostics) int) error {
		buf := make([]int32, 0, nt*np)
		for _, snap := range tw.snaps {
			for _, d := range snap {
				buf = append(buf, int32(get(d)))
			}
		}
		_, err := f.Writer(name, nil, nil).Write(buf)
		if err != nil && err != io.EOF {
			return fmt.Errorf("pylag.TrajectoryWriter: writing %s: %v", name, err)
		}
		return nil
	}

	if err := writeF("x1", func(d ParticleDiagnostics) float64 { return d.X1 }); err != nil {
		return err
	}
	if err := writeF("x2", func(d ParticleDiagnostics) float64 { return d.X2 }); err != nil {
		return err
	}
	if err := writeF("x3", func(d ParticleDiagnostics) float64 { return d.X3 }); err != nil {
		return err
	}
	if err := writeF("h", func(d ParticleDiagnostics) float64 { return d.H }); err != nil {
		return err
	}
	if err := writeF("zeta", func(d ParticleDiagnostics) float64 { return d.Zeta }); err != nil {
		return err
	}
	if err := writeI("host", func(d ParticleDiagnostics) int { return d.Host }); err != nil {
		return err
	}
	if err := writeI("status", func(d ParticleDiagnostics) int { return int(d.Status) }); err != nil {
		return err
	}

	return cdf.UpdateNumRecs(w)
}
