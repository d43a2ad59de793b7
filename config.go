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
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
)

// Config is the resolved run configuration, decoded from a TOML run
// file. The core receives it by value; all string-keyed choices are
// translated into concrete method variants at startup.
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Numerics   NumericsConfig   `toml:"numerics"`
	Boundary   BoundaryConfig   `toml:"boundary_conditions"`
	General    GeneralConfig    `toml:"general"`
}

// SimulationConfig sets the clock, the coordinate conventions, and the
// restoring options.
type SimulationConfig struct {
	TimeStep      float64 `toml:"time_step"` // seconds
	StartDatetime string  `toml:"start_datetime"`
	EndDatetime   string  `toml:"end_datetime"`

	// DepthCoordinates is "sigma" or "cartesian".
	DepthCoordinates string `toml:"depth_coordinates"`

	// CoordinateSystem is "cartesian" or "geographic".
	CoordinateSystem string `toml:"coordinate_system"`

	SurfaceOnly bool `toml:"surface_only"`

	DepthRestoring bool    `toml:"depth_restoring"`
	FixedDepth     float64 `toml:"fixed_depth"` // metres, ≤ 0, below the surface

	HeightRestoring bool    `toml:"height_restoring"`
	FixedHeight     float64 `toml:"fixed_height"` // metres, ≥ 0, above the bed

	AllowBeaching bool `toml:"allow_beaching"`

	// Seed keys the per-particle random streams.
	Seed uint64 `toml:"seed"`
}

// NumericsConfig selects the numerical and iterative methods.
type NumericsConfig struct {
	NumMethod          string `toml:"num_method"`           // standard | operator_split_0
	NInnerSteps        int    `toml:"n_inner_steps"`        // operator_split_0 only
	AdvIterativeMethod string `toml:"adv_iterative_method"` // rk4 | euler | none
	DifIterativeMethod string `toml:"diff_iterative_method"`
	// diff method: visser | naive | none

	// HorizontalDiffusion enables the 2D horizontal random walk.
	HorizontalDiffusion bool `toml:"horizontal_diffusion"`
}

// BoundaryConfig selects the boundary calculators.
type BoundaryConfig struct {
	HorizBoundCond string `toml:"horiz_bound_cond"` // reflecting | restoring | none
	VertBoundCond  string `toml:"vert_bound_cond"`  // reflecting | absorbing_bottom | none
}

// GeneralConfig sets logging behaviour.
type GeneralConfig struct {
	LogLevel    string `toml:"log_level"`
	FullLogging bool   `toml:"full_logging"`
}

const datetimeLayout = "2006-01-02 15:04:05"

// ReadConfig decodes and validates a TOML run configuration.
func ReadConfig(r io.Reader) (Config, error) {
	var c Config
	if _, err := toml.DecodeReader(r, &c); err != nil {
		return c, &ConfigError{Key: "file", Reason: err.Error()}
	}
	return c, c.Validate()
}

// ReadConfigFile decodes and validates the TOML run configuration at
// path. Environment variables in the path are expanded.
func ReadConfigFile(path string) (Config, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return Config{}, &ConfigError{Key: "file", Reason: err.Error()}
	}
	defer f.Close()
	return ReadConfig(f)
}

// Duration returns the total simulated span.
func (c *Config) Duration() (float64, error) {
	start, err := time.Parse(datetimeLayout, c.Simulation.StartDatetime)
	if err != nil {
		return 0, &ConfigError{Key: "simulation.start_datetime", Reason: err.Error()}
	}
	end, err := time.Parse(datetimeLayout, c.Simulation.EndDatetime)
	if err != nil {
		return 0, &ConfigError{Key: "simulation.end_datetime", Reason: err.Error()}
	}
	d := end.Sub(start).Seconds()
	if d <= 0 {
		return 0, &ConfigError{Key: "simulation.end_datetime", Reason: "end does not follow start"}
	}
	return d, nil
}

// Validate checks the configuration record; any violation is fatal at
// startup.
func (c *Config) Validate() error {
	s := &c.Simulation
	if s.TimeStep <= 0 {
		return &ConfigError{Key: "simulation.time_step",
			Reason: fmt.Sprintf("must be positive, got %v", cast.ToString(s.TimeStep))}
	}
	switch s.DepthCoordinates {
	case "", "sigma", "cartesian":
	default:
		return &ConfigError{Key: "simulation.depth_coordinates", Reason: "must be sigma or cartesian"}
	}
	switch s.CoordinateSystem {
	case "", "cartesian", "geographic":
	default:
		return &ConfigError{Key: "simulation.coordinate_system", Reason: "must be cartesian or geographic"}
	}
	if s.DepthRestoring && s.HeightRestoring {
		return &ConfigError{Key: "simulation.height_restoring",
			Reason: "mutually exclusive with depth_restoring"}
	}
	if s.DepthRestoring && s.FixedDepth > 0 {
		return &ConfigError{Key: "simulation.fixed_depth", Reason: "must be ≤ 0 m"}
	}
	if s.HeightRestoring && s.FixedHeight < 0 {
		return &ConfigError{Key: "simulation.fixed_height", Reason: "must be ≥ 0 m"}
	}

	n := &c.Numerics
	switch n.NumMethod {
	case "", "standard":
	case "operator_split_0":
		if n.NInnerSteps <= 0 {
			return &ConfigError{Key: "numerics.n_inner_steps", Reason: "must be positive for operator_split_0"}
		}
	default:
		return &ConfigError{Key: "numerics.num_method", Reason: "must be standard or operator_split_0"}
	}
	switch n.AdvIterativeMethod {
	case "", "rk4", "euler", "none":
	default:
		return &ConfigError{Key: "numerics.adv_iterative_method", Reason: "must be rk4, euler or none"}
	}
	switch n.DifIterativeMethod {
	case "", "visser", "naive", "none":
	default:
		return &ConfigError{Key: "numerics.diff_iterative_method", Reason: "must be visser, naive or none"}
	}

	b := &c.Boundary
	switch b.HorizBoundCond {
	case "", "reflecting", "restoring", "none":
	default:
		return &ConfigError{Key: "boundary_conditions.horiz_bound_cond",
			Reason: "must be reflecting, restoring or none"}
	}
	switch b.VertBoundCond {
	case "", "reflecting", "absorbing_bottom", "none":
	default:
		return &ConfigError{Key: "boundary_conditions.vert_bound_cond",
			Reason: "must be reflecting, absorbing_bottom or none"}
	}
	return nil
}

// SigmaDepth reports whether particle depths are terrain following.
func (c *Config) SigmaDepth() bool {
	return c.Simulation.DepthCoordinates != "cartesian"
}

// Geographic reports whether horizontal coordinates are lon/lat.
func (c *Config) Geographic() bool {
	return c.Simulation.CoordinateSystem == "geographic"
}

// advMethod translates the advection choice into an iterative method.
func (c *Config) advMethod(dt float64) (ItMethod, error) {
	switch c.Numerics.AdvIterativeMethod {
	case "", "rk4":
		return &AdvRK4{Dt: dt}, nil
	case "euler":
		return &AdvEuler{Dt: dt}, nil
	case "none":
		return nil, nil
	}
	return nil, &ConfigError{Key: "numerics.adv_iterative_method",
		Reason: "unknown method " + c.Numerics.AdvIterativeMethod}
}

// diffMethods translates the diffusion choices into vertical and
// horizontal iterative methods.
func (c *Config) diffMethods(dt float64) (vdiff, hdiff ItMethod, err error) {
	switch c.Numerics.DifIterativeMethod {
	case "", "visser":
		vdiff = &DiffVisser{Dt: dt}
	case "naive":
		vdiff = &DiffNaive{Dt: dt}
	case "none":
	default:
		return nil, nil, &ConfigError{Key: "numerics.diff_iterative_method",
			Reason: "unknown method " + c.Numerics.DifIterativeMethod}
	}
	if c.Simulation.SurfaceOnly {
		// Surface transport carries no vertical random walk.
		vdiff = nil
	}
	if c.Numerics.HorizontalDiffusion {
		hdiff = &DiffHorizontal{Dt: dt}
	}
	return vdiff, hdiff, nil
}

// boundaries translates the boundary-condition choices.
func (c *Config) boundaries() (HorizBoundary, VertBoundary, error) {
	var hbc HorizBoundary
	switch c.Boundary.HorizBoundCond {
	case "", "reflecting":
		hbc = NewReflectingHorizBoundary(c.Geographic())
	case "restoring":
		hbc = NewRestoringHorizBoundary()
	case "none":
	default:
		return nil, nil, &ConfigError{Key: "boundary_conditions.horiz_bound_cond",
			Reason: "unknown condition " + c.Boundary.HorizBoundCond}
	}

	var vbc VertBoundary
	switch c.Boundary.VertBoundCond {
	case "", "reflecting":
		vbc = NewReflectingVertBoundary()
	case "absorbing_bottom":
		vbc = NewAbsorbingBottomVertBoundary()
	case "none":
		vbc = NewNoopVertBoundary()
	default:
		return nil, nil, &ConfigError{Key: "boundary_conditions.vert_bound_cond",
			Reason: "unknown condition " + c.Boundary.VertBoundCond}
	}
	return hbc, vbc, nil
}

// NumMethod builds the composed numerical method for the run: the
// tagged dispatch record holding the chosen iterative methods and
// boundary calculators.
func (c *Config) NumMethod() (NumMethod, error) {
	dt := c.Simulation.TimeStep
	hbc, vbc, err := c.boundaries()
	if err != nil {
		return nil, err
	}
	vdiff, hdiff, err := c.diffMethods(dt)
	if err != nil {
		return nil, err
	}

	switch c.Numerics.NumMethod {
	case "", "standard":
		adv, err := c.advMethod(dt)
		if err != nil {
			return nil, err
		}
		return NewStdNumMethod(dt, adv, vdiff, hdiff, hbc, vbc), nil
	case "operator_split_0":
		n := c.Numerics.NInnerSteps
		adv, err := c.advMethod(dt / float64(n))
		if err != nil {
			return nil, err
		}
		return NewOperatorSplit0(dt, n, adv, vdiff, hdiff, hbc, vbc), nil
	}
	return nil, &ConfigError{Key: "numerics.num_method",
		Reason: "unknown method " + c.Numerics.NumMethod}
}
