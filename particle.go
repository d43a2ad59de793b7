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

	"github.com/gocarina/gocsv"
)

// Status is the lifecycle state of a particle.
type Status int

const (
	// StatusActive particles are advected and diffused every step.
	StatusActive Status = iota

	// StatusOutOfDomain particles have left through an open boundary
	// or failed host location; terminal.
	StatusOutOfDomain

	// StatusBeached particles sit on a dry element and rejoin the
	// flow when the element wets again.
	StatusBeached

	// StatusAbsorbed particles have crossed an absorbing bottom
	// boundary; terminal.
	StatusAbsorbed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusOutOfDomain:
		return "out_of_domain"
	case StatusBeached:
		return "beached"
	case StatusAbsorbed:
		return "absorbed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Particle is the state of a single tracked particle. Position X3 is
// in terrain-following sigma by convention (Cartesian metres when the
// simulation runs with Cartesian depth coordinates). Only the model
// driver mutates particles; samplers and iterative methods receive
// them read-only together with an output Delta.
type Particle struct {
	ID      int `csv:"id"`
	GroupID int `csv:"group_id"`

	X1 float64 `csv:"x1"`
	X2 float64 `csv:"x2"`
	X3 float64 `csv:"x3"`

	Status Status `csv:"-"`

	// Host is the triangle currently containing the particle.
	Host int `csv:"-"`

	// Phi caches the barycentric coordinates of (X1, X2) in Host.
	Phi [3]float64 `csv:"-"`

	// KLayer is the sigma layer containing X3; LayerLoc and LevelLoc
	// locate X3 among the layer-centred and level-centred vertical
	// stacks respectively.
	KLayer   int           `csv:"-"`
	LayerLoc sigmaLocation `csv:"-"`
	LevelLoc sigmaLocation `csv:"-"`

	// InVerticalBoundaryLayer is set when X3 lies above the top layer
	// centre or below the bottom layer centre.
	InVerticalBoundaryLayer bool `csv:"-"`

	rng *streamRNG
}

// Delta accumulates the position change of one particle over one
// model step.
type Delta struct {
	DX, DY, DZ float64
}

func (d *Delta) reset() { d.DX, d.DY, d.DZ = 0, 0, 0 }

// ReadSeeds parses a particle seed file: CSV columns id, group_id,
// x1, x2, x3. Seeded particles start active with no resolved host.
func ReadSeeds(r io.Reader) ([]*Particle, error) {
	var particles []*Particle
	if err := gocsv.Unmarshal(r, &particles); err != nil {
		return nil, fmt.Errorf("pylag.ReadSeeds: %v", err)
	}
	for _, p := range particles {
		p.Status = StatusActive
		p.Host = -1
	}
	return particles, nil
}
