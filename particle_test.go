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
	"strings"
	"testing"
)

func TestReadSeeds(t *testing.T) {
	csv := `id,group_id,x1,x2,x3
1,0,1200.5,340.25,-0.1
2,0,1210.0,355.00,-0.5
3,1,900.0,100.00,-1.0
`
	particles, err := ReadSeeds(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if len(particles) != 3 {
		t.Fatalf("parsed %d particles, want 3", len(particles))
	}
	p := particles[1]
	if p.ID != 2 || p.GroupID != 0 || p.X1 != 1210 || p.X2 != 355 || p.X3 != -0.5 {
		t.Errorf("particle 1: %+v", p)
	}
	for _, p := range particles {
		if p.Status != StatusActive || p.Host != -1 {
			t.Errorf("seed state: status %v host %d", p.Status, p.Host)
		}
	}
}

func TestReadSeedsMalformed(t *testing.T) {
	if _, err := ReadSeeds(strings.NewReader("id,x1\n1")); err == nil {
		t.Error("malformed seed file accepted")
	}
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusActive:      "active",
		StatusOutOfDomain: "out_of_domain",
		StatusBeached:     "beached",
		StatusAbsorbed:    "absorbed",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s, want)
		}
	}
}
