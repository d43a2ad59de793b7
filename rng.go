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

import "golang.org/x/exp/rand"

// streamRNG is an independent, seedable random stream attached to one
// particle. Streams are keyed by (run seed, particle id) and consumed
// in a fixed per-particle order, so trajectories are reproducible
// regardless of how particles are partitioned across workers.
type streamRNG struct {
	src *rand.Rand
}

// newStreamRNG derives a particle stream from the run seed and the
// particle id using a splitmix-style mix so that adjacent ids do not
// produce correlated streams.
func newStreamRNG(seed uint64, id int) *streamRNG {
	z := seed + uint64(id)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return &streamRNG{src: rand.New(rand.NewSource(z))}
}

// uniform returns a draw from Uniform(-1, 1). Its variance is 1/3;
// random-walk formulas divide the diffusive amplitude by r = 1/3 so
// that Var(R)·1/r = 1.
func (r *streamRNG) uniform() float64 {
	return 2*r.src.Float64() - 1
}

// varianceFactor is 1/Var of the uniform draw; random-walk step sizes
// use sqrt(2 k Δt · varianceFactor).
const varianceFactor = 3.0
