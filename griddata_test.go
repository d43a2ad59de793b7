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
	"sort"
	"testing"

	"github.com/ctessum/sparse"
)

// gridTestData builds a triangulated nx×ny rectangle with node spacing
// d: each quad is split into two clockwise triangles. All outer edges
// are land; nlev evenly spaced sigma levels (and nlev-1 layers) and a
// uniform bathymetry of depth metres are attached.
func gridTestData(t *testing.T, nx, ny int, d float64, nlev int, depth float64) *Grid {
	t.Helper()

	nnodes := (nx + 1) * (ny + 1)
	node := func(i, j int) int { return j*(nx+1) + i }

	g := &Grid{
		Nelems: 2 * nx * ny,
		Nnodes: nnodes,
		X:      make([]float64, nnodes),
		Y:      make([]float64, nnodes),
	}
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			g.X[node(i, j)] = float64(i) * d
			g.Y[node(i, j)] = float64(j) * d
		}
	}

	for i := 0; i < 3; i++ {
		g.NV[i] = make([]int, g.Nelems)
		g.NBE[i] = make([]int, g.Nelems)
	}
	e := 0
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a := node(i, j)
			b := node(i+1, j)
			c := node(i+1, j+1)
			dd := node(i, j+1)
			// Lower-left triangle (a, d, b) and upper-right triangle
			// (b, d, c), both clockwise.
			g.NV[0][e], g.NV[1][e], g.NV[2][e] = a, dd, b
			e++
			g.NV[0][e], g.NV[1][e], g.NV[2][e] = b, dd, c
			e++
		}
	}

	// Derive NBE from shared edges; unshared edges are land.
	type edgeUse struct{ elem, vertex int }
	edges := make(map[[2]int][]edgeUse)
	for e := 0; e < g.Nelems; e++ {
		for i := 0; i < 3; i++ {
			a := g.NV[(i+1)%3][e]
			b := g.NV[(i+2)%3][e]
			key := [2]int{a, b}
			sort.Ints(key[:])
			edges[key] = append(edges[key], edgeUse{e, i})
		}
	}
	for e := 0; e < g.Nelems; e++ {
		for i := 0; i < 3; i++ {
			g.NBE[i][e] = landBoundary
		}
	}
	for _, uses := range edges {
		if len(uses) == 2 {
			g.NBE[uses[0].vertex][uses[0].elem] = uses[1].elem
			g.NBE[uses[1].vertex][uses[1].elem] = uses[0].elem
		}
	}

	nlay := nlev - 1
	g.Siglev = sparse.ZerosDense(nlev, nnodes)
	g.Siglay = sparse.ZerosDense(nlay, nnodes)
	for k := 0; k < nlev; k++ {
		s := -float64(k) / float64(nlay)
		for n := 0; n < nnodes; n++ {
			g.Siglev.Set(s, k, n)
		}
	}
	for k := 0; k < nlay; k++ {
		s := -(float64(k) + 0.5) / float64(nlay)
		for n := 0; n < nnodes; n++ {
			g.Siglay.Set(s, k, n)
		}
	}

	g.H = make([]float64, nnodes)
	for n := range g.H {
		g.H[n] = depth
	}

	gg, err := NewGrid(g)
	if err != nil {
		t.Fatal(err)
	}
	return gg
}

// markOpenEast converts the land edges on the eastern boundary of a
// gridTestData mesh into open-boundary edges.
func markOpenEast(g *Grid, nx int, d float64) {
	xmax := float64(nx) * d
	for e := 0; e < g.Nelems; e++ {
		for i := 0; i < 3; i++ {
			if g.NBE[i][e] != landBoundary {
				continue
			}
			x1, _, x2, _ := g.edgeEndpoints(e, i)
			if x1 == xmax && x2 == xmax {
				g.NBE[i][e] = openBoundary
			}
		}
	}
}
