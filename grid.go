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
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/sparse"
)

// Neighbour markers in the NBE table.
const (
	landBoundary = -1
	openBoundary = -2
)

// phiEps is the tolerance below which a barycentric coordinate is still
// considered inside its triangle.
const phiEps = 1e-10

// maxWalkSteps bounds the local host-element walk before it is declared
// a search failure.
const maxWalkSteps = 1000

// HostStatus reports the outcome of a host-element search.
type HostStatus int

const (
	// HostFound means the point lies inside the returned element.
	HostFound HostStatus = iota

	// LandCross means the walk tried to cross a land edge.
	LandCross

	// OpenCross means the walk tried to cross an open-boundary edge.
	OpenCross

	// SearchFail means the walk did not converge.
	SearchFail
)

func (s HostStatus) String() string {
	switch s {
	case HostFound:
		return "host found"
	case LandCross:
		return "land boundary crossed"
	case OpenCross:
		return "open boundary crossed"
	case SearchFail:
		return "host search failed"
	}
	return fmt.Sprintf("HostStatus(%d)", int(s))
}

// Grid holds the unstructured triangular mesh and its derived lookup
// structures. It is immutable after NewGrid returns.
type Grid struct {
	Nelems int // number of triangles
	Nnodes int // number of nodes

	// NV[i][e] is the node forming vertex i of triangle e. Vertices
	// are stored in a consistent (clockwise) orientation.
	NV [3][]int

	// NBE[i][e] is the triangle sharing the edge opposite vertex i of
	// triangle e, or landBoundary / openBoundary.
	NBE [3][]int

	X, Y   []float64 // node coordinates
	XC, YC []float64 // element centroids

	// Siglev and Siglay hold the terrain-following level and layer
	// coordinates at each node, shape [nlev][nnodes] and
	// [nlay][nnodes], decreasing with the first index from 0 to -1.
	Siglev, Siglay *sparse.DenseArray

	H []float64 // static bathymetry at nodes, positive down

	// A1u and A2u are the linear-least-squares interpolation
	// coefficients for element-centred fields; index 0 refers to the
	// element itself and 1..3 to its neighbours. Nil when the source
	// grid does not supply them, in which case Shepard interpolation
	// is used instead.
	A1u, A2u [4][]float64

	// Geographic is true when X and Y are longitude and latitude in
	// degrees.
	Geographic bool

	tree *rtree.Rtree
}

// gridElement wraps a triangle for the R-tree spatial index.
type gridElement struct {
	geom.Polygon
	index int
}

// NewGrid validates the mesh tables and builds the spatial index used
// by FindHostGlobal.
func NewGrid(g *Grid) (*Grid, error) {
	if g.Nelems <= 0 || g.Nnodes <= 0 {
		return nil, fmt.Errorf("pylag.NewGrid: empty mesh (%d elements, %d nodes)", g.Nelems, g.Nnodes)
	}
	for i := 0; i < 3; i++ {
		if len(g.NV[i]) != g.Nelems || len(g.NBE[i]) != g.Nelems {
			return nil, fmt.Errorf("pylag.NewGrid: connectivity table %d has length %d, want %d",
				i, len(g.NV[i]), g.Nelems)
		}
	}
	if len(g.X) != g.Nnodes || len(g.Y) != g.Nnodes {
		return nil, fmt.Errorf("pylag.NewGrid: node coordinate length %d, want %d", len(g.X), g.Nnodes)
	}
	if g.XC == nil {
		g.XC = make([]float64, g.Nelems)
		g.YC = make([]float64, g.Nelems)
		for e := 0; e < g.Nelems; e++ {
			g.XC[e] = (g.X[g.NV[0][e]] + g.X[g.NV[1][e]] + g.X[g.NV[2][e]]) / 3
			g.YC[e] = (g.Y[g.NV[0][e]] + g.Y[g.NV[1][e]] + g.Y[g.NV[2][e]]) / 3
		}
	}
	g.tree = rtree.NewTree(25, 50)
	for e := 0; e < g.Nelems; e++ {
		g.tree.Insert(&gridElement{Polygon: g.polygon(e), index: e})
	}
	return g, nil
}

func (g *Grid) polygon(e int) geom.Polygon {
	return geom.Polygon{{
		geom.Point{X: g.X[g.NV[0][e]], Y: g.Y[g.NV[0][e]]},
		geom.Point{X: g.X[g.NV[1][e]], Y: g.Y[g.NV[1][e]]},
		geom.Point{X: g.X[g.NV[2][e]], Y: g.Y[g.NV[2][e]]},
	}}
}

// Barycentric returns the barycentric coordinates of (x, y) with
// respect to triangle e. The coordinates sum to one; all three are
// ≥ -phiEps iff the point lies inside the triangle.
func (g *Grid) Barycentric(x, y float64, e int) [3]float64 {
	x1, y1 := g.X[g.NV[0][e]], g.Y[g.NV[0][e]]
	x2, y2 := g.X[g.NV[1][e]], g.Y[g.NV[1][e]]
	x3, y3 := g.X[g.NV[2][e]], g.Y[g.NV[2][e]]

	det := (y2-y3)*(x1-x3) + (x3-x2)*(y1-y3)
	var phi [3]float64
	phi[0] = ((y2-y3)*(x-x3) + (x3-x2)*(y-y3)) / det
	phi[1] = ((y3-y1)*(x-x3) + (x1-x3)*(y-y3)) / det
	phi[2] = 1 - phi[0] - phi[1]
	return phi
}

// basisGradient returns the spatial gradients of the three barycentric
// basis functions of triangle e. They are constant over the element.
func (g *Grid) basisGradient(e int) (dx, dy [3]float64) {
	x1, y1 := g.X[g.NV[0][e]], g.Y[g.NV[0][e]]
	x2, y2 := g.X[g.NV[1][e]], g.Y[g.NV[1][e]]
	x3, y3 := g.X[g.NV[2][e]], g.Y[g.NV[2][e]]

	det := (y2-y3)*(x1-x3) + (x3-x2)*(y1-y3)
	dx[0] = (y2 - y3) / det
	dx[1] = (y3 - y1) / det
	dx[2] = (y1 - y2) / det
	dy[0] = (x3 - x2) / det
	dy[1] = (x1 - x3) / det
	dy[2] = (x2 - x1) / det
	return dx, dy
}

func phiInside(phi [3]float64) bool {
	return phi[0] >= -phiEps && phi[1] >= -phiEps && phi[2] >= -phiEps
}

// landEdges counts the land edges of element e.
func (g *Grid) landEdges(e int) int {
	n := 0
	for i := 0; i < 3; i++ {
		if g.NBE[i][e] == landBoundary {
			n++
		}
	}
	return n
}

// FindHostLocal walks across the mesh from element start toward the
// point (x, y). At each step the barycentric coordinates are evaluated
// in the current triangle; if the point is outside, the walk crosses
// the edge with the most negative coordinate. Elements with two or
// more land edges are rejected even when geometry says inside, so that
// ill-shaped boundary triangles do not trap particles.
func (g *Grid) FindHostLocal(x, y float64, start int) (HostStatus, int) {
	if start < 0 || start >= g.Nelems {
		return SearchFail, -1
	}
	e := start
	for step := 0; step < maxWalkSteps; step++ {
		phi := g.Barycentric(x, y, e)
		if phiInside(phi) {
			if g.landEdges(e) >= 2 {
				return LandCross, e
			}
			return HostFound, e
		}
		next := g.NBE[g.exitEdge(phi, e)][e]
		switch next {
		case landBoundary:
			return LandCross, e
		case openBoundary:
			return OpenCross, e
		}
		if step > 0 && next == start {
			return SearchFail, -1
		}
		e = next
	}
	return SearchFail, -1
}

// exitEdge selects the edge to cross when leaving element e: the edge
// opposite the most negative barycentric coordinate. Ties are broken
// by preferring an interior neighbour, then an open boundary, then the
// lower edge index.
func (g *Grid) exitEdge(phi [3]float64, e int) int {
	best := 0
	for i := 1; i < 3; i++ {
		if phi[i] < phi[best] {
			best = i
		} else if phi[i] == phi[best] && edgeRank(g.NBE[i][e]) < edgeRank(g.NBE[best][e]) {
			best = i
		}
	}
	return best
}

// edgeRank orders neighbour kinds for tie breaking: interior before
// open boundary before land.
func edgeRank(nbe int) int {
	switch {
	case nbe >= 0:
		return 0
	case nbe == openBoundary:
		return 1
	default:
		return 2
	}
}

// FindHostGlobal locates the element containing (x, y) using the
// spatial index. It is used to bootstrap seeded particles and to
// recover from local search failures.
func (g *Grid) FindHostGlobal(x, y float64) (HostStatus, int) {
	p := geom.Point{X: x, Y: y}
	for _, item := range g.tree.SearchIntersect(p.Bounds()) {
		e := item.(*gridElement).index
		if phiInside(g.Barycentric(x, y, e)) {
			if g.landEdges(e) >= 2 {
				return LandCross, e
			}
			return HostFound, e
		}
	}
	return SearchFail, -1
}

// edgeEndpoints returns the endpoints of the edge opposite vertex i of
// element e, in stored orientation.
func (g *Grid) edgeEndpoints(e, i int) (x1, y1, x2, y2 float64) {
	a := g.NV[(i+1)%3][e]
	b := g.NV[(i+2)%3][e]
	return g.X[a], g.Y[a], g.X[b], g.Y[b]
}

// reconstruct maps barycentric coordinates in element e back to
// Cartesian space.
func (g *Grid) reconstruct(phi [3]float64, e int) (x, y float64) {
	for i := 0; i < 3; i++ {
		x += phi[i] * g.X[g.NV[i][e]]
		y += phi[i] * g.Y[g.NV[i][e]]
	}
	return x, y
}

// nodalSigma interpolates a nodal sigma table (Siglev or Siglay) to a
// horizontal position given by the barycentric coordinates phi in
// element e, returning the local vertical coordinate of index k.
func (g *Grid) nodalSigma(table *sparse.DenseArray, k, e int, phi [3]float64) float64 {
	var s float64
	for i := 0; i < 3; i++ {
		s += phi[i] * table.Get(k, g.NV[i][e])
	}
	return s
}

// interpNodal evaluates a nodal field at the position given by phi in
// element e.
func (g *Grid) interpNodal(f []float64, e int, phi [3]float64) float64 {
	return phi[0]*f[g.NV[0][e]] + phi[1]*f[g.NV[1][e]] + phi[2]*f[g.NV[2][e]]
}

// centroidDistance returns the distance from (x, y) to the centroid of
// element e.
func (g *Grid) centroidDistance(x, y float64, e int) float64 {
	return math.Hypot(x-g.XC[e], y-g.YC[e])
}
