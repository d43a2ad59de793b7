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
)

// earthRadius in metres, for the tangent-plane projection on
// geographic grids.
const earthRadius = 6371000.0

// HorizBoundary corrects a horizontal position that crossed a land
// edge. Apply receives the last in-domain position (xOld, yOld, with
// its host element) and the attempted position; it returns a corrected
// position and the element to restart host location from.
type HorizBoundary interface {
	Apply(g *Grid, host int, xOld, yOld, xNew, yNew float64) (x, y float64, restart int, err error)
}

// VertBoundary corrects a vertical position outside [zmin, zmax] and
// reports the resulting particle status.
type VertBoundary interface {
	Apply(zmin, zmax, z float64) (float64, Status)
}

// reflectingHoriz reflects the particle across the crossed land edge.
// On geographic grids the reflection operates on a local tangent-plane
// projection centred at the last in-domain position, not at the
// crossing point.
type reflectingHoriz struct {
	geographic bool
}

// NewReflectingHorizBoundary returns the reflecting horizontal
// boundary condition.
func NewReflectingHorizBoundary(geographic bool) HorizBoundary {
	return &reflectingHoriz{geographic: geographic}
}

func (b *reflectingHoriz) Apply(g *Grid, host int, xOld, yOld, xNew, yNew float64) (float64, float64, int, error) {
	if b.geographic {
		// Project onto a tangent plane centred at the old position,
		// reflect, and project back.
		cosLat := math.Cos(yOld * math.Pi / 180)
		toPlane := func(lon, lat float64) (float64, float64) {
			return earthRadius * cosLat * (lon - xOld) * math.Pi / 180,
				earthRadius * (lat - yOld) * math.Pi / 180
		}
		nx, ny := toPlane(xNew, yNew)
		px, py, restart, err := b.reflect(g, host,
			func(n int) (float64, float64) { return toPlane(g.X[n], g.Y[n]) },
			0, 0, nx, ny)
		if err != nil {
			return xOld, yOld, host, err
		}
		lon := xOld + px/(earthRadius*cosLat)*180/math.Pi
		lat := yOld + py/earthRadius*180/math.Pi
		return lon, lat, restart, nil
	}
	return b.reflect(g, host,
		func(n int) (float64, float64) { return g.X[n], g.Y[n] },
		xOld, yOld, xNew, yNew)
}

// reflect finds the land edge of the host element crossed by the
// segment (old → new), and mirrors the overshoot across it. node maps
// a node index to working coordinates so the same code serves both
// Cartesian and projected geographic grids.
func (b *reflectingHoriz) reflect(g *Grid, host int, node func(int) (float64, float64),
	xOld, yOld, xNew, yNew float64) (float64, float64, int, error) {

	bestS := math.Inf(1)
	var xi, yi, ex1, ey1, ex2, ey2 float64
	found := false
	for i := 0; i < 3; i++ {
		if g.NBE[i][host] != landBoundary {
			continue
		}
		a := g.NV[(i+1)%3][host]
		c := g.NV[(i+2)%3][host]
		x1, y1 := node(a)
		x2, y2 := node(c)
		s, u, ok := segmentIntersection(xOld, yOld, xNew, yNew, x1, y1, x2, y2)
		if !ok || u < -phiEps || u > 1+phiEps {
			continue
		}
		if s < bestS {
			bestS = s
			xi = xOld + s*(xNew-xOld)
			yi = yOld + s*(yNew-yOld)
			ex1, ey1, ex2, ey2 = x1, y1, x2, y2
			found = true
		}
	}
	if !found {
		return xOld, yOld, host, fmt.Errorf("pylag: no land edge of element %d intersects the trajectory", host)
	}

	// Inward normal for clockwise node order.
	nx := ey2 - ey1
	ny := ex1 - ex2
	dx := xNew - xi
	dy := yNew - yi
	f := 2 * (nx*dx + ny*dy) / (nx*nx + ny*ny)
	return xi + dx - f*nx, yi + dy - f*ny, host, nil
}

// segmentIntersection solves for the parameters s (along p→q) and u
// (along a→b) of the intersection of two segments. ok is false when
// the segments are parallel or the intersection lies behind p or past
// q.
func segmentIntersection(px, py, qx, qy, ax, ay, bx, by float64) (s, u float64, ok bool) {
	rx, ry := qx-px, qy-py
	ex, ey := bx-ax, by-ay
	den := rx*ey - ry*ex
	if den == 0 {
		return 0, 0, false
	}
	s = ((ax-px)*ey - (ay-py)*ex) / den
	u = ((ax-px)*ry - (ay-py)*rx) / den
	if s < -phiEps || s > 1+phiEps {
		return 0, 0, false
	}
	return s, u, true
}

// restoringHoriz puts the particle back where it started the step.
type restoringHoriz struct{}

// NewRestoringHorizBoundary returns the restoring horizontal boundary
// condition: the attempted position is discarded.
func NewRestoringHorizBoundary() HorizBoundary { return &restoringHoriz{} }

func (b *restoringHoriz) Apply(g *Grid, host int, xOld, yOld, xNew, yNew float64) (float64, float64, int, error) {
	return xOld, yOld, host, nil
}

// reflectingVert reflects the particle at both the surface and the
// bottom. A reflection that overshoots the opposite bound is reflected
// once more, then clamped.
type reflectingVert struct{}

// NewReflectingVertBoundary returns the reflecting vertical boundary
// condition.
func NewReflectingVertBoundary() VertBoundary { return &reflectingVert{} }

func (b *reflectingVert) Apply(zmin, zmax, z float64) (float64, Status) {
	for i := 0; i < 2; i++ {
		if z > zmax {
			z = 2*zmax - z
		} else if z < zmin {
			z = 2*zmin - z
		} else {
			return z, StatusActive
		}
	}
	if z > zmax {
		z = zmax
	} else if z < zmin {
		z = zmin
	}
	return z, StatusActive
}

// absorbingBottomVert absorbs particles that cross the bottom; the
// surface remains reflecting.
type absorbingBottomVert struct{}

// NewAbsorbingBottomVertBoundary returns the absorbing-bottom vertical
// boundary condition.
func NewAbsorbingBottomVertBoundary() VertBoundary { return &absorbingBottomVert{} }

func (b *absorbingBottomVert) Apply(zmin, zmax, z float64) (float64, Status) {
	if z < zmin {
		return zmin, StatusAbsorbed
	}
	if z > zmax {
		z = 2*zmax - z
		if z < zmin {
			return zmin, StatusAbsorbed
		}
	}
	return z, StatusActive
}

// noopVert leaves the vertical position untouched.
type noopVert struct{}

// NewNoopVertBoundary returns a vertical boundary condition that does
// nothing.
func NewNoopVertBoundary() VertBoundary { return &noopVert{} }

func (b *noopVert) Apply(zmin, zmax, z float64) (float64, Status) { return z, StatusActive }
