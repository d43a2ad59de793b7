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

import "math"

// interpWithinElement evaluates a field given its three vertex values
// and the barycentric coordinates of the evaluation point. phi is
// assumed to sum to one.
func interpWithinElement(phi, f [3]float64) float64 {
	return phi[0]*f[0] + phi[1]*f[1] + phi[2]*f[2]
}

// timeFraction returns the linear interpolation fraction of t within
// [tLast, tNext), clamped to [0, 1].
func timeFraction(t, tLast, tNext float64) float64 {
	if tNext == tLast {
		return 0
	}
	a := (t - tLast) / (tNext - tLast)
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}

// linear interpolates between a (fraction 0) and b (fraction 1).
func linear(alpha, a, b float64) float64 {
	return a + alpha*(b-a)
}

// sigmaLocation records where a vertical position falls within a
// monotonically decreasing stack of sigma coordinates.
type sigmaLocation struct {
	// KLower and KUpper bound the position; KUpper = KLower - 1
	// except in the boundary layers, where both clamp to the outer
	// index.
	KLower, KUpper int

	// Beta is the interpolation fraction between KLower (0) and
	// KUpper (1). Zero within a boundary layer.
	Beta float64

	// BoundaryLayer is set when the position lies above the first or
	// below the last coordinate in the stack.
	BoundaryLayer bool
}

// locateSigma finds the pair of adjacent entries in sig (decreasing
// from index 0) that bound z, scanning downward from the top.
// Positions above sig[0] or below sig[n-1] clamp to the outer entry
// and set BoundaryLayer.
func locateSigma(sig []float64, z float64) sigmaLocation {
	n := len(sig)
	if z >= sig[0] {
		return sigmaLocation{KLower: 0, KUpper: 0, BoundaryLayer: true}
	}
	if z <= sig[n-1] {
		return sigmaLocation{KLower: n - 1, KUpper: n - 1, BoundaryLayer: true}
	}
	for k := 1; k < n; k++ {
		if z >= sig[k] {
			beta := (z - sig[k]) / (sig[k-1] - sig[k])
			return sigmaLocation{KLower: k, KUpper: k - 1, Beta: beta}
		}
	}
	// Unreachable for monotone input; clamp to the bottom.
	return sigmaLocation{KLower: n - 1, KUpper: n - 1, BoundaryLayer: true}
}

// llsInterp evaluates an element-centred field at (x, y) inside
// element e using the precomputed linear-least-squares stencil.
// vals[0] is the value in e and vals[1..3] the values in its
// neighbours, ordered as in NBE.
func (g *Grid) llsInterp(vals [4]float64, e int, x, y float64) float64 {
	var dfdx, dfdy float64
	for j := 0; j < 4; j++ {
		dfdx += vals[j] * g.A1u[j][e]
		dfdy += vals[j] * g.A2u[j][e]
	}
	return vals[0] + dfdx*(x-g.XC[e]) + dfdy*(y-g.YC[e])
}

// shepardInterp evaluates an element-centred field at (x, y) by
// inverse-distance-squared weighting of the host and neighbour
// centroids. neighbours < 0 are skipped. Used when the grid carries no
// LLS coefficients.
func (g *Grid) shepardInterp(vals [4]float64, e int, x, y float64) float64 {
	const p = 2

	elems := [4]int{e, g.NBE[0][e], g.NBE[1][e], g.NBE[2][e]}
	var num, den float64
	for j, ej := range elems {
		if ej < 0 {
			continue
		}
		d := g.centroidDistance(x, y, ej)
		if d < phiEps {
			return vals[j]
		}
		w := 1 / math.Pow(d, p)
		num += w * vals[j]
		den += w
	}
	return num / den
}

// interpElemCentred evaluates an element-centred field at (x, y) in
// element e. Boundary elements bypass the horizontal stencil and use
// the host-centre value directly.
func (g *Grid) interpElemCentred(vals [4]float64, e int, x, y float64) float64 {
	for i := 0; i < 3; i++ {
		if g.NBE[i][e] < 0 {
			return vals[0]
		}
	}
	if g.A1u[0] != nil {
		return g.llsInterp(vals, e, x, y)
	}
	return g.shepardInterp(vals, e, x, y)
}
