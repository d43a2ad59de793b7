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

// Package pylag is an offline Lagrangian particle-tracking model for
// geophysical fluids. Given time-varying velocity, turbulence, and
// surface-elevation fields on an unstructured triangular mesh with
// terrain-following vertical coordinates, it integrates populations of
// passive particles forward in time, combining resolved advection,
// stochastic sub-grid mixing, and reflecting or absorbing boundaries.
//
// A run is assembled from a FieldSource supplying the Eulerian data, a
// NumMethod composing the per-particle iterative methods, and a Model
// driving the population through DomainManipulator pipelines. See
// cmd/pylag for the command-line front end.
package pylag
