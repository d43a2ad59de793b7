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
	"errors"
	"fmt"
)

// ErrFieldIOTimeout is returned when a field-data read exceeds its
// per-read deadline. It is fatal and surfaces to the driver.
var ErrFieldIOTimeout = errors.New("pylag: field data read timed out")

// FieldIOError indicates that the field-data source could not supply
// data for the requested time. It is fatal and surfaces to the driver.
type FieldIOError struct {
	Time float64
	Err  error
}

func (e *FieldIOError) Error() string {
	return fmt.Sprintf("pylag: reading field data for t=%g s: %v", e.Time, e.Err)
}

func (e *FieldIOError) Unwrap() error { return e.Err }

// BoundaryError indicates that a host-element lookup escaped the model
// domain. The Status field records which boundary was crossed; it is a
// status code driving boundary-condition logic, not a fault.
type BoundaryError struct {
	Status HostStatus
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("pylag: host search left the domain (%s)", e.Status)
}

// ConfigError indicates an invalid or inconsistent configuration
// record. It is fatal at startup.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pylag: configuration %s: %s", e.Key, e.Reason)
}

// OutOfRangeError indicates an interpolation fraction outside [0,1].
// It is never returned: the fraction is clamped, and the error is only
// logged when FVCOMSource.FullLogging is set.
type OutOfRangeError struct {
	Quantity string
	Value    float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("pylag: %s interpolation fraction %g outside [0,1]", e.Quantity, e.Value)
}

// NumericalError indicates a NaN in a sampled velocity or diffusivity.
// The affected particle is marked out-of-domain and the run continues.
type NumericalError struct {
	ParticleID int
	Quantity   string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("pylag: particle %d: NaN %s", e.ParticleID, e.Quantity)
}
