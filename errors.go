/*
Copyright © 2020 the VegET authors.
This file is part of VegET.

VegET is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

VegET is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with VegET.  If not, see <http://www.gnu.org/licenses/>.
*/

package veget

import "errors"

// Errors returned by the model. They are wrapped with additional context,
// so they should be checked with errors.Is.
var (
	// ErrMisaligned is returned when grids that take part in the same
	// computation do not share a shape and extent.
	ErrMisaligned = errors.New("veget: grids are not aligned")

	// ErrMissingVariable is returned when a required input variable
	// has no series.
	ErrMissingVariable = errors.New("veget: missing input variable")

	// ErrMissingFrame is returned when an input series has no frame
	// on one of the model days.
	ErrMissingFrame = errors.New("veget: missing input frame")

	// ErrEmptySeries is returned when a series that must contain data has no frames.
	ErrEmptySeries = errors.New("veget: empty series")

	// ErrNonPositiveWHC is returned when an unmasked water holding
	// capacity value is less than or equal to zero.
	ErrNonPositiveWHC = errors.New("veget: water holding capacity must be positive")
)
