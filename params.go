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

import (
	"fmt"
	"math"
)

// Names of the static parameters.
const (
	WHC               = "whc"
	FieldCapacity     = "field_capacity"
	Saturation        = "saturation"
	InterceptFraction = "intercept_fraction"
)

// StaticNames lists the static parameters in the order they are
// read and written.
var StaticNames = []string{WHC, FieldCapacity, Saturation, InterceptFraction}

// StaticParameters are the soil and canopy properties of each grid
// cell, which do not change during a simulation.
type StaticParameters struct {
	// WHC is the soil water holding capacity [mm].
	WHC *Grid

	// FieldCapacity and Saturation are the soil water contents at field
	// capacity and at saturation [mm].
	FieldCapacity, Saturation *Grid

	// InterceptFraction is the fraction of precipitation intercepted
	// by the canopy [-].
	InterceptFraction *Grid
}

// Get returns the parameter with the given name.
func (p *StaticParameters) Get(name string) (*Grid, bool) {
	switch name {
	case WHC:
		return p.WHC, p.WHC != nil
	case FieldCapacity:
		return p.FieldCapacity, p.FieldCapacity != nil
	case Saturation:
		return p.Saturation, p.Saturation != nil
	case InterceptFraction:
		return p.InterceptFraction, p.InterceptFraction != nil
	}
	return nil, false
}

// Set sets the parameter with the given name.
func (p *StaticParameters) Set(name string, g *Grid) error {
	switch name {
	case WHC:
		p.WHC = g
	case FieldCapacity:
		p.FieldCapacity = g
	case Saturation:
		p.Saturation = g
	case InterceptFraction:
		p.InterceptFraction = g
	default:
		return fmt.Errorf("veget: invalid static parameter %q", name)
	}
	return nil
}

// Check makes sure that all parameters are present and aligned and
// that every unmasked water holding capacity is positive.
func (p *StaticParameters) Check() error {
	for _, n := range StaticNames {
		if _, ok := p.Get(n); !ok {
			return fmt.Errorf("%w: static parameter %s", ErrMissingVariable, n)
		}
	}
	if err := CheckAligned(p.WHC, p.FieldCapacity, p.Saturation, p.InterceptFraction); err != nil {
		return fmt.Errorf("veget: static parameters: %w", err)
	}
	for k := 0; k < p.WHC.Len(); k++ {
		if v := p.WHC.Get1d(k); !math.IsNaN(v) && v <= 0 {
			j, i := k/p.WHC.Spec.Nx, k%p.WHC.Spec.Nx
			return fmt.Errorf("%w: %g at row %d, column %d", ErrNonPositiveWHC, v, j, i)
		}
	}
	return nil
}

// Constants are the empirical coefficients of the water balance.
type Constants struct {
	// VarA and VarB are the slope and intercept of the relationship
	// between NDVI and the crop coefficient.
	VarA, VarB float64

	// NDVIThreshold is the NDVI above which VarB is not added.
	NDVIThreshold float64

	// DrainageCoeff is the fraction of excess water that drains
	// to depth [-].
	DrainageCoeff float64

	// MeltRate is the degree-day snow melt coefficient.
	MeltRate float64

	// Precipitation falls entirely as snow at or below RainTempLow and
	// entirely as rain at or above RainTempHigh [°C]. In between, the
	// rain fraction is the mean temperature times RainFracSlope.
	RainTempLow, RainTempHigh, RainFracSlope float64
}

// DefaultConstants returns the standard model coefficients.
func DefaultConstants() Constants {
	return Constants{
		VarA:          1.25,
		VarB:          0.2,
		NDVIThreshold: 0.4,
		DrainageCoeff: 0.65,
		MeltRate:      0.06,
		RainTempLow:   6,
		RainTempHigh:  12,
		RainFracSlope: 0.0833,
	}
}

// Check makes sure the constants are physically meaningful.
func (c Constants) Check() error {
	if c.DrainageCoeff < 0 || c.DrainageCoeff > 1 {
		return fmt.Errorf("veget: DrainageCoeff must be between 0 and 1 but is %g", c.DrainageCoeff)
	}
	if c.RainTempHigh < c.RainTempLow {
		return fmt.Errorf("veget: RainTempHigh (%g) must not be less than RainTempLow (%g)", c.RainTempHigh, c.RainTempLow)
	}
	if c.MeltRate < 0 {
		return fmt.Errorf("veget: MeltRate must not be negative but is %g", c.MeltRate)
	}
	return nil
}

// MaskPolicy specifies what happens to the state of a cell on a day
// when one of its inputs is masked.
type MaskPolicy string

const (
	// MaskHold masks the outputs of the cell for the day and carries
	// its state over unchanged from the day before.
	MaskHold MaskPolicy = "hold"

	// MaskPropagate masks the state of the cell, so it stays masked
	// for the rest of the simulation.
	MaskPropagate MaskPolicy = "propagate"
)

// ParseMaskPolicy returns the MaskPolicy with the given name. An empty
// name gives MaskHold.
func ParseMaskPolicy(s string) (MaskPolicy, error) {
	switch MaskPolicy(s) {
	case "", MaskHold:
		return MaskHold, nil
	case MaskPropagate:
		return MaskPropagate, nil
	default:
		return "", fmt.Errorf("veget: invalid mask policy %q; valid options are hold and propagate", s)
	}
}
