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

import "math"

// Soil holds the static soil properties of one grid cell [mm].
type Soil struct {
	WHC, FieldCapacity, Saturation float64
}

func (s Soil) masked() bool {
	return math.IsNaN(s.WHC) || math.IsNaN(s.FieldCapacity) || math.IsNaN(s.Saturation)
}

// Inputs holds the daily inputs to one grid cell.
type Inputs struct {
	NDVI              float64
	Precip            float64 // mm/day
	ETo               float64 // mm/day
	TMean, TMin, TMax float64 // °C
	InterceptFraction float64
}

func (in Inputs) masked() bool {
	for _, v := range []float64{in.NDVI, in.Precip, in.ETo, in.TMean, in.TMin, in.TMax, in.InterceptFraction} {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// State is the water storage of one grid cell [mm].
type State struct {
	SWI      float64 // soil water index
	SWE      float64 // snow water equivalent
	Snowpack float64
}

func (s State) masked() bool {
	return math.IsNaN(s.SWI) || math.IsNaN(s.SWE) || math.IsNaN(s.Snowpack)
}

var maskedState = State{SWI: math.NaN(), SWE: math.NaN(), Snowpack: math.NaN()}

// Fluxes are the daily water fluxes of one grid cell [mm/day].
type Fluxes struct {
	EffPpt        float64 // precipitation reaching the ground
	Rain          float64
	SnowMelt      float64
	Runoff        float64 // water in excess of the holding capacity
	SurfaceRunoff float64
	DeepDrainage  float64
	ETa           float64 // actual evapotranspiration
}

var maskedFluxes = Fluxes{
	EffPpt: math.NaN(), Rain: math.NaN(), SnowMelt: math.NaN(), Runoff: math.NaN(),
	SurfaceRunoff: math.NaN(), DeepDrainage: math.NaN(), ETa: math.NaN(),
}

// RainFraction returns the fraction of precipitation that falls as rain
// at the given mean air temperature.
func RainFraction(tmean float64, c *Constants) float64 {
	switch {
	case tmean <= c.RainTempLow:
		return 0
	case tmean >= c.RainTempHigh:
		return 1
	default:
		return tmean * c.RainFracSlope
	}
}

// partition splits the precipitation that passes the canopy
// into rain and snow.
func partition(in Inputs, c *Constants) (effppt, rain, snow float64) {
	effppt = in.Precip * (1 - in.InterceptFraction)
	rf := RainFraction(in.TMean, c)
	return effppt, rf * effppt, (1 - rf) * effppt
}

// Initial returns the state and fluxes of a grid cell on the first
// model day. The soil starts half full plus the effective precipitation
// of the day, and there is no snow. Water above the holding capacity
// leaves as runoff, split the same way as in Step.
func Initial(in Inputs, s Soil, c *Constants) (State, Fluxes) {
	effppt, rain, _ := partition(in, c)
	f := Fluxes{EffPpt: effppt, Rain: rain}
	swi := 0.5*s.WHC + effppt
	f.Runoff = math.Max(0, swi-s.WHC)
	f.SurfaceRunoff, f.DeepDrainage = splitRunoff(f.Runoff, s, c)
	return State{SWI: math.Min(s.WHC, swi)}, f
}

// splitRunoff divides runoff into surface runoff and deep drainage.
// Excess up to saturation minus field capacity drains at DrainageCoeff
// and the rest runs off at the surface.
func splitRunoff(runoff float64, s Soil, c *Constants) (surface, deep float64) {
	satMinusFC := s.Saturation - s.FieldCapacity
	if runoff <= satMinusFC {
		surface = runoff * (1 - c.DrainageCoeff)
	} else {
		surface = (runoff - satMinusFC) + (1-c.DrainageCoeff)*satMinusFC
	}
	return surface, runoff - surface
}

// Step advances the water balance of one grid cell by one day.
func Step(prev State, in Inputs, s Soil, c *Constants) (State, Fluxes) {
	var f Fluxes
	var snow float64
	f.EffPpt, f.Rain, snow = partition(in, c)

	meltRate := math.Max(0, c.MeltRate*(in.TMax*in.TMax-in.TMax*in.TMin))
	f.SnowMelt = math.Min(meltRate, prev.SWE+snow)

	var next State
	next.SWE = prev.SWE + snow - f.SnowMelt
	next.Snowpack = math.Max(0, prev.Snowpack+snow-f.SnowMelt)

	swi := prev.SWI + f.Rain + f.SnowMelt
	f.Runoff = math.Max(0, swi-s.WHC)

	f.SurfaceRunoff, f.DeepDrainage = splitRunoff(f.Runoff, s, c)

	var etasw float64
	if in.NDVI > c.NDVIThreshold {
		etasw = in.NDVI * c.VarA * in.ETo
	} else {
		etasw = (in.NDVI*c.VarA + c.VarB) * in.ETo
	}
	post := math.Min(swi, s.WHC)
	if half := 0.5 * s.WHC; post <= half {
		etasw *= post / half
	}
	f.ETa = math.Max(0, math.Min(etasw, math.Min(post, s.WHC)))

	next.SWI = math.Max(0, post-f.ETa)
	return next, f
}

// Pixel holds the information needed to calculate the water balance
// of one grid cell on the current day.
type Pixel struct {
	Soil
	In Inputs

	// Prev is the state at the end of the previous day and State is
	// the state at the end of the current day.
	Prev, State State

	Out Fluxes
}

// CellManipulator is a class of functions that operate on a single grid cell.
type CellManipulator func(p *Pixel, c *Constants)

// InitialState returns a function that sets the state of a grid cell
// on the first model day. If the inputs needed for the first day are
// masked, the fluxes are masked and, under MaskHold, the soil starts
// half full.
func InitialState(policy MaskPolicy) CellManipulator {
	return func(p *Pixel, c *Constants) {
		if p.Soil.masked() {
			p.State, p.Out = maskedState, maskedFluxes
			return
		}
		if math.IsNaN(p.In.Precip) || math.IsNaN(p.In.TMean) || math.IsNaN(p.In.InterceptFraction) {
			p.Out = maskedFluxes
			if policy == MaskPropagate {
				p.State = maskedState
			} else {
				p.State = State{SWI: 0.5 * p.WHC}
			}
			return
		}
		p.State, p.Out = Initial(p.In, p.Soil, c)
	}
}

// WaterBalance returns a function that calculates one day of the
// water balance in a grid cell.
func WaterBalance(policy MaskPolicy) CellManipulator {
	return func(p *Pixel, c *Constants) {
		if p.Soil.masked() {
			p.State, p.Out = maskedState, maskedFluxes
			return
		}
		if p.In.masked() || p.Prev.masked() {
			p.Out = maskedFluxes
			if policy == MaskPropagate {
				p.State = maskedState
			} else {
				p.State = p.Prev
			}
			return
		}
		p.State, p.Out = Step(p.Prev, p.In, p.Soil, c)
	}
}
