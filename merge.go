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
	"time"
)

// Names of the daily input variables.
const (
	NDVI   = "ndvi"  // normalized difference vegetation index [-]
	Precip = "pr"    // precipitation [mm/day]
	ETo    = "eto"   // reference evapotranspiration [mm/day]
	TMean  = "tmean" // mean air temperature [°C]
	TMin   = "tmin"  // minimum air temperature [°C]
	TMax   = "tmax"  // maximum air temperature [°C]
)

// InputNames lists the daily input variables that every model day needs.
var InputNames = []string{NDVI, Precip, ETo, TMean, TMin, TMax}

// MultiVariableFrame holds all of the daily inputs for one model day.
type MultiVariableFrame struct {
	Date time.Time
	Vars map[string]*Grid
}

// Merge joins the daily input series into one frame per model day.
// The model days are the days on which the primary series has a frame,
// limited to [start, end]; a zero start or end leaves that side open.
// Every other series in InputNames must have a frame on each model day.
// A series named InterceptFraction, if present, is joined in the same way
// and overrides the static intercept fraction on the days it covers.
//
// Merge returns ErrMissingVariable, ErrMissingFrame, ErrEmptySeries, or
// ErrMisaligned if the inputs cannot be joined.
func Merge(primary string, series map[string]*GridSeries, static *StaticParameters, start, end time.Time) ([]MultiVariableFrame, error) {
	if static != nil {
		if err := static.Check(); err != nil {
			return nil, err
		}
	}
	names := InputNames
	if _, ok := series[InterceptFraction]; ok {
		names = append(append([]string{}, InputNames...), InterceptFraction)
	}
	if _, ok := series[primary]; !ok {
		return nil, fmt.Errorf("%w: primary variable %s", ErrMissingVariable, primary)
	}

	var spec *GridSpec
	if static != nil {
		spec = &static.WHC.Spec
	}
	byDay := make(map[string]map[int64]GridFrame, len(names))
	for _, n := range names {
		s, ok := series[n]
		if !ok || s == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingVariable, n)
		}
		sp, err := s.Spec()
		if err != nil {
			return nil, err
		}
		if spec == nil {
			spec = &sp
		} else if !spec.Equal(sp) {
			return nil, fmt.Errorf("veget: merging %s: %w: %v != %v", n, ErrMisaligned, sp, *spec)
		}
		byDay[n] = s.ByDay()
	}

	var dates []time.Time
	for _, d := range series[primary].Dates() {
		if !start.IsZero() && d.Before(Day(start)) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		dates = append(dates, d)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: %s has no frames between %s and %s", ErrEmptySeries, primary,
			start.Format(dateFormat), end.Format(dateFormat))
	}

	o := make([]MultiVariableFrame, len(dates))
	for i, d := range dates {
		f := MultiVariableFrame{Date: d, Vars: make(map[string]*Grid, len(names))}
		for _, n := range names {
			fr, ok := byDay[n][d.Unix()]
			if !ok {
				return nil, fmt.Errorf("%w: %s on %s", ErrMissingFrame, n, d.Format(dateFormat))
			}
			f.Vars[n] = fr.Grid
		}
		o[i] = f
	}
	return o, nil
}
