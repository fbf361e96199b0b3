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
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// SourceKind specifies the temporal resolution of an input source.
type SourceKind string

const (
	// SourceDaily sources have one frame per model day.
	SourceDaily SourceKind = "daily"

	// SourceComposite sources have irregularly spaced frames, such as
	// multi-day satellite composites, and are interpolated to the model days.
	SourceComposite SourceKind = "composite"

	// SourceSubDaily sources have several frames per day, which are
	// aggregated to one frame per day.
	SourceSubDaily SourceKind = "subdaily"
)

// InputSource describes where one input variable comes from and how it
// is converted to daily values.
type InputSource struct {
	// File is the path to a NetCDF file and Variable is the name of
	// the variable within it.
	File, Variable string

	Kind SourceKind

	// The values are multiplied by Scale and then Offset is added.
	// A zero Scale is treated as 1.
	Scale, Offset float64

	// Reducer is used to aggregate SourceSubDaily sources.
	Reducer Reducer
}

// StaticSource describes where a static parameter comes from.
type StaticSource struct {
	File, Variable string
}

// PreprocConfig holds the information needed to prepare the model inputs.
type PreprocConfig struct {
	// Inputs holds one source for each name in InputNames, and
	// optionally one for InterceptFraction.
	Inputs map[string]InputSource

	// Static holds one source for each name in StaticNames.
	Static map[string]StaticSource

	// Primary is the input whose dates become the model days.
	// It must be a SourceDaily or SourceSubDaily input.
	Primary string

	// Start and End limit the model days, inclusive.
	Start, End time.Time

	// InterpDays is the largest number of days that composite inputs
	// are interpolated across.
	InterpDays int

	// If SeasonBegin and SeasonEnd are not zero, only model days
	// within these months are kept.
	SeasonBegin, SeasonEnd time.Month
}

// Check makes sure the configuration is complete.
func (c *PreprocConfig) Check() error {
	for _, n := range InputNames {
		if _, ok := c.Inputs[n]; !ok {
			return fmt.Errorf("%w: no source for input %s", ErrMissingVariable, n)
		}
	}
	for n := range c.Inputs {
		if !isInputName(n) && n != InterceptFraction {
			return fmt.Errorf("veget: invalid input variable %q", n)
		}
	}
	for _, n := range StaticNames {
		if _, ok := c.Static[n]; !ok {
			return fmt.Errorf("%w: no source for static parameter %s", ErrMissingVariable, n)
		}
	}
	p, ok := c.Inputs[c.Primary]
	if !ok {
		return fmt.Errorf("%w: primary variable %q", ErrMissingVariable, c.Primary)
	}
	if p.Kind == SourceComposite {
		return fmt.Errorf("veget: primary variable %s cannot be a composite source", c.Primary)
	}
	if !c.End.IsZero() && c.End.Before(c.Start) {
		return fmt.Errorf("veget: end date %s is before start date %s",
			c.End.Format(dateFormat), c.Start.Format(dateFormat))
	}
	if c.InterpDays < 0 {
		return fmt.Errorf("veget: InterpDays must not be negative")
	}
	if (c.SeasonBegin == 0) != (c.SeasonEnd == 0) {
		return fmt.Errorf("veget: both or neither of the growing season months must be set")
	}
	return nil
}

func isInputName(n string) bool {
	for _, v := range InputNames {
		if v == n {
			return true
		}
	}
	return false
}

// Preprocess reads the input sources described by c, converts them to
// daily values, and joins them into one frame per model day. log
// receives progress messages and may be nil.
func Preprocess(c *PreprocConfig, log logrus.FieldLogger) ([]MultiVariableFrame, *StaticParameters, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := c.Check(); err != nil {
		return nil, nil, err
	}

	static := new(StaticParameters)
	for _, n := range StaticNames {
		src := c.Static[n]
		g, err := readGridFile(src.File, src.Variable)
		if err != nil {
			return nil, nil, err
		}
		if err := static.Set(n, g); err != nil {
			return nil, nil, err
		}
		log.WithFields(logrus.Fields{"parameter": n, "file": src.File}).Debug("read static parameter")
	}

	raw := make(map[string]*GridSeries, len(c.Inputs))
	for n, src := range c.Inputs {
		s, err := readSeriesFile(src.File, src.Variable)
		if err != nil {
			return nil, nil, err
		}
		s.Name = n
		raw[n] = s
		log.WithFields(logrus.Fields{"variable": n, "file": src.File, "frames": s.Len()}).Info("read input")
	}

	primary, err := DailySeries(raw[c.Primary], c.Inputs[c.Primary], nil, 0)
	if err != nil {
		return nil, nil, err
	}
	if c.SeasonBegin != 0 {
		primary = primary.FilterMonths(c.SeasonBegin, c.SeasonEnd)
	}
	var dates []time.Time
	for _, d := range primary.Dates() {
		if (c.Start.IsZero() || !d.Before(Day(c.Start))) && (c.End.IsZero() || !d.After(c.End)) {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no frames in the simulation period", ErrEmptySeries, c.Primary)
	}

	daily := map[string]*GridSeries{c.Primary: primary}
	for n, src := range c.Inputs {
		if n == c.Primary {
			continue
		}
		s, err := DailySeries(raw[n], src, dates, c.InterpDays)
		if err != nil {
			return nil, nil, err
		}
		daily[n] = s
	}
	frames, err := Merge(c.Primary, daily, static, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{
		"start": frames[0].Date.Format(dateFormat),
		"end":   frames[len(frames)-1].Date.Format(dateFormat),
		"days":  len(frames),
	}).Info("prepared model inputs")
	return frames, static, nil
}

// DailySeries converts s to daily values according to its source kind.
// Composite sources are interpolated to the given dates; the other kinds
// ignore dates and interpDays.
func DailySeries(s *GridSeries, src InputSource, dates []time.Time, interpDays int) (*GridSeries, error) {
	scale := src.Scale
	if scale == 0 {
		scale = 1
	}
	if scale != 1 || src.Offset != 0 {
		var err error
		s, err = s.Map(func(g *Grid) (*Grid, error) { return g.Scale(scale, src.Offset), nil })
		if err != nil {
			return nil, err
		}
	}
	switch src.Kind {
	case SourceDaily, "":
		return s, nil
	case SourceComposite:
		return Interpolate(s, dates, interpDays)
	case SourceSubDaily:
		return AggregateDaily(s, src.Reducer)
	default:
		return nil, fmt.Errorf("veget: invalid source kind %q for %s; valid options are daily, composite, and subdaily", src.Kind, s.Name)
	}
}

func readSeriesFile(file, variable string) (*GridSeries, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("veget: opening input file: %v", err)
	}
	defer f.Close()
	return ReadSeriesNCF(f, variable)
}

func readGridFile(file, variable string) (*Grid, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("veget: opening static parameter file: %v", err)
	}
	defer f.Close()
	return ReadGridNCF(f, variable)
}
