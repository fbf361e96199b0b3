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
	"sort"
	"time"
)

// GridFrame is the value of one variable at one time.
type GridFrame struct {
	Time time.Time
	Grid *Grid
}

// GridSeries is a named, chronologically ordered sequence of frames.
type GridSeries struct {
	Name   string
	Frames []GridFrame
}

// NewGridSeries returns a series holding the given frames in
// chronological order. Frames with equal times keep the order
// they were given in.
func NewGridSeries(name string, frames ...GridFrame) *GridSeries {
	s := &GridSeries{Name: name, Frames: make([]GridFrame, len(frames))}
	copy(s.Frames, frames)
	sort.SliceStable(s.Frames, func(i, j int) bool {
		return s.Frames[i].Time.Before(s.Frames[j].Time)
	})
	return s
}

// Len returns the number of frames in the series.
func (s *GridSeries) Len() int { return len(s.Frames) }

// Spec returns the specification shared by all frames in the series.
// It returns ErrEmptySeries if there are no frames and ErrMisaligned
// if the frames differ.
func (s *GridSeries) Spec() (GridSpec, error) {
	if len(s.Frames) == 0 {
		return GridSpec{}, fmt.Errorf("%w: %s", ErrEmptySeries, s.Name)
	}
	for _, f := range s.Frames[1:] {
		if err := CheckAligned(s.Frames[0].Grid, f.Grid); err != nil {
			return GridSpec{}, fmt.Errorf("veget: series %s at %s: %w", s.Name, f.Time.Format(dateFormat), err)
		}
	}
	return s.Frames[0].Grid.Spec, nil
}

// FilterDate returns the frames with start <= t < end.
func (s *GridSeries) FilterDate(start, end time.Time) *GridSeries {
	o := &GridSeries{Name: s.Name}
	for _, f := range s.Frames {
		if !f.Time.Before(start) && f.Time.Before(end) {
			o.Frames = append(o.Frames, f)
		}
	}
	return o
}

// FilterMonths returns the frames whose month lies within
// [begin, end]. If end is before begin the range wraps around
// the end of the year, so FilterMonths(time.November, time.February)
// keeps November through February.
func (s *GridSeries) FilterMonths(begin, end time.Month) *GridSeries {
	o := &GridSeries{Name: s.Name}
	for _, f := range s.Frames {
		if monthInRange(f.Time.UTC().Month(), begin, end) {
			o.Frames = append(o.Frames, f)
		}
	}
	return o
}

func monthInRange(m, begin, end time.Month) bool {
	if begin <= end {
		return m >= begin && m <= end
	}
	return m >= begin || m <= end
}

// Map returns a new series where each grid has been transformed by f.
func (s *GridSeries) Map(f func(*Grid) (*Grid, error)) (*GridSeries, error) {
	o := &GridSeries{Name: s.Name, Frames: make([]GridFrame, len(s.Frames))}
	for i, fr := range s.Frames {
		g, err := f(fr.Grid)
		if err != nil {
			return nil, fmt.Errorf("veget: series %s at %s: %w", s.Name, fr.Time.Format(dateFormat), err)
		}
		o.Frames[i] = GridFrame{Time: fr.Time, Grid: g}
	}
	return o, nil
}

// Dates returns the distinct UTC calendar days that the series has
// frames on, in order.
func (s *GridSeries) Dates() []time.Time {
	var o []time.Time
	for _, f := range s.Frames {
		d := Day(f.Time)
		if len(o) == 0 || !o[len(o)-1].Equal(d) {
			o = append(o, d)
		}
	}
	return o
}

// ByDay returns the first frame on each UTC calendar day,
// keyed by the Unix time of the start of the day.
func (s *GridSeries) ByDay() map[int64]GridFrame {
	o := make(map[int64]GridFrame, len(s.Frames))
	for _, f := range s.Frames {
		k := Day(f.Time).Unix()
		if _, ok := o[k]; !ok {
			o[k] = f
		}
	}
	return o
}

// Day returns the start of the UTC calendar day that t falls on.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyDates returns every UTC calendar day from start through end, inclusive.
func DailyDates(start, end time.Time) []time.Time {
	var o []time.Time
	for d := Day(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		o = append(o, d)
	}
	return o
}

const dateFormat = "2006-01-02"
