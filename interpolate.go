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
	"sort"
	"time"
)

const day = 24 * time.Hour

// Interpolate linearly interpolates the irregularly spaced frames in src
// to each of the target times. Frame and target times are first moved
// to the start of their UTC calendar day. For each target time d and each cell,
// the value is interpolated between the latest unmasked frame at or
// before d and the earliest unmasked frame at or after d, looking back
// at most interpDays days and forward less than interpDays+1 days.
// If only one of the two exists its value is used as is, and if neither
// exists the cell is masked. When several frames share a time, the one
// that comes first in src wins.
//
// The result has one frame per target time, named after src.
func Interpolate(src *GridSeries, targets []time.Time, interpDays int) (*GridSeries, error) {
	if interpDays < 0 {
		return nil, fmt.Errorf("veget: interpolating %s: interpDays must not be negative, got %d", src.Name, interpDays)
	}
	spec, err := src.Spec()
	if err != nil {
		return nil, fmt.Errorf("veget: interpolating: %w", err)
	}
	// Frames are placed on their calendar day. Sort a copy so that
	// ties keep their original order.
	days := make([]GridFrame, len(src.Frames))
	for i, f := range src.Frames {
		days[i] = GridFrame{Time: Day(f.Time), Grid: f.Grid}
	}
	frames := NewGridSeries(src.Name, days...).Frames

	o := &GridSeries{Name: src.Name, Frames: make([]GridFrame, len(targets))}
	for i, d := range targets {
		dd := Day(d)
		lo := dd.Add(-time.Duration(interpDays) * day)
		hi := dd.Add(time.Duration(interpDays+1) * day)
		first := sort.Search(len(frames), func(j int) bool { return !frames[j].Time.Before(lo) })
		last := sort.Search(len(frames), func(j int) bool { return !frames[j].Time.Before(hi) })
		o.Frames[i] = GridFrame{Time: d, Grid: interpolateFrame(spec, dd, frames[first:last])}
	}
	return o, nil
}

// interpolateFrame interpolates the candidate frames, which are
// sorted by time and all lie within the search window, to time d.
func interpolateFrame(spec GridSpec, d time.Time, candidates []GridFrame) *Grid {
	out := NewGrid(spec, 0)
	parallelFor(out.Len(), func(k int) {
		out.data.Elements[k] = interpolateCell(k, d, candidates)
	})
	return out
}

func interpolateCell(k int, d time.Time, candidates []GridFrame) float64 {
	var (
		prev, next         float64
		prevT, nextT       time.Time
		havePrev, haveNext bool
	)
	for _, f := range candidates {
		v := f.Grid.data.Elements[k]
		if math.IsNaN(v) {
			continue
		}
		if !f.Time.After(d) && (!havePrev || f.Time.After(prevT)) {
			prev, prevT, havePrev = v, f.Time, true
		}
		if !haveNext && !f.Time.Before(d) {
			next, nextT, haveNext = v, f.Time, true
		}
	}
	switch {
	case !havePrev && !haveNext:
		return math.NaN()
	case !havePrev:
		prev, prevT = next, nextT
	case !haveNext:
		next, nextT = prev, prevT
	}
	span := nextT.Sub(prevT)
	if span == 0 {
		return prev
	}
	ratio := float64(d.Sub(prevT)) / float64(span)
	return prev + (next-prev)*ratio
}
