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

// Reducer specifies how the sub-daily frames within a day are combined.
type Reducer string

const (
	// ReduceSum adds the frames together. It is used for
	// accumulated quantities such as precipitation.
	ReduceSum Reducer = "sum"

	// ReduceMean averages the frames.
	ReduceMean Reducer = "mean"

	// ReduceFirst keeps the first unmasked value in each cell.
	ReduceFirst Reducer = "first"
)

// ParseReducer returns the Reducer with the given name. An empty name
// gives ReduceSum.
func ParseReducer(s string) (Reducer, error) {
	switch Reducer(s) {
	case "", ReduceSum:
		return ReduceSum, nil
	case ReduceMean, ReduceFirst:
		return Reducer(s), nil
	default:
		return "", fmt.Errorf("veget: invalid reducer %q; valid options are sum, mean, and first", s)
	}
}

// AggregateDaily combines the frames in s that fall on the same UTC
// calendar day using reducer r. The output holds one frame, stamped at
// the start of the day, for each day that has at least one input frame.
// For ReduceSum and ReduceMean a cell that is masked in any frame of the
// day is masked in the result.
func AggregateDaily(s *GridSeries, r Reducer) (*GridSeries, error) {
	r, err := ParseReducer(string(r))
	if err != nil {
		return nil, err
	}
	o := &GridSeries{Name: s.Name}
	if len(s.Frames) == 0 {
		return o, nil
	}
	if _, err := s.Spec(); err != nil {
		return nil, fmt.Errorf("veget: aggregating: %w", err)
	}
	frames := NewGridSeries(s.Name, s.Frames...).Frames

	var group []*Grid
	start := 0
	for i := 1; i <= len(frames); i++ {
		if i < len(frames) && Day(frames[i].Time).Equal(Day(frames[start].Time)) {
			continue
		}
		group = group[:0]
		for _, f := range frames[start:i] {
			group = append(group, f.Grid)
		}
		o.Frames = append(o.Frames, GridFrame{Time: Day(frames[start].Time), Grid: reduce(group, r)})
		start = i
	}
	return o, nil
}

func reduce(grids []*Grid, r Reducer) *Grid {
	out := NewGrid(grids[0].Spec, 0)
	for k := range out.data.Elements {
		switch r {
		case ReduceFirst:
			v := math.NaN()
			for _, g := range grids {
				if x := g.data.Elements[k]; !math.IsNaN(x) {
					v = x
					break
				}
			}
			out.data.Elements[k] = v
		default:
			var v float64
			for _, g := range grids {
				v += g.data.Elements[k]
			}
			if r == ReduceMean {
				v /= float64(len(grids))
			}
			out.data.Elements[k] = v
		}
	}
	return out
}
