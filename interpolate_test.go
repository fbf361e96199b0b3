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
	"errors"
	"testing"
	"time"
)

// compositeSeries returns 16-day composites starting on 1 January 2019.
func compositeSeries(t *testing.T) *GridSeries {
	return NewGridSeries(NDVI,
		GridFrame{Time: date(2019, 1, 1), Grid: mustGrid(t, 0.2, 0.2, 0.2, 0.2, 0.2, nan)},
		GridFrame{Time: date(2019, 1, 17), Grid: mustGrid(t, 0.6, nan, 0.6, 0.6, 0.6, nan)},
		GridFrame{Time: date(2019, 2, 2), Grid: mustGrid(t, 0.4, 0.4, 0.4, 0.4, 0.4, nan)},
	)
}

func TestInterpolateExactAtSourceDates(t *testing.T) {
	src := compositeSeries(t)
	out, err := Interpolate(src, src.Dates(), 16)
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range src.Frames {
		for k := 0; k < f.Grid.Len(); k++ {
			want, have := f.Grid.Get1d(k), out.Frames[i].Grid.Get1d(k)
			if f.Grid.Masked(k) {
				continue
			}
			if want != have {
				t.Errorf("%v cell %d: %g != %g", f.Time, k, have, want)
			}
		}
	}
}

func TestInterpolateLinear(t *testing.T) {
	src := compositeSeries(t)
	out, err := Interpolate(src, DailyDates(date(2019, 1, 1), date(2019, 2, 2)), 16)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Frames) != 33 {
		t.Fatalf("have %d frames, want 33", len(out.Frames))
	}
	// 5 January is a quarter of the way from 1 to 17 January.
	g := out.Frames[4].Grid
	if absDifferent(g.Get1d(0), 0.3, 1e-12) {
		t.Errorf("cell 0 on 5 January: %g != 0.3", g.Get1d(0))
	}
	// Cell 1 is masked on 17 January, so on that day it is interpolated
	// between 1 January and 2 February.
	if v := out.Frames[16].Grid.Get1d(1); absDifferent(v, 0.3, 1e-12) {
		t.Errorf("cell 1 on 17 January: %g != 0.3", v)
	}
	// On 5 January, 2 February is out of reach so the earlier value is held.
	if v := g.Get1d(1); v != 0.2 {
		t.Errorf("cell 1 on 5 January: %g != 0.2", v)
	}
	// Cell 5 is never observed.
	for _, f := range out.Frames {
		if !f.Grid.Masked(5) {
			t.Errorf("cell 5 on %v should be masked", f.Time)
		}
	}
	// 25 January is halfway between 17 January and 2 February.
	if absDifferent(out.Frames[24].Grid.Get1d(0), 0.5, 1e-12) {
		t.Errorf("cell 0 on 25 January: %g != 0.5", out.Frames[24].Grid.Get1d(0))
	}
}

func TestInterpolateGap(t *testing.T) {
	src := NewGridSeries(NDVI, GridFrame{Time: date(2019, 1, 1), Grid: NewGrid(testSpec, 0.7)})
	out, err := Interpolate(src, []time.Time{date(2019, 1, 11), date(2019, 1, 21)}, 16)
	if err != nil {
		t.Fatal(err)
	}
	if v := out.Frames[0].Grid.Get1d(0); v != 0.7 {
		t.Errorf("day 10 should hold the only earlier value: %g", v)
	}
	if n := out.Frames[1].Grid.NumMasked(); n != testSpec.Len() {
		t.Errorf("day 20 should be masked but %d cells are not", testSpec.Len()-n)
	}
}

func TestInterpolateOneSided(t *testing.T) {
	src := NewGridSeries(NDVI, GridFrame{Time: date(2019, 1, 10), Grid: NewGrid(testSpec, 0.3)})
	out, err := Interpolate(src, []time.Time{date(2019, 1, 1)}, 16)
	if err != nil {
		t.Fatal(err)
	}
	if v := out.Frames[0].Grid.Get1d(0); v != 0.3 {
		t.Errorf("a date before all frames should take the next value: %g", v)
	}
}

func TestInterpolateWindow(t *testing.T) {
	src := NewGridSeries(NDVI,
		GridFrame{Time: date(2019, 1, 1), Grid: NewGrid(testSpec, 0.1)},
		GridFrame{Time: date(2019, 1, 10), Grid: NewGrid(testSpec, 0.4)},
	)
	// Looking forward from 3 January, 10 January is 7 days away, which is
	// outside of a 5-day window, so only the earlier frame is used.
	out, err := Interpolate(src, []time.Time{date(2019, 1, 3)}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if v := out.Frames[0].Grid.Get1d(0); v != 0.1 {
		t.Errorf("%g != 0.1", v)
	}
}

func TestInterpolateTies(t *testing.T) {
	src := NewGridSeries(NDVI,
		GridFrame{Time: date(2019, 1, 1), Grid: NewGrid(testSpec, 0.1)},
		GridFrame{Time: date(2019, 1, 1), Grid: NewGrid(testSpec, 0.9)},
	)
	out, err := Interpolate(src, []time.Time{date(2019, 1, 1), date(2019, 1, 5)}, 16)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range out.Frames {
		if v := f.Grid.Get1d(0); v != 0.1 {
			t.Errorf("%v: the first of the tied frames should win: %g", f.Time, v)
		}
	}
}

func TestInterpolateSubDailyTimes(t *testing.T) {
	noon := 12 * time.Hour
	src := NewGridSeries(NDVI,
		GridFrame{Time: date(2019, 1, 1).Add(noon), Grid: NewGrid(testSpec, 0.2)},
		GridFrame{Time: date(2019, 1, 9).Add(noon), Grid: NewGrid(testSpec, 0.6)},
	)
	targets := []time.Time{date(2019, 1, 1), date(2019, 1, 5), date(2019, 1, 9)}
	out, err := Interpolate(src, targets, 16)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{0.2, 0.4, 0.6} {
		if !out.Frames[i].Time.Equal(targets[i]) {
			t.Errorf("frame %d time: %v != %v", i, out.Frames[i].Time, targets[i])
		}
		if v := out.Frames[i].Grid.Get1d(0); absDifferent(v, want, 1e-12) {
			t.Errorf("%v: %g != %g", targets[i], v, want)
		}
	}
}

func TestInterpolateErrors(t *testing.T) {
	if _, err := Interpolate(&GridSeries{Name: NDVI}, []time.Time{date(2019, 1, 1)}, 16); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("want ErrEmptySeries, got %v", err)
	}
	src := NewGridSeries(NDVI, GridFrame{Time: date(2019, 1, 1), Grid: NewGrid(testSpec, 0.1)})
	if _, err := Interpolate(src, nil, -1); err == nil {
		t.Error("expected an error for negative interpDays")
	}
}
