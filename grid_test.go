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
	"math"
	"testing"
	"time"
)

var testSpec = NewGridSpec(-1000, 500, 30, 30, 3, 2)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func mustGrid(t *testing.T, values ...float64) *Grid {
	t.Helper()
	g, err := NewGridFromValues(testSpec, values)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var nan = math.NaN()

func TestGridSpec(t *testing.T) {
	if testSpec.Len() != 6 {
		t.Errorf("len: %d != 6", testSpec.Len())
	}
	if testSpec.Dx() != 30 || testSpec.Dy() != 30 {
		t.Errorf("cell size: %g, %g", testSpec.Dx(), testSpec.Dy())
	}
	x0, y0 := testSpec.Origin()
	if x0 != -1000 || y0 != 500 {
		t.Errorf("origin: %g, %g", x0, y0)
	}
	if !testSpec.Equal(NewGridSpec(-1000, 500, 30, 30, 3, 2)) {
		t.Error("identical specs should be equal")
	}
	if testSpec.Equal(NewGridSpec(-1000, 530, 30, 30, 3, 2)) {
		t.Error("shifted specs should not be equal")
	}
	if testSpec.Equal(NewGridSpec(-1000, 500, 30, 30, 2, 3)) {
		t.Error("transposed specs should not be equal")
	}
}

func TestNewGridFromValues(t *testing.T) {
	if _, err := NewGridFromValues(testSpec, []float64{1, 2}); err == nil {
		t.Error("expected an error for the wrong number of values")
	}
	g := mustGrid(t, 1, 2, 3, 4, 5, 6)
	if g.At(1, 0) != 4 {
		t.Errorf("At(1, 0) = %g; want 4", g.At(1, 0))
	}
	v := g.Values()
	v[0] = 100
	if g.Get1d(0) != 1 {
		t.Error("Values should return a copy")
	}
}

func TestCheckAligned(t *testing.T) {
	a := NewGrid(testSpec, 1)
	b := NewGrid(testSpec, 2)
	c := NewGrid(NewGridSpec(0, 0, 30, 30, 3, 2), 2)
	if err := CheckAligned(a, b, nil); err != nil {
		t.Error(err)
	}
	if err := CheckAligned(a, c); !errors.Is(err, ErrMisaligned) {
		t.Errorf("want ErrMisaligned, got %v", err)
	}
	if _, err := Add(a, c); !errors.Is(err, ErrMisaligned) {
		t.Errorf("Add: want ErrMisaligned, got %v", err)
	}
}

func TestArithmetic(t *testing.T) {
	a := mustGrid(t, 1, 2, 3, 4, nan, 6)
	b := mustGrid(t, 2, 2, 0, 1, 1, 3)

	sum, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{3, 4, 3, 5, nan, 9}
	for k, w := range want {
		if math.IsNaN(w) {
			if !sum.Masked(k) {
				t.Errorf("sum[%d] should be masked", k)
			}
			continue
		}
		if sum.Get1d(k) != w {
			t.Errorf("sum[%d] = %g; want %g", k, sum.Get1d(k), w)
		}
	}

	q, err := Div(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Masked(2) {
		t.Error("division by zero should be masked")
	}
	if q.Get1d(5) != 2 {
		t.Errorf("6/3 = %g", q.Get1d(5))
	}

	mx, err := Max(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if mx.Get1d(0) != 2 || mx.Get1d(3) != 4 {
		t.Errorf("max: %v", mx.Values())
	}

	s := a.Scale(2, 1)
	if s.Get1d(1) != 5 {
		t.Errorf("scale: %g != 5", s.Get1d(1))
	}
	if a.Get1d(1) != 2 {
		t.Error("Scale modified its receiver")
	}
}

func TestWhere(t *testing.T) {
	cond := mustGrid(t, 1, 0, nan, 1, 0, 1)
	a := NewGrid(testSpec, 10)
	b := NewGrid(testSpec, 20)
	w, err := Where(cond, a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{10, 20, nan, 10, 20, 10}
	for k, v := range want {
		got := w.Get1d(k)
		if math.IsNaN(v) != math.IsNaN(got) || (!math.IsNaN(v) && v != got) {
			t.Errorf("%d: %g != %g", k, got, v)
		}
	}

	gt, err := Greater(a, mustGrid(t, 5, 15, 10, nan, 0, 10))
	if err != nil {
		t.Fatal(err)
	}
	wantGT := []float64{1, 0, 0, nan, 1, 0}
	for k, v := range wantGT {
		got := gt.Get1d(k)
		if math.IsNaN(v) != math.IsNaN(got) || (!math.IsNaN(v) && v != got) {
			t.Errorf("greater %d: %g != %g", k, got, v)
		}
	}
}

func TestNormalizedDifference(t *testing.T) {
	nir := mustGrid(t, 0.5, 0.3, 0, 0.4, nan, 0.2)
	red := mustGrid(t, 0.1, 0.3, 0, 0.6, 0.1, 0)
	nd, err := NormalizedDifference(nir, red)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.4 / 0.6, 0, nan, -0.2, nan, 1}
	for k, v := range want {
		got := nd.Get1d(k)
		if math.IsNaN(v) {
			if !math.IsNaN(got) {
				t.Errorf("%d: %g should be masked", k, got)
			}
			continue
		}
		if absDifferent(got, v, 1e-12) {
			t.Errorf("%d: %g != %g", k, got, v)
		}
	}
}

func TestGridSummaries(t *testing.T) {
	g := mustGrid(t, 1, 2, nan, 3, nan, 6)
	if g.Sum() != 12 {
		t.Errorf("sum: %g != 12", g.Sum())
	}
	if g.Mean() != 3 {
		t.Errorf("mean: %g != 3", g.Mean())
	}
	if g.NumMasked() != 2 {
		t.Errorf("masked: %d != 2", g.NumMasked())
	}
	if m := NewGrid(testSpec, nan).Mean(); !math.IsNaN(m) {
		t.Errorf("mean of fully masked grid: %g", m)
	}
	masked, err := g.Mask(mustGrid(t, 1, 0, 1, 1, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !masked.Masked(1) || masked.Get1d(0) != 1 {
		t.Errorf("mask: %v", masked.Values())
	}
}
