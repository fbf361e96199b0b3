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
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/ctessum/cdf"
)

func TestCheckForDerivatives(t *testing.T) {
	o, err := NewOutputter("", map[string]string{
		"a":     "ETa * 2",
		"b":     "a + 1",
		"c":     "b * pr",
		"ETaSq": "ETa * ETa",
		"SWI":   "SWI",
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.outputVariables["c"] != "((ETa * 2) + 1) * pr" {
		t.Errorf("c = %s", o.outputVariables["c"])
	}
	if o.outputVariables["ETaSq"] != "ETa * ETa" {
		t.Errorf("ETaSq = %s", o.outputVariables["ETaSq"])
	}
	vars := append([]string{}, o.modelVariables...)
	sort.Strings(vars)
	if want := []string{"ETa", "SWI", "pr"}; !reflect.DeepEqual(vars, want) {
		t.Errorf("model variables: %v != %v", vars, want)
	}
}

func TestNewOutputterErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"empty":    {},
		"circular": {"a": "b + 1", "b": "a + 1"},
		"self":     {"a": "a + 1"},
		"name":     {"a b": "ETa"},
		"time":     {"time": "ETa"},
		"syntax":   {"a": "ETa +* 2"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewOutputter("", vars, nil, nil); err == nil {
				t.Errorf("expected an error for %v", vars)
			}
		})
	}
}

func TestCheckOutputVars(t *testing.T) {
	o, err := NewOutputter("", map[string]string{"x": "foo * 2"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(nil); err == nil {
		t.Error("expected an error for an undefined variable")
	}
	o, err = NewOutputter("", map[string]string{"x": "max(ETa, eto) / whc"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(nil); err != nil {
		t.Error(err)
	}
}

func TestOutput(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "output.ncf")
	o, err := NewOutputter(fname, map[string]string{
		"SWI":  "SWI",
		"frac": "ETa / eto",
		"wet":  "pr > 5",
		"fill": "SWI / whc",
	}, nil, map[string]string{"run_id": "test-run"})
	if err != nil {
		t.Fatal(err)
	}

	frames := modelFrames(3, testInputs)
	frames[0].Vars[Precip] = NewGrid(testSpec, 10)
	d := &Model{
		Frames:       frames,
		Static:       testStatic(),
		Constants:    DefaultConstants(),
		InitFuncs:    append([]DomainManipulator{o.CheckOutputVars()}, DefaultInitFuncs(MaskHold, o.Output())...),
		RunFuncs:     DefaultRunFuncs(MaskHold, o.Output()),
		CleanupFuncs: []DomainManipulator{o.Close()},
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.Cleanup(); err != nil {
		t.Fatal(err)
	}

	want := map[string][]float64{
		"SWI":  {60, 56.875, 53.75},
		"frac": {0, 0.625, 0.625},
		"wet":  {1, 0, 0},
		"fill": {0.6, 0.56875, 0.5375},
	}
	for name, w := range want {
		f, err := os.Open(fname)
		if err != nil {
			t.Fatal(err)
		}
		s, err := ReadSeriesNCF(f, name)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if s.Len() != len(w) {
			t.Fatalf("%s: have %d days, want %d", name, s.Len(), len(w))
		}
		for i, v := range w {
			if !s.Frames[i].Time.Equal(frames[i].Date) {
				t.Errorf("%s day %d: %v != %v", name, i, s.Frames[i].Time, frames[i].Date)
			}
			if have := s.Frames[i].Grid.Get1d(2); absDifferent(have, v, 1e-6) {
				t.Errorf("%s day %d: %g != %g", name, i, have, v)
			}
		}
	}

	f, err := os.Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	if id := ff.Header.GetAttribute("", "run_id"); id != "test-run" {
		t.Errorf("run_id attribute: %v", id)
	}
}
