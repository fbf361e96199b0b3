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

package vegetutil

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ecolstat/VegET"
)

var testSpec = veget.NewGridSpec(-1000, 500, 30, 30, 3, 2)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// writeTestFiles writes daily inputs for 1 to 5 June 2019 and a set of
// static parameters to dir. Precipitation is 10 mm on 2 June and
// zero on the other days.
func writeTestFiles(t *testing.T, dir string) (inputFile, staticFile string) {
	t.Helper()
	values := map[string]float64{
		veget.NDVI:  0.5,
		veget.ETo:   5,
		veget.TMean: 20,
		veget.TMin:  10,
		veget.TMax:  20,
	}
	var series []*veget.GridSeries
	for _, n := range veget.InputNames {
		s := &veget.GridSeries{Name: n}
		for d := 1; d <= 5; d++ {
			v := values[n]
			if n == veget.Precip && d == 2 {
				v = 10
			}
			s.Frames = append(s.Frames, veget.GridFrame{Time: date(2019, 6, d), Grid: veget.NewGrid(testSpec, v)})
		}
		series = append(series, s)
	}
	inputFile = filepath.Join(dir, "inputs.ncf")
	if err := writeFile(inputFile, func(w *os.File) error { return veget.WriteSeriesNCF(w, series...) }); err != nil {
		t.Fatal(err)
	}
	staticFile = filepath.Join(dir, "soil.ncf")
	p := &veget.StaticParameters{
		WHC:               veget.NewGrid(testSpec, 100),
		FieldCapacity:     veget.NewGrid(testSpec, 30),
		Saturation:        veget.NewGrid(testSpec, 40),
		InterceptFraction: veget.NewGrid(testSpec, 0),
	}
	if err := writeFile(staticFile, func(w *os.File) error { return veget.WriteStaticNCF(w, p) }); err != nil {
		t.Fatal(err)
	}
	return inputFile, staticFile
}

// setTestConfig points Cfg at the files written by writeTestFiles.
func setTestConfig(inputFile, staticFile string) {
	inputs := make(map[string]map[string]interface{})
	for _, n := range veget.InputNames {
		inputs[n] = map[string]interface{}{"File": inputFile, "Variable": n}
	}
	static := make(map[string]map[string]interface{})
	for _, n := range veget.StaticNames {
		static[n] = map[string]interface{}{"File": staticFile}
	}
	Cfg.Set("config", "")
	Cfg.Set("Inputs", inputs)
	Cfg.Set("Static", static)
	Cfg.Set("PrimaryVariable", veget.Precip)
	Cfg.Set("StartDate", "20190602")
	Cfg.Set("EndDate", "20190604")
	Cfg.Set("GrowingSeason.Begin", 0)
	Cfg.Set("GrowingSeason.End", 0)
	Cfg.Set("MaskPolicy", "hold")
}

func readSeries(t *testing.T, fname, name string) *veget.GridSeries {
	t.Helper()
	f, err := os.Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, err := veget.ReadSeriesNCF(f, name)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVersion(t *testing.T) {
	Cfg.Set("config", "")
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "VegET v" + veget.Version; !strings.Contains(buf.String(), want) {
		t.Errorf("output %q does not contain %q", buf.String(), want)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	setTestConfig(writeTestFiles(t, dir))
	outputFile := filepath.Join(dir, "output.ncf")
	Cfg.Set("OutputFile", outputFile)
	Cfg.Set("LogFile", "")
	Cfg.Set("OutputVariables", map[string]string{
		"SWI":    "SWI",
		"ETFrac": "ETa / eto",
	})
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	swi := readSeries(t, outputFile, "SWI")
	want := []float64{60, 56.875, 53.75}
	if swi.Len() != len(want) {
		t.Fatalf("have %d days, want %d", swi.Len(), len(want))
	}
	for i, w := range want {
		if !swi.Frames[i].Time.Equal(date(2019, 6, 2+i)) {
			t.Errorf("day %d: %v", i, swi.Frames[i].Time)
		}
		if v := swi.Frames[i].Grid.Get1d(0); math.Abs(v-w) > 1e-6 {
			t.Errorf("day %d SWI: %g != %g", i, v, w)
		}
	}
	frac := readSeries(t, outputFile, "ETFrac")
	if v := frac.Frames[2].Grid.Get1d(5); math.Abs(v-0.625) > 1e-6 {
		t.Errorf("ETFrac: %g != 0.625", v)
	}

	logFile := filepath.Join(dir, "output.log")
	b, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "simulation completed successfully") {
		t.Errorf("log file is missing the completion message:\n%s", b)
	}
	if !strings.Contains(buf.String(), "finished model day") {
		t.Error("progress messages were not written to the command output")
	}
}

func TestPreproc(t *testing.T) {
	dir := t.TempDir()
	setTestConfig(writeTestFiles(t, dir))
	outputFile := filepath.Join(dir, "merged.ncf")
	staticFile := filepath.Join(dir, "static.ncf")
	Cfg.Set("Preproc.OutputFile", outputFile)
	Cfg.Set("Preproc.StaticOutputFile", staticFile)
	Cfg.Set("LogFile", filepath.Join(dir, "preproc.log"))
	Root.SetOutput(new(bytes.Buffer))
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"preproc"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	pr := readSeries(t, outputFile, veget.Precip)
	if pr.Len() != 3 || pr.Frames[0].Grid.Get1d(0) != 10 || pr.Frames[1].Grid.Get1d(0) != 0 {
		t.Errorf("merged precipitation has %d days", pr.Len())
	}
	f, err := os.Open(staticFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	whc, err := veget.ReadGridNCF(f, veget.WHC)
	if err != nil {
		t.Fatal(err)
	}
	if whc.Get1d(3) != 100 {
		t.Errorf("whc: %g != 100", whc.Get1d(3))
	}
}

func TestConfigCmd(t *testing.T) {
	Cfg.Set("config", "")
	Cfg.Set("VarA", 1.5)
	defer Cfg.Set("VarA", veget.DefaultConstants().VarA)
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"config"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"VarA = 1.5", "MaskPolicy = "} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("configuration output does not contain %q:\n%s", want, buf.String())
		}
	}
}

func TestSimulateCanceled(t *testing.T) {
	dir := t.TempDir()
	inputFile, staticFile := writeTestFiles(t, dir)
	pc := &veget.PreprocConfig{
		Inputs:     make(map[string]veget.InputSource),
		Static:     make(map[string]veget.StaticSource),
		Primary:    veget.Precip,
		Start:      date(2019, 6, 2),
		End:        date(2019, 6, 4),
		InterpDays: 16,
	}
	for _, n := range veget.InputNames {
		pc.Inputs[n] = veget.InputSource{File: inputFile, Variable: n, Kind: veget.SourceDaily}
	}
	for _, n := range veget.StaticNames {
		pc.Static[n] = veget.StaticSource{File: staticFile, Variable: n}
	}
	frames, static, err := veget.Preprocess(pc, nil)
	if err != nil {
		t.Fatal(err)
	}

	outputFile := filepath.Join(dir, "partial.ncf")
	o, err := veget.NewOutputter(outputFile, map[string]string{"SWI": "SWI"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Stop after the second model day has been written.
	stopAfterDay := func(d *veget.Model) error {
		if d.Day == 1 {
			cancel()
		}
		return nil
	}
	d := &veget.Model{
		Frames:       frames,
		Static:       static,
		Constants:    veget.DefaultConstants(),
		Policy:       veget.MaskHold,
		InitFuncs:    veget.DefaultInitFuncs(veget.MaskHold, o.Output()),
		RunFuncs:     veget.DefaultRunFuncs(veget.MaskHold, o.Output(), stopAfterDay),
		CleanupFuncs: []veget.DomainManipulator{o.Close()},
	}
	if err := simulate(ctx, d); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	swi := readSeries(t, outputFile, "SWI")
	want := []float64{60, 56.875}
	if swi.Len() != len(want) {
		t.Fatalf("have %d days, want %d", swi.Len(), len(want))
	}
	for i, w := range want {
		if v := swi.Frames[i].Grid.Get1d(0); math.Abs(v-w) > 1e-6 {
			t.Errorf("day %d SWI: %g != %g", i, v, w)
		}
	}
}
