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
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Names of the NetCDF dimensions and the time variable.
const (
	timeDim   = "time"
	yDim      = "y"
	xDim      = "x"
	timeUnits = "days since 1970-01-01 00:00:00"
)

// NextFrame is a function that returns the next frame of a time
// series each time it is called, and io.EOF after the last frame.
type NextFrame func() (GridFrame, error)

// ReadSeriesNCF reads the variable varName out of NetCDF file f.
// The variable must have dimensions (time, y, x), where time is the
// record dimension, and the file must contain a "time" variable in
// days since 1970-01-01. The grid extent is read from the global
// attributes x0, y0, dx, and dy. Values equal to the variable's
// fill value are masked.
func ReadSeriesNCF(f *os.File, varName string) (*GridSeries, error) {
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("veget: reading %s from %s: %v", varName, f.Name(), err)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	nrec := int(ff.Header.NumRecs(fi.Size()))
	next, err := nextFrameNCF(ff, varName, nrec)
	if err != nil {
		return nil, fmt.Errorf("veget: reading %s from %s: %v", varName, f.Name(), err)
	}
	s := &GridSeries{Name: varName}
	for {
		fr, err := next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("veget: reading %s from %s: %v", varName, f.Name(), err)
		}
		s.Frames = append(s.Frames, fr)
	}
	return NewGridSeries(varName, s.Frames...), nil
}

// nextFrameNCF returns a function that sequentially reads the nrec
// records of variable varName from ff.
func nextFrameNCF(ff *cdf.File, varName string, nrec int) (NextFrame, error) {
	dims := ff.Header.Lengths(varName)
	if len(dims) != 3 || !ff.Header.IsRecordVariable(varName) {
		return nil, fmt.Errorf("variable %s must exist and have dimensions (time, y, x)", varName)
	}
	if !ff.Header.IsRecordVariable(timeDim) {
		return nil, fmt.Errorf("file has no record variable named %s", timeDim)
	}
	spec := specFromHeader(ff.Header, dims[1], dims[2])
	fill := fillValue(ff.Header, varName)
	var i int
	return func() (GridFrame, error) {
		if i >= nrec {
			return GridFrame{}, io.EOF
		}
		t, err := readTimeNCF(ff, i)
		if err != nil {
			return GridFrame{}, err
		}
		data, err := readNCF(ff, varName, i)
		if err != nil {
			return GridFrame{}, err
		}
		for k, v := range data.Elements {
			if v == fill {
				data.Elements[k] = math.NaN()
			}
		}
		g, err := NewGridFromDense(spec, data)
		if err != nil {
			return GridFrame{}, err
		}
		i++
		return GridFrame{Time: t, Grid: g}, nil
	}, nil
}

// readNCF reads record rec of the variable v out of netcdf file ff.
func readNCF(ff *cdf.File, v string, rec int) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(v)[1:]
	nread := 1
	for _, dim := range dims {
		nread *= dim
	}
	start, end := make([]int, len(dims)+1), make([]int, len(dims)+1)
	start[0], end[0] = rec, rec
	for i, d := range dims {
		end[i+1] = d - 1
	}
	r := ff.Reader(v, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading record %d of %s: %v", rec, v, err)
	}
	data := sparse.ZerosDense(dims...)
	if err := copyValues(data.Elements, buf); err != nil {
		return nil, fmt.Errorf("reading record %d of %s: %v", rec, v, err)
	}
	return data, nil
}

// readTimeNCF reads record rec of the time variable.
func readTimeNCF(ff *cdf.File, rec int) (time.Time, error) {
	r := ff.Reader(timeDim, []int{rec}, []int{rec})
	buf := r.Zero(1)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return time.Time{}, fmt.Errorf("reading time record %d: %v", rec, err)
	}
	v := make([]float64, 1)
	if err := copyValues(v, buf); err != nil {
		return time.Time{}, fmt.Errorf("reading time record %d: %v", rec, err)
	}
	return daysToTime(v[0]), nil
}

// copyValues converts the values read from a NetCDF variable to float64.
func copyValues(dst []float64, buf interface{}) error {
	switch b := buf.(type) {
	case []float32:
		for i, v := range b {
			dst[i] = float64(v)
		}
	case []float64:
		copy(dst, b)
	case []int32:
		for i, v := range b {
			dst[i] = float64(v)
		}
	case []int16:
		for i, v := range b {
			dst[i] = float64(v)
		}
	default:
		return fmt.Errorf("unsupported data type %T", buf)
	}
	return nil
}

// fillValue returns the fill value of variable v as a float64.
func fillValue(h *cdf.Header, v string) float64 {
	switch fv := h.FillValue(v).(type) {
	case float32:
		return float64(fv)
	case float64:
		return fv
	case int32:
		return float64(fv)
	case int16:
		return float64(fv)
	default:
		return math.NaN()
	}
}

// sortedNames returns the keys of m in order, so that variables
// are written in the same order every time.
func sortedNames(m map[string]string) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

func sortedGridNames(m map[string]*Grid) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

func daysToTime(d float64) time.Time {
	return time.Unix(0, 0).UTC().Add(time.Duration(math.Round(d * float64(day))))
}

func timeToDays(t time.Time) float64 {
	return float64(t.Sub(time.Unix(0, 0))) / float64(day)
}

// specFromHeader reads the grid extent from the global attributes
// of h. Missing attributes default to a unit grid at the origin.
func specFromHeader(h *cdf.Header, ny, nx int) GridSpec {
	attr := func(name string, def float64) float64 {
		switch v := h.GetAttribute("", name).(type) {
		case []float64:
			if len(v) > 0 {
				return v[0]
			}
		case []float32:
			if len(v) > 0 {
				return float64(v[0])
			}
		}
		return def
	}
	return NewGridSpec(attr("x0", 0), attr("y0", 0), attr("dx", 1), attr("dy", 1), nx, ny)
}

// addSpecAttributes writes the grid extent to the global attributes of h.
func addSpecAttributes(h *cdf.Header, s GridSpec) {
	x0, y0 := s.Origin()
	h.AddAttribute("", "x0", []float64{x0})
	h.AddAttribute("", "y0", []float64{y0})
	h.AddAttribute("", "dx", []float64{s.Dx()})
	h.AddAttribute("", "dy", []float64{s.Dy()})
	h.AddAttribute("", "nx", []int32{int32(s.Nx)})
	h.AddAttribute("", "ny", []int32{int32(s.Ny)})
}

// ReadGridNCF reads the two-dimensional variable varName out of NetCDF
// file rw. Values equal to the variable's fill value are masked.
func ReadGridNCF(rw cdf.ReaderWriterAt, varName string) (*Grid, error) {
	ff, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("veget: reading %s: %v", varName, err)
	}
	dims := ff.Header.Lengths(varName)
	if len(dims) != 2 {
		return nil, fmt.Errorf("veget: reading %s: variable must exist and have dimensions (y, x)", varName)
	}
	r := ff.Reader(varName, nil, nil)
	buf := r.Zero(dims[0] * dims[1])
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("veget: reading %s: %v", varName, err)
	}
	data := sparse.ZerosDense(dims...)
	if err := copyValues(data.Elements, buf); err != nil {
		return nil, fmt.Errorf("veget: reading %s: %v", varName, err)
	}
	fill := fillValue(ff.Header, varName)
	for k, v := range data.Elements {
		if v == fill {
			data.Elements[k] = math.NaN()
		}
	}
	return NewGridFromDense(specFromHeader(ff.Header, dims[0], dims[1]), data)
}

// recordWriter writes one record at a time of a set of (time, y, x)
// variables to a NetCDF file.
type recordWriter struct {
	w    *os.File
	f    *cdf.File
	vars []string
	rec  int
}

type ncfVar struct {
	name, description, units string
}

// newRecordWriter writes the header of a NetCDF file with the given
// variables to w. attrs are added as global string attributes.
func newRecordWriter(w *os.File, spec GridSpec, vars []ncfVar, attrs map[string]string) (*recordWriter, error) {
	h := cdf.NewHeader([]string{timeDim, yDim, xDim}, []int{0, spec.Ny, spec.Nx})
	h.AddAttribute("", "comment", "VegET data file")
	addSpecAttributes(h, spec)
	for _, k := range sortedNames(attrs) {
		if h.GetAttribute("", k) != nil {
			return nil, fmt.Errorf("veget: global attribute %q is reserved", k)
		}
		h.AddAttribute("", k, attrs[k])
	}
	h.AddVariable(timeDim, []string{timeDim}, []float64{0})
	h.AddAttribute(timeDim, "units", timeUnits)
	o := &recordWriter{w: w}
	for _, v := range vars {
		h.AddVariable(v.name, []string{timeDim, yDim, xDim}, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
		o.vars = append(o.vars, v.name)
	}
	h.Define()
	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return nil, err
	}
	o.f = f
	return o, nil
}

// write writes one record. grids must hold one grid for each variable.
func (r *recordWriter) write(t time.Time, grids map[string]*Grid) error {
	w := r.f.Writer(timeDim, []int{r.rec}, nil)
	if _, err := w.Write([]float64{timeToDays(t)}); err != nil {
		return fmt.Errorf("veget: writing time record %d: %v", r.rec, err)
	}
	for _, v := range r.vars {
		g, ok := grids[v]
		if !ok {
			return fmt.Errorf("veget: writing record %d: no data for variable %s", r.rec, v)
		}
		if err := writeNCF(r.f, v, r.rec, g); err != nil {
			return fmt.Errorf("veget: writing variable %s to netcdf file: %v", v, err)
		}
	}
	r.rec++
	return nil
}

// close updates the record count in the file header.
func (r *recordWriter) close() error {
	return cdf.UpdateNumRecs(r.w)
}

// writeNCF writes g to record rec of variable v.
func writeNCF(f *cdf.File, v string, rec int, g *Grid) error {
	data32 := make([]float32, g.Len())
	for i, e := range g.data.Elements {
		data32[i] = float32(e)
	}
	w := f.Writer(v, []int{rec, 0, 0}, nil)
	_, err := w.Write(data32)
	return err
}

// WriteSeriesNCF writes the given series to w in the format read by
// ReadSeriesNCF. All series must have frames at the same times.
func WriteSeriesNCF(w *os.File, series ...*GridSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("veget: no series to write")
	}
	spec, err := series[0].Spec()
	if err != nil {
		return err
	}
	vars := make([]ncfVar, len(series))
	for i, s := range series {
		if len(s.Frames) != len(series[0].Frames) {
			return fmt.Errorf("veget: series %s has %d frames but %s has %d",
				s.Name, len(s.Frames), series[0].Name, len(series[0].Frames))
		}
		vars[i] = ncfVar{name: s.Name, description: s.Name, units: unitsOf(s.Name)}
	}
	rw, err := newRecordWriter(w, spec, vars, nil)
	if err != nil {
		return err
	}
	for i, fr := range series[0].Frames {
		grids := make(map[string]*Grid, len(series))
		for _, s := range series {
			if !s.Frames[i].Time.Equal(fr.Time) {
				return fmt.Errorf("veget: series %s and %s have different times", s.Name, series[0].Name)
			}
			grids[s.Name] = s.Frames[i].Grid
		}
		if err := rw.write(fr.Time, grids); err != nil {
			return err
		}
	}
	return rw.close()
}

// WriteFramesNCF writes merged daily model inputs to w, with one
// variable per input.
func WriteFramesNCF(w *os.File, frames []MultiVariableFrame) error {
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames to write", ErrEmptySeries)
	}
	names := sortedGridNames(frames[0].Vars)
	series := make([]*GridSeries, len(names))
	for i, n := range names {
		series[i] = &GridSeries{Name: n}
		for _, f := range frames {
			series[i].Frames = append(series[i].Frames, GridFrame{Time: f.Date, Grid: f.Vars[n]})
		}
	}
	return WriteSeriesNCF(w, series...)
}

// WriteStaticNCF writes the static parameters to w in the format
// read by ReadGridNCF.
func WriteStaticNCF(w *os.File, p *StaticParameters) error {
	if err := p.Check(); err != nil {
		return err
	}
	spec := p.WHC.Spec
	h := cdf.NewHeader([]string{yDim, xDim}, []int{spec.Ny, spec.Nx})
	h.AddAttribute("", "comment", "VegET static parameter file")
	addSpecAttributes(h, spec)
	for _, n := range StaticNames {
		h.AddVariable(n, []string{yDim, xDim}, []float32{0})
		h.AddAttribute(n, "units", unitsOf(n))
	}
	h.Define()
	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	for _, n := range StaticNames {
		g, _ := p.Get(n)
		data32 := make([]float32, g.Len())
		for i, e := range g.data.Elements {
			data32[i] = float32(e)
		}
		if _, err := f.Writer(n, nil, nil).Write(data32); err != nil {
			return fmt.Errorf("veget: writing variable %s to netcdf file: %v", n, err)
		}
	}
	return nil
}

// unitsOf returns the units of the named variable, or "-" if they
// are not known.
func unitsOf(name string) string {
	if u, ok := units[name]; ok {
		return u
	}
	return "-"
}

// units holds the units of the model variables.
var units = map[string]string{
	NDVI:              "-",
	Precip:            "mm day-1",
	ETo:               "mm day-1",
	TMean:             "degC",
	TMin:              "degC",
	TMax:              "degC",
	WHC:               "mm",
	FieldCapacity:     "mm",
	Saturation:        "mm",
	InterceptFraction: "-",
	OutEffPpt:         "mm day-1",
	OutRain:           "mm day-1",
	OutSnowMelt:       "mm day-1",
	OutRunoff:         "mm day-1",
	OutSurfaceRunoff:  "mm day-1",
	OutDeepDrainage:   "mm day-1",
	OutETa:            "mm day-1",
	OutSWI:            "mm",
	OutSWE:            "mm",
	OutSnowpack:       "mm",
}
