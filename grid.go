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

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GridSpec describes the shape and spatial extent of a grid.
type GridSpec struct {
	Ny, Nx int

	// Bounds is the extent of the grid in the units of its spatial
	// reference. It may be nil if the grid is not georeferenced.
	Bounds *geom.Bounds
}

// NewGridSpec returns a specification for a grid with nx columns and ny rows
// whose lower-left corner is at (x0, y0) and whose cells are dx by dy in size.
func NewGridSpec(x0, y0, dx, dy float64, nx, ny int) GridSpec {
	return GridSpec{
		Nx: nx,
		Ny: ny,
		Bounds: &geom.Bounds{
			Min: geom.Point{X: x0, Y: y0},
			Max: geom.Point{X: x0 + dx*float64(nx), Y: y0 + dy*float64(ny)},
		},
	}
}

// Len returns the number of cells in the grid.
func (s GridSpec) Len() int { return s.Nx * s.Ny }

// Dx returns the width of one grid cell.
func (s GridSpec) Dx() float64 {
	if s.Bounds == nil || s.Nx == 0 {
		return 1
	}
	return (s.Bounds.Max.X - s.Bounds.Min.X) / float64(s.Nx)
}

// Dy returns the height of one grid cell.
func (s GridSpec) Dy() float64 {
	if s.Bounds == nil || s.Ny == 0 {
		return 1
	}
	return (s.Bounds.Max.Y - s.Bounds.Min.Y) / float64(s.Ny)
}

// Origin returns the lower-left corner of the grid.
func (s GridSpec) Origin() (x0, y0 float64) {
	if s.Bounds == nil {
		return 0, 0
	}
	return s.Bounds.Min.X, s.Bounds.Min.Y
}

// Equal returns whether s and o have the same shape and extent.
func (s GridSpec) Equal(o GridSpec) bool {
	if s.Nx != o.Nx || s.Ny != o.Ny {
		return false
	}
	if s.Bounds == nil || o.Bounds == nil {
		return s.Bounds == nil && o.Bounds == nil
	}
	return *s.Bounds == *o.Bounds
}

func (s GridSpec) String() string {
	if s.Bounds == nil {
		return fmt.Sprintf("%dx%d", s.Ny, s.Nx)
	}
	return fmt.Sprintf("%dx%d [%g,%g]-[%g,%g]", s.Ny, s.Nx,
		s.Bounds.Min.X, s.Bounds.Min.Y, s.Bounds.Max.X, s.Bounds.Max.Y)
}

// Grid is a two-dimensional array of values with one value per grid cell.
// Masked (no-data) cells hold NaN. Grids are not modified after they
// are created by the functions in this package.
type Grid struct {
	Spec GridSpec
	data *sparse.DenseArray
}

// NewGrid returns a grid filled with the given value.
func NewGrid(spec GridSpec, fill float64) *Grid {
	g := &Grid{Spec: spec, data: sparse.ZerosDense(spec.Ny, spec.Nx)}
	if fill != 0 {
		for i := range g.data.Elements {
			g.data.Elements[i] = fill
		}
	}
	return g
}

// NewGridFromValues returns a grid holding the given row-major values.
// The values are copied.
func NewGridFromValues(spec GridSpec, values []float64) (*Grid, error) {
	if len(values) != spec.Len() {
		return nil, fmt.Errorf("veget: grid %v needs %d values but got %d", spec, spec.Len(), len(values))
	}
	g := NewGrid(spec, 0)
	copy(g.data.Elements, values)
	return g, nil
}

// NewGridFromDense wraps a two-dimensional array in a grid. The array
// is not copied and must not be modified afterwards.
func NewGridFromDense(spec GridSpec, data *sparse.DenseArray) (*Grid, error) {
	if len(data.Shape) != 2 || data.Shape[0] != spec.Ny || data.Shape[1] != spec.Nx {
		return nil, fmt.Errorf("veget: array shape %v does not match grid %v", data.Shape, spec)
	}
	return &Grid{Spec: spec, data: data}, nil
}

// At returns the value at row j and column i.
func (g *Grid) At(j, i int) float64 { return g.data.Get(j, i) }

// Get1d returns the value at row-major index k.
func (g *Grid) Get1d(k int) float64 { return g.data.Elements[k] }

// Len returns the number of cells in the grid.
func (g *Grid) Len() int { return len(g.data.Elements) }

// Masked returns whether the cell at row-major index k holds no data.
func (g *Grid) Masked(k int) bool { return math.IsNaN(g.data.Elements[k]) }

// Values returns a copy of the row-major grid values.
func (g *Grid) Values() []float64 {
	o := make([]float64, len(g.data.Elements))
	copy(o, g.data.Elements)
	return o
}

// Dense returns a copy of the grid values as a [ny, nx] array.
func (g *Grid) Dense() *sparse.DenseArray { return g.data.Copy() }

// Unmasked returns the values of the cells that are not masked.
func (g *Grid) Unmasked() []float64 {
	o := make([]float64, 0, len(g.data.Elements))
	for _, v := range g.data.Elements {
		if !math.IsNaN(v) {
			o = append(o, v)
		}
	}
	return o
}

// Sum returns the sum over all unmasked cells.
func (g *Grid) Sum() float64 { return floats.Sum(g.Unmasked()) }

// Mean returns the mean over all unmasked cells, or NaN if all
// cells are masked.
func (g *Grid) Mean() float64 {
	v := g.Unmasked()
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// NumMasked returns the number of masked cells.
func (g *Grid) NumMasked() int {
	return len(g.data.Elements) - len(g.Unmasked())
}

// CheckAligned returns ErrMisaligned if the given grids do not
// all share the same specification. Nil grids are ignored.
func CheckAligned(grids ...*Grid) error {
	var ref *Grid
	for _, g := range grids {
		if g == nil {
			continue
		}
		if ref == nil {
			ref = g
			continue
		}
		if !ref.Spec.Equal(g.Spec) {
			return fmt.Errorf("%w: %v != %v", ErrMisaligned, ref.Spec, g.Spec)
		}
	}
	return nil
}

// Apply returns a new grid where each cell holds f applied to the
// values of the corresponding cells in the input grids. All grids
// must be aligned.
func Apply(f func(v ...float64) float64, grids ...*Grid) (*Grid, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("veget: Apply needs at least one grid")
	}
	if err := CheckAligned(grids...); err != nil {
		return nil, err
	}
	o := NewGrid(grids[0].Spec, 0)
	vals := make([]float64, len(grids))
	for k := range o.data.Elements {
		for j, g := range grids {
			vals[j] = g.data.Elements[k]
		}
		o.data.Elements[k] = f(vals...)
	}
	return o, nil
}

// Add returns a+b. The grids must be aligned.
func Add(a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 { return v[0] + v[1] }, a, b)
}

// Sub returns a-b. The grids must be aligned.
func Sub(a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 { return v[0] - v[1] }, a, b)
}

// Mul returns a*b. The grids must be aligned.
func Mul(a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 { return v[0] * v[1] }, a, b)
}

// Div returns a/b. Cells where b is zero are masked.
func Div(a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 {
		if v[1] == 0 {
			return math.NaN()
		}
		return v[0] / v[1]
	}, a, b)
}

// Min returns the cell-wise minimum of a and b.
func Min(a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 { return math.Min(v[0], v[1]) }, a, b)
}

// Max returns the cell-wise maximum of a and b.
func Max(a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 { return math.Max(v[0], v[1]) }, a, b)
}

// Where returns a grid holding the values of a where cond is
// non-zero and the values of b elsewhere. Cells where cond is
// masked are masked.
func Where(cond, a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 {
		switch {
		case math.IsNaN(v[0]):
			return math.NaN()
		case v[0] != 0:
			return v[1]
		default:
			return v[2]
		}
	}, cond, a, b)
}

// Greater returns a grid that is 1 where a > b and 0 elsewhere.
// Cells where either input is masked are masked.
func Greater(a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 {
		if math.IsNaN(v[0]) || math.IsNaN(v[1]) {
			return math.NaN()
		}
		if v[0] > v[1] {
			return 1
		}
		return 0
	}, a, b)
}

// Scale returns g*s+offset.
func (g *Grid) Scale(s, offset float64) *Grid {
	o := &Grid{Spec: g.Spec, data: g.data.ScaleCopy(s)}
	if offset != 0 {
		for i := range o.data.Elements {
			o.data.Elements[i] += offset
		}
	}
	return o
}

// Mask returns a copy of g where cells for which mask is zero
// or masked are masked.
func (g *Grid) Mask(mask *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 {
		if math.IsNaN(v[1]) || v[1] == 0 {
			return math.NaN()
		}
		return v[0]
	}, g, mask)
}

// NormalizedDifference returns (a-b)/(a+b), for example the normalized
// difference vegetation index when a is near-infrared reflectance and
// b is red reflectance. Cells where a+b is zero are masked.
func NormalizedDifference(a, b *Grid) (*Grid, error) {
	return Apply(func(v ...float64) float64 {
		s := v[0] + v[1]
		if s == 0 {
			return math.NaN()
		}
		return (v[0] - v[1]) / s
	}, a, b)
}
