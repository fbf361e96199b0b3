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
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SetupPixels checks the static parameters and creates one Pixel
// per grid cell.
func SetupPixels() DomainManipulator {
	return func(d *Model) error {
		if d.Static == nil {
			return fmt.Errorf("%w: static parameters", ErrMissingVariable)
		}
		if err := d.Static.Check(); err != nil {
			return err
		}
		if err := d.Constants.Check(); err != nil {
			return err
		}
		if len(d.Frames) == 0 {
			return fmt.Errorf("%w: there are no model days", ErrEmptySeries)
		}
		for _, f := range d.Frames {
			for _, n := range InputNames {
				g, ok := f.Vars[n]
				if !ok {
					return fmt.Errorf("%w: %s on %s", ErrMissingFrame, n, f.Date.Format(dateFormat))
				}
				if err := CheckAligned(d.Static.WHC, g); err != nil {
					return fmt.Errorf("veget: %s on %s: %w", n, f.Date.Format(dateFormat), err)
				}
			}
			if err := CheckAligned(d.Static.WHC, f.Vars[InterceptFraction]); err != nil {
				return fmt.Errorf("veget: %s on %s: %w", InterceptFraction, f.Date.Format(dateFormat), err)
			}
		}
		d.Pixels = make([]*Pixel, d.Static.WHC.Len())
		for k := range d.Pixels {
			d.Pixels[k] = &Pixel{Soil: Soil{
				WHC:           d.Static.WHC.Get1d(k),
				FieldCapacity: d.Static.FieldCapacity.Get1d(k),
				Saturation:    d.Static.Saturation.Get1d(k),
			}}
		}
		d.Day = 0
		d.Done = false
		return nil
	}
}

// LoadDay copies the inputs for the current model day into the pixels.
func LoadDay() DomainManipulator {
	return func(d *Model) error {
		f := d.Frames[d.Day]
		intercept := d.Static.InterceptFraction
		if g, ok := f.Vars[InterceptFraction]; ok {
			intercept = g
		}
		ndvi, pr, eto := f.Vars[NDVI], f.Vars[Precip], f.Vars[ETo]
		tmean, tmin, tmax := f.Vars[TMean], f.Vars[TMin], f.Vars[TMax]
		parallelFor(len(d.Pixels), func(k int) {
			d.Pixels[k].In = Inputs{
				NDVI:              ndvi.Get1d(k),
				Precip:            pr.Get1d(k),
				ETo:               eto.Get1d(k),
				TMean:             tmean.Get1d(k),
				TMin:              tmin.Get1d(k),
				TMax:              tmax.Get1d(k),
				InterceptFraction: intercept.Get1d(k),
			}
		})
		return nil
	}
}

// Calculations returns a function that concurrently runs a series of calculations
// on all of the model grid cells.
func Calculations(calculators ...CellManipulator) DomainManipulator {
	return func(d *Model) error {
		c := d.Constants
		parallelFor(len(d.Pixels), func(k int) {
			p := d.Pixels[k]
			for _, f := range calculators {
				f(p, &c)
			}
		})
		return nil
	}
}

// parallelFor calls f for every index in [0, n), spreading the
// work across all available processors. It returns when all calls
// have finished.
func parallelFor(n int, f func(k int)) {
	nprocs := runtime.GOMAXPROCS(0) // number of processors
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < n; ii += nprocs {
				f(ii)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// CollectOutput gathers the fluxes and state of all pixels into
// d.Output.
func CollectOutput() DomainManipulator {
	return func(d *Model) error {
		spec := d.Static.WHC.Spec
		o := &DailyOutputFrame{
			Date:          d.Frames[d.Day].Date,
			EffPpt:        NewGrid(spec, 0),
			Rain:          NewGrid(spec, 0),
			SnowMelt:      NewGrid(spec, 0),
			Runoff:        NewGrid(spec, 0),
			SurfaceRunoff: NewGrid(spec, 0),
			DeepDrainage:  NewGrid(spec, 0),
			ETa:           NewGrid(spec, 0),
			State: StateGrids{
				SWI:      NewGrid(spec, 0),
				SWE:      NewGrid(spec, 0),
				Snowpack: NewGrid(spec, 0),
			},
		}
		for k, p := range d.Pixels {
			o.EffPpt.data.Elements[k] = p.Out.EffPpt
			o.Rain.data.Elements[k] = p.Out.Rain
			o.SnowMelt.data.Elements[k] = p.Out.SnowMelt
			o.Runoff.data.Elements[k] = p.Out.Runoff
			o.SurfaceRunoff.data.Elements[k] = p.Out.SurfaceRunoff
			o.DeepDrainage.data.Elements[k] = p.Out.DeepDrainage
			o.ETa.data.Elements[k] = p.Out.ETa
			o.State.SWI.data.Elements[k] = p.State.SWI
			o.State.SWE.data.Elements[k] = p.State.SWE
			o.State.Snowpack.data.Elements[k] = p.State.Snowpack
		}
		d.Output = o
		return nil
	}
}

// NextDay moves the model to the next day and sets d.Done
// after the last day.
func NextDay() DomainManipulator {
	return func(d *Model) error {
		for _, p := range d.Pixels {
			p.Prev = p.State
		}
		d.Day++
		if d.Day >= len(d.Frames) {
			d.Done = true
		}
		return nil
	}
}

// Collect appends the results of each model day to results.
func Collect(results *[]*DailyOutputFrame) DomainManipulator {
	return func(d *Model) error {
		*results = append(*results, d.Output)
		return nil
	}
}

// SimulationStatus holds information about the progress of a simulation.
type SimulationStatus struct {
	Date     time.Time
	Day      int
	NumDays  int
	Walltime time.Duration
	MeanSWI  float64
	MeanETa  float64
	Masked   int
}

// Fields returns the status as log fields.
func (s SimulationStatus) Fields() logrus.Fields {
	return logrus.Fields{
		"date":     s.Date.Format(dateFormat),
		"day":      fmt.Sprintf("%d/%d", s.Day+1, s.NumDays),
		"walltime": s.Walltime.Round(time.Millisecond).String(),
		"mean_swi": roundTo(s.MeanSWI, 3),
		"mean_eta": roundTo(s.MeanETa, 3),
		"masked":   s.Masked,
	}
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// Log writes the status of the simulation to the model logger
// after each model day. If c is not nil, the status is also sent to c.
func Log(c chan<- SimulationStatus) DomainManipulator {
	startTime := time.Now()
	return func(d *Model) error {
		s := SimulationStatus{
			Date:     d.Output.Date,
			Day:      d.Day,
			NumDays:  len(d.Frames),
			Walltime: time.Since(startTime),
			MeanSWI:  d.Output.State.SWI.Mean(),
			MeanETa:  d.Output.ETa.Mean(),
			Masked:   d.Output.State.SWI.NumMasked(),
		}
		d.Log.WithFields(s.Fields()).Info("finished model day")
		if c != nil {
			c <- s
		}
		return nil
	}
}
