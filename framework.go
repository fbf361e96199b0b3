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

// Package veget is a daily soil water balance model driven by
// vegetation greenness and weather grids.
package veget

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.1.0"

// Model holds the current state of the model.
type Model struct {
	// Frames holds the inputs for each model day, in order.
	Frames []MultiVariableFrame

	// Static holds the soil and canopy parameters.
	Static *StaticParameters

	Constants Constants

	// Policy specifies how masked inputs affect the model state.
	Policy MaskPolicy

	// Pixels holds one entry for each grid cell.
	Pixels []*Pixel

	// Day is the index in Frames of the current model day.
	Day int

	// Output holds the results of the current model day.
	Output *DailyOutputFrame

	// InitFuncs are functions to be called in the given order
	// at the beginning of the simulation.
	InitFuncs []DomainManipulator

	// RunFuncs are functions to be called in the given order repeatedly
	// until "Done" is true. Each repetition is one model day.
	RunFuncs []DomainManipulator

	// CleanupFuncs are functions to be called in the given order
	// at the end of the simulation.
	CleanupFuncs []DomainManipulator

	// Log receives status messages. If it is nil, the
	// standard logrus logger is used.
	Log logrus.FieldLogger

	// Done specifies whether the simulation is finished.
	Done bool
}

// DomainManipulator is a class of functions that operate on the entire model domain.
type DomainManipulator func(d *Model) error

// StateGrids holds the model state for every grid cell.
type StateGrids struct {
	SWI, SWE, Snowpack *Grid
}

// DailyOutputFrame holds the results of one model day.
type DailyOutputFrame struct {
	Date time.Time

	EffPpt, Rain, SnowMelt, Runoff, SurfaceRunoff, DeepDrainage, ETa *Grid

	// State is the state at the end of the day.
	State StateGrids
}

// Names of the model outputs.
const (
	OutEffPpt        = "EffPpt"
	OutRain          = "Rain"
	OutSnowMelt      = "SnowMelt"
	OutRunoff        = "Runoff"
	OutSurfaceRunoff = "SurfaceRunoff"
	OutDeepDrainage  = "DeepDrainage"
	OutETa           = "ETa"
	OutSWI           = "SWI"
	OutSWE           = "SWE"
	OutSnowpack      = "Snowpack"
)

// OutputNames lists the model outputs.
var OutputNames = []string{OutEffPpt, OutRain, OutSnowMelt, OutRunoff,
	OutSurfaceRunoff, OutDeepDrainage, OutETa, OutSWI, OutSWE, OutSnowpack}

// Var returns the output with the given name.
func (o *DailyOutputFrame) Var(name string) (*Grid, bool) {
	var g *Grid
	switch name {
	case OutEffPpt:
		g = o.EffPpt
	case OutRain:
		g = o.Rain
	case OutSnowMelt:
		g = o.SnowMelt
	case OutRunoff:
		g = o.Runoff
	case OutSurfaceRunoff:
		g = o.SurfaceRunoff
	case OutDeepDrainage:
		g = o.DeepDrainage
	case OutETa:
		g = o.ETa
	case OutSWI:
		g = o.State.SWI
	case OutSWE:
		g = o.State.SWE
	case OutSnowpack:
		g = o.State.Snowpack
	}
	return g, g != nil
}

// Init initializes the simulation by running d.InitFuncs.
func (d *Model) Init() error {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Run carries out the simulation by running d.RunFuncs until d.Done is
// true. Cancellation of ctx is checked between model days.
func (d *Model) Run(ctx context.Context) error {
	for !d.Done {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("veget: simulation stopped before %s: %w",
				d.Frames[d.Day].Date.Format(dateFormat), err)
		}
		for _, f := range d.RunFuncs {
			if err := f(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cleanup finishes the simulation by running d.CleanupFuncs.
func (d *Model) Cleanup() error {
	for _, f := range d.CleanupFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Simulate runs the water balance over the given days and returns the
// results of each day, starting with the first. The initial state is
// calculated from the inputs of the first day.
func Simulate(ctx context.Context, frames []MultiVariableFrame, static *StaticParameters, c Constants, policy MaskPolicy) ([]*DailyOutputFrame, error) {
	var results []*DailyOutputFrame
	d := &Model{
		Frames:    frames,
		Static:    static,
		Constants: c,
		Policy:    policy,
	}
	d.InitFuncs = DefaultInitFuncs(policy, Collect(&results))
	d.RunFuncs = DefaultRunFuncs(policy, Collect(&results))
	if err := d.Init(); err != nil {
		return nil, err
	}
	if err := d.Run(ctx); err != nil {
		return results, err
	}
	if err := d.Cleanup(); err != nil {
		return results, err
	}
	return results, nil
}

// DefaultInitFuncs returns the functions that set up the model and
// calculate the first model day. The functions in after are run once the
// results of the first day are available.
func DefaultInitFuncs(policy MaskPolicy, after ...DomainManipulator) []DomainManipulator {
	f := []DomainManipulator{
		SetupPixels(),
		LoadDay(),
		Calculations(InitialState(policy)),
		CollectOutput(),
	}
	f = append(f, after...)
	return append(f, NextDay())
}

// DefaultRunFuncs returns the functions that calculate one model day.
// The functions in after are run once the results of the day are available.
func DefaultRunFuncs(policy MaskPolicy, after ...DomainManipulator) []DomainManipulator {
	f := []DomainManipulator{
		LoadDay(),
		Calculations(WaterBalance(policy)),
		CollectOutput(),
	}
	f = append(f, after...)
	return append(f, NextDay())
}
