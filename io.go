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
	"os"
	"regexp"

	"github.com/Knetic/govaluate"
)

// Outputter is a holder for output parameters.
//
// fileName contains the path where the NetCDF output will be saved.
//
// outputVariables maps the names of the variables for which data
// should be returned to expressions that define how the
// requested data should be calculated. These expressions can utilize
// the model outputs, the daily inputs, the static parameters, other
// output variables, and functions.
//
// modelVariables is automatically generated based on the model variables that
// are required to calculate the requested output variables.
//
// Functions are defined in the outputFunctions variable.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
	expressions     map[string]*govaluate.EvaluableExpression

	// attrs are written as global attributes of the output file.
	attrs map[string]string

	w  *os.File
	rw *recordWriter
}

// NewOutputter initializes a new Outputter holder and adds a set of default
// output functions. Default functions include:
//
// 'exp(x)' which applies the exponetional function e^x.
//
// 'min(x, y)' and 'max(x, y)' which return the smaller and larger of two values.
//
// 'abs(x)' which returns the absolute value of x.
//
// attrs are written as global attributes of the output file, for
// example to identify the simulation.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction, attrs map[string]string) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("veget: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return math.Exp(arg[0].(float64)), nil
		},
		"min": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("veget: got %d arguments for function 'min', but needs 2", len(arg))
			}
			return math.Min(arg[0].(float64), arg[1].(float64)), nil
		},
		"max": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("veget: got %d arguments for function 'max', but needs 2", len(arg))
			}
			return math.Max(arg[0].(float64), arg[1].(float64)), nil
		},
		"abs": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("veget: got %d arguments for function 'abs', but needs 1", len(arg))
			}
			return math.Abs(arg[0].(float64)), nil
		},
	}

	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: defaultOutputFuncs,
		attrs:           attrs,
	}
	for k, v := range outputVariables {
		o.outputVariables[k] = v
	}
	if err := checkOutputNames(o.outputVariables); err != nil {
		return nil, err
	}
	if err := o.checkForDerivatives(); err != nil {
		return nil, err
	}
	return &o, nil
}

// removeDuplicates removes all duplicated strings from a slice, returning a
// slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]string)
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = val
		}
	}
	return result
}

// replaceVar replaces every standalone instance of variable name v
// in expression s with repl. 'ETa' is not a standalone variable in
// an expression if it appears as 'ETaSum'.
func replaceVar(s, v, repl string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`)
	return re.ReplaceAllLiteralString(s, repl)
}

// checkForDerivatives replaces any user-defined output variable showing up
// in another output expression by its defining expression, and then
// identifies the unique model variables that are required to calculate
// the requested output variables.
func (o *Outputter) checkForDerivatives() error {
	for pass := 0; ; pass++ {
		if pass > len(o.outputVariables) {
			return fmt.Errorf("veget: output variable expressions are circular: %v", o.outputVariables)
		}
		changed := false
		for name, expr := range o.outputVariables {
			e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
			if err != nil {
				return fmt.Errorf("veget: output variable %s: %v", name, err)
			}
			for _, v := range removeDuplicates(e.Vars()) {
				def, ok := o.outputVariables[v]
				if !ok || def == v {
					continue // v is a model variable.
				}
				if v == name {
					return fmt.Errorf("veget: output variable %s is defined in terms of itself", name)
				}
				expr = replaceVar(expr, v, "("+def+")")
				changed = true
			}
			o.outputVariables[name] = expr
		}
		if !changed {
			break
		}
	}

	o.expressions = make(map[string]*govaluate.EvaluableExpression, len(o.outputVariables))
	o.modelVariables = nil
	for name, expr := range o.outputVariables {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
		if err != nil {
			return fmt.Errorf("veget: output variable %s: %v", name, err)
		}
		o.expressions[name] = e
		o.modelVariables = append(o.modelVariables, e.Vars()...)
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	return nil
}

var validName = regexp.MustCompile(`^[A-Za-z]\w*$`)

// checkOutputNames checks that the output variable names can be used as
// NetCDF variable names and do not clash with the time variable.
func checkOutputNames(o map[string]string) error {
	if len(o) == 0 {
		return fmt.Errorf("veget: there are no output variables")
	}
	for key := range o {
		if !validName.MatchString(key) {
			return fmt.Errorf("veget: output variable name '%s' includes unsupported characters", key)
		}
		if key == timeDim {
			return fmt.Errorf("veget: '%s' cannot be used as an output variable name", key)
		}
	}
	return nil
}

// modelVarNames returns all of the variables that can be used in
// output expressions.
func modelVarNames() map[string]bool {
	o := make(map[string]bool)
	for _, group := range [][]string{OutputNames, InputNames, StaticNames} {
		for _, n := range group {
			o[n] = true
		}
	}
	return o
}

// CheckOutputVars ensures the output variables can be calculated.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(d *Model) error {
		valid := modelVarNames()
		for _, v := range o.modelVariables {
			if !valid[v] {
				return fmt.Errorf("veget: undefined variable name '%s'", v)
			}
		}
		return nil
	}
}

// Results returns the values of the output variables on the current
// model day. Cells where any of the required variables are masked
// are masked.
func (o *Outputter) Results(d *Model) (map[string]*Grid, error) {
	sources := make(map[string]*Grid, len(o.modelVariables))
	for _, v := range o.modelVariables {
		if g, ok := d.Output.Var(v); ok {
			sources[v] = g
		} else if g, ok := d.Frames[d.Day].Vars[v]; ok {
			sources[v] = g
		} else if g, ok := d.Static.Get(v); ok {
			sources[v] = g
		} else {
			return nil, fmt.Errorf("veget: undefined variable name '%s'", v)
		}
	}
	spec := d.Static.WHC.Spec
	results := make(map[string]*Grid, len(o.expressions))
	params := make(map[string]interface{}, len(sources))
	for name, e := range o.expressions {
		g := NewGrid(spec, 0)
		for k := range g.data.Elements {
			for v, src := range sources {
				params[v] = src.data.Elements[k]
			}
			r, err := e.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("veget: calculating output variable %s: %v", name, err)
			}
			switch rv := r.(type) {
			case float64:
				g.data.Elements[k] = rv
			case bool:
				if rv {
					g.data.Elements[k] = 1
				}
			default:
				return nil, fmt.Errorf("veget: output variable %s has invalid type %T", name, r)
			}
		}
		results[name] = g
	}
	return results, nil
}

// Output returns a function that writes the output variables for the
// current model day to the output file, creating the file if necessary.
func (o *Outputter) Output() DomainManipulator {
	return func(d *Model) error {
		if o.rw == nil {
			w, err := os.Create(o.fileName)
			if err != nil {
				return fmt.Errorf("veget: creating output file: %v", err)
			}
			vars := make([]ncfVar, 0, len(o.outputVariables))
			for _, n := range sortedNames(o.outputVariables) {
				vars = append(vars, ncfVar{name: n, description: o.outputVariables[n], units: unitsOf(n)})
			}
			rw, err := newRecordWriter(w, d.Static.WHC.Spec, vars, o.attrs)
			if err != nil {
				w.Close()
				return fmt.Errorf("veget: creating output file: %v", err)
			}
			o.w, o.rw = w, rw
		}
		results, err := o.Results(d)
		if err != nil {
			return err
		}
		return o.rw.write(d.Output.Date, results)
	}
}

// Close returns a function that finishes writing and closes the output file.
func (o *Outputter) Close() DomainManipulator {
	return func(d *Model) error {
		if o.rw == nil {
			return nil
		}
		if err := o.rw.close(); err != nil {
			o.w.Close()
			return fmt.Errorf("veget: finishing output file: %v", err)
		}
		err := o.w.Close()
		o.w, o.rw = nil, nil
		return err
	}
}
