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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ecolstat/VegET"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// checkOutputVars removes line breaks from the output variable expressions
// and expands any environment variables in them.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again.")
	}
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o, nil
}

// checkOutputFile expands any environment variables in f and makes sure
// the directory it will be written to exists.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.ncf")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("veget: the output file directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// logLevel parses the LogLevel configuration variable.
func logLevel(s string) (logrus.Level, error) {
	l, err := logrus.ParseLevel(s)
	if err != nil {
		return l, fmt.Errorf("veget: invalid LogLevel: %v", err)
	}
	return l, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		b := bytes.NewBuffer([]byte(v))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("veget: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("veget: invalid type for configuration variable %s: %#v", varName, i)
	}
}

// getSourceMaps returns a map of maps from a viper configuration. The
// keys of the inner maps are made lower case, because viper does that
// to maps read from configuration files but not to maps set from
// command-line arguments.
func getSourceMaps(varName string, cfg *viper.Viper) (map[string]map[string]interface{}, error) {
	var raw map[string]interface{}
	switch v := cfg.Get(varName).(type) {
	case map[string]map[string]interface{}:
		raw = make(map[string]interface{}, len(v))
		for k, m := range v {
			raw[k] = m
		}
	case map[string]interface{}:
		raw = v
	case string:
		if err := json.NewDecoder(strings.NewReader(v)).Decode(&raw); err != nil {
			return nil, fmt.Errorf("veget: parsing %s: %v", varName, err)
		}
	default:
		return nil, fmt.Errorf("veget: invalid type for configuration variable %s: %#v", varName, v)
	}
	o := make(map[string]map[string]interface{}, len(raw))
	for k, m := range raw {
		mm, err := cast.ToStringMapE(m)
		if err != nil {
			return nil, fmt.Errorf("veget: %s.%s: %v", varName, k, err)
		}
		lower := make(map[string]interface{}, len(mm))
		for kk, vv := range mm {
			lower[strings.ToLower(kk)] = vv
		}
		o[strings.ToLower(k)] = lower
	}
	return o, nil
}

// sourceFields are the fields allowed in Inputs entries.
var sourceFields = map[string]bool{"file": true, "variable": true, "kind": true,
	"scale": true, "offset": true, "reducer": true}

// inputSource converts one Inputs entry to an InputSource.
func inputSource(name string, m map[string]interface{}) (veget.InputSource, error) {
	var s veget.InputSource
	for k := range m {
		if !sourceFields[k] {
			return s, fmt.Errorf("veget: input %s: invalid field %q", name, k)
		}
	}
	var err error
	if s.File, s.Variable, err = fileVariable(name, m); err != nil {
		return s, err
	}
	kind, err := cast.ToStringE(m["kind"])
	if err != nil {
		return s, fmt.Errorf("veget: input %s: Kind: %v", name, err)
	}
	switch veget.SourceKind(kind) {
	case "", veget.SourceDaily:
		s.Kind = veget.SourceDaily
	case veget.SourceComposite, veget.SourceSubDaily:
		s.Kind = veget.SourceKind(kind)
	default:
		return s, fmt.Errorf("veget: input %s: invalid Kind %q; valid options are daily, composite, and subdaily", name, kind)
	}
	if s.Scale, err = toFloat(m["scale"]); err != nil {
		return s, fmt.Errorf("veget: input %s: Scale: %v", name, err)
	}
	if s.Offset, err = toFloat(m["offset"]); err != nil {
		return s, fmt.Errorf("veget: input %s: Offset: %v", name, err)
	}
	r, err := cast.ToStringE(m["reducer"])
	if err != nil {
		return s, fmt.Errorf("veget: input %s: Reducer: %v", name, err)
	}
	if s.Reducer, err = veget.ParseReducer(r); err != nil {
		return s, fmt.Errorf("veget: input %s: %v", name, err)
	}
	return s, nil
}

// toFloat is cast.ToFloat64E with a missing value giving 0.
func toFloat(i interface{}) (float64, error) {
	if i == nil {
		return 0, nil
	}
	return cast.ToFloat64E(i)
}

func fileVariable(name string, m map[string]interface{}) (file, variable string, err error) {
	file, err = cast.ToStringE(m["file"])
	if err != nil || file == "" {
		return "", "", fmt.Errorf("veget: %s: a File must be specified", name)
	}
	variable, err = cast.ToStringE(m["variable"])
	if err != nil {
		return "", "", fmt.Errorf("veget: %s: Variable: %v", name, err)
	}
	if variable == "" {
		variable = name
	}
	return os.ExpandEnv(file), variable, nil
}

// parseDate parses a date in "YYYYMMDD" format or any of the formats
// understood by cast. An empty value gives the zero time.
func parseDate(varName string, i interface{}) (time.Time, error) {
	if i == nil {
		return time.Time{}, nil
	}
	if s, ok := i.(string); ok {
		s = strings.TrimSpace(os.ExpandEnv(s))
		if s == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse("20060102", s); err == nil {
			return veget.Day(t), nil
		}
		i = s
	}
	t, err := cast.ToTimeE(i)
	if err != nil {
		return time.Time{}, fmt.Errorf("veget: invalid %s: %v", varName, err)
	}
	return veget.Day(t), nil
}

func parseMonth(varName string, cfg *viper.Viper) (time.Month, error) {
	i := cfg.Get(varName)
	if i == nil {
		return 0, nil
	}
	m, err := cast.ToIntE(i)
	if err != nil {
		return 0, fmt.Errorf("veget: invalid %s: %v", varName, err)
	}
	if m < 0 || m > 12 {
		return 0, fmt.Errorf("veget: %s must be between 1 and 12 but is %d", varName, m)
	}
	return time.Month(m), nil
}

// PreprocConfig creates an input preparation configuration from the
// information in cfg.
func PreprocConfig(cfg *viper.Viper) (*veget.PreprocConfig, error) {
	c := &veget.PreprocConfig{
		Inputs:  make(map[string]veget.InputSource),
		Static:  make(map[string]veget.StaticSource),
		Primary: strings.ToLower(cfg.GetString("PrimaryVariable")),
	}

	inputs, err := getSourceMaps("Inputs", cfg)
	if err != nil {
		return nil, err
	}
	for name, m := range inputs {
		s, err := inputSource(name, m)
		if err != nil {
			return nil, err
		}
		c.Inputs[name] = s
	}

	static, err := getSourceMaps("Static", cfg)
	if err != nil {
		return nil, err
	}
	for name, m := range static {
		for k := range m {
			if k != "file" && k != "variable" {
				return nil, fmt.Errorf("veget: static parameter %s: invalid field %q", name, k)
			}
		}
		file, variable, err := fileVariable(name, m)
		if err != nil {
			return nil, err
		}
		c.Static[name] = veget.StaticSource{File: file, Variable: variable}
	}

	if c.Start, err = parseDate("StartDate", cfg.Get("StartDate")); err != nil {
		return nil, err
	}
	if c.End, err = parseDate("EndDate", cfg.Get("EndDate")); err != nil {
		return nil, err
	}
	if c.InterpDays, err = cast.ToIntE(cfg.Get("InterpDays")); err != nil {
		return nil, fmt.Errorf("veget: invalid InterpDays: %v", err)
	}
	if c.SeasonBegin, err = parseMonth("GrowingSeason.Begin", cfg); err != nil {
		return nil, err
	}
	if c.SeasonEnd, err = parseMonth("GrowingSeason.End", cfg); err != nil {
		return nil, err
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

// ModelConstants reads the water balance coefficients from cfg.
func ModelConstants(cfg *viper.Viper) (veget.Constants, error) {
	var c veget.Constants
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"VarA", &c.VarA},
		{"VarB", &c.VarB},
		{"NDVIThreshold", &c.NDVIThreshold},
		{"DrainageCoeff", &c.DrainageCoeff},
		{"MeltRate", &c.MeltRate},
		{"RainTempLow", &c.RainTempLow},
		{"RainTempHigh", &c.RainTempHigh},
		{"RainFracSlope", &c.RainFracSlope},
	} {
		v, err := toFloat(cfg.Get(f.name))
		if err != nil {
			return c, fmt.Errorf("veget: invalid %s: %v", f.name, err)
		}
		*f.v = v
	}
	return c, c.Check()
}
