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

// Package vegetutil provides the command-line interface and
// configuration handling for the VegET model.
package vegetutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/ecolstat/VegET"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	dc := veget.DefaultConstants()

	// Options are the configuration options available to VegET.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Inputs",
			usage: `
              Inputs specifies where each daily input variable is read from.
              Keys are the variable names (ndvi, pr, eto, tmean, tmin, tmax, and
              optionally intercept_fraction) and values hold the NetCDF File, the
              Variable name within it, the source Kind (daily, composite, or
              subdaily), an optional Scale and Offset to convert the values to
              model units, and for subdaily sources the Reducer (sum, mean, or
              first). File paths can include environment variables.`,
			defaultVal: map[string]map[string]interface{}{
				"ndvi":  {"File": "${VEGET_DATA}/ndvi.ncf", "Variable": "NDVI", "Kind": "composite", "Scale": 0.0001},
				"pr":    {"File": "${VEGET_DATA}/pr.ncf", "Variable": "pr", "Kind": "daily"},
				"eto":   {"File": "${VEGET_DATA}/eto.ncf", "Variable": "eto", "Kind": "daily"},
				"tmean": {"File": "${VEGET_DATA}/tmean.ncf", "Variable": "tmean", "Kind": "daily", "Offset": -273.15},
				"tmin":  {"File": "${VEGET_DATA}/tmin.ncf", "Variable": "tmin", "Kind": "daily", "Offset": -273.15},
				"tmax":  {"File": "${VEGET_DATA}/tmax.ncf", "Variable": "tmax", "Kind": "daily", "Offset": -273.15},
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "Static",
			usage: `
              Static specifies where each static parameter (whc, field_capacity,
              saturation, and intercept_fraction) is read from. Values hold the
              NetCDF File and the Variable name within it.`,
			defaultVal: map[string]map[string]interface{}{
				"whc":                {"File": "${VEGET_DATA}/soil.ncf", "Variable": "whc"},
				"field_capacity":     {"File": "${VEGET_DATA}/soil.ncf", "Variable": "field_capacity"},
				"saturation":         {"File": "${VEGET_DATA}/soil.ncf", "Variable": "saturation"},
				"intercept_fraction": {"File": "${VEGET_DATA}/canopy.ncf", "Variable": "intercept_fraction"},
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "PrimaryVariable",
			usage: `
              PrimaryVariable is the input whose dates are the model days.
              It must be a daily or subdaily input.`,
			defaultVal: veget.Precip,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "StartDate",
			usage: `
              StartDate is the first model day. Format = "YYYYMMDD". If it is
              empty the simulation starts with the first primary frame.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "EndDate",
			usage: `
              EndDate is the last model day. Format = "YYYYMMDD". If it is
              empty the simulation ends with the last primary frame.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "InterpDays",
			usage: `
              InterpDays is the largest number of days that composite inputs
              are interpolated across.`,
			defaultVal: 16,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "GrowingSeason.Begin",
			usage: `
              GrowingSeason.Begin is the first month (1-12) of the growing season.
              If it and GrowingSeason.End are 0, all months are simulated.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "GrowingSeason.End",
			usage: `
              GrowingSeason.End is the last month (1-12) of the growing season.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "VarA",
			usage: `
              VarA is the slope of the relationship between NDVI and the
              crop coefficient.`,
			defaultVal: dc.VarA,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "VarB",
			usage: `
              VarB is the intercept of the relationship between NDVI and the
              crop coefficient. It is used where NDVI is at or below NDVIThreshold.`,
			defaultVal: dc.VarB,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NDVIThreshold",
			usage: `
              NDVIThreshold is the NDVI above which VarB is not added.`,
			defaultVal: dc.NDVIThreshold,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DrainageCoeff",
			usage: `
              DrainageCoeff is the fraction (0-1) of excess soil water
              that drains to depth rather than running off.`,
			defaultVal: dc.DrainageCoeff,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MeltRate",
			usage: `
              MeltRate is the degree-day snow melt coefficient.`,
			defaultVal: dc.MeltRate,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RainTempLow",
			usage: `
              RainTempLow is the mean temperature [°C] at or below which all
              precipitation falls as snow.`,
			defaultVal: dc.RainTempLow,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RainTempHigh",
			usage: `
              RainTempHigh is the mean temperature [°C] at or above which all
              precipitation falls as rain.`,
			defaultVal: dc.RainTempHigh,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RainFracSlope",
			usage: `
              RainFracSlope is the rain fraction per °C of mean temperature
              between RainTempLow and RainTempHigh.`,
			defaultVal: dc.RainFracSlope,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaskPolicy",
			usage: `
              MaskPolicy specifies what happens to a grid cell on a day when one
              of its inputs is missing. 'hold' carries the soil and snow storage
              over unchanged and 'propagate' masks the cell for the rest of the
              simulation.`,
			defaultVal: string(veget.MaskHold),
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output NetCDF file location.
              It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "veget_output.ncf",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which model variables should be included in the
              output file. Keys are output names and values are expressions of the
              model outputs, inputs, and static parameters. It can include
              environment variables.`,
			defaultVal: map[string]string{
				"SWI":    "SWI",
				"ETa":    "ETa",
				"Runoff": "Runoff",
				"SWE":    "SWE",
				"ETFrac": "ETa / eto",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved in
              the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), preprocCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to record. Valid
              options are debug, info, warning, and error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Preproc.OutputFile",
			usage: `
              Preproc.OutputFile is the path where the merged daily inputs
              should be written. It can include environment variables.`,
			defaultVal: "veget_inputs.ncf",
			flagsets:   []*pflag.FlagSet{preprocCmd.Flags()},
		},
		{
			name: "Preproc.StaticOutputFile",
			usage: `
              Preproc.StaticOutputFile is the path where the static parameters
              should be written. If it is empty they are not written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{preprocCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("VEGET")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, v, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, v, option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, v, option.usage)
				} else {
					set.IntP(option.name, option.shorthand, v, option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, v, option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, v, option.usage)
				}
			case map[string]string, map[string]map[string]interface{}:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				s := b.String()
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	Cfg.AutomaticEnv()
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(preprocCmd)
	Root.AddCommand(configCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("veget: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "veget",
	Short: "A daily soil water balance model.",
	Long: `VegET is a daily soil water balance model that calculates actual
evapotranspiration, runoff, deep drainage, and snow storage on a grid from
vegetation greenness and weather inputs.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'VEGET_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of VegET.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("VegET v%s\n", veget.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run reads and prepares the model inputs, runs the daily water balance
over the simulation period, and writes the requested output variables for
each model day to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := PreprocConfig(Cfg)
		if err != nil {
			return err
		}
		c, err := ModelConstants(Cfg)
		if err != nil {
			return err
		}
		policy, err := veget.ParseMaskPolicy(Cfg.GetString("MaskPolicy"))
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		vars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(vars)
		if err != nil {
			return err
		}
		level, err := logLevel(Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		return Run(
			cmd,
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			level,
			outputFile,
			outputVars,
			pc, c, policy)
	},
	DisableAutoGenTag: true,
}

// preprocCmd is a command that prepares the model inputs.
var preprocCmd = &cobra.Command{
	Use:   "preproc",
	Short: "Prepare the model inputs",
	Long: `preproc reads the input sources specified in the configuration,
converts them to daily values on the model days, and saves the merged
result for inspection or for use elsewhere.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := PreprocConfig(Cfg)
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("Preproc.OutputFile"))
		if err != nil {
			return err
		}
		staticFile := Cfg.GetString("Preproc.StaticOutputFile")
		if staticFile != "" {
			if staticFile, err = checkOutputFile(staticFile); err != nil {
				return err
			}
		}
		level, err := logLevel(Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		return Preproc(
			cmd,
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			level,
			outputFile,
			staticFile,
			pc)
	},
	DisableAutoGenTag: true,
}

// configCmd is a command that prints the configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration",
	Long: `config prints the configuration that results from combining the
defaults, the configuration file, environment variables, and command-line
arguments, in TOML format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := make(map[string]interface{})
		for _, option := range options {
			if option.name == "config" {
				continue
			}
			config[option.name] = Cfg.Get(option.name)
		}
		if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(config); err != nil {
			return fmt.Errorf("veget: writing configuration: %v", err)
		}
		return nil
	},
	DisableAutoGenTag: true,
}
