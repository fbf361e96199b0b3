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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ecolstat/VegET"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newLogger creates a logger that writes to both the command output and
// logFile. The returned function closes the log file.
func newLogger(cmd *cobra.Command, logFile string, level logrus.Level) (*logrus.Logger, func() error, error) {
	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("veget: problem creating log file: %v", err)
	}
	log := logrus.New()
	log.Out = io.MultiWriter(cmd.OutOrStdout(), f)
	log.Formatter = &logrus.TextFormatter{DisableColors: true, FullTimestamp: true}
	log.Level = level
	return log, f.Close, nil
}

// Run prepares the model inputs described by pc, runs the simulation,
// and writes outputVars to outputFile.
func Run(cmd *cobra.Command, logFile string, level logrus.Level, outputFile string, outputVars map[string]string,
	pc *veget.PreprocConfig, c veget.Constants, policy veget.MaskPolicy) error {

	startTime := time.Now()

	logger, closeLog, err := newLogger(cmd, logFile, level)
	if err != nil {
		return err
	}
	defer closeLog()
	runID := uuid.New().String()
	log := logger.WithField("run", runID)

	o, err := veget.NewOutputter(outputFile, outputVars, nil, map[string]string{
		"run_id":        runID,
		"veget_version": veget.Version,
		"mask_policy":   string(policy),
	})
	if err != nil {
		return err
	}
	log.Debug("parsed output variable expressions")

	frames, static, err := veget.Preprocess(pc, log)
	if err != nil {
		return fmt.Errorf("veget: problem preparing inputs: %v", err)
	}

	d := &veget.Model{
		Frames:    frames,
		Static:    static,
		Constants: c,
		Policy:    policy,
		Log:       log,
	}
	d.InitFuncs = append([]veget.DomainManipulator{o.CheckOutputVars()},
		veget.DefaultInitFuncs(policy, o.Output(), veget.Log(nil))...)
	d.RunFuncs = veget.DefaultRunFuncs(policy, o.Output(), veget.Log(nil))
	d.CleanupFuncs = []veget.DomainManipulator{o.Close()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err = simulate(ctx, d); err != nil {
		return err
	}
	log.WithField("walltime", time.Since(startTime).Round(time.Millisecond).String()).
		Info("simulation completed successfully")
	return nil
}

// simulate initializes and runs d. The cleanup functions are run even
// if the simulation fails or ctx is canceled, so the output of the days
// that were finished is kept.
func simulate(ctx context.Context, d *veget.Model) (err error) {
	defer func() {
		if cerr := d.Cleanup(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("veget: problem shutting down model: %v", cerr)
			} else {
				d.Log.WithError(cerr).Error("problem shutting down model")
			}
		}
	}()
	if err = d.Init(); err != nil {
		return fmt.Errorf("veget: problem initializing model: %w", err)
	}
	if err = d.Run(ctx); err != nil {
		return fmt.Errorf("veget: problem running simulation: %w", err)
	}
	return nil
}

// Preproc prepares the model inputs described by pc and writes them to
// outputFile. If staticFile is not empty, the static parameters are
// written to it.
func Preproc(cmd *cobra.Command, logFile string, level logrus.Level, outputFile, staticFile string, pc *veget.PreprocConfig) error {
	startTime := time.Now()

	logger, closeLog, err := newLogger(cmd, logFile, level)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.WithField("run", uuid.New().String())

	frames, static, err := veget.Preprocess(pc, log)
	if err != nil {
		return fmt.Errorf("veget: problem preparing inputs: %v", err)
	}
	if err := writeFile(outputFile, func(w *os.File) error { return veget.WriteFramesNCF(w, frames) }); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"file": outputFile, "days": len(frames)}).Info("wrote model inputs")

	if staticFile != "" {
		if err := writeFile(staticFile, func(w *os.File) error { return veget.WriteStaticNCF(w, static) }); err != nil {
			return err
		}
		log.WithField("file", staticFile).Info("wrote static parameters")
	}
	log.WithField("walltime", time.Since(startTime).Round(time.Millisecond).String()).
		Info("preprocessing completed successfully")
	return nil
}

// writeFile creates the named file, passes it to write, and closes it.
func writeFile(name string, write func(*os.File) error) error {
	w, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("veget: creating %s: %v", name, err)
	}
	if err := write(w); err != nil {
		w.Close()
		return fmt.Errorf("veget: writing %s: %v", name, err)
	}
	return w.Close()
}
