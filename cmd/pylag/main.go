/*
Copyright © 2026 the PyLag authors.
This file is part of PyLag.

PyLag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PyLag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PyLag.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command pylag runs the offline Lagrangian particle-tracking model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsasaki-utokyo/pylag"
)

var (
	configPath string
	fieldsPath string
	seedsPath  string
	outPath    string
)

var root = &cobra.Command{
	Use:   "pylag",
	Short: "Offline Lagrangian particle tracking for geophysical fluids",
	Long: `pylag integrates passive particle trajectories through time-varying
velocity and turbulence fields on an unstructured triangular mesh,
writing a NetCDF trajectory file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	root.Flags().StringVar(&configPath, "config", "pylag.toml", "path to the TOML run configuration")
	root.Flags().StringVar(&fieldsPath, "fields", "", "path to the FVCOM NetCDF field file")
	root.Flags().StringVar(&seedsPath, "seeds", "", "path to the particle seed CSV file")
	root.Flags().StringVar(&outPath, "out", "trajectories.nc", "path for the NetCDF trajectory output")
}

func run() error {
	cfg, err := pylag.ReadConfigFile(configPath)
	if err != nil {
		return err
	}
	if lvl, err := log.ParseLevel(cfg.General.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ff, err := os.Open(fieldsPath)
	if err != nil {
		return fmt.Errorf("opening field file: %v", err)
	}
	defer ff.Close()
	ds, err := pylag.NewFVCOMSource(ff, cfg.SigmaDepth())
	if err != nil {
		return err
	}
	ds.FullLogging = cfg.General.FullLogging

	sf, err := os.Open(seedsPath)
	if err != nil {
		return fmt.Errorf("opening seed file: %v", err)
	}
	particles, err := pylag.ReadSeeds(sf)
	sf.Close()
	if err != nil {
		return err
	}
	log.WithField("n", len(particles)).Info("seeded particles")

	num, err := cfg.NumMethod()
	if err != nil {
		return err
	}

	tw := pylag.NewTrajectoryWriter()
	m := &pylag.Model{
		Config: cfg,
		DS:     ds,
		InitFuncs: []pylag.DomainManipulator{
			pylag.SetDuration(),
			pylag.ReadData(time.Minute),
			func(m *pylag.Model) error { return m.Seed(particles) },
		},
		RunFuncs: []pylag.DomainManipulator{
			pylag.ReadData(time.Minute),
			pylag.Steppers(num),
			pylag.RecordTrajectories(tw, cfg.Simulation.TimeStep),
			pylag.RunPeriodically(3600, pylag.Log(os.Stdout)),
			pylag.SimulationDone(),
		},
	}

	if err := m.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := m.Run(ctx); err != nil {
		return err
	}

	of, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %v", err)
	}
	defer of.Close()
	if err := tw.Write(of); err != nil {
		return err
	}
	log.WithField("path", outPath).Info("wrote trajectories")
	return nil
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
