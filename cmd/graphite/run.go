package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeycin/Graphite/config"
	"github.com/jeycin/Graphite/examples/cannon"
	"github.com/jeycin/Graphite/examples/pingpong"
	"github.com/jeycin/Graphite/monitoring"
	"github.com/jeycin/Graphite/sim"
	"github.com/jeycin/Graphite/tile"
)

var (
	runTiles       int
	runEnvFile     string
	runWorkload    string
	runMonitor     bool
	runMonitorPort int
	runTraceDBPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workload across a number of simulated tiles.",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&runTiles, "tiles", 4, "number of simulated tiles")
	runCmd.Flags().StringVar(&runEnvFile, "env", "", "path to a .env file of configuration overrides")
	runCmd.Flags().StringVar(&runWorkload, "workload", "pingpong", "workload to run: pingpong or cannon")
	runCmd.Flags().BoolVar(&runMonitor, "monitor", false, "expose a monitoring HTTP server while the run is in progress")
	runCmd.Flags().IntVar(&runMonitorPort, "monitor-port", 8080, "port for the monitoring HTTP server")
	runCmd.Flags().StringVar(&runTraceDBPath, "trace-db", "", "path to a sqlite database for coherence event tracing (disabled if empty)")
}

func runRun(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(runEnvFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	var trace *sim.TraceDB
	if runTraceDBPath != "" {
		trace, err = sim.NewTraceDB(runTraceDBPath)
		if err != nil {
			return fmt.Errorf("opening trace database: %w", err)
		}

		defer trace.Close()
	}

	simulator, err := sim.New(cfg, runTiles, trace)
	if err != nil {
		return fmt.Errorf("building simulator: %w", err)
	}

	exitCode := 0

	if runMonitor {
		mon := monitoring.NewMonitor(simulator, func() int { return exitCode }).WithPortNumber(runMonitorPort)

		addr, err := mon.StartServer()
		if err != nil {
			return fmt.Errorf("starting monitoring server: %w", err)
		}

		fmt.Fprintf(os.Stdout, "monitoring server listening on %s\n", addr)
		defer mon.Close()
	}

	workload, err := selectWorkload(runWorkload)
	if err != nil {
		return err
	}

	errs := simulator.Run(context.Background(), workload)
	for _, e := range errs {
		if e != nil {
			exitCode = 1
			fmt.Fprintln(os.Stderr, "workload error:", e)
		}
	}

	var buf bytes.Buffer
	simulator.Fini(exitCode, &buf)
	fmt.Fprint(os.Stdout, buf.String())

	if exitCode != 0 {
		os.Exit(exitCode)
	}

	return nil
}

func selectWorkload(name string) (func(context.Context, *tile.Tile) error, error) {
	switch name {
	case "pingpong":
		return pingpong.Workload, nil
	case "cannon":
		return cannon.Workload, nil
	default:
		return nil, fmt.Errorf("unknown workload %q", name)
	}
}
