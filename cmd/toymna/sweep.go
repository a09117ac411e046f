package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/edp1096/toy-mna/pkg/sweep"
	"github.com/edp1096/toy-mna/pkg/util"

	"github.com/spf13/cobra"
)

var (
	sweepSource   string    // Independent source to vary
	sweepValues   []float64 // Values of the source
	sweepParallel int       // Concurrent runs, overrides the config
)

// sweepCmd runs the netlist analysis once per source value, in parallel
var sweepCmd = &cobra.Command{
	Use:   "sweep <netlist>",
	Short: "Repeat the analysis of a netlist for several source values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sweepSource == "" || len(sweepValues) == 0 {
			return fmt.Errorf("--source and --values are required")
		}
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		data, err := readNetlist(args[0])
		if err != nil {
			return err
		}
		opts, err := cfg.SolverOptions()
		if err != nil {
			return err
		}

		parallel := cfg.Sweep.Parallel
		if cmd.Flags().Changed("parallel") {
			parallel = sweepParallel
		}

		runs, err := sweep.Run(ctx, sweepValues, sweep.SourceSweep(data, sweepSource, opts), parallel)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range runs {
			fmt.Fprintf(out, "\n=== %s = %s ===\n", sweepSource, util.FormatValueFactor(r.Value, ""))
			printResults(out, r.Results)
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepSource, "source", "", "Name of the V or I source to sweep")
	sweepCmd.Flags().Float64SliceVar(&sweepValues, "values", nil, "Comma-separated source values")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 0, "Concurrent runs, 0 for unlimited")
}
