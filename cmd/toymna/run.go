package main

import (
	"os"
	"os/signal"

	"github.com/edp1096/toy-mna/pkg/netlist"
	"github.com/edp1096/toy-mna/pkg/plot"
	"github.com/edp1096/toy-mna/pkg/sweep"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"
)

var (
	plotPath    string   // Waveform image written after the analysis
	plotSeries  []string // Series to draw, all voltages when empty
	describeEqs bool     // Print the equation stack before simulating
)

// runCmd executes the analysis of a netlist file
var runCmd = &cobra.Command{
	Use:   "run <netlist>",
	Short: "Run the analysis of a netlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		data, err := readNetlist(args[0])
		if err != nil {
			return err
		}
		ckt, err := netlist.Build(data)
		if err != nil {
			return err
		}
		opts, err := cfg.SolverOptions()
		if err != nil {
			return err
		}
		ckt.SetOptions(opts)

		if describeEqs {
			equations := ckt.Equations
			if data.Analysis != netlist.AnalysisTRAN {
				equations = ckt.OperatingPointEquations
			}
			eq, err := equations(data.TranParam.TStart, "0")
			if err != nil {
				return err
			}
			eq.Describe(cmd.OutOrStdout())
		}

		an, err := sweep.NewAnalysis(data)
		if err != nil {
			return err
		}
		if err := an.Setup(ckt); err != nil {
			return err
		}
		if err := an.Execute(ctx); err != nil {
			return err
		}

		results := an.GetResults()
		printResults(cmd.OutOrStdout(), results)

		if plotPath != "" {
			w, h := vg.Length(cfg.Plot.Width)*vg.Inch, vg.Length(cfg.Plot.Height)*vg.Inch
			if err := plot.Waveforms(results, plotSeries, plotPath, w, h); err != nil {
				return err
			}
			logrus.Infof("plot written to %s", plotPath)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&plotPath, "plot", "", "Write waveforms to this image file (.png, .svg, .pdf)")
	runCmd.Flags().StringSliceVar(&plotSeries, "series", nil, "Comma-separated series to plot, e.g. V(out),I(R1)")
	runCmd.Flags().BoolVar(&describeEqs, "describe", false, "Print the circuit equations")
}
