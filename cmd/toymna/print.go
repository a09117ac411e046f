package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/edp1096/toy-mna/pkg/util"
)

// seriesNames splits the result keys into sorted voltages and currents.
func seriesNames(results map[string][]float64) (voltageNames, currentNames []string) {
	for name := range results {
		if strings.HasPrefix(name, "V(") {
			voltageNames = append(voltageNames, name)
		} else if strings.HasPrefix(name, "I(") {
			currentNames = append(currentNames, name)
		}
	}
	sort.Strings(voltageNames)
	sort.Strings(currentNames)
	return voltageNames, currentNames
}

func printRow(w io.Writer, results map[string][]float64, names []string, i int) {
	for _, name := range names {
		if values, ok := results[name]; ok && i < len(values) {
			fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(values[i], util.UnitOf(name)))
		}
	}
}

func printResults(w io.Writer, results map[string][]float64) {
	fmt.Fprintln(w, "\nAnalysis Results:")
	fmt.Fprintln(w, "================")

	voltageNames, currentNames := seriesNames(results)

	// DC Sweep
	if sweep1, isDC := results["SWEEP1"]; isDC {
		fmt.Fprintf(w, "\nDC Sweep Analysis Results (%d points):\n", len(sweep1))
		fmt.Fprintln(w, "Sweep Values    Node Voltages        Branch Currents")
		fmt.Fprintln(w, "------------------------------------------------")

		sweep2, hasNested := results["SWEEP2"]
		for i := range sweep1 {
			if hasNested {
				fmt.Fprintf(w, "S1=%-10s S2=%-10s  ", util.FormatValueFactor(sweep1[i], ""), util.FormatValueFactor(sweep2[i], ""))
			} else {
				fmt.Fprintf(w, "S=%-10s  ", util.FormatValueFactor(sweep1[i], ""))
			}
			printRow(w, results, voltageNames, i)
			printRow(w, results, currentNames, i)
			fmt.Fprintln(w)
		}
		return
	}

	// Operating point
	times, isTran := results["TIME"]
	if !isTran {
		fmt.Fprintln(w, "\nNode Voltages:")
		for _, name := range voltageNames {
			fmt.Fprintf(w, "%s = %s\n", name, util.FormatValueFactor(results[name][0], "V"))
		}
		fmt.Fprintln(w, "\nBranch Currents:")
		for _, name := range currentNames {
			fmt.Fprintf(w, "%s = %s\n", name, util.FormatValueFactor(results[name][0], "A"))
		}
		return
	}

	// Transient
	fmt.Fprintf(w, "\nTransient Analysis Results (%d time points):\n", len(times))
	fmt.Fprintln(w, "Time        Node Voltages        Branch Currents")
	fmt.Fprintln(w, "------------------------------------------------")
	for i, t := range times {
		fmt.Fprintf(w, "%s  ", util.FormatTime(t))
		printRow(w, results, voltageNames, i)
		printRow(w, results, currentNames, i)
		fmt.Fprintln(w)
	}
}
