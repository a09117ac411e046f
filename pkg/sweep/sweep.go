// Package sweep runs independent analyses of one circuit over a list of
// parameter values in parallel.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/edp1096/toy-mna/pkg/analysis"
	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/netlist"
	"github.com/edp1096/toy-mna/pkg/solver"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownSource = errors.New("sweep: unknown source")

// BuildFunc creates a fresh circuit and analysis for one value. Runs never
// share components, so every call must build new ones.
type BuildFunc func(value float64) (*circuit.Circuit, analysis.Analysis, error)

type Result struct {
	Value   float64
	Results map[string][]float64
}

// Run executes one analysis per value with at most limit running at once.
// A limit below 1 means no limit. Results keep the order of values. The
// first failing run cancels the rest.
func Run(ctx context.Context, values []float64, build BuildFunc, limit int) ([]Result, error) {
	results := make([]Result, len(values))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, value := range values {
		g.Go(func() error {
			ckt, an, err := build(value)
			if err != nil {
				return fmt.Errorf("building run %d (value %g): %w", i, value, err)
			}
			if err := an.Setup(ckt); err != nil {
				return fmt.Errorf("run %d (value %g): %w", i, value, err)
			}
			if err := an.Execute(ctx); err != nil {
				return fmt.Errorf("run %d (value %g): %w", i, value, err)
			}
			logrus.Debugf("sweep run %d (value %g) done", i, value)
			results[i] = Result{Value: value, Results: an.GetResults()}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SourceSweep builds the netlist with the value of source replaced and runs
// the analysis the netlist asks for. opts is shared by all runs, so its linear
// back end must be safe for concurrent use.
func SourceSweep(data *netlist.NetlistData, source string, opts solver.Options) BuildFunc {
	return func(value float64) (*circuit.Circuit, analysis.Analysis, error) {
		ckt, err := netlist.Build(data)
		if err != nil {
			return nil, nil, err
		}
		ckt.SetOptions(opts)

		comp, ok := ckt.Component(source)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
		}
		src, ok := comp.(analysis.Source)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s is not an independent source", ErrUnknownSource, source)
		}
		src.SetValue(value)

		an, err := NewAnalysis(data)
		if err != nil {
			return nil, nil, err
		}
		return ckt, an, nil
	}
}

// NewAnalysis creates the analysis requested by the netlist. Without one an
// operating point is used.
func NewAnalysis(data *netlist.NetlistData) (analysis.Analysis, error) {
	switch data.Analysis {
	case netlist.AnalysisTRAN:
		p := data.TranParam
		return analysis.NewTransient(p.TStart, p.TStop, p.TStep), nil
	case netlist.AnalysisDC:
		p := data.DCParam
		sources := []string{p.Source1}
		starts, stops, steps := []float64{p.Start1}, []float64{p.Stop1}, []float64{p.Increment1}
		if strings.TrimSpace(p.Source2) != "" {
			sources = append(sources, p.Source2)
			starts, stops, steps = append(starts, p.Start2), append(stops, p.Stop2), append(steps, p.Increment2)
		}
		dc, err := analysis.NewDCSweep(sources, starts, stops, steps)
		if err != nil {
			return nil, err
		}
		return dc, nil
	default:
		return analysis.NewOP(), nil
	}
}
