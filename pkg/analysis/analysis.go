// Package analysis runs operating point and transient analyses on a circuit
// and collects the results as named series.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/graph"
	"github.com/edp1096/toy-mna/pkg/util"
)

var (
	ErrNoCircuit         = errors.New("analysis: circuit not set")
	ErrInvalidParameters = errors.New("analysis: invalid parameters")
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute(ctx context.Context) error
	GetResults() map[string][]float64
}

type BaseAnalysis struct {
	Circuit *circuit.Circuit
	// Ground nodes are used as references and left out of the results.
	Ground  []graph.Node
	results map[string][]float64 // key: variable name, value: result by time
}

func NewBaseAnalysis() *BaseAnalysis {
	return &BaseAnalysis{
		Ground:  []graph.Node{"0"},
		results: make(map[string][]float64),
	}
}

func (a *BaseAnalysis) Setup(ckt *circuit.Circuit) error {
	if ckt == nil {
		return ErrNoCircuit
	}
	a.Circuit = ckt
	return nil
}

func (a *BaseAnalysis) StoreTimeResult(time float64, solution map[string]float64) {
	// Ignore same time
	if times := a.results["TIME"]; len(times) > 0 {
		lastTime := times[len(times)-1]
		if time == lastTime {
			return
		}
		// Compare rounded string. 1.999999e-05 == 2.000000e-05
		if util.FormatValueFactor(time, "s") == util.FormatValueFactor(lastTime, "s") {
			return
		}
	}

	a.results["TIME"] = append(a.results["TIME"], time)
	for name, value := range solution {
		a.results[name] = append(a.results[name], value)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}

// simulate runs the circuit over steps points from ts1 to ts2 and returns the
// finished simulation.
func (a *BaseAnalysis) simulate(ctx context.Context, ts1, ts2 float64, steps int) (*circuit.Simulation, error) {
	if a.Circuit == nil {
		return nil, ErrNoCircuit
	}
	sim, err := a.Circuit.Simulate(ctx, ts1, ts2, steps, a.Ground...)
	if err != nil {
		return nil, err
	}
	if err := sim.Wait(); err != nil {
		return sim, fmt.Errorf("simulation %s: %w", sim.ID, err)
	}
	return sim, nil
}

// operatingPoint solves the DC operating point at time t.
func (a *BaseAnalysis) operatingPoint(ctx context.Context, t float64) (*circuit.Simulation, error) {
	if a.Circuit == nil {
		return nil, ErrNoCircuit
	}
	sim, err := a.Circuit.OperatingPoint(ctx, t, a.Ground...)
	if err != nil {
		return nil, err
	}
	if err := sim.Wait(); err != nil {
		return sim, fmt.Errorf("operating point %s: %w", sim.ID, err)
	}
	return sim, nil
}

// solutionAt collects node voltages and branch currents of step k.
func (a *BaseAnalysis) solutionAt(sim *circuit.Simulation, k int) map[string]float64 {
	ground := make(map[graph.Node]bool, len(a.Ground))
	for _, g := range a.Ground {
		ground[g] = true
	}

	solution := make(map[string]float64)
	// Node voltage
	for _, n := range a.Circuit.Nodes() {
		if ground[n] {
			continue
		}
		if v := sim.NodePotential(n); k < len(v) {
			solution[fmt.Sprintf("V(%v)", n)] = v[k]
		}
	}
	// Branch current
	for _, comp := range a.Circuit.Components() {
		for _, b := range comp.Branches() {
			if i := sim.BranchCurrent(b); k < len(i) {
				solution[fmt.Sprintf("I(%v)", b)] = i[k]
			}
		}
	}
	return solution
}
