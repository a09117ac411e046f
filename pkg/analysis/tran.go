package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/edp1096/toy-mna/pkg/circuit"
)

type Transient struct {
	BaseAnalysis
	startTime float64
	stopTime  float64
	timeStep  float64
}

func NewTransient(tStart, tStop, tStep float64) *Transient {
	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(),
		startTime:    tStart,
		stopTime:     tStop,
		timeStep:     tStep,
	}
}

func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	if tr.timeStep <= 0 || tr.stopTime <= 0 || tr.startTime < 0 || tr.startTime >= tr.stopTime {
		return fmt.Errorf("%w: tstep=%g tstop=%g tstart=%g", ErrInvalidParameters, tr.timeStep, tr.stopTime, tr.startTime)
	}
	return tr.BaseAnalysis.Setup(ckt)
}

// Steps is the number of time points from 0 to the stop time, both included.
func (tr *Transient) Steps() int {
	return int(math.Ceil(tr.stopTime/tr.timeStep-1e-6)) + 1
}

// Execute simulates from 0 and stores the points from the start time on.
func (tr *Transient) Execute(ctx context.Context) error {
	sim, err := tr.simulate(ctx, 0, tr.stopTime, tr.Steps())
	if err != nil {
		return fmt.Errorf("transient: %w", err)
	}

	// Points closer than a thousandth step to the start time count as on it.
	eps := tr.timeStep * 1e-3
	for k, t := range sim.Times() {
		if t+eps < tr.startTime {
			continue
		}
		tr.StoreTimeResult(t, tr.solutionAt(sim, k))
	}
	return nil
}
