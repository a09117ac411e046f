package analysis

import (
	"context"
	"fmt"
)

type OperatingPoint struct{ BaseAnalysis }

func NewOP() *OperatingPoint {
	return &OperatingPoint{BaseAnalysis: *NewBaseAnalysis()}
}

// Execute solves the circuit at t=0 with capacitors open and inductors
// shorted. Component states are left untouched.
func (op *OperatingPoint) Execute(ctx context.Context) error {
	sim, err := op.operatingPoint(ctx, 0)
	if err != nil {
		return fmt.Errorf("operating point: %w", err)
	}
	for name, value := range op.solutionAt(sim, 0) {
		op.results[name] = []float64{value}
	}
	return nil
}
