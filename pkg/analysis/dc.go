package analysis

import (
	"context"
	"fmt"

	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"
)

// Source is an independent source whose value a DC sweep can step.
type Source interface {
	device.Component
	SetValue(value float64)
	Waveform() device.Waveform
	SetWaveform(wave device.Waveform)
}

type DCSweep struct {
	BaseAnalysis
	sourceNames []string    // Names of voltage/current sources to sweep
	sweepVals   [][]float64 // Generated sweep values for each source
	sources     []Source    // Resolved in Setup
	origWaves   []device.Waveform
}

// NewDCSweep sweeps up to two sources from start to stop in increments of
// step. The second source runs in the inner loop.
func NewDCSweep(sources []string, starts, stops, steps []float64) (*DCSweep, error) {
	if len(sources) == 0 || len(sources) > 2 {
		return nil, fmt.Errorf("%w: unsupported number of sweep sources: %d", ErrInvalidParameters, len(sources))
	}
	if len(sources) != len(starts) || len(sources) != len(stops) || len(sources) != len(steps) {
		return nil, fmt.Errorf("%w: inconsistent parameter lengths", ErrInvalidParameters)
	}

	dc := &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(),
		sourceNames:  sources,
		sweepVals:    make([][]float64, len(sources)),
	}

	// Generate sweep values for each source
	for i := range sources {
		if steps[i] <= 0 || stops[i] < starts[i] {
			return nil, fmt.Errorf("%w: sweep of %s from %g to %g by %g", ErrInvalidParameters, sources[i], starts[i], stops[i], steps[i])
		}
		n := int((stops[i]-starts[i])/steps[i]+1e-9) + 1
		for k := range n {
			dc.sweepVals[i] = append(dc.sweepVals[i], starts[i]+float64(k)*steps[i])
		}
	}

	return dc, nil
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	if err := dc.BaseAnalysis.Setup(ckt); err != nil {
		return err
	}

	dc.sources = dc.sources[:0]
	dc.origWaves = dc.origWaves[:0]
	for _, name := range dc.sourceNames {
		comp, ok := ckt.Component(name)
		if !ok {
			return fmt.Errorf("%w: source %s not found", ErrInvalidParameters, name)
		}
		src, ok := comp.(Source)
		if !ok {
			return fmt.Errorf("%w: %s is not an independent source", ErrInvalidParameters, name)
		}
		dc.sources = append(dc.sources, src)
		dc.origWaves = append(dc.origWaves, src.Waveform())
	}
	return nil
}

// Execute solves one operating point per sweep value. The sources get their
// original waveforms back afterwards.
func (dc *DCSweep) Execute(ctx context.Context) error {
	if dc.Circuit == nil {
		return ErrNoCircuit
	}
	defer func() {
		for i, src := range dc.sources {
			src.SetWaveform(dc.origWaves[i])
		}
	}()

	inner := []float64{0}
	if len(dc.sources) == 2 {
		inner = dc.sweepVals[1]
	}

	for _, val1 := range dc.sweepVals[0] {
		dc.sources[0].SetValue(val1)
		for _, val2 := range inner {
			if len(dc.sources) == 2 {
				dc.sources[1].SetValue(val2)
			}

			sim, err := dc.operatingPoint(ctx, 0)
			if err != nil {
				return fmt.Errorf("dc sweep at %s=%g: %w", dc.sourceNames[0], val1, err)
			}

			dc.results["SWEEP1"] = append(dc.results["SWEEP1"], val1)
			if len(dc.sources) == 2 {
				dc.results["SWEEP2"] = append(dc.results["SWEEP2"], val2)
			}
			for name, value := range dc.solutionAt(sim, 0) {
				dc.results[name] = append(dc.results[name], value)
			}
		}
	}
	return nil
}
