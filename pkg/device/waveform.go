package device

import (
	"fmt"
	"math"
)

type SourceType int

const (
	DC SourceType = iota
	SIN
	PULSE
	PWL
)

// Waveform is the time dependence of an independent source.
type Waveform interface {
	Type() SourceType
	At(t float64) float64
}

type DCWave struct {
	Value float64
}

func (w DCWave) Type() SourceType     { return DC }
func (w DCWave) At(t float64) float64 { return w.Value }

type SinWave struct {
	Offset    float64
	Amplitude float64
	Freq      float64
	Phase     float64 // degrees
}

func (w SinWave) Type() SourceType { return SIN }

func (w SinWave) At(t float64) float64 {
	phaseRad := w.Phase * math.Pi / 180.0
	return w.Offset + w.Amplitude*math.Sin(2.0*math.Pi*w.Freq*t+phaseRad)
}

type PulseWave struct {
	V1, V2 float64
	Delay  float64
	Rise   float64
	Fall   float64
	Width  float64
	Period float64
}

func (w PulseWave) Type() SourceType { return PULSE }

func (w PulseWave) At(t float64) float64 {
	if t < w.Delay {
		return w.V1
	}

	t = t - w.Delay
	if w.Period > 0 {
		t = math.Mod(t, w.Period)
	}

	if t < w.Rise {
		return w.V1 + (w.V2-w.V1)*t/w.Rise
	}

	if t < w.Rise+w.Width {
		return w.V2
	}

	fallStart := w.Rise + w.Width
	if t < fallStart+w.Fall {
		return w.V2 - (w.V2-w.V1)*(t-fallStart)/w.Fall
	}

	return w.V1
}

type PWLWave struct {
	Times  []float64
	Values []float64
}

func NewPWLWave(times, values []float64) (PWLWave, error) {
	if len(times) == 0 || len(times) != len(values) {
		return PWLWave{}, fmt.Errorf("%w: pwl needs matching non-empty time and value lists", ErrInvalidValue)
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return PWLWave{}, fmt.Errorf("%w: pwl times must not decrease", ErrInvalidValue)
		}
	}
	return PWLWave{Times: times, Values: values}, nil
}

func (w PWLWave) Type() SourceType { return PWL }

func (w PWLWave) At(t float64) float64 {
	if t <= w.Times[0] {
		return w.Values[0]
	}

	lastIdx := len(w.Times) - 1
	if t >= w.Times[lastIdx] {
		return w.Values[lastIdx]
	}

	for i := 1; i < len(w.Times); i++ {
		if t <= w.Times[i] {
			t1, t2 := w.Times[i-1], w.Times[i]
			v1, v2 := w.Values[i-1], w.Values[i]
			if t2 == t1 {
				return v2
			}
			return v1 + (v2-v1)*(t-t1)/(t2-t1)
		}
	}

	return w.Values[lastIdx]
}
