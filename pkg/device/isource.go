package device

import (
	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

// CurrentSource drives its current from the positive terminal through the
// source to the negative terminal.
type CurrentSource struct {
	BaseDevice
	stateless
	wave Waveform

	branch *branch.CurrentFunc
}

func NewCurrentSource(name string, wave Waveform) *CurrentSource {
	i := &CurrentSource{
		BaseDevice: BaseDevice{Name: name, Value: wave.At(0)},
		wave:       wave,
	}
	i.branch = &branch.CurrentFunc{
		Name:       name,
		CurrentFn:  func(_ []float64, t1, t2 float64) float64 { return i.GetCurrent(t2) },
		JacobianFn: zeroJacobian(1),
	}
	return i
}

func NewDCCurrentSource(name string, value float64) *CurrentSource {
	return NewCurrentSource(name, DCWave{Value: value})
}

func (i *CurrentSource) GetType() string { return "I" }

func (i *CurrentSource) GetCurrent(t float64) float64 { return i.wave.At(t) }

func (i *CurrentSource) Waveform() Waveform { return i.wave }

func (i *CurrentSource) SetValue(value float64) {
	i.Value = value
	i.wave = DCWave{Value: value}
}

func (i *CurrentSource) SetWaveform(wave Waveform) {
	i.Value = wave.At(0)
	i.wave = wave
}

func (i *CurrentSource) Branches() []branch.Branch { return []branch.Branch{i.branch} }

func (i *CurrentSource) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(i, terminals)
}
