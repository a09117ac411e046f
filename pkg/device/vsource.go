package device

import (
	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

type VoltageSource struct {
	BaseDevice
	stateless
	wave Waveform

	branch *branch.VoltageFunc
}

func NewVoltageSource(name string, wave Waveform) *VoltageSource {
	v := &VoltageSource{
		BaseDevice: BaseDevice{Name: name, Value: wave.At(0)},
		wave:       wave,
	}
	v.branch = &branch.VoltageFunc{
		Name:       name,
		VoltageFn:  func(_ []float64, t1, t2 float64) float64 { return v.GetVoltage(t2) },
		JacobianFn: zeroJacobian(1),
	}
	return v
}

func NewDCVoltageSource(name string, value float64) *VoltageSource {
	return NewVoltageSource(name, DCWave{Value: value})
}

func (v *VoltageSource) GetType() string { return "V" }

func (v *VoltageSource) GetVoltage(t float64) float64 { return v.wave.At(t) }

func (v *VoltageSource) Waveform() Waveform { return v.wave }

// SetValue turns the source into a DC source of the given value.
func (v *VoltageSource) SetValue(value float64) {
	v.Value = value
	v.wave = DCWave{Value: value}
}

func (v *VoltageSource) SetWaveform(wave Waveform) {
	v.Value = wave.At(0)
	v.wave = wave
}

func (v *VoltageSource) Branches() []branch.Branch { return []branch.Branch{v.branch} }

func (v *VoltageSource) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(v, terminals)
}
