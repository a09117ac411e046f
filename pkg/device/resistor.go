package device

import (
	"fmt"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

type Resistor struct {
	BaseDevice
	stateless
	Tc1  float64
	Tc2  float64
	Tnom float64
	Temp float64

	branch *branch.CurrentFunc
}

func NewResistor(name string, value float64) (*Resistor, error) {
	if value == 0 {
		return nil, fmt.Errorf("%w: resistor %s must not be zero", ErrInvalidValue, name)
	}
	r := &Resistor{
		BaseDevice: BaseDevice{Name: name, Value: value},
		Tc1:        0.0,
		Tc2:        0.0,
		Tnom:       consts.NOMINAL_TEMP,
		Temp:       consts.NOMINAL_TEMP,
	}
	r.branch = &branch.CurrentFunc{
		Name: name,
		CurrentFn: func(v []float64, t1, t2 float64) float64 {
			return v[0] / r.temperatureAdjustedValue()
		},
		JacobianFn: func(v []float64, t1, t2 float64) []float64 {
			return []float64{1 / r.temperatureAdjustedValue()}
		},
	}
	return r, nil
}

func (r *Resistor) GetType() string { return "R" }

func (r *Resistor) Branches() []branch.Branch { return []branch.Branch{r.branch} }

func (r *Resistor) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(r, terminals)
}

func (r *Resistor) temperatureAdjustedValue() float64 {
	dt := r.Temp - r.Tnom
	factor := 1.0 + r.Tc1*dt + r.Tc2*dt*dt
	return r.Value * factor
}
