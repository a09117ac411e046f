package device

import (
	"fmt"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
	"github.com/edp1096/toy-mna/pkg/util"
)

// Inductor is a current branch integrating its own voltage:
// i(t2) = i(t1) + (w1*v(t1) + w2*v(t2)) / L.
// At the operating point it is a short.
type Inductor struct {
	BaseDevice
	Method util.IntegrationMethod

	current float64
	voltage float64

	branch   *branch.CurrentFunc
	dcBranch *branch.VoltageFunc
}

func NewInductor(name string, value float64) (*Inductor, error) {
	if value <= 0 {
		return nil, fmt.Errorf("%w: inductor %s must be positive", ErrInvalidValue, name)
	}
	l := &Inductor{
		BaseDevice: BaseDevice{Name: name, Value: value},
		Method:     util.Trapezoidal,
	}
	l.branch = &branch.CurrentFunc{
		Name:      name,
		CurrentFn: l.branchCurrent,
		JacobianFn: func(v []float64, t1, t2 float64) []float64 {
			_, w2 := util.IntegrationWeights(l.Method, t2-t1)
			return []float64{w2 / l.Value}
		},
	}
	l.dcBranch = branch.ConstantVoltage(name, 0)
	return l, nil
}

func (l *Inductor) GetType() string { return "L" }

func (l *Inductor) Branches() []branch.Branch { return []branch.Branch{l.branch} }

func (l *Inductor) DCBranches() []branch.Branch { return []branch.Branch{l.dcBranch} }

func (l *Inductor) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(l, terminals)
}

func (l *Inductor) SetInitialCurrent(i float64) { l.current = i }

func (l *Inductor) GetCurrent() float64 { return l.current }

func (l *Inductor) branchCurrent(v []float64, t1, t2 float64) float64 {
	w1, w2 := util.IntegrationWeights(l.Method, t2-t1)
	return l.current + (w1*l.voltage+w2*v[0])/l.Value
}

func (l *Inductor) Update(v []float64, t1, t2 float64) {
	l.current = l.branchCurrent(v, t1, t2)
	l.voltage = v[0]
}

// State is [current, voltage].
func (l *Inductor) State() []float64 { return []float64{l.current, l.voltage} }

func (l *Inductor) SetState(state []float64) error {
	if err := checkState(state, 2); err != nil {
		return err
	}
	l.current, l.voltage = state[0], state[1]
	return nil
}
