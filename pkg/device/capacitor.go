package device

import (
	"fmt"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
	"github.com/edp1096/toy-mna/pkg/util"
)

// Capacitor is a voltage branch integrating its own current:
// v(t2) = v(t1) + (w1*i(t1) + w2*i(t2)) / C.
// At the operating point it is open, leaking through dcGmin.
type Capacitor struct {
	BaseDevice
	Method util.IntegrationMethod

	voltage float64 // committed voltage
	current float64 // committed current

	branch   *branch.VoltageFunc
	dcBranch *branch.CurrentFunc
}

func NewCapacitor(name string, value float64) (*Capacitor, error) {
	if value <= 0 {
		return nil, fmt.Errorf("%w: capacitor %s must be positive", ErrInvalidValue, name)
	}
	c := &Capacitor{
		BaseDevice: BaseDevice{Name: name, Value: value},
		Method:     util.Trapezoidal,
	}
	c.branch = &branch.VoltageFunc{
		Name:      name,
		VoltageFn: c.branchVoltage,
		JacobianFn: func(v []float64, t1, t2 float64) []float64 {
			_, w2 := util.IntegrationWeights(c.Method, t2-t1)
			return []float64{w2 / c.Value}
		},
	}
	c.dcBranch = branch.Conductance(name, dcGmin)
	return c, nil
}

func (c *Capacitor) GetType() string { return "C" }

func (c *Capacitor) Branches() []branch.Branch { return []branch.Branch{c.branch} }

func (c *Capacitor) DCBranches() []branch.Branch { return []branch.Branch{c.dcBranch} }

func (c *Capacitor) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(c, terminals)
}

// SetInitialVoltage sets the voltage the first step starts from.
func (c *Capacitor) SetInitialVoltage(v float64) { c.voltage = v }

func (c *Capacitor) branchVoltage(v []float64, t1, t2 float64) float64 {
	w1, w2 := util.IntegrationWeights(c.Method, t2-t1)
	return c.voltage + (w1*c.current+w2*v[0])/c.Value
}

func (c *Capacitor) Update(v []float64, t1, t2 float64) {
	c.voltage = c.branchVoltage(v, t1, t2)
	c.current = v[0]
}

// State is [voltage, current].
func (c *Capacitor) State() []float64 { return []float64{c.voltage, c.current} }

func (c *Capacitor) SetState(state []float64) error {
	if err := checkState(state, 2); err != nil {
		return err
	}
	c.voltage, c.current = state[0], state[1]
	return nil
}
