package device

import (
	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

// Controlled sources couple an output branch with a sensing branch. Terminals
// are (out+, out-, ctrl+, ctrl-) and the coupled vector is [out, sense].
type ControlledSource struct {
	BaseDevice
	stateless
	kind string

	branches []branch.Branch
}

func (c *ControlledSource) GetType() string { return c.kind }

// Gain returns the transfer factor.
func (c *ControlledSource) Gain() float64 { return c.Value }

func (c *ControlledSource) Branches() []branch.Branch { return c.branches }

func (c *ControlledSource) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(c, terminals)
}

// openSense measures the control voltage without drawing current.
func openSense(name string) *branch.CurrentFunc {
	return &branch.CurrentFunc{
		Name:       name + ":sense",
		CurrentFn:  func(v []float64, t1, t2 float64) float64 { return 0 },
		JacobianFn: zeroJacobian(2),
	}
}

// shortSense measures the control current with a zero volt source.
func shortSense(name string) *branch.VoltageFunc {
	return &branch.VoltageFunc{
		Name:       name + ":sense",
		VoltageFn:  func(v []float64, t1, t2 float64) float64 { return 0 },
		JacobianFn: zeroJacobian(2),
	}
}

// NewVCVS creates a voltage controlled voltage source, V(out) = gain*V(ctrl).
func NewVCVS(name string, gain float64) *ControlledSource {
	c := &ControlledSource{BaseDevice: BaseDevice{Name: name, Value: gain}, kind: "E"}
	c.branches = []branch.Branch{
		&branch.VoltageFunc{
			Name:       name,
			VoltageFn:  func(v []float64, t1, t2 float64) float64 { return c.Value * v[1] },
			JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0, c.Value} },
		},
		openSense(name),
	}
	return c
}

// NewVCCS creates a voltage controlled current source, I(out) = gm*V(ctrl).
func NewVCCS(name string, gm float64) *ControlledSource {
	c := &ControlledSource{BaseDevice: BaseDevice{Name: name, Value: gm}, kind: "G"}
	c.branches = []branch.Branch{
		&branch.CurrentFunc{
			Name:       name,
			CurrentFn:  func(v []float64, t1, t2 float64) float64 { return c.Value * v[1] },
			JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0, c.Value} },
		},
		openSense(name),
	}
	return c
}

// NewCCCS creates a current controlled current source, I(out) = gain*I(ctrl).
func NewCCCS(name string, gain float64) *ControlledSource {
	c := &ControlledSource{BaseDevice: BaseDevice{Name: name, Value: gain}, kind: "F"}
	c.branches = []branch.Branch{
		&branch.CurrentFunc{
			Name:       name,
			CurrentFn:  func(v []float64, t1, t2 float64) float64 { return c.Value * v[1] },
			JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0, c.Value} },
		},
		shortSense(name),
	}
	return c
}

// NewCCVS creates a current controlled voltage source, V(out) = r*I(ctrl).
func NewCCVS(name string, r float64) *ControlledSource {
	c := &ControlledSource{BaseDevice: BaseDevice{Name: name, Value: r}, kind: "H"}
	c.branches = []branch.Branch{
		&branch.VoltageFunc{
			Name:       name,
			VoltageFn:  func(v []float64, t1, t2 float64) float64 { return c.Value * v[1] },
			JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0, c.Value} },
		},
		shortSense(name),
	}
	return c
}
