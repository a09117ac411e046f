package device

import (
	"errors"
	"fmt"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

var (
	ErrTerminalCount = errors.New("device: wrong number of terminals")
	ErrStateSize     = errors.New("device: wrong state size")
	ErrInvalidValue  = errors.New("device: invalid value")
)

// Component is a circuit element made of one or more branches. The branches
// of a component form one coupling group, in the order Branches returns them.
type Component interface {
	GetName() string
	GetType() string
	// Connect places the branches between the given terminals.
	Connect(terminals ...graph.Node) ([]graph.Edge, error)
	Branches() []branch.Branch
	// Update commits the solution of the step from t1 to t2. v is the
	// coupled vector of Branches.
	Update(v []float64, t1, t2 float64)
	State() []float64
	SetState(state []float64) error
}

// DCModel is implemented by components that look different at the operating
// point. DCBranches lines up with Branches: same length, same order, same
// terminals.
type DCModel interface {
	DCBranches() []branch.Branch
}

// dcGmin is the leakage conductance of an open capacitor at the operating point.
const dcGmin = 1e-12

type BaseDevice struct {
	Name  string
	Value float64
}

type ModelParam struct {
	Type   string
	Name   string
	Params map[string]float64
}

func (d *BaseDevice) GetName() string { return d.Name }

func (d *BaseDevice) GetValue() float64 { return d.Value }

// stateless implements the state part of Component for devices without memory.
type stateless struct{}

func (stateless) Update(v []float64, t1, t2 float64) {}

func (stateless) State() []float64 { return nil }

func (stateless) SetState(state []float64) error {
	if len(state) != 0 {
		return fmt.Errorf("%w: want 0, got %d", ErrStateSize, len(state))
	}
	return nil
}

// connectPairs connects branch k between terminals 2k (positive) and 2k+1
// (negative). The resulting edge runs from the negative to the positive
// terminal so the branch voltage is V(positive) - V(negative).
func connectPairs(c Component, terminals []graph.Node) ([]graph.Edge, error) {
	bs := c.Branches()
	if len(terminals) != 2*len(bs) {
		return nil, fmt.Errorf("%w: %s needs %d, got %d", ErrTerminalCount, c.GetName(), 2*len(bs), len(terminals))
	}
	edges := make([]graph.Edge, len(bs))
	for k, b := range bs {
		edges[k] = graph.Edge{Source: terminals[2*k+1], Target: terminals[2*k], Branch: b}
	}
	return edges, nil
}

func checkState(state []float64, n int) error {
	if len(state) != n {
		return fmt.Errorf("%w: want %d, got %d", ErrStateSize, n, len(state))
	}
	return nil
}

func zeroJacobian(n int) func(v []float64, t1, t2 float64) []float64 {
	return func(v []float64, t1, t2 float64) []float64 { return make([]float64, n) }
}

var (
	_ Component = (*Resistor)(nil)
	_ Component = (*Capacitor)(nil)
	_ Component = (*Inductor)(nil)
	_ Component = (*Mutual)(nil)
	_ Component = (*VoltageSource)(nil)
	_ Component = (*CurrentSource)(nil)
	_ Component = (*Diode)(nil)
	_ Component = (*Bjt)(nil)
	_ Component = (*ControlledSource)(nil)
	_ Component = (*Switch)(nil)

	_ DCModel = (*Capacitor)(nil)
	_ DCModel = (*Inductor)(nil)
	_ DCModel = (*Mutual)(nil)
)
