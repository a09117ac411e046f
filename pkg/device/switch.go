package device

import (
	"sort"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

// Switch is an ideal switch: a short when on, an open when off.
type Switch struct {
	BaseDevice
	stateless
	state func(t float64) bool

	branch *branch.SwitchFunc
}

// NewSwitch creates a switch that starts in state initial and flips at every
// toggle time. A toggle at t applies from t on.
func NewSwitch(name string, initial bool, toggles ...float64) *Switch {
	times := append([]float64(nil), toggles...)
	sort.Float64s(times)
	return NewSwitchFunc(name, func(t float64) bool {
		flips := sort.Search(len(times), func(i int) bool { return times[i] > t })
		return initial != (flips%2 == 1)
	})
}

func NewSwitchFunc(name string, state func(t float64) bool) *Switch {
	s := &Switch{BaseDevice: BaseDevice{Name: name}, state: state}
	s.branch = &branch.SwitchFunc{Name: name, StateFn: s.IsOn}
	return s
}

func (s *Switch) GetType() string { return "S" }

func (s *Switch) IsOn(t float64) bool { return s.state(t) }

func (s *Switch) Branches() []branch.Branch { return []branch.Branch{s.branch} }

func (s *Switch) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(s, terminals)
}
