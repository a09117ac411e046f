package branch

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Kind tells the equation builder how a branch constrains the circuit.
type Kind int

const (
	KindCurrent Kind = iota // current is a function of the coupled quantities
	KindVoltage             // voltage is a function of the coupled quantities
	KindSwitch              // either open or short, never seen by the equation stack
)

var ErrNotImplemented = errors.New("branch: not implemented")

func (k Kind) String() string {
	switch k {
	case KindCurrent:
		return "current"
	case KindVoltage:
		return "voltage"
	case KindSwitch:
		return "switch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Branch is one edge of the circuit graph. Implementations must be comparable,
// usually a pointer, since branches are used as map keys.
//
// Voltage of a branch is V(target) - V(source). Current is the current entering
// the branch at its target node.
type Branch interface {
	Kind() Kind
}

// CurrentBranch defines its current from the coupled vector v. v holds one
// entry per member of the coupling group: the current of voltage branches and
// the voltage of current branches.
type CurrentBranch interface {
	Branch
	Current(v []float64, t1, t2 float64) float64
	Jacobian(v []float64, t1, t2 float64) []float64
}

// VoltageBranch defines its voltage from the coupled vector v.
type VoltageBranch interface {
	Branch
	Voltage(v []float64, t1, t2 float64) float64
	Jacobian(v []float64, t1, t2 float64) []float64
}

type SwitchBranch interface {
	Branch
	SwitchState(t float64) bool
}

// Classify returns the kind of b after checking that b implements the methods
// its kind requires.
func Classify(b Branch) Kind {
	k := b.Kind()
	ok := false
	switch k {
	case KindCurrent:
		_, ok = b.(CurrentBranch)
	case KindVoltage:
		_, ok = b.(VoltageBranch)
	case KindSwitch:
		_, ok = b.(SwitchBranch)
	}
	if !ok {
		logrus.Panicf("branch: %T declares kind %v but does not implement it", b, k)
	}
	return k
}

// Unimplemented can be embedded to satisfy any branch interface. Every method
// panics with ErrNotImplemented until overridden.
type Unimplemented struct{}

func (Unimplemented) Current(v []float64, t1, t2 float64) float64 {
	panic(fmt.Errorf("Current: %w", ErrNotImplemented))
}

func (Unimplemented) Voltage(v []float64, t1, t2 float64) float64 {
	panic(fmt.Errorf("Voltage: %w", ErrNotImplemented))
}

func (Unimplemented) Jacobian(v []float64, t1, t2 float64) []float64 {
	panic(fmt.Errorf("Jacobian: %w", ErrNotImplemented))
}

func (Unimplemented) SwitchState(t float64) bool {
	panic(fmt.Errorf("SwitchState: %w", ErrNotImplemented))
}
