package util

import (
	"fmt"
	"strings"
)

type IntegrationMethod int

const (
	BackwardEuler IntegrationMethod = iota
	Trapezoidal
)

func (m IntegrationMethod) String() string {
	switch m {
	case BackwardEuler:
		return "be"
	case Trapezoidal:
		return "tr"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

func ParseIntegrationMethod(s string) (IntegrationMethod, error) {
	switch strings.ToLower(s) {
	case "be", "euler", "gear":
		return BackwardEuler, nil
	case "", "tr", "trap", "trapezoidal":
		return Trapezoidal, nil
	default:
		return 0, fmt.Errorf("unknown integration method %q", s)
	}
}

// IntegrationWeights returns w1, w2 such that x(t2) = x(t1) + w1*dx(t1) + w2*dx(t2)
// for a step of length dt. A zero step yields zero weights.
func IntegrationWeights(method IntegrationMethod, dt float64) (w1, w2 float64) {
	switch method {
	case BackwardEuler:
		return 0, dt
	default:
		return dt / 2, dt / 2
	}
}
