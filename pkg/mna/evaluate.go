package mna

import (
	"github.com/edp1096/toy-mna/pkg/branch"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

func (s *Stack) currentColumn(b branch.Branch) int {
	idx, ok := s.currentIndex[b]
	if !ok {
		logrus.Panicf("mna: voltage branch %v has no current unknown", b)
	}
	return len(s.nodes) + idx
}

// nodeColumn returns the unknown index of n, or -1 for reference nodes.
func (s *Stack) nodeColumn(n any) int {
	if idx, ok := s.nodeIndex[n]; ok {
		return idx
	}
	return -1
}

func (s *Stack) potential(x []float64, n any) float64 {
	if idx, ok := s.nodeIndex[n]; ok {
		return x[idx]
	}
	return 0
}

// coupledVector collects the coupled quantities of a group from x.
func (s *Stack) coupledVector(x []float64, coupled []branch.Branch) []float64 {
	vec := make([]float64, len(coupled))
	for i, b := range coupled {
		switch b.Kind() {
		case branch.KindVoltage:
			vec[i] = x[s.currentColumn(b)]
		case branch.KindCurrent:
			source, target, ok := s.graph.NodesOf(b)
			if !ok {
				logrus.Panicf("mna: branch %v is not part of the graph", b)
			}
			vec[i] = s.potential(x, target) - s.potential(x, source)
		default:
			logrus.Panicf("mna: unexpected %v branch %v in coupling group", b.Kind(), b)
		}
	}
	return vec
}

// expandJacobian adds the group jacobian jac, scaled by k, into row.
func (s *Stack) expandJacobian(row []float64, jac []float64, coupled []branch.Branch, k float64) {
	for i, b := range coupled {
		switch b.Kind() {
		case branch.KindVoltage:
			row[s.currentColumn(b)] += k * jac[i]
		case branch.KindCurrent:
			source, target, _ := s.graph.NodesOf(b)
			// dv/dV(target) = 1, dv/dV(source) = -1
			if c := s.nodeColumn(target); c >= 0 {
				row[c] += k * jac[i]
			}
			if c := s.nodeColumn(source); c >= 0 {
				row[c] -= k * jac[i]
			}
		default:
			logrus.Panicf("mna: unexpected %v branch %v in coupling group", b.Kind(), b)
		}
	}
}

// Evaluate returns the residual of every equation at x between the previous
// time t1 and the present time t2. Kirchhoff equations come first.
func (s *Stack) Evaluate(x []float64, t1, t2 float64) []float64 {
	out := make([]float64, 0, s.Len())

	for _, eq := range s.kirchhoff {
		sum := 0.0
		for _, term := range eq.Terms {
			switch t := term.(type) {
			case KirchhoffTerm:
				sum += sign(t.Negative) * t.Branch.Current(s.coupledVector(x, t.Coupled), t1, t2)
			case KirchhoffBranchConsecutiveTerm:
				sum += sign(t.Negative) * x[s.currentColumn(t.Branch)]
			default:
				logrus.Panicf("mna: invalid term type %T", term)
			}
		}
		out = append(out, sum)
	}

	for _, eq := range s.consecutive {
		out = append(out, eq.Branch.Voltage(s.coupledVector(x, eq.Coupled), t1, t2)+
			s.potential(x, eq.Source)-
			s.potential(x, eq.Target))
	}

	return out
}

// Jacobian returns d(Evaluate)/dx at x.
func (s *Stack) Jacobian(x []float64, t1, t2 float64) *mat.Dense {
	n := s.Len()
	if n == 0 {
		return new(mat.Dense)
	}
	data := make([]float64, n*n)

	for r, eq := range s.kirchhoff {
		row := data[r*n : (r+1)*n]
		for _, term := range eq.Terms {
			switch t := term.(type) {
			case KirchhoffTerm:
				jac := t.Branch.Jacobian(s.coupledVector(x, t.Coupled), t1, t2)
				s.expandJacobian(row, jac, t.Coupled, sign(t.Negative))
			case KirchhoffBranchConsecutiveTerm:
				row[s.currentColumn(t.Branch)] += sign(t.Negative)
			default:
				logrus.Panicf("mna: invalid term type %T", term)
			}
		}
	}

	for k, eq := range s.consecutive {
		r := len(s.kirchhoff) + k
		row := data[r*n : (r+1)*n]
		jac := eq.Branch.Jacobian(s.coupledVector(x, eq.Coupled), t1, t2)
		s.expandJacobian(row, jac, eq.Coupled, 1)
		if c := s.nodeColumn(eq.Source); c >= 0 {
			row[c]++
		}
		if c := s.nodeColumn(eq.Target); c >= 0 {
			row[c]--
		}
	}

	return mat.NewDense(n, n, data)
}
