package device

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
	"github.com/edp1096/toy-mna/pkg/util"

	"gonum.org/v1/gonum/mat"
)

// Mutual is a set of magnetically coupled inductors. Every winding is a
// current branch and all windings share one coupling group:
// i_k(t2) = i_k(t1) + sum_j G_kj*(w1*v_j(t1) + w2*v_j(t2)), G = L^-1.
type Mutual struct {
	BaseDevice
	Method util.IntegrationMethod

	names      []string
	inductance *mat.Dense
	gamma      *mat.Dense

	currents []float64
	voltages []float64

	branches   []branch.Branch
	dcBranches []branch.Branch
}

// NewMutual couples inductors with the symmetric coefficient matrix k. The
// diagonal of k is ignored. Initial currents are taken from the inductors.
func NewMutual(name string, inductors []*Inductor, k [][]float64) (*Mutual, error) {
	n := len(inductors)
	if n < 2 {
		return nil, fmt.Errorf("%w: mutual coupling %s requires at least two inductors", ErrInvalidValue, name)
	}
	if len(k) != n {
		return nil, fmt.Errorf("%w: mutual coupling %s needs a %dx%d coefficient matrix", ErrInvalidValue, name, n, n)
	}

	m := &Mutual{
		BaseDevice: BaseDevice{Name: name},
		Method:     inductors[0].Method,
		names:      make([]string, n),
		inductance: mat.NewDense(n, n, nil),
		currents:   make([]float64, n),
		voltages:   make([]float64, n),
	}

	for i, ind := range inductors {
		if len(k[i]) != n {
			return nil, fmt.Errorf("%w: mutual coupling %s needs a %dx%d coefficient matrix", ErrInvalidValue, name, n, n)
		}
		m.names[i] = ind.GetName()
		m.currents[i] = ind.GetCurrent()
		for j, other := range inductors {
			if i == j {
				m.inductance.Set(i, i, ind.Value)
				continue
			}
			kij := k[i][j]
			if kij != k[j][i] || math.Abs(kij) >= 1 {
				return nil, fmt.Errorf("%w: mutual coupling %s: k(%s,%s) must be symmetric and below 1 in magnitude",
					ErrInvalidValue, name, ind.GetName(), other.GetName())
			}
			m.inductance.Set(i, j, kij*math.Sqrt(ind.Value*other.Value))
		}
	}

	m.gamma = mat.NewDense(n, n, nil)
	if err := m.gamma.Inverse(m.inductance); err != nil {
		return nil, fmt.Errorf("%w: mutual coupling %s: inductance matrix: %v", ErrInvalidValue, name, err)
	}

	m.branches = make([]branch.Branch, n)
	m.dcBranches = make([]branch.Branch, n)
	for i := range inductors {
		// Every winding is shorted at the operating point.
		m.dcBranches[i] = &branch.VoltageFunc{
			Name:       m.names[i],
			VoltageFn:  func(v []float64, t1, t2 float64) float64 { return 0 },
			JacobianFn: zeroJacobian(n),
		}
		m.branches[i] = &branch.CurrentFunc{
			Name: m.names[i],
			CurrentFn: func(v []float64, t1, t2 float64) float64 {
				return m.windingCurrent(i, v, t1, t2)
			},
			JacobianFn: func(v []float64, t1, t2 float64) []float64 {
				_, w2 := util.IntegrationWeights(m.Method, t2-t1)
				jac := make([]float64, n)
				for j := range jac {
					jac[j] = w2 * m.gamma.At(i, j)
				}
				return jac
			},
		}
	}
	return m, nil
}

// NewCoupledPair couples two inductors with coefficient k.
func NewCoupledPair(name string, l1, l2 *Inductor, k float64) (*Mutual, error) {
	return NewMutual(name, []*Inductor{l1, l2}, [][]float64{{1, k}, {k, 1}})
}

func (m *Mutual) GetType() string { return "K" }

func (m *Mutual) GetInductorNames() []string { return append([]string(nil), m.names...) }

// Inductance returns the inductance matrix including mutual terms.
func (m *Mutual) Inductance() *mat.Dense { return mat.DenseCopyOf(m.inductance) }

func (m *Mutual) Branches() []branch.Branch { return m.branches }

func (m *Mutual) DCBranches() []branch.Branch { return m.dcBranches }

// Connect takes a terminal pair per winding, in inductor order.
func (m *Mutual) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(m, terminals)
}

func (m *Mutual) windingCurrent(i int, v []float64, t1, t2 float64) float64 {
	w1, w2 := util.IntegrationWeights(m.Method, t2-t1)
	sum := m.currents[i]
	for j := range v {
		sum += m.gamma.At(i, j) * (w1*m.voltages[j] + w2*v[j])
	}
	return sum
}

func (m *Mutual) Update(v []float64, t1, t2 float64) {
	next := make([]float64, len(m.currents))
	for i := range next {
		next[i] = m.windingCurrent(i, v, t1, t2)
	}
	m.currents = next
	m.voltages = append(m.voltages[:0], v...)
}

// State is the winding currents followed by the winding voltages.
func (m *Mutual) State() []float64 {
	return append(append([]float64(nil), m.currents...), m.voltages...)
}

func (m *Mutual) SetState(state []float64) error {
	n := len(m.currents)
	if err := checkState(state, 2*n); err != nil {
		return err
	}
	copy(m.currents, state[:n])
	copy(m.voltages, state[n:])
	return nil
}
