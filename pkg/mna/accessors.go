package mna

import (
	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"

	"github.com/sirupsen/logrus"
)

// VoltageBetweenNodes returns V(target) - V(source). Nodes unknown to the
// stack count as reference nodes.
func (s *Stack) VoltageBetweenNodes(x []float64, source, target graph.Node) float64 {
	return s.potential(x, target) - s.potential(x, source)
}

// NodeVoltage returns the potential of n. Reference nodes are at 0.
func (s *Stack) NodeVoltage(x []float64, n graph.Node) float64 {
	if idx, ok := s.nodeIndex[n]; ok {
		return x[idx]
	}
	if _, ok := s.refOf[n]; ok {
		return 0
	}
	logrus.Panicf("mna: node %v is not tracked", n)
	return 0
}

func (s *Stack) NodeVoltages(x []float64) map[graph.Node]float64 {
	vs := make(map[graph.Node]float64, len(s.nodes)+len(s.references))
	for i, n := range s.nodes {
		vs[n] = x[i]
	}
	for _, ref := range s.references {
		vs[ref] = 0
	}
	return vs
}

// Voltage returns the voltage across a current branch.
func (s *Stack) Voltage(x []float64, b branch.CurrentBranch) float64 {
	source, target, ok := s.graph.NodesOf(b)
	if !ok {
		logrus.Panicf("mna: branch %v is not part of the graph", b)
	}
	return s.VoltageBetweenNodes(x, source, target)
}

// Current returns the current through a voltage branch.
func (s *Stack) Current(x []float64, b branch.VoltageBranch) float64 {
	return x[s.currentColumn(b)]
}

// AssembleVector builds an unknown vector from node potentials and voltage
// branch currents. Potentials are taken relative to the reference node of
// their component. Missing entries are set to fill.
func (s *Stack) AssembleVector(v map[graph.Node]float64, i map[branch.Branch]float64, fill float64) []float64 {
	x := make([]float64, s.Len())
	for k := range x {
		x[k] = fill
	}
	for n, pot := range v {
		idx, ok := s.nodeIndex[n]
		if !ok {
			continue
		}
		x[idx] = pot - v[s.refOf[n]]
	}
	for b, cur := range i {
		if idx, ok := s.currentIndex[b]; ok {
			x[len(s.nodes)+idx] = cur
		}
	}
	return x
}

// DisassembleVector splits x into node potentials, reference nodes included,
// and voltage branch currents.
func (s *Stack) DisassembleVector(x []float64) (map[graph.Node]float64, map[branch.Branch]float64) {
	i := make(map[branch.Branch]float64, len(s.currents))
	for k, b := range s.currents {
		i[b] = x[len(s.nodes)+k]
	}
	return s.NodeVoltages(x), i
}
