// Package mna builds the Modified Nodal Analysis residual system of a circuit
// graph. Unknowns are the potentials of all non-reference nodes followed by the
// currents of all voltage branches.
package mna

import (
	"errors"
	"fmt"
	"sync"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

var (
	ErrDuplicateCoupling = errors.New("mna: branch appears in more than one coupling group")
	ErrUnknownBranch     = errors.New("mna: coupled branch is not part of the graph")
	ErrSwitchBranch      = errors.New("mna: switch branches must be resolved before building equations")
)

// Term is one summand of a Kirchhoff equation.
type Term interface {
	isTerm()
}

// KirchhoffTerm is the current of a current branch, computed from the coupled
// vector of its group.
type KirchhoffTerm struct {
	Negative bool
	Branch   branch.CurrentBranch
	Coupled  []branch.Branch
}

// KirchhoffBranchConsecutiveTerm is the current of a voltage branch, which is
// an unknown of the system.
type KirchhoffBranchConsecutiveTerm struct {
	Negative bool
	Branch   branch.VoltageBranch
}

func (KirchhoffTerm) isTerm()                  {}
func (KirchhoffBranchConsecutiveTerm) isTerm() {}

type KirchhoffEquation struct {
	Node  graph.Node
	Terms []Term
}

// BranchConsecutiveEquation pins the voltage of a voltage branch:
// Voltage(coupled) + V(Source) - V(Target) = 0.
type BranchConsecutiveEquation struct {
	Branch  branch.VoltageBranch
	Source  graph.Node
	Target  graph.Node
	Coupled []branch.Branch
}

type Stack struct {
	graph *graph.Graph

	references []graph.Node
	refOf      map[graph.Node]graph.Node

	nodes        []graph.Node
	nodeIndex    map[graph.Node]int
	currents     []branch.VoltageBranch
	currentIndex map[branch.Branch]int

	kirchhoff   []KirchhoffEquation
	consecutive []BranchConsecutiveEquation
	couplings   map[branch.Branch][]branch.Branch

	evalOnce sync.Once
	eval     EvalFunc
	jacOnce  sync.Once
	jac      JacobianFunc
}

// New builds the equation stack for g. Branches that belong to no coupling
// group get a group of their own. Within every weakly connected component the
// first node listed in references becomes the reference node; without one the
// first inserted node of the component is used.
func New(g *graph.Graph, couplings [][]branch.Branch, references ...graph.Node) (*Stack, error) {
	s := &Stack{
		graph:        g,
		refOf:        make(map[graph.Node]graph.Node),
		nodeIndex:    make(map[graph.Node]int),
		currentIndex: make(map[branch.Branch]int),
		couplings:    make(map[branch.Branch][]branch.Branch),
	}

	for _, group := range couplings {
		for _, b := range group {
			if _, dup := s.couplings[b]; dup {
				return nil, fmt.Errorf("%w: %v", ErrDuplicateCoupling, b)
			}
			if !g.HasBranch(b) {
				return nil, fmt.Errorf("%w: %v", ErrUnknownBranch, b)
			}
			s.couplings[b] = group
		}
	}

	edges := g.Edges()
	for _, e := range edges {
		if branch.Classify(e.Branch) == branch.KindSwitch {
			return nil, fmt.Errorf("%w: %v", ErrSwitchBranch, e.Branch)
		}
		if _, ok := s.couplings[e.Branch]; !ok {
			s.couplings[e.Branch] = []branch.Branch{e.Branch}
		}
	}

	// Voltage branch currents are indexed up front so Kirchhoff terms can
	// refer to them.
	for _, e := range edges {
		if e.Branch.Kind() == branch.KindVoltage {
			vb := e.Branch.(branch.VoltageBranch)
			s.currentIndex[e.Branch] = len(s.currents)
			s.currents = append(s.currents, vb)
			s.consecutive = append(s.consecutive, BranchConsecutiveEquation{
				Branch:  vb,
				Source:  e.Source,
				Target:  e.Target,
				Coupled: s.couplings[e.Branch],
			})
		}
	}

	for _, comp := range g.WeaklyConnectedComponents() {
		ref := pickReference(comp, references)
		s.references = append(s.references, ref)
		s.refOf[ref] = ref

		for _, n := range comp {
			if n == ref {
				continue
			}
			s.refOf[n] = ref
			s.nodeIndex[n] = len(s.nodes)
			s.nodes = append(s.nodes, n)
			s.kirchhoff = append(s.kirchhoff, s.kirchhoffEquation(n))
		}
	}

	return s, nil
}

func pickReference(comp []graph.Node, preferred []graph.Node) graph.Node {
	in := make(map[graph.Node]bool, len(comp))
	for _, n := range comp {
		in[n] = true
	}
	for _, p := range preferred {
		if in[p] {
			return p
		}
	}
	return comp[0]
}

func (s *Stack) kirchhoffEquation(n graph.Node) KirchhoffEquation {
	eq := KirchhoffEquation{Node: n}
	add := func(negative bool, edges []graph.Edge) {
		for _, e := range edges {
			switch e.Branch.Kind() {
			case branch.KindCurrent:
				eq.Terms = append(eq.Terms, KirchhoffTerm{
					Negative: negative,
					Branch:   e.Branch.(branch.CurrentBranch),
					Coupled:  s.couplings[e.Branch],
				})
			case branch.KindVoltage:
				eq.Terms = append(eq.Terms, KirchhoffBranchConsecutiveTerm{
					Negative: negative,
					Branch:   e.Branch.(branch.VoltageBranch),
				})
			}
		}
	}
	add(false, s.graph.InEdges(n))
	add(true, s.graph.OutEdges(n))
	return eq
}

// Len is the number of equations, equal to the number of unknowns.
func (s *Stack) Len() int { return len(s.nodes) + len(s.currents) }

func (s *Stack) Graph() *graph.Graph { return s.graph }

// Nodes returns the free nodes in unknown order.
func (s *Stack) Nodes() []graph.Node {
	return append([]graph.Node(nil), s.nodes...)
}

// Currents returns the voltage branches whose currents are unknowns, in order.
func (s *Stack) Currents() []branch.VoltageBranch {
	return append([]branch.VoltageBranch(nil), s.currents...)
}

func (s *Stack) KirchhoffEquations() []KirchhoffEquation { return s.kirchhoff }

func (s *Stack) BranchConsecutiveEquations() []BranchConsecutiveEquation { return s.consecutive }

// ReferenceNodes returns one ground node per weakly connected component.
func (s *Stack) ReferenceNodes() []graph.Node {
	return append([]graph.Node(nil), s.references...)
}

func sign(negative bool) float64 {
	if negative {
		return -1
	}
	return 1
}
