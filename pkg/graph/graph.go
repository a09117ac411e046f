package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/edp1096/toy-mna/pkg/branch"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	ErrDuplicateBranch = errors.New("graph: branch already in graph")
	ErrUnknownBranch   = errors.New("graph: branch not in graph")
)

// Node is any comparable value naming a circuit node.
type Node = any

type Edge struct {
	Source Node
	Target Node
	Branch branch.Branch
}

// MergedNode stands for several nodes shorted together.
type MergedNode struct {
	Nodes []Node
}

func (m *MergedNode) String() string {
	return fmt.Sprintf("merged%v", m.Nodes)
}

type line struct {
	from, to, id int64
	loop         bool
}

// Graph is a directed multigraph where every branch appears at most once.
// Nodes and edges keep their insertion order.
type Graph struct {
	g     *multi.DirectedGraph
	ids   map[Node]int64
	names map[int64]Node
	nodes []Node
	edges []Edge
	lines map[branch.Branch]line
}

func New() *Graph {
	return &Graph{
		g:     multi.NewDirectedGraph(),
		ids:   make(map[Node]int64),
		names: make(map[int64]Node),
		lines: make(map[branch.Branch]line),
	}
}

func (g *Graph) AddNode(n Node) {
	if _, ok := g.ids[n]; ok {
		return
	}
	gn := g.g.NewNode()
	g.g.AddNode(gn)
	g.ids[n] = gn.ID()
	g.names[gn.ID()] = n
	g.nodes = append(g.nodes, n)
}

func (g *Graph) HasNode(n Node) bool {
	_, ok := g.ids[n]
	return ok
}

func (g *Graph) HasBranch(b branch.Branch) bool {
	_, ok := g.lines[b]
	return ok
}

// AddEdge adds b between source and target, creating the nodes as needed.
func (g *Graph) AddEdge(source, target Node, b branch.Branch) error {
	if _, ok := g.lines[b]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateBranch, b)
	}
	g.AddNode(source)
	g.AddNode(target)

	from, to := g.ids[source], g.ids[target]
	l := line{from: from, to: to, loop: from == to}
	if !l.loop {
		gl := g.g.NewLine(g.g.Node(from), g.g.Node(to))
		g.g.SetLine(gl)
		l.id = gl.ID()
	}
	g.lines[b] = l
	g.edges = append(g.edges, Edge{Source: source, Target: target, Branch: b})
	return nil
}

func (g *Graph) RemoveEdge(b branch.Branch) error {
	l, ok := g.lines[b]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownBranch, b)
	}
	if !l.loop {
		g.g.RemoveLine(l.from, l.to, l.id)
	}
	delete(g.lines, b)
	for i, e := range g.edges {
		if e.Branch == b {
			g.edges = append(g.edges[:i:i], g.edges[i+1:]...)
			break
		}
	}
	return nil
}

func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// InEdges returns the edges whose target is n, in insertion order.
func (g *Graph) InEdges(n Node) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Target == n {
			out = append(out, e)
		}
	}
	return out
}

// OutEdges returns the edges whose source is n, in insertion order.
func (g *Graph) OutEdges(n Node) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Source == n {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) NodesOf(b branch.Branch) (source, target Node, ok bool) {
	l, ok := g.lines[b]
	if !ok {
		return nil, nil, false
	}
	return g.names[l.from], g.names[l.to], true
}

// WeaklyConnectedComponents returns the node sets connected when edge
// direction is ignored. Components and their nodes follow insertion order.
func (g *Graph) WeaklyConnectedComponents() [][]Node {
	pos := make(map[int64]int, len(g.nodes))
	for i, n := range g.nodes {
		pos[g.ids[n]] = i
	}

	cc := topo.ConnectedComponents(gonumgraph.Undirect{G: g.g})
	comps := make([][]int, 0, len(cc))
	for _, c := range cc {
		idx := make([]int, 0, len(c))
		for _, n := range c {
			idx = append(idx, pos[n.ID()])
		}
		sort.Ints(idx)
		comps = append(comps, idx)
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })

	out := make([][]Node, len(comps))
	for i, c := range comps {
		out[i] = make([]Node, len(c))
		for j, k := range c {
			out[i][j] = g.nodes[k]
		}
	}
	return out
}

func (g *Graph) Copy() *Graph {
	c := New()
	for _, n := range g.nodes {
		c.AddNode(n)
	}
	for _, e := range g.edges {
		// Branches are unique in g.
		_ = c.AddEdge(e.Source, e.Target, e.Branch)
	}
	return c
}

// MergeNodes replaces every node in nodes by into. Edges between merged nodes
// become self-loops. into takes the position of the first merged node.
func (g *Graph) MergeNodes(nodes []Node, into Node) {
	set := make(map[Node]bool, len(nodes))
	for _, n := range nodes {
		set[n] = true
	}
	mapped := func(n Node) Node {
		if set[n] {
			return into
		}
		return n
	}

	m := New()
	for _, n := range g.nodes {
		m.AddNode(mapped(n))
	}
	for _, e := range g.edges {
		_ = m.AddEdge(mapped(e.Source), mapped(e.Target), e.Branch)
	}
	*g = *m
}
