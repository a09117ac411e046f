// Package circuit connects components into a graph and runs transient
// simulations over it.
package circuit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/graph"
	"github.com/edp1096/toy-mna/pkg/mna"
	"github.com/edp1096/toy-mna/pkg/solver"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	ErrDuplicateComponent = errors.New("circuit: component already added")
	ErrUnknownComponent   = errors.New("circuit: component not in circuit")
	ErrInvalidSteps       = errors.New("circuit: at least 1 step required for simulation")
)

// maxConfigurations bounds the cache of switch configurations.
const maxConfigurations = 1 << 16

type switchEdge struct {
	branch         branch.SwitchBranch
	source, target graph.Node
}

// configuration is the circuit seen with a fixed set of switch states. In dc
// configurations components implementing device.DCModel use their DC branches.
type configuration struct {
	key    string
	dc     bool
	states []bool
	graph  *graph.Graph
	stack  *mna.Stack
	merged []*graph.MergedNode
}

type Circuit struct {
	Name string

	mu         sync.Mutex
	graph      *graph.Graph
	components []device.Component
	edges      map[device.Component][]graph.Edge
	opts       solver.Options

	configs map[string]*configuration
	last    *configuration
}

func New(name string) *Circuit {
	return &Circuit{
		Name:    name,
		graph:   graph.New(),
		edges:   make(map[device.Component][]graph.Edge),
		opts:    solver.DefaultOptions(),
		configs: make(map[string]*configuration),
	}
}

// SetOptions replaces the Newton solver options used by Simulate.
func (c *Circuit) SetOptions(opts solver.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// Add connects comp between terminals. See each component for the terminal order.
func (c *Circuit) Add(comp device.Component, terminals ...graph.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.edges[comp]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, comp.GetName())
	}

	edges, err := comp.Connect(terminals...)
	if err != nil {
		return fmt.Errorf("connecting %s: %w", comp.GetName(), err)
	}
	for k, e := range edges {
		if err := c.graph.AddEdge(e.Source, e.Target, e.Branch); err != nil {
			for _, added := range edges[:k] {
				_ = c.graph.RemoveEdge(added.Branch)
			}
			return fmt.Errorf("connecting %s: %w", comp.GetName(), err)
		}
	}

	c.edges[comp] = edges
	c.components = append(c.components, comp)
	c.resetConfigurations()
	return nil
}

func (c *Circuit) Remove(comp device.Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	edges, ok := c.edges[comp]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, comp.GetName())
	}
	for _, e := range edges {
		if err := c.graph.RemoveEdge(e.Branch); err != nil {
			return err
		}
	}
	delete(c.edges, comp)
	for i, other := range c.components {
		if other == comp {
			c.components = append(c.components[:i:i], c.components[i+1:]...)
			break
		}
	}
	c.resetConfigurations()
	return nil
}

func (c *Circuit) Components() []device.Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]device.Component(nil), c.components...)
}

// Component returns the component called name.
func (c *Circuit) Component(name string) (device.Component, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, comp := range c.components {
		if comp.GetName() == name {
			return comp, true
		}
	}
	return nil, false
}

// Graph returns a copy of the circuit graph.
func (c *Circuit) Graph() *graph.Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Copy()
}

// Nodes returns the circuit nodes in insertion order.
func (c *Circuit) Nodes() []graph.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Nodes()
}

// Equations returns the equation stack of the switch configuration at time t.
func (c *Circuit) Equations(t float64, preferredGround ...graph.Node) (*mna.Stack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, err := c.configurationAt(t, preferredGround, false)
	if err != nil {
		return nil, err
	}
	return cfg.stack, nil
}

// OperatingPointEquations is Equations with capacitors open and inductors
// shorted.
func (c *Circuit) OperatingPointEquations(t float64, preferredGround ...graph.Node) (*mna.Stack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, err := c.configurationAt(t, preferredGround, true)
	if err != nil {
		return nil, err
	}
	return cfg.stack, nil
}

// activeBranches returns the branches comp contributes to a configuration.
func activeBranches(comp device.Component, dc bool) []branch.Branch {
	if m, ok := comp.(device.DCModel); ok && dc {
		return m.DCBranches()
	}
	return comp.Branches()
}

func (c *Circuit) resetConfigurations() {
	c.configs = make(map[string]*configuration)
	c.last = nil
}

// switches lists the switch branches in component order.
func (c *Circuit) switches() []switchEdge {
	var out []switchEdge
	for _, comp := range c.components {
		for _, e := range c.edges[comp] {
			if e.Branch.Kind() == branch.KindSwitch {
				out = append(out, switchEdge{branch: e.Branch.(branch.SwitchBranch), source: e.Source, target: e.Target})
			}
		}
	}
	return out
}

// configurationAt returns the equations valid at time t.
func (c *Circuit) configurationAt(t float64, preferred []graph.Node, dc bool) (*configuration, error) {
	switches := c.switches()
	states := make([]bool, len(switches))
	var key strings.Builder
	if dc {
		key.WriteString("dc:")
	}
	for k, sw := range switches {
		states[k] = sw.branch.SwitchState(t)
		if states[k] {
			key.WriteByte('1')
		} else {
			key.WriteByte('0')
		}
	}

	if cfg, ok := c.configs[key.String()]; ok {
		c.last = cfg
		return cfg, nil
	}

	cfg := &configuration{key: key.String(), dc: dc, states: states}
	cfg.graph, cfg.merged = c.configuredGraph(switches, states, dc)

	var couplings [][]branch.Branch
	for _, comp := range c.components {
		var group []branch.Branch
		for _, b := range activeBranches(comp, dc) {
			if b.Kind() != branch.KindSwitch {
				group = append(group, b)
			}
		}
		if len(group) > 0 {
			couplings = append(couplings, group)
		}
	}

	refs := append([]graph.Node(nil), preferred...)
	if c.last != nil {
		refs = append(refs, c.last.stack.ReferenceNodes()...)
	}

	stack, err := mna.New(cfg.graph, couplings, mergedReferences(refs, cfg.merged)...)
	if err != nil {
		return nil, fmt.Errorf("building equations for switch configuration %q: %w", cfg.key, err)
	}
	cfg.stack = stack

	if len(c.configs) >= maxConfigurations {
		c.configs = make(map[string]*configuration)
	}
	c.configs[cfg.key] = cfg
	c.last = cfg
	return cfg, nil
}

// configuredGraph removes all switches and merges the nodes joined by
// switches that are on. With dc set, DC branches replace the regular ones.
func (c *Circuit) configuredGraph(switches []switchEdge, states []bool, dc bool) (*graph.Graph, []*graph.MergedNode) {
	g := c.graph.Copy()
	if dc {
		for _, comp := range c.components {
			if _, ok := comp.(device.DCModel); !ok {
				continue
			}
			swap := branchMap(comp, true)
			for _, e := range c.edges[comp] {
				_ = g.RemoveEdge(e.Branch)
				_ = g.AddEdge(e.Source, e.Target, swap[e.Branch])
			}
		}
	}

	pos := make(map[graph.Node]int)
	for i, n := range c.graph.Nodes() {
		pos[n] = i
	}

	joined := simple.NewUndirectedGraph()
	byID := make(map[int64]graph.Node)
	node := func(n graph.Node) gonumgraph.Node {
		id := int64(pos[n])
		if joined.Node(id) == nil {
			joined.AddNode(simple.Node(id))
			byID[id] = n
		}
		return joined.Node(id)
	}

	for k, sw := range switches {
		if states[k] && sw.source != sw.target {
			joined.SetEdge(joined.NewEdge(node(sw.source), node(sw.target)))
		}
		_ = g.RemoveEdge(sw.branch)
	}

	var merged []*graph.MergedNode
	for _, comp := range topo.ConnectedComponents(joined) {
		ids := make([]int, len(comp))
		for i, n := range comp {
			ids[i] = int(n.ID())
		}
		sort.Ints(ids)
		m := &graph.MergedNode{Nodes: make([]graph.Node, len(ids))}
		for i, id := range ids {
			m.Nodes[i] = byID[int64(id)]
		}
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool { return pos[merged[i].Nodes[0]] < pos[merged[j].Nodes[0]] })

	for _, m := range merged {
		g.MergeNodes(m.Nodes, m)
	}
	return g, merged
}

// branchMap maps every branch of comp to the branch that stands for it in a
// configuration.
func branchMap(comp device.Component, dc bool) map[branch.Branch]branch.Branch {
	orig, active := comp.Branches(), activeBranches(comp, dc)
	m := make(map[branch.Branch]branch.Branch, len(orig))
	for k, b := range orig {
		m[b] = active[k]
	}
	return m
}

// mergedReferences replaces references swallowed by a merged node with that
// merged node.
func mergedReferences(refs []graph.Node, merged []*graph.MergedNode) []graph.Node {
	owner := make(map[graph.Node]*graph.MergedNode)
	for _, m := range merged {
		for _, n := range m.Nodes {
			owner[n] = m
		}
	}
	out := make([]graph.Node, 0, len(refs))
	for _, r := range refs {
		if m, ok := owner[r]; ok {
			out = append(out, m)
		} else {
			out = append(out, r)
		}
	}
	return out
}
