package circuit

import (
	"context"
	"fmt"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/graph"
	"github.com/edp1096/toy-mna/pkg/solver"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Simulate solves the circuit at steps evenly spaced points from ts1 to ts2,
// both included. The run happens in the background; use the returned
// Simulation to follow, wait for or cancel it. Component states carry over
// between runs. Nodes in preferredGround are used as reference nodes where
// possible.
func (c *Circuit) Simulate(ctx context.Context, ts1, ts2 float64, steps int, preferredGround ...graph.Node) (*Simulation, error) {
	if steps < 1 {
		return nil, ErrInvalidSteps
	}

	ctx, cancel := context.WithCancel(ctx)
	sim := newSimulation(ts1, ts2, cancel)

	go func() {
		defer cancel()
		sim.finish(c.run(ctx, sim, linspace(ts1, ts2, steps), preferredGround, false))
	}()

	return sim, nil
}

// OperatingPoint solves the DC operating point at time t in the background.
// Capacitors are open and inductors shorted. Component states are recorded
// but not committed, so a later Simulate starts from the same history.
func (c *Circuit) OperatingPoint(ctx context.Context, t float64, preferredGround ...graph.Node) (*Simulation, error) {
	ctx, cancel := context.WithCancel(ctx)
	sim := newSimulation(t, t, cancel)

	go func() {
		defer cancel()
		sim.finish(c.run(ctx, sim, []float64{t}, preferredGround, true))
	}()

	return sim, nil
}

func linspace(start, stop float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	ts := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range ts {
		ts[i] = start + float64(i)*step
	}
	ts[n-1] = stop
	return ts
}

func (c *Circuit) run(ctx context.Context, sim *Simulation, ts []float64, preferred []graph.Node, dc bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"circuit": c.Name, "run": sim.ID, "dc": dc})
	log.Infof("simulating %d steps from %g to %g", len(ts), ts[0], ts[len(ts)-1])

	t1 := ts[0]
	cfg1, err := c.configurationAt(t1, preferred, dc)
	if err != nil {
		return err
	}
	x1, err := c.solve(log, cfg1, cfg1, make([]float64, cfg1.stack.Len()), t1, t1)
	if err != nil {
		return fmt.Errorf("solving at t=%g: %w", t1, err)
	}
	if err := c.store(sim, cfg1, x1, t1, t1); err != nil {
		return err
	}

	for _, t2 := range ts[1:] {
		select {
		case <-ctx.Done():
			log.Infof("cancelled at t=%g", t1)
			return ctx.Err()
		default:
		}
		if t2 == t1 {
			continue
		}

		cfg2, err := c.configurationAt(t2, preferred, dc)
		if err != nil {
			return err
		}
		x2, err := c.solve(log, cfg1, cfg2, x1, t1, t2)
		if err != nil {
			return fmt.Errorf("solving at t=%g: %w", t2, err)
		}
		if err := c.store(sim, cfg2, x2, t1, t2); err != nil {
			return err
		}

		t1, cfg1, x1 = t2, cfg2, x2
	}

	log.Infof("finished at t=%g", t1)
	return nil
}

// solve finds the solution of cfg2 at t2, starting from the solution x0 of cfg1.
func (c *Circuit) solve(log *logrus.Entry, cfg1, cfg2 *configuration, x0 []float64, t1, t2 float64) ([]float64, error) {
	if cfg1 != cfg2 {
		x0 = carryOver(cfg1, cfg2, x0)
		log.Debugf("switch configuration %q -> %q at t=%g", cfg1.key, cfg2.key, t2)
	}

	eq := cfg2.stack
	f := solver.Func(eq.Lambdify())
	jac := solver.JacobianFunc(eq.LambdifyJacobian())

	res, err := solver.Newton(f, jac, x0, t1, t2, c.opts)
	if err != nil {
		log.Warnf("newton failed at t=%g (%v), retrying with gmin stepping", t2, err)
		res, err = solver.GminStepping(f, jac, x0, t1, t2, len(eq.Nodes()), c.opts)
		if err != nil {
			return nil, err
		}
	}
	log.Debugf("t=%g solved in %d iterations (residual %g)", t2, res.Iterations, res.Residual)
	return res.X, nil
}

// carryOver maps a solution of cfg1 onto the unknowns of cfg2. Merged nodes
// are split into or built from their member nodes.
func carryOver(cfg1, cfg2 *configuration, x []float64) []float64 {
	v, i := cfg1.stack.DisassembleVector(x)
	for n, pot := range v {
		if m, ok := n.(*graph.MergedNode); ok {
			for _, member := range m.Nodes {
				v[member] = pot
			}
		}
	}
	for _, m := range cfg2.merged {
		if pot, ok := v[m.Nodes[0]]; ok {
			v[m] = pot
		}
	}
	return cfg2.stack.AssembleVector(v, i, 0)
}

// coupledVector collects the coupled quantities of comp from solution x.
func coupledVector(comp device.Component, cfg *configuration, x []float64) []float64 {
	var vec []float64
	for _, b := range activeBranches(comp, cfg.dc) {
		switch b.Kind() {
		case branch.KindCurrent:
			vec = append(vec, cfg.stack.Voltage(x, b.(branch.CurrentBranch)))
		case branch.KindVoltage:
			vec = append(vec, cfg.stack.Current(x, b.(branch.VoltageBranch)))
		}
	}
	return vec
}

// store records the solution of step t1 -> t2 and, outside dc configurations,
// commits component states. Results are keyed by the regular branches.
func (c *Circuit) store(sim *Simulation, cfg *configuration, x []float64, t1, t2 float64) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	sim.ts = append(sim.ts, t2)

	for n, v := range cfg.stack.NodeVoltages(x) {
		if m, ok := n.(*graph.MergedNode); ok {
			for _, member := range m.Nodes {
				sim.nodePotentials[member] = append(sim.nodePotentials[member], v)
			}
			continue
		}
		sim.nodePotentials[n] = append(sim.nodePotentials[n], v)
	}

	switches := c.switches()
	for k, sw := range switches {
		sim.switchStates[sw.branch] = append(sim.switchStates[sw.branch], cfg.states[k])
	}

	last := func(n graph.Node) float64 {
		p := sim.nodePotentials[n]
		return p[len(p)-1]
	}

	switchOn := make(map[branch.Branch]bool, len(switches))
	for k, sw := range switches {
		switchOn[sw.branch] = cfg.states[k]
	}

	for _, comp := range c.components {
		coupled := coupledVector(comp, cfg, x)
		active := branchMap(comp, cfg.dc)

		for _, e := range c.edges[comp] {
			var v, i float64
			switch ab := active[e.Branch]; ab.Kind() {
			case branch.KindCurrent:
				b := ab.(branch.CurrentBranch)
				v = cfg.stack.Voltage(x, b)
				i = b.Current(coupled, t1, t2)
			case branch.KindVoltage:
				b := ab.(branch.VoltageBranch)
				i = cfg.stack.Current(x, b)
				v = b.Voltage(coupled, t1, t2)
			case branch.KindSwitch:
				if switchOn[e.Branch] && e.Source != e.Target {
					// Stored with the merged node currents below.
					continue
				}
				v = last(e.Target) - last(e.Source)
			}
			sim.branchVoltages[e.Branch] = append(sim.branchVoltages[e.Branch], v)
			sim.branchCurrents[e.Branch] = append(sim.branchCurrents[e.Branch], i)
		}

		if !cfg.dc {
			comp.Update(coupled, t1, t2)
		}
		sim.componentStates[comp] = append(sim.componentStates[comp], comp.State())
	}

	for _, m := range cfg.merged {
		if err := c.storeSwitchCurrents(sim, m, switches, cfg.states); err != nil {
			return fmt.Errorf("switch currents at t=%g: %w", t2, err)
		}
	}
	return nil
}

// storeSwitchCurrents solves Kirchhoff's current law inside a merged node for
// the currents of the on switches forming it.
func (c *Circuit) storeSwitchCurrents(sim *Simulation, m *graph.MergedNode, switches []switchEdge, states []bool) error {
	member := make(map[graph.Node]bool, len(m.Nodes))
	for _, n := range m.Nodes {
		member[n] = true
	}
	var on []switchEdge
	inside := make(map[branch.Branch]bool)
	for k, sw := range switches {
		if states[k] && sw.source != sw.target && member[sw.source] {
			on = append(on, sw)
			inside[sw.branch] = true
		}
	}

	rows := m.Nodes[:len(m.Nodes)-1]
	a := mat.NewDense(len(rows), len(on), nil)
	rhs := mat.NewDense(len(rows), 1, nil)
	for r, n := range rows {
		for col, sw := range on {
			if sw.target == n {
				a.Set(r, col, a.At(r, col)+1)
			}
			if sw.source == n {
				a.Set(r, col, a.At(r, col)-1)
			}
		}
		// Outgoing minus incoming current of all other branches.
		sum := 0.0
		for _, e := range c.graph.OutEdges(n) {
			if !inside[e.Branch] {
				sum += lastCurrent(sim, e.Branch)
			}
		}
		for _, e := range c.graph.InEdges(n) {
			if !inside[e.Branch] {
				sum -= lastCurrent(sim, e.Branch)
			}
		}
		rhs.Set(r, 0, sum)
	}

	var sol mat.Dense
	if err := sol.Solve(a, rhs); err != nil {
		return err
	}
	for col, sw := range on {
		sim.branchVoltages[sw.branch] = append(sim.branchVoltages[sw.branch], 0)
		sim.branchCurrents[sw.branch] = append(sim.branchCurrents[sw.branch], sol.At(col, 0))
	}
	return nil
}

func lastCurrent(sim *Simulation, b branch.Branch) float64 {
	cur := sim.branchCurrents[b]
	if len(cur) == 0 {
		return 0
	}
	return cur[len(cur)-1]
}
