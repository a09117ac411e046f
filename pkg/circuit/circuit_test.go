package circuit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustResistor(t *testing.T, name string, value float64) *device.Resistor {
	t.Helper()
	r, err := device.NewResistor(name, value)
	require.NoError(t, err)
	return r
}

func run(t *testing.T, c *Circuit, ts1, ts2 float64, steps int) *Simulation {
	t.Helper()
	sim, err := c.Simulate(context.Background(), ts1, ts2, steps, "0")
	require.NoError(t, err)
	require.NoError(t, sim.Wait())
	return sim
}

func TestDividerOperatingPoint(t *testing.T) {
	c := New("divider")
	vs := device.NewDCVoltageSource("Vs", 10)
	require.NoError(t, c.Add(vs, "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 1e3), "in", "mid"))
	require.NoError(t, c.Add(mustResistor(t, "R2", 1e3), "mid", "0"))

	sim := run(t, c, 0, 0, 1)
	assert.Equal(t, []float64{0}, sim.Times())
	assert.InDelta(t, 10.0, sim.NodePotential("in")[0], 1e-9)
	assert.InDelta(t, 5.0, sim.NodePotential("mid")[0], 1e-9)
	assert.Equal(t, []float64{0}, sim.NodePotential("0"))
	assert.InDelta(t, -5e-3, sim.BranchCurrent(vs.Branches()[0])[0], 1e-12)
	assert.InDelta(t, 10.0, sim.BranchVoltage(vs.Branches()[0])[0], 1e-12)
	assert.Equal(t, 1.0, sim.Progress())
	assert.NotEmpty(t, sim.ID)
}

func TestRCCharging(t *testing.T) {
	c := New("rc")
	capacitor, err := device.NewCapacitor("C1", 1e-6)
	require.NoError(t, err)
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 1e3), "in", "out"))
	require.NoError(t, c.Add(capacitor, "out", "0"))

	sim := run(t, c, 0, 5e-3, 101)
	ts := sim.Times()
	vout := sim.NodePotential("out")
	require.Len(t, vout, 101)
	for k := 0; k < len(ts); k += 10 {
		assert.InDelta(t, 1-math.Exp(-ts[k]/1e-3), vout[k], 2e-3, "t=%g", ts[k])
	}

	states := sim.ComponentStates(capacitor)
	require.Len(t, states, 101)
	assert.InDelta(t, vout[100], states[100][0], 1e-9)
}

func TestRLCurrentRise(t *testing.T) {
	c := New("rl")
	l, err := device.NewInductor("L1", 1e-3)
	require.NoError(t, err)
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 10), "in", "mid"))
	require.NoError(t, c.Add(l, "mid", "0"))

	sim := run(t, c, 0, 5e-4, 101)
	ts := sim.Times()
	il := sim.BranchCurrent(l.Branches()[0])
	for k := 0; k < len(ts); k += 20 {
		assert.InDelta(t, 0.1*(1-math.Exp(-ts[k]*1e4)), il[k], 2e-4, "t=%g", ts[k])
	}
}

func TestSwitchClosing(t *testing.T) {
	c := New("switched")
	sw := device.NewSwitch("S1", false, 1e-3)
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 10), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 1e3), "in", "a"))
	require.NoError(t, c.Add(sw, "a", "b"))
	require.NoError(t, c.Add(mustResistor(t, "R2", 1e3), "b", "0"))

	sim := run(t, c, 0, 2e-3, 5)
	b := sw.Branches()[0]
	assert.Equal(t, []bool{false, false, true, true, true}, sim.SwitchStates(b))
	assert.InDeltaSlice(t, []float64{0, 0, 5, 5, 5}, sim.NodePotential("b"), 1e-9)
	assert.InDeltaSlice(t, []float64{10, 10, 5, 5, 5}, sim.NodePotential("a"), 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0, 5e-3, 5e-3, 5e-3}, sim.BranchCurrent(b), 1e-12)
	assert.InDeltaSlice(t, []float64{10, 10, 0, 0, 0}, sim.BranchVoltage(b), 1e-9)
	assert.Len(t, c.configs, 2)
}

func TestShortedSourceNodesMerge(t *testing.T) {
	// Two switches in series both closed merge three nodes into one.
	c := New("chain")
	s1 := device.NewSwitch("S1", true)
	s2 := device.NewSwitch("S2", true)
	require.NoError(t, c.Add(device.NewDCCurrentSource("I1", 1e-3), "0", "a"))
	require.NoError(t, c.Add(s1, "a", "b"))
	require.NoError(t, c.Add(s2, "b", "c"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 1e3), "c", "0"))

	sim := run(t, c, 0, 0, 1)
	for _, n := range []graph.Node{"a", "b", "c"} {
		assert.InDelta(t, 1.0, sim.NodePotential(n)[0], 1e-9, "node %v", n)
	}
	assert.InDelta(t, 1e-3, sim.BranchCurrent(s1.Branches()[0])[0], 1e-12)
	assert.InDelta(t, 1e-3, sim.BranchCurrent(s2.Branches()[0])[0], 1e-12)
}

func TestCoupledInductorsInduceCurrent(t *testing.T) {
	c := New("transformer")
	l1, err := device.NewInductor("L1", 1e-3)
	require.NoError(t, err)
	l2, err := device.NewInductor("L2", 1e-3)
	require.NoError(t, err)
	k, err := device.NewCoupledPair("K1", l1, l2, 0.5)
	require.NoError(t, err)

	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 10), "in", "p1"))
	require.NoError(t, c.Add(k, "p1", "0", "p2", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R2", 10), "p2", "0"))

	sim := run(t, c, 0, 1e-4, 11)
	i1 := sim.BranchCurrent(k.Branches()[0])
	i2 := sim.BranchCurrent(k.Branches()[1])
	assert.Greater(t, i1[10], i1[1])
	assert.Less(t, i2[1], -1e-6)
}

func TestDiodeForwardBias(t *testing.T) {
	c := New("diode")
	d := device.NewDiode("D1")
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 5), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 1e3), "in", "a"))
	require.NoError(t, c.Add(d, "a", "0"))

	sim := run(t, c, 0, 0, 1)
	va := sim.NodePotential("a")[0]
	assert.Greater(t, va, 0.5)
	assert.Less(t, va, 0.8)
	assert.InDelta(t, (5-va)/1e3, sim.BranchCurrent(d.Branches()[0])[0], 1e-8)
}

func TestSimulateValidation(t *testing.T) {
	c := New("empty")
	_, err := c.Simulate(context.Background(), 0, 1, 0)
	assert.True(t, errors.Is(err, ErrInvalidSteps))
}

func TestSimulateCancelled(t *testing.T) {
	c := New("cancel")
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 1), "in", "0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim, err := c.Simulate(ctx, 0, 1, 1000)
	require.NoError(t, err)
	assert.True(t, errors.Is(sim.Wait(), context.Canceled))
	assert.Len(t, sim.Times(), 1)
	<-sim.Done()
}

func TestAddRemove(t *testing.T) {
	c := New("edit")
	r := mustResistor(t, "R1", 1)
	require.NoError(t, c.Add(r, "a", "b"))
	assert.True(t, errors.Is(c.Add(r, "a", "b"), ErrDuplicateComponent))

	assert.Error(t, c.Add(mustResistor(t, "R2", 1), "a"))

	got, ok := c.Component("R1")
	require.True(t, ok)
	assert.Equal(t, device.Component(r), got)

	require.NoError(t, c.Remove(r))
	assert.True(t, errors.Is(c.Remove(r), ErrUnknownComponent))
	assert.Empty(t, c.Components())
	assert.Empty(t, c.Graph().Edges())
	assert.Equal(t, []graph.Node{"b", "a"}, c.Nodes())
}

func TestEquationsFollowSwitches(t *testing.T) {
	c := New("switched")
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 1), "in", "a"))
	require.NoError(t, c.Add(device.NewSwitch("S1", false, 1), "a", "0"))

	open, err := c.Equations(0, "0")
	require.NoError(t, err)
	assert.Equal(t, []graph.Node{"0"}, open.ReferenceNodes())
	assert.Equal(t, []graph.Node{"in", "a"}, open.Nodes())
	assert.Equal(t, 3, open.Len())

	closed, err := c.Equations(2, "0")
	require.NoError(t, err)
	assert.Equal(t, 2, closed.Len())
	require.Len(t, closed.ReferenceNodes(), 1)
	merged, ok := closed.ReferenceNodes()[0].(*graph.MergedNode)
	require.True(t, ok)
	assert.ElementsMatch(t, []graph.Node{"0", "a"}, merged.Nodes)

	again, err := c.Equations(0, "0")
	require.NoError(t, err)
	assert.Same(t, open, again)
}

func operatingPoint(t *testing.T, c *Circuit) *Simulation {
	t.Helper()
	sim, err := c.OperatingPoint(context.Background(), 0, "0")
	require.NoError(t, err)
	require.NoError(t, sim.Wait())
	return sim
}

func TestOperatingPointKeepsHistory(t *testing.T) {
	c := New("rc")
	capacitor, err := device.NewCapacitor("C1", 1e-6)
	require.NoError(t, err)
	capacitor.SetInitialVoltage(3)
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 1e3), "in", "out"))
	require.NoError(t, c.Add(capacitor, "out", "0"))

	sim := operatingPoint(t, c)
	assert.Equal(t, []float64{0}, sim.Times())
	assert.InDelta(t, 1.0, sim.NodePotential("out")[0], 1e-6)
	assert.InDelta(t, 0.0, sim.BranchCurrent(capacitor.Branches()[0])[0], 1e-9)
	assert.Equal(t, []float64{3, 0}, capacitor.State())

	// The transient run still starts from the initial voltage.
	tran := run(t, c, 0, 0, 1)
	assert.InDelta(t, 3.0, tran.NodePotential("out")[0], 1e-9)
}

func TestOperatingPointShortsCoupledWindings(t *testing.T) {
	c := New("transformer")
	l1, err := device.NewInductor("L1", 1e-3)
	require.NoError(t, err)
	l2, err := device.NewInductor("L2", 1e-3)
	require.NoError(t, err)
	k, err := device.NewCoupledPair("K1", l1, l2, 0.5)
	require.NoError(t, err)

	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R1", 10), "in", "p1"))
	require.NoError(t, c.Add(k, "p1", "0", "p2", "0"))
	require.NoError(t, c.Add(mustResistor(t, "R2", 10), "p2", "0"))

	sim := operatingPoint(t, c)
	assert.InDelta(t, 0.0, sim.NodePotential("p1")[0], 1e-12)
	assert.InDelta(t, 0.1, sim.BranchCurrent(k.Branches()[0])[0], 1e-12)
	assert.InDelta(t, 0.0, sim.BranchCurrent(k.Branches()[1])[0], 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0}, k.State())
}

func TestOperatingPointEquations(t *testing.T) {
	c := New("rlc")
	capacitor, err := device.NewCapacitor("C1", 1e-6)
	require.NoError(t, err)
	inductor, err := device.NewInductor("L1", 1e-3)
	require.NoError(t, err)
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(inductor, "in", "out"))
	require.NoError(t, c.Add(capacitor, "out", "0"))

	// Free nodes in, out plus the currents of V1 and C1.
	tran, err := c.Equations(0, "0")
	require.NoError(t, err)
	assert.Equal(t, 4, tran.Len())

	// Free nodes in, out plus the currents of V1 and the shorted L1.
	dc, err := c.OperatingPointEquations(0, "0")
	require.NoError(t, err)
	assert.Equal(t, 4, dc.Len())
	assert.Equal(t, []string{"V1", "L1"}, currentNames(dc.Currents()))
	assert.Equal(t, []string{"V1", "C1"}, currentNames(tran.Currents()))
	assert.Len(t, c.configs, 2)
}

func currentNames(bs []branch.VoltageBranch) []string {
	names := make([]string, len(bs))
	for i, b := range bs {
		names[i] = fmt.Sprint(b)
	}
	return names
}
