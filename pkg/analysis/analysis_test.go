package analysis

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func divider(t *testing.T) (*circuit.Circuit, *device.VoltageSource) {
	t.Helper()
	c := circuit.New("divider")
	vs := device.NewDCVoltageSource("Vs", 10)
	r1, err := device.NewResistor("R1", 1e3)
	require.NoError(t, err)
	r2, err := device.NewResistor("R2", 1e3)
	require.NoError(t, err)
	require.NoError(t, c.Add(vs, "in", "0"))
	require.NoError(t, c.Add(r1, "in", "mid"))
	require.NoError(t, c.Add(r2, "mid", "0"))
	return c, vs
}

func TestOperatingPoint(t *testing.T) {
	c, _ := divider(t)
	op := NewOP()
	require.NoError(t, op.Setup(c))
	require.NoError(t, op.Execute(context.Background()))

	want := map[string][]float64{
		"V(in)":  {10},
		"V(mid)": {5},
		"I(Vs)":  {-5e-3},
		"I(R1)":  {5e-3},
		"I(R2)":  {5e-3},
	}
	if diff := cmp.Diff(want, op.GetResults(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("operating point mismatch (-want +got):\n%s", diff)
	}
}

func TestOperatingPointOpensCapacitors(t *testing.T) {
	c := circuit.New("rc")
	r, err := device.NewResistor("R1", 1e3)
	require.NoError(t, err)
	capacitor, err := device.NewCapacitor("C1", 1e-6)
	require.NoError(t, err)
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 10), "in", "0"))
	require.NoError(t, c.Add(r, "in", "n"))
	require.NoError(t, c.Add(capacitor, "n", "0"))

	op := NewOP()
	require.NoError(t, op.Setup(c))
	require.NoError(t, op.Execute(context.Background()))

	res := op.GetResults()
	assert.InDelta(t, 10.0, res["V(n)"][0], 1e-6)
	assert.InDelta(t, 0.0, res["I(R1)"][0], 1e-9)
	assert.InDelta(t, 0.0, res["I(C1)"][0], 1e-9)
	assert.Equal(t, []float64{0, 0}, capacitor.State())
}

func TestOperatingPointShortsInductors(t *testing.T) {
	c := circuit.New("rl")
	r, err := device.NewResistor("R1", 1e3)
	require.NoError(t, err)
	inductor, err := device.NewInductor("L1", 1e-3)
	require.NoError(t, err)
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 10), "in", "0"))
	require.NoError(t, c.Add(r, "in", "n"))
	require.NoError(t, c.Add(inductor, "n", "0"))

	op := NewOP()
	require.NoError(t, op.Setup(c))
	require.NoError(t, op.Execute(context.Background()))

	res := op.GetResults()
	assert.InDelta(t, 0.0, res["V(n)"][0], 1e-9)
	assert.InDelta(t, 10e-3, res["I(R1)"][0], 1e-12)
	assert.InDelta(t, 10e-3, res["I(L1)"][0], 1e-12)
	assert.Equal(t, []float64{0, 0}, inductor.State())
}

func TestDCSweepWithReactiveParts(t *testing.T) {
	c := circuit.New("rlc")
	vs := device.NewDCVoltageSource("V1", 0)
	r, err := device.NewResistor("R1", 1e3)
	require.NoError(t, err)
	inductor, err := device.NewInductor("L1", 1e-3)
	require.NoError(t, err)
	capacitor, err := device.NewCapacitor("C1", 1e-6)
	require.NoError(t, err)
	require.NoError(t, c.Add(vs, "in", "0"))
	require.NoError(t, c.Add(inductor, "in", "a"))
	require.NoError(t, c.Add(r, "a", "b"))
	require.NoError(t, c.Add(capacitor, "b", "0"))

	dc, err := NewDCSweep([]string{"V1"}, []float64{0}, []float64{4}, []float64{2})
	require.NoError(t, err)
	require.NoError(t, dc.Setup(c))
	require.NoError(t, dc.Execute(context.Background()))

	res := dc.GetResults()
	assert.InDeltaSlice(t, []float64{0, 2, 4}, res["V(a)"], 1e-9)
	assert.InDeltaSlice(t, []float64{0, 2, 4}, res["V(b)"], 1e-6)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, res["I(L1)"], 1e-9)
}

func TestTransientRC(t *testing.T) {
	c := circuit.New("rc")
	r, err := device.NewResistor("R1", 1e3)
	require.NoError(t, err)
	capacitor, err := device.NewCapacitor("C1", 1e-6)
	require.NoError(t, err)
	require.NoError(t, c.Add(device.NewDCVoltageSource("V1", 1), "in", "0"))
	require.NoError(t, c.Add(r, "in", "out"))
	require.NoError(t, c.Add(capacitor, "out", "0"))

	tr := NewTransient(1e-3, 5e-3, 5e-5)
	assert.Equal(t, 101, tr.Steps())
	require.NoError(t, tr.Setup(c))
	require.NoError(t, tr.Execute(context.Background()))

	res := tr.GetResults()
	times := res["TIME"]
	require.Len(t, times, 81)
	assert.InDelta(t, 1e-3, times[0], 1e-12)
	assert.InDelta(t, 5e-3, times[len(times)-1], 1e-12)
	require.Len(t, res["V(out)"], 81)
	for k, ts := range times {
		assert.InDelta(t, 1-math.Exp(-ts/1e-3), res["V(out)"][k], 2e-3)
	}
}

func TestTransientParameters(t *testing.T) {
	c, _ := divider(t)
	for _, tr := range []*Transient{
		NewTransient(0, 1e-3, 0),
		NewTransient(0, 0, 1e-6),
		NewTransient(2e-3, 1e-3, 1e-6),
		NewTransient(-1, 1e-3, 1e-6),
	} {
		assert.True(t, errors.Is(tr.Setup(c), ErrInvalidParameters))
	}
	assert.True(t, errors.Is(NewTransient(0, 1, 0.1).Setup(nil), ErrNoCircuit))
	assert.True(t, errors.Is(NewOP().Execute(context.Background()), ErrNoCircuit))
}

func TestExecuteCancelled(t *testing.T) {
	c, _ := divider(t)
	tr := NewTransient(0, 1, 1e-3)
	require.NoError(t, tr.Setup(c))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(tr.Execute(ctx), context.Canceled))
}

func TestStoreTimeResultSkipsRepeatedTime(t *testing.T) {
	a := NewBaseAnalysis()
	a.StoreTimeResult(2e-5, map[string]float64{"V(a)": 1})
	a.StoreTimeResult(2e-5, map[string]float64{"V(a)": 2})
	a.StoreTimeResult(1.9999999e-5, map[string]float64{"V(a)": 3})
	a.StoreTimeResult(3e-5, map[string]float64{"V(a)": 4})

	assert.Equal(t, []float64{2e-5, 3e-5}, a.GetResults()["TIME"])
	assert.Equal(t, []float64{1, 4}, a.GetResults()["V(a)"])
}

func TestDCSweep(t *testing.T) {
	c, vs := divider(t)
	dc, err := NewDCSweep([]string{"Vs"}, []float64{0}, []float64{10}, []float64{2.5})
	require.NoError(t, err)
	require.NoError(t, dc.Setup(c))
	require.NoError(t, dc.Execute(context.Background()))

	res := dc.GetResults()
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, res["SWEEP1"])
	assert.InDeltaSlice(t, []float64{0, 1.25, 2.5, 3.75, 5}, res["V(mid)"], 1e-9)
	assert.Equal(t, 10.0, vs.GetVoltage(0))
}

func TestDCSweepNested(t *testing.T) {
	c, _ := divider(t)
	require.NoError(t, c.Add(device.NewDCCurrentSource("I1", 0), "0", "mid"))

	dc, err := NewDCSweep([]string{"Vs", "I1"}, []float64{0, 0}, []float64{2, 1e-3}, []float64{2, 1e-3})
	require.NoError(t, err)
	require.NoError(t, dc.Setup(c))
	require.NoError(t, dc.Execute(context.Background()))

	res := dc.GetResults()
	assert.Equal(t, []float64{0, 0, 2, 2}, res["SWEEP1"])
	assert.Equal(t, []float64{0, 1e-3, 0, 1e-3}, res["SWEEP2"])
	// V(mid) = Vs/2 + I*R1||R2
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1.5}, res["V(mid)"], 1e-9)
}

func TestDCSweepErrors(t *testing.T) {
	_, err := NewDCSweep(nil, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidParameters))
	_, err = NewDCSweep([]string{"Vs"}, []float64{0}, []float64{1}, []float64{0})
	assert.True(t, errors.Is(err, ErrInvalidParameters))
	_, err = NewDCSweep([]string{"Vs"}, []float64{0, 1}, []float64{1}, []float64{1})
	assert.True(t, errors.Is(err, ErrInvalidParameters))

	c, _ := divider(t)
	dc, err := NewDCSweep([]string{"R1"}, []float64{0}, []float64{1}, []float64{1})
	require.NoError(t, err)
	assert.True(t, errors.Is(dc.Setup(c), ErrInvalidParameters))

	dc, err = NewDCSweep([]string{"Vx"}, []float64{0}, []float64{1}, []float64{1})
	require.NoError(t, err)
	assert.True(t, errors.Is(dc.Setup(c), ErrInvalidParameters))
}
