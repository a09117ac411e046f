package mna

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
	"github.com/edp1096/toy-mna/pkg/matrix"
	"github.com/edp1096/toy-mna/pkg/solver"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func solve(t *testing.T, s *Stack) []float64 {
	t.Helper()
	res, err := solver.Newton(
		solver.Func(s.Lambdify()),
		solver.JacobianFunc(s.LambdifyJacobian()),
		make([]float64, s.Len()), 0, 0,
		solver.Options{Linear: matrix.Dense{}},
	)
	require.NoError(t, err)
	return res.X
}

func TestResistorDivider(t *testing.T) {
	g := graph.New()
	vs := branch.ConstantVoltage("Vs", 10)
	r1 := branch.Conductance("R1", 1e-3)
	r2 := branch.Conductance("R2", 1e-3)
	require.NoError(t, g.AddEdge("gnd", "in", vs))
	require.NoError(t, g.AddEdge("in", "mid", r1))
	require.NoError(t, g.AddEdge("mid", "gnd", r2))

	s, err := New(g, nil, "gnd")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []graph.Node{"gnd"}, s.ReferenceNodes())

	x := solve(t, s)
	want := map[graph.Node]float64{"gnd": 0, "in": 10, "mid": 5}
	if diff := cmp.Diff(want, s.NodeVoltages(x), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("node voltages mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, -5e-3, s.Current(x, vs), 1e-12)
	assert.InDelta(t, -5.0, s.Voltage(x, r1), 1e-9)
	assert.InDelta(t, -5.0, s.Voltage(x, r2), 1e-9)
	assert.InDelta(t, 5.0, s.VoltageBetweenNodes(x, "gnd", "mid"), 1e-9)
}

func TestSingleSource(t *testing.T) {
	g := graph.New()
	vs := branch.ConstantVoltage("Vs", 3)
	r := branch.Conductance("R", 1.0/1500)
	require.NoError(t, g.AddEdge("gnd", "n", vs))
	require.NoError(t, g.AddEdge("n", "gnd", r))

	s, err := New(g, nil, "gnd")
	require.NoError(t, err)

	x := solve(t, s)
	assert.InDelta(t, 3.0, s.NodeVoltage(x, "n"), 1e-9)
	assert.InDelta(t, -3.0/1500, s.Current(x, vs), 1e-12)
	assert.Equal(t, 0.0, s.NodeVoltage(x, "gnd"))
}

// coupledPair returns two current branches sharing one coupling group. The
// current of each depends on the voltage across both.
func coupledPair() (*branch.CurrentFunc, *branch.CurrentFunc) {
	a := &branch.CurrentFunc{
		Name:       "A",
		CurrentFn:  func(v []float64, t1, t2 float64) float64 { return 0.1*v[0]*v[0]*v[0] + 0.5*v[1] },
		JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0.3 * v[0] * v[0], 0.5} },
	}
	b := &branch.CurrentFunc{
		Name:       "B",
		CurrentFn:  func(v []float64, t1, t2 float64) float64 { return v[1] + 0.2*math.Sin(v[0]) },
		JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0.2 * math.Cos(v[0]), 1} },
	}
	return a, b
}

type fixture struct {
	graph     *graph.Graph
	couplings [][]branch.Branch
	v1        *branch.VoltageFunc
	a, b      *branch.CurrentFunc
	c         *branch.VoltageFunc
	d         *branch.CurrentFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{graph: graph.New()}
	f.v1 = &branch.VoltageFunc{
		Name:       "V1",
		VoltageFn:  func(v []float64, t1, t2 float64) float64 { return 1 + t2 },
		JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0} },
	}
	f.a, f.b = coupledPair()
	f.c = &branch.VoltageFunc{
		Name:       "C",
		VoltageFn:  func(v []float64, t1, t2 float64) float64 { return 0.5*v[0] + 0.1*v[1] },
		JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0.5, 0.1} },
	}
	f.d = &branch.CurrentFunc{
		Name:       "D",
		CurrentFn:  func(v []float64, t1, t2 float64) float64 { return 2*v[1] + 0.01*v[0]*v[0] },
		JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0.02 * v[0], 2} },
	}

	edges := []graph.Edge{
		{Source: 0, Target: 1, Branch: f.v1},
		{Source: 1, Target: 2, Branch: f.a},
		{Source: 2, Target: 0, Branch: f.b},
		{Source: 2, Target: 3, Branch: f.c},
		{Source: 3, Target: 0, Branch: f.d},
		{Source: 3, Target: 3, Branch: branch.Conductance("loop", 7)},
		{Source: 4, Target: 5, Branch: branch.Conductance("E", 0.25)},
		{Source: 5, Target: 4, Branch: branch.ConstantCurrent("I", 1e-3)},
	}
	for _, e := range edges {
		require.NoError(t, f.graph.AddEdge(e.Source, e.Target, e.Branch))
	}
	f.couplings = [][]branch.Branch{{f.a, f.b}, {f.c, f.d}}
	return f
}

func randomVector(r *rand.Rand, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 2*r.Float64() - 1
	}
	return x
}

func TestLengthMatchesUnknowns(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.graph, f.couplings, 0)
	require.NoError(t, err)

	// 6 nodes, 2 references, 2 voltage branches.
	assert.Equal(t, 6, s.Len())
	assert.Len(t, s.Nodes(), 4)
	assert.Len(t, s.Currents(), 2)
	assert.Len(t, s.KirchhoffEquations(), 4)
	assert.Len(t, s.BranchConsecutiveEquations(), 2)
	assert.Equal(t, []graph.Node{0, 4}, s.ReferenceNodes())

	x := make([]float64, s.Len())
	assert.Len(t, s.Evaluate(x, 0, 0), s.Len())
	r, c := s.Jacobian(x, 0, 0).Dims()
	assert.Equal(t, s.Len(), r)
	assert.Equal(t, s.Len(), c)
}

func TestLambdifyMatchesEvaluate(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.graph, f.couplings, 0)
	require.NoError(t, err)

	eval := s.Lambdify()
	jac := s.LambdifyJacobian()
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		x := randomVector(r, s.Len())
		t1, t2 := r.Float64(), r.Float64()

		assert.InDeltaSlice(t, s.Evaluate(x, t1, t2), eval(x, t1, t2), 1e-9)
		assert.True(t, mat.EqualApprox(s.Jacobian(x, t1, t2), jac(x, t1, t2), 1e-9))
	}
}

func TestLambdifyIsCached(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.graph, f.couplings)
	require.NoError(t, err)

	s.Lambdify()
	s.LambdifyJacobian()

	// Later calls hand back the cached closures instead of compiling again.
	s.eval = func(x []float64, t1, t2 float64) []float64 { return []float64{42} }
	s.jac = func(x []float64, t1, t2 float64) *mat.Dense { return mat.NewDense(1, 1, []float64{42}) }
	assert.Equal(t, []float64{42}, s.Lambdify()(nil, 0, 0))
	assert.Equal(t, 42.0, s.LambdifyJacobian()(nil, 0, 0).At(0, 0))
}

func TestJacobianMatchesFiniteDifferences(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.graph, f.couplings, 0)
	require.NoError(t, err)

	const h = 1e-6
	x := randomVector(rand.New(rand.NewSource(2)), s.Len())
	j := s.Jacobian(x, 0, 0.5)
	n := s.Len()
	for col := 0; col < n; col++ {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[col] += h
		xm[col] -= h
		fp, fm := s.Evaluate(xp, 0, 0.5), s.Evaluate(xm, 0, 0.5)
		for row := 0; row < n; row++ {
			assert.InDelta(t, (fp[row]-fm[row])/(2*h), j.At(row, col), 1e-6, "d f%d / d x%d", row, col)
		}
	}
}

func TestBranchConsecutiveJacobianEntries(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.graph, f.couplings, 0)
	require.NoError(t, err)

	j := s.Jacobian(make([]float64, s.Len()), 0, 0)
	// V1: 0 -> 1 with 0 the reference, row 4 pins V(1).
	assert.Equal(t, -1.0, j.At(4, 0))
	// C: 2 -> 3, row 5: +V(2) - V(3) + 0.5*i_C + 0.1*(V(0) - V(3)).
	assert.InDelta(t, 1.0, j.At(5, 1), 1e-15)
	assert.InDelta(t, -1.1, j.At(5, 2), 1e-15)
	assert.InDelta(t, 0.5, j.At(5, 5), 1e-15)
}

func TestCoupledBranchesSeeEachOther(t *testing.T) {
	g := graph.New()
	a, b := coupledPair()
	require.NoError(t, g.AddEdge("gnd", "p", a))
	require.NoError(t, g.AddEdge("gnd", "q", b))

	s, err := New(g, [][]branch.Branch{{a, b}}, "gnd")
	require.NoError(t, err)

	x := []float64{0.3, 0}
	y := []float64{0.3, 0.4}
	// The current of A reacts to the voltage across B.
	assert.InDelta(t, 0.2, s.Evaluate(y, 0, 0)[0]-s.Evaluate(x, 0, 0)[0], 1e-12)
	assert.InDelta(t, 0.5, s.Jacobian(x, 0, 0).At(0, 1), 1e-15)
}

func TestSelfLoopContributesNothing(t *testing.T) {
	g := graph.New()
	loop := branch.Conductance("loop", 3)
	require.NoError(t, g.AddEdge("gnd", "n", branch.Conductance("R", 1)))
	require.NoError(t, g.AddEdge("n", "n", loop))

	s, err := New(g, nil, "gnd")
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Voltage([]float64{2}, loop))
	assert.InDelta(t, 2.0, s.Evaluate([]float64{2}, 0, 0)[0], 1e-15)
	assert.InDelta(t, 1.0, s.Jacobian([]float64{2}, 0, 0).At(0, 0), 1e-15)
}

func TestReferenceInvariance(t *testing.T) {
	build := func(ref graph.Node) (*Stack, []float64) {
		g := graph.New()
		require.NoError(t, g.AddEdge("a", "b", branch.ConstantVoltage("V", 2)))
		require.NoError(t, g.AddEdge("b", "c", branch.Conductance("R1", 0.5)))
		require.NoError(t, g.AddEdge("c", "a", branch.Conductance("R2", 0.25)))
		s, err := New(g, nil, ref)
		require.NoError(t, err)
		return s, solve(t, s)
	}

	sa, xa := build("a")
	sc, xc := build("c")
	assert.Equal(t, []graph.Node{"a"}, sa.ReferenceNodes())
	assert.Equal(t, []graph.Node{"c"}, sc.ReferenceNodes())
	for _, pair := range [][2]graph.Node{{"a", "b"}, {"b", "c"}, {"a", "c"}} {
		assert.InDelta(t, sa.VoltageBetweenNodes(xa, pair[0], pair[1]), sc.VoltageBetweenNodes(xc, pair[0], pair[1]), 1e-9)
	}
}

func TestAssembleDisassembleRoundTrip(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.graph, f.couplings, 0)
	require.NoError(t, err)

	x := randomVector(rand.New(rand.NewSource(3)), s.Len())
	v, i := s.DisassembleVector(x)
	assert.Equal(t, 0.0, v[0])
	assert.Equal(t, 0.0, v[4])
	assert.Len(t, i, 2)
	assert.Equal(t, x, s.AssembleVector(v, i, 0))
}

func TestAssembleVectorOffsetsReference(t *testing.T) {
	g := graph.New()
	vs := branch.ConstantVoltage("V", 1)
	require.NoError(t, g.AddEdge("gnd", "n", vs))
	require.NoError(t, g.AddEdge("n", "m", branch.Conductance("R", 1)))
	s, err := New(g, nil, "gnd")
	require.NoError(t, err)

	x := s.AssembleVector(map[graph.Node]float64{"gnd": 1, "n": 4}, nil, math.NaN())
	assert.Equal(t, 3.0, x[0])
	assert.True(t, math.IsNaN(x[1]))
	assert.True(t, math.IsNaN(x[2]))

	x = s.AssembleVector(nil, map[branch.Branch]float64{vs: 0.5, branch.ConstantVoltage("other", 0): 9}, 0)
	assert.Equal(t, []float64{0, 0, 0.5}, x)
}

func TestNewRejectsMalformedCouplings(t *testing.T) {
	g := graph.New()
	r1 := branch.Conductance("R1", 1)
	r2 := branch.Conductance("R2", 1)
	require.NoError(t, g.AddEdge(1, 2, r1))
	require.NoError(t, g.AddEdge(2, 3, r2))

	_, err := New(g, [][]branch.Branch{{r1, r2}, {r2}})
	assert.True(t, errors.Is(err, ErrDuplicateCoupling))

	_, err = New(g, [][]branch.Branch{{r1, branch.Conductance("R3", 1)}})
	assert.True(t, errors.Is(err, ErrUnknownBranch))

	sw := &branch.SwitchFunc{Name: "S", StateFn: func(float64) bool { return true }}
	require.NoError(t, g.AddEdge(1, 3, sw))
	_, err = New(g, nil)
	assert.True(t, errors.Is(err, ErrSwitchBranch))
}

func TestNodeVoltageUnknownNodePanics(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddEdge("gnd", "n", branch.Conductance("R", 1)))
	s, err := New(g, nil)
	require.NoError(t, err)

	// Without preferences the first inserted node is the reference.
	assert.Equal(t, []graph.Node{"gnd"}, s.ReferenceNodes())
	assert.Panics(t, func() { s.NodeVoltage([]float64{1}, "missing") })
	assert.Panics(t, func() { s.Current([]float64{1}, branch.ConstantVoltage("V", 1)) })
}

func TestEmptyGraph(t *testing.T) {
	s, err := New(graph.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Evaluate(nil, 0, 0))
	assert.Empty(t, s.Lambdify()(nil, 0, 0))
	r, _ := s.LambdifyJacobian()(nil, 0, 0).Dims()
	assert.Zero(t, r)
}

func TestDescribe(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.graph, f.couplings, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	s.Describe(&buf)
	out := buf.String()
	assert.Contains(t, out, "Circuit Equations (6x6)")
	assert.Contains(t, out, "+I(A)[A B]")
	assert.Contains(t, out, "x5 = I(V1)")
}
