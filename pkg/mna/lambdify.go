package mna

import (
	"github.com/edp1096/toy-mna/pkg/branch"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// EvalFunc computes the residual vector of a compiled stack.
type EvalFunc func(x []float64, t1, t2 float64) []float64

// JacobianFunc computes the jacobian of a compiled stack.
type JacobianFunc func(x []float64, t1, t2 float64) *mat.Dense

// operand reads x[plus] - x[minus]. A negative index reads as zero.
type operand struct {
	plus, minus int
}

func (o operand) value(x []float64) float64 {
	v := 0.0
	if o.plus >= 0 {
		v += x[o.plus]
	}
	if o.minus >= 0 {
		v -= x[o.minus]
	}
	return v
}

type group []operand

func (g group) vector(x []float64) []float64 {
	vec := make([]float64, len(g))
	for i, o := range g {
		vec[i] = o.value(x)
	}
	return vec
}

func (s *Stack) compileGroup(coupled []branch.Branch) group {
	g := make(group, len(coupled))
	for i, b := range coupled {
		switch b.Kind() {
		case branch.KindVoltage:
			g[i] = operand{plus: s.currentColumn(b), minus: -1}
		case branch.KindCurrent:
			source, target, ok := s.graph.NodesOf(b)
			if !ok {
				logrus.Panicf("mna: branch %v is not part of the graph", b)
			}
			g[i] = operand{plus: s.nodeColumn(target), minus: s.nodeColumn(source)}
		default:
			logrus.Panicf("mna: unexpected %v branch %v in coupling group", b.Kind(), b)
		}
	}
	return g
}

// compiledTerm is either a current branch term or, when current is nil, a
// direct read of column col.
type compiledTerm struct {
	sign    float64
	current branch.CurrentBranch
	group   group
	col     int
}

type compiledConsecutive struct {
	voltage        branch.VoltageBranch
	group          group
	source, target operand
}

// Lambdify returns an evaluator equivalent to Evaluate that resolves all
// indices once. It is built on first use and cached.
func (s *Stack) Lambdify() EvalFunc {
	s.evalOnce.Do(func() {
		s.eval = s.compileEval()
	})
	return s.eval
}

func (s *Stack) compileEval() EvalFunc {
	rows := make([][]compiledTerm, len(s.kirchhoff))
	for r, eq := range s.kirchhoff {
		for _, term := range eq.Terms {
			switch t := term.(type) {
			case KirchhoffTerm:
				rows[r] = append(rows[r], compiledTerm{
					sign:    sign(t.Negative),
					current: t.Branch,
					group:   s.compileGroup(t.Coupled),
				})
			case KirchhoffBranchConsecutiveTerm:
				rows[r] = append(rows[r], compiledTerm{
					sign: sign(t.Negative),
					col:  s.currentColumn(t.Branch),
				})
			default:
				logrus.Panicf("mna: invalid term type %T", term)
			}
		}
	}

	consecutive := make([]compiledConsecutive, len(s.consecutive))
	for k, eq := range s.consecutive {
		consecutive[k] = compiledConsecutive{
			voltage: eq.Branch,
			group:   s.compileGroup(eq.Coupled),
			source:  operand{plus: s.nodeColumn(eq.Source), minus: -1},
			target:  operand{plus: s.nodeColumn(eq.Target), minus: -1},
		}
	}

	n := s.Len()
	return func(x []float64, t1, t2 float64) []float64 {
		out := make([]float64, n)
		for r, terms := range rows {
			sum := 0.0
			for _, t := range terms {
				if t.current != nil {
					sum += t.sign * t.current.Current(t.group.vector(x), t1, t2)
				} else {
					sum += t.sign * x[t.col]
				}
			}
			out[r] = sum
		}
		base := len(rows)
		for k, c := range consecutive {
			out[base+k] = c.voltage.Voltage(c.group.vector(x), t1, t2) + c.source.value(x) - c.target.value(x)
		}
		return out
	}
}

// jacobianJob evaluates the group jacobian of one branch.
type jacobianJob struct {
	current branch.CurrentBranch
	voltage branch.VoltageBranch
	group   group
}

func (j jacobianJob) run(x []float64, t1, t2 float64) []float64 {
	if j.current != nil {
		return j.current.Jacobian(j.group.vector(x), t1, t2)
	}
	return j.voltage.Jacobian(j.group.vector(x), t1, t2)
}

// contribution adds scale*jacs[job][entry] to data[pos].
type contribution struct {
	pos   int
	job   int
	entry int
	scale float64
}

type constant struct {
	pos   int
	value float64
}

// LambdifyJacobian returns a jacobian evaluator equivalent to Jacobian. Every
// branch jacobian is computed once per call even when the branch appears in
// several equations. It is built on first use and cached.
func (s *Stack) LambdifyJacobian() JacobianFunc {
	s.jacOnce.Do(func() {
		s.jac = s.compileJacobian()
	})
	return s.jac
}

func (s *Stack) compileJacobian() JacobianFunc {
	n := s.Len()
	if n == 0 {
		return func(x []float64, t1, t2 float64) *mat.Dense { return new(mat.Dense) }
	}

	var (
		jobs     []jacobianJob
		jobIndex = make(map[branch.Branch]int)
		contribs []contribution
		consts   []constant
	)
	job := func(b branch.Branch, coupled []branch.Branch) int {
		if k, ok := jobIndex[b]; ok {
			return k
		}
		j := jacobianJob{group: s.compileGroup(coupled)}
		switch b.Kind() {
		case branch.KindCurrent:
			j.current = b.(branch.CurrentBranch)
		case branch.KindVoltage:
			j.voltage = b.(branch.VoltageBranch)
		}
		jobs = append(jobs, j)
		jobIndex[b] = len(jobs) - 1
		return len(jobs) - 1
	}
	spread := func(row, k int, scale float64) {
		for entry, o := range jobs[k].group {
			if o.plus >= 0 {
				contribs = append(contribs, contribution{pos: row*n + o.plus, job: k, entry: entry, scale: scale})
			}
			if o.minus >= 0 {
				contribs = append(contribs, contribution{pos: row*n + o.minus, job: k, entry: entry, scale: -scale})
			}
		}
	}

	for r, eq := range s.kirchhoff {
		for _, term := range eq.Terms {
			switch t := term.(type) {
			case KirchhoffTerm:
				spread(r, job(t.Branch, t.Coupled), sign(t.Negative))
			case KirchhoffBranchConsecutiveTerm:
				consts = append(consts, constant{pos: r*n + s.currentColumn(t.Branch), value: sign(t.Negative)})
			default:
				logrus.Panicf("mna: invalid term type %T", term)
			}
		}
	}
	for k, eq := range s.consecutive {
		r := len(s.kirchhoff) + k
		spread(r, job(eq.Branch, eq.Coupled), 1)
		if c := s.nodeColumn(eq.Source); c >= 0 {
			consts = append(consts, constant{pos: r*n + c, value: 1})
		}
		if c := s.nodeColumn(eq.Target); c >= 0 {
			consts = append(consts, constant{pos: r*n + c, value: -1})
		}
	}

	return func(x []float64, t1, t2 float64) *mat.Dense {
		jacs := make([][]float64, len(jobs))
		for k, j := range jobs {
			jacs[k] = j.run(x, t1, t2)
		}
		data := make([]float64, n*n)
		for _, c := range consts {
			data[c.pos] += c.value
		}
		for _, c := range contribs {
			data[c.pos] += c.scale * jacs[c.job][c.entry]
		}
		return mat.NewDense(n, n, data)
	}
}
