package solver

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const numGminSteps = 10

// gminSchedule returns the shunt conductances tried in order: rows*1e-3 scaled
// up by 10^numGminSteps, divided by 10 each step, then 0.
func gminSchedule(rows int) []float64 {
	g := float64(rows) * 0.001 * math.Pow(10, numGminSteps)
	schedule := make([]float64, 0, numGminSteps+2)
	for i := 0; i <= numGminSteps; i++ {
		schedule = append(schedule, g)
		g /= 10
	}
	return append(schedule, 0)
}

// GminStepping solves f(x) + g*x = 0 on the first rows equations for a
// decreasing g, warm starting each step, and finishes with g = 0.
func GminStepping(f Func, jac JacobianFunc, x0 []float64, t1, t2 float64, rows int, opts Options) (Result, error) {
	x := append([]float64(nil), x0...)
	total := 0

	for step, g := range gminSchedule(rows) {
		gf, gj := shunted(f, jac, rows, g)

		res, err := Newton(gf, gj, x, t1, t2, opts)
		total += res.Iterations
		if err != nil {
			return Result{X: x, Iterations: total, Residual: res.Residual},
				fmt.Errorf("gmin step %d (gmin=%g): %w", step, g, err)
		}
		logrus.Debugf("gmin step %d converged (gmin=%g, %d iterations)", step, g, res.Iterations)

		x = res.X
	}

	return Result{X: x, Iterations: total, Residual: floats.Norm(f(x, t1, t2), math.Inf(1))}, nil
}

func shunted(f Func, jac JacobianFunc, rows int, g float64) (Func, JacobianFunc) {
	if g == 0 {
		return f, jac
	}
	gf := func(x []float64, t1, t2 float64) []float64 {
		out := f(x, t1, t2)
		for i := 0; i < rows && i < len(out); i++ {
			out[i] += g * x[i]
		}
		return out
	}
	gj := func(x []float64, t1, t2 float64) *mat.Dense {
		j := jac(x, t1, t2)
		r, _ := j.Dims()
		for i := 0; i < rows && i < r; i++ {
			j.Set(i, i, j.At(i, i)+g)
		}
		return j
	}
	return gf, gj
}
