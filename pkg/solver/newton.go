// Package solver finds roots of residual systems with Newton-Raphson.
package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/edp1096/toy-mna/pkg/matrix"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrNoConvergence = errors.New("solver: failed to converge")

type Func func(x []float64, t1, t2 float64) []float64

type JacobianFunc func(x []float64, t1, t2 float64) *mat.Dense

type Options struct {
	MaxIter int
	AbsTol  float64
	RelTol  float64
	ResTol  float64
	Linear  matrix.Solver
}

func DefaultOptions() Options {
	return Options{
		MaxIter: 100,
		AbsTol:  1e-12,
		RelTol:  1e-6,
		ResTol:  1e-9,
		Linear:  matrix.NewSparse(),
	}
}

type Result struct {
	X          []float64
	Iterations int
	Residual   float64
}

// ConvergenceError reports where Newton gave up.
type ConvergenceError struct {
	Iterations int
	Residual   float64
	Err        error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("%v after %d iterations (residual %g)", ErrNoConvergence, e.Iterations, e.Residual)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConvergenceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNoConvergence, e.Err}
	}
	return []error{ErrNoConvergence}
}

// Newton iterates x <- x - J(x)^-1 f(x) from x0 until both the step and the
// residual are small.
func Newton(f Func, jac JacobianFunc, x0 []float64, t1, t2 float64, opts Options) (Result, error) {
	opts = withDefaults(opts)
	x := append([]float64(nil), x0...)
	if len(x) == 0 {
		return Result{X: x}, nil
	}

	fx := f(x, t1, t2)
	residual := floats.Norm(fx, math.Inf(1))

	for iter := 1; iter <= opts.MaxIter; iter++ {
		rhs := make([]float64, len(fx))
		floats.ScaleTo(rhs, -1, fx)

		dx, err := opts.Linear.Solve(jac(x, t1, t2), rhs)
		if err != nil {
			return Result{X: x, Iterations: iter, Residual: residual},
				&ConvergenceError{Iterations: iter, Residual: residual, Err: err}
		}

		next := make([]float64, len(x))
		floats.AddTo(next, x, dx)
		if !allFinite(next) {
			return Result{X: x, Iterations: iter, Residual: residual},
				&ConvergenceError{Iterations: iter, Residual: residual, Err: errors.New("non-finite iterate")}
		}

		converged := stepConverged(x, next, opts)
		x = next
		fx = f(x, t1, t2)
		residual = floats.Norm(fx, math.Inf(1))

		logrus.Tracef("newton iteration %d: residual %g", iter, residual)

		if converged && residual <= opts.ResTol {
			return Result{X: x, Iterations: iter, Residual: residual}, nil
		}
	}

	return Result{X: x, Iterations: opts.MaxIter, Residual: residual},
		&ConvergenceError{Iterations: opts.MaxIter, Residual: residual}
}

func stepConverged(prev, next []float64, opts Options) bool {
	for i := range next {
		diff := math.Abs(next[i] - prev[i])
		tol := opts.RelTol*math.Max(math.Abs(next[i]), math.Abs(prev[i])) + opts.AbsTol
		if diff > tol {
			return false
		}
	}
	return true
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.MaxIter <= 0 {
		opts.MaxIter = def.MaxIter
	}
	if opts.AbsTol <= 0 {
		opts.AbsTol = def.AbsTol
	}
	if opts.RelTol <= 0 {
		opts.RelTol = def.RelTol
	}
	if opts.ResTol <= 0 {
		opts.ResTol = def.ResTol
	}
	if opts.Linear == nil {
		opts.Linear = def.Linear
	}
	return opts
}
