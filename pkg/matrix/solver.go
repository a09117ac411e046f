package matrix

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrSingular     = errors.New("matrix: singular system")
	ErrDimension    = errors.New("matrix: dimension mismatch")
	ErrUnknownSolve = errors.New("matrix: unknown linear solver")
)

// Solver solves a*x = b for x.
type Solver interface {
	Solve(a *mat.Dense, b []float64) ([]float64, error)
}

// NewSolver returns the linear solver registered under name ("sparse" or "dense").
func NewSolver(name string) (Solver, error) {
	switch name {
	case "", "sparse":
		return NewSparse(), nil
	case "dense":
		return Dense{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSolve, name)
	}
}

// Dense solves with gonum's LU decomposition.
type Dense struct{}

func (Dense) Solve(a *mat.Dense, b []float64) ([]float64, error) {
	r, c := a.Dims()
	if r != c || r != len(b) {
		return nil, fmt.Errorf("%w: %dx%d with rhs %d", ErrDimension, r, c, len(b))
	}
	if r == 0 {
		return []float64{}, nil
	}

	var lu mat.LU
	lu.Factorize(a)
	if lu.Det() == 0 {
		return nil, ErrSingular
	}

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, mat.NewVecDense(len(b), append([]float64(nil), b...))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return append([]float64(nil), x.RawVector().Data...), nil
}
