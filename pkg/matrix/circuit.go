package matrix

import (
	"fmt"
	"io"

	"github.com/edp1096/sparse"
	"gonum.org/v1/gonum/mat"
)

// CircuitMatrix is a 1-based sparse system backed by github.com/edp1096/sparse.
type CircuitMatrix struct {
	Size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
}

func NewMatrix(size int) (*CircuitMatrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 false,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	m, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %w", err)
	}

	return &CircuitMatrix{
		Size:     size,
		matrix:   m,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
	}, nil
}

func (m *CircuitMatrix) AddElement(i, j int, value float64) {
	m.matrix.GetElement(int64(i), int64(j)).Real += value
}

func (m *CircuitMatrix) AddRHS(i int, value float64) {
	m.rhs[i] += value
}

// Load replaces the system by the nonzeros of a and the right-hand side b.
func (m *CircuitMatrix) Load(a *mat.Dense, b []float64) {
	m.Clear()
	for i := 0; i < m.Size; i++ {
		for j := 0; j < m.Size; j++ {
			if v := a.At(i, j); v != 0 {
				m.AddElement(i+1, j+1, v)
			}
		}
		m.rhs[i+1] = b[i]
	}
}

func (m *CircuitMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
}

func (m *CircuitMatrix) Solve() error {
	if err := m.matrix.Factor(); err != nil {
		return fmt.Errorf("matrix factorization failed: %w", err)
	}
	solution, err := m.matrix.Solve(m.rhs)
	if err != nil {
		return fmt.Errorf("matrix solve failed: %w", err)
	}
	m.solution = solution
	return nil
}

func (m *CircuitMatrix) Solution() []float64 {
	return m.solution
}

func (m *CircuitMatrix) PrintSystem(w io.Writer) {
	fmt.Fprintf(w, "\nLinear system (%dx%d):\n", m.Size, m.Size)
	for i := 1; i <= m.Size; i++ {
		fmt.Fprintf(w, "Row %d:", i)
		for j := 1; j <= m.Size; j++ {
			if v := m.matrix.GetElement(int64(i), int64(j)).Real; v != 0 {
				fmt.Fprintf(w, "  %+g*x%d", v, j)
			}
		}
		fmt.Fprintf(w, " = %g\n", m.rhs[i])
	}
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
		m.matrix = nil
	}
}

// Sparse is a Solver that allocates a CircuitMatrix per solve.
type Sparse struct{}

func NewSparse() Sparse { return Sparse{} }

func (Sparse) Solve(a *mat.Dense, b []float64) ([]float64, error) {
	r, c := a.Dims()
	if r != c || r != len(b) {
		return nil, fmt.Errorf("%w: %dx%d with rhs %d", ErrDimension, r, c, len(b))
	}
	if r == 0 {
		return []float64{}, nil
	}

	m, err := NewMatrix(r)
	if err != nil {
		return nil, err
	}
	defer m.Destroy()

	m.Load(a, b)
	if err := m.Solve(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return append([]float64(nil), m.Solution()[1:r+1]...), nil
}
