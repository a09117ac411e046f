package matrix

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSolversAgree(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		1e-3, -1e-3, 1,
		-1e-3, 2e-3, 0,
		1, 0, 0,
	})
	b := []float64{0, 0, 10}

	dense, err := Dense{}.Solve(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, dense[0], 1e-9)
	assert.InDelta(t, 5.0, dense[1], 1e-9)
	assert.InDelta(t, -5e-3, dense[2], 1e-12)

	sparse, err := NewSparse().Solve(a, b)
	require.NoError(t, err)
	assert.InDeltaSlice(t, dense, sparse, 1e-9)
}

func TestNewSolver(t *testing.T) {
	s, err := NewSolver("dense")
	require.NoError(t, err)
	assert.IsType(t, Dense{}, s)

	s, err = NewSolver("")
	require.NoError(t, err)
	assert.IsType(t, Sparse{}, s)

	_, err = NewSolver("qr")
	assert.True(t, errors.Is(err, ErrUnknownSolve))
}

func TestDenseRejectsBadInput(t *testing.T) {
	_, err := Dense{}.Solve(mat.NewDense(2, 2, nil), []float64{1, 2})
	assert.True(t, errors.Is(err, ErrSingular))

	_, err = Dense{}.Solve(mat.NewDense(2, 2, []float64{1, 0, 0, 1}), []float64{1})
	assert.True(t, errors.Is(err, ErrDimension))

	x, err := Dense{}.Solve(new(mat.Dense), nil)
	require.NoError(t, err)
	assert.Empty(t, x)
}

func TestCircuitMatrixPrintSystem(t *testing.T) {
	m, err := NewMatrix(2)
	require.NoError(t, err)
	defer m.Destroy()

	m.Load(mat.NewDense(2, 2, []float64{2, 0, 0, 4}), []float64{2, 8})
	var buf bytes.Buffer
	m.PrintSystem(&buf)
	assert.Contains(t, buf.String(), "+2*x1")
	assert.Contains(t, buf.String(), "= 8")

	require.NoError(t, m.Solve())
	assert.InDelta(t, 1.0, m.Solution()[1], 1e-12)
	assert.InDelta(t, 2.0, m.Solution()[2], 1e-12)
}
