package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValueFactor(t *testing.T) {
	cases := map[float64]string{
		0:       "0.000 V",
		4700:    "4.700 kV",
		1:       "1.000 V",
		-2.5e-3: "-2.500 mV",
		3.3e-6:  "3.300 uV",
		1e-15:   "1.000e-15 V",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatValueFactor(in, "V"))
	}
}

func TestUnitOf(t *testing.T) {
	assert.Equal(t, "V", UnitOf("V(out)"))
	assert.Equal(t, "A", UnitOf("I(R1)"))
	assert.Equal(t, "s", UnitOf("TIME"))
	assert.Equal(t, "", UnitOf("X"))
}

func TestIntegrationWeights(t *testing.T) {
	w1, w2 := IntegrationWeights(Trapezoidal, 2e-3)
	assert.Equal(t, 1e-3, w1)
	assert.Equal(t, 1e-3, w2)

	w1, w2 = IntegrationWeights(BackwardEuler, 2e-3)
	assert.Equal(t, 0.0, w1)
	assert.Equal(t, 2e-3, w2)

	w1, w2 = IntegrationWeights(Trapezoidal, 0)
	assert.Zero(t, w1+w2)

	m, err := ParseIntegrationMethod("BE")
	require.NoError(t, err)
	assert.Equal(t, BackwardEuler, m)
	_, err = ParseIntegrationMethod("rk4")
	assert.Error(t, err)
}
