package consts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThermalVoltage(t *testing.T) {
	assert.InDelta(t, 0.02586, ThermalVoltage(NOMINAL_TEMP), 1e-5)
	assert.Equal(t, ThermalVoltage(NOMINAL_TEMP), ThermalVoltage(0))
	assert.Greater(t, ThermalVoltage(400), ThermalVoltage(NOMINAL_TEMP))
}
