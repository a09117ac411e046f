package consts

const (
	CHARGE    = 1.6021918e-19 // Elementary charge (C)
	BOLTZMANN = 1.3806226e-23 // Boltzmann constant (J/K)
	KELVIN    = 273.15        // Kelvin temperature (K)

	NOMINAL_TEMP = 300.15 // Default device temperature (K)
)

// ThermalVoltage returns kT/q in volts. Non-positive temperatures fall back
// to NOMINAL_TEMP.
func ThermalVoltage(temp float64) float64 {
	if temp <= 0 {
		temp = NOMINAL_TEMP
	}
	return BOLTZMANN * temp / CHARGE
}
