package util

import (
	"fmt"
	"math"
)

var prefixes = []struct {
	scale  float64
	prefix string
}{
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "k"},
	{1, ""},
	{1e-3, "m"},
	{1e-6, "u"},
	{1e-9, "n"},
	{1e-12, "p"},
}

// FormatValueFactor prints value with an engineering prefix, e.g. "4.700 kOhm".
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	if absValue == 0 {
		return fmt.Sprintf("%.3f %s", value, unit)
	}
	for _, p := range prefixes {
		if absValue >= p.scale {
			return fmt.Sprintf("%.3f %s%s", value/p.scale, p.prefix, unit)
		}
	}
	return fmt.Sprintf("%.3e %s", value, unit)
}

// FormatTime prints a simulation time with a fixed column width.
func FormatTime(t float64) string {
	return fmt.Sprintf("%12s", FormatValueFactor(t, "s"))
}

// UnitOf returns the unit of a result key such as "V(out)" or "I(R1)".
func UnitOf(key string) string {
	if len(key) > 1 && key[1] == '(' {
		switch key[0] {
		case 'V':
			return "V"
		case 'I':
			return "A"
		}
	}
	if key == "TIME" {
		return "s"
	}
	return ""
}
