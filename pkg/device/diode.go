package device

import (
	"math"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

// Exponents above expLimit continue linearly so Newton iterates stay finite.
const expLimit = 40.0

type Diode struct {
	BaseDevice
	stateless
	// Model parameters
	Is   float64 // Saturation current
	N    float64 // Emission coefficient
	Gmin float64 // Minimum conductance
	Temp float64 // Device temperature (K)

	branch *branch.CurrentFunc
}

// NewDiode connects with Connect(anode, cathode).
func NewDiode(name string) *Diode {
	d := &Diode{BaseDevice: BaseDevice{Name: name}}
	d.setDefaultParameters()
	d.branch = &branch.CurrentFunc{
		Name: name,
		CurrentFn: func(v []float64, t1, t2 float64) float64 {
			i, _ := d.currentSlope(v[0])
			return i
		},
		JacobianFn: func(v []float64, t1, t2 float64) []float64 {
			_, g := d.currentSlope(v[0])
			return []float64{g}
		},
	}
	return d
}

func (d *Diode) GetType() string { return "D" }

func (d *Diode) setDefaultParameters() {
	d.Is = 1e-14
	d.N = 1.0
	d.Gmin = 1e-12
	d.Temp = consts.NOMINAL_TEMP
}

func (d *Diode) SetModelParameters(params map[string]float64) {
	if is, ok := params["is"]; ok {
		d.Is = is
	}
	if n, ok := params["n"]; ok {
		d.N = n
	}
	if gmin, ok := params["gmin"]; ok {
		d.Gmin = gmin
	}
	if temp, ok := params["temp"]; ok {
		d.Temp = temp + consts.KELVIN
	}
}

func (d *Diode) Branches() []branch.Branch { return []branch.Branch{d.branch} }

func (d *Diode) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	return connectPairs(d, terminals)
}

// limitedExp returns exp(x) and its derivative, continued linearly above expLimit.
func limitedExp(x float64) (float64, float64) {
	if x <= expLimit {
		e := math.Exp(x)
		return e, e
	}
	e := math.Exp(expLimit)
	return e * (1 + x - expLimit), e
}

func (d *Diode) currentSlope(vd float64) (float64, float64) {
	nvt := d.N * consts.ThermalVoltage(d.Temp)
	e, de := limitedExp(vd / nvt)
	id := d.Is*(e-1) + d.Gmin*vd
	gd := d.Is*de/nvt + d.Gmin
	return id, gd
}
