package device

import (
	"fmt"
	"strings"

	"github.com/edp1096/toy-mna/internal/consts"
	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/graph"
)

// Bjt is the Ebers-Moll transport model built from three coupled current
// branches: collector-emitter transport, base-emitter and base-collector
// diodes. The coupled vector is [Vce, Vbe, Vbc].
type Bjt struct {
	BaseDevice
	stateless
	Polarity float64 // +1 for NPN, -1 for PNP

	Is   float64 // Transport saturation current
	Bf   float64 // Ideal maximum forward beta
	Br   float64 // Ideal maximum reverse beta
	Nf   float64 // Forward emission coefficient
	Nr   float64 // Reverse emission coefficient
	Gmin float64
	Temp float64

	branches []branch.Branch
}

// NewBJT creates an NPN or PNP transistor connected with Connect(c, b, e).
func NewBJT(name, polarity string) (*Bjt, error) {
	b := &Bjt{BaseDevice: BaseDevice{Name: name}}
	switch strings.ToUpper(polarity) {
	case "", "NPN":
		b.Polarity = 1
	case "PNP":
		b.Polarity = -1
	default:
		return nil, fmt.Errorf("%w: bjt %s: unknown polarity %q", ErrInvalidValue, name, polarity)
	}
	b.setDefaultParameters()

	b.branches = []branch.Branch{
		&branch.CurrentFunc{
			Name: name + ":ce",
			CurrentFn: func(v []float64, t1, t2 float64) float64 {
				ef, _, er, _ := b.junctions(v)
				return b.Polarity * b.Is * (ef - er)
			},
			JacobianFn: func(v []float64, t1, t2 float64) []float64 {
				_, gf, _, gr := b.junctions(v)
				return []float64{0, b.Is * gf, -b.Is * gr}
			},
		},
		&branch.CurrentFunc{
			Name: name + ":be",
			CurrentFn: func(v []float64, t1, t2 float64) float64 {
				ef, _, _, _ := b.junctions(v)
				return b.Polarity*b.Is/b.Bf*(ef-1) + b.Gmin*v[1]
			},
			JacobianFn: func(v []float64, t1, t2 float64) []float64 {
				_, gf, _, _ := b.junctions(v)
				return []float64{0, b.Is/b.Bf*gf + b.Gmin, 0}
			},
		},
		&branch.CurrentFunc{
			Name: name + ":bc",
			CurrentFn: func(v []float64, t1, t2 float64) float64 {
				_, _, er, _ := b.junctions(v)
				return b.Polarity*b.Is/b.Br*(er-1) + b.Gmin*v[2]
			},
			JacobianFn: func(v []float64, t1, t2 float64) []float64 {
				_, _, _, gr := b.junctions(v)
				return []float64{0, 0, b.Is/b.Br*gr + b.Gmin}
			},
		},
	}
	return b, nil
}

func (b *Bjt) GetType() string { return "Q" }

func (b *Bjt) setDefaultParameters() {
	b.Is = 1e-16
	b.Bf = 100.0
	b.Br = 1.0
	b.Nf = 1.0
	b.Nr = 1.0
	b.Gmin = 1e-12
	b.Temp = consts.NOMINAL_TEMP
}

func (b *Bjt) SetModelParameters(params map[string]float64) {
	if is, ok := params["is"]; ok {
		b.Is = is
	}
	if bf, ok := params["bf"]; ok {
		b.Bf = bf
	}
	if br, ok := params["br"]; ok {
		b.Br = br
	}
	if nf, ok := params["nf"]; ok {
		b.Nf = nf
	}
	if nr, ok := params["nr"]; ok {
		b.Nr = nr
	}
	if gmin, ok := params["gmin"]; ok {
		b.Gmin = gmin
	}
	if temp, ok := params["temp"]; ok {
		b.Temp = temp + consts.KELVIN
	}
}

func (b *Bjt) Branches() []branch.Branch { return b.branches }

func (b *Bjt) Connect(terminals ...graph.Node) ([]graph.Edge, error) {
	if len(terminals) != 3 {
		return nil, fmt.Errorf("%w: %s needs 3, got %d", ErrTerminalCount, b.Name, len(terminals))
	}
	c, base, e := terminals[0], terminals[1], terminals[2]
	return []graph.Edge{
		{Source: e, Target: c, Branch: b.branches[0]},
		{Source: e, Target: base, Branch: b.branches[1]},
		{Source: c, Target: base, Branch: b.branches[2]},
	}, nil
}

// junctions returns the forward and reverse junction exponentials and their
// derivatives with respect to Vbe and Vbc.
func (b *Bjt) junctions(v []float64) (ef, gf, er, gr float64) {
	vt := consts.ThermalVoltage(b.Temp)
	ef, gf = limitedExp(b.Polarity * v[1] / (b.Nf * vt))
	er, gr = limitedExp(b.Polarity * v[2] / (b.Nr * vt))
	return ef, gf / (b.Nf * vt), er, gr / (b.Nr * vt)
}
