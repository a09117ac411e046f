package branch

// CurrentFunc adapts plain functions to a CurrentBranch.
type CurrentFunc struct {
	Name       string
	CurrentFn  func(v []float64, t1, t2 float64) float64
	JacobianFn func(v []float64, t1, t2 float64) []float64
}

func (f *CurrentFunc) Kind() Kind { return KindCurrent }

func (f *CurrentFunc) Current(v []float64, t1, t2 float64) float64 {
	return f.CurrentFn(v, t1, t2)
}

func (f *CurrentFunc) Jacobian(v []float64, t1, t2 float64) []float64 {
	return f.JacobianFn(v, t1, t2)
}

func (f *CurrentFunc) String() string { return f.Name }

// VoltageFunc adapts plain functions to a VoltageBranch.
type VoltageFunc struct {
	Name       string
	VoltageFn  func(v []float64, t1, t2 float64) float64
	JacobianFn func(v []float64, t1, t2 float64) []float64
}

func (f *VoltageFunc) Kind() Kind { return KindVoltage }

func (f *VoltageFunc) Voltage(v []float64, t1, t2 float64) float64 {
	return f.VoltageFn(v, t1, t2)
}

func (f *VoltageFunc) Jacobian(v []float64, t1, t2 float64) []float64 {
	return f.JacobianFn(v, t1, t2)
}

func (f *VoltageFunc) String() string { return f.Name }

type SwitchFunc struct {
	Name    string
	StateFn func(t float64) bool
}

func (f *SwitchFunc) Kind() Kind { return KindSwitch }

func (f *SwitchFunc) SwitchState(t float64) bool { return f.StateFn(t) }

func (f *SwitchFunc) String() string { return f.Name }

// Conductance returns a linear current branch i = g*v for a singleton group.
func Conductance(name string, g float64) *CurrentFunc {
	return &CurrentFunc{
		Name:       name,
		CurrentFn:  func(v []float64, t1, t2 float64) float64 { return g * v[0] },
		JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{g} },
	}
}

// ConstantVoltage returns a voltage branch fixed at value for a singleton group.
func ConstantVoltage(name string, value float64) *VoltageFunc {
	return &VoltageFunc{
		Name:       name,
		VoltageFn:  func(v []float64, t1, t2 float64) float64 { return value },
		JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0} },
	}
}

// ConstantCurrent returns a current branch fixed at value for a singleton group.
func ConstantCurrent(name string, value float64) *CurrentFunc {
	return &CurrentFunc{
		Name:       name,
		CurrentFn:  func(v []float64, t1, t2 float64) float64 { return value },
		JacobianFn: func(v []float64, t1, t2 float64) []float64 { return []float64{0} },
	}
}
