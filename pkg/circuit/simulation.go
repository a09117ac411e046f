package circuit

import (
	"context"
	"sync"

	"github.com/edp1096/toy-mna/pkg/branch"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/graph"

	"github.com/google/uuid"
)

// Simulation is a running or finished transient run. Accessors return copies
// of the results stored so far and are safe to call while the run goes on.
type Simulation struct {
	ID string

	TStart, TStop float64

	mu              sync.RWMutex
	ts              []float64
	nodePotentials  map[graph.Node][]float64
	branchVoltages  map[branch.Branch][]float64
	branchCurrents  map[branch.Branch][]float64
	switchStates    map[branch.Branch][]bool
	componentStates map[device.Component][][]float64
	err             error

	cancel context.CancelFunc
	done   chan struct{}
}

func newSimulation(ts1, ts2 float64, cancel context.CancelFunc) *Simulation {
	return &Simulation{
		ID:              uuid.NewString(),
		TStart:          ts1,
		TStop:           ts2,
		nodePotentials:  make(map[graph.Node][]float64),
		branchVoltages:  make(map[branch.Branch][]float64),
		branchCurrents:  make(map[branch.Branch][]float64),
		switchStates:    make(map[branch.Branch][]bool),
		componentStates: make(map[device.Component][][]float64),
		cancel:          cancel,
		done:            make(chan struct{}),
	}
}

// Wait blocks until the run ends and returns its error.
func (s *Simulation) Wait() error {
	<-s.done
	return s.Err()
}

func (s *Simulation) Done() <-chan struct{} { return s.done }

// Cancel stops the run after the current step.
func (s *Simulation) Cancel() { s.cancel() }

func (s *Simulation) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Simulation) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

// Times returns the solved time points.
func (s *Simulation) Times() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.ts...)
}

// Progress returns the fraction of the time range already solved.
func (s *Simulation) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ts) == 0 {
		return 0
	}
	if s.TStop == s.TStart {
		return 1
	}
	return (s.ts[len(s.ts)-1] - s.TStart) / (s.TStop - s.TStart)
}

func (s *Simulation) NodePotential(n graph.Node) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.nodePotentials[n]...)
}

func (s *Simulation) BranchVoltage(b branch.Branch) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.branchVoltages[b]...)
}

func (s *Simulation) BranchCurrent(b branch.Branch) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.branchCurrents[b]...)
}

func (s *Simulation) SwitchStates(b branch.Branch) []bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]bool(nil), s.switchStates[b]...)
}

// ComponentStates returns the committed state of comp after every step.
func (s *Simulation) ComponentStates(comp device.Component) [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]float64, len(s.componentStates[comp]))
	for i, st := range s.componentStates[comp] {
		out[i] = append([]float64(nil), st...)
	}
	return out
}
