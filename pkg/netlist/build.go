package netlist

import (
	"fmt"
	"slices"
	"strings"

	"github.com/edp1096/toy-mna/pkg/circuit"
	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/graph"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// GroundNodes are the node names treated as the reference node "0".
var GroundNodes = []string{"0", "gnd"}

func normalizeNode(name string) string {
	for _, g := range GroundNodes {
		if strings.EqualFold(name, g) {
			return "0"
		}
	}
	return name
}

// Build creates the circuit described by data. Inductors joined by K
// statements become one Mutual component.
func Build(data *NetlistData) (*circuit.Circuit, error) {
	ckt := circuit.New(data.Title)

	inductors := make(map[string]*device.Inductor)
	nodesOf := make(map[string][]string)
	for _, elem := range data.Elements {
		if elem.Type != "L" {
			continue
		}
		l, err := createInductor(elem, data)
		if err != nil {
			return nil, err
		}
		inductors[strings.ToUpper(elem.Name)] = l
		nodesOf[strings.ToUpper(elem.Name)] = elem.Nodes
	}

	mutuals, owner, err := buildMutuals(data, inductors)
	if err != nil {
		return nil, err
	}

	added := make(map[*device.Mutual]bool)
	for _, elem := range data.Elements {
		var comp device.Component
		var terminals []string

		switch elem.Type {
		case "L":
			name := strings.ToUpper(elem.Name)
			m, coupled := owner[name]
			if !coupled {
				comp, terminals = inductors[name], elem.Nodes
				break
			}
			if added[m] {
				continue
			}
			added[m] = true
			comp = m
			for _, ind := range m.GetInductorNames() {
				terminals = append(terminals, nodesOf[strings.ToUpper(ind)]...)
			}

		case "K":
			continue

		default:
			comp, err = CreateDevice(elem, data.Models)
			if err != nil {
				return nil, err
			}
			if c, ok := comp.(*device.Capacitor); ok {
				c.Method = data.Method
			}
			terminals = elem.Nodes
		}

		nodes := make([]graph.Node, len(terminals))
		for i, t := range terminals {
			nodes[i] = t
		}
		if err := ckt.Add(comp, nodes...); err != nil {
			return nil, err
		}
	}

	if len(added) != len(mutuals) {
		return nil, fmt.Errorf("%w: coupled inductors missing from netlist", ErrSyntax)
	}
	return ckt, nil
}

func createInductor(elem Element, data *NetlistData) (*device.Inductor, error) {
	l, err := device.NewInductor(elem.Name, elem.Value)
	if err != nil {
		return nil, err
	}
	l.Method = data.Method
	if ic, ok := elem.Params["ic"]; ok {
		i, err := ParseValue(ic)
		if err != nil {
			return nil, err
		}
		l.SetInitialCurrent(i)
	}
	return l, nil
}

// buildMutuals groups inductors that share K statements, directly or through
// other inductors, and creates one Mutual per group.
func buildMutuals(data *NetlistData, inductors map[string]*device.Inductor) ([]*device.Mutual, map[string]*device.Mutual, error) {
	type coupling struct {
		name  string
		names []string
		k     float64
	}

	var couplings []coupling
	ids := make(map[string]int64)
	order := []string{}
	joined := simple.NewUndirectedGraph()
	for _, elem := range data.Elements {
		if elem.Type != "K" {
			continue
		}
		c := coupling{name: elem.Name, k: elem.Value}
		for i := 1; ; i++ {
			name, ok := elem.Params[fmt.Sprintf("ind%d", i)]
			if !ok {
				break
			}
			name = strings.ToUpper(name)
			if _, ok := inductors[name]; !ok {
				return nil, nil, fmt.Errorf("%w: mutual coupling %s references unknown inductor %s", ErrSyntax, elem.Name, name)
			}
			if _, ok := ids[name]; !ok {
				ids[name] = int64(len(order))
				order = append(order, name)
				joined.AddNode(simple.Node(ids[name]))
			}
			c.names = append(c.names, name)
		}
		if len(c.names) < 2 {
			return nil, nil, fmt.Errorf("%w: mutual coupling %s requires at least two inductors", ErrSyntax, elem.Name)
		}
		for _, a := range c.names {
			for _, b := range c.names {
				if a != b {
					joined.SetEdge(joined.NewEdge(joined.Node(ids[a]), joined.Node(ids[b])))
				}
			}
		}
		couplings = append(couplings, c)
	}

	var mutuals []*device.Mutual
	owner := make(map[string]*device.Mutual)
	for _, comp := range topo.ConnectedComponents(joined) {
		members := make([]string, 0, len(comp))
		index := make(map[string]int)
		for _, id := range sortedIDs(comp) {
			index[order[id]] = len(members)
			members = append(members, order[id])
		}

		k := make([][]float64, len(members))
		for i := range k {
			k[i] = make([]float64, len(members))
			k[i][i] = 1
		}
		name := ""
		for _, c := range couplings {
			if _, in := index[c.names[0]]; !in {
				continue
			}
			if name == "" {
				name = c.name
			}
			for _, a := range c.names {
				for _, b := range c.names {
					if a != b {
						k[index[a]][index[b]] = c.k
					}
				}
			}
		}

		group := make([]*device.Inductor, len(members))
		for i, n := range members {
			group[i] = inductors[n]
		}
		m, err := device.NewMutual(name, group, k)
		if err != nil {
			return nil, nil, err
		}
		m.Method = data.Method
		for _, n := range members {
			owner[n] = m
		}
		mutuals = append(mutuals, m)
	}
	return mutuals, owner, nil
}

func sortedIDs(nodes []gonumgraph.Node) []int64 {
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	slices.Sort(ids)
	return ids
}

// CreateDevice creates every element type except inductors and couplings,
// which Build handles.
func CreateDevice(elem Element, models map[string]device.ModelParam) (device.Component, error) {
	switch elem.Type {
	case "R":
		r, err := device.NewResistor(elem.Name, elem.Value)
		if err != nil {
			return nil, err
		}
		if err := setFloat(elem, "tc1", &r.Tc1); err != nil {
			return nil, err
		}
		if err := setFloat(elem, "tc2", &r.Tc2); err != nil {
			return nil, err
		}
		return r, nil

	case "C":
		c, err := device.NewCapacitor(elem.Name, elem.Value)
		if err != nil {
			return nil, err
		}
		if ic, ok := elem.Params["ic"]; ok {
			v, err := ParseValue(ic)
			if err != nil {
				return nil, err
			}
			c.SetInitialVoltage(v)
		}
		return c, nil

	case "D":
		diode := device.NewDiode(elem.Name)
		if modelName, ok := elem.Params["model"]; ok {
			model, exists := models[modelName]
			if !exists || model.Type != "D" {
				return nil, fmt.Errorf("%w: undefined diode model for %s: %s", ErrSyntax, elem.Name, modelName)
			}
			diode.SetModelParameters(model.Params)
		}
		return diode, nil

	case "Q":
		polarity := "NPN"
		var params map[string]float64
		if modelName, ok := elem.Params["model"]; ok {
			model, exists := models[modelName]
			if !exists || (model.Type != "NPN" && model.Type != "PNP") {
				return nil, fmt.Errorf("%w: undefined bjt model for %s: %s", ErrSyntax, elem.Name, modelName)
			}
			polarity, params = model.Type, model.Params
		}
		q, err := device.NewBJT(elem.Name, polarity)
		if err != nil {
			return nil, err
		}
		q.SetModelParameters(params)
		return q, nil

	case "E":
		return device.NewVCVS(elem.Name, elem.Value), nil
	case "G":
		return device.NewVCCS(elem.Name, elem.Value), nil
	case "F":
		return device.NewCCCS(elem.Name, elem.Value), nil
	case "H":
		return device.NewCCVS(elem.Name, elem.Value), nil

	case "S":
		toggles, err := parseValues(elem.Params["toggles"], 0, "switch")
		if err != nil {
			return nil, err
		}
		return device.NewSwitch(elem.Name, elem.Params["state"] == "on", toggles...), nil

	case "V", "I":
		wave, err := waveform(elem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", elem.Name, err)
		}
		if elem.Type == "V" {
			return device.NewVoltageSource(elem.Name, wave), nil
		}
		return device.NewCurrentSource(elem.Name, wave), nil
	}
	return nil, fmt.Errorf("%w: unsupported device type: %s", ErrSyntax, elem.Type)
}

func waveform(elem Element) (device.Waveform, error) {
	switch elem.Params["type"] {
	case "dc":
		return device.DCWave{Value: elem.Value}, nil
	case "sin":
		return parseSinParams(elem.Params["sin"])
	case "pulse":
		return parsePulseParams(elem.Params["pulse"])
	case "pwl":
		return parsePWLParams(elem.Params["pwl"])
	}
	return nil, fmt.Errorf("%w: unsupported source type: %s", ErrSyntax, elem.Params["type"])
}

func setFloat(elem Element, name string, dst *float64) error {
	s, ok := elem.Params[name]
	if !ok {
		return nil
	}
	v, err := ParseValue(s)
	if err != nil {
		return fmt.Errorf("%s: invalid %s: %w", elem.Name, name, err)
	}
	*dst = v
	return nil
}
