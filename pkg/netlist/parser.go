// Package netlist reads SPICE style netlists and builds circuits from them.
package netlist

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/edp1096/toy-mna/pkg/device"
	"github.com/edp1096/toy-mna/pkg/util"
)

var ErrSyntax = errors.New("netlist: syntax error")

type AnalysisType int

const (
	AnalysisNone AnalysisType = iota
	AnalysisOP
	AnalysisTRAN
	AnalysisDC
)

func (a AnalysisType) String() string {
	switch a {
	case AnalysisOP:
		return "op"
	case AnalysisTRAN:
		return "tran"
	case AnalysisDC:
		return "dc"
	}
	return "none"
}

type NetlistData struct {
	Elements  []Element                    // Circuit elements
	Nodes     map[string]int               // Node name and index
	Models    map[string]device.ModelParam // Model parameters
	Analysis  AnalysisType                 // Analysis type
	Method    util.IntegrationMethod       // From .options method=
	TranParam struct {
		TStep  float64 // timestep
		TStop  float64 // stop time
		TStart float64 // start time
	}
	DCParam struct {
		Source1    string
		Start1     float64
		Stop1      float64
		Increment1 float64
		Source2    string
		Start2     float64
		Stop2      float64
		Increment2 float64
	}
	Title string // Circuit title
}

type Element struct {
	Type   string            // Part type (R, L, C, V, etc.)
	Name   string            // Part name
	Nodes  []string          // Node names
	Value  float64           // Part value
	Params map[string]string // Parameter values
}

var unitMap = map[string]float64{
	"T":   1e12,  // tera
	"G":   1e9,   // giga
	"meg": 1e6,   // mega
	"K":   1e3,   // kilo
	"k":   1e3,   // kilo
	"M":   1e-3,  // milli
	"m":   1e-3,  // milli
	"u":   1e-6,  // micro
	"n":   1e-9,  // nano
	"p":   1e-12, // pico
	"f":   1e-15, // femto
}

var (
	valuePattern = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)(meg|MEG|Meg|[TGMKkmunpf])?[a-zA-Z]*$`)
	spacePattern = regexp.MustCompile(`\s+`)
)

func newNetlistData() *NetlistData {
	return &NetlistData{
		Nodes:  make(map[string]int),
		Models: make(map[string]device.ModelParam),
		Method: util.Trapezoidal,
	}
}

// Parse reads a netlist. The first line is the title.
func Parse(input string) (*NetlistData, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	netlistData := newNetlistData()

	// Title or comment
	if scanner.Scan() {
		netlistData.Title = strings.TrimPrefix(scanner.Text(), "*")
		netlistData.Title = strings.TrimSpace(netlistData.Title)
	}

	var currentLine string
	lineNo := 1
	flush := func() error {
		if currentLine == "" {
			return nil
		}
		err := parseLine(netlistData, currentLine)
		currentLine = ""
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Inline comment
		if idx := strings.IndexAny(line, "*;"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if len(line) == 0 {
			continue
		}

		// Line continue
		if strings.HasPrefix(line, "+") {
			if currentLine == "" {
				return nil, fmt.Errorf("%w: line %d: continuation without a statement", ErrSyntax, lineNo)
			}
			currentLine += " " + strings.TrimSpace(line[1:])
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		currentLine = line
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return netlistData, nil
}

func parseLine(netlistData *NetlistData, line string) error {
	line = spacePattern.ReplaceAllString(line, " ")

	if strings.HasPrefix(line, ".") {
		return parseDotOperator(netlistData, line)
	}

	element, err := parseElement(line)
	if err != nil {
		return err
	}

	for _, existing := range netlistData.Elements {
		if strings.EqualFold(existing.Name, element.Name) {
			return fmt.Errorf("%w: duplicate element %s", ErrSyntax, element.Name)
		}
	}

	netlistData.Elements = append(netlistData.Elements, *element)
	for _, node := range element.Nodes {
		if _, exists := netlistData.Nodes[node]; !exists {
			netlistData.Nodes[node] = len(netlistData.Nodes)
		}
	}
	return nil
}

// Parse .op, .tran, .dc, .model, .options
func parseDotOperator(netlistData *NetlistData, line string) error {
	var err error

	fields := strings.Fields(line)

	switch strings.ToLower(fields[0]) {
	case ".model":
		return parseModel(netlistData, fields[1:])

	case ".end":
		return nil

	case ".options", ".option":
		for _, field := range fields[1:] {
			name, value, ok := strings.Cut(field, "=")
			if !ok || !strings.EqualFold(name, "method") {
				continue
			}
			if netlistData.Method, err = util.ParseIntegrationMethod(value); err != nil {
				return fmt.Errorf("%w: %v", ErrSyntax, err)
			}
		}

	case ".op":
		netlistData.Analysis = AnalysisOP

	case ".tran":
		netlistData.Analysis = AnalysisTRAN
		if len(fields) < 3 {
			return fmt.Errorf("%w: insufficient tran parameters, need at least tstep and tstop", ErrSyntax)
		}
		if netlistData.TranParam.TStep, err = ParseValue(fields[1]); err != nil {
			return fmt.Errorf("invalid tstep: %w", err)
		}
		if netlistData.TranParam.TStop, err = ParseValue(fields[2]); err != nil {
			return fmt.Errorf("invalid tstop: %w", err)
		}
		if len(fields) > 3 {
			if netlistData.TranParam.TStart, err = ParseValue(fields[3]); err != nil {
				return fmt.Errorf("invalid tstart: %w", err)
			}
		}

	case ".dc":
		netlistData.Analysis = AnalysisDC
		if len(fields) != 5 && len(fields) != 9 {
			return fmt.Errorf("%w: dc sweep needs source start stop increment, once or twice", ErrSyntax)
		}
		p := &netlistData.DCParam
		p.Source1 = fields[1]
		if p.Start1, p.Stop1, p.Increment1, err = parseSweepRange(fields[2:5]); err != nil {
			return err
		}
		if len(fields) == 9 {
			p.Source2 = fields[5]
			if p.Start2, p.Stop2, p.Increment2, err = parseSweepRange(fields[6:9]); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("%w: unsupported control statement: %s", ErrSyntax, fields[0])
	}

	return nil
}

func parseSweepRange(fields []string) (start, stop, increment float64, err error) {
	if start, err = ParseValue(fields[0]); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start value: %w", err)
	}
	if stop, err = ParseValue(fields[1]); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid stop value: %w", err)
	}
	if increment, err = ParseValue(fields[2]); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid increment value: %w", err)
	}
	return start, stop, increment, nil
}

// parseModel reads ".model name type(param=value ...)". Parentheses are optional.
func parseModel(netlistData *NetlistData, fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("%w: insufficient model parameters", ErrSyntax)
	}

	modelName := fields[0]
	rest := strings.Join(fields[1:], " ")
	rest = strings.NewReplacer("(", " ", ")", " ").Replace(rest)
	words := strings.Fields(rest)
	modelType := strings.ToUpper(words[0])

	params := make(map[string]float64)
	switch modelType {
	case "D":
		params["is"] = 1e-14 // Saturation current
		params["n"] = 1.0    // Emission coefficient
	case "NPN", "PNP":
		params["is"] = 1e-16 // Transport saturation current
		params["bf"] = 100.0 // Forward beta
		params["br"] = 1.0   // Reverse beta
		params["nf"] = 1.0   // Forward emission coefficient
		params["nr"] = 1.0   // Reverse emission coefficient
	default:
		return fmt.Errorf("%w: unsupported model type: %s", ErrSyntax, modelType)
	}

	for _, pair := range words[1:] {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		v, err := ParseValue(value)
		if err != nil {
			return fmt.Errorf("invalid parameter value %s: %w", pair, err)
		}
		params[strings.ToLower(name)] = v
	}

	netlistData.Models[modelName] = device.ModelParam{
		Type:   modelType,
		Name:   modelName,
		Params: params,
	}

	return nil
}

// Parse circuit element
func parseElement(line string) (*Element, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: invalid element format: %s", ErrSyntax, line)
	}

	elem := &Element{
		Name:   fields[0],
		Type:   strings.ToUpper(string(fields[0][0])),
		Params: make(map[string]string),
	}

	var err error
	switch elem.Type {
	case "V", "I":
		return parseSource(elem, fields)

	case "R", "C", "L":
		if len(fields) < 4 {
			return nil, fmt.Errorf("%w: %s needs two nodes and a value", ErrSyntax, elem.Name)
		}
		elem.Nodes = nodes(fields[1:3])
		if elem.Value, err = ParseValue(fields[3]); err != nil {
			return nil, err
		}
		if err := parseParams(elem, fields[4:]); err != nil {
			return nil, err
		}

	case "K":
		if len(fields) < 4 {
			return nil, fmt.Errorf("%w: insufficient mutual coupling parameters: need coupling name, inductors and coefficient", ErrSyntax)
		}
		// The last field is the coupling coefficient
		if elem.Value, err = ParseValue(fields[len(fields)-1]); err != nil {
			return nil, fmt.Errorf("invalid coupling coefficient: %w", err)
		}
		if elem.Value <= -1 || elem.Value >= 1 {
			return nil, fmt.Errorf("%w: coupling coefficient must be between -1 and 1: %g", ErrSyntax, elem.Value)
		}
		for i, name := range fields[1 : len(fields)-1] {
			elem.Params[fmt.Sprintf("ind%d", i+1)] = name
		}

	case "D":
		elem.Nodes = nodes(fields[1:3])
		rest := fields[3:]
		if len(rest) > 0 && !strings.Contains(rest[0], "=") {
			elem.Params["model"] = rest[0]
			rest = rest[1:]
		}
		if err := parseParams(elem, rest); err != nil {
			return nil, err
		}

	case "Q":
		if len(fields) < 4 {
			return nil, fmt.Errorf("%w: %s needs collector, base and emitter nodes", ErrSyntax, elem.Name)
		}
		elem.Nodes = nodes(fields[1:4])
		if len(fields) > 4 {
			elem.Params["model"] = fields[4]
		}

	case "E", "F", "G", "H":
		if len(fields) < 6 {
			return nil, fmt.Errorf("%w: %s needs out+ out- ctrl+ ctrl- and a gain", ErrSyntax, elem.Name)
		}
		elem.Nodes = nodes(fields[1:5])
		if elem.Value, err = ParseValue(fields[5]); err != nil {
			return nil, err
		}

	case "S":
		elem.Nodes = nodes(fields[1:3])
		elem.Params["state"] = "off"
		var toggles []string
		for _, f := range fields[3:] {
			switch strings.ToLower(f) {
			case "on", "off":
				elem.Params["state"] = strings.ToLower(f)
			default:
				if _, err := ParseValue(f); err != nil {
					return nil, fmt.Errorf("invalid switch time %s: %w", f, err)
				}
				toggles = append(toggles, f)
			}
		}
		elem.Params["toggles"] = strings.Join(toggles, " ")

	default:
		return nil, fmt.Errorf("%w: unsupported element type: %s", ErrSyntax, elem.Name)
	}

	return elem, nil
}

func nodes(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = normalizeNode(f)
	}
	return out
}

// parseParams reads trailing name=value pairs.
func parseParams(elem *Element, fields []string) error {
	for _, f := range fields {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return fmt.Errorf("%w: %s: unexpected field %s", ErrSyntax, elem.Name, f)
		}
		if _, err := ParseValue(value); err != nil {
			return fmt.Errorf("%s: invalid %s: %w", elem.Name, name, err)
		}
		elem.Params[strings.ToLower(name)] = value
	}
	return nil
}

func parseSource(elem *Element, fields []string) (*Element, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: insufficient source parameters for %s", ErrSyntax, elem.Name)
	}
	elem.Nodes = nodes(fields[1:3])

	remaining := strings.Join(fields[3:], " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ") // Append whitespace around parentheses
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)

	kind := strings.ToLower(words[0])
	switch kind {
	case "dc":
		if len(words) < 2 {
			return nil, fmt.Errorf("%w: missing DC value", ErrSyntax)
		}
		value, err := ParseValue(words[1])
		if err != nil {
			return nil, err
		}
		elem.Params["type"] = "dc"
		elem.Value = value

	case "sin", "pulse", "pwl":
		elem.Params["type"] = kind
		elem.Params[kind] = strings.Trim(strings.Join(words[1:], " "), "() ")

	default:
		// Bare value
		value, err := ParseValue(words[0])
		if err != nil {
			return nil, fmt.Errorf("%w: unsupported source type: %s", ErrSyntax, words[0])
		}
		elem.Params["type"] = "dc"
		elem.Value = value
	}

	return elem, nil
}

// ParseValue - Parse value and factor. 1k -> 1000
func ParseValue(val string) (float64, error) {
	matches := valuePattern.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("%w: invalid value format: %s", ErrSyntax, val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	// factor
	if suffix := matches[2]; suffix != "" {
		if strings.EqualFold(suffix, "meg") {
			suffix = "meg"
		}
		num *= unitMap[suffix]
	}

	return num, nil
}

func parseValues(params string, want int, what string) ([]float64, error) {
	fields := strings.Fields(params)
	if len(fields) < want {
		return nil, fmt.Errorf("%w: insufficient %s parameters", ErrSyntax, what)
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := ParseValue(f)
		if err != nil {
			return nil, fmt.Errorf("invalid %s parameter %d: %w", what, i+1, err)
		}
		values[i] = v
	}
	return values, nil
}

func parseSinParams(params string) (device.SinWave, error) {
	v, err := parseValues(params, 3, "SIN")
	if err != nil {
		return device.SinWave{}, err
	}
	w := device.SinWave{Offset: v[0], Amplitude: v[1], Freq: v[2]}
	if len(v) > 3 {
		w.Phase = v[3]
	}
	return w, nil
}

func parsePulseParams(params string) (device.PulseWave, error) {
	v, err := parseValues(params, 7, "PULSE")
	if err != nil {
		return device.PulseWave{}, err
	}
	return device.PulseWave{V1: v[0], V2: v[1], Delay: v[2], Rise: v[3], Fall: v[4], Width: v[5], Period: v[6]}, nil
}

func parsePWLParams(params string) (device.PWLWave, error) {
	v, err := parseValues(params, 2, "PWL")
	if err != nil {
		return device.PWLWave{}, err
	}
	if len(v)%2 != 0 {
		return device.PWLWave{}, fmt.Errorf("%w: PWL needs pairs of time-value", ErrSyntax)
	}

	times := make([]float64, len(v)/2)
	values := make([]float64, len(v)/2)
	for i := range times {
		times[i], values[i] = v[2*i], v[2*i+1]
	}
	return device.NewPWLWave(times, values)
}
