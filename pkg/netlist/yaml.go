package netlist

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlNetlist is the YAML form of a netlist. Every entry is lowered to the
// equivalent netlist statement, so both forms share one parser.
//
//	title: divider
//	elements:
//	  - {name: V1, nodes: [in, 0], value: "DC 10"}
//	  - {name: R1, nodes: [in, out], value: 1k}
//	  - {name: C1, nodes: [out, 0], value: 1u, params: {ic: 0}}
//	models:
//	  - {name: D1N, type: D, params: {is: 1e-14}}
//	analysis: {type: tran, args: [1u, 1m]}
type yamlNetlist struct {
	Title    string        `yaml:"title"`
	Options  yamlOptions   `yaml:"options"`
	Elements []yamlElement `yaml:"elements"`
	Models   []yamlModel   `yaml:"models"`
	Analysis *yamlAnalysis `yaml:"analysis"`
}

type yamlOptions struct {
	Method string `yaml:"method"`
}

type yamlElement struct {
	Name   string            `yaml:"name"`
	Nodes  []string          `yaml:"nodes"`
	Value  string            `yaml:"value"`
	Model  string            `yaml:"model"`
	Params map[string]string `yaml:"params"`
}

type yamlModel struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Params map[string]string `yaml:"params"`
}

type yamlAnalysis struct {
	Type string   `yaml:"type"`
	Args []string `yaml:"args"`
}

// ParseYAML reads the YAML form of a netlist.
func ParseYAML(data []byte) (*NetlistData, error) {
	var doc yamlNetlist
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse netlist YAML: %w", err)
	}

	netlistData := newNetlistData()
	netlistData.Title = doc.Title

	if doc.Options.Method != "" {
		if err := parseLine(netlistData, ".options method="+doc.Options.Method); err != nil {
			return nil, err
		}
	}

	for _, m := range doc.Models {
		line := fmt.Sprintf(".model %s %s(%s)", m.Name, m.Type, joinParams(m.Params))
		if err := parseLine(netlistData, line); err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
	}

	for _, e := range doc.Elements {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: element without a name", ErrSyntax)
		}
		parts := append([]string{e.Name}, e.Nodes...)
		for _, p := range []string{e.Model, e.Value, joinParams(e.Params)} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if err := parseLine(netlistData, strings.Join(parts, " ")); err != nil {
			return nil, fmt.Errorf("element %s: %w", e.Name, err)
		}
	}

	if doc.Analysis != nil {
		line := "." + strings.ToLower(doc.Analysis.Type) + " " + strings.Join(doc.Analysis.Args, " ")
		if err := parseLine(netlistData, strings.TrimSpace(line)); err != nil {
			return nil, fmt.Errorf("analysis: %w", err)
		}
	}

	return netlistData, nil
}

func joinParams(params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + params[name]
	}
	return strings.Join(pairs, " ")
}
