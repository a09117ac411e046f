package mna

import (
	"fmt"
	"io"
	"strings"
)

// Describe writes the equation system in readable form.
func (s *Stack) Describe(w io.Writer) {
	fmt.Fprintf(w, "\nCircuit Equations (%dx%d):\n", s.Len(), s.Len())
	fmt.Fprintf(w, "Reference nodes: %v\n", s.references)
	fmt.Fprintln(w, "Node equations first, followed by branch equations")

	for r, eq := range s.kirchhoff {
		var sb strings.Builder
		for _, term := range eq.Terms {
			switch t := term.(type) {
			case KirchhoffTerm:
				fmt.Fprintf(&sb, " %sI(%v)", signChar(t.Negative), t.Branch)
				if len(t.Coupled) > 1 {
					fmt.Fprintf(&sb, "%v", t.Coupled)
				}
			case KirchhoffBranchConsecutiveTerm:
				fmt.Fprintf(&sb, " %sx%d", signChar(t.Negative), s.currentColumn(t.Branch)+1)
			}
		}
		fmt.Fprintf(w, "Equation %d (x%d = V(%v)):%s = 0\n", r+1, r+1, eq.Node, sb.String())
	}

	for k, eq := range s.consecutive {
		r := len(s.kirchhoff) + k
		fmt.Fprintf(w, "Equation %d (x%d = I(%v)): V(%v) + V(%v) - V(%v) = 0\n",
			r+1, r+1, eq.Branch, eq.Branch, eq.Source, eq.Target)
	}
}

func signChar(negative bool) string {
	if negative {
		return "-"
	}
	return "+"
}
