package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/cadence/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedLines []string
	CurrentLine  string
}

// GenerateMermaid produces a Mermaid flowchart of a program's control flow,
// one node per instruction. Shapes:
//   - line: [Rectangle]
//   - choice: {Rhombus}
//   - branch_if_false: {{Hexagon}}
//   - call: [[Subroutine]]
//   - event, set_var: [/Parallelogram/]
//   - end, return: ((Circle))
//
// Overlay styles mark visited and current lines when provided.
func GenerateMermaid(p *domain.Program, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if p == nil {
		return sb.String()
	}

	for i, ins := range p.Instructions {
		id := nodeID(i)
		opener, closer := shape(ins.Kind)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, escape(label(ins)), closer)

		switch ins.Kind {
		case domain.KindJump:
			fmt.Fprintf(&sb, "    %s --> %s\n", id, nodeID(ins.Target))
		case domain.KindBranchIfFalse:
			fmt.Fprintf(&sb, "    %s -- \"true\" --> %s\n", id, nodeID(i+1))
			fmt.Fprintf(&sb, "    %s -- \"false\" --> %s\n", id, nodeID(ins.Target))
			continue
		case domain.KindCall:
			fmt.Fprintf(&sb, "    %s -. \"call\" .-> %s\n", id, nodeID(ins.Target))
		case domain.KindChoice:
			for n, o := range ins.Options {
				fmt.Fprintf(&sb, "    %s -- \"%d: %s\" --> %s\n", id, n+1, escape(o.Text), nodeID(o.Target))
			}
		}
		if !ins.Kind.Terminator() && i+1 < len(p.Instructions) {
			fmt.Fprintf(&sb, "    %s --> %s\n", id, nodeID(i+1))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool, len(overlay.VisitedLines))
		for _, l := range overlay.VisitedLines {
			visited[l] = true
		}
		for i, ins := range p.Instructions {
			if ins.Kind != domain.KindLine {
				continue
			}
			switch {
			case ins.LineID == overlay.CurrentLine:
				fmt.Fprintf(&sb, "    class %s current;\n", nodeID(i))
			case visited[ins.LineID]:
				fmt.Fprintf(&sb, "    class %s visited;\n", nodeID(i))
			}
		}
	}

	return sb.String()
}

func nodeID(i int) string {
	return fmt.Sprintf("i%d", i)
}

func shape(k domain.Kind) (string, string) {
	switch k {
	case domain.KindChoice:
		return "{", "}"
	case domain.KindBranchIfFalse:
		return "{{", "}}"
	case domain.KindCall:
		return "[[", "]]"
	case domain.KindEvent, domain.KindSetVar:
		return "[/", "/]"
	case domain.KindEnd, domain.KindReturn:
		return "((", "))"
	}
	return "[", "]"
}

func label(ins domain.Instruction) string {
	switch ins.Kind {
	case domain.KindLine:
		return ins.LineID + ": " + truncate(ins.Text, 40)
	case domain.KindEvent:
		if !ins.Bound() {
			return "event " + ins.Event.ID
		}
		if ins.ThresholdVar != "" {
			return fmt.Sprintf("%s @ %s", ins.Event.ID, ins.ThresholdVar)
		}
		return fmt.Sprintf("%s @ %d", ins.Event.ID, ins.Threshold)
	case domain.KindSetVar:
		op := "="
		if ins.Op == domain.OpAdd {
			op = "+="
		}
		return fmt.Sprintf("%s %s %s", ins.Var, op, ins.Value.Display())
	case domain.KindBranchIfFalse:
		return ins.Cond.String()
	case domain.KindChoice:
		if ins.SaveTo != "" {
			return "choice → " + ins.SaveTo
		}
		return "choice"
	}
	return string(ins.Kind)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// escape keeps labels inside Mermaid's double quotes.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
