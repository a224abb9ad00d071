package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/dialtone/pkg/domain"
)

// GraphOverlay contains call state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart for a flow graph.
// It applies semantic styling:
// - Entry: ((Circle))
// - Collect/Record: [/Parallelogram/]
// - Decision: {Rhombus}
// - Transfer: [[Subroutine]]
// - End: ([Stadium])
// - Default: [Rectangle]
// Decision rows are labeled with their match value. Overlay styles mark visited
// and current nodes when provided.
func GenerateMermaid(g *domain.FlowGraph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	entry := g.Entry()
	for _, node := range g.Nodes() {
		if node == nil {
			continue
		}
		id := node.NodeID()
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch node.(type) {
		case *domain.Collect, *domain.Record:
			opener, closer = "[/", "/]"
		case *domain.Decision:
			opener, closer = "{", "}"
		case *domain.Transfer:
			opener, closer = "[[", "]]"
		case *domain.End:
			opener, closer = "([", "])"
		}
		if id == entry {
			opener, closer = "((", "))"
		}

		label := id
		if d := timeoutOf(node); d > 0 {
			label = fmt.Sprintf("%s <br/> ⏱️ %s", id, d)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		switch v := node.(type) {
		case *domain.Decision:
			for _, m := range v.Matches {
				safeValue := strings.ReplaceAll(m.Value, "\"", "'")
				sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, safeValue, sanitizeMermaidID(m.Target)))
			}
			if v.Default != "" {
				sb.WriteString(fmt.Sprintf("    %s -. \"default\" .-> %s\n", safeID, sanitizeMermaidID(v.Default)))
			}
		default:
			for _, t := range domain.Targets(node) {
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(t)))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func timeoutOf(n domain.Node) time.Duration {
	switch v := n.(type) {
	case *domain.Collect:
		return v.Timeout
	case *domain.Transfer:
		return v.Timeout
	case *domain.Pause:
		return v.Length
	}
	return 0
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
