package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/concierge/internal/compiler"
	"github.com/aretw0/concierge/pkg/domain"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFor builds the overlay of a session.
func OverlayFor(s *domain.Session) *GraphOverlay {
	if s == nil {
		return nil
	}
	return &GraphOverlay{VisitedNodes: s.History, CurrentNode: s.CurrentNodeID}
}

// GenerateMermaid produces a Mermaid flowchart of a compiled scenario.
// Shapes follow the node kind:
// - Start: ((Circle)), End: (((Double circle)))
// - Question: [/Parallelogram/], Condition: {Rhombus}, Action: [[Subroutine]]
// - Message: [Rectangle]
// Anonymous edges are solid, jumps and restarts dotted, links open a flag shape.
func GenerateMermaid(g *compiler.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch node.Kind {
		case domain.KindStart:
			opener, closer = "((", "))"
		case domain.KindEnd:
			opener, closer = "(((", ")))"
		case domain.KindQuestion:
			opener, closer = "[/", "/]"
		case domain.KindCondition:
			opener, closer = "{", "}"
		case domain.KindAction:
			opener, closer = "[[", "]]"
		}

		name := node.Name()
		if name == "" {
			name = node.ID
		}
		label := escape(name)
		switch {
		case node.Kind == domain.KindCondition && node.Condition != "":
			label += "<br/>" + escape(node.Condition)
		case node.Action != nil:
			label += "<br/>" + escape(string(node.Action.Kind))
		}
		if text, ok := node.Trigger(); ok {
			label += "<br/>⚡ " + escape(text)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		for _, to := range g.Targets(node.ID, compiler.DefaultHandle) {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(to))
		}

		for _, b := range node.Branches {
			writeBranch(&sb, g, node, b)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func writeBranch(sb *strings.Builder, g *compiler.Graph, node *domain.Node, b domain.Branch) {
	safeID := sanitizeMermaidID(node.ID)
	label := escape(b.Label)
	if label == "" {
		label = string(b.Kind)
	}

	switch b.Kind {
	case domain.BranchJump:
		targets := g.ResolveName(b.TargetNodeName)
		if len(targets) == 0 {
			missing := sanitizeMermaidID(node.ID + "_" + b.ID + "_missing")
			fmt.Fprintf(sb, "    %s>\"missing: %s\"]\n", missing, escape(b.TargetNodeName))
			fmt.Fprintf(sb, "    %s -. \"%s\" .-> %s\n", safeID, label, missing)
			return
		}
		for _, to := range targets {
			fmt.Fprintf(sb, "    %s -. \"%s\" .-> %s\n", safeID, label, sanitizeMermaidID(to))
		}
	case domain.BranchRestart:
		for _, to := range g.Starts() {
			fmt.Fprintf(sb, "    %s -. \"↺ %s\" .-> %s\n", safeID, label, sanitizeMermaidID(to))
		}
	case domain.BranchLink:
		link := sanitizeMermaidID(node.ID + "_" + b.ID + "_link")
		fmt.Fprintf(sb, "    %s>\"%s\"]\n", link, escape(b.URL))
		fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", safeID, label, link)
	default:
		for _, to := range g.Targets(node.ID, b.ID) {
			fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", safeID, label, sanitizeMermaidID(to))
		}
	}
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
