package compiler

import (
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
)

// DefaultHandle identifies a node's default ("next") edge.
const DefaultHandle = ""

type edgeKey struct {
	from   string
	handle string
}

// Graph is a scenario compiled for traversal. It is built once per loaded
// scenario version and is read-only afterwards, so it is safe to share.
type Graph struct {
	Scenario *domain.Scenario

	nodes    map[string]*domain.Node
	order    []string
	names    map[string][]string
	triggers map[string]string
	edges    map[edgeKey][]string
	starts   []string
}

// Compile indexes a scenario. It never fails: structural problems are left
// for the validator and surface at traversal time as structural errors.
func Compile(sc *domain.Scenario) *Graph {
	g := &Graph{
		Scenario: sc,
		nodes:    make(map[string]*domain.Node, len(sc.Nodes)),
		names:    make(map[string][]string),
		triggers: make(map[string]string),
		edges:    make(map[edgeKey][]string),
	}

	for i := range sc.Nodes {
		n := &sc.Nodes[i]
		if _, dup := g.nodes[n.ID]; dup {
			continue
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)

		if n.Kind == domain.KindStart {
			g.starts = append(g.starts, n.ID)
		}
		if name := n.Name(); name != "" {
			g.names[name] = append(g.names[name], n.ID)
		}
		if text, ok := n.Trigger(); ok {
			if _, taken := g.triggers[text]; !taken {
				g.triggers[text] = n.ID
			}
		}
	}

	// Edge sources, in precedence order: explicit NextNodeID, tree children, connections.
	for _, id := range g.order {
		n := g.nodes[id]
		for _, b := range n.Branches {
			if b.NextNodeID != "" && (b.Kind == domain.BranchButton || b.Kind == domain.BranchFreeText) {
				g.addEdge(n.ID, b.ID, b.NextNodeID)
			}
		}
	}
	for _, id := range g.order {
		n := g.nodes[id]
		if n.ParentID != "" {
			g.addEdge(n.ParentID, n.ParentBranchID, n.ID)
		}
	}
	for _, c := range sc.Connections {
		g.addEdge(c.Source, c.SourceHandle, c.Target)
	}

	return g
}

func (g *Graph) addEdge(from, handle, to string) {
	k := edgeKey{from: from, handle: handle}
	for _, existing := range g.edges[k] {
		if existing == to {
			return
		}
	}
	g.edges[k] = append(g.edges[k], to)
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*domain.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in declaration order.
func (g *Graph) Nodes() []*domain.Node {
	out := make([]*domain.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of distinct nodes.
func (g *Graph) Len() int { return len(g.order) }

// Start returns the ID of the single start node.
func (g *Graph) Start() (string, error) {
	switch len(g.starts) {
	case 1:
		return g.starts[0], nil
	case 0:
		return "", &domain.StructuralError{Code: domain.CodeMissingStartNode, Err: domain.ErrNoStartNode}
	default:
		return "", &domain.StructuralError{Code: domain.CodeMultipleStartNodes, NodeID: g.starts[1], Err: domain.ErrNoStartNode}
	}
}

// Starts returns every start node ID.
func (g *Graph) Starts() []string { return g.starts }

// ResolveName returns the IDs of the nodes carrying the given name.
func (g *Graph) ResolveName(name string) []string { return g.names[name] }

// Names returns the name index.
func (g *Graph) Names() map[string][]string { return g.names }

// Trigger looks up a direct transition by literal text.
func (g *Graph) Trigger(text string) (string, bool) {
	id, ok := g.triggers[text]
	return id, ok
}

// Targets resolves (nodeID, handle) to the wired targets. An empty handle is the default edge.
func (g *Graph) Targets(nodeID, handle string) []string {
	return g.edges[edgeKey{from: nodeID, handle: handle}]
}

// Next resolves the single default edge of a node.
func (g *Graph) Next(nodeID string) (string, error) {
	targets := g.Targets(nodeID, DefaultHandle)
	switch len(targets) {
	case 1:
		return targets[0], nil
	case 0:
		return "", &domain.StructuralError{Code: domain.CodeNoOutgoingEdge, NodeID: nodeID, Err: domain.ErrNoOutgoingEdge}
	default:
		return "", &domain.StructuralError{
			Code:   domain.CodeAmbiguousEdge,
			NodeID: nodeID,
			Err:    fmt.Errorf("%w: %v", domain.ErrAmbiguousEdge, targets),
		}
	}
}

// Successors returns every anonymous target of a node (all handles), excluding jumps.
func (g *Graph) Successors(nodeID string) []string {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	add := func(ids []string) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	add(g.Targets(nodeID, DefaultHandle))
	for _, b := range n.Branches {
		add(g.Targets(nodeID, b.ID))
	}
	return out
}

// DanglingEdges returns edge targets that name no node, keyed by source node.
func (g *Graph) DanglingEdges() map[string][]string {
	out := map[string][]string{}
	for k, targets := range g.edges {
		for _, t := range targets {
			if _, ok := g.nodes[t]; !ok {
				out[k.from] = append(out[k.from], t)
			}
		}
	}
	return out
}

// HandlesOf returns the non-default edge handles leaving a node.
func (g *Graph) HandlesOf(nodeID string) []string {
	var out []string
	for k := range g.edges {
		if k.from == nodeID && k.handle != DefaultHandle {
			out = append(out, k.handle)
		}
	}
	return out
}
