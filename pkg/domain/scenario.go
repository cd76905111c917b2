package domain

import "time"

// Scenario is a named, versioned conversation graph.
// Nodes may be linked in tree form (ParentID/ParentBranchID), in graph form
// (Connections) or through Branch.NextNodeID. All three resolve to the same edges.
type Scenario struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Version is incremented by repositories on every successful save.
	Version int `json:"version" yaml:"version"`

	// FreeInputDefault is the effective mode of nodes whose FreeInputMode is "inherit".
	FreeInputDefault FreeInputMode `json:"free_input_default,omitempty" yaml:"free_input_default,omitempty" validate:"omitempty,oneof=enabled disabled"`

	Nodes       []Node       `json:"nodes" yaml:"nodes" validate:"dive"`
	Connections []Connection `json:"connections,omitempty" yaml:"connections,omitempty" validate:"dive"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Connection is an explicit edge between two nodes.
// An empty SourceHandle marks the source node's default ("next") edge,
// otherwise it carries the ID of the branch the edge belongs to.
type Connection struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Source       string `json:"source" yaml:"source" validate:"required"`
	SourceHandle string `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
	Target       string `json:"target" yaml:"target" validate:"required"`
}

// Position is the editor coordinate of a node. It carries no runtime meaning.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node returns the node with the given ID, or nil.
func (s *Scenario) Node(id string) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i]
		}
	}
	return nil
}

// EffectiveFreeInput resolves the inherit mode of a node against the scenario default.
func (s *Scenario) EffectiveFreeInput(n *Node) FreeInputMode {
	mode := FreeInputInherit
	if n != nil && n.Settings != nil {
		mode = n.Settings.FreeInputMode
	}
	if mode == FreeInputInherit || mode == "" {
		mode = s.FreeInputDefault
	}
	if mode == FreeInputInherit || mode == "" {
		return FreeInputEnabled
	}
	return mode
}

// Clone returns a deep copy of the scenario.
func (s *Scenario) Clone() *Scenario {
	if s == nil {
		return nil
	}
	out := *s
	out.Nodes = make([]Node, len(s.Nodes))
	for i := range s.Nodes {
		out.Nodes[i] = s.Nodes[i].Clone()
	}
	out.Connections = append([]Connection(nil), s.Connections...)
	return &out
}
