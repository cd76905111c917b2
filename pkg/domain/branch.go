package domain

// BranchKind defines what selecting a branch does.
type BranchKind string

const (
	// BranchButton moves to NextNodeID, or to the node wired to this branch.
	BranchButton BranchKind = "button"
	// BranchLink opens URL and keeps the visitor on the current node.
	BranchLink BranchKind = "link"
	// BranchJump moves to the node whose name equals TargetNodeName.
	BranchJump BranchKind = "jump"
	// BranchFreeText is followed after the visitor typed an accepted answer.
	BranchFreeText BranchKind = "free_text_prompt"
	// BranchRestart returns to the start node and clears remembered answers.
	BranchRestart BranchKind = "restart"
)

// Branch is a selectable option offered by a node.
type Branch struct {
	ID    string     `json:"id" yaml:"id" validate:"required"`
	Label string     `json:"label" yaml:"label"`
	Kind  BranchKind `json:"kind" yaml:"kind" validate:"required,oneof=button link jump free_text_prompt restart"`

	NextNodeID string `json:"next_node_id,omitempty" yaml:"next_node_id,omitempty"`

	URL       string `json:"url,omitempty" yaml:"url,omitempty" validate:"required_if=Kind link,omitempty,url"`
	NewWindow bool   `json:"new_window,omitempty" yaml:"new_window,omitempty"`

	TargetNodeName string `json:"target_node_name,omitempty" yaml:"target_node_name,omitempty" validate:"required_if=Kind jump"`
}

// IsContinuation reports whether b is an unlabelled jump or restart. Nodes
// that do not wait for the visitor follow such a branch on their own, as if it
// were their default edge.
func (b Branch) IsContinuation() bool {
	return b.Label == "" && (b.Kind == BranchJump || b.Kind == BranchRestart)
}
