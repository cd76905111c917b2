package domain

// NodeKind defines the traversal behaviour of a node.
type NodeKind string

const (
	// KindStart is the entry point. It renders nothing and follows its default edge.
	KindStart NodeKind = "start"
	// KindMessage renders its responses. Without branches it continues through its default edge.
	KindMessage NodeKind = "message"
	// KindQuestion renders its responses and waits for the visitor.
	KindQuestion NodeKind = "question"
	// KindCondition evaluates an expression and picks its first (true) or second (false) branch.
	KindCondition NodeKind = "condition"
	// KindAction emits a side effect and continues through its default edge.
	KindAction NodeKind = "action"
	// KindEnd is terminal.
	KindEnd NodeKind = "end"
)

// FreeInputMode controls whether a node accepts typed text.
type FreeInputMode string

const (
	FreeInputInherit  FreeInputMode = "inherit"
	FreeInputEnabled  FreeInputMode = "enabled"
	FreeInputDisabled FreeInputMode = "disabled"
)

// ResponseType is the content type of a rendered response.
type ResponseType string

const (
	ResponseText  ResponseType = "text"
	ResponseImage ResponseType = "image"
)

// ActionKind names the external effect of an action node.
type ActionKind string

const (
	ActionTransferHuman ActionKind = "transfer_human"
	ActionSendEmail     ActionKind = "send_email"
	ActionSendSlack     ActionKind = "send_slack"
	ActionSaveData      ActionKind = "save_data"
	ActionAPICall       ActionKind = "api_call"
)

// Node represents one step of a scenario.
type Node struct {
	ID string `json:"id" yaml:"id" validate:"required"`

	// ExternalID keeps the identifier the node had in an imported document.
	ExternalID string `json:"external_id,omitempty" yaml:"external_id,omitempty"`

	Position Position `json:"position" yaml:"position"`
	Kind     NodeKind `json:"kind" yaml:"kind" validate:"required,oneof=start message question condition action end"`

	Responses []Response `json:"responses,omitempty" yaml:"responses,omitempty" validate:"dive"`
	Branches  []Branch   `json:"branches,omitempty" yaml:"branches,omitempty" validate:"dive"`

	Settings *NodeSettings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Tree-form edge: this node is the target of ParentBranchID on ParentID.
	// An empty ParentBranchID makes it the parent's default edge.
	ParentID       string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	ParentBranchID string `json:"parent_branch_id,omitempty" yaml:"parent_branch_id,omitempty"`

	// Condition is an opaque expression evaluated by a ConditionEvaluator.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	Action *ActionSpec `json:"action,omitempty" yaml:"action,omitempty"`
}

// NodeSettings holds the per-node behaviour switches.
type NodeSettings struct {
	// NodeName is the unique human label jump branches resolve against.
	NodeName string `json:"node_name,omitempty" yaml:"node_name,omitempty"`

	RememberResponse  bool `json:"remember_response,omitempty" yaml:"remember_response,omitempty"`
	IsConversionPoint bool `json:"is_conversion_point,omitempty" yaml:"is_conversion_point,omitempty"`

	// DirectTransition registers DirectTransitionText as a global trigger:
	// typing it from anywhere in the scenario jumps here.
	DirectTransition     bool   `json:"direct_transition,omitempty" yaml:"direct_transition,omitempty"`
	DirectTransitionText string `json:"direct_transition_text,omitempty" yaml:"direct_transition_text,omitempty"`

	FreeInputMode FreeInputMode `json:"free_input_mode,omitempty" yaml:"free_input_mode,omitempty" validate:"omitempty,oneof=inherit enabled disabled"`
}

// Response is a piece of content shown to the visitor.
type Response struct {
	Type ResponseType `json:"type" yaml:"type" validate:"required,oneof=text image"`
	Text string       `json:"text,omitempty" yaml:"text,omitempty"`
	URL  string       `json:"url,omitempty" yaml:"url,omitempty" validate:"required_if=Type image"`
}

// ActionSpec describes the effect of an action node.
type ActionSpec struct {
	Kind   ActionKind     `json:"kind" yaml:"kind" validate:"required,oneof=transfer_human send_email send_slack save_data api_call"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Name returns the node name, or an empty string.
func (n *Node) Name() string {
	if n.Settings == nil {
		return ""
	}
	return n.Settings.NodeName
}

// Branch returns the branch with the given ID, or nil.
func (n *Node) Branch(id string) *Branch {
	for i := range n.Branches {
		if n.Branches[i].ID == id {
			return &n.Branches[i]
		}
	}
	return nil
}

// Trigger returns the direct transition text of the node, if enabled.
func (n *Node) Trigger() (string, bool) {
	if n.Settings == nil || !n.Settings.DirectTransition || n.Settings.DirectTransitionText == "" {
		return "", false
	}
	return n.Settings.DirectTransitionText, true
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Responses = append([]Response(nil), n.Responses...)
	out.Branches = append([]Branch(nil), n.Branches...)
	if n.Settings != nil {
		s := *n.Settings
		out.Settings = &s
	}
	if n.Action != nil {
		a := *n.Action
		if n.Action.Params != nil {
			a.Params = make(map[string]any, len(n.Action.Params))
			for k, v := range n.Action.Params {
				a.Params[k] = v
			}
		}
		out.Action = &a
	}
	return out
}
