package domain

// EventKind is the type of visitor input.
type EventKind string

const (
	EventStart        EventKind = "start"
	EventSelectBranch EventKind = "select_branch"
	EventFreeText     EventKind = "free_text"
)

// Event is a single visitor input delivered to the engine.
type Event struct {
	Kind     EventKind `json:"kind"`
	BranchID string    `json:"branch_id,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// Start begins (or restarts) a conversation at the start node.
func Start() Event { return Event{Kind: EventStart} }

// SelectBranch selects a branch of the current node.
func SelectBranch(branchID string) Event { return Event{Kind: EventSelectBranch, BranchID: branchID} }

// FreeText delivers typed text.
func FreeText(text string) Event { return Event{Kind: EventFreeText, Text: text} }

// SideEffectKind names what the host must do after a transition.
type SideEffectKind string

const (
	EffectOpenLink        SideEffectKind = "open_link"
	EffectReRender        SideEffectKind = "re_render"
	EffectEligibleToClose SideEffectKind = "conversation_eligible_for_close"
	EffectAction          SideEffectKind = "action"
	EffectRestarted       SideEffectKind = "restarted"
	EffectInputCaptured   SideEffectKind = "input_captured"
	EffectConversion      SideEffectKind = "conversion"
)

// SideEffect is an instruction for the host. The engine never performs it.
type SideEffect struct {
	Kind   SideEffectKind `json:"kind"`
	NodeID string         `json:"node_id,omitempty"`

	// OpenLink
	URL       string `json:"url,omitempty"`
	NewWindow bool   `json:"new_window,omitempty"`

	// Action
	Action ActionKind     `json:"action,omitempty"`
	Params map[string]any `json:"params,omitempty"`

	// InputCaptured
	Text string `json:"text,omitempty"`
}
