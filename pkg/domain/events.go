package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventSideEffect EventType = "side_effect"
	EventDiagnostic EventType = "diagnostic"
)

// EventBase contains common fields for all lifecycle events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	ScenarioID string    `json:"scenario_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeKind NodeKind `json:"node_kind"`
}

// EffectEvent represents a side effect produced by a transition.
type EffectEvent struct {
	EventBase
	Effect SideEffect `json:"effect"`
}

// DiagnosticEvent represents a structural problem met during traversal.
type DiagnosticEvent struct {
	EventBase
	Diagnostic Diagnostic `json:"diagnostic"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnSideEffect func(context.Context, *EffectEvent)
	OnDiagnostic func(context.Context, *DiagnosticEvent)
}
