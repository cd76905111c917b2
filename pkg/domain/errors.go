package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrScenarioNotFound is returned when a scenario ID or name cannot be found.
var ErrScenarioNotFound = errors.New("scenario not found")

// ErrVersionConflict is returned when a save is based on a stale scenario version.
var ErrVersionConflict = errors.New("scenario version conflict")

// ErrInvalidScenario is returned when a scenario has error-severity validation findings.
var ErrInvalidScenario = errors.New("invalid scenario")

// Structural errors. The scenario graph itself is broken.
var (
	ErrDanglingJump       = errors.New("jump target name matches no node")
	ErrAmbiguousJump      = errors.New("jump target name matches more than one node")
	ErrAmbiguousCondition = errors.New("condition node must have exactly two branches")
	ErrUnresolvedBranch   = errors.New("branch leads nowhere")
	ErrNoOutgoingEdge     = errors.New("node has no outgoing edge")
	ErrAmbiguousEdge      = errors.New("node has more than one default edge")
	ErrUnknownNode        = errors.New("node does not exist")
	ErrUnknownBranch      = errors.New("branch does not exist on current node")
	ErrConditionFailed    = errors.New("condition could not be evaluated")
	ErrTraversalLoop      = errors.New("traversal did not settle")
	ErrNoStartNode        = errors.New("scenario must have exactly one start node")
)

// Input errors. The visitor sent something the current node cannot take.
var (
	ErrInputNotAccepted = errors.New("free input is disabled on this node")
	ErrSessionInactive  = errors.New("session is no longer active")
)

// Validation and diagnostic codes.
const (
	CodeDanglingJump       = "DanglingJump"
	CodeAmbiguousJump      = "AmbiguousJump"
	CodeUnwiredBranch      = "UnwiredBranch"
	CodeInvalidField       = "InvalidField"
	CodeMissingStartNode   = "MissingStartNode"
	CodeMultipleStartNodes = "MultipleStartNodes"
	CodeDuplicateNodeID    = "DuplicateNodeID"
	CodeDuplicateNodeName  = "DuplicateNodeName"
	CodeDuplicateTrigger   = "DuplicateTrigger"
	CodeMissingTarget      = "MissingTarget"
	CodeAmbiguousCondition = "AmbiguousCondition"
	CodeAnonymousCycle     = "AnonymousCycle"
	CodeUnreachable        = "Unreachable"
	CodeEmptyResponses     = "EmptyResponses"

	CodeUnresolvedBranch = "UnresolvedBranch"
	CodeNoOutgoingEdge   = "NoOutgoingEdge"
	CodeAmbiguousEdge    = "AmbiguousEdge"
	CodeUnknownNode      = "UnknownNode"
	CodeConditionFailed  = "ConditionFailed"
	CodeTraversalLoop    = "TraversalLoop"
)

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is a single finding reported by scenario validation.
type ValidationError struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	BranchID string   `json:"branch_id,omitempty"`
	Message  string   `json:"message"`
}

func (e ValidationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s at node %q: %s", e.Code, e.NodeID, e.Message)
}

// StructuralError wraps a structural sentinel with the place it was met.
type StructuralError struct {
	Code     string
	NodeID   string
	BranchID string
	Err      error
}

func (e *StructuralError) Error() string {
	if e.BranchID != "" {
		return fmt.Sprintf("node %q branch %q: %v", e.NodeID, e.BranchID, e.Err)
	}
	return fmt.Sprintf("node %q: %v", e.NodeID, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// Diagnostic converts the error into an operator record.
func (e *StructuralError) Diagnostic() Diagnostic {
	return Diagnostic{
		Code:     e.Code,
		NodeID:   e.NodeID,
		BranchID: e.BranchID,
		Message:  e.Err.Error(),
	}
}
