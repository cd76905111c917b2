package domain

import "time"

// SessionStatus defines the lifecycle of a visitor conversation.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"     // Visitor is talking to the scenario
	SessionHandedOff SessionStatus = "handed_off" // A human operator took over
	SessionClosed    SessionStatus = "closed"     // End node reached
)

const (
	// MaxDiagnostics bounds the diagnostic trail kept on a session.
	MaxDiagnostics = 20
	// MaxHistory bounds the visited path kept on a session.
	MaxHistory = 100
)

// Session is the runtime snapshot of one visitor in one scenario.
type Session struct {
	ID            string `json:"id"`
	ScenarioID    string `json:"scenario_id"`
	CurrentNodeID string `json:"current_node_id"`

	// Memory holds remembered free-text answers keyed by node ID.
	Memory map[string]string `json:"memory,omitempty"`

	// History is the path of visited node IDs.
	History []string `json:"history,omitempty"`

	Status SessionStatus `json:"status"`

	// Diagnostics records structural problems met during traversal, for operators.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Diagnostic is an operator-visible record of a structural problem.
type Diagnostic struct {
	Code     string    `json:"code"`
	NodeID   string    `json:"node_id,omitempty"`
	BranchID string    `json:"branch_id,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// NewSession creates a session positioned before the start of a scenario.
func NewSession(id, scenarioID string) *Session {
	return &Session{
		ID:         id,
		ScenarioID: scenarioID,
		Memory:     make(map[string]string),
		Status:     SessionActive,
		UpdatedAt:  time.Now(),
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Memory = make(map[string]string, len(s.Memory))
	for k, v := range s.Memory {
		out.Memory[k] = v
	}
	out.History = append([]string(nil), s.History...)
	out.Diagnostics = append([]Diagnostic(nil), s.Diagnostics...)
	return &out
}

// Record appends a diagnostic, dropping the oldest entries past MaxDiagnostics.
func (s *Session) Record(d Diagnostic) {
	s.Diagnostics = append(s.Diagnostics, d)
	if over := len(s.Diagnostics) - MaxDiagnostics; over > 0 {
		s.Diagnostics = append([]Diagnostic(nil), s.Diagnostics[over:]...)
	}
}

// Visit moves the session to nodeID and appends it to the history, dropping
// the oldest entries past MaxHistory.
func (s *Session) Visit(nodeID string) {
	s.CurrentNodeID = nodeID
	s.History = append(s.History, nodeID)
	if over := len(s.History) - MaxHistory; over > 0 {
		s.History = append([]string(nil), s.History[over:]...)
	}
}
