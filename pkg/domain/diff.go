package domain

// SessionDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentNodeID *string        `json:"current_node_id,omitempty"`
	Status        *SessionStatus `json:"status,omitempty"`

	// Memory contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Memory map[string]*string `json:"memory,omitempty"`

	// History contains the node IDs appended since the old snapshot.
	History *HistoryDelta `json:"history,omitempty"`
}

// HistoryDelta represents changes to the history stack.
type HistoryDelta struct {
	Appended []string `json:"appended"`
	// Reset is set when the history was rewritten rather than appended to (restart).
	Reset bool `json:"reset,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{SessionID: newSession.ID}

	if oldSession == nil || oldSession.CurrentNodeID != newSession.CurrentNodeID {
		diff.CurrentNodeID = &newSession.CurrentNodeID
	}
	if oldSession == nil || oldSession.Status != newSession.Status {
		diff.Status = &newSession.Status
	}
	diff.Memory = diffMemory(oldSession, newSession)
	diff.History = diffHistory(oldSession, newSession)

	if diff.CurrentNodeID == nil &&
		diff.Status == nil &&
		len(diff.Memory) == 0 &&
		diff.History == nil {
		return nil
	}
	return diff
}

func diffMemory(old, new *Session) map[string]*string {
	delta := make(map[string]*string)

	if old == nil {
		for k, v := range new.Memory {
			v := v
			delta[k] = &v
		}
	} else {
		for k, v := range new.Memory {
			if ov, ok := old.Memory[k]; !ok || ov != v {
				v := v
				delta[k] = &v
			}
		}
		for k := range old.Memory {
			if _, ok := new.Memory[k]; !ok {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffHistory(old, new *Session) *HistoryDelta {
	if len(new.History) == 0 {
		if old != nil && len(old.History) > 0 {
			return &HistoryDelta{Reset: true}
		}
		return nil
	}
	if old == nil {
		return &HistoryDelta{Appended: new.History}
	}

	oldLen, newLen := len(old.History), len(new.History)
	if newLen >= oldLen {
		for i := range old.History {
			if old.History[i] != new.History[i] {
				return &HistoryDelta{Appended: new.History, Reset: true}
			}
		}
		if newLen == oldLen {
			return nil
		}
		return &HistoryDelta{Appended: new.History[oldLen:]}
	}
	return &HistoryDelta{Appended: new.History, Reset: true}
}
