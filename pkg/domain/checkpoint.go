package domain

import "time"

// Checkpoint is the persisted form of a session: which program it runs and
// its variable snapshot. Interpreter position is deliberately not persisted;
// a resumed session restarts the program with the saved variables.
type Checkpoint struct {
	SessionID string           `json:"session_id"`
	Program   string           `json:"program"`
	Variables VariableSnapshot `json:"variables"`
	SavedAt   time.Time        `json:"saved_at"`
}

// Clone returns a copy that shares no mutable state with c.
func (c *Checkpoint) Clone() *Checkpoint {
	out := *c
	out.Variables = c.Variables.Clone()
	return &out
}
