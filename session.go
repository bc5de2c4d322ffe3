package cadence

import (
	"log/slog"

	"github.com/aretw0/cadence/internal/runtime"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/google/uuid"
)

// Session is one playthrough of a program. It is driven entirely by its
// caller: nothing happens between calls. A Session must not be used from
// several goroutines at once; pkg/session.Manager serializes access for
// servers.
type Session struct {
	id      string
	gen     *generation
	machine *runtime.Machine
	logger  *slog.Logger
}

type sessionConfig struct {
	id   string
	vars domain.VariableSnapshot
}

// SessionOption configures a new session.
type SessionOption func(*sessionConfig)

// WithSessionID sets the session identifier instead of a random UUID.
func WithSessionID(id string) SessionOption {
	return func(c *sessionConfig) {
		c.id = id
	}
}

// WithInitialVariables restores a saved variable snapshot into the new session.
func WithInitialVariables(snap domain.VariableSnapshot) SessionOption {
	return func(c *sessionConfig) {
		c.vars = snap
	}
}

func newSessionID() string {
	return uuid.NewString()
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Program returns the program the session runs.
func (s *Session) Program() *domain.Program {
	return s.gen.program
}

// State returns the dialogue state.
func (s *Session) State() domain.DialogueState {
	return s.machine.State()
}

// Step pushes the host progress index of the current line and returns what
// changed. Events fired by this call are in the snapshot's PendingEvents.
func (s *Session) Step(progress int) (domain.Snapshot, error) {
	if err := s.checkStale(); err != nil {
		return s.machine.Peek(), err
	}
	return s.machine.Step(progress)
}

// SubmitChoice selects an option of the pending choice. The session moves on
// with the next Step.
func (s *Session) SubmitChoice(index int) error {
	if err := s.checkStale(); err != nil {
		return err
	}
	return s.machine.SubmitChoice(index)
}

// ResetLine completes the current line at once (skip), returning every event
// that had not fired yet, in order.
func (s *Session) ResetLine() ([]domain.EventPayload, error) {
	if err := s.checkStale(); err != nil {
		return nil, err
	}
	return s.machine.ResetLine()
}

// View returns the current snapshot without consuming pending events.
func (s *Session) View() domain.Snapshot {
	return s.machine.Peek()
}

// SaveVariables returns a serializable copy of the variables. It works in
// every state, including after a reload.
func (s *Session) SaveVariables() domain.VariableSnapshot {
	return s.machine.SaveVariables()
}

// LoadVariables replaces the variables with snap. A malformed snapshot is
// rejected whole.
func (s *Session) LoadVariables(snap domain.VariableSnapshot) error {
	if err := s.checkStale(); err != nil {
		return err
	}
	return s.machine.LoadVariables(snap)
}

// Checkpoint captures what is needed to resume the session elsewhere.
func (s *Session) Checkpoint() *domain.Checkpoint {
	return &domain.Checkpoint{
		SessionID: s.id,
		Program:   s.gen.program.Name,
		Variables: s.SaveVariables(),
		SavedAt:   now(),
	}
}

// Stale reports whether the program was reloaded under this session.
func (s *Session) Stale() bool {
	return s.gen.stale.Load()
}

func (s *Session) checkStale() error {
	if s.gen.stale.Load() {
		s.logger.Debug("rejecting call on reloaded program")
		return domain.ErrProgramReloaded
	}
	return nil
}
