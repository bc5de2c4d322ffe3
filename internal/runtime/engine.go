package runtime

import (
	"log/slog"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/binding"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/registry"
	"github.com/aretw0/cadence/pkg/variables"
)

const (
	// DefaultLoopGuard caps the instructions executed without entering a line
	// or reaching end.
	DefaultLoopGuard = 10000
	// DefaultMaxStackDepth bounds nested calls.
	DefaultMaxStackDepth = 32
)

// Machine is the resumable interpreter for one session. It never blocks and
// never reads a clock: every transition happens inside Step, SubmitChoice or
// ResetLine. A Machine is not safe for concurrent use.
type Machine struct {
	program   *domain.Program
	bindIndex map[string][]int

	vars         *variables.Store
	funcs        *registry.Registry
	interpolator Interpolator
	measure      LengthFunc
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	sessionID    string

	loopGuard int
	maxDepth  int

	state domain.DialogueState
	pc    int
	stack []int
	err   error
	line  *presentation

	pending []domain.EventPayload
	diags   []domain.Diagnostic
}

// presentation is the line currently on screen.
type presentation struct {
	pc       int
	lineID   string
	text     string
	length   int
	progress int
	table    *binding.Table
	complete bool
	released bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithLoopGuard overrides DefaultLoopGuard. Non-positive values are ignored.
func WithLoopGuard(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.loopGuard = n
		}
	}
}

// WithMaxStackDepth overrides DefaultMaxStackDepth. Non-positive values are ignored.
func WithMaxStackDepth(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxDepth = n
		}
	}
}

// WithFunctions exposes host functions to call conditions.
func WithFunctions(r *registry.Registry) Option {
	return func(m *Machine) {
		m.funcs = r
	}
}

// WithInterpolator replaces the default {name} interpolator.
func WithInterpolator(fn Interpolator) Option {
	return func(m *Machine) {
		if fn != nil {
			m.interpolator = fn
		}
	}
}

// WithLengthFunc replaces the default grapheme-count line length.
func WithLengthFunc(fn LengthFunc) Option {
	return func(m *Machine) {
		if fn != nil {
			m.measure = fn
		}
	}
}

// WithSessionID tags hooks and logs with a session identifier.
func WithSessionID(id string) Option {
	return func(m *Machine) {
		m.sessionID = id
	}
}

// WithVariables makes the machine use an existing store instead of a fresh
// one. Program declarations are still registered on it; names it already
// holds keep their values.
func WithVariables(store *variables.Store) Option {
	return func(m *Machine) {
		m.vars = store
	}
}

// NewMachine creates an interpreter over a program already accepted by Validate.
func NewMachine(program *domain.Program, opts ...Option) *Machine {
	m := &Machine{
		program:      program,
		interpolator: Interpolate,
		measure:      GraphemeLength,
		logger:       logging.NewNop(),
		loopGuard:    DefaultLoopGuard,
		maxDepth:     DefaultMaxStackDepth,
		state:        domain.StateLoading,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.vars == nil {
		m.vars = variables.New()
	}
	m.vars.Declare(program.Variables, program.Enums)

	m.bindIndex = make(map[string][]int)
	for i, ins := range program.Instructions {
		if ins.Bound() {
			m.bindIndex[ins.LineID] = append(m.bindIndex[ins.LineID], i)
		}
	}
	m.state = domain.StateIdle
	return m
}

// Program returns the program being interpreted.
func (m *Machine) Program() *domain.Program {
	return m.program
}

// Variables returns the store owned by this machine.
func (m *Machine) Variables() *variables.Store {
	return m.vars
}

// State returns the current dialogue state.
func (m *Machine) State() domain.DialogueState {
	return m.state
}

// PC returns the program counter.
func (m *Machine) PC() int {
	return m.pc
}

// Err returns the fatal error of an errored machine.
func (m *Machine) Err() error {
	return m.err
}

// Snapshot reports the current view and drains pending events and diagnostics.
func (m *Machine) Snapshot() domain.Snapshot {
	snap := m.Peek()
	snap.PendingEvents = m.pending
	snap.Diagnostics = m.diags
	m.pending = nil
	m.diags = nil
	return snap
}

// Peek reports the current view without draining anything.
func (m *Machine) Peek() domain.Snapshot {
	snap := domain.Snapshot{State: m.state}

	if l := m.line; l != nil {
		snap.LineID = l.lineID
		snap.Text = l.text
		snap.Progress = l.progress
		snap.LineLength = l.length
		snap.LineComplete = l.complete
	}
	if m.state == domain.StateAwaitingChoice {
		opts := m.program.Instructions[m.pc].Options
		snap.Options = make([]string, len(opts))
		for i, o := range opts {
			snap.Options[i] = o.Text
		}
	}
	return snap
}

// SaveVariables returns the variable snapshot.
func (m *Machine) SaveVariables() domain.VariableSnapshot {
	return m.vars.Snapshot()
}

// LoadVariables replaces the variable set. Malformed snapshots are rejected
// whole with a TypeMismatchError.
func (m *Machine) LoadVariables(snap domain.VariableSnapshot) error {
	if err := m.terminalErr(); err != nil {
		return err
	}
	return m.vars.Restore(snap)
}

func (m *Machine) terminalErr() error {
	switch m.state {
	case domain.StateFinished:
		return domain.ErrSessionFinished
	case domain.StateErrored:
		return m.err
	}
	return nil
}
