package domain

// DialogueState is the externally visible state of a session.
type DialogueState string

const (
	StateIdle           DialogueState = "idle"
	StateLoading        DialogueState = "loading"
	StatePresenting     DialogueState = "presenting"
	StateAwaitingChoice DialogueState = "awaiting_choice"
	StateBranching      DialogueState = "branching"
	StateFinished       DialogueState = "finished"
	StateErrored        DialogueState = "errored"
)

// Terminal reports whether no further progress is possible.
func (s DialogueState) Terminal() bool {
	return s == StateFinished || s == StateErrored
}

// DiagnosticKind classifies a recoverable runtime condition.
type DiagnosticKind string

const (
	DiagUnsetVariable   DiagnosticKind = "unset_variable"
	DiagTypeMismatch    DiagnosticKind = "type_mismatch"
	DiagUnknownFunction DiagnosticKind = "unknown_function"
	DiagFunctionFailed  DiagnosticKind = "function_failed"
)

// Diagnostic is a recoverable condition observed while interpreting.
// It never changes the session state.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	PC      int            `json:"pc"`
	Var     string         `json:"var,omitempty"`
	Message string         `json:"message"`
}

// Snapshot is what a session reports to the host after each call.
// PendingEvents and Diagnostics hold only what happened during that call.
type Snapshot struct {
	State         DialogueState  `json:"state"`
	LineID        string         `json:"line_id,omitempty"`
	Text          string         `json:"text,omitempty"`
	Options       []string       `json:"options,omitempty"`
	PendingEvents []EventPayload `json:"pending_events,omitempty"`
	Progress      int            `json:"progress"`
	LineLength    int            `json:"line_length"`
	LineComplete  bool           `json:"line_complete"`
	Diagnostics   []Diagnostic   `json:"diagnostics,omitempty"`
}
