package domain

import (
	"errors"
	"fmt"
)

// ErrScriptCorrupt is returned when a program is structurally invalid or the
// interpreter reaches an unrecoverable situation. The session becomes unusable.
var ErrScriptCorrupt = errors.New("script corrupt")

// ErrInvalidChoice is returned when a choice index is out of range.
var ErrInvalidChoice = errors.New("invalid choice")

// ErrTypeMismatch is returned when an operation mixes incompatible value types.
var ErrTypeMismatch = errors.New("type mismatch")

// ErrSessionFinished is returned by any operation on a session that reached End.
var ErrSessionFinished = errors.New("session finished")

// ErrUnsetVariable is reported when an unset variable is read.
var ErrUnsetVariable = errors.New("unset variable")

// ErrNotAwaitingChoice is returned when a choice is submitted outside of a choice point.
var ErrNotAwaitingChoice = errors.New("session is not awaiting a choice")

// ErrProgramReloaded is returned by sessions whose program was replaced by a reload.
var ErrProgramReloaded = errors.New("program reloaded")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrProgramNotFound is returned when a loader has no program under the given name.
var ErrProgramNotFound = errors.New("program not found")

// ScriptCorruptError describes why a program was rejected or why execution failed.
type ScriptCorruptError struct {
	PC     int
	LineID string
	Reason string
}

func (e *ScriptCorruptError) Error() string {
	if e.LineID != "" {
		return fmt.Sprintf("script corrupt at instruction %d (line %q): %s", e.PC, e.LineID, e.Reason)
	}
	return fmt.Sprintf("script corrupt at instruction %d: %s", e.PC, e.Reason)
}

func (e *ScriptCorruptError) Unwrap() error { return ErrScriptCorrupt }

// InvalidChoiceError carries the rejected index and the number of options.
type InvalidChoiceError struct {
	Index   int
	Options int
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("invalid choice %d: %d option(s) available", e.Index, e.Options)
}

func (e *InvalidChoiceError) Unwrap() error { return ErrInvalidChoice }

// TypeMismatchError describes an operation that mixed incompatible types.
type TypeMismatchError struct {
	Variable string
	Expected ValueType
	Actual   ValueType
	Detail   string
}

func (e *TypeMismatchError) Error() string {
	msg := "type mismatch"
	if e.Variable != "" {
		msg += fmt.Sprintf(" on %q", e.Variable)
	}
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(": expected %s, got %s", orUnknown(e.Expected), orUnknown(e.Actual))
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// UnsetVariableError reports a read of a variable that was never set.
type UnsetVariableError struct {
	Variable string
}

func (e *UnsetVariableError) Error() string {
	return fmt.Sprintf("variable %q is not set", e.Variable)
}

func (e *UnsetVariableError) Unwrap() error { return ErrUnsetVariable }

func orUnknown(t ValueType) string {
	if t == "" {
		return "unknown"
	}
	return string(t)
}
