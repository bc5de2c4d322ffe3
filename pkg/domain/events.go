package domain

import (
	"time"
)

// HookType defines the category of a lifecycle event.
type HookType string

const (
	HookLineEnter  HookType = "line_enter"
	HookEventFired HookType = "event_fired"
	HookChoice     HookType = "choice"
	HookDiagnostic HookType = "diagnostic"
	HookFinish     HookType = "finish"
	HookError      HookType = "error"
)

// HookBase contains common fields for all lifecycle events.
type HookBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      HookType  `json:"type"`
	Program   string    `json:"program"`
	SessionID string    `json:"session_id,omitempty"`
	PC        int       `json:"pc"`
}

// LineEvent is raised when a line starts presenting.
type LineEvent struct {
	HookBase
	LineID string `json:"line_id"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// FiredEvent is raised for every event delivered to the host.
type FiredEvent struct {
	HookBase
	LineID    string       `json:"line_id,omitempty"`
	Threshold int          `json:"threshold"`
	Progress  int          `json:"progress"`
	Payload   EventPayload `json:"payload"`
}

// ChoiceEvent is raised when a choice is submitted.
type ChoiceEvent struct {
	HookBase
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Target int    `json:"target"`
}

// DiagnosticEvent wraps a recoverable diagnostic.
type DiagnosticEvent struct {
	HookBase
	Diagnostic Diagnostic `json:"diagnostic"`
}

// ErrorEvent is raised when a session enters the errored state.
type ErrorEvent struct {
	HookBase
	Err error `json:"-"`
}

// LifecycleHooks defines callbacks for runtime observability.
// Hooks run synchronously inside the session call that triggered them.
type LifecycleHooks struct {
	OnLineEnter  func(*LineEvent)
	OnEventFired func(*FiredEvent)
	OnChoice     func(*ChoiceEvent)
	OnDiagnostic func(*DiagnosticEvent)
	OnFinish     func(*HookBase)
	OnError      func(*ErrorEvent)
}

// Merge combines two hook sets; both callbacks run, h first.
func (h LifecycleHooks) Merge(o LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnLineEnter:  chain(h.OnLineEnter, o.OnLineEnter),
		OnEventFired: chain(h.OnEventFired, o.OnEventFired),
		OnChoice:     chain(h.OnChoice, o.OnChoice),
		OnDiagnostic: chain(h.OnDiagnostic, o.OnDiagnostic),
		OnFinish:     chain(h.OnFinish, o.OnFinish),
		OnError:      chain(h.OnError, o.OnError),
	}
}

func chain[T any](a, b func(T)) func(T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(v T) {
		a(v)
		b(v)
	}
}
