package observability

import (
	"log/slog"

	"github.com/aretw0/cadence/pkg/domain"
)

// LogHooks logs every lifecycle event at Info, diagnostics at Warn and fatal
// errors at Error.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	base := func(b domain.HookBase) []any {
		return []any{"program", b.Program, "session_id", b.SessionID, "pc", b.PC}
	}
	return domain.LifecycleHooks{
		OnLineEnter: func(e *domain.LineEvent) {
			logger.Info("line_enter", append(base(e.HookBase), "line_id", e.LineID, "length", e.Length)...)
		},
		OnEventFired: func(e *domain.FiredEvent) {
			logger.Info("event_fired", append(base(e.HookBase), "event", e.Payload.ID, "line_id", e.LineID, "threshold", e.Threshold)...)
		},
		OnChoice: func(e *domain.ChoiceEvent) {
			logger.Info("choice", append(base(e.HookBase), "index", e.Index, "text", e.Text)...)
		},
		OnDiagnostic: func(e *domain.DiagnosticEvent) {
			logger.Warn("diagnostic", append(base(e.HookBase), "kind", e.Diagnostic.Kind, "message", e.Diagnostic.Message)...)
		},
		OnFinish: func(e *domain.HookBase) {
			logger.Info("finish", base(*e)...)
		},
		OnError: func(e *domain.ErrorEvent) {
			logger.Error("session_error", append(base(e.HookBase), "err", e.Err)...)
		},
	}
}
