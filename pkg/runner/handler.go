package runner

import (
	"context"

	"github.com/aretw0/cadence/pkg/domain"
)

// IOHandler is the presentation strategy of a Runner. It allows switching
// between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Present shows the session after a call. It is called on every tick,
	// so implementations only render what changed.
	Present(ctx context.Context, snap domain.Snapshot) error

	// Choose asks for one of the options and returns its zero-based index.
	// io.EOF means the player left.
	Choose(ctx context.Context, options []string) (int, error)

	// Notify reports a fired event that no dispatcher handler consumed.
	Notify(ctx context.Context, ev domain.EventPayload) error

	// SystemOutput presents a meta-message (errors, status) distinct from
	// dialogue text.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms a complete line before it is written, e.g.
// markdown to ANSI.
type ContentRenderer func(string) (string, error)
