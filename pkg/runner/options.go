package runner

import (
	"log/slog"
	"time"

	"github.com/aretw0/cadence/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithStore configures the CheckpointStore for persistence.
func WithStore(store ports.CheckpointStore) Option {
	return func(r *Runner) {
		r.Store = store
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithHandler configures the presentation strategy.
func WithHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithDispatcher configures where fired events go.
func WithDispatcher(d ports.EventDispatcher) Option {
	return func(r *Runner) {
		r.Dispatcher = d
	}
}

// WithProgress configures the progress source.
func WithProgress(src ProgressSource) Option {
	return func(r *Runner) {
		r.Progress = src
	}
}

// WithInterval sets the delay between progress ticks.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.Interval = d
	}
}

// WithPause sets the delay after a line completes before moving on.
func WithPause(d time.Duration) Option {
	return func(r *Runner) {
		r.Pause = d
	}
}

// WithSkip sets a channel that completes the current line when it receives.
func WithSkip(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.Skip = ch
	}
}
