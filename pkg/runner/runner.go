package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/ports"
)

// DefaultInterval is the delay between progress ticks.
const DefaultInterval = 30 * time.Millisecond

// Runner drives one session to completion: it pushes progress from a
// ProgressSource, dispatches fired events, presents snapshots through an
// IOHandler and submits the player's choices.
type Runner struct {
	// Handler is the presentation strategy. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Dispatcher receives fired events. Defaults to forwarding every event
	// to Handler.Notify.
	Dispatcher ports.EventDispatcher

	// Progress produces the progress index of each line. Defaults to a
	// Typewriter revealing one grapheme per tick.
	Progress ProgressSource

	// Interval is the delay between ticks; Pause the delay after a line completes.
	Interval time.Duration
	Pause    time.Duration

	// Skip completes the current line at once when it receives.
	Skip <-chan struct{}

	// Store saves a checkpoint after each choice, at the end and on
	// interruption. If nil, sessions are ephemeral.
	Store ports.CheckpointStore

	Logger *slog.Logger
}

// NewRunner creates a Runner with defaults applied, then opts.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Interval: DefaultInterval,
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) resolve() {
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	if r.Dispatcher == nil {
		d := NewDispatcher(WithDispatcherLogger(r.Logger))
		d.Fallback(r.Handler.Notify)
		r.Dispatcher = d
	}
	if r.Progress == nil {
		r.Progress = NewTypewriter(1)
	}
}

// Run plays sess until it finishes, fails, the player leaves (io.EOF from
// the handler, reported as nil) or ctx is cancelled (including SIGINT).
func (r *Runner) Run(ctx context.Context, sess *cadence.Session) error {
	r.resolve()

	signals := NewSignalManager(ctx)
	defer signals.Stop()
	ctx = signals.Context()

	logger := r.Logger.With("session_id", sess.ID(), "program", sess.Program().Name)

	var (
		pushed   int
		lineID   string
		complete bool
		started  bool
	)

	for {
		snap, err := sess.Step(pushed)
		r.dispatch(ctx, logger, snap.PendingEvents)
		if err != nil {
			r.save(logger, sess)
			if errors.Is(err, domain.ErrSessionFinished) {
				return nil
			}
			return fmt.Errorf("step failed: %w", err)
		}

		if snap.State == domain.StatePresenting || snap.State == domain.StateAwaitingChoice {
			if !started || snap.LineID != lineID || snap.Progress < pushed || (complete && !snap.LineComplete) {
				r.Progress.Start(snap.LineID, snap.LineLength)
				logger.Debug("line entered", "line_id", snap.LineID, "length", snap.LineLength)
				pushed = snap.Progress
				started = true
			}
			lineID = snap.LineID
			complete = snap.LineComplete
		}

		if err := r.Handler.Present(ctx, snap); err != nil {
			return fmt.Errorf("present failed: %w", err)
		}

		switch snap.State {
		case domain.StateFinished:
			r.save(logger, sess)
			logger.Debug("session finished")
			return nil

		case domain.StateAwaitingChoice:
			if err := r.choose(ctx, signals, logger, sess, snap.Options); err != nil {
				if errors.Is(err, io.EOF) {
					r.save(logger, sess)
					return nil
				}
				return r.interrupted(logger, sess, err)
			}
			r.save(logger, sess)
			pushed = 0
			started = false
			continue
		}

		wait := r.Interval
		if complete {
			wait = r.Pause
		}

		select {
		case <-ctx.Done():
			return r.interrupted(logger, sess, ctx.Err())
		case <-r.Skip:
			if complete {
				continue
			}
			events, err := sess.ResetLine()
			if err != nil {
				return fmt.Errorf("skip failed: %w", err)
			}
			r.dispatch(ctx, logger, events)
			view := sess.View()
			pushed = max(pushed, view.Progress)
			complete = view.LineComplete
			if err := r.Handler.Present(ctx, view); err != nil {
				return fmt.Errorf("present failed: %w", err)
			}
		case <-time.After(wait):
			if !complete {
				pushed = max(pushed, r.Progress.Tick())
			}
		}
	}
}

// choose asks until the runtime accepts a choice.
func (r *Runner) choose(ctx context.Context, signals *SignalManager, logger *slog.Logger, sess *cadence.Session, options []string) error {
	for {
		idx, err := r.Handler.Choose(ctx, options)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				_ = r.Handler.SystemOutput(ctx, err.Error())
				continue
			}
			signals.CheckRace()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		err = sess.SubmitChoice(idx)
		if errors.Is(err, domain.ErrInvalidChoice) {
			_ = r.Handler.SystemOutput(ctx, err.Error())
			continue
		}
		if err != nil {
			return fmt.Errorf("submit choice failed: %w", err)
		}
		logger.Debug("choice submitted", "index", idx)
		return nil
	}
}

func (r *Runner) dispatch(ctx context.Context, logger *slog.Logger, events []domain.EventPayload) {
	for _, ev := range events {
		if err := r.Dispatcher.Dispatch(ctx, ev); err != nil {
			logger.Warn("event dispatch failed", "event", ev.ID, "err", err)
		}
	}
}

func (r *Runner) interrupted(logger *slog.Logger, sess *cadence.Session, cause error) error {
	r.save(logger, sess)
	logger.Debug("runner interrupted", "err", cause)
	return cause
}

// save persists a checkpoint. It uses a fresh context so that saving on
// interruption still works.
func (r *Runner) save(logger *slog.Logger, sess *cadence.Session) {
	if r.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Store.Save(ctx, sess.Checkpoint()); err != nil {
		logger.Error("failed to save checkpoint", "err", err)
		return
	}
	logger.Debug("checkpoint saved")
}
