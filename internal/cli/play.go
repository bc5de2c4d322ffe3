package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/cadence"
	"github.com/aretw0/cadence/internal/config"
	"github.com/aretw0/cadence/internal/presentation/tui"
	"github.com/aretw0/cadence/pkg/adapters/process"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/ports"
	"github.com/aretw0/cadence/pkg/runner"
)

// PlayOptions configures an interactive playthrough.
type PlayOptions struct {
	Program   string
	SessionID string
	// Fresh discards the saved checkpoint of SessionID.
	Fresh     bool
	Variables domain.VariableSnapshot

	JSON     bool
	Events   bool
	Markdown bool
	Banner   bool
	// Watch restarts the session with its variables when the program is hot reloaded.
	Watch bool
	Pause time.Duration

	In  io.Reader
	Out io.Writer
}

// Play runs a session on the terminal. Checkpoints go to store only when a
// session id is given; an existing checkpoint for that id is resumed.
func Play(ctx context.Context, cfg config.Config, eng *cadence.Engine, store ports.CheckpointStore, logger *slog.Logger, opts PlayOptions) error {
	handler := newHandler(opts)
	if opts.Banner && !opts.JSON {
		tui.PrintBanner(opts.Out)
	}

	dispatcher, err := HookDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	dispatcher.Fallback(handler.Notify)

	program, vars, err := resume(ctx, store, opts, logger)
	if err != nil {
		return err
	}
	if program == "" {
		return fmt.Errorf("no program given")
	}

	if opts.Watch {
		if err := eng.AutoReload(ctx); err != nil {
			return fmt.Errorf("watch failed: %w", err)
		}
	}

	for {
		sessOpts := []cadence.SessionOption{cadence.WithInitialVariables(vars)}
		if opts.SessionID != "" {
			sessOpts = append(sessOpts, cadence.WithSessionID(opts.SessionID))
		}
		sess, err := eng.LoadNamed(program, sessOpts...)
		if err != nil {
			return err
		}

		runOpts := []runner.Option{
			runner.WithHandler(handler),
			runner.WithDispatcher(dispatcher),
			runner.WithProgress(runner.NewTypewriter(cfg.Runtime.TypewriterRate)),
			runner.WithInterval(cfg.Runtime.TickInterval),
			runner.WithPause(opts.Pause),
			runner.WithLogger(logger),
		}
		if opts.SessionID != "" && store != nil {
			runOpts = append(runOpts, runner.WithStore(store))
		}

		err = runner.NewRunner(runOpts...).Run(ctx, sess)
		if opts.Watch && errors.Is(err, domain.ErrProgramReloaded) {
			vars = sess.SaveVariables()
			_ = handler.SystemOutput(ctx, fmt.Sprintf("%s changed, restarting", program))
			continue
		}

		if err != nil && isInterrupted(err) {
			if !opts.JSON {
				printSystemMessage(opts.Out, "Interrupted.")
			}
			return nil
		}
		return err
	}
}

func newHandler(opts PlayOptions) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(opts.In, opts.Out)
	}
	var topts []runner.TextHandlerOption
	if opts.Markdown {
		topts = append(topts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
	}
	if opts.Events {
		topts = append(topts, runner.WithEventEcho(opts.Out))
	}
	return runner.NewTextHandler(opts.In, opts.Out, topts...)
}

// HookDispatcher builds the host dispatcher: events hooked in cfg.Hooks run
// local commands, everything else is dropped until a fallback is set.
func HookDispatcher(cfg config.Config, logger *slog.Logger) (*runner.Dispatcher, error) {
	d := runner.NewDispatcher(runner.WithDispatcherLogger(logger))
	d.Use(runner.RecoverMiddleware(), runner.LoggingMiddleware(logger))
	d.Fallback(func(context.Context, domain.EventPayload) error { return nil })

	if cfg.Hooks == "" {
		return d, nil
	}
	hooks, err := process.LoadHooks(cfg.Hooks)
	if err != nil {
		return nil, err
	}
	process.NewRunner(
		process.WithRegistry(hooks),
		process.WithBaseDir(cfg.Repo),
		process.WithTimeout(10*time.Second),
		process.WithLogger(logger),
	).Install(d)
	logger.Debug("event hooks installed", "count", len(hooks))
	return d, nil
}

// resume picks the program and initial variables, preferring a saved
// checkpoint; explicit variables override saved ones.
func resume(ctx context.Context, store ports.CheckpointStore, opts PlayOptions, logger *slog.Logger) (string, domain.VariableSnapshot, error) {
	program := opts.Program
	if store == nil || opts.SessionID == "" {
		return program, opts.Variables, nil
	}

	if opts.Fresh {
		if err := store.Delete(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return "", nil, fmt.Errorf("failed to reset session: %w", err)
		}
		return program, opts.Variables, nil
	}

	cp, err := store.Load(ctx, opts.SessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return program, opts.Variables, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load session: %w", err)
	}
	if program == "" {
		program = cp.Program
	}
	if program != cp.Program {
		logger.Warn("checkpoint belongs to another program, starting fresh", "session_id", opts.SessionID, "checkpoint_program", cp.Program)
		return program, opts.Variables, nil
	}

	vars := cp.Variables.Clone()
	for name, v := range opts.Variables {
		vars[name] = v
	}
	if !opts.JSON {
		printSystemMessage(opts.Out, "Resuming session '%s' of %s.", opts.SessionID, program)
	}
	return program, vars, nil
}
