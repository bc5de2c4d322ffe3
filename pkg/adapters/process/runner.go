package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/runner"
)

// ErrNotRegistered is returned for events without a registered command.
var ErrNotRegistered = errors.New("no command registered for event")

// Runner executes local processes in response to fired events. Only events
// present in the registry run anything (allow-listing); event arguments are
// passed as environment variables, never as command-line flags.
type Runner struct {
	registry map[string]RegisteredProcess
	baseDir  string
	timeout  time.Duration
	logger   *slog.Logger
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Result is the outcome of one execution.
type Result struct {
	Event    string
	Output   string
	ExitCode int
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from loaded hooks.
func WithRegistry(hooks map[string]HookConfig) RunnerOption {
	return func(r *Runner) {
		for event, h := range hooks {
			r.registry[event] = RegisteredProcess{Command: h.Command, Args: h.Args, Env: h.Environment}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithTimeout bounds each execution. Zero means no limit beyond the caller's context.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a new process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredProcess),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list for an event id.
func (r *Runner) Register(event string, command string, args ...string) {
	r.registry[event] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

// Events lists the registered event ids in order.
func (r *Runner) Events() []string {
	out := make([]string, 0, len(r.registry))
	for id := range r.registry {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Execute runs the command registered for ev.ID.
func (r *Runner) Execute(ctx context.Context, ev domain.EventPayload) (Result, error) {
	proc, ok := r.registry[ev.ID]
	if !ok {
		return Result{Event: ev.ID}, fmt.Errorf("%w: %s", ErrNotRegistered, ev.ID)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Env = append(cmd.Environ(), environment(ev, proc.Env)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Event:  ev.ID,
		Output: strings.TrimSpace(stdout.String()),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	r.logger.Debug("event hook executed", "event", ev.ID, "command", proc.Command, "exit_code", res.ExitCode, "duration", time.Since(start))

	if err != nil {
		return res, fmt.Errorf("hook for %s failed: %w (stderr: %s)", ev.ID, err, strings.TrimSpace(stderr.String()))
	}
	return res, nil
}

// Install registers a dispatcher handler for every hooked event.
func (r *Runner) Install(d *runner.Dispatcher) {
	for _, id := range r.Events() {
		d.Handle(id, func(ctx context.Context, ev domain.EventPayload) error {
			_, err := r.Execute(ctx, ev)
			return err
		})
	}
}

// environment encodes the payload: CADENCE_EVENT, CADENCE_ARG_<i> with the
// display form of each argument, and CADENCE_ARGS as a JSON array.
func environment(ev domain.EventPayload, extra map[string]string) []string {
	env := make([]string, 0, len(ev.Args)+len(extra)+2)
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	env = append(env, "CADENCE_EVENT="+ev.ID)
	for i, a := range ev.Args {
		env = append(env, fmt.Sprintf("CADENCE_ARG_%d=%s", i, a.Display()))
	}
	args := ev.Args
	if args == nil {
		args = []domain.Value{}
	}
	if raw, err := json.Marshal(args); err == nil {
		env = append(env, "CADENCE_ARGS="+string(raw))
	}
	return env
}
