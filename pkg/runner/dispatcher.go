package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
)

// ErrUnhandledEvent is returned by a strict Dispatcher for events with no
// handler and no fallback.
var ErrUnhandledEvent = errors.New("unhandled event")

// HandlerFunc reacts to one script event (play a sound, shake the camera...).
type HandlerFunc func(ctx context.Context, ev domain.EventPayload) error

// Dispatcher routes script events to host handlers by event ID. It
// implements ports.EventDispatcher and is safe for concurrent use.
type Dispatcher struct {
	mu         sync.RWMutex
	handlers   map[string]HandlerFunc
	fallback   HandlerFunc
	middleware []Middleware
	strict     bool
	logger     *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStrict makes events without a handler an error instead of a warning.
func WithStrict(strict bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.strict = strict
	}
}

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle registers fn for an event ID, replacing any previous handler.
func (d *Dispatcher) Handle(id string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[id] = fn
}

// Fallback registers the handler for events without a specific one.
func (d *Dispatcher) Fallback(fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = fn
}

// Use appends middleware wrapped around every handler; the first is outermost.
func (d *Dispatcher) Use(mw ...Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middleware = append(d.middleware, mw...)
}

// Dispatch delivers one event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.EventPayload) error {
	d.mu.RLock()
	fn, ok := d.handlers[ev.ID]
	if !ok {
		fn = d.fallback
	}
	mws := d.middleware
	d.mu.RUnlock()

	if fn == nil {
		if d.strict {
			return fmt.Errorf("%w: %s", ErrUnhandledEvent, ev.ID)
		}
		d.logger.Warn("no handler for event", "event", ev.ID)
		return nil
	}

	for i := len(mws) - 1; i >= 0; i-- {
		fn = mws[i](fn)
	}
	return fn(ctx, ev)
}

// DispatchAll delivers events in order. Every event is attempted; the
// errors are joined.
func (d *Dispatcher) DispatchAll(ctx context.Context, evs []domain.EventPayload) error {
	var errs []error
	for _, ev := range evs {
		if err := d.Dispatch(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", ev.ID, err))
		}
	}
	return errors.Join(errs...)
}
