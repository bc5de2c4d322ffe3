package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/cadence/pkg/domain"
)

// Middleware wraps an event handler.
type Middleware func(HandlerFunc) HandlerFunc

// LoggingMiddleware logs each delivery with its duration.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev domain.EventPayload) error {
			start := time.Now()
			err := next(ctx, ev)
			if err != nil {
				logger.Warn("event handler failed", "event", ev.ID, "duration", time.Since(start), "err", err)
				return err
			}
			logger.Debug("event handled", "event", ev.ID, "duration", time.Since(start))
			return nil
		}
	}
}

// RecoverMiddleware turns a handler panic into an error.
func RecoverMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev domain.EventPayload) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("event handler panicked: %v", r)
				}
			}()
			return next(ctx, ev)
		}
	}
}

// DenyPrefixMiddleware drops events whose ID starts with any of the
// prefixes, e.g. "debug:" in production builds.
func DenyPrefixMiddleware(prefixes ...string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev domain.EventPayload) error {
			for _, p := range prefixes {
				if strings.HasPrefix(ev.ID, p) {
					return nil
				}
			}
			return next(ctx, ev)
		}
	}
}
