package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aretw0/cadence/internal/config"
	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
)

// NewLogger configures the application logger from the logging section.
// --debug forces the debug level.
func NewLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := cfg.Level
	if debug {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:     level,
		Format:    cfg.Format,
		AddSource: cfg.Source,
		File:      cfg.File,
	})
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// ParseVariables decodes a JSON object of plain values ({"gold": 3}) or
// tagged values ({"gold": {"type": "number", "value": 3}}) into a snapshot.
func ParseVariables(raw string) (domain.VariableSnapshot, error) {
	if raw == "" {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("variables must be a JSON object: %w", err)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	snap := make(domain.VariableSnapshot, len(fields))
	var errs []error
	for _, name := range names {
		v, err := plainOrTagged(fields[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("variable %q: %w", name, err))
			continue
		}
		snap[name] = v
	}
	return snap, errors.Join(errs...)
}

func plainOrTagged(raw json.RawMessage) (domain.Value, error) {
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return domain.Value{}, err
	}
	switch v := plain.(type) {
	case float64:
		return domain.Number(v), nil
	case string:
		return domain.String(v), nil
	case bool:
		return domain.Boolean(v), nil
	case map[string]any:
		var tagged domain.Value
		err := json.Unmarshal(raw, &tagged)
		return tagged, err
	}
	return domain.Value{}, fmt.Errorf("unsupported value %s", string(raw))
}

// isInterrupted reports whether err ends a session without being a failure.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}
