// Package sqlstore persists session checkpoints in a SQL database. SQLite
// (modernc.org/sqlite, pure Go) suits single-node hosts; Postgres (pgx) suits
// replicas sharing one database.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
)

const table = "cadence_checkpoints"

// dialect captures the few differences between the supported databases.
type dialect struct {
	name        string
	numbered    bool // $1, $2 placeholders instead of ?
	createTable string
}

// Store implements ports.CheckpointStore over database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func newStore(ctx context.Context, db *sql.DB, d dialect, opts ...Option) (*Store, error) {
	s := &Store{db: db, dialect: d, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := db.ExecContext(ctx, d.createTable); err != nil {
		return nil, fmt.Errorf("create %s table: %w", table, err)
	}
	s.logger.Debug("checkpoint store ready", "driver", d.name)
	return s, nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(q string) string {
	if !s.dialect.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save upserts the checkpoint.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	vars, err := json.Marshal(cp.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	q := s.rebind(`INSERT INTO ` + table + ` (session_id, program, variables, saved_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
	program = excluded.program,
	variables = excluded.variables,
	saved_at = excluded.saved_at`)

	savedAt := cp.SavedAt.UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, q, cp.SessionID, cp.Program, string(vars), savedAt); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.SessionID, err)
	}
	return nil
}

// Load retrieves a checkpoint.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	q := s.rebind(`SELECT program, variables, saved_at FROM ` + table + ` WHERE session_id = ?`)

	var (
		program, vars, savedAt string
	)
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&program, &vars, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", sessionID, err)
	}

	cp := &domain.Checkpoint{SessionID: sessionID, Program: program}
	if err := json.Unmarshal([]byte(vars), &cp.Variables); err != nil {
		return nil, fmt.Errorf("corrupt variables for %s: %w", sessionID, err)
	}
	if cp.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return nil, fmt.Errorf("corrupt saved_at for %s: %w", sessionID, err)
	}
	return cp, nil
}

// Delete removes a checkpoint. Missing rows are not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	q := s.rebind(`DELETE FROM ` + table + ` WHERE session_id = ?`)
	if _, err := s.db.ExecContext(ctx, q, sessionID); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", sessionID, err)
	}
	return nil
}

// List returns the stored session IDs in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM `+table+` ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan checkpoint id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
