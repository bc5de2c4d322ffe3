package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgres = dialect{
	name:     "pgx",
	numbered: true,
	createTable: `CREATE TABLE IF NOT EXISTS ` + table + ` (
	session_id TEXT PRIMARY KEY,
	program    TEXT NOT NULL,
	variables  TEXT NOT NULL,
	saved_at   TEXT NOT NULL
);`,
}

// OpenPostgres connects to Postgres through the pgx database/sql driver and
// ensures the checkpoint table exists.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s, err := newStore(ctx, db, postgres, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
