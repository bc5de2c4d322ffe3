package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var sqlite = dialect{
	name: "sqlite",
	createTable: `CREATE TABLE IF NOT EXISTS ` + table + ` (
	session_id TEXT PRIMARY KEY,
	program    TEXT NOT NULL,
	variables  TEXT NOT NULL,
	saved_at   TEXT NOT NULL
);`,
}

// OpenSQLite opens (creating if needed) a SQLite database at path with WAL
// journaling and a single connection.
func OpenSQLite(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s, err := newStore(ctx, db, sqlite, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
