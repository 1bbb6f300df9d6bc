package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"jobdesk/internal/domain"
	logx "jobdesk/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultBusyTimeout = 5 * time.Second

// SQLite implements every store interface the domain packages declare.
type SQLite struct {
	db  *sql.DB
	log logx.Logger
	now func() time.Time
}

// Open opens (and migrates) the database at cfg.Path.
func Open(cfg Config, log logx.Logger) (*SQLite, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage: sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; transactions serialize on this conn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: %s: %w", p, err)
		}
	}

	st := &SQLite{db: db, log: log.With(logx.Component("storage")), now: time.Now}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	st.log.Debug("sqlite opened", logx.String("path", path))
	return st, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *SQLite) Ping(ctx context.Context) error { return domain.Infra(s.db.PingContext(ctx)) }

// withTx runs fn inside a transaction and commits when fn returns nil.
// fn must only use tx; the pool has a single connection.
func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Infra(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return domain.Infra(tx.Commit())
}

func (s *SQLite) stamp() string { return formatTime(s.now()) }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
