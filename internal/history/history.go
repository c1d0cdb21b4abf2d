// Package history persists notebook execution history.
//
// The store backs the Jupyter history_request: one row per counted
// execution, grouped by kernel session. Sessions are numbered in start
// order because the protocol addresses them by ordinal, not by id.
// History is best-effort — a broken database degrades to an empty
// history, never a broken kernel.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Store provides SQLite persistence for execution history.
type Store struct {
	db *sql.DB
}

// Entry is one recorded execution.
type Entry struct {
	Session int // session ordinal
	Line    int // execution count within the session
	Source  string
}

// Open initializes the store at dbPath and runs migrations.
// busy_timeout avoids "database locked" errors when several kernels
// share the file; WAL keeps readers off the writers' backs. The
// _pragma form is the one modernc understands, and it applies to every
// connection in the pool.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		num INTEGER UNIQUE NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS executions (
		session_num INTEGER NOT NULL,
		line INTEGER NOT NULL,
		source TEXT NOT NULL,
		PRIMARY KEY (session_num, line)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginSession records the start of a kernel session and returns its
// ordinal.
func (s *Store) BeginSession(ctx context.Context, id string) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (id, num, started_at)
		VALUES (?, COALESCE((SELECT MAX(num) FROM sessions), 0) + 1, ?)`,
		id, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("record session: %w", err)
	}
	var num int
	if err := s.db.QueryRowContext(ctx, `SELECT num FROM sessions WHERE id = ?`, id).Scan(&num); err != nil {
		return 0, fmt.Errorf("look up session: %w", err)
	}
	return num, nil
}

// Append records one counted execution.
func (s *Store) Append(ctx context.Context, session, line int, source string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO executions (session_num, line, source) VALUES (?, ?, ?)`,
		session, line, source)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Tail returns the last n executions across all sessions, oldest first.
func (s *Store) Tail(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_num, line, source FROM (
			SELECT session_num, line, source FROM executions
			ORDER BY session_num DESC, line DESC LIMIT ?
		) ORDER BY session_num ASC, line ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("query history tail: %w", err)
	}
	return scanEntries(rows)
}

// Range returns executions start..stop (stop exclusive) of one session.
// session <= 0 counts back from current, the protocol's relative form.
func (s *Store) Range(ctx context.Context, session, current, start, stop int) ([]Entry, error) {
	if session <= 0 {
		session = current + session
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_num, line, source FROM executions
		WHERE session_num = ? AND line >= ? AND line < ?
		ORDER BY line ASC`, session, start, stop)
	if err != nil {
		return nil, fmt.Errorf("query history range: %w", err)
	}
	return scanEntries(rows)
}

// Search returns up to n executions whose source matches the glob
// pattern, oldest first. Glob wildcards translate to SQL LIKE.
func (s *Store) Search(ctx context.Context, pattern string, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_num, line, source FROM (
			SELECT session_num, line, source FROM executions
			WHERE source LIKE ? ESCAPE '\'
			ORDER BY session_num DESC, line DESC LIMIT ?
		) ORDER BY session_num ASC, line ASC`, globToLike(pattern), n)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Session, &e.Line, &e.Source); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// globToLike converts Jupyter's glob patterns (* and ?) to LIKE syntax.
func globToLike(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
