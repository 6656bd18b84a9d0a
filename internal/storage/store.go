// Package storage persists the sample bot's custom command responses,
// command usage stats and audit log in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const maxEntries = 500

// ErrNotFound is returned when a command has no stored response.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS commands (
	channel    TEXT NOT NULL,
	name       TEXT NOT NULL,
	response   TEXT NOT NULL,
	setter     TEXT NOT NULL DEFAULT '',
	uses       INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (channel, name)
);
CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel    TEXT NOT NULL,
	viewer     TEXT NOT NULL,
	action     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Store is the bot's database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection, so an in-memory database is shared by every query.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Command is a custom command response.
type Command struct {
	Channel  string
	Name     string
	Response string
	Setter   string
	Uses     int
	Updated  time.Time
}

// SetCommand creates or replaces the response for name in channel.
func (s *Store) SetCommand(ctx context.Context, channel, name, response, setter string) error {
	query := `
		INSERT INTO commands (channel, name, response, setter, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (channel, name) DO UPDATE SET
			response = excluded.response,
			setter = excluded.setter,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, channel, key(name), response, setter, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set command: %w", err)
	}
	return nil
}

// Command returns the response for name in channel and counts the use.
func (s *Store) Command(ctx context.Context, channel, name string) (*Command, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commands SET uses = uses + 1 WHERE channel = ? AND name = ?`, channel, key(name))
	if err != nil {
		return nil, fmt.Errorf("count command use: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("command %s in %s: %w", name, channel, ErrNotFound)
	}

	query := `
		SELECT channel, name, response, setter, uses, updated_at
		FROM commands
		WHERE channel = ? AND name = ?
	`
	var c Command
	var updated int64
	err = s.db.QueryRowContext(ctx, query, channel, key(name)).Scan(
		&c.Channel, &c.Name, &c.Response, &c.Setter, &c.Uses, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("command %s in %s: %w", name, channel, ErrNotFound)
		}
		return nil, fmt.Errorf("query command: %w", err)
	}
	c.Updated = time.Unix(updated, 0)
	return &c, nil
}

// DeleteCommand removes name from channel.
func (s *Store) DeleteCommand(ctx context.Context, channel, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE channel = ? AND name = ?`, channel, key(name))
	if err != nil {
		return fmt.Errorf("delete command: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("command %s in %s: %w", name, channel, ErrNotFound)
	}
	return nil
}

// Commands returns the custom command names of channel, sorted.
func (s *Store) Commands(ctx context.Context, channel string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM commands WHERE channel = ? ORDER BY name`, channel)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Stat is a command's usage count.
type Stat struct {
	Name string
	Uses int
}

// Stats returns the usage counts of channel's commands, most used first.
func (s *Store) Stats(ctx context.Context, channel string) ([]Stat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, uses FROM commands WHERE channel = ? ORDER BY uses DESC, name`, channel)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []Stat
	for rows.Next() {
		var st Stat
		if err := rows.Scan(&st.Name, &st.Uses); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// LogEntry is one audit log record.
type LogEntry struct {
	Channel string
	Viewer  string
	Action  string
	Time    time.Time
}

// AddLog appends an audit entry. Only the newest entries are kept.
func (s *Store) AddLog(ctx context.Context, e LogEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_log (channel, viewer, action, created_at) VALUES (?, ?, ?, ?)`,
		e.Channel, e.Viewer, e.Action, e.Time.Unix())
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM audit_log WHERE id <= (SELECT MAX(id) FROM audit_log) - ?`, maxEntries)
	if err != nil {
		return fmt.Errorf("trim log: %w", err)
	}
	return tx.Commit()
}

// RecentLogs returns up to limit audit entries for channel, newest first.
// An empty channel matches every channel.
func (s *Store) RecentLogs(ctx context.Context, channel string, limit int) ([]LogEntry, error) {
	if limit <= 0 || limit > maxEntries {
		limit = maxEntries
	}
	query := `
		SELECT channel, viewer, action, created_at
		FROM audit_log
		WHERE ? = '' OR channel = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, channel, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var e LogEntry
		var created int64
		if err := rows.Scan(&e.Channel, &e.Viewer, &e.Action, &created); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		e.Time = time.Unix(created, 0)
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

func key(name string) string {
	return strings.ToLower(name)
}
