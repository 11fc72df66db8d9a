// Package sqlitestore implements the job store contract on an embedded SQLite
// database for single-host deployments and tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a queue.Store backed by SQLite.
type Store struct {
	db           *sql.DB
	path         string
	pollInterval time.Duration
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultPollInterval     = 100 * time.Millisecond
)

// Open initializes or connects to the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, pollInterval: defaultPollInterval}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// SetPollInterval adjusts how often BlockingPop re-checks an empty list.
func (s *Store) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.pollInterval = d
	}
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ensureContext(ctx))
}

// Push appends value to the named list.
func (s *Store) Push(ctx context.Context, list, value string) error {
	return s.exec(ctx, "INSERT INTO list_items (name, value) VALUES (?, ?)", list, value)
}

// BlockingPop removes the oldest entry of the named list, polling until
// timeout elapses.
func (s *Store) BlockingPop(ctx context.Context, list string, timeout time.Duration) (string, error) {
	ctx = ensureContext(ctx)
	deadline := time.Now().Add(timeout)
	for {
		value, ok, err := s.pop(ctx, list)
		if err != nil {
			return "", err
		}
		if ok {
			return value, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", nil
		}
		wait := s.pollInterval
		if remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Store) pop(ctx context.Context, list string) (string, bool, error) {
	var value string
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`DELETE FROM list_items
			 WHERE id = (SELECT id FROM list_items WHERE name = ? ORDER BY id LIMIT 1)
			 RETURNING value`, list)
		return row.Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Len reports pending entries in the named list.
func (s *Store) Len(ctx context.Context, list string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM list_items WHERE name = ?", list).Scan(&count)
	return count, err
}

// SetFields upserts each field of the hash at key in one transaction.
func (s *Store) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO hash_fields (key, field, value) VALUES (?, ?, ?)
			 ON CONFLICT(key, field) DO UPDATE SET value = excluded.value`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for field, value := range fields {
			if _, err := stmt.ExecContext(ctx, key, field, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// GetAllFields returns the hash at key.
func (s *Store) GetAllFields(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT field, value FROM hash_fields WHERE key = ?", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		out[field] = value
	}
	return out, rows.Err()
}

// SetAdd inserts member and reports whether it was new.
func (s *Store) SetAdd(ctx context.Context, key, member string) (bool, error) {
	ctx = ensureContext(ctx)
	var added bool
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO set_members (key, member) VALUES (?, ?)", key, member)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		added = n > 0
		return nil
	})
	return added, err
}

// SetContains reports membership.
func (s *Store) SetContains(ctx context.Context, key, member string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM set_members WHERE key = ? AND member = ?", key, member).Scan(&count)
	return count > 0, err
}

// SetMembers lists members in insertion-independent order.
func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT member FROM set_members WHERE key = ? ORDER BY member", key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		out = append(out, member)
	}
	return out, rows.Err()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
