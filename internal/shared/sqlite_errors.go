// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsSQLiteConflictError reports whether err is SQLITE_BUSY or SQLITE_LOCKED,
// including extended result codes. Both mean another connection holds the
// database and the statement can be retried.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	// Wrapped driver errors may only survive as text.
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// ConflictRetry configures RetryOnConflict.
type ConflictRetry struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultConflictRetry is 3 attempts at 100ms, 200ms.
var DefaultConflictRetry = ConflictRetry{Attempts: 3, BaseDelay: 100 * time.Millisecond}

// RetryOnConflict runs fn until it succeeds, fails with a non-conflict error,
// or attempts are exhausted. Backoff doubles after each conflict.
func RetryOnConflict(ctx context.Context, cfg ConflictRetry, op string, fn func() error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	var err error
	for i := 0; i < cfg.Attempts; i++ {
		err = fn()
		if err == nil || !IsSQLiteConflictError(err) || i == cfg.Attempts-1 {
			return err
		}

		delay := cfg.BaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
