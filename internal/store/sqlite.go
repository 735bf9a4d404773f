package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/ashureev/autofinance/internal/shared"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	SessionLocks

	db      *sql.DB
	writeMu sync.Mutex // Serializes writers to prevent SQLITE_BUSY
	retry   shared.ConflictRetry
	now     func() time.Time
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{
		db:    db,
		retry: shared.DefaultConflictRetry,
		now:   func() time.Time { return time.Now().UTC() },
	}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversation_checkpoints (
		session_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		phase TEXT NOT NULL,
		pending_decision TEXT NOT NULL DEFAULT '',
		state_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON conversation_checkpoints(updated_at);

	CREATE TABLE IF NOT EXISTS applications (
		application_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		status TEXT NOT NULL,
		record_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_session ON applications(session_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Load retrieves the latest checkpoint for a session.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	query := `SELECT version, state_json FROM conversation_checkpoints WHERE session_id = ?`

	var version int64
	var stateJSON string
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&version, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", sessionID, err)
	}
	state.Version = version
	return &state, nil
}

// Save writes a checkpoint with an optimistic version check.
func (s *SQLiteStore) Save(ctx context.Context, state *domain.ConversationState) error {
	next := state.Clone()
	next.Version = state.Version + 1
	next.UpdatedAt = s.now()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = next.UpdatedAt
	}

	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	var rows int64
	err = shared.RetryOnConflict(ctx, s.retry, "save checkpoint", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		var result sql.Result
		var execErr error
		if state.Version == 0 {
			result, execErr = s.db.ExecContext(ctx, `
				INSERT INTO conversation_checkpoints (
					session_id, version, phase, pending_decision, state_json, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(session_id) DO NOTHING`,
				next.SessionID, next.Version, string(next.Phase), string(next.Pending),
				string(payload), next.CreatedAt.Unix(), next.UpdatedAt.Unix(),
			)
		} else {
			result, execErr = s.db.ExecContext(ctx, `
				UPDATE conversation_checkpoints SET
					version = ?, phase = ?, pending_decision = ?, state_json = ?, updated_at = ?
				WHERE session_id = ? AND version = ?`,
				next.Version, string(next.Phase), string(next.Pending), string(payload),
				next.UpdatedAt.Unix(), next.SessionID, state.Version,
			)
		}
		if execErr != nil {
			return execErr
		}
		rows, execErr = result.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if rows == 0 {
		slog.Warn("Checkpoint save affected 0 rows", "session_id", state.SessionID, "expected_version", state.Version)
		return fmt.Errorf("%w: session %q expected version %d", ErrVersionConflict, state.SessionID, state.Version)
	}

	state.Version = next.Version
	state.CreatedAt = next.CreatedAt
	state.UpdatedAt = next.UpdatedAt
	return nil
}

// CleanupExpired removes checkpoints older than ttl.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := s.now().Add(-ttl).Unix()

	var removed int64
	err := shared.RetryOnConflict(ctx, s.retry, "cleanup checkpoints", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		result, err := s.db.ExecContext(ctx, `DELETE FROM conversation_checkpoints WHERE updated_at < ?`, threshold)
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup expired checkpoints: %w", err)
	}
	return removed, nil
}

// Create stores a submitted application.
func (s *SQLiteStore) Create(ctx context.Context, app domain.Application) (string, error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := s.now()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = domain.StatusPendingReview
	}

	payload, err := json.Marshal(app)
	if err != nil {
		return "", fmt.Errorf("encode application: %w", err)
	}

	var id string
	err = shared.RetryOnConflict(ctx, s.retry, "create application", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		existing, lookupErr := s.applicationForSession(ctx, app.SessionID)
		switch {
		case lookupErr == nil:
			id = existing
			return nil
		case !errors.Is(lookupErr, ErrNotFound):
			return lookupErr
		}

		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO applications (application_id, session_id, status, record_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			app.ID, app.SessionID, string(app.Status), string(payload),
			app.CreatedAt.Unix(), app.UpdatedAt.Unix(),
		)
		if execErr == nil {
			id = app.ID
		}
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("insert application: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) applicationForSession(ctx context.Context, sessionID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT application_id FROM applications WHERE session_id = ?`, sessionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup application for session: %w", err)
	}
	return id, nil
}

// Get retrieves an application by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Application, error) {
	query := `SELECT record_json FROM applications WHERE application_id = ?`

	var recordJSON string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}

	var app domain.Application
	if err := json.Unmarshal([]byte(recordJSON), &app); err != nil {
		return nil, fmt.Errorf("decode application %s: %w", id, err)
	}
	return &app, nil
}
