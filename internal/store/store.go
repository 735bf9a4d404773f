// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
)

var (
	// ErrNotFound is returned when no record exists for the requested key.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by Save when the stored checkpoint moved on
	// since the caller loaded it.
	ErrVersionConflict = errors.New("checkpoint version conflict")
)

// CheckpointStore persists conversation state between turns.
type CheckpointStore interface {
	// Load returns the latest checkpoint for a session or ErrNotFound.
	Load(ctx context.Context, sessionID string) (*domain.ConversationState, error)

	// Save writes state if its Version matches the stored version (0 for a new
	// session). On success state.Version is advanced to the stored value.
	Save(ctx context.Context, state *domain.ConversationState) error

	// Lock blocks until the caller holds the per-session turn lock or ctx ends.
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)

	// CleanupExpired removes checkpoints not updated within ttl.
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// ApplicationStore records submitted finance applications.
type ApplicationStore interface {
	// Create stores app and returns its generated identifier. A session owns at
	// most one application: a repeat Create for the same SessionID stores
	// nothing and returns the existing identifier.
	Create(ctx context.Context, app domain.Application) (string, error)

	// Get returns an application by id or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Application, error)
}

// Repository is a backend that serves both checkpoints and applications.
type Repository interface {
	CheckpointStore
	ApplicationStore
}
