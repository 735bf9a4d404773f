package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps checkpoints and applications in process memory.
type MemoryStore struct {
	SessionLocks

	mu           sync.RWMutex
	checkpoints  map[string]*domain.ConversationState
	applications map[string]domain.Application
	bySession    map[string]string
	now          func() time.Time
}

var _ Repository = (*MemoryStore)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		checkpoints:  make(map[string]*domain.ConversationState),
		applications: make(map[string]domain.Application),
		bySession:    make(map[string]string),
		now:          time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.checkpoints[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.checkpoints[state.SessionID]; ok {
		current = existing.Version
	}
	if state.Version != current {
		return fmt.Errorf("%w: session %q expected version %d, got %d",
			ErrVersionConflict, state.SessionID, current, state.Version)
	}

	next := state.Clone()
	next.Version = current + 1
	next.UpdatedAt = s.now()
	s.checkpoints[state.SessionID] = next

	state.Version = next.Version
	state.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *MemoryStore) CleanupExpired(_ context.Context, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.now().Add(-ttl)
	var removed int64
	for id, state := range s.checkpoints {
		if state.UpdatedAt.Before(threshold) {
			delete(s.checkpoints, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Create(_ context.Context, app domain.Application) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bySession[app.SessionID]; ok {
		return id, nil
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if _, exists := s.applications[app.ID]; exists {
		return "", fmt.Errorf("create application: id %q already exists", app.ID)
	}
	now := s.now()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = domain.StatusPendingReview
	}
	app.Profile = app.Profile.Clone()
	s.applications[app.ID] = app
	s.bySession[app.SessionID] = app.ID
	return app.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	app.Profile = app.Profile.Clone()
	return &app, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
