package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ashureev/autofinance/internal/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	checkpointPrefix  = "ckpt/"
	applicationPrefix = "app/"
	appSessionPrefix  = "appsess/"
)

// BadgerConfig configures the embedded key-value backend.
type BadgerConfig struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool

	// CheckpointTTL, when positive, is attached to every checkpoint write so
	// idle sessions expire without a sweep.
	CheckpointTTL time.Duration

	// GCInterval enables periodic value-log garbage collection when positive.
	GCInterval time.Duration
	GCRatio    float64

	Logger *slog.Logger
}

// BadgerStore implements Repository on top of BadgerDB.
type BadgerStore struct {
	SessionLocks

	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger
	now    func() time.Time

	stopGC   chan struct{}
	gcDone   chan struct{}
	stopOnce sync.Once
}

var _ Repository = (*BadgerStore)(nil)

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens a Badger-backed repository and starts value-log GC if configured.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("badger directory is required for persistent storage")
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio > 1 {
		cfg.GCRatio = 0.5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		stopGC: make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.runGC()
	} else {
		close(s.gcDone)
	}
	return s, nil
}

func checkpointKey(sessionID string) []byte { return []byte(checkpointPrefix + sessionID) }

func applicationKey(id string) []byte { return []byte(applicationPrefix + id) }

func appSessionKey(sessionID string) []byte { return []byte(appSessionPrefix + sessionID) }

func (s *BadgerStore) Load(_ context.Context, sessionID string) (*domain.ConversationState, error) {
	var state domain.ConversationState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", sessionID, err)
	}
	return &state, nil
}

func (s *BadgerStore) Save(_ context.Context, state *domain.ConversationState) error {
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

	err = s.db.Update(func(txn *badger.Txn) error {
		current, err := storedVersion(txn, state.SessionID)
		if err != nil {
			return err
		}
		if current != state.Version {
			return fmt.Errorf("%w: session %q expected version %d, got %d",
				ErrVersionConflict, state.SessionID, current, state.Version)
		}
		entry := badger.NewEntry(checkpointKey(state.SessionID), payload)
		if s.cfg.CheckpointTTL > 0 {
			entry = entry.WithTTL(s.cfg.CheckpointTTL)
		}
		return txn.SetEntry(entry)
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: session %q concurrent write", ErrVersionConflict, state.SessionID)
	}
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	state.Version = next.Version
	state.CreatedAt = next.CreatedAt
	state.UpdatedAt = next.UpdatedAt
	return nil
}

func storedVersion(txn *badger.Txn, sessionID string) (int64, error) {
	item, err := txn.Get(checkpointKey(sessionID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &head) }); err != nil {
		return 0, fmt.Errorf("decode stored checkpoint: %w", err)
	}
	return head.Version, nil
}

// CleanupExpired deletes checkpoints whose updated_at is older than ttl.
func (s *BadgerStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := s.now().Add(-ttl)

	var expired [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(checkpointPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var head struct {
				UpdatedAt time.Time `json:"updated_at"`
			}
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &head) }); err != nil {
				s.logger.Warn("Skipping undecodable checkpoint", "key", string(item.Key()), "error", err)
				continue
			}
			if head.UpdatedAt.Before(threshold) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan checkpoints: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range expired {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete checkpoint: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush checkpoint deletes: %w", err)
	}
	return int64(len(expired)), nil
}

func (s *BadgerStore) Create(_ context.Context, app domain.Application) (string, error) {
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

	id := app.ID
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(appSessionKey(app.SessionID))
		switch {
		case err == nil:
			return item.Value(func(val []byte) error {
				id = string(val)
				return nil
			})
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		_, err = txn.Get(applicationKey(app.ID))
		switch {
		case err == nil:
			return fmt.Errorf("application %q already exists", app.ID)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(applicationKey(app.ID), payload); err != nil {
			return err
		}
		return txn.Set(appSessionKey(app.SessionID), []byte(app.ID))
	})
	if err != nil {
		return "", fmt.Errorf("create application: %w", err)
	}
	return id, nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (*domain.Application, error) {
	var app domain.Application
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(applicationKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &app)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	return &app, nil
}

func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close stops GC and closes the database.
func (s *BadgerStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopGC) })
	<-s.gcDone
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger database: %w", err)
	}
	return nil
}

func (s *BadgerStore) runGC() {
	defer close(s.gcDone)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when nothing was reclaimed.
			err := s.db.RunValueLogGC(s.cfg.GCRatio)
			if err == nil {
				s.logger.Debug("badger value log GC completed")
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", "error", err)
			}
		}
	}
}
