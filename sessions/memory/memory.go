package memory

import (
	"context"
	"sync"
	"time"

	"github.com/LanderDK/blitzware-go-sdk/sessions"
)

// DefaultCleanupInterval is how often expired records are swept
const DefaultCleanupInterval = time.Minute

// Store is an in-memory implementation of sessions.Store
type Store struct {
	mu      sync.RWMutex
	records map[string]*sessions.Record

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates an in-memory store with the default cleanup interval
func New() *Store {
	return NewWithCleanupInterval(DefaultCleanupInterval)
}

// NewWithCleanupInterval creates an in-memory store sweeping expired records
// at the given interval. A non-positive interval disables the sweeper.
func NewWithCleanupInterval(interval time.Duration) *Store {
	s := &Store{
		records:     make(map[string]*sessions.Record),
		stopCleanup: make(chan struct{}),
	}
	if interval > 0 {
		go s.cleanupLoop(interval)
	}
	return s
}

// Load retrieves a record by ID
func (s *Store) Load(_ context.Context, id string) (*sessions.Record, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok || time.Now().After(rec.ExpiresAt) {
		return nil, sessions.ErrNotFound
	}
	return copyRecord(rec), nil
}

// Save persists a record
func (s *Store) Save(_ context.Context, rec *sessions.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

// Delete removes a record
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Len returns the number of stored records, including not-yet-swept expired ones
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close stops the background cleanup goroutine
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) removeExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, id)
		}
	}
}

// copyRecord returns a record with its own value map, so callers cannot
// mutate stored state without going through Save.
func copyRecord(rec *sessions.Record) *sessions.Record {
	values := make(map[string]any, len(rec.Values))
	for k, v := range rec.Values {
		values[k] = v
	}
	return &sessions.Record{
		ID:        rec.ID,
		Values:    values,
		ExpiresAt: rec.ExpiresAt,
	}
}
