package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calbridge/calbridge/internal/logging"
)

// MemoryStore keeps credential records in memory. It backs tests and
// single-process deployments where durability is handled elsewhere.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	logger  *slog.Logger
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger for the store.
func (s *MemoryStore) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// Get returns a copy of the record for userID, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, userID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}

	out := *rec
	return &out, nil
}

// Put inserts the record, replacing any existing record for the same user.
func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	s.records[rec.UserID] = &stored
	s.logger.Debug("stored credential record", logging.UserHash(rec.UserID))
	return nil
}

// Update applies the non-nil fields of update to the stored record.
func (s *MemoryStore) Update(ctx context.Context, userID string, update Update, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return ErrNotFound
	}

	if update.AccessToken != nil {
		rec.AccessToken = *update.AccessToken
	}
	if update.RefreshToken != nil {
		rec.RefreshToken = *update.RefreshToken
	}
	rec.UpdatedAt = updatedAt

	s.logger.Debug("updated credential record", logging.UserHash(userID))
	return nil
}
