package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Ensure HighWaterMarkStore implements the interface.
var _ driven.HighWaterMarkStore = (*HighWaterMarkStore)(nil)

type markKey struct {
	session, source, name string
}

// HighWaterMarkStore is an in-memory implementation of driven.HighWaterMarkStore.
type HighWaterMarkStore struct {
	mu    sync.RWMutex
	marks map[markKey]domain.HighWaterMark
}

// NewHighWaterMarkStore creates a new in-memory high-water mark store.
func NewHighWaterMarkStore() *HighWaterMarkStore {
	return &HighWaterMarkStore{marks: make(map[markKey]domain.HighWaterMark)}
}

// Get retrieves a mark.
func (s *HighWaterMarkStore) Get(_ context.Context, sessionID, sourceID, name string) (*domain.HighWaterMark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mark, ok := s.marks[markKey{sessionID, sourceID, name}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &mark, nil
}

// Save stores a mark. A value lower than the stored one is rejected.
func (s *HighWaterMarkStore) Save(_ context.Context, mark domain.HighWaterMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := markKey{mark.SessionID, mark.SourceID, mark.Name}
	if current, ok := s.marks[key]; ok {
		if _, err := current.Advance(mark.Value, mark.UpdatedAt); err != nil {
			return err
		}
	}
	s.marks[key] = mark
	return nil
}
