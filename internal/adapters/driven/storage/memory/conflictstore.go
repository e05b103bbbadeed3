package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Ensure ConflictStore implements the interface.
var _ driven.ConflictStore = (*ConflictStore)(nil)

type conflictKey struct {
	session, source string
	kind            domain.ConflictType
	scope           string
	revision        domain.Revision
}

func keyOf(c *domain.Conflict) conflictKey {
	return conflictKey{c.SessionID, c.SourceID, c.Type, domain.NormalizePath(c.Scope), c.Revision}
}

// ConflictStore is an in-memory implementation of driven.ConflictStore.
type ConflictStore struct {
	mu        sync.RWMutex
	conflicts map[string]domain.Conflict
	byKey     map[conflictKey]string
	rules     []domain.ResolutionRule
}

// NewConflictStore creates a new in-memory conflict store.
func NewConflictStore() *ConflictStore {
	return &ConflictStore{
		conflicts: make(map[string]domain.Conflict),
		byKey:     make(map[conflictKey]string),
	}
}

// SaveConflict inserts or updates a conflict. A conflict with the same
// session, source, type, scope and revision as a stored one takes over its ID.
func (s *ConflictStore) SaveConflict(_ context.Context, conflict *domain.Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(conflict)
	if id, ok := s.byKey[key]; ok {
		if conflict.ID != id {
			conflict.CreatedAt = s.conflicts[id].CreatedAt
		}
		conflict.ID = id
	}
	if conflict.CreatedAt.IsZero() {
		conflict.CreatedAt = time.Now()
	}
	s.conflicts[conflict.ID] = *conflict
	s.byKey[key] = conflict.ID
	return nil
}

// GetConflict retrieves a conflict by ID.
func (s *ConflictStore) GetConflict(_ context.Context, id string) (*domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conflicts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// ListConflicts returns the conflicts of a session, oldest first. An empty status returns all.
func (s *ConflictStore) ListConflicts(
	_ context.Context, sessionID string, status domain.ConflictStatus,
) ([]domain.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Conflict
	for _, c := range s.conflicts {
		if c.SessionID == sessionID && (status == "" || c.Status == status) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revision != out[j].Revision {
			return out[i].Revision < out[j].Revision
		}
		return out[i].Scope < out[j].Scope
	})
	return out, nil
}

// SaveRule stores a resolution rule, replacing one with the same ID.
func (s *ConflictStore) SaveRule(_ context.Context, rule domain.ResolutionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == rule.ID {
			s.rules[i] = rule
			return nil
		}
	}
	s.rules = append(s.rules, rule)
	return nil
}

// ListRules returns the rules of a session for a conflict type, in creation order.
func (s *ConflictStore) ListRules(
	_ context.Context, sessionID string, conflictType domain.ConflictType,
) ([]domain.ResolutionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ResolutionRule
	for _, r := range s.rules {
		if r.SessionID == sessionID && r.ConflictType == conflictType {
			out = append(out, r)
		}
	}
	return out, nil
}
