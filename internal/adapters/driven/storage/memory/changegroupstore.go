package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Ensure ChangeGroupStore implements the interface.
var _ driven.ChangeGroupStore = (*ChangeGroupStore)(nil)

// ChangeGroupStore is an in-memory implementation of driven.ChangeGroupStore.
// Status updates validate every group before applying any of them.
type ChangeGroupStore struct {
	mu     sync.RWMutex
	groups map[string]domain.ChangeGroup
	now    func() time.Time
}

// NewChangeGroupStore creates a new in-memory change group store.
func NewChangeGroupStore() *ChangeGroupStore {
	return &ChangeGroupStore{
		groups: make(map[string]domain.ChangeGroup),
		now:    time.Now,
	}
}

func cloneGroup(g domain.ChangeGroup) domain.ChangeGroup {
	g.Actions = append([]domain.MigrationAction(nil), g.Actions...)
	return g
}

func matchesFilter(g *domain.ChangeGroup, f domain.StatusFilter) bool {
	if f.SessionID != "" && g.SessionID != f.SessionID {
		return false
	}
	if f.SourceID != "" && g.SourceID != f.SourceID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if g.Status == s {
			return true
		}
	}
	return false
}

func sortGroups(groups []domain.ChangeGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].ExecutionOrder != groups[j].ExecutionOrder {
			return groups[i].ExecutionOrder < groups[j].ExecutionOrder
		}
		if !groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].CreatedAt.Before(groups[j].CreatedAt)
		}
		return groups[i].ID < groups[j].ID
	})
}

// Create stores a new group with its actions.
func (s *ChangeGroupStore) Create(_ context.Context, group *domain.ChangeGroup) error {
	if group.ID == "" {
		return fmt.Errorf("%w: change group without id", domain.ErrInvalidInput)
	}
	if !group.Status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, group.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[group.ID]; exists {
		return fmt.Errorf("change group %s: %w", group.ID, domain.ErrAlreadyExists)
	}
	now := s.now()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	s.groups[group.ID] = cloneGroup(*group)
	return nil
}

// Get retrieves a group by ID.
func (s *ChangeGroupStore) Get(_ context.Context, id string) (*domain.ChangeGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	g = cloneGroup(g)
	return &g, nil
}

func (s *ChangeGroupStore) selectLocked(keep func(*domain.ChangeGroup) bool) []domain.ChangeGroup {
	var out []domain.ChangeGroup
	for _, g := range s.groups {
		if keep(&g) {
			out = append(out, cloneGroup(g))
		}
	}
	sortGroups(out)
	return out
}

// List returns matching groups ordered by execution order. A limit <= 0 returns all.
func (s *ChangeGroupStore) List(_ context.Context, filter domain.StatusFilter, limit int) ([]domain.ChangeGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.selectLocked(func(g *domain.ChangeGroup) bool { return matchesFilter(g, filter) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindByExecutionOrder returns the groups of a source at one execution order.
func (s *ChangeGroupStore) FindByExecutionOrder(
	_ context.Context, sessionID, sourceID string, order int64, statuses ...domain.ChangeGroupStatus,
) ([]domain.ChangeGroup, error) {
	filter := domain.StatusFilter{SessionID: sessionID, SourceID: sourceID, Statuses: statuses}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectLocked(func(g *domain.ChangeGroup) bool {
		return g.ExecutionOrder == order && matchesFilter(g, filter)
	}), nil
}

// FindReflecting returns the instructions linked to a delta.
func (s *ChangeGroupStore) FindReflecting(_ context.Context, deltaID string) ([]domain.ChangeGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectLocked(func(g *domain.ChangeGroup) bool {
		return g.ReflectedChangeGroupID == deltaID
	}), nil
}

// BatchUpdateStatus moves every group matching any filter to status to.
func (s *ChangeGroupStore) BatchUpdateStatus(
	_ context.Context, to domain.ChangeGroupStatus, filters ...domain.StatusFilter,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, g := range s.groups {
		for _, f := range filters {
			if !matchesFilter(&g, f) {
				continue
			}
			if !g.Status.CanTransition(to) {
				return 0, fmt.Errorf("%w: %s -> %s for group %s", domain.ErrInvalidTransition, g.Status, to, id)
			}
			ids = append(ids, id)
			break
		}
	}

	now := s.now()
	for _, id := range ids {
		g := s.groups[id]
		g.Status = to
		g.UpdatedAt = now
		s.groups[id] = g
	}
	return int64(len(ids)), nil
}

// Transition applies conditional status changes all-or-nothing.
func (s *ChangeGroupStore) Transition(_ context.Context, changes ...domain.StatusChange) error {
	for _, c := range changes {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changes {
		g, ok := s.groups[c.GroupID]
		if !ok {
			return fmt.Errorf("change group %s: %w", c.GroupID, domain.ErrNotFound)
		}
		if g.Status != c.From {
			return fmt.Errorf("%w: group %s is %s, expected %s", domain.ErrStaleStatus, c.GroupID, g.Status, c.From)
		}
	}

	now := s.now()
	for _, c := range changes {
		g := s.groups[c.GroupID]
		g.Status = c.To
		g.UpdatedAt = now
		s.groups[c.GroupID] = g
	}
	return nil
}

// SetBacklogged sets or clears ContainsBackloggedAction.
func (s *ChangeGroupStore) SetBacklogged(_ context.Context, id string, backlogged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return domain.ErrNotFound
	}
	g.ContainsBackloggedAction = backlogged
	g.UpdatedAt = s.now()
	s.groups[id] = g
	return nil
}

// CountByStatus counts the groups of a source per status.
func (s *ChangeGroupStore) CountByStatus(
	_ context.Context, sessionID, sourceID string,
) (map[domain.ChangeGroupStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.ChangeGroupStatus]int)
	filter := domain.StatusFilter{SessionID: sessionID, SourceID: sourceID}
	for _, g := range s.groups {
		if matchesFilter(&g, filter) {
			counts[g.Status]++
		}
	}
	return counts, nil
}
