package driven

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// ConflictStore persists conflicts and resolution rules.
type ConflictStore interface {
	// SaveConflict stores or updates a conflict. A conflict with the same
	// session, source, type, scope and revision as an existing one updates it
	// in place and takes over the stored ID.
	SaveConflict(ctx context.Context, conflict *domain.Conflict) error

	// GetConflict retrieves a conflict by ID.
	GetConflict(ctx context.Context, id string) (*domain.Conflict, error)

	// ListConflicts returns the conflicts of a session with the given status.
	// An empty status returns all.
	ListConflicts(ctx context.Context, sessionID string, status domain.ConflictStatus) ([]domain.Conflict, error)

	// SaveRule stores a resolution rule.
	SaveRule(ctx context.Context, rule domain.ResolutionRule) error

	// ListRules returns the rules of a session for a conflict type.
	ListRules(ctx context.Context, sessionID string, conflictType domain.ConflictType) ([]domain.ResolutionRule, error)
}
