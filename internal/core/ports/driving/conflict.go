package driving

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// ConflictService lets users inspect and resolve conflicts in the backlog.
type ConflictService interface {
	// List returns the conflicts of a session with the given status ("" for all).
	List(ctx context.Context, sessionID string, status domain.ConflictStatus) ([]domain.Conflict, error)

	// Resolve resolves a conflict and stores a rule so matching conflicts are
	// resolved automatically on the next run. An empty scope uses the conflict's scope.
	Resolve(ctx context.Context, conflictID string, resolution domain.ResolutionType, scope string) (*domain.ResolutionRule, error)
}
