package driven

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// ConflictEscalation raises conflicts found during translation and returns
// the resolution directive. An unresolved result aborts the analysis run.
type ConflictEscalation interface {
	TryResolveNewConflict(ctx context.Context, sourceID string, conflict domain.Conflict) (domain.ConflictResolutionResult, error)
}
