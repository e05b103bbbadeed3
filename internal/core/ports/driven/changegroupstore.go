package driven

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// ChangeGroupStore persists change groups and applies status transitions.
// Every write is transactional: on error nothing is visible to readers.
type ChangeGroupStore interface {
	// Create stores a new group with its actions.
	// Returns ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, group *domain.ChangeGroup) error

	// Get retrieves a group with its actions.
	Get(ctx context.Context, id string) (*domain.ChangeGroup, error)

	// List returns the groups matching the filter ordered by execution order,
	// then creation time. A limit of zero or less means no limit.
	List(ctx context.Context, filter domain.StatusFilter, limit int) ([]domain.ChangeGroup, error)

	// FindByExecutionOrder returns the groups of a source with the given order
	// in any of the given statuses (all statuses when none are given).
	FindByExecutionOrder(
		ctx context.Context, sessionID, sourceID string, order int64, statuses ...domain.ChangeGroupStatus,
	) ([]domain.ChangeGroup, error)

	// FindReflecting returns the groups whose ReflectedChangeGroupID is deltaID.
	FindReflecting(ctx context.Context, deltaID string) ([]domain.ChangeGroup, error)

	// BatchUpdateStatus moves every group matching any filter to status.
	// All filters are applied in one transaction. Returns the affected count.
	BatchUpdateStatus(ctx context.Context, to domain.ChangeGroupStatus, filters ...domain.StatusFilter) (int64, error)

	// Transition applies the conditional changes atomically. If any group is not
	// in its expected From status the transaction is rolled back with ErrStaleStatus.
	Transition(ctx context.Context, changes ...domain.StatusChange) error

	// SetBacklogged sets or clears ContainsBackloggedAction.
	SetBacklogged(ctx context.Context, id string, backlogged bool) error

	// CountByStatus returns per-status counts for one source in a session.
	CountByStatus(ctx context.Context, sessionID, sourceID string) (map[domain.ChangeGroupStatus]int, error)
}
