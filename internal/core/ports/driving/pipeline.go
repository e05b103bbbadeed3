package driving

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// PipelineService exposes change group state transitions for a session.
type PipelineService interface {
	// ListGroups returns the groups of a session side in the given statuses.
	ListGroups(ctx context.Context, sessionID, sourceID string, statuses ...domain.ChangeGroupStatus) ([]domain.ChangeGroup, error)

	// GetGroup returns one group with its actions.
	GetGroup(ctx context.Context, id string) (*domain.ChangeGroup, error)

	// DemoteInProgress moves in-progress instructions back to pending.
	DemoteInProgress(ctx context.Context, sessionID string) (int64, error)

	// RemoveInProgress discards speculative work of a session.
	RemoveInProgress(ctx context.Context, sessionID string) (int64, error)

	// Discard obsoletes an instruction and reactivates its delta.
	Discard(ctx context.Context, sessionID, instructionID string) error

	// Reactivate restores a discarded instruction.
	Reactivate(ctx context.Context, sessionID, instructionID string) error

	// Checkout claims up to limit pending instructions for the peer side.
	Checkout(ctx context.Context, sessionID string, limit int) ([]domain.ChangeGroup, error)

	// Complete marks a claimed instruction applied at targetRevision.
	Complete(ctx context.Context, sessionID, instructionID string, targetRevision domain.Revision) error
}
