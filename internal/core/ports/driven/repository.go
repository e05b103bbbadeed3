package driven

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// Repository reads history from a source version-control repository.
// Each connector type (git, github, memory) implements this interface.
// Implementations retry transient failures themselves; an error returned
// from any method is terminal for the call.
type Repository interface {
	// ID returns the repository identity recorded in source item descriptors.
	ID() string

	// GetLatestRevisionNumber returns the head revision.
	GetLatestRevisionNumber(ctx context.Context) (domain.Revision, error)

	// QueryHistoryRange returns the change-sets in [from, to] that touch path
	// (at, below or above it). Changes are populated only if includeDetails is set.
	QueryHistoryRange(
		ctx context.Context, path string, from, to domain.Revision, includeDetails bool,
	) (map[domain.Revision]*domain.ChangeSet, error)

	// QueryHistory returns up to limit change-sets at or before revision that
	// touch path, newest first. A limit <= 0 returns all of them. Changes are
	// not populated.
	QueryHistory(
		ctx context.Context, path string, revision domain.Revision, limit int,
	) (map[domain.Revision]*domain.ChangeSet, error)

	// GetItems lists the item at path and, for folders, the items below it
	// (all levels when recursive, one level otherwise). The item itself is first.
	// Returns an empty slice if nothing exists at path.
	GetItems(ctx context.Context, path string, revision domain.Revision, recursive bool) ([]domain.Item, error)

	// GetDiffSummary returns true if the content at pathA@revA differs from pathB@revB.
	GetDiffSummary(ctx context.Context, pathA string, revA domain.Revision, pathB string, revB domain.Revision) (bool, error)

	// Close releases resources.
	Close() error
}
