package driven

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// ConversionHistoryStore records which source revisions were migrated to which peer revisions.
type ConversionHistoryStore interface {
	// Record stores a conversion.
	Record(ctx context.Context, record domain.ConversionRecord) error

	// IsMigratedRevision reports whether revision on sourceID was written by
	// migrating a change from originID into it. Records of every session
	// count, so the session syncing the reverse direction sees them.
	IsMigratedRevision(ctx context.Context, sourceID, originID string, revision domain.Revision) (bool, error)

	// FindBySource returns the conversion of a source revision.
	FindBySource(ctx context.Context, sessionID, sourceID string, revision domain.Revision) (*domain.ConversionRecord, error)
}
