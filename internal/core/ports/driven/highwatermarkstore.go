package driven

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// HighWaterMarkStore persists high-water marks.
type HighWaterMarkStore interface {
	// Get retrieves a mark. Returns ErrNotFound if it was never saved.
	Get(ctx context.Context, sessionID, sourceID, name string) (*domain.HighWaterMark, error)

	// Save stores the mark. Returns ErrHighWaterMarkRegression if the stored
	// value is greater than the new one.
	Save(ctx context.Context, mark domain.HighWaterMark) error
}
