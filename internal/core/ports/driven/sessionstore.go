package driven

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// SessionStore persists session configurations.
type SessionStore interface {
	// Save stores or updates a session.
	Save(ctx context.Context, session domain.Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// List returns all configured sessions.
	List(ctx context.Context) ([]domain.Session, error)
}
