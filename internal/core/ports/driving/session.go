package driving

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// SessionService manages session configurations.
type SessionService interface {
	// Add validates and stores a new session.
	Add(ctx context.Context, session domain.Session) (*domain.Session, error)

	// Get retrieves a session.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// List returns all sessions.
	List(ctx context.Context) ([]domain.Session, error)

	// Remove deletes a session.
	Remove(ctx context.Context, id string) error

	// SupportedTypes returns the repository types sessions may use.
	SupportedTypes() []string
}
