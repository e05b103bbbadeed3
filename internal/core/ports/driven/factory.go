package driven

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// RepositoryBuilder creates a Repository from a session's repository configuration.
// TokenProvider may be nil for repositories that don't require authentication.
type RepositoryBuilder func(ctx context.Context, cfg domain.RepositoryConfig, tokenProvider TokenProvider) (Repository, error)

// RepositoryFactory creates repositories from session configuration.
// It maintains a registry of repository types and their builders.
type RepositoryFactory interface {
	// Create returns a Repository for the given session.
	// Returns ErrUnsupportedType if the repository type is unknown.
	Create(ctx context.Context, session domain.Session) (Repository, error)

	// Register adds a repository builder for the given type.
	Register(repositoryType string, builder RepositoryBuilder)

	// SupportedTypes returns all registered repository types.
	SupportedTypes() []string
}
