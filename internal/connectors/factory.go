package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.RepositoryFactory = (*Factory)(nil)

// TokenProviderFunc returns the credentials for a repository configuration.
type TokenProviderFunc func(ctx context.Context, cfg domain.RepositoryConfig) (driven.TokenProvider, error)

// Factory creates repositories from session configuration using the
// builders registered per repository type.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]driven.RepositoryBuilder
	tokens   TokenProviderFunc
}

// NewFactory creates an empty factory. tokens may be nil when no registered
// type needs authentication.
func NewFactory(tokens TokenProviderFunc) *Factory {
	return &Factory{
		builders: make(map[string]driven.RepositoryBuilder),
		tokens:   tokens,
	}
}

// Register adds a repository builder for the given type, replacing any
// previous builder.
func (f *Factory) Register(repositoryType string, builder driven.RepositoryBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[repositoryType] = builder
}

// SupportedTypes returns the registered types in sorted order.
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create builds the repository of a session.
func (f *Factory) Create(ctx context.Context, session domain.Session) (driven.Repository, error) {
	f.mu.RLock()
	builder, ok := f.builders[session.Repository.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, session.Repository.Type)
	}

	var tokenProvider driven.TokenProvider
	if f.tokens != nil {
		tp, err := f.tokens(ctx, session.Repository)
		if err != nil {
			return nil, fmt.Errorf("token provider for session %s: %w", session.ID, err)
		}
		tokenProvider = tp
	}

	repo, err := builder(ctx, session.Repository, tokenProvider)
	if err != nil {
		return nil, fmt.Errorf("build %s repository: %w", session.Repository.Type, err)
	}
	return repo, nil
}
