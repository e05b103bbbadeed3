package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Type is the repository type served by this package.
const Type = "memory"

var (
	publishedMu sync.RWMutex
	published   = make(map[string]*Repository)
)

// Publish makes r available to sessions of type "memory" whose config sets name.
func Publish(name string, r *Repository) {
	publishedMu.Lock()
	defer publishedMu.Unlock()
	published[name] = r
}

// Unpublish removes a published repository.
func Unpublish(name string) {
	publishedMu.Lock()
	defer publishedMu.Unlock()
	delete(published, name)
}

// handle shares a published repository. Closing it leaves the repository open.
type handle struct {
	*Repository
}

func (handle) Close() error { return nil }

// Builder resolves the published repository named by cfg.Config["name"].
func Builder(_ context.Context, cfg domain.RepositoryConfig, _ driven.TokenProvider) (driven.Repository, error) {
	name := cfg.Config["name"]
	publishedMu.RLock()
	defer publishedMu.RUnlock()
	r, ok := published[name]
	if !ok {
		return nil, fmt.Errorf("memory repository %q: %w", name, domain.ErrNotFound)
	}
	return handle{r}, nil
}
