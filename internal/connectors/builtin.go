package connectors

import (
	"github.com/custodia-labs/vcsbridge/internal/connectors/github"
	"github.com/custodia-labs/vcsbridge/internal/connectors/gitrepo"
	"github.com/custodia-labs/vcsbridge/internal/connectors/memory"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// NewDefaultFactory creates a factory with every built-in repository type.
func NewDefaultFactory(tokens TokenProviderFunc) *Factory {
	f := NewFactory(tokens)
	RegisterBuiltins(f)
	return f
}

// RegisterBuiltins registers the git, github and memory repository types.
func RegisterBuiltins(f *Factory) {
	f.Register(gitrepo.Type, gitrepo.Builder)
	f.Register(github.Type, github.Builder)
	f.Register(memory.Type, memory.Builder)
}

// WatchPaths returns the local directories whose changes signal new history
// for a repository. Remote repository types have none and are polled.
func WatchPaths(cfg domain.RepositoryConfig) ([]string, error) {
	if cfg.Type == gitrepo.Type {
		return gitrepo.WatchPaths(cfg)
	}
	return nil, nil
}
