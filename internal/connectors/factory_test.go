package connectors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vcsbridge/internal/connectors/memory"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

type fakeToken struct{}

func (fakeToken) GetToken(context.Context) (string, error) { return "t", nil }
func (fakeToken) IsAuthenticated() bool                    { return true }

func session(repoType string, cfg map[string]string) domain.Session {
	return domain.Session{ID: "s1", Repository: domain.RepositoryConfig{Type: repoType, Config: cfg}}
}

func TestFactory_SupportedTypes(t *testing.T) {
	f := NewFactory(nil)
	assert.Empty(t, f.SupportedTypes())

	f = NewDefaultFactory(nil)
	assert.Equal(t, []string{"git", "github", "memory"}, f.SupportedTypes())
}

func TestFactory_CreateUnknownType(t *testing.T) {
	_, err := NewFactory(nil).Create(context.Background(), session("svn", nil))
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestFactory_PassesTokenProvider(t *testing.T) {
	var gotCfg domain.RepositoryConfig
	f := NewFactory(func(_ context.Context, cfg domain.RepositoryConfig) (driven.TokenProvider, error) {
		gotCfg = cfg
		return fakeToken{}, nil
	})

	var gotTokens driven.TokenProvider
	f.Register("fake", func(_ context.Context, _ domain.RepositoryConfig, tp driven.TokenProvider) (driven.Repository, error) {
		gotTokens = tp
		return memory.New("fake"), nil
	})

	repo, err := f.Create(context.Background(), session("fake", map[string]string{"k": "v"}))
	require.NoError(t, err)
	assert.Equal(t, "fake", repo.ID())
	assert.Equal(t, "v", gotCfg.Config["k"])
	assert.Equal(t, fakeToken{}, gotTokens)
}

func TestFactory_TokenProviderError(t *testing.T) {
	f := NewFactory(func(context.Context, domain.RepositoryConfig) (driven.TokenProvider, error) {
		return nil, domain.ErrAuthRequired
	})
	f.Register(memory.Type, memory.Builder)

	_, err := f.Create(context.Background(), session(memory.Type, nil))
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestFactory_BuilderError(t *testing.T) {
	boom := errors.New("boom")
	f := NewFactory(nil)
	f.Register("broken", func(context.Context, domain.RepositoryConfig, driven.TokenProvider) (driven.Repository, error) {
		return nil, boom
	})

	_, err := f.Create(context.Background(), session("broken", nil))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "build broken repository")
}

func TestFactory_RegisterReplaces(t *testing.T) {
	f := NewFactory(nil)
	f.Register("x", func(context.Context, domain.RepositoryConfig, driven.TokenProvider) (driven.Repository, error) {
		return memory.New("first"), nil
	})
	f.Register("x", func(context.Context, domain.RepositoryConfig, driven.TokenProvider) (driven.Repository, error) {
		return memory.New("second"), nil
	})

	repo, err := f.Create(context.Background(), session("x", nil))
	require.NoError(t, err)
	assert.Equal(t, "second", repo.ID())
	assert.Equal(t, []string{"x"}, f.SupportedTypes())
}

func TestWatchPaths(t *testing.T) {
	paths, err := WatchPaths(domain.RepositoryConfig{Type: "github", Config: map[string]string{"repository": "o/r"}})
	require.NoError(t, err)
	assert.Nil(t, paths)

	dir := t.TempDir()
	paths, err = WatchPaths(domain.RepositoryConfig{Type: "git", Config: map[string]string{"path": dir}})
	require.NoError(t, err)
	assert.Equal(t, []string{dir, dir + "/refs/heads"}, paths)

	_, err = WatchPaths(domain.RepositoryConfig{Type: "git"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
