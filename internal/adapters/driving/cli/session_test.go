package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func TestSessionCmd_NotConfigured(t *testing.T) {
	useServices(t, Services{})

	for _, args := range [][]string{
		{"session", "list"},
		{"session", "show", "x"},
		{"session", "remove", "x"},
		{"session", "types"},
		{"session", "add", "x", "--type", "git", "--map", "/"},
	} {
		_, err := execute(t, args...)
		assert.ErrorIs(t, err, errSessionsNotConfigured, args)
	}
}

func TestSessionAddCmd(t *testing.T) {
	sessions := newFakeSessions()
	useServices(t, Services{Sessions: sessions})

	out, err := execute(t, "session", "add", "app",
		"--type", "git",
		"--config", "path=/src/app",
		"--config", "ref=main",
		"--source", "app-git",
		"--peer", "app-svn",
		"--map", "/trunk,/branches",
		"--cloak", "/trunk/vendor",
		"--page-size", "20",
		"--skip-comment", "[skip]",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Session app added: app-git -> app-svn (2 mapped, 1 cloaked)")

	added := sessions.added
	require.NotNil(t, added)
	assert.Equal(t, "git", added.Repository.Type)
	assert.Equal(t, map[string]string{"path": "/src/app", "ref": "main"}, added.Repository.Config)
	assert.Equal(t, []string{"/trunk", "/branches"}, added.MappedPaths)
	assert.Equal(t, []string{"/trunk/vendor"}, added.CloakedPaths)
	assert.Equal(t, 20, added.PageSize)
	assert.Equal(t, "[skip]", added.SkipComment)
}

func TestSessionAddCmd_DefaultSides(t *testing.T) {
	sessions := newFakeSessions()
	useServices(t, Services{Sessions: sessions})

	_, err := execute(t, "session", "add", "app", "--type", "memory", "--map", "/")
	require.NoError(t, err)
	assert.Equal(t, "app-source", sessions.added.SourceID)
	assert.Equal(t, "app-peer", sessions.added.PeerSourceID)
	assert.Empty(t, sessions.added.Repository.Config)
}

func TestSessionAddCmd_Errors(t *testing.T) {
	sessions := newFakeSessions()
	useServices(t, Services{Sessions: sessions})

	_, err := execute(t, "session", "add", "app", "--map", "/")
	assert.ErrorContains(t, err, `required flag(s) "type" not set`)

	_, err = execute(t, "session", "add", "app", "--type", "git")
	assert.ErrorContains(t, err, `required flag(s) "map" not set`)

	sessions.err = domain.ErrAlreadyExists
	_, err = execute(t, "session", "add", "app", "--type", "git", "--map", "/")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSessionListCmd(t *testing.T) {
	useServices(t, Services{Sessions: newFakeSessions()})
	out, err := execute(t, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions configured.")

	useServices(t, Services{Sessions: newFakeSessions(
		domain.Session{
			ID: "b", SourceID: "b-src", PeerSourceID: "b-peer",
			Repository:  domain.RepositoryConfig{Type: "github"},
			MappedPaths: []string{"/x", "/y"},
		},
		domain.Session{ID: "a", SourceID: "a-src", PeerSourceID: "a-peer", Repository: domain.RepositoryConfig{Type: "git"}},
	)})
	out, err = execute(t, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "a-src -> a-peer")
	assert.Contains(t, out, "/x, /y")
	assert.Less(t, strings.Index(out, "a-src"), strings.Index(out, "b-src"))

	failing := newFakeSessions()
	failing.err = errors.New("db locked")
	useServices(t, Services{Sessions: failing})
	_, err = execute(t, "session", "list")
	assert.ErrorContains(t, err, "db locked")
}

func TestSessionShowCmd(t *testing.T) {
	useServices(t, Services{Sessions: newFakeSessions(domain.Session{
		ID: "app", Name: "App", SourceID: "git", PeerSourceID: "svn",
		Repository: domain.RepositoryConfig{
			Type:   "github",
			Config: map[string]string{"repository": "acme/app", "token": "secret"},
		},
		MappedPaths:  []string{"/"},
		CloakedPaths: []string{"/docs"},
		SkipComment:  "[no-sync]",
	})})

	out, err := execute(t, "session", "show", "app")
	require.NoError(t, err)
	assert.Contains(t, out, "repository = acme/app")
	assert.Contains(t, out, "token = ****")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "Cloaked:      /docs")
	assert.Contains(t, out, "Page size:    50")
	assert.Contains(t, out, "Skip comment: [no-sync]")

	_, err = execute(t, "session", "show", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionRemoveCmd(t *testing.T) {
	sessions := newFakeSessions(domain.Session{ID: "app"})
	useServices(t, Services{Sessions: sessions})

	out, err := execute(t, "session", "remove", "app")
	require.NoError(t, err)
	assert.Contains(t, out, "Session app removed.")
	assert.Empty(t, sessions.sessions)

	_, err = execute(t, "session", "remove", "app")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execute(t, "session", "remove")
	assert.Error(t, err)
}

func TestSessionTypesCmd(t *testing.T) {
	useServices(t, Services{Sessions: newFakeSessions()})

	out, err := execute(t, "session", "types")
	require.NoError(t, err)
	assert.Equal(t, "git\ngithub\nmemory\n", out)
}
