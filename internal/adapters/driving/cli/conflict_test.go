package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func TestConflictListCmd(t *testing.T) {
	conflicts := &fakeConflicts{conflicts: []domain.Conflict{
		{
			ID: "c1", Type: domain.ConflictBranchParentNotFound, Scope: "/trunk/lib",
			Revision: 7, Status: domain.ConflictActive, Details: "copy source /old is not mapped",
		},
	}}
	useServices(t, Services{Conflicts: conflicts})

	out, err := execute(t, "conflict", "list", "app")
	require.NoError(t, err)
	assert.Equal(t, domain.ConflictStatus(""), conflicts.status)
	assert.Contains(t, out, "c1")
	assert.Contains(t, out, "branch-parent-not-found")
	assert.Contains(t, out, "/trunk/lib")
	assert.Contains(t, out, "active")

	_, err = execute(t, "conflict", "list", "app", "--status", "resolved")
	require.NoError(t, err)
	assert.Equal(t, domain.ConflictResolved, conflicts.status)

	_, err = execute(t, "conflict", "list", "app", "--status", "open")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConflictListCmd_Empty(t *testing.T) {
	useServices(t, Services{Conflicts: &fakeConflicts{}})

	out, err := execute(t, "conflict", "list", "app")
	require.NoError(t, err)
	assert.Contains(t, out, "No conflicts.")
}

func TestConflictResolveCmd(t *testing.T) {
	conflicts := &fakeConflicts{}
	useServices(t, Services{Conflicts: conflicts})

	out, err := execute(t, "conflict", "resolve", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", conflicts.resolved.id)
	assert.Equal(t, domain.ResolutionUpdatedConflictedChangeAction, conflicts.resolved.resolution)
	assert.Empty(t, conflicts.resolved.scope)
	assert.Contains(t, out, "rule rule-1 covers /trunk/lib")

	out, err = execute(t, "conflict", "resolve", "c1", "--resolution", "manual", "--scope", "/trunk")
	require.NoError(t, err)
	assert.Equal(t, "/trunk", conflicts.resolved.scope)
	assert.Contains(t, out, "stays in the backlog")

	_, err = execute(t, "conflict", "resolve", "c1", "--resolution", "ignore")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConflictCmd_NotConfigured(t *testing.T) {
	useServices(t, Services{})

	_, err := execute(t, "conflict", "list", "app")
	assert.ErrorIs(t, err, errConflictsNotConfigured)
	_, err = execute(t, "conflict", "resolve", "c1")
	assert.ErrorIs(t, err, errConflictsNotConfigured)
}
