package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/vcsbridge/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func newConflict(scope string, rev domain.Revision) domain.Conflict {
	return domain.Conflict{
		SessionID: "s1",
		Type:      domain.ConflictBranchParentNotFound,
		Scope:     scope,
		Revision:  rev,
		Details:   "parent missing",
	}
}

func TestConflictManager_UnresolvedWithoutRule(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewConflictStore()
	m := NewConflictManager(store)

	result, err := m.TryResolveNewConflict(ctx, "left", newConflict("proj/app", 3))
	require.NoError(t, err)
	assert.False(t, result.Resolved)
	assert.NotEmpty(t, result.ConflictID)

	active, err := m.List(ctx, "s1", domain.ConflictActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "/proj/app", active[0].Scope)
	assert.Equal(t, "left", active[0].SourceID)
	assert.Equal(t, result.ConflictID, active[0].ID)

	again, err := m.TryResolveNewConflict(ctx, "left", newConflict("/proj/app", 3))
	require.NoError(t, err)
	assert.Equal(t, result.ConflictID, again.ConflictID)

	all, err := m.List(ctx, "s1", "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConflictManager_MostSpecificRuleWins(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewConflictStore()
	m := NewConflictManager(store)

	rules := []domain.ResolutionRule{
		{ID: "root", SessionID: "s1", ConflictType: domain.ConflictBranchParentNotFound, Scope: "/",
			Resolution: domain.ResolutionUpdatedConflictedChangeAction},
		{ID: "manual", SessionID: "s1", ConflictType: domain.ConflictBranchParentNotFound, Scope: "/proj/legacy",
			Resolution: domain.ResolutionManual},
	}
	for _, r := range rules {
		require.NoError(t, store.SaveRule(ctx, r))
	}

	tests := []struct {
		scope    string
		resolved bool
	}{
		{"/proj/app", true},
		{"/proj/legacy", false},
		{"/proj/legacy/sub", false},
		{"/proj/legacy2", true},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			result, err := m.TryResolveNewConflict(ctx, "left", newConflict(tt.scope, 1))
			require.NoError(t, err)
			assert.Equal(t, tt.resolved, result.Resolved)
			if tt.resolved {
				assert.Equal(t, domain.ResolutionUpdatedConflictedChangeAction, result.ResolutionType)
			}
		})
	}
}

func TestConflictManager_Resolve(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewConflictStore()
	m := NewConflictManager(store)

	first, err := m.TryResolveNewConflict(ctx, "left", newConflict("/proj/app/x", 5))
	require.NoError(t, err)

	_, err = m.Resolve(ctx, first.ConflictID, domain.ResolutionType("ignore"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = m.Resolve(ctx, first.ConflictID, domain.ResolutionUpdatedConflictedChangeAction, "/other")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = m.Resolve(ctx, "missing", domain.ResolutionUpdatedConflictedChangeAction, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rule, err := m.Resolve(ctx, first.ConflictID, domain.ResolutionUpdatedConflictedChangeAction, "/proj")
	require.NoError(t, err)
	assert.Equal(t, "/proj", rule.Scope)
	assert.Equal(t, "s1", rule.SessionID)

	resolved, err := m.List(ctx, "s1", domain.ConflictResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.ResolutionUpdatedConflictedChangeAction, resolved[0].Resolution)

	scopes, err := m.ActiveScopes(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, scopes)

	// The stored rule covers later conflicts below its scope.
	next, err := m.TryResolveNewConflict(ctx, "left", newConflict("/proj/lib", 6))
	require.NoError(t, err)
	assert.True(t, next.Resolved)
}

func TestConflictManager_ManualResolutionKeepsConflictActive(t *testing.T) {
	ctx := context.Background()
	m := NewConflictManager(memstore.NewConflictStore())

	first, err := m.TryResolveNewConflict(ctx, "left", newConflict("/a", 1))
	require.NoError(t, err)

	_, err = m.Resolve(ctx, first.ConflictID, domain.ResolutionManual, "")
	require.NoError(t, err)

	scopes, err := m.ActiveScopes(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a"}, scopes)
}
