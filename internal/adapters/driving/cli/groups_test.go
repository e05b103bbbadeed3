package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func groupFixtures() (*fakeSessions, *fakePipeline) {
	sessions := newFakeSessions(domain.Session{ID: "app", SourceID: "src", PeerSourceID: "peer"})
	pipeline := &fakePipeline{groups: map[string][]domain.ChangeGroup{
		"src": {
			{ID: "d2", SourceID: "src", Name: "2", ExecutionOrder: 2, Status: domain.StatusDeltaComplete, Comment: "second"},
			{ID: "d1", SourceID: "src", Name: "1", ExecutionOrder: 1, Status: domain.StatusDeltaComplete, Comment: "first\nline"},
		},
		"peer": {
			{
				ID: "i1", SourceID: "peer", Name: "1", ExecutionOrder: 1, Status: domain.StatusPending,
				ContainsBackloggedAction: true, ReflectedChangeGroupID: "d1",
				Owner: "alice", Comment: "first",
				Actions: []domain.MigrationAction{
					{Order: 0, Kind: domain.ActionAdd, ItemType: domain.ItemFile, Path: "/a.txt", Version: "1"},
					{Order: 1, Kind: domain.ActionRename, ItemType: domain.ItemFile, SourcePath: "/b.txt", Path: "/c.txt", Version: "0"},
				},
			},
		},
	}}
	return sessions, pipeline
}

func TestGroupsListCmd(t *testing.T) {
	sessions, pipeline := groupFixtures()
	useServices(t, Services{Sessions: sessions, Pipeline: pipeline})

	out, err := execute(t, "groups", "list", "app")
	require.NoError(t, err)
	assert.Equal(t, domain.AllChangeGroupStatuses(), pipeline.filtered)
	assert.Less(t, strings.Index(out, "d1"), strings.Index(out, "d2"))
	assert.Less(t, strings.Index(out, "d2"), strings.Index(out, "i1"))
	assert.Contains(t, out, "first line")
	assert.Contains(t, out, "yes")
}

func TestGroupsListCmd_Filters(t *testing.T) {
	sessions, pipeline := groupFixtures()
	useServices(t, Services{Sessions: sessions, Pipeline: pipeline})

	out, err := execute(t, "groups", "list", "app", "--side", "peer", "--status", "Pending,InProgress")
	require.NoError(t, err)
	assert.Equal(t, []domain.ChangeGroupStatus{domain.StatusPending, domain.StatusInProgress}, pipeline.filtered)
	assert.Contains(t, out, "i1")
	assert.NotContains(t, out, "d1")

	_, err = execute(t, "groups", "list", "app", "--side", "both")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "groups", "list", "app", "--status", "Finished")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "groups", "list", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGroupsListCmd_Empty(t *testing.T) {
	sessions, _ := groupFixtures()
	useServices(t, Services{Sessions: sessions, Pipeline: &fakePipeline{}})

	out, err := execute(t, "groups", "list", "app")
	require.NoError(t, err)
	assert.Contains(t, out, "No change groups.")
}

func TestGroupsShowCmd(t *testing.T) {
	sessions, pipeline := groupFixtures()
	useServices(t, Services{Sessions: sessions, Pipeline: pipeline})

	out, err := execute(t, "groups", "show", "i1")
	require.NoError(t, err)
	assert.Contains(t, out, "Reflects:  d1")
	assert.Contains(t, out, "Owner:     alice")
	assert.Contains(t, out, "/b.txt")
	assert.Contains(t, out, "/c.txt")
	assert.Contains(t, out, string(domain.ActionRename))

	out, err = execute(t, "groups", "show", "d2")
	require.NoError(t, err)
	assert.Contains(t, out, "No actions.")

	_, err = execute(t, "groups", "show", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGroupsCmd_NotConfigured(t *testing.T) {
	useServices(t, Services{Sessions: newFakeSessions()})
	_, err := execute(t, "groups", "list", "app")
	assert.ErrorIs(t, err, errPipelineNotConfigured)

	_, err = execute(t, "groups", "show", "g")
	assert.ErrorIs(t, err, errPipelineNotConfigured)
}
