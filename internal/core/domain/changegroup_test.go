package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeGroupStatus_IsValid(t *testing.T) {
	for _, s := range AllChangeGroupStatuses() {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, ChangeGroupStatus("Unknown").IsValid())
	assert.False(t, ChangeGroupStatus("").IsValid())
}

func TestChangeGroupStatus_Classification(t *testing.T) {
	assert.True(t, StatusDelta.IsOpen())
	assert.True(t, StatusAnalysisMigrationInstruction.IsOpen())
	assert.False(t, StatusPending.IsOpen())

	assert.True(t, StatusDeltaComplete.IsDelta())
	assert.False(t, StatusComplete.IsDelta())
}

func TestChangeGroupStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to ChangeGroupStatus
		want     bool
	}{
		{StatusDelta, StatusDeltaPending, true},
		{StatusDeltaPending, StatusDeltaComplete, true},
		{StatusAnalysisMigrationInstruction, StatusPendingConflictDetection, true},
		{StatusPendingConflictDetection, StatusPending, true},
		{StatusPending, StatusInProgress, true},
		{StatusInProgress, StatusPending, true},
		{StatusInProgress, StatusComplete, true},
		{StatusObsolete, StatusPending, true},
		{StatusDelta, StatusComplete, false},
		{StatusPending, StatusComplete, false},
		{StatusComplete, StatusInProgress, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatusChange_Validate(t *testing.T) {
	require.NoError(t, StatusChange{GroupID: "g1", From: StatusPending, To: StatusInProgress}.Validate())

	err := StatusChange{GroupID: "g1", From: StatusDelta, To: StatusComplete}.Validate()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "g1")
}

func newTestChangeSet() *ChangeSet {
	return &ChangeSet{
		Revision: 7,
		Author:   "alice",
		Comment:  "fix build",
		Time:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewDeltaGroup(t *testing.T) {
	g := NewDeltaGroup("g1", "s1", "src", newTestChangeSet())

	assert.Equal(t, "7", g.Name)
	assert.Equal(t, int64(7), g.ExecutionOrder)
	assert.Equal(t, Revision(7), g.Revision())
	assert.Equal(t, "alice", g.Owner)
	assert.Equal(t, StatusDelta, g.Status)
	assert.Empty(t, g.Actions)
}

func TestChangeGroup_CreateAction(t *testing.T) {
	g := NewDeltaGroup("g1", "s1", "src", newTestChangeSet())
	src := SourceItem{RepositoryID: "repo", Path: "/trunk/a.txt", Revision: 7, ItemType: ItemFile}

	a, err := g.CreateAction(ActionAdd, src, "", "/trunk/a.txt", "7", "", ItemFile)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Order)

	b, err := g.CreateAction(ActionEdit, src, "", "/trunk/a.txt", "7", "", ItemFile)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Order)

	decoded, err := DecodeSourceItem(b.SourceItem)
	require.NoError(t, err)
	assert.Equal(t, src, decoded)

	_, err = g.CreateAction(ActionKind("Teleport"), src, "", "/x", "7", "", ItemFile)
	assert.ErrorIs(t, err, ErrInvalidInput)

	g.Status = StatusDeltaPending
	_, err = g.CreateAction(ActionDelete, src, "", "/trunk/a.txt", "7", "", ItemFile)
	assert.ErrorIs(t, err, ErrGroupSealed)
	assert.Len(t, g.Actions, 2)
}

func TestChangeGroup_ActionsOfKind(t *testing.T) {
	g := NewDeltaGroup("g1", "s1", "src", newTestChangeSet())
	_, _ = g.CreateAction(ActionAdd, SourceItem{}, "", "/a", "7", "", ItemFile)
	_, _ = g.CreateAction(ActionDelete, SourceItem{}, "", "/b", "7", "", ItemFile)
	_, _ = g.CreateAction(ActionAdd, SourceItem{}, "", "/c", "7", "", ItemFile)

	adds := g.ActionsOfKind(ActionAdd)
	require.Len(t, adds, 2)
	assert.Equal(t, "/a", adds[0].Path)
	assert.Equal(t, "/c", adds[1].Path)
	assert.Nil(t, g.ActionsOfKind(ActionMerge))
}

func TestChangeGroup_CloneAsInstruction(t *testing.T) {
	g := NewDeltaGroup("g1", "s1", "src", newTestChangeSet())
	_, _ = g.CreateAction(ActionAdd, SourceItem{}, "", "/a", "7", "", ItemFile)

	inst := g.CloneAsInstruction("i1", "peer")

	assert.Equal(t, "i1", inst.ID)
	assert.Equal(t, "peer", inst.SourceID)
	assert.Equal(t, "g1", inst.ReflectedChangeGroupID)
	assert.Equal(t, StatusAnalysisMigrationInstruction, inst.Status)
	assert.Equal(t, g.ExecutionOrder, inst.ExecutionOrder)
	require.Len(t, inst.Actions, 1)

	inst.Actions[0].Path = "/changed"
	assert.Equal(t, "/a", g.Actions[0].Path)
}
