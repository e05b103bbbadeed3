package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/vcsbridge/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vcsbridge/internal/connectors/memory"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func newDiscoveryFixture(mapped ...string) (*DeltaDiscovery, *memstore.Store, *domain.Session) {
	store := memstore.NewStore()
	session := &domain.Session{
		ID:           "s1",
		SourceID:     "left",
		PeerSourceID: "right",
		MappedPaths:  mapped,
		SkipComment:  "**NOMIGRATION**",
	}
	return NewDeltaDiscovery(store.HighWaterMarkStore(), store.ConversionHistoryStore()), store, session
}

func TestDeltaDiscovery_FindsNewMappedRevisions(t *testing.T) {
	ctx := context.Background()
	d, _, session := newDiscoveryFixture("/a", "/b")
	repo := memory.New("mem")
	repo.MustCommit("u", "1", memory.AddFile("/a/f", "1"))
	repo.MustCommit("u", "2", memory.AddFile("/c/f", "1"))
	repo.MustCommit("u", "3", memory.AddFile("/b/f", "1"), memory.Modify("/a/f", "2"))
	repo.MustCommit("u", "4", memory.AddFile("/b/g", "1"))

	result, err := d.Discover(ctx, session, repo, NewPathMapping(session))
	require.NoError(t, err)

	assert.Equal(t, []domain.Revision{1, 3, 4}, result.Revisions)
	assert.Equal(t, domain.Revision(4), result.Head)
	assert.Equal(t, domain.NoRevision, result.LastAnalyzed)
}

func TestDeltaDiscovery_StartsAfterHighWaterMark(t *testing.T) {
	ctx := context.Background()
	d, store, session := newDiscoveryFixture("/a")
	repo := linearRepoAt("/a", 5)
	require.NoError(t, store.HighWaterMarkStore().Save(ctx, domain.HighWaterMark{
		SessionID: "s1", SourceID: "left", Name: domain.HWMLastAnalyzedRevision, Value: 3,
	}))

	result, err := d.Discover(ctx, session, repo, NewPathMapping(session))
	require.NoError(t, err)
	assert.Equal(t, []domain.Revision{4, 5}, result.Revisions)
	assert.Equal(t, domain.Revision(3), result.LastAnalyzed)
}

func TestDeltaDiscovery_IdempotentWithoutNewCommits(t *testing.T) {
	ctx := context.Background()
	d, store, session := newDiscoveryFixture("/a")
	repo := memory.New("mem")
	repo.MustCommit("u", "1", memory.AddFile("/a/f", "1"))
	repo.MustCommit("u", "2", memory.AddFile("/elsewhere", "1"))
	require.NoError(t, store.HighWaterMarkStore().Save(ctx, domain.HighWaterMark{
		SessionID: "s1", SourceID: "left", Name: domain.HWMLastAnalyzedRevision, Value: 1,
	}))

	for i := 0; i < 2; i++ {
		result, err := d.Discover(ctx, session, repo, NewPathMapping(session))
		require.NoError(t, err)
		assert.Empty(t, result.Revisions, "run %d", i+1)

		mark, err := store.HighWaterMarkStore().Get(ctx, "s1", "left", domain.HWMLastAnalyzedRevision)
		require.NoError(t, err)
		assert.Equal(t, domain.Revision(2), mark.Value, "run %d", i+1)
	}
}

func TestDeltaDiscovery_ExcludesSkipComment(t *testing.T) {
	ctx := context.Background()
	d, _, session := newDiscoveryFixture("/a")
	repo := memory.New("mem")
	repo.MustCommit("u", "first", memory.AddFile("/a/f", "1"))
	repo.MustCommit("u", "sync back **NOMIGRATION** please", memory.Modify("/a/f", "2"))
	repo.MustCommit("u", "third", memory.Modify("/a/f", "3"))

	result, err := d.Discover(ctx, session, repo, NewPathMapping(session))
	require.NoError(t, err)
	assert.Equal(t, []domain.Revision{1, 3}, result.Revisions)
	assert.Equal(t, 1, result.SkippedComment)
}

func TestDeltaDiscovery_ExcludesMigratedRevisions(t *testing.T) {
	ctx := context.Background()
	d, store, session := newDiscoveryFixture("/a")
	repo := linearRepoAt("/a", 3)
	require.NoError(t, store.ConversionHistoryStore().Record(ctx, domain.ConversionRecord{
		SessionID:      "s1-reverse",
		SourceID:       "right",
		SourceRevision: 17,
		TargetSourceID: "left",
		TargetRevision: 2,
		RecordedAt:     time.Now(),
	}))

	result, err := d.Discover(ctx, session, repo, NewPathMapping(session))
	require.NoError(t, err)
	assert.Equal(t, []domain.Revision{1, 3}, result.Revisions)
	assert.Equal(t, 1, result.SkippedMigrated)
}

func TestDeltaDiscovery_ExcludesRevisionsMigratedByForwardSession(t *testing.T) {
	ctx := context.Background()
	forward := newPipelineFixture()
	d := forward.saveDelta(t, 1)
	instruction := forward.instructions(t)[d.ID]
	_, err := forward.pipeline.CheckoutInstructions(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, forward.pipeline.CompleteInstruction(ctx, instruction, 2))

	reverse := &domain.Session{ID: "s1-reverse", SourceID: "right", PeerSourceID: "left", MappedPaths: []string{"/a"}}
	discovery := NewDeltaDiscovery(forward.store.HighWaterMarkStore(), forward.store.ConversionHistoryStore())
	result, err := discovery.Discover(ctx, reverse, linearRepoAt("/a", 3), NewPathMapping(reverse))
	require.NoError(t, err)
	assert.Equal(t, []domain.Revision{1, 3}, result.Revisions)
	assert.Equal(t, 1, result.SkippedMigrated)
}

func TestDeltaDiscovery_EmptyRepository(t *testing.T) {
	ctx := context.Background()
	d, store, session := newDiscoveryFixture("/a")

	result, err := d.Discover(ctx, session, memory.New("mem"), NewPathMapping(session))
	require.NoError(t, err)
	assert.Empty(t, result.Revisions)

	_, err = store.HighWaterMarkStore().Get(ctx, "s1", "left", domain.HWMLastAnalyzedRevision)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// linearRepoAt commits n change-sets touching root.
func linearRepoAt(root string, n int) *memory.Repository {
	repo := memory.New("mem")
	repo.MustCommit("u", "r1", memory.AddFile(root+"/f", "0"))
	for i := 2; i <= n; i++ {
		repo.MustCommit("u", "edit", memory.Modify(root+"/f", string(rune('a'+i))))
	}
	return repo
}
