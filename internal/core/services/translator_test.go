package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/vcsbridge/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vcsbridge/internal/connectors/memory"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

type translatorFixture struct {
	repo      *memory.Repository
	conflicts *memstore.ConflictStore
	manager   *ConflictManager
	session   *domain.Session
}

func newTranslatorFixture(mapped, cloaked []string) *translatorFixture {
	conflicts := memstore.NewConflictStore()
	return &translatorFixture{
		repo:      memory.New("mem"),
		conflicts: conflicts,
		manager:   NewConflictManager(conflicts),
		session: &domain.Session{
			ID:           "s1",
			SourceID:     "left",
			PeerSourceID: "right",
			MappedPaths:  mapped,
			CloakedPaths: cloaked,
		},
	}
}

func (f *translatorFixture) translator(known ...domain.Revision) *Translator {
	return NewTranslator(f.repo, NewPathMapping(f.session), f.manager, f.session, known)
}

func (f *translatorFixture) changeSet(t *testing.T, rev domain.Revision) *domain.ChangeSet {
	t.Helper()
	history, err := f.repo.QueryHistoryRange(context.Background(), domain.RootPath, rev, rev, true)
	require.NoError(t, err)
	cs := history[rev]
	require.NotNil(t, cs, "no change-set at r%d", rev)
	return cs
}

// translate runs a full translation of rev with known revisions.
func (f *translatorFixture) translate(
	t *testing.T, rev domain.Revision, known ...domain.Revision,
) (*domain.ChangeGroup, error) {
	t.Helper()
	cs := f.changeSet(t, rev)
	group := domain.NewDeltaGroup("g", f.session.ID, f.session.SourceID, cs)
	err := f.translator(known...).Translate(context.Background(), cs, group)
	return group, err
}

type actionSummary struct {
	Kind domain.ActionKind
	From string
	Path string
}

func summarize(actions []domain.MigrationAction) []actionSummary {
	out := make([]actionSummary, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionSummary{Kind: a.Kind, From: a.SourcePath, Path: a.Path})
	}
	return out
}

func TestTranslator_AddCreatesSingleAction(t *testing.T) {
	f := newTranslatorFixture([]string{"/p"}, nil)
	rev := f.repo.MustCommit("alice", "add", memory.AddFile("/p/newfile.txt", "hello"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	require.Len(t, group.Actions, 1)
	a := group.Actions[0]
	assert.Equal(t, domain.ActionAdd, a.Kind)
	assert.Equal(t, "/p/newfile.txt", a.Path)
	assert.Empty(t, a.SourcePath)
	assert.Equal(t, "1", a.Version)
	assert.Equal(t, domain.ItemFile, a.ItemType)

	item, err := domain.DecodeSourceItem(a.SourceItem)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceItem{RepositoryID: "mem", Path: "/p/newfile.txt", Revision: rev, ItemType: domain.ItemFile}, item)
}

func TestTranslator_DeleteFolder(t *testing.T) {
	f := newTranslatorFixture([]string{"/p"}, nil)
	f.repo.MustCommit("alice", "add", memory.AddFolder("/p/old"))
	rev := f.repo.MustCommit("alice", "delete", memory.Delete("/p/old"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{{Kind: domain.ActionDelete, Path: "/p/old"}}, summarize(group.Actions))
	assert.Equal(t, domain.ItemFolder, group.Actions[0].ItemType)
}

func TestTranslator_DeletesDeepestFirst(t *testing.T) {
	f := newTranslatorFixture([]string{"/"}, nil)
	f.repo.MustCommit("alice", "add", memory.AddFile("/a/b/c", "x"))
	rev := f.repo.MustCommit("alice", "delete",
		memory.Raw(domain.Change{Path: "/a", Kind: domain.ChangeDelete, ItemType: domain.ItemFolder}),
		memory.Raw(domain.Change{Path: "/a/b", Kind: domain.ChangeDelete, ItemType: domain.ItemFolder}),
		memory.Raw(domain.Change{Path: "/a/b/c", Kind: domain.ChangeDelete, ItemType: domain.ItemFile}),
	)

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionDelete, Path: "/a/b/c"},
		{Kind: domain.ActionDelete, Path: "/a/b"},
		{Kind: domain.ActionDelete, Path: "/a"},
	}, summarize(group.Actions))
}

func TestTranslator_DeleteLooksUpUnknownItemType(t *testing.T) {
	f := newTranslatorFixture([]string{"/"}, nil)
	f.repo.MustCommit("alice", "add", memory.AddFile("/p/f", "x"))
	rev := f.repo.MustCommit("alice", "delete",
		memory.Raw(domain.Change{Path: "/p/f", Kind: domain.ChangeDelete}),
		memory.Raw(domain.Change{Path: "/p/ghost", Kind: domain.ChangeDelete}),
	)

	_, err := f.translate(t, rev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInternal))

	var internal *domain.InternalError
	require.ErrorAs(t, err, &internal)
	assert.Contains(t, internal.Detail, "/p/ghost")
}

func TestTranslator_RenameIsNotDoubleCounted(t *testing.T) {
	f := newTranslatorFixture([]string{"/"}, nil)
	r1 := f.repo.MustCommit("alice", "add", memory.AddFile("/x", "same"))
	rev := f.repo.MustCommit("alice", "move", memory.Copy("/x", r1, "/y"), memory.Delete("/x"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{{Kind: domain.ActionRename, From: "/x", Path: "/y"}}, summarize(group.Actions))
	assert.Equal(t, r1.String(), group.Actions[0].Version)
	assert.Empty(t, group.ActionsOfKind(domain.ActionDelete))
}

func TestTranslator_RenameWithContentChangeAddsEdit(t *testing.T) {
	f := newTranslatorFixture([]string{"/"}, nil)
	r1 := f.repo.MustCommit("alice", "add", memory.AddFile("/x", "before"))
	rev := f.repo.MustCommit("alice", "move", memory.CopyAndModify("/x", r1, "/y", "after"), memory.Delete("/x"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionRename, From: "/x", Path: "/y"},
		{Kind: domain.ActionEdit, Path: "/y"},
	}, summarize(group.Actions))
}

func TestTranslator_NestedRenameResolvesThroughParent(t *testing.T) {
	f := newTranslatorFixture([]string{"/"}, nil)
	r1 := f.repo.MustCommit("alice", "add", memory.AddFile("/A/f", "content"))
	rev := f.repo.MustCommit("alice", "moves",
		memory.Copy("/A", r1, "/B"),
		memory.Delete("/A"),
		memory.Copy("/A/f", r1, "/C/g"),
		memory.Delete("/B/f"),
	)

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionRename, From: "/A", Path: "/B"},
		{Kind: domain.ActionRename, From: "/B/f", Path: "/C/g"},
	}, summarize(group.Actions))
}

func TestTranslator_FolderBranchFansOut(t *testing.T) {
	f := newTranslatorFixture([]string{"/"}, nil)
	r1 := f.repo.MustCommit("alice", "add",
		memory.AddFile("/src/a", "a"),
		memory.AddFile("/src/b/c", "c"),
	)
	rev := f.repo.MustCommit("alice", "branch", memory.Copy("/src", r1, "/dst"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionBranch, From: "/src", Path: "/dst"},
		{Kind: domain.ActionBranch, From: "/src/a", Path: "/dst/a"},
		{Kind: domain.ActionBranch, From: "/src/b", Path: "/dst/b"},
		{Kind: domain.ActionBranch, From: "/src/b/c", Path: "/dst/b/c"},
	}, summarize(group.Actions))
	for _, a := range group.Actions {
		assert.Equal(t, r1.String(), a.Version)
	}
}

func TestTranslator_FolderBranchHonoursCloaks(t *testing.T) {
	f := newTranslatorFixture([]string{"/"}, []string{"/src/secret", "/dst/skip"})
	r1 := f.repo.MustCommit("alice", "add",
		memory.AddFile("/src/secret/k", "k"),
		memory.AddFile("/src/skip/s", "s"),
	)
	rev := f.repo.MustCommit("alice", "branch", memory.Copy("/src", r1, "/dst"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionBranch, From: "/src", Path: "/dst"},
		{Kind: domain.ActionAdd, Path: "/dst/secret"},
		{Kind: domain.ActionAdd, Path: "/dst/secret/k"},
	}, summarize(group.Actions))
}

func TestTranslator_FileBranchWithEdit(t *testing.T) {
	f := newTranslatorFixture([]string{"/"}, nil)
	r1 := f.repo.MustCommit("alice", "add", memory.AddFile("/f", "one"))
	rev := f.repo.MustCommit("alice", "branch", memory.CopyAndModify("/f", r1, "/g", "two"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionBranch, From: "/f", Path: "/g"},
		{Kind: domain.ActionEdit, Path: "/g"},
	}, summarize(group.Actions))
}

func TestTranslator_EditSkipsFoldersAndUnmapped(t *testing.T) {
	f := newTranslatorFixture([]string{"/p"}, nil)
	f.repo.MustCommit("alice", "add", memory.AddFile("/p/f", "1"), memory.AddFile("/q/f", "1"))
	rev := f.repo.MustCommit("alice", "edit",
		memory.Modify("/p/f", "2"),
		memory.Modify("/q/f", "2"),
		memory.Raw(domain.Change{Path: "/p", Kind: domain.ChangeModify, ItemType: domain.ItemFolder}),
	)

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{{Kind: domain.ActionEdit, Path: "/p/f"}}, summarize(group.Actions))
}

func TestTranslator_UnmappedAncestorBranch(t *testing.T) {
	f := newTranslatorFixture([]string{"/old/app", "/proj/app"}, nil)
	r1 := f.repo.MustCommit("alice", "add",
		memory.AddFile("/old/app/main.go", "package main"),
		memory.AddFile("/old/docs/readme", "docs"),
	)
	rev := f.repo.MustCommit("alice", "branch", memory.Copy("/old", r1, "/proj"))

	group, err := f.translate(t, rev, r1, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionBranch, From: "/old/app", Path: "/proj/app"},
		{Kind: domain.ActionBranch, From: "/old/app/main.go", Path: "/proj/app/main.go"},
	}, summarize(group.Actions))
}

func TestTranslator_UnmappedParentRaisesConflict(t *testing.T) {
	f := newTranslatorFixture([]string{"/proj/app"}, nil)
	r1 := f.repo.MustCommit("alice", "add", memory.AddFile("/old/app/main.go", "package main"))
	rev := f.repo.MustCommit("alice", "branch", memory.Copy("/old", r1, "/proj"))

	_, err := f.translate(t, rev, r1)
	require.Error(t, err)

	uc, ok := domain.IsUnresolvedConflict(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, domain.ConflictBranchParentNotFound, uc.Conflict.Type)
	assert.Equal(t, "/proj/app", uc.Conflict.Scope)
	assert.Equal(t, rev, uc.Conflict.Revision)

	active, err := f.conflicts.ListConflicts(context.Background(), "s1", domain.ConflictActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "left", active[0].SourceID)
}

func TestTranslator_ConflictRecoveryAddsDestination(t *testing.T) {
	f := newTranslatorFixture([]string{"/proj/app"}, nil)
	require.NoError(t, f.conflicts.SaveRule(context.Background(), domain.ResolutionRule{
		ID:           "rule",
		SessionID:    "s1",
		ConflictType: domain.ConflictBranchParentNotFound,
		Scope:        "/",
		Resolution:   domain.ResolutionUpdatedConflictedChangeAction,
	}))
	r1 := f.repo.MustCommit("alice", "add", memory.AddFile("/old/app/main.go", "package main"))
	rev := f.repo.MustCommit("alice", "branch",
		memory.Copy("/old", r1, "/proj"),
		memory.Raw(domain.Change{Path: "/proj/app/stale", Kind: domain.ChangeDelete, ItemType: domain.ItemFile}),
	)

	group, err := f.translate(t, rev, r1)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionAdd, Path: "/proj/app"},
		{Kind: domain.ActionAdd, Path: "/proj/app/main.go"},
	}, summarize(group.Actions))

	resolved, err := f.conflicts.ListConflicts(context.Background(), "s1", domain.ConflictResolved)
	require.NoError(t, err)
	assert.Len(t, resolved, 1)
}

func TestTranslator_UnremappableRevisionRaisesConflict(t *testing.T) {
	f := newTranslatorFixture([]string{"/old/app", "/proj/app"}, nil)
	r1 := f.repo.MustCommit("alice", "unrelated", memory.AddFile("/x", "x"))
	f.repo.MustCommit("alice", "add", memory.AddFile("/proj/app/f", "f"))
	rev := f.repo.MustCommit("alice", "branch", memory.Raw(domain.Change{
		Path:             "/proj",
		ItemType:         domain.ItemFolder,
		Kind:             domain.ChangeCopy,
		CopyFromPath:     "/old",
		CopyFromRevision: r1,
	}))

	_, err := f.translate(t, rev)
	uc, ok := domain.IsUnresolvedConflict(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "/proj/app", uc.Conflict.Scope)
	assert.Contains(t, uc.Conflict.Details, "/old/app")
}

func TestTranslator_UnmappedAncestorDeleteAndAdd(t *testing.T) {
	f := newTranslatorFixture([]string{"/proj/app"}, nil)
	f.repo.MustCommit("alice", "add", memory.AddFile("/proj/app/f", "f"))
	rev := f.repo.MustCommit("alice", "drop", memory.Delete("/proj"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)
	assert.Equal(t, []actionSummary{{Kind: domain.ActionDelete, Path: "/proj/app"}}, summarize(group.Actions))
	assert.Equal(t, domain.ItemFolder, group.Actions[0].ItemType)

	f2 := newTranslatorFixture([]string{"/proj/app"}, nil)
	rev = f2.repo.MustCommit("alice", "add",
		memory.AddFile("/proj/app/f", "f"),
		memory.Raw(domain.Change{Path: "/proj", Kind: domain.ChangeAdd, ItemType: domain.ItemFolder}),
	)
	group, err = f2.translate(t, rev)
	require.NoError(t, err)
	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionAdd, Path: "/proj/app/f"},
		{Kind: domain.ActionAdd, Path: "/proj/app"},
	}, summarize(group.Actions))
}

func TestTranslator_Replace(t *testing.T) {
	f := newTranslatorFixture([]string{"/p"}, nil)
	f.repo.MustCommit("alice", "add", memory.AddFile("/p/f", "a"))
	rev := f.repo.MustCommit("alice", "replace", memory.ReplaceFile("/p/f", "b"))

	group, err := f.translate(t, rev)
	require.NoError(t, err)

	assert.Equal(t, []actionSummary{
		{Kind: domain.ActionDelete, Path: "/p/f"},
		{Kind: domain.ActionAdd, Path: "/p/f"},
	}, summarize(group.Actions))
}

func TestTranslator_UnknownKindIsSkipped(t *testing.T) {
	f := newTranslatorFixture([]string{"/p"}, nil)
	rev := f.repo.MustCommit("alice", "odd",
		memory.Raw(domain.Change{Path: "/p/x", Kind: domain.ChangeUnknown}),
		memory.Raw(domain.Change{Path: "/p/y", Kind: domain.ChangeKind("lock")}),
	)
	cs := f.changeSet(t, rev)
	group := domain.NewDeltaGroup("g", "s1", "left", cs)

	tl := f.translator().Begin(cs, group)
	for i := range cs.Changes {
		require.NoError(t, tl.Execute(context.Background(), &cs.Changes[i]))
	}
	require.NoError(t, tl.Finish(context.Background()))

	assert.Equal(t, 2, tl.Unhandled())
	assert.Empty(t, group.Actions)
}

func TestTranslator_CreationDeduplicated(t *testing.T) {
	f := newTranslatorFixture([]string{"/p"}, nil)
	rev := f.repo.MustCommit("alice", "add",
		memory.AddFile("/p/f", "a"),
		memory.Raw(domain.Change{Path: "/p/f", Kind: domain.ChangeAdd, ItemType: domain.ItemFile}),
	)

	group, err := f.translate(t, rev)
	require.NoError(t, err)
	assert.Len(t, group.Actions, 1)
}

func TestTranslation_FinishedFailsFast(t *testing.T) {
	f := newTranslatorFixture([]string{"/p"}, nil)
	rev := f.repo.MustCommit("alice", "add", memory.AddFile("/p/f", "a"))
	cs := f.changeSet(t, rev)
	group := domain.NewDeltaGroup("g", "s1", "left", cs)
	ctx := context.Background()

	tl := f.translator().Begin(cs, group)
	require.NoError(t, tl.Finish(ctx))

	assert.ErrorIs(t, tl.Finish(ctx), domain.ErrTranslationFinished)
	assert.ErrorIs(t, tl.Execute(ctx, &cs.Changes[0]), domain.ErrTranslationFinished)
}

func TestTranslator_SealedGroupRejectsActions(t *testing.T) {
	f := newTranslatorFixture([]string{"/p"}, nil)
	rev := f.repo.MustCommit("alice", "add", memory.AddFile("/p/f", "a"))
	cs := f.changeSet(t, rev)
	group := domain.NewDeltaGroup("g", "s1", "left", cs)
	group.Status = domain.StatusDeltaPending

	err := f.translator().Translate(context.Background(), cs, group)
	assert.ErrorIs(t, err, domain.ErrGroupSealed)
}
