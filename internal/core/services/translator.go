package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// changeHandler translates one change within a Translation.
type changeHandler func(tl *Translation, ctx context.Context, c *domain.Change) error

// Translator converts the primitive changes of a change-set into migration
// actions. It is built once per analysis run; each change-set gets its own
// Translation from Begin.
type Translator struct {
	repo       driven.Repository
	mapping    *PathMapping
	escalation driven.ConflictEscalation
	sessionID  string
	sourceID   string
	known      []domain.Revision
	handlers   map[domain.ChangeKind]changeHandler
	newID      func() string
}

// NewTranslator creates a Translator. knownRevisions are the revisions of the
// mapped history selected for this run; they serve as fast-path answers when a
// branch source revision must be remapped.
func NewTranslator(
	repo driven.Repository,
	mapping *PathMapping,
	escalation driven.ConflictEscalation,
	session *domain.Session,
	knownRevisions []domain.Revision,
) *Translator {
	known := append([]domain.Revision(nil), knownRevisions...)
	sort.Slice(known, func(i, j int) bool { return known[i] < known[j] })

	return &Translator{
		repo:       repo,
		mapping:    mapping,
		escalation: escalation,
		sessionID:  session.ID,
		sourceID:   session.SourceID,
		known:      known,
		handlers: map[domain.ChangeKind]changeHandler{
			domain.ChangeAdd:     (*Translation).executeAdd,
			domain.ChangeModify:  (*Translation).executeEdit,
			domain.ChangeDelete:  (*Translation).executeDelete,
			domain.ChangeCopy:    (*Translation).executeBranch,
			domain.ChangeReplace: (*Translation).executeReplace,
			domain.ChangeUnknown: (*Translation).executeUnhandled,
		},
		newID: uuid.NewString,
	}
}

// Translate runs a full translation of cs into group.
func (t *Translator) Translate(ctx context.Context, cs *domain.ChangeSet, group *domain.ChangeGroup) error {
	tl := t.Begin(cs, group)
	for i := range cs.Changes {
		if err := tl.Execute(ctx, &cs.Changes[i]); err != nil {
			return err
		}
	}
	return tl.Finish(ctx)
}

// Begin starts the translation of one change-set into group.
func (t *Translator) Begin(cs *domain.ChangeSet, group *domain.ChangeGroup) *Translation {
	return &Translation{
		t:       t,
		cs:      cs,
		group:   group,
		created: make(map[string]bool),
	}
}

// Translation is the per-change-set state of a Translator: the delete and
// rename lookups and the paths already created. Execute may be called any
// number of times, in change-set order, followed by exactly one Finish.
type Translation struct {
	t     *Translator
	cs    *domain.ChangeSet
	group *domain.ChangeGroup

	// deletes holds deferred deletes of mapped paths, keyed by path.
	deletes map[string]*domain.Change
	// renames maps a renamed folder's old path to its new path.
	renames map[string]string
	created map[string]bool

	unhandled int
	finished  bool
}

// Unhandled returns the number of changes skipped because their kind is unknown.
func (tl *Translation) Unhandled() int {
	return tl.unhandled
}

// Execute translates one change.
func (tl *Translation) Execute(ctx context.Context, c *domain.Change) error {
	if tl.finished {
		return domain.ErrTranslationFinished
	}
	if err := c.Validate(); err != nil {
		return err
	}
	handler, ok := tl.t.handlers[c.Kind]
	if !ok {
		handler = (*Translation).executeUnhandled
	}
	return handler(tl, ctx, c)
}

// Finish emits the deferred deletes, deepest path first, and releases the lookups.
func (tl *Translation) Finish(ctx context.Context) error {
	if tl.finished {
		return domain.ErrTranslationFinished
	}
	tl.finished = true
	tl.ensureLookups()

	paths := make([]string, 0, len(tl.deletes))
	for p := range tl.deletes {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) > len(paths[j])
		}
		return paths[i] > paths[j]
	})

	for _, p := range paths {
		c := tl.deletes[p]
		itemType, err := tl.deletedItemType(ctx, c)
		if err != nil {
			return err
		}
		if err := tl.emit(domain.ActionDelete, "", p, tl.cs.Revision, itemType); err != nil {
			return err
		}
	}

	tl.deletes, tl.renames, tl.created = nil, nil, nil
	return nil
}

// ensureLookups builds the delete and rename lookups from the whole change-set
// on first use.
func (tl *Translation) ensureLookups() {
	if tl.deletes != nil {
		return
	}
	tl.deletes = make(map[string]*domain.Change)
	tl.renames = make(map[string]string)

	for i := range tl.cs.Changes {
		c := &tl.cs.Changes[i]
		if c.Kind == domain.ChangeDelete && tl.t.mapping.IsMapped(c.Path) {
			tl.deletes[domain.NormalizePath(c.Path)] = c
		}
	}
	for i := range tl.cs.Changes {
		c := &tl.cs.Changes[i]
		if c.Kind != domain.ChangeCopy || c.ItemType != domain.ItemFolder {
			continue
		}
		revised := tl.reviseSourceName(c.CopyFromPath)
		if _, ok := tl.deletes[revised]; ok {
			tl.renames[revised] = domain.NormalizePath(c.Path)
		}
	}
}

// reviseSourceName rewrites the ancestors of p through the renames detected
// in this change-set, walking from the root down.
func (tl *Translation) reviseSourceName(p string) string {
	segments := domain.PathSegments(p)
	if len(segments) == 0 {
		return domain.RootPath
	}
	current := domain.RootPath
	for _, seg := range segments[:len(segments)-1] {
		current = domain.JoinPath(current, seg)
		if renamed, ok := tl.renames[current]; ok {
			current = renamed
		}
	}
	return domain.JoinPath(current, segments[len(segments)-1])
}

// emit appends an action to the group. Creation actions are emitted at most once per path.
func (tl *Translation) emit(
	kind domain.ActionKind, fromPath, path string, version domain.Revision, itemType domain.ItemType,
) error {
	path = domain.NormalizePath(path)
	if kind.CreatesItem() {
		if tl.created[path] {
			logger.Debug("r%d: %s already created, skipping %s", tl.cs.Revision, path, kind)
			return nil
		}
		tl.created[path] = true
	}

	source := domain.SourceItem{
		RepositoryID: tl.t.repo.ID(),
		Path:         path,
		Revision:     tl.cs.Revision,
		ItemType:     itemType,
	}
	_, err := tl.group.CreateAction(kind, source, fromPath, path, version.String(), "", itemType)
	return err
}

// lookupItemType asks the repository for the type of path at revision.
// It returns ItemUnknown if nothing exists there.
func (tl *Translation) lookupItemType(ctx context.Context, path string, revision domain.Revision) (domain.ItemType, error) {
	items, err := tl.t.repo.GetItems(ctx, path, revision, false)
	if err != nil {
		return domain.ItemUnknown, fmt.Errorf("get items %s@%d: %w", path, revision, err)
	}
	if len(items) == 0 {
		return domain.ItemUnknown, nil
	}
	return items[0].ItemType, nil
}

func (tl *Translation) resolveItemType(ctx context.Context, c *domain.Change) (domain.ItemType, error) {
	if c.ItemType.IsKnown() {
		return c.ItemType, nil
	}
	return tl.lookupItemType(ctx, c.Path, c.Revision)
}

// deletedItemType returns the type of a deleted item, read before the delete.
func (tl *Translation) deletedItemType(ctx context.Context, c *domain.Change) (domain.ItemType, error) {
	itemType := c.ItemType
	if !itemType.IsKnown() {
		var err error
		if itemType, err = tl.lookupItemType(ctx, c.Path, c.Revision-1); err != nil {
			return domain.ItemUnknown, err
		}
	}
	if !itemType.IsKnown() {
		return domain.ItemUnknown, domain.NewInternalError("delete",
			"item type of %s at r%d is %q", c.Path, c.Revision, itemType)
	}
	return itemType, nil
}

func (tl *Translation) executeAdd(ctx context.Context, c *domain.Change) error {
	if !tl.t.mapping.IsMapped(c.Path) {
		return tl.executeNonMapped(ctx, c)
	}
	itemType, err := tl.resolveItemType(ctx, c)
	if err != nil {
		return err
	}
	if !itemType.IsKnown() {
		logger.Warn("r%d: added item %s not found, skipping", c.Revision, c.Path)
		return nil
	}
	return tl.emit(domain.ActionAdd, "", c.Path, c.Revision, itemType)
}

func (tl *Translation) executeEdit(ctx context.Context, c *domain.Change) error {
	if !tl.t.mapping.IsMapped(c.Path) {
		return nil
	}
	itemType, err := tl.resolveItemType(ctx, c)
	if err != nil {
		return err
	}
	if itemType != domain.ItemFile {
		return nil
	}
	return tl.emit(domain.ActionEdit, "", c.Path, c.Revision, itemType)
}

func (tl *Translation) executeDelete(ctx context.Context, c *domain.Change) error {
	if !tl.t.mapping.IsMapped(c.Path) {
		return tl.executeNonMapped(ctx, c)
	}
	// Emitted at Finish.
	tl.ensureLookups()
	return nil
}

func (tl *Translation) executeBranch(ctx context.Context, c *domain.Change) error {
	if !tl.t.mapping.IsMapped(c.Path) {
		return tl.executeNonMapped(ctx, c)
	}
	tl.ensureLookups()

	revised := tl.reviseSourceName(c.CopyFromPath)
	if _, ok := tl.deletes[revised]; ok {
		return tl.executeRename(ctx, c, revised)
	}

	if !tl.t.mapping.IsMapped(c.CopyFromPath) {
		return tl.raiseBranchParentNotFound(ctx, c,
			fmt.Sprintf("copy source %s@%d of %s is not mapped", c.CopyFromPath, c.CopyFromRevision, c.Path))
	}

	itemType := c.ItemType
	if !itemType.IsKnown() {
		var err error
		if itemType, err = tl.lookupItemType(ctx, c.CopyFromPath, c.CopyFromRevision); err != nil {
			return err
		}
	}

	switch itemType {
	case domain.ItemFolder:
		return tl.branchFolder(ctx, c)
	case domain.ItemFile:
		return tl.branchFile(ctx, c)
	default:
		return domain.NewInternalError("branch", "item type of %s@%d is %q", c.CopyFromPath, c.CopyFromRevision, itemType)
	}
}

func (tl *Translation) executeRename(ctx context.Context, c *domain.Change, revisedSource string) error {
	deleted := tl.deletes[revisedSource]
	delete(tl.deletes, revisedSource)

	itemType := c.ItemType
	if !itemType.IsKnown() {
		itemType = deleted.ItemType
	}
	if !itemType.IsKnown() {
		var err error
		if itemType, err = tl.lookupItemType(ctx, c.Path, c.Revision); err != nil {
			return err
		}
	}

	logger.Debug("r%d: rename %s -> %s", c.Revision, revisedSource, c.Path)
	if err := tl.emit(domain.ActionRename, revisedSource, c.Path, c.CopyFromRevision, itemType); err != nil {
		return err
	}
	if itemType != domain.ItemFile {
		return nil
	}
	return tl.editIfChanged(ctx, c)
}

// editIfChanged emits an Edit when a copied file differs from its source.
func (tl *Translation) editIfChanged(ctx context.Context, c *domain.Change) error {
	differs, err := tl.t.repo.GetDiffSummary(ctx, c.CopyFromPath, c.CopyFromRevision, c.Path, c.Revision)
	if err != nil {
		return fmt.Errorf("diff %s@%d %s@%d: %w", c.CopyFromPath, c.CopyFromRevision, c.Path, c.Revision, err)
	}
	if !differs {
		return nil
	}
	return tl.emit(domain.ActionEdit, "", c.Path, c.Revision, domain.ItemFile)
}

func (tl *Translation) branchFile(ctx context.Context, c *domain.Change) error {
	if err := tl.emit(domain.ActionBranch, c.CopyFromPath, c.Path, c.CopyFromRevision, domain.ItemFile); err != nil {
		return err
	}
	return tl.editIfChanged(ctx, c)
}

// branchFolder emits one Branch per item below the copy source, rebased onto the destination.
func (tl *Translation) branchFolder(ctx context.Context, c *domain.Change) error {
	items, err := tl.t.repo.GetItems(ctx, c.CopyFromPath, c.CopyFromRevision, true)
	if err != nil {
		return fmt.Errorf("get items %s@%d: %w", c.CopyFromPath, c.CopyFromRevision, err)
	}
	for _, item := range items {
		dest := domain.RebasePath(item.Path, c.CopyFromPath, c.Path)
		if !tl.t.mapping.IsMapped(dest) {
			continue
		}
		kind, from, version := domain.ActionBranch, item.Path, c.CopyFromRevision
		if !tl.t.mapping.IsMapped(item.Path) {
			// A cloaked source was never migrated; bring it over as new content.
			kind, from, version = domain.ActionAdd, "", c.Revision
		}
		if err := tl.emit(kind, from, dest, version, item.ItemType); err != nil {
			return err
		}
	}
	return nil
}

func (tl *Translation) executeReplace(ctx context.Context, c *domain.Change) error {
	deleted := domain.Change{Path: c.Path, Kind: domain.ChangeDelete, Revision: c.Revision}
	created := *c
	if c.HasCopySource() {
		created.Kind = domain.ChangeCopy
	} else {
		created.Kind = domain.ChangeAdd
	}

	if !tl.t.mapping.IsMapped(c.Path) {
		if err := tl.executeNonMapped(ctx, &deleted); err != nil {
			return err
		}
		return tl.executeNonMapped(ctx, &created)
	}

	itemType, err := tl.deletedItemType(ctx, &deleted)
	if err != nil {
		return err
	}
	if err := tl.emit(domain.ActionDelete, "", c.Path, c.Revision, itemType); err != nil {
		return err
	}
	return tl.t.handlers[created.Kind](tl, ctx, &created)
}

func (tl *Translation) executeUnhandled(_ context.Context, c *domain.Change) error {
	tl.unhandled++
	logger.Warn("r%d: unhandled change %q on %s", c.Revision, c.Kind, c.Path)
	return nil
}
