package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// executeNonMapped handles a change on an unmapped folder that has mapped
// descendants. Copies, deletes and adds apply recursively, so each mapped
// descendant is translated as if the change had been made to it directly.
func (tl *Translation) executeNonMapped(ctx context.Context, c *domain.Change) error {
	descendants := tl.t.mapping.MappedDescendants(c.Path)
	if len(descendants) == 0 {
		return nil
	}
	logger.Debug("r%d: %s on unmapped %s reaches %v", c.Revision, c.Kind, c.Path, descendants)

	for _, mapped := range descendants {
		var err error
		switch c.Kind {
		case domain.ChangeCopy:
			err = tl.nonMappedBranch(ctx, c, mapped)
		case domain.ChangeDelete:
			err = tl.nonMappedDelete(ctx, c, mapped)
		case domain.ChangeAdd:
			err = tl.nonMappedAdd(ctx, c, mapped)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (tl *Translation) nonMappedBranch(ctx context.Context, c *domain.Change, mapped string) error {
	exists, err := tl.lookupItemType(ctx, mapped, c.Revision)
	if err != nil {
		return err
	}
	if !exists.IsKnown() {
		return nil
	}

	source := domain.RebasePath(mapped, c.Path, c.CopyFromPath)
	fake := domain.Change{
		Path:             mapped,
		ItemType:         exists,
		Kind:             domain.ChangeCopy,
		Revision:         c.Revision,
		CopyFromPath:     source,
		CopyFromRevision: c.CopyFromRevision,
	}

	revision, found, err := tl.remapBranchRevision(ctx, source, c.CopyFromRevision)
	if err != nil {
		return err
	}
	if !found {
		return tl.raiseBranchParentNotFound(ctx, &fake,
			fmt.Sprintf("no revision of %s at or before r%d to branch %s from", source, c.CopyFromRevision, mapped))
	}
	fake.CopyFromRevision = revision
	return tl.executeBranch(ctx, &fake)
}

func (tl *Translation) nonMappedDelete(ctx context.Context, c *domain.Change, mapped string) error {
	itemType, err := tl.lookupItemType(ctx, mapped, c.Revision-1)
	if err != nil {
		return err
	}
	if itemType == domain.ItemUnknown {
		return nil
	}
	tl.ensureLookups()
	tl.deletes[mapped] = &domain.Change{Path: mapped, ItemType: itemType, Kind: domain.ChangeDelete, Revision: c.Revision}
	return nil
}

func (tl *Translation) nonMappedAdd(ctx context.Context, c *domain.Change, mapped string) error {
	return tl.addRecursive(ctx, mapped, c.Revision)
}

// addRecursive emits an Add for path and every mapped item below it at revision.
func (tl *Translation) addRecursive(ctx context.Context, path string, revision domain.Revision) error {
	items, err := tl.t.repo.GetItems(ctx, path, revision, true)
	if err != nil {
		return fmt.Errorf("get items %s@%d: %w", path, revision, err)
	}
	for _, item := range items {
		if !tl.t.mapping.IsMapped(item.Path) {
			continue
		}
		if !item.ItemType.IsKnown() {
			return domain.NewInternalError("add", "item type of %s@%d is %q", item.Path, revision, item.ItemType)
		}
		if err := tl.emit(domain.ActionAdd, "", item.Path, revision, item.ItemType); err != nil {
			return err
		}
	}
	return nil
}

// remapBranchRevision finds the revision a branch of path at revision should
// read from: the latest known revision at or before it, else the latest
// revision of path in the repository. found is false if neither exists.
func (tl *Translation) remapBranchRevision(
	ctx context.Context, path string, revision domain.Revision,
) (domain.Revision, bool, error) {
	known := tl.t.known
	if i := sort.Search(len(known), func(i int) bool { return known[i] > revision }); i > 0 {
		return known[i-1], true, nil
	}

	history, err := tl.t.repo.QueryHistory(ctx, path, revision, 1)
	if err != nil {
		return domain.NoRevision, false, fmt.Errorf("query history %s@%d: %w", path, revision, err)
	}
	best := domain.NoRevision
	for rev := range history {
		if rev <= revision && rev > best {
			best = rev
		}
	}
	return best, best != domain.NoRevision, nil
}

// raiseBranchParentNotFound escalates a branch whose parent cannot be used.
// A resolution to update the conflicted change replays the branch as adds.
func (tl *Translation) raiseBranchParentNotFound(ctx context.Context, c *domain.Change, details string) error {
	conflict := domain.Conflict{
		ID:        tl.t.newID(),
		SessionID: tl.t.sessionID,
		SourceID:  tl.t.sourceID,
		Type:      domain.ConflictBranchParentNotFound,
		Scope:     domain.NormalizePath(c.Path),
		Revision:  c.Revision,
		Details:   details,
		Status:    domain.ConflictActive,
	}

	result, err := tl.t.escalation.TryResolveNewConflict(ctx, tl.t.sourceID, conflict)
	if err != nil {
		return fmt.Errorf("escalate conflict on %s: %w", c.Path, err)
	}
	if !result.Resolved {
		if result.ConflictID != "" {
			conflict.ID = result.ConflictID
		}
		return &domain.UnresolvedConflictError{Conflict: conflict}
	}

	switch result.ResolutionType {
	case domain.ResolutionUpdatedConflictedChangeAction:
		return tl.recoverAsAdd(ctx, c)
	default:
		return domain.NewInternalError("branch", "unexpected resolution %q for conflict on %s", result.ResolutionType, c.Path)
	}
}

// recoverAsAdd replaces a branch with adds of its destination and drops the
// deferred deletes the new content supersedes.
func (tl *Translation) recoverAsAdd(ctx context.Context, c *domain.Change) error {
	itemType, err := tl.resolveItemType(ctx, c)
	if err != nil {
		return err
	}

	switch itemType {
	case domain.ItemFile:
		if err := tl.emit(domain.ActionAdd, "", c.Path, c.Revision, domain.ItemFile); err != nil {
			return err
		}
	case domain.ItemFolder:
		if err := tl.addRecursive(ctx, c.Path, c.Revision); err != nil {
			return err
		}
	default:
		return domain.NewInternalError("branch", "item type of %s@%d is %q", c.Path, c.Revision, itemType)
	}

	tl.ensureLookups()
	for p := range tl.deletes {
		if domain.IsStrictSubItem(p, c.Path) {
			delete(tl.deletes, p)
		}
	}
	return nil
}
