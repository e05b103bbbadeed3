// Package memory provides a scripted in-memory Repository.
// Change-sets are committed through Commit and applied to a tree snapshot per
// revision, so listings and diff summaries stay consistent with history.
// It backs tests and the "memory" repository type used for dry runs.
package memory

import (
	"context"
	"crypto/sha1" //nolint:gosec // content identity, not security
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/vcsbridge/internal/connectors/treediff"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Ensure Repository implements the interface.
var _ driven.Repository = (*Repository)(nil)

// tree is the set of items at one revision, keyed by normalised path.
type tree map[string]domain.Item

func (t tree) clone() tree {
	out := make(tree, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Repository is a scripted repository. It is safe for concurrent use.
type Repository struct {
	mu         sync.RWMutex
	id         string
	changesets map[domain.Revision]*domain.ChangeSet
	snapshots  []tree
	hidden     map[domain.Revision]bool
	closed     bool
	clock      func() time.Time
}

// New creates an empty repository. Revision 0 is the empty tree.
func New(id string) *Repository {
	return &Repository{
		id:         id,
		changesets: make(map[domain.Revision]*domain.ChangeSet),
		snapshots:  []tree{{domain.RootPath: {Path: domain.RootPath, ItemType: domain.ItemFolder}}},
		hidden:     make(map[domain.Revision]bool),
		clock:      time.Now,
	}
}

// Op is one scripted operation of a commit.
type Op struct {
	kind     domain.ChangeKind
	path     string
	itemType domain.ItemType
	content  string
	from     string
	fromRev  domain.Revision
	raw      *domain.Change
}

// AddFile creates a file with content. Missing parent folders are created silently.
func AddFile(path, content string) Op {
	return Op{kind: domain.ChangeAdd, path: path, itemType: domain.ItemFile, content: content}
}

// AddFolder creates an empty folder.
func AddFolder(path string) Op {
	return Op{kind: domain.ChangeAdd, path: path, itemType: domain.ItemFolder}
}

// Modify replaces the content of an existing file.
func Modify(path, content string) Op {
	return Op{kind: domain.ChangeModify, path: path, itemType: domain.ItemFile, content: content}
}

// Delete removes an item and everything below it.
func Delete(path string) Op {
	return Op{kind: domain.ChangeDelete, path: path}
}

// Copy copies from@fromRev, with everything below it, to path.
func Copy(from string, fromRev domain.Revision, path string) Op {
	return Op{kind: domain.ChangeCopy, path: path, from: from, fromRev: fromRev}
}

// CopyAndModify copies a file and changes its content in the same commit.
func CopyAndModify(from string, fromRev domain.Revision, path, content string) Op {
	return Op{kind: domain.ChangeCopy, path: path, from: from, fromRev: fromRev, content: content, itemType: domain.ItemFile}
}

// ReplaceFile deletes path and adds a new file there in the same commit.
func ReplaceFile(path, content string) Op {
	return Op{kind: domain.ChangeReplace, path: path, itemType: domain.ItemFile, content: content}
}

// Raw records change as-is without touching the tree.
func Raw(change domain.Change) Op {
	return Op{raw: &change}
}

// Commit applies ops as a new change-set and returns its revision.
func (r *Repository) Commit(author, comment string, ops ...Op) (domain.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rev := domain.Revision(len(r.snapshots))
	next := r.snapshots[len(r.snapshots)-1].clone()
	cs := &domain.ChangeSet{
		Revision:     rev,
		Author:       author,
		Comment:      comment,
		Time:         r.clock(),
		RepositoryID: r.id,
	}

	for _, op := range ops {
		change, err := r.apply(next, rev, op)
		if err != nil {
			return domain.NoRevision, fmt.Errorf("commit r%d: %w", rev, err)
		}
		cs.Changes = append(cs.Changes, change)
	}

	r.snapshots = append(r.snapshots, next)
	r.changesets[rev] = cs
	return rev, nil
}

// MustCommit is Commit for test fixtures. It panics on error.
func (r *Repository) MustCommit(author, comment string, ops ...Op) domain.Revision {
	rev, err := r.Commit(author, comment, ops...)
	if err != nil {
		panic(err)
	}
	return rev
}

// Hide makes history queries skip revision, simulating a missing record.
func (r *Repository) Hide(revision domain.Revision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden[revision] = true
}

func (r *Repository) apply(t tree, rev domain.Revision, op Op) (domain.Change, error) {
	if op.raw != nil {
		change := *op.raw
		change.Path = domain.NormalizePath(change.Path)
		change.Revision = rev
		return change, nil
	}

	path := domain.NormalizePath(op.path)
	change := domain.Change{Path: path, Kind: op.kind, Revision: rev}

	switch op.kind {
	case domain.ChangeAdd:
		if _, exists := t[path]; exists {
			return change, fmt.Errorf("%w: %s", domain.ErrAlreadyExists, path)
		}
		ensureParents(t, path, rev)
		t[path] = newItem(path, op.itemType, rev, op.content)
		change.ItemType = op.itemType

	case domain.ChangeModify:
		item, exists := t[path]
		if !exists {
			return change, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		t[path] = newItem(path, item.ItemType, rev, op.content)
		change.ItemType = item.ItemType

	case domain.ChangeDelete:
		item, exists := t[path]
		if !exists {
			return change, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		removeSubtree(t, path)
		change.ItemType = item.ItemType

	case domain.ChangeCopy:
		if int(op.fromRev) >= len(r.snapshots) || op.fromRev <= domain.NoRevision {
			return change, fmt.Errorf("%w: copy source revision %d", domain.ErrInvalidInput, op.fromRev)
		}
		from := domain.NormalizePath(op.from)
		source := r.snapshots[op.fromRev]
		root, exists := source[from]
		if !exists {
			return change, fmt.Errorf("%w: %s@%d", domain.ErrNotFound, from, op.fromRev)
		}
		ensureParents(t, path, rev)
		for p, item := range source {
			if domain.IsSubItem(p, from) {
				dest := domain.RebasePath(p, from, path)
				t[dest] = domain.Item{Path: dest, ItemType: item.ItemType, Revision: rev, ContentID: item.ContentID}
			}
		}
		if op.content != "" && root.ItemType == domain.ItemFile {
			t[path] = newItem(path, domain.ItemFile, rev, op.content)
		}
		change.ItemType = root.ItemType
		change.CopyFromPath = from
		change.CopyFromRevision = op.fromRev

	case domain.ChangeReplace:
		removeSubtree(t, path)
		ensureParents(t, path, rev)
		t[path] = newItem(path, op.itemType, rev, op.content)
		change.ItemType = op.itemType

	default:
		return change, fmt.Errorf("%w: change kind %q", domain.ErrInvalidInput, op.kind)
	}
	return change, nil
}

func newItem(path string, itemType domain.ItemType, rev domain.Revision, content string) domain.Item {
	item := domain.Item{Path: path, ItemType: itemType, Revision: rev}
	if itemType == domain.ItemFile {
		sum := sha1.Sum([]byte(content)) //nolint:gosec // content identity
		item.ContentID = hex.EncodeToString(sum[:])
	}
	return item
}

func ensureParents(t tree, path string, rev domain.Revision) {
	for parent := domain.ParentPath(path); parent != domain.RootPath; parent = domain.ParentPath(parent) {
		if _, ok := t[parent]; !ok {
			t[parent] = domain.Item{Path: parent, ItemType: domain.ItemFolder, Revision: rev}
		}
	}
}

func removeSubtree(t tree, path string) {
	for p := range t {
		if domain.IsSubItem(p, path) && p != domain.RootPath {
			delete(t, p)
		}
	}
}

// ID returns the repository identity.
func (r *Repository) ID() string { return r.id }

// GetLatestRevisionNumber returns the head revision.
func (r *Repository) GetLatestRevisionNumber(_ context.Context) (domain.Revision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return domain.NoRevision, domain.ErrRepositoryClosed
	}
	return domain.Revision(len(r.snapshots) - 1), nil
}

// QueryHistoryRange returns the change-sets in [from, to] touching path.
func (r *Repository) QueryHistoryRange(
	_ context.Context, path string, from, to domain.Revision, includeDetails bool,
) (map[domain.Revision]*domain.ChangeSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, domain.ErrRepositoryClosed
	}

	out := make(map[domain.Revision]*domain.ChangeSet)
	for rev := from; rev <= to; rev++ {
		cs, ok := r.changesets[rev]
		if !ok || r.hidden[rev] || !treediff.Touches(cs, path) {
			continue
		}
		out[rev] = treediff.Summary(cs, includeDetails)
	}
	return out, nil
}

// QueryHistory returns up to limit change-sets at or before revision touching path.
func (r *Repository) QueryHistory(
	_ context.Context, path string, revision domain.Revision, limit int,
) (map[domain.Revision]*domain.ChangeSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, domain.ErrRepositoryClosed
	}

	out := make(map[domain.Revision]*domain.ChangeSet)
	for rev := revision; rev > domain.NoRevision && (limit <= 0 || len(out) < limit); rev-- {
		cs, ok := r.changesets[rev]
		if !ok || r.hidden[rev] || !treediff.Touches(cs, path) {
			continue
		}
		out[rev] = treediff.Summary(cs, false)
	}
	return out, nil
}

// GetItems lists path at revision.
func (r *Repository) GetItems(
	_ context.Context, path string, revision domain.Revision, recursive bool,
) ([]domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, domain.ErrRepositoryClosed
	}
	if revision < domain.NoRevision || int(revision) >= len(r.snapshots) {
		return []domain.Item{}, nil
	}

	t := r.snapshots[revision]
	path = domain.NormalizePath(path)
	root, ok := t[path]
	if !ok {
		return []domain.Item{}, nil
	}

	items := []domain.Item{root}
	if root.ItemType != domain.ItemFolder {
		return items, nil
	}
	var below []domain.Item
	for p, item := range t {
		if !domain.IsStrictSubItem(p, path) {
			continue
		}
		if !recursive && domain.ParentPath(p) != path {
			continue
		}
		below = append(below, item)
	}
	sort.Slice(below, func(i, j int) bool { return below[i].Path < below[j].Path })
	return append(items, below...), nil
}

// GetDiffSummary compares content identities.
func (r *Repository) GetDiffSummary(
	_ context.Context, pathA string, revA domain.Revision, pathB string, revB domain.Revision,
) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false, domain.ErrRepositoryClosed
	}
	a, okA := r.lookup(pathA, revA)
	b, okB := r.lookup(pathB, revB)
	if !okA || !okB {
		return okA != okB, nil
	}
	return a.ContentID != b.ContentID, nil
}

func (r *Repository) lookup(path string, rev domain.Revision) (domain.Item, bool) {
	if rev < domain.NoRevision || int(rev) >= len(r.snapshots) {
		return domain.Item{}, false
	}
	item, ok := r.snapshots[rev][domain.NormalizePath(path)]
	return item, ok
}

// Close marks the repository closed.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
