package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/custodia-labs/vcsbridge/internal/connectors/treediff"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// Ensure Repository implements the interface.
var _ driven.Repository = (*Repository)(nil)

// changeSetCacheSize bounds the translated change-sets kept in memory.
const changeSetCacheSize = 256

// Repository numbers the first-parent history of a git ref.
type Repository struct {
	cfg  *Config
	repo *git.Repository

	mu      sync.Mutex
	head    plumbing.Hash
	commits []*object.Commit // commits[i] is revision i+1
	sets    map[domain.Revision]*domain.ChangeSet
	dirs    map[plumbing.Hash]map[string]bool
	closed  bool
}

// Open opens the repository described by cfg.
func Open(cfg *Config) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(cfg.Path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository %s: %w", cfg.Path, err)
	}
	return &Repository{
		cfg:  cfg,
		repo: repo,
		sets: make(map[domain.Revision]*domain.ChangeSet),
		dirs: make(map[plumbing.Hash]map[string]bool),
	}, nil
}

// Builder opens the git repository configured for a session.
func Builder(_ context.Context, cfg domain.RepositoryConfig, _ driven.TokenProvider) (driven.Repository, error) {
	c, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	return Open(c)
}

// ID returns the repository identity.
func (r *Repository) ID() string { return r.cfg.ID }

// GetLatestRevisionNumber re-reads the ref and returns the length of its
// first-parent chain.
func (r *Repository) GetLatestRevisionNumber(_ context.Context) (domain.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.refresh(); err != nil {
		return domain.NoRevision, err
	}
	return domain.Revision(len(r.commits)), nil
}

// refresh renumbers the chain when the ref moved. Caller holds mu.
func (r *Repository) refresh() error {
	if r.closed {
		return domain.ErrRepositoryClosed
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(r.cfg.Ref))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Unborn branch.
			r.head, r.commits = plumbing.ZeroHash, nil
			return nil
		}
		return fmt.Errorf("resolve %s: %w", r.cfg.Ref, err)
	}
	if *hash == r.head {
		return nil
	}

	var chain []*object.Commit
	next := *hash
	for {
		c, err := r.repo.CommitObject(next)
		if err != nil {
			return fmt.Errorf("read commit %s: %w", next, err)
		}
		chain = append(chain, c)
		if len(c.ParentHashes) == 0 {
			break
		}
		next = c.ParentHashes[0]
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	if len(r.commits) > 0 {
		last := len(r.commits) - 1
		if last >= len(chain) || chain[last].Hash != r.commits[last].Hash {
			logger.Warn("Ref %s of %s was rewritten; revisions are renumbered", r.cfg.Ref, r.cfg.ID)
			r.sets = make(map[domain.Revision]*domain.ChangeSet)
		}
	}
	r.head, r.commits = *hash, chain
	logger.Debug("%s: %s is at r%d (%s)", r.cfg.ID, r.cfg.Ref, len(chain), hash.String()[:8])
	return nil
}

// ensureLoaded loads the chain on first use. Caller holds mu.
func (r *Repository) ensureLoaded() error {
	if r.closed {
		return domain.ErrRepositoryClosed
	}
	if r.commits == nil {
		return r.refresh()
	}
	return nil
}

func (r *Repository) commitAt(rev domain.Revision) (*object.Commit, bool) {
	if rev < 1 || int(rev) > len(r.commits) {
		return nil, false
	}
	return r.commits[rev-1], true
}

// QueryHistoryRange returns the change-sets in [from, to] touching path.
func (r *Repository) QueryHistoryRange(
	ctx context.Context, path string, from, to domain.Revision, includeDetails bool,
) (map[domain.Revision]*domain.ChangeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}

	if from < 1 {
		from = 1
	}
	if head := domain.Revision(len(r.commits)); to > head {
		to = head
	}
	out := make(map[domain.Revision]*domain.ChangeSet)
	for rev := from; rev <= to; rev++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cs, err := r.changeSet(ctx, rev)
		if err != nil {
			return nil, err
		}
		if treediff.Touches(cs, path) {
			out[rev] = treediff.Summary(cs, includeDetails)
		}
	}
	return out, nil
}

// QueryHistory returns up to limit change-sets at or before revision
// touching path. A limit <= 0 returns all of them.
func (r *Repository) QueryHistory(
	ctx context.Context, path string, revision domain.Revision, limit int,
) (map[domain.Revision]*domain.ChangeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}

	if head := domain.Revision(len(r.commits)); revision > head {
		revision = head
	}
	out := make(map[domain.Revision]*domain.ChangeSet)
	for rev := revision; rev >= 1 && (limit <= 0 || len(out) < limit); rev-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cs, err := r.changeSet(ctx, rev)
		if err != nil {
			return nil, err
		}
		if treediff.Touches(cs, path) {
			out[rev] = treediff.Summary(cs, false)
		}
	}
	return out, nil
}

// changeSet translates the commit at rev. Caller holds mu.
func (r *Repository) changeSet(ctx context.Context, rev domain.Revision) (*domain.ChangeSet, error) {
	if cs, ok := r.sets[rev]; ok {
		return cs, nil
	}
	commit, ok := r.commitAt(rev)
	if !ok {
		return nil, fmt.Errorf("r%d of %s: %w", rev, r.cfg.ID, domain.ErrNotFound)
	}

	to, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", commit.Hash, err)
	}
	from := &object.Tree{}
	if parent, ok := r.commitAt(rev - 1); ok {
		if from, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("tree of %s: %w", parent.Hash, err)
		}
	}

	changes, err := r.diff(ctx, rev, from, to)
	if err != nil {
		return nil, err
	}

	cs := &domain.ChangeSet{
		Revision:     rev,
		Author:       commit.Author.Name,
		Comment:      strings.TrimRight(commit.Message, "\n"),
		Time:         commit.Committer.When,
		RepositoryID: r.cfg.ID,
		Changes:      changes,
	}
	if len(r.sets) >= changeSetCacheSize {
		r.sets = make(map[domain.Revision]*domain.ChangeSet)
	}
	r.sets[rev] = cs
	return cs, nil
}

// diff converts the tree diff between consecutive revisions into changes.
func (r *Repository) diff(ctx context.Context, rev domain.Revision, from, to *object.Tree) ([]domain.Change, error) {
	changes, err := object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diff r%d: %w", rev, err)
	}

	files := make([]treediff.FileChange, 0, len(changes))
	for _, c := range changes {
		action, err := c.Action()
		if err != nil {
			return nil, fmt.Errorf("diff r%d: %w", rev, err)
		}
		switch {
		case action == merkletrie.Insert:
			files = append(files, treediff.FileChange{Kind: domain.ChangeAdd, Path: c.To.Name})
		case action == merkletrie.Delete:
			files = append(files, treediff.FileChange{Kind: domain.ChangeDelete, Path: c.From.Name})
		case c.From.Name == c.To.Name:
			files = append(files, treediff.FileChange{Kind: domain.ChangeModify, Path: c.To.Name})
		default:
			files = append(files, treediff.FileChange{
				Kind: domain.ChangeCopy, Path: c.To.Name, From: c.From.Name, Rename: true,
			})
		}
	}

	oldDirs, err := r.dirSet(from)
	if err != nil {
		return nil, err
	}
	newDirs, err := r.dirSet(to)
	if err != nil {
		return nil, err
	}
	return treediff.Changes(rev, files, oldDirs, newDirs), nil
}

// dirSet returns the folders of a tree as server paths. Caller holds mu.
func (r *Repository) dirSet(t *object.Tree) (map[string]bool, error) {
	if cached, ok := r.dirs[t.Hash]; ok {
		return cached, nil
	}
	dirs := make(map[string]bool)
	if len(t.Entries) > 0 {
		w := object.NewTreeWalker(t, true, nil)
		defer w.Close()
		for {
			name, entry, err := w.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("walk tree %s: %w", t.Hash, err)
			}
			if entry.Mode == filemode.Dir {
				dirs[domain.NormalizePath(name)] = true
			}
		}
	}
	if len(r.dirs) >= 8 {
		r.dirs = make(map[plumbing.Hash]map[string]bool)
	}
	r.dirs[t.Hash] = dirs
	return dirs, nil
}

// GetItems lists the item at path and the items below it.
func (r *Repository) GetItems(
	_ context.Context, path string, revision domain.Revision, recursive bool,
) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}

	path = domain.NormalizePath(path)
	item, tree, err := r.lookup(path, revision)
	if err != nil || item == nil {
		return []domain.Item{}, err
	}
	items := []domain.Item{*item}
	if tree == nil {
		return items, nil
	}

	if !recursive {
		for _, e := range tree.Entries {
			items = append(items, entryItem(domain.JoinPath(path, e.Name), e, revision))
		}
		return items, nil
	}

	w := object.NewTreeWalker(tree, true, nil)
	defer w.Close()
	for {
		name, entry, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk %s@%d: %w", path, revision, err)
		}
		items = append(items, entryItem(domain.JoinPath(path, name), entry, revision))
	}
	return items, nil
}

// lookup resolves path@revision. The tree is set for folders. A nil item
// means nothing exists there. Caller holds mu.
func (r *Repository) lookup(path string, revision domain.Revision) (*domain.Item, *object.Tree, error) {
	commit, ok := r.commitAt(revision)
	if !ok {
		return nil, nil, nil
	}
	root, err := commit.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("tree of %s: %w", commit.Hash, err)
	}
	if path == domain.RootPath {
		item := domain.Item{Path: path, ItemType: domain.ItemFolder, Revision: revision, ContentID: root.Hash.String()}
		return &item, root, nil
	}

	rel := strings.TrimPrefix(path, "/")
	entry, err := root.FindEntry(rel)
	if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find %s@%d: %w", path, revision, err)
	}
	item := entryItem(path, *entry, revision)
	if entry.Mode != filemode.Dir {
		return &item, nil, nil
	}
	sub, err := root.Tree(rel)
	if err != nil {
		return nil, nil, fmt.Errorf("tree %s@%d: %w", path, revision, err)
	}
	return &item, sub, nil
}

func entryItem(path string, e object.TreeEntry, revision domain.Revision) domain.Item {
	itemType := domain.ItemFile
	if e.Mode == filemode.Dir {
		itemType = domain.ItemFolder
	}
	return domain.Item{Path: path, ItemType: itemType, Revision: revision, ContentID: e.Hash.String()}
}

// GetDiffSummary compares object hashes. A path missing on only one side differs.
func (r *Repository) GetDiffSummary(
	_ context.Context, pathA string, revA domain.Revision, pathB string, revB domain.Revision,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(); err != nil {
		return false, err
	}

	a, _, err := r.lookup(domain.NormalizePath(pathA), revA)
	if err != nil {
		return false, err
	}
	b, _, err := r.lookup(domain.NormalizePath(pathB), revB)
	if err != nil {
		return false, err
	}
	if a == nil || b == nil {
		return (a == nil) != (b == nil), nil
	}
	return a.ContentID != b.ContentID, nil
}

// Close releases the cached history.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.commits, r.sets, r.dirs = nil, nil, nil
	return nil
}
