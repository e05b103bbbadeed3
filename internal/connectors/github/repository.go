package github

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/vcsbridge/internal/connectors/treediff"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// Ensure Repository implements the interface.
var _ driven.Repository = (*Repository)(nil)

// Cache bounds.
const (
	changeSetCacheSize = 256
	treeCacheSize      = 8
)

// listing is a flattened recursive tree.
type listing struct {
	sha     string
	entries map[string]*gh.TreeEntry // server path -> entry
	dirs    map[string]bool
}

// Repository numbers the first-parent history of a GitHub branch.
type Repository struct {
	cfg    *Config
	client *Client

	mu      sync.Mutex
	branch  string
	head    string
	chain   []string // chain[i] is the SHA of revision i+1
	trees   map[string]string // commit SHA -> tree SHA
	sets    map[domain.Revision]*domain.ChangeSet
	listing map[string]*listing // tree SHA -> listing
	closed  bool
}

// New creates a repository reader. tokenProvider may be nil.
func New(cfg *Config, tokenProvider driven.TokenProvider) *Repository {
	return &Repository{
		cfg:     cfg,
		client:  NewClient(cfg, tokenProvider),
		trees:   make(map[string]string),
		sets:    make(map[domain.Revision]*domain.ChangeSet),
		listing: make(map[string]*listing),
	}
}

// Builder creates the GitHub repository configured for a session.
func Builder(_ context.Context, cfg domain.RepositoryConfig, tokens driven.TokenProvider) (driven.Repository, error) {
	c, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	return New(c, tokens), nil
}

// ID returns the repository identity.
func (r *Repository) ID() string { return r.cfg.ID }

// GetLatestRevisionNumber re-reads the branch head and returns the length
// of its first-parent chain.
func (r *Repository) GetLatestRevisionNumber(ctx context.Context) (domain.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.refresh(ctx); err != nil {
		return domain.NoRevision, err
	}
	return domain.Revision(len(r.chain)), nil
}

// refresh extends the chain when the branch moved. Only commits newer than
// the known head are listed. Caller holds mu.
func (r *Repository) refresh(ctx context.Context) error {
	if r.closed {
		return domain.ErrRepositoryClosed
	}
	if r.branch == "" {
		branch := r.cfg.Branch
		if branch == "" {
			var err error
			if branch, err = r.client.DefaultBranch(ctx); err != nil {
				return err
			}
		}
		r.branch = branch
	}

	head, err := r.client.BranchHead(ctx, r.branch)
	if err != nil {
		return err
	}
	if head == r.head {
		return nil
	}

	known := make(map[string]int, len(r.chain))
	for i, sha := range r.chain {
		known[sha] = i + 1
	}
	parents := make(map[string]string)
	listed, err := r.client.ListCommits(ctx, head, func(c *gh.RepositoryCommit) bool {
		return known[c.GetSHA()] > 0
	})
	if err != nil {
		return err
	}
	for _, c := range listed {
		r.remember(c, parents)
	}

	// Walk first parents back to a known commit or the root.
	var tail []string
	base := 0
	for sha := head; sha != ""; sha = parents[sha] {
		if rev := known[sha]; rev > 0 {
			base = rev
			break
		}
		if _, ok := parents[sha]; !ok {
			c, err := r.client.GetCommit(ctx, sha)
			if err != nil {
				return err
			}
			r.remember(c, parents)
		}
		tail = append(tail, sha)
	}
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}

	if base < len(r.chain) {
		logger.Warn("Branch %s of %s was rewritten; revisions after r%d are renumbered", r.branch, r.cfg.ID, base)
		r.sets = make(map[domain.Revision]*domain.ChangeSet)
	}
	r.chain = append(r.chain[:base:base], tail...)
	r.head = head
	logger.Debug("%s: %s is at r%d (%s)", r.cfg.ID, r.branch, len(r.chain), short(head))
	return nil
}

// remember records the first parent and tree of a commit.
func (r *Repository) remember(c *gh.RepositoryCommit, parents map[string]string) {
	sha := c.GetSHA()
	parents[sha] = ""
	if len(c.Parents) > 0 {
		parents[sha] = c.Parents[0].GetSHA()
	}
	if tree := c.GetCommit().GetTree().GetSHA(); tree != "" {
		r.trees[sha] = tree
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// ensureLoaded reads the branch on first use. Caller holds mu.
func (r *Repository) ensureLoaded(ctx context.Context) error {
	if r.closed {
		return domain.ErrRepositoryClosed
	}
	if r.head == "" {
		return r.refresh(ctx)
	}
	return nil
}

func (r *Repository) shaAt(rev domain.Revision) (string, bool) {
	if rev < 1 || int(rev) > len(r.chain) {
		return "", false
	}
	return r.chain[rev-1], true
}

// QueryHistoryRange returns the change-sets in [from, to] touching path.
func (r *Repository) QueryHistoryRange(
	ctx context.Context, path string, from, to domain.Revision, includeDetails bool,
) (map[domain.Revision]*domain.ChangeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	if from < 1 {
		from = 1
	}
	if head := domain.Revision(len(r.chain)); to > head {
		to = head
	}
	out := make(map[domain.Revision]*domain.ChangeSet)
	for rev := from; rev <= to; rev++ {
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
// touching path.
func (r *Repository) QueryHistory(
	ctx context.Context, path string, revision domain.Revision, limit int,
) (map[domain.Revision]*domain.ChangeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	if head := domain.Revision(len(r.chain)); revision > head {
		revision = head
	}
	out := make(map[domain.Revision]*domain.ChangeSet)
	for rev := revision; rev >= 1 && (limit <= 0 || len(out) < limit); rev-- {
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

// changeSet fetches and translates the commit at rev. Caller holds mu.
func (r *Repository) changeSet(ctx context.Context, rev domain.Revision) (*domain.ChangeSet, error) {
	if cs, ok := r.sets[rev]; ok {
		return cs, nil
	}
	sha, ok := r.shaAt(rev)
	if !ok {
		return nil, fmt.Errorf("r%d of %s: %w", rev, r.cfg.ID, domain.ErrNotFound)
	}

	commit, err := r.client.GetCommit(ctx, sha)
	if err != nil {
		return nil, fmt.Errorf("r%d of %s: %w", rev, r.cfg.ID, err)
	}

	files := make([]treediff.FileChange, 0, len(commit.Files))
	for _, f := range commit.Files {
		switch f.GetStatus() {
		case "added":
			files = append(files, treediff.FileChange{Kind: domain.ChangeAdd, Path: f.GetFilename()})
		case "removed":
			files = append(files, treediff.FileChange{Kind: domain.ChangeDelete, Path: f.GetFilename()})
		case "modified", "changed":
			files = append(files, treediff.FileChange{Kind: domain.ChangeModify, Path: f.GetFilename()})
		case "renamed":
			files = append(files, treediff.FileChange{
				Kind: domain.ChangeCopy, Path: f.GetFilename(), From: f.GetPreviousFilename(), Rename: true,
			})
		case "copied":
			files = append(files, treediff.FileChange{
				Kind: domain.ChangeCopy, Path: f.GetFilename(), From: f.GetPreviousFilename(),
			})
		case "unchanged":
		default:
			logger.Warn("r%d: unknown file status %q for %s", rev, f.GetStatus(), f.GetFilename())
			files = append(files, treediff.FileChange{Kind: domain.ChangeUnknown, Path: f.GetFilename()})
		}
	}

	newDirs, err := r.dirs(ctx, rev)
	if err != nil {
		return nil, err
	}
	oldDirs := map[string]bool{}
	if rev > 1 {
		if oldDirs, err = r.dirs(ctx, rev-1); err != nil {
			return nil, err
		}
	}

	info := commit.GetCommit()
	cs := &domain.ChangeSet{
		Revision:     rev,
		Author:       info.GetAuthor().GetName(),
		Comment:      strings.TrimRight(info.GetMessage(), "\n"),
		Time:         info.GetCommitter().GetDate().Time,
		RepositoryID: r.cfg.ID,
		Changes:      treediff.Changes(rev, files, oldDirs, newDirs),
	}
	if len(r.sets) >= changeSetCacheSize {
		r.sets = make(map[domain.Revision]*domain.ChangeSet)
	}
	r.sets[rev] = cs
	return cs, nil
}

func (r *Repository) dirs(ctx context.Context, rev domain.Revision) (map[string]bool, error) {
	l, err := r.tree(ctx, rev)
	if err != nil {
		return nil, err
	}
	return l.dirs, nil
}

// tree returns the recursive listing of revision rev. Caller holds mu.
func (r *Repository) tree(ctx context.Context, rev domain.Revision) (*listing, error) {
	sha, ok := r.shaAt(rev)
	if !ok {
		return nil, fmt.Errorf("r%d of %s: %w", rev, r.cfg.ID, domain.ErrNotFound)
	}
	treeSHA, ok := r.trees[sha]
	if !ok {
		commit, err := r.client.GetCommit(ctx, sha)
		if err != nil {
			return nil, err
		}
		treeSHA = commit.GetCommit().GetTree().GetSHA()
		r.trees[sha] = treeSHA
	}
	if l, ok := r.listing[treeSHA]; ok {
		return l, nil
	}

	tree, err := r.client.GetTree(ctx, treeSHA)
	if err != nil {
		return nil, fmt.Errorf("tree of r%d: %w", rev, err)
	}
	l := &listing{sha: treeSHA, entries: make(map[string]*gh.TreeEntry), dirs: make(map[string]bool)}
	for _, e := range tree.Entries {
		p := domain.NormalizePath(e.GetPath())
		l.entries[p] = e
		if e.GetType() == "tree" {
			l.dirs[p] = true
		}
	}
	if len(r.listing) >= treeCacheSize {
		r.listing = make(map[string]*listing)
	}
	r.listing[treeSHA] = l
	return l, nil
}

// GetItems lists the item at path and the items below it.
func (r *Repository) GetItems(
	ctx context.Context, path string, revision domain.Revision, recursive bool,
) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if _, ok := r.shaAt(revision); !ok {
		return []domain.Item{}, nil
	}

	l, err := r.tree(ctx, revision)
	if err != nil {
		return nil, err
	}
	path = domain.NormalizePath(path)
	item, ok := l.item(path, revision)
	if !ok {
		return []domain.Item{}, nil
	}
	items := []domain.Item{item}
	if item.ItemType != domain.ItemFolder {
		return items, nil
	}

	depth := len(domain.PathSegments(path)) + 1
	var below []domain.Item
	for p := range l.entries {
		if !domain.IsStrictSubItem(p, path) {
			continue
		}
		if !recursive && len(domain.PathSegments(p)) != depth {
			continue
		}
		child, _ := l.item(p, revision)
		below = append(below, child)
	}
	sort.Slice(below, func(i, j int) bool { return below[i].Path < below[j].Path })
	return append(items, below...), nil
}

func (l *listing) item(path string, revision domain.Revision) (domain.Item, bool) {
	if path == domain.RootPath {
		return domain.Item{Path: path, ItemType: domain.ItemFolder, Revision: revision, ContentID: l.sha}, true
	}
	e, ok := l.entries[path]
	if !ok {
		return domain.Item{}, false
	}
	itemType := domain.ItemFile
	if e.GetType() == "tree" {
		itemType = domain.ItemFolder
	}
	return domain.Item{Path: path, ItemType: itemType, Revision: revision, ContentID: e.GetSHA()}, true
}

// GetDiffSummary compares object SHAs. A path missing on only one side differs.
func (r *Repository) GetDiffSummary(
	ctx context.Context, pathA string, revA domain.Revision, pathB string, revB domain.Revision,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLoaded(ctx); err != nil {
		return false, err
	}

	a, okA, err := r.lookup(ctx, pathA, revA)
	if err != nil {
		return false, err
	}
	b, okB, err := r.lookup(ctx, pathB, revB)
	if err != nil {
		return false, err
	}
	if !okA || !okB {
		return okA != okB, nil
	}
	return a.ContentID != b.ContentID, nil
}

func (r *Repository) lookup(ctx context.Context, path string, rev domain.Revision) (domain.Item, bool, error) {
	if _, ok := r.shaAt(rev); !ok {
		return domain.Item{}, false, nil
	}
	l, err := r.tree(ctx, rev)
	if err != nil {
		return domain.Item{}, false, err
	}
	item, ok := l.item(domain.NormalizePath(path), rev)
	return item, ok, nil
}

// Close releases the cached history.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.chain, r.sets, r.listing = nil, nil, nil
	return nil
}
