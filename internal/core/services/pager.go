package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// HistoryPager iterates over a fixed set of revisions, fetching change-set
// details one window at a time. Only the current window is held in memory.
// A HistoryPager is not safe for concurrent use.
type HistoryPager struct {
	repo      driven.Repository
	rootPath  string
	revisions []domain.Revision
	pageSize  int

	cursor int
	page   map[domain.Revision]*domain.ChangeSet
	pageLo domain.Revision
	pageHi domain.Revision
	loaded bool
}

// NewHistoryPager creates a pager over revisions under rootPath.
// Revisions are sorted and deduplicated. A page size <= 0 uses domain.DefaultPageSize.
func NewHistoryPager(repo driven.Repository, rootPath string, revisions []domain.Revision, pageSize int) *HistoryPager {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}

	revs := append([]domain.Revision(nil), revisions...)
	sort.Slice(revs, func(i, j int) bool { return revs[i] < revs[j] })
	unique := revs[:0]
	for i, rev := range revs {
		if i == 0 || rev != revs[i-1] {
			unique = append(unique, rev)
		}
	}

	return &HistoryPager{
		repo:      repo,
		rootPath:  domain.NormalizePath(rootPath),
		revisions: unique,
		pageSize:  pageSize,
	}
}

// Len returns the number of revisions the pager visits.
func (p *HistoryPager) Len() int {
	return len(p.revisions)
}

// Done returns true once the cursor has moved past the last revision.
func (p *HistoryPager) Done() bool {
	return p.cursor >= len(p.revisions)
}

// CurrentRevision returns the revision under the cursor, or NoRevision when done.
func (p *HistoryPager) CurrentRevision() domain.Revision {
	if p.Done() {
		return domain.NoRevision
	}
	return p.revisions[p.cursor]
}

// HeadRevision returns the last revision, or NoRevision if there are none.
func (p *HistoryPager) HeadRevision() domain.Revision {
	if len(p.revisions) == 0 {
		return domain.NoRevision
	}
	return p.revisions[len(p.revisions)-1]
}

// PageSize returns the window size.
func (p *HistoryPager) PageSize() int {
	return p.pageSize
}

// Current returns the change-set under the cursor, loading its page on first
// access. It returns nil without error when the repository has no record for
// the revision; callers treat that as a gap.
func (p *HistoryPager) Current(ctx context.Context) (*domain.ChangeSet, error) {
	if p.Done() {
		return nil, nil
	}
	rev := p.CurrentRevision()
	if !p.loaded || rev < p.pageLo || rev > p.pageHi {
		if err := p.loadPage(ctx); err != nil {
			return nil, err
		}
	}
	return p.page[rev], nil
}

func (p *HistoryPager) pageBounds() (domain.Revision, domain.Revision) {
	lo := p.CurrentRevision()
	hi := lo + domain.Revision(p.pageSize)
	if head := p.HeadRevision(); hi > head {
		hi = head
	}
	return lo, hi
}

func (p *HistoryPager) loadPage(ctx context.Context) error {
	lo, hi := p.pageBounds()
	logger.Debug("Loading history page [%d, %d] under %s", lo, hi, p.rootPath)

	page, err := p.repo.QueryHistoryRange(ctx, p.rootPath, lo, hi, true)
	if err != nil {
		return fmt.Errorf("query history [%d, %d]: %w", lo, hi, err)
	}
	if page == nil {
		page = make(map[domain.Revision]*domain.ChangeSet)
	}
	p.page, p.pageLo, p.pageHi, p.loaded = page, lo, hi, true
	return nil
}

// MoveNext advances the cursor and evicts the consumed change-set.
// It returns false once the last revision has been consumed.
func (p *HistoryPager) MoveNext() bool {
	if p.Done() {
		return false
	}
	if p.page != nil {
		delete(p.page, p.CurrentRevision())
	}
	p.cursor++
	if p.Done() {
		p.page, p.loaded = nil, false
		return false
	}
	if p.loaded && p.CurrentRevision() > p.pageHi {
		p.page, p.loaded = nil, false
	}
	return true
}

// AtPageEnd returns true if the cursor is on the last revision of its page,
// so the next MoveNext crosses into a new page or ends iteration.
func (p *HistoryPager) AtPageEnd() bool {
	if p.Done() {
		return true
	}
	if p.cursor == len(p.revisions)-1 {
		return true
	}
	hi := p.pageHi
	if !p.loaded {
		_, hi = p.pageBounds()
	}
	return p.revisions[p.cursor+1] > hi
}

// Reset moves the cursor back to the first revision and drops the cached page.
func (p *HistoryPager) Reset() {
	p.cursor = 0
	p.page, p.loaded = nil, false
	p.pageLo, p.pageHi = domain.NoRevision, domain.NoRevision
}
