package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// Discovery is the outcome of one delta discovery pass.
type Discovery struct {
	// Revisions are the new revisions to analyse, ascending.
	Revisions []domain.Revision

	// Head is the latest revision of the repository.
	Head domain.Revision

	// LastAnalyzed is the high-water mark the pass started from.
	LastAnalyzed domain.Revision

	// SkippedComment counts change-sets excluded by the skip comment.
	SkippedComment int

	// SkippedMigrated counts change-sets written by migration from the peer.
	SkippedMigrated int
}

// DeltaDiscovery selects the revisions of the mapped history that have not
// been analysed yet.
type DeltaDiscovery struct {
	marks       driven.HighWaterMarkStore
	conversions driven.ConversionHistoryStore
	now         func() time.Time
}

// NewDeltaDiscovery creates a DeltaDiscovery.
func NewDeltaDiscovery(marks driven.HighWaterMarkStore, conversions driven.ConversionHistoryStore) *DeltaDiscovery {
	return &DeltaDiscovery{marks: marks, conversions: conversions, now: time.Now}
}

// LastAnalyzed returns the LastAnalyzedRevision mark of a session, or
// NoRevision if it was never saved.
func (d *DeltaDiscovery) LastAnalyzed(ctx context.Context, session *domain.Session) (domain.Revision, error) {
	return readMark(ctx, d.marks, session, domain.HWMLastAnalyzedRevision)
}

// Discover queries every mapped path for change-sets after the high-water
// mark. When nothing new is found the mark moves to head.
func (d *DeltaDiscovery) Discover(
	ctx context.Context, session *domain.Session, repo driven.Repository, mapping *PathMapping,
) (*Discovery, error) {
	last, err := d.LastAnalyzed(ctx, session)
	if err != nil {
		return nil, err
	}
	head, err := repo.GetLatestRevisionNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest revision: %w", err)
	}

	result := &Discovery{Head: head, LastAnalyzed: last}
	if head > last {
		if err := d.collect(ctx, session, repo, mapping, last, head, result); err != nil {
			return nil, err
		}
	}

	if len(result.Revisions) == 0 {
		logger.Debug("No new revisions after r%d (head r%d)", last, head)
		if head > last {
			if err := saveMark(ctx, d.marks, session, domain.HWMLastAnalyzedRevision, head, d.now()); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	logger.Info("Discovered %d new revisions after r%d (head r%d)", len(result.Revisions), last, head)
	return result, nil
}

func (d *DeltaDiscovery) collect(
	ctx context.Context,
	session *domain.Session,
	repo driven.Repository,
	mapping *PathMapping,
	last, head domain.Revision,
	result *Discovery,
) error {
	seen := make(map[domain.Revision]bool)
	for _, mapped := range mapping.MappedServerPaths() {
		history, err := repo.QueryHistoryRange(ctx, mapped, last+1, head, false)
		if err != nil {
			return fmt.Errorf("query history of %s: %w", mapped, err)
		}
		for rev, cs := range history {
			if seen[rev] || cs == nil {
				continue
			}
			seen[rev] = true

			if session.SkipComment != "" && strings.Contains(cs.Comment, session.SkipComment) {
				logger.Debug("Skipping r%d: comment contains %q", rev, session.SkipComment)
				result.SkippedComment++
				continue
			}
			migrated, err := d.conversions.IsMigratedRevision(ctx, session.SourceID, session.PeerSourceID, rev)
			if err != nil {
				return fmt.Errorf("check conversion history of r%d: %w", rev, err)
			}
			if migrated {
				logger.Debug("Skipping r%d: written by migration", rev)
				result.SkippedMigrated++
				continue
			}
			result.Revisions = append(result.Revisions, rev)
		}
	}
	sort.Slice(result.Revisions, func(i, j int) bool { return result.Revisions[i] < result.Revisions[j] })
	return nil
}

func readMark(ctx context.Context, marks driven.HighWaterMarkStore, session *domain.Session, name string) (domain.Revision, error) {
	mark, err := marks.Get(ctx, session.ID, session.SourceID, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NoRevision, nil
	}
	if err != nil {
		return domain.NoRevision, fmt.Errorf("get %s: %w", name, err)
	}
	return mark.Value, nil
}

func saveMark(
	ctx context.Context, marks driven.HighWaterMarkStore, session *domain.Session, name string,
	value domain.Revision, now time.Time,
) error {
	mark := domain.HighWaterMark{SessionID: session.ID, SourceID: session.SourceID, Name: name}
	next, err := mark.Advance(value, now)
	if err != nil {
		return err
	}
	if err := marks.Save(ctx, next); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}
