package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// conversionHistoryStore implements driven.ConversionHistoryStore.
type conversionHistoryStore struct {
	store *Store
}

var _ driven.ConversionHistoryStore = (*conversionHistoryStore)(nil)

// Record upserts the conversion of a source revision.
func (s *conversionHistoryStore) Record(ctx context.Context, record domain.ConversionRecord) error {
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO conversion_history
			(session_id, source_id, source_revision, target_source_id, target_revision, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, source_id, source_revision) DO UPDATE SET
			target_source_id = excluded.target_source_id,
			target_revision = excluded.target_revision,
			recorded_at = excluded.recorded_at
	`, record.SessionID, record.SourceID, int64(record.SourceRevision), record.TargetSourceID,
		int64(record.TargetRevision), record.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving conversion: %w", err)
	}
	return nil
}

// IsMigratedRevision reports whether revision on sourceID is the target of a
// conversion from originID.
func (s *conversionHistoryStore) IsMigratedRevision(
	ctx context.Context, sourceID, originID string, revision domain.Revision,
) (bool, error) {
	var exists bool
	err := s.store.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM conversion_history
			WHERE target_source_id = ? AND target_revision = ? AND source_id = ?
		)
	`, sourceID, int64(revision), originID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking conversion history: %w", err)
	}
	return exists, nil
}

// FindBySource returns the conversion of a source revision.
func (s *conversionHistoryStore) FindBySource(
	ctx context.Context, sessionID, sourceID string, revision domain.Revision,
) (*domain.ConversionRecord, error) {
	record := domain.ConversionRecord{SessionID: sessionID, SourceID: sourceID, SourceRevision: revision}
	var target int64
	var recordedAt sql.NullTime
	err := s.store.db.QueryRowContext(ctx, `
		SELECT target_source_id, target_revision, recorded_at FROM conversion_history
		WHERE session_id = ? AND source_id = ? AND source_revision = ?
	`, sessionID, sourceID, int64(revision)).Scan(&record.TargetSourceID, &target, &recordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning conversion: %w", err)
	}
	record.TargetRevision = domain.Revision(target)
	if recordedAt.Valid {
		record.RecordedAt = recordedAt.Time
	}
	return &record, nil
}
