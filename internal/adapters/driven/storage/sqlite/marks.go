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

// highWaterMarkStore implements driven.HighWaterMarkStore.
type highWaterMarkStore struct {
	store *Store
}

var _ driven.HighWaterMarkStore = (*highWaterMarkStore)(nil)

// Get retrieves a mark.
func (s *highWaterMarkStore) Get(ctx context.Context, sessionID, sourceID, name string) (*domain.HighWaterMark, error) {
	mark := domain.HighWaterMark{SessionID: sessionID, SourceID: sourceID, Name: name}
	var updatedAt sql.NullTime
	err := s.store.db.QueryRowContext(ctx, `
		SELECT value, updated_at FROM high_water_marks
		WHERE session_id = ? AND source_id = ? AND name = ?
	`, sessionID, sourceID, name).Scan(&mark.Value, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning high-water mark: %w", err)
	}
	if updatedAt.Valid {
		mark.UpdatedAt = updatedAt.Time
	}
	return &mark, nil
}

// Save upserts a mark. The conditional upsert leaves a higher stored value
// untouched, which is reported as a regression.
func (s *highWaterMarkStore) Save(ctx context.Context, mark domain.HighWaterMark) error {
	if mark.UpdatedAt.IsZero() {
		mark.UpdatedAt = time.Now()
	}
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO high_water_marks (session_id, source_id, name, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, source_id, name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
		WHERE excluded.value >= high_water_marks.value
	`, mark.SessionID, mark.SourceID, mark.Name, int64(mark.Value), mark.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving high-water mark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving high-water mark: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s to %d", domain.ErrHighWaterMarkRegression, mark.Name, mark.Value)
	}
	return nil
}
