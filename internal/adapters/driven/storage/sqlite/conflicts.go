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

// conflictStore implements driven.ConflictStore.
type conflictStore struct {
	store *Store
}

var _ driven.ConflictStore = (*conflictStore)(nil)

const conflictColumns = `id, session_id, source_id, type, scope, revision, details, status, resolution,
	created_at, resolved_at`

// SaveConflict upserts a conflict on its natural key and loads back the stored ID.
func (s *conflictStore) SaveConflict(ctx context.Context, conflict *domain.Conflict) error {
	if conflict.CreatedAt.IsZero() {
		conflict.CreatedAt = time.Now().UTC()
	}
	conflict.Scope = domain.NormalizePath(conflict.Scope)

	var resolvedAt sql.NullTime
	if !conflict.ResolvedAt.IsZero() {
		resolvedAt = sql.NullTime{Time: conflict.ResolvedAt.UTC(), Valid: true}
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conflicts (`+conflictColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, source_id, type, scope, revision) DO UPDATE SET
				details = excluded.details,
				status = excluded.status,
				resolution = excluded.resolution,
				resolved_at = excluded.resolved_at
		`, conflict.ID, conflict.SessionID, conflict.SourceID, string(conflict.Type), conflict.Scope,
			int64(conflict.Revision), conflict.Details, string(conflict.Status), string(conflict.Resolution),
			conflict.CreatedAt, resolvedAt)
		if err != nil {
			return fmt.Errorf("saving conflict: %w", err)
		}

		var createdAt sql.NullTime
		err = tx.QueryRowContext(ctx, `
			SELECT id, created_at FROM conflicts
			WHERE session_id = ? AND source_id = ? AND type = ? AND scope = ? AND revision = ?
		`, conflict.SessionID, conflict.SourceID, string(conflict.Type), conflict.Scope,
			int64(conflict.Revision)).Scan(&conflict.ID, &createdAt)
		if err != nil {
			return fmt.Errorf("reading conflict id: %w", err)
		}
		if createdAt.Valid {
			conflict.CreatedAt = createdAt.Time
		}
		return nil
	})
}

// GetConflict retrieves a conflict by ID.
func (s *conflictStore) GetConflict(ctx context.Context, id string) (*domain.Conflict, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+conflictColumns+" FROM conflicts WHERE id = ?", id)
	c, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning conflict: %w", err)
	}
	return c, nil
}

// ListConflicts returns the conflicts of a session, oldest revision first.
func (s *conflictStore) ListConflicts(
	ctx context.Context, sessionID string, status domain.ConflictStatus,
) ([]domain.Conflict, error) {
	query := "SELECT " + conflictColumns + " FROM conflicts WHERE session_id = ?"
	args := []any{sessionID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	rows, err := s.store.db.QueryContext(ctx, query+" ORDER BY revision, scope", args...)
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []domain.Conflict //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		conflicts = append(conflicts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conflicts: %w", err)
	}
	return conflicts, nil
}

// SaveRule upserts a resolution rule.
func (s *conflictStore) SaveRule(ctx context.Context, rule domain.ResolutionRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO resolution_rules (id, session_id, conflict_type, scope, resolution, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conflict_type = excluded.conflict_type,
			scope = excluded.scope,
			resolution = excluded.resolution
	`, rule.ID, rule.SessionID, string(rule.ConflictType), domain.NormalizePath(rule.Scope),
		string(rule.Resolution), rule.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving resolution rule: %w", err)
	}
	return nil
}

// ListRules returns the rules of a session for a conflict type, in creation order.
func (s *conflictStore) ListRules(
	ctx context.Context, sessionID string, conflictType domain.ConflictType,
) ([]domain.ResolutionRule, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, session_id, conflict_type, scope, resolution, created_at
		FROM resolution_rules WHERE session_id = ? AND conflict_type = ?
		ORDER BY created_at, id
	`, sessionID, string(conflictType))
	if err != nil {
		return nil, fmt.Errorf("querying resolution rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.ResolutionRule //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.ResolutionRule
		var kind, resolution string
		var createdAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.SessionID, &kind, &r.Scope, &resolution, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning resolution rule: %w", err)
		}
		r.ConflictType = domain.ConflictType(kind)
		r.Resolution = domain.ResolutionType(resolution)
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resolution rules: %w", err)
	}
	return rules, nil
}

func scanConflict(row rowScanner) (*domain.Conflict, error) {
	var c domain.Conflict
	var kind, status, resolution string
	var revision int64
	var createdAt, resolvedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.SessionID, &c.SourceID, &kind, &c.Scope, &revision, &c.Details,
		&status, &resolution, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}
	c.Type = domain.ConflictType(kind)
	c.Revision = domain.Revision(revision)
	c.Status = domain.ConflictStatus(status)
	c.Resolution = domain.ResolutionType(resolution)
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	if resolvedAt.Valid {
		c.ResolvedAt = resolvedAt.Time
	}
	return &c, nil
}
