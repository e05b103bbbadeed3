package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// changeGroupStore implements driven.ChangeGroupStore.
type changeGroupStore struct {
	store *Store
}

var _ driven.ChangeGroupStore = (*changeGroupStore)(nil)

const groupColumns = `id, session_id, source_id, name, execution_order, owner, comment, change_time,
	status, contains_backlogged_action, reflected_change_group_id, created_at, updated_at`

// Create stores a new group and its actions in one transaction.
func (s *changeGroupStore) Create(ctx context.Context, group *domain.ChangeGroup) error {
	if group.ID == "" {
		return fmt.Errorf("%w: change group without id", domain.ErrInvalidInput)
	}
	if !group.Status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, group.Status)
	}

	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM change_groups WHERE id = ?", group.ID).Scan(&exists)
		if err == nil {
			return fmt.Errorf("change group %s: %w", group.ID, domain.ErrAlreadyExists)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking change group: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO change_groups (`+groupColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, group.ID, group.SessionID, group.SourceID, group.Name, group.ExecutionOrder,
			group.Owner, group.Comment, group.ChangeTime.UTC(), string(group.Status),
			boolToInt(group.ContainsBackloggedAction), nullString(group.ReflectedChangeGroupID),
			group.CreatedAt, group.UpdatedAt)
		if err != nil {
			return fmt.Errorf("saving change group: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO migration_actions
				(group_id, action_order, kind, source_path, path, version, merge_version_to, item_type, source_item)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for i, a := range group.Actions {
			if _, err := stmt.ExecContext(ctx, group.ID, i, string(a.Kind), a.SourcePath, a.Path,
				a.Version, a.MergeVersionTo, string(a.ItemType), a.SourceItem); err != nil {
				return fmt.Errorf("saving migration action: %w", err)
			}
		}
		return nil
	})
}

// Get retrieves a group by ID with its actions.
func (s *changeGroupStore) Get(ctx context.Context, id string) (*domain.ChangeGroup, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+groupColumns+" FROM change_groups WHERE id = ?", id)
	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning change group: %w", err)
	}
	if err := s.loadActions(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// filterClause renders a StatusFilter as a WHERE fragment.
func filterClause(f domain.StatusFilter) (string, []any) {
	var conds []string
	var args []any
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.SourceID != "" {
		conds = append(conds, "source_id = ?")
		args = append(args, f.SourceID)
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status IN ("+inClause(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

// List returns matching groups ordered by execution order. A limit <= 0 returns all.
func (s *changeGroupStore) List(ctx context.Context, filter domain.StatusFilter, limit int) ([]domain.ChangeGroup, error) {
	where, args := filterClause(filter)
	query := "SELECT " + groupColumns + " FROM change_groups WHERE " + where +
		" ORDER BY execution_order, created_at, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// FindByExecutionOrder returns the groups of a source at one execution order.
func (s *changeGroupStore) FindByExecutionOrder(
	ctx context.Context, sessionID, sourceID string, order int64, statuses ...domain.ChangeGroupStatus,
) ([]domain.ChangeGroup, error) {
	where, args := filterClause(domain.StatusFilter{SessionID: sessionID, SourceID: sourceID, Statuses: statuses})
	args = append(args, order)
	return s.query(ctx, "SELECT "+groupColumns+" FROM change_groups WHERE "+where+
		" AND execution_order = ? ORDER BY created_at, id", args...)
}

// FindReflecting returns the instructions linked to a delta.
func (s *changeGroupStore) FindReflecting(ctx context.Context, deltaID string) ([]domain.ChangeGroup, error) {
	return s.query(ctx, "SELECT "+groupColumns+
		" FROM change_groups WHERE reflected_change_group_id = ? ORDER BY execution_order, created_at, id", deltaID)
}

func (s *changeGroupStore) query(ctx context.Context, query string, args ...any) ([]domain.ChangeGroup, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying change groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.ChangeGroup //nolint:prealloc // size unknown from query
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning change group: %w", err)
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change groups: %w", err)
	}
	rows.Close()

	for i := range groups {
		if err := s.loadActions(ctx, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (s *changeGroupStore) loadActions(ctx context.Context, group *domain.ChangeGroup) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT action_order, kind, source_path, path, version, merge_version_to, item_type, source_item
		FROM migration_actions WHERE group_id = ?
		ORDER BY action_order
	`, group.ID)
	if err != nil {
		return fmt.Errorf("querying migration actions: %w", err)
	}
	defer rows.Close()

	group.Actions = nil
	for rows.Next() {
		var a domain.MigrationAction
		var kind, itemType string
		if err := rows.Scan(&a.Order, &kind, &a.SourcePath, &a.Path, &a.Version,
			&a.MergeVersionTo, &itemType, &a.SourceItem); err != nil {
			return fmt.Errorf("scanning migration action: %w", err)
		}
		a.Kind = domain.ActionKind(kind)
		a.ItemType = domain.ItemType(itemType)
		group.Actions = append(group.Actions, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating migration actions: %w", err)
	}
	return nil
}

// BatchUpdateStatus moves every group matching any filter to status to.
// If one group cannot make the transition nothing is updated.
func (s *changeGroupStore) BatchUpdateStatus(
	ctx context.Context, to domain.ChangeGroupStatus, filters ...domain.StatusFilter,
) (int64, error) {
	var updated int64
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		seen := make(map[string]bool)
		var ids []string
		for _, f := range filters {
			where, args := filterClause(f)
			rows, err := tx.QueryContext(ctx, "SELECT id, status FROM change_groups WHERE "+where, args...)
			if err != nil {
				return fmt.Errorf("selecting change groups: %w", err)
			}
			for rows.Next() {
				var id, status string
				if err := rows.Scan(&id, &status); err != nil {
					rows.Close()
					return fmt.Errorf("scanning change group: %w", err)
				}
				if seen[id] {
					continue
				}
				if from := domain.ChangeGroupStatus(status); !from.CanTransition(to) {
					rows.Close()
					return fmt.Errorf("%w: %s -> %s for group %s", domain.ErrInvalidTransition, from, to, id)
				}
				seen[id] = true
				ids = append(ids, id)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return fmt.Errorf("iterating change groups: %w", err)
			}
			rows.Close()
		}

		now := time.Now().UTC()
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				"UPDATE change_groups SET status = ?, updated_at = ? WHERE id = ?", string(to), now, id); err != nil {
				return fmt.Errorf("updating change group %s: %w", id, err)
			}
		}
		updated = int64(len(ids))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Transition applies conditional status changes in one transaction.
func (s *changeGroupStore) Transition(ctx context.Context, changes ...domain.StatusChange) error {
	for _, c := range changes {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, c := range changes {
			res, err := tx.ExecContext(ctx,
				"UPDATE change_groups SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
				string(c.To), now, c.GroupID, string(c.From))
			if err != nil {
				return fmt.Errorf("updating change group %s: %w", c.GroupID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("updating change group %s: %w", c.GroupID, err)
			}
			if n == 1 {
				continue
			}

			var current string
			err = tx.QueryRowContext(ctx, "SELECT status FROM change_groups WHERE id = ?", c.GroupID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("change group %s: %w", c.GroupID, domain.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("reading change group %s: %w", c.GroupID, err)
			}
			return fmt.Errorf("%w: group %s is %s, expected %s", domain.ErrStaleStatus, c.GroupID, current, c.From)
		}
		return nil
	})
}

// SetBacklogged sets or clears ContainsBackloggedAction.
func (s *changeGroupStore) SetBacklogged(ctx context.Context, id string, backlogged bool) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE change_groups SET contains_backlogged_action = ?, updated_at = ? WHERE id = ?",
		boolToInt(backlogged), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating change group: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountByStatus counts the groups of a source per status.
func (s *changeGroupStore) CountByStatus(
	ctx context.Context, sessionID, sourceID string,
) (map[domain.ChangeGroupStatus]int, error) {
	where, args := filterClause(domain.StatusFilter{SessionID: sessionID, SourceID: sourceID})
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM change_groups WHERE "+where+" GROUP BY status", args...)
	if err != nil {
		return nil, fmt.Errorf("counting change groups: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ChangeGroupStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.ChangeGroupStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*domain.ChangeGroup, error) {
	var g domain.ChangeGroup
	var status string
	var backlogged int
	var reflected sql.NullString
	var changeTime, createdAt, updatedAt sql.NullTime
	if err := row.Scan(&g.ID, &g.SessionID, &g.SourceID, &g.Name, &g.ExecutionOrder, &g.Owner,
		&g.Comment, &changeTime, &status, &backlogged, &reflected, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	g.Status = domain.ChangeGroupStatus(status)
	g.ContainsBackloggedAction = backlogged != 0
	g.ReflectedChangeGroupID = reflected.String
	if changeTime.Valid {
		g.ChangeTime = changeTime.Time
	}
	if createdAt.Valid {
		g.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		g.UpdatedAt = updatedAt.Time
	}
	return &g, nil
}

// nullString converts empty strings to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
