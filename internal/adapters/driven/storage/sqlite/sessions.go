package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// sessionStore implements driven.SessionStore.
type sessionStore struct {
	store *Store
}

var _ driven.SessionStore = (*sessionStore)(nil)

const sessionColumns = `id, name, source_id, peer_source_id, repository_type, repository_config,
	mapped_paths, cloaked_paths, page_size, skip_comment, created_at, updated_at`

// Save stores or updates a session.
func (s *sessionStore) Save(ctx context.Context, session domain.Session) error {
	configJSON, err := json.Marshal(session.Repository.Config)
	if err != nil {
		return fmt.Errorf("marshalling repository config: %w", err)
	}
	mappedJSON, err := json.Marshal(session.MappedPaths)
	if err != nil {
		return fmt.Errorf("marshalling mapped paths: %w", err)
	}
	cloakedJSON, err := json.Marshal(session.CloakedPaths)
	if err != nil {
		return fmt.Errorf("marshalling cloaked paths: %w", err)
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source_id = excluded.source_id,
			peer_source_id = excluded.peer_source_id,
			repository_type = excluded.repository_type,
			repository_config = excluded.repository_config,
			mapped_paths = excluded.mapped_paths,
			cloaked_paths = excluded.cloaked_paths,
			page_size = excluded.page_size,
			skip_comment = excluded.skip_comment,
			updated_at = excluded.updated_at
	`, session.ID, session.Name, session.SourceID, session.PeerSourceID, session.Repository.Type,
		string(configJSON), string(mappedJSON), string(cloakedJSON), session.PageSize,
		session.SkipComment, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *sessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return session, nil
}

// Delete removes a session.
func (s *sessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns all sessions ordered by ID.
func (s *sessionStore) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session //nolint:prealloc // size unknown from query
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var configJSON, mappedJSON, cloakedJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&session.ID, &session.Name, &session.SourceID, &session.PeerSourceID,
		&session.Repository.Type, &configJSON, &mappedJSON, &cloakedJSON, &session.PageSize,
		&session.SkipComment, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(configJSON), &session.Repository.Config); err != nil {
		return nil, fmt.Errorf("unmarshaling repository config: %w", err)
	}
	if err := json.Unmarshal([]byte(mappedJSON), &session.MappedPaths); err != nil {
		return nil, fmt.Errorf("unmarshaling mapped paths: %w", err)
	}
	if err := json.Unmarshal([]byte(cloakedJSON), &session.CloakedPaths); err != nil {
		return nil, fmt.Errorf("unmarshaling cloaked paths: %w", err)
	}
	if createdAt.Valid {
		session.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		session.UpdatedAt = updatedAt.Time
	}
	return &session, nil
}
