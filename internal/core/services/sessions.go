package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// SessionService manages session configurations.
type SessionService struct {
	store   driven.SessionStore
	factory driven.RepositoryFactory

	defaultPageSize    int
	defaultSkipComment string

	now func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(store driven.SessionStore, factory driven.RepositoryFactory) *SessionService {
	return &SessionService{store: store, factory: factory, now: time.Now}
}

// SetDefaults sets the page size and skip comment given to sessions that
// don't configure their own.
func (s *SessionService) SetDefaults(pageSize int, skipComment string) {
	s.defaultPageSize = pageSize
	s.defaultSkipComment = skipComment
}

// Add validates and stores a new session. An empty ID is generated.
func (s *SessionService) Add(ctx context.Context, session domain.Session) (*domain.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Name == "" {
		session.Name = session.ID
	}
	if session.PageSize <= 0 {
		session.PageSize = s.defaultPageSize
	}
	if session.SkipComment == "" {
		session.SkipComment = s.defaultSkipComment
	}
	for i, p := range session.MappedPaths {
		session.MappedPaths[i] = domain.NormalizePath(p)
	}
	for i, p := range session.CloakedPaths {
		session.CloakedPaths[i] = domain.NormalizePath(p)
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if !s.supports(session.Repository.Type) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, session.Repository.Type)
	}

	existing, err := s.store.Get(ctx, session.ID)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("%w: session %s", domain.ErrAlreadyExists, session.ID)
	}

	now := s.now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &session, nil
}

func (s *SessionService) supports(repoType string) bool {
	for _, t := range s.SupportedTypes() {
		if t == repoType {
			return true
		}
	}
	return false
}

// Get retrieves a session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.store.Get(ctx, id)
}

// List returns all configured sessions.
func (s *SessionService) List(ctx context.Context) ([]domain.Session, error) {
	return s.store.List(ctx)
}

// Remove deletes a session.
func (s *SessionService) Remove(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}
	return s.store.Delete(ctx, id)
}

// SupportedTypes returns the repository types registered with the factory.
func (s *SessionService) SupportedTypes() []string {
	if s.factory == nil {
		return nil
	}
	return s.factory.SupportedTypes()
}
