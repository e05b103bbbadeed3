package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/vcsbridge/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vcsbridge/internal/connectors"
	"github.com/custodia-labs/vcsbridge/internal/connectors/memory"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func newSessionService() *SessionService {
	factory := connectors.NewFactory(nil)
	factory.Register(memory.Type, memory.Builder)
	return NewSessionService(memstore.NewSessionStore(), factory)
}

func validSession() domain.Session {
	return domain.Session{
		SourceID:     "left",
		PeerSourceID: "right",
		Repository:   domain.RepositoryConfig{Type: memory.Type, Config: map[string]string{"name": "x"}},
		MappedPaths:  []string{"proj/app/"},
		CloakedPaths: []string{"proj/app/secret"},
	}
}

func TestSessionService_AddAppliesDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService()
	svc.SetDefaults(25, "[skip-sync]")

	added, err := svc.Add(ctx, validSession())
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, added.ID, added.Name)
	assert.Equal(t, 25, added.PageSize)
	assert.Equal(t, "[skip-sync]", added.SkipComment)
	assert.Equal(t, []string{"/proj/app"}, added.MappedPaths)
	assert.Equal(t, []string{"/proj/app/secret"}, added.CloakedPaths)
	assert.False(t, added.CreatedAt.IsZero())

	got, err := svc.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, added.MappedPaths, got.MappedPaths)
}

func TestSessionService_AddKeepsExplicitSettings(t *testing.T) {
	svc := newSessionService()
	svc.SetDefaults(25, "[skip-sync]")

	s := validSession()
	s.ID = "s1"
	s.Name = "app"
	s.PageSize = 5
	s.SkipComment = "NOSYNC"

	added, err := svc.Add(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "s1", added.ID)
	assert.Equal(t, "app", added.Name)
	assert.Equal(t, 5, added.PageSize)
	assert.Equal(t, "NOSYNC", added.SkipComment)
}

func TestSessionService_AddErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.Session)
		want   error
	}{
		{"same source and peer", func(s *domain.Session) { s.PeerSourceID = s.SourceID }, domain.ErrInvalidInput},
		{"no mapped paths", func(s *domain.Session) { s.MappedPaths = nil; s.CloakedPaths = nil }, domain.ErrInvalidInput},
		{"cloak outside mapping", func(s *domain.Session) { s.CloakedPaths = []string{"/other"} }, domain.ErrInvalidInput},
		{"unknown type", func(s *domain.Session) { s.Repository.Type = "svn" }, domain.ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSession()
			tt.mutate(&s)
			_, err := newSessionService().Add(ctx, s)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSessionService_AddDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService()

	s := validSession()
	s.ID = "s1"
	_, err := svc.Add(ctx, s)
	require.NoError(t, err)

	_, err = svc.Add(ctx, validSessionWithID("s1"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func validSessionWithID(id string) domain.Session {
	s := validSession()
	s.ID = id
	return s
}

func TestSessionService_ListAndRemove(t *testing.T) {
	ctx := context.Background()
	svc := newSessionService()

	for _, id := range []string{"b", "a"} {
		_, err := svc.Add(ctx, validSessionWithID(id))
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	require.NoError(t, svc.Remove(ctx, "a"))
	assert.ErrorIs(t, svc.Remove(ctx, "a"), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, ""), domain.ErrInvalidInput)

	_, err = svc.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionService_SupportedTypes(t *testing.T) {
	assert.Equal(t, []string{memory.Type}, newSessionService().SupportedTypes())
	assert.Nil(t, NewSessionService(memstore.NewSessionStore(), nil).SupportedTypes())
}
