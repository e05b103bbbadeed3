package mcp

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// mockPipelineService is a mock implementation of driving.PipelineService.
type mockPipelineService struct {
	groups    []domain.ChangeGroup
	err       error
	limit     int
	completed domain.Revision
	calls     []string
}

func (m *mockPipelineService) ListGroups(
	_ context.Context, _, _ string, _ ...domain.ChangeGroupStatus,
) ([]domain.ChangeGroup, error) {
	return m.groups, m.err
}

func (m *mockPipelineService) GetGroup(_ context.Context, id string) (*domain.ChangeGroup, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.groups {
		if m.groups[i].ID == id {
			return &m.groups[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPipelineService) DemoteInProgress(_ context.Context, _ string) (int64, error) {
	return 0, m.err
}

func (m *mockPipelineService) RemoveInProgress(_ context.Context, _ string) (int64, error) {
	return 0, m.err
}

func (m *mockPipelineService) Discard(_ context.Context, sessionID, instructionID string) error {
	m.calls = append(m.calls, "discard "+sessionID+" "+instructionID)
	return m.err
}

func (m *mockPipelineService) Reactivate(_ context.Context, sessionID, instructionID string) error {
	m.calls = append(m.calls, "reactivate "+sessionID+" "+instructionID)
	return m.err
}

func (m *mockPipelineService) Checkout(_ context.Context, _ string, limit int) ([]domain.ChangeGroup, error) {
	m.limit = limit
	return m.groups, m.err
}

func (m *mockPipelineService) Complete(
	_ context.Context, sessionID, instructionID string, target domain.Revision,
) error {
	m.calls = append(m.calls, "complete "+sessionID+" "+instructionID)
	m.completed = target
	return m.err
}

// mockConflictService is a mock implementation of driving.ConflictService.
type mockConflictService struct {
	conflicts []domain.Conflict
	status    domain.ConflictStatus
	err       error
}

func (m *mockConflictService) List(
	_ context.Context, _ string, status domain.ConflictStatus,
) ([]domain.Conflict, error) {
	m.status = status
	return m.conflicts, m.err
}

func (m *mockConflictService) Resolve(
	_ context.Context, conflictID string, resolution domain.ResolutionType, scope string,
) (*domain.ResolutionRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.conflicts {
		if c.ID == conflictID {
			if scope == "" {
				scope = c.Scope
			}
			return &domain.ResolutionRule{
				ID: "rule-1", SessionID: c.SessionID, ConflictType: c.Type, Scope: scope, Resolution: resolution,
			}, nil
		}
	}
	return nil, domain.ErrNotFound
}

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	sessions []domain.Session
	err      error
}

func (m *mockSessionService) Add(_ context.Context, s domain.Session) (*domain.Session, error) {
	return &s, m.err
}

func (m *mockSessionService) Get(_ context.Context, _ string) (*domain.Session, error) {
	return nil, domain.ErrNotFound
}

func (m *mockSessionService) List(_ context.Context) ([]domain.Session, error) {
	return m.sessions, m.err
}

func (m *mockSessionService) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockSessionService) SupportedTypes() []string {
	return []string{"memory"}
}

func newTestServer(pipeline *mockPipelineService, conflicts *mockConflictService) *Server {
	server, err := NewServer(&Ports{Pipeline: pipeline, Conflicts: conflicts})
	if err != nil {
		panic(err)
	}
	return server
}
