package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
)

// Ensure PipelineManager implements the interface.
var _ driving.PipelineService = (*PipelineManager)(nil)

// PipelineManager exposes the pipeline of every session to driving adapters.
type PipelineManager struct {
	sessions    driven.SessionStore
	groups      driven.ChangeGroupStore
	marks       driven.HighWaterMarkStore
	conversions driven.ConversionHistoryStore
	cache       *GroupCache
}

// NewPipelineManager creates a pipeline manager.
func NewPipelineManager(
	sessions driven.SessionStore,
	groups driven.ChangeGroupStore,
	marks driven.HighWaterMarkStore,
	conversions driven.ConversionHistoryStore,
) *PipelineManager {
	return &PipelineManager{
		sessions:    sessions,
		groups:      groups,
		marks:       marks,
		conversions: conversions,
		cache:       NewGroupCache(DefaultGroupCacheCapacity),
	}
}

// WithCache replaces the change group cache.
func (m *PipelineManager) WithCache(cache *GroupCache) *PipelineManager {
	if cache != nil {
		m.cache = cache
	}
	return m
}

func (m *PipelineManager) pipeline(ctx context.Context, sessionID string) (*Pipeline, error) {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return NewPipeline(m.groups, m.marks, m.conversions, session, m.cache), nil
}

// ListGroups returns the groups of one side of a session.
func (m *PipelineManager) ListGroups(
	ctx context.Context, sessionID, sourceID string, statuses ...domain.ChangeGroupStatus,
) ([]domain.ChangeGroup, error) {
	return m.groups.List(ctx, domain.StatusFilter{SessionID: sessionID, SourceID: sourceID, Statuses: statuses}, 0)
}

// GetGroup returns one group with its actions.
func (m *PipelineManager) GetGroup(ctx context.Context, id string) (*domain.ChangeGroup, error) {
	return m.groups.Get(ctx, id)
}

// DemoteInProgress moves in-progress instructions back to pending.
func (m *PipelineManager) DemoteInProgress(ctx context.Context, sessionID string) (int64, error) {
	p, err := m.pipeline(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return p.DemoteInProgressActionsToPending(ctx)
}

// RemoveInProgress obsoletes the speculative work of a session.
func (m *PipelineManager) RemoveInProgress(ctx context.Context, sessionID string) (int64, error) {
	p, err := m.pipeline(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return p.RemoveInProgressChangeGroups(ctx)
}

// Discard obsoletes an instruction and reactivates its delta.
func (m *PipelineManager) Discard(ctx context.Context, sessionID, instructionID string) error {
	p, err := m.pipeline(ctx, sessionID)
	if err != nil {
		return err
	}
	return p.DiscardMigrationInstructionAndReactivateDelta(ctx, instructionID)
}

// Reactivate returns an instruction to pending.
func (m *PipelineManager) Reactivate(ctx context.Context, sessionID, instructionID string) error {
	p, err := m.pipeline(ctx, sessionID)
	if err != nil {
		return err
	}
	return p.ReactivateMigrationInstruction(ctx, instructionID)
}

// Checkout claims pending instructions.
func (m *PipelineManager) Checkout(ctx context.Context, sessionID string, limit int) ([]domain.ChangeGroup, error) {
	p, err := m.pipeline(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return p.CheckoutInstructions(ctx, limit)
}

// Complete marks a claimed instruction applied.
func (m *PipelineManager) Complete(
	ctx context.Context, sessionID, instructionID string, targetRevision domain.Revision,
) error {
	p, err := m.pipeline(ctx, sessionID)
	if err != nil {
		return err
	}
	return p.CompleteInstruction(ctx, instructionID, targetRevision)
}
