package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// Ensure ConflictManager implements the interfaces.
var (
	_ driven.ConflictEscalation = (*ConflictManager)(nil)
	_ driving.ConflictService   = (*ConflictManager)(nil)
)

// ConflictManager persists conflicts raised during translation and resolves
// them from stored resolution rules. Conflicts without a matching rule stay
// active in the backlog until a user resolves them.
type ConflictManager struct {
	store driven.ConflictStore
	now   func() time.Time
}

// NewConflictManager creates a conflict manager.
func NewConflictManager(store driven.ConflictStore) *ConflictManager {
	return &ConflictManager{store: store, now: time.Now}
}

// TryResolveNewConflict records a conflict and resolves it if a rule matches.
func (m *ConflictManager) TryResolveNewConflict(
	ctx context.Context, sourceID string, conflict domain.Conflict,
) (domain.ConflictResolutionResult, error) {
	if conflict.ID == "" {
		conflict.ID = uuid.NewString()
	}
	conflict.SourceID = sourceID
	conflict.Scope = domain.NormalizePath(conflict.Scope)

	rules, err := m.store.ListRules(ctx, conflict.SessionID, conflict.Type)
	if err != nil {
		return domain.ConflictResolutionResult{}, fmt.Errorf("list rules: %w", err)
	}

	result := domain.ConflictResolutionResult{}
	if rule, ok := mostSpecificRule(rules, conflict); ok {
		result = domain.ConflictResolutionResult{
			Resolved:       rule.Resolution != domain.ResolutionManual,
			ResolutionType: rule.Resolution,
		}
	}

	if result.Resolved {
		conflict.Status = domain.ConflictResolved
		conflict.Resolution = result.ResolutionType
		conflict.ResolvedAt = m.now()
		logger.Info("Conflict %s on %s at r%d resolved by rule: %s",
			conflict.Type, conflict.Scope, conflict.Revision, result.ResolutionType)
	} else {
		conflict.Status = domain.ConflictActive
		logger.Warn("Conflict %s on %s at r%d needs resolution", conflict.Type, conflict.Scope, conflict.Revision)
	}

	if err := m.store.SaveConflict(ctx, &conflict); err != nil {
		return domain.ConflictResolutionResult{}, fmt.Errorf("save conflict: %w", err)
	}
	result.ConflictID = conflict.ID
	return result, nil
}

// mostSpecificRule returns the matching rule with the deepest scope.
// Later rules win ties.
func mostSpecificRule(rules []domain.ResolutionRule, conflict domain.Conflict) (domain.ResolutionRule, bool) {
	var best domain.ResolutionRule
	found := false
	for _, r := range rules {
		if !r.Matches(conflict) {
			continue
		}
		if !found || len(domain.PathSegments(r.Scope)) >= len(domain.PathSegments(best.Scope)) {
			best, found = r, true
		}
	}
	return best, found
}

// List returns the conflicts of a session.
func (m *ConflictManager) List(
	ctx context.Context, sessionID string, status domain.ConflictStatus,
) ([]domain.Conflict, error) {
	return m.store.ListConflicts(ctx, sessionID, status)
}

// Resolve stores a rule for the conflict and marks it resolved. The run that
// raised it picks the rule up when analysis is retried.
func (m *ConflictManager) Resolve(
	ctx context.Context, conflictID string, resolution domain.ResolutionType, scope string,
) (*domain.ResolutionRule, error) {
	if !resolution.IsValid() {
		return nil, fmt.Errorf("%w: resolution %q", domain.ErrInvalidInput, resolution)
	}
	conflict, err := m.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, fmt.Errorf("get conflict: %w", err)
	}
	if scope == "" {
		scope = conflict.Scope
	}

	rule := domain.ResolutionRule{
		ID:           uuid.NewString(),
		SessionID:    conflict.SessionID,
		ConflictType: conflict.Type,
		Scope:        domain.NormalizePath(scope),
		Resolution:   resolution,
		CreatedAt:    m.now(),
	}
	if !rule.Matches(*conflict) {
		return nil, fmt.Errorf("%w: scope %s does not cover %s", domain.ErrInvalidInput, rule.Scope, conflict.Scope)
	}
	if err := m.store.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("save rule: %w", err)
	}

	if resolution != domain.ResolutionManual {
		conflict.Status = domain.ConflictResolved
		conflict.Resolution = resolution
		conflict.ResolvedAt = m.now()
		if err := m.store.SaveConflict(ctx, conflict); err != nil {
			return nil, fmt.Errorf("save conflict: %w", err)
		}
	}
	return &rule, nil
}

// ActiveScopes returns the scopes of the active conflicts of a session.
func (m *ConflictManager) ActiveScopes(ctx context.Context, sessionID string) ([]string, error) {
	conflicts, err := m.store.ListConflicts(ctx, sessionID, domain.ConflictActive)
	if err != nil {
		return nil, err
	}
	scopes := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		scopes = append(scopes, c.Scope)
	}
	return scopes, nil
}
