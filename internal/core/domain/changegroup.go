package domain

import (
	"fmt"
	"time"
)

// ChangeGroupStatus is the pipeline state of a ChangeGroup.
type ChangeGroupStatus string

// Change group statuses.
const (
	// StatusDelta is a freshly analysed group, not yet promoted.
	StatusDelta ChangeGroupStatus = "Delta"

	// StatusDeltaPending is a promoted delta, ready for target-side processing.
	StatusDeltaPending ChangeGroupStatus = "DeltaPending"

	// StatusDeltaComplete is a delta whose target-side processing is done.
	StatusDeltaComplete ChangeGroupStatus = "DeltaComplete"

	// StatusAnalysisMigrationInstruction is a new migration instruction awaiting promotion.
	StatusAnalysisMigrationInstruction ChangeGroupStatus = "AnalysisMigrationInstruction"

	// StatusPendingConflictDetection is an instruction waiting for the conflict-detection pass.
	StatusPendingConflictDetection ChangeGroupStatus = "PendingConflictDetection"

	// StatusPending is an instruction ready to be applied.
	StatusPending ChangeGroupStatus = "Pending"

	// StatusInProgress is an instruction claimed by a consumer.
	StatusInProgress ChangeGroupStatus = "InProgress"

	// StatusComplete is an applied instruction.
	StatusComplete ChangeGroupStatus = "Complete"

	// StatusObsolete is a superseded or discarded group.
	StatusObsolete ChangeGroupStatus = "Obsolete"
)

// AllChangeGroupStatuses returns every status in pipeline order.
func AllChangeGroupStatuses() []ChangeGroupStatus {
	return []ChangeGroupStatus{
		StatusDelta, StatusDeltaPending, StatusDeltaComplete,
		StatusAnalysisMigrationInstruction, StatusPendingConflictDetection,
		StatusPending, StatusInProgress, StatusComplete, StatusObsolete,
	}
}

// IsValid returns true if the status is recognised.
func (s ChangeGroupStatus) IsValid() bool {
	for _, known := range AllChangeGroupStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsOpen returns true while actions may still be added.
func (s ChangeGroupStatus) IsOpen() bool {
	return s == StatusDelta || s == StatusAnalysisMigrationInstruction
}

// IsDelta returns true for delta-table statuses.
func (s ChangeGroupStatus) IsDelta() bool {
	return s == StatusDelta || s == StatusDeltaPending || s == StatusDeltaComplete
}

// transitions lists the allowed status changes.
var transitions = map[ChangeGroupStatus][]ChangeGroupStatus{
	StatusDelta:                        {StatusDeltaPending, StatusObsolete},
	StatusDeltaPending:                 {StatusDeltaComplete, StatusObsolete},
	StatusDeltaComplete:                {StatusDeltaPending},
	StatusAnalysisMigrationInstruction: {StatusPendingConflictDetection, StatusObsolete},
	StatusPendingConflictDetection:     {StatusPending, StatusObsolete},
	StatusPending:                      {StatusInProgress, StatusObsolete},
	StatusInProgress:                   {StatusPending, StatusComplete, StatusObsolete},
	StatusComplete:                     {StatusPending, StatusObsolete},
	StatusObsolete:                     {StatusPending},
}

// CanTransition reports whether the pipeline allows moving from s to next.
func (s ChangeGroupStatus) CanTransition(next ChangeGroupStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StatusChange is one conditional status update applied by a store.
type StatusChange struct {
	// GroupID identifies the group.
	GroupID string

	// From is the status the group must currently have.
	From ChangeGroupStatus

	// To is the new status.
	To ChangeGroupStatus
}

// Validate checks that the change is allowed by the pipeline.
func (c StatusChange) Validate() error {
	if !c.From.CanTransition(c.To) {
		return fmt.Errorf("%w: %s -> %s for group %s", ErrInvalidTransition, c.From, c.To, c.GroupID)
	}
	return nil
}

// StatusFilter selects the groups of one source in a session by status.
type StatusFilter struct {
	SessionID string
	SourceID  string
	Statuses  []ChangeGroupStatus
}

// ChangeGroup is the atomic unit of persistence and pipeline progress.
type ChangeGroup struct {
	// ID is the unique identifier (UUID).
	ID string

	// SessionID is the owning session.
	SessionID string

	// SourceID identifies which side of the session produced the group.
	SourceID string

	// Name is a display name, the revision for analysed groups.
	Name string

	// ExecutionOrder orders groups within a source. It is the revision number.
	ExecutionOrder int64

	// Owner is the author of the originating change-set.
	Owner string

	// Comment is the comment of the originating change-set.
	Comment string

	// ChangeTime is when the originating change-set was committed.
	ChangeTime time.Time

	// Status is the pipeline state.
	Status ChangeGroupStatus

	// ContainsBackloggedAction is set while an action is blocked on a conflict.
	ContainsBackloggedAction bool

	// ReflectedChangeGroupID links a migration instruction to its delta.
	ReflectedChangeGroupID string

	// Actions are the translated operations in apply order.
	Actions []MigrationAction

	// CreatedAt is when the group was persisted.
	CreatedAt time.Time

	// UpdatedAt is when the group last changed status.
	UpdatedAt time.Time
}

// NewDeltaGroup creates an open delta group from a change-set.
func NewDeltaGroup(id, sessionID, sourceID string, cs *ChangeSet) *ChangeGroup {
	return &ChangeGroup{
		ID:             id,
		SessionID:      sessionID,
		SourceID:       sourceID,
		Name:           cs.Revision.String(),
		ExecutionOrder: int64(cs.Revision),
		Owner:          cs.Author,
		Comment:        cs.Comment,
		ChangeTime:     cs.Time,
		Status:         StatusDelta,
	}
}

// Revision returns the execution order as a revision.
func (g *ChangeGroup) Revision() Revision {
	return Revision(g.ExecutionOrder)
}

// CreateAction appends an action. It fails once the group has left its open status.
func (g *ChangeGroup) CreateAction(
	kind ActionKind,
	source SourceItem,
	fromPath, path, version, mergeVersionTo string,
	itemType ItemType,
) (*MigrationAction, error) {
	if !g.Status.IsOpen() {
		return nil, fmt.Errorf("%w: group %s is %s", ErrGroupSealed, g.ID, g.Status)
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: action kind %q", ErrInvalidInput, kind)
	}
	g.Actions = append(g.Actions, MigrationAction{
		Order:          len(g.Actions),
		Kind:           kind,
		SourcePath:     fromPath,
		Path:           path,
		Version:        version,
		MergeVersionTo: mergeVersionTo,
		ItemType:       itemType,
		SourceItem:     source.Encode(),
	})
	return &g.Actions[len(g.Actions)-1], nil
}

// ActionsOfKind returns the actions with the given kind, in order.
func (g *ChangeGroup) ActionsOfKind(kind ActionKind) []MigrationAction {
	var out []MigrationAction
	for _, a := range g.Actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// CloneAsInstruction copies the group into an open migration instruction
// for the peer side, linked back to this group.
func (g *ChangeGroup) CloneAsInstruction(id, peerSourceID string) *ChangeGroup {
	actions := make([]MigrationAction, len(g.Actions))
	copy(actions, g.Actions)
	return &ChangeGroup{
		ID:                     id,
		SessionID:              g.SessionID,
		SourceID:               peerSourceID,
		Name:                   g.Name,
		ExecutionOrder:         g.ExecutionOrder,
		Owner:                  g.Owner,
		Comment:                g.Comment,
		ChangeTime:             g.ChangeTime,
		Status:                 StatusAnalysisMigrationInstruction,
		ReflectedChangeGroupID: g.ID,
		Actions:                actions,
	}
}
