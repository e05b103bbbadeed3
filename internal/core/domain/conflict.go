package domain

import "time"

// ConflictType classifies a structural conflict.
type ConflictType string

// Conflict types.
const (
	// ConflictBranchParentNotFound is raised when a branch's copy source is
	// not mapped, or its revision cannot be remapped to a migrated revision.
	ConflictBranchParentNotFound ConflictType = "branch-parent-not-found"
)

// IsValid returns true if the conflict type is recognised.
func (t ConflictType) IsValid() bool {
	return t == ConflictBranchParentNotFound
}

// ResolutionType is the directive returned by conflict escalation.
type ResolutionType string

// Resolution types.
const (
	// ResolutionUpdatedConflictedChangeAction replays the conflicted change
	// as an equivalent add of the destination.
	ResolutionUpdatedConflictedChangeAction ResolutionType = "updated-conflicted-change-action"

	// ResolutionManual leaves the conflict in the backlog.
	ResolutionManual ResolutionType = "manual"
)

// IsValid returns true if the resolution type is recognised.
func (t ResolutionType) IsValid() bool {
	return t == ResolutionUpdatedConflictedChangeAction || t == ResolutionManual
}

// ConflictStatus is the lifecycle state of a persisted conflict.
type ConflictStatus string

// Conflict statuses.
const (
	ConflictActive   ConflictStatus = "active"
	ConflictResolved ConflictStatus = "resolved"
)

// Conflict is a structural problem raised while translating a change.
type Conflict struct {
	// ID is the unique identifier (UUID).
	ID string

	// SessionID is the owning session.
	SessionID string

	// SourceID is the side whose analysis raised the conflict.
	SourceID string

	// Type classifies the conflict.
	Type ConflictType

	// Scope is the server path the conflict is about.
	Scope string

	// Revision is the change-set revision being translated.
	Revision Revision

	// Details is a human-readable description.
	Details string

	// Status is active until resolved.
	Status ConflictStatus

	// Resolution is the applied resolution, if resolved.
	Resolution ResolutionType

	// CreatedAt is when the conflict was first raised.
	CreatedAt time.Time

	// ResolvedAt is when the conflict was resolved.
	ResolvedAt time.Time
}

// ConflictResolutionResult is the answer of conflict escalation.
type ConflictResolutionResult struct {
	Resolved       bool
	ResolutionType ResolutionType

	// ConflictID is the ID the conflict was persisted under.
	ConflictID string
}

// ResolutionRule resolves future conflicts of a type within a path scope automatically.
type ResolutionRule struct {
	// ID is the unique identifier (UUID).
	ID string

	// SessionID is the owning session.
	SessionID string

	// ConflictType is the type the rule applies to.
	ConflictType ConflictType

	// Scope is a server path. Conflicts at or below it match. "/" matches all.
	Scope string

	// Resolution is the directive returned for matching conflicts.
	Resolution ResolutionType

	// CreatedAt is when the rule was created.
	CreatedAt time.Time
}

// Matches reports whether the rule applies to the conflict.
func (r ResolutionRule) Matches(c Conflict) bool {
	return r.ConflictType == c.Type && IsSubItem(c.Scope, r.Scope)
}
