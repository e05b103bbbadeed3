// Package messages defines Bubbletea message types for the dashboard.
package messages

import (
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// ViewType identifies which view is active.
type ViewType int

const (
	// ViewSessions lists sessions and their progress.
	ViewSessions ViewType = iota
	// ViewGroups lists the change groups of one session.
	ViewGroups
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewSessions:
		return "sessions"
	case ViewGroups:
		return "groups"
	default:
		return "unknown"
	}
}

// SessionsLoaded carries sessions and their status. A session whose status
// could not be read has no entry in Statuses.
type SessionsLoaded struct {
	Sessions []domain.Session
	Statuses map[string]*domain.SessionStatus
	Err      error
}

// SessionSelected opens the groups view for a session.
type SessionSelected struct {
	Session domain.Session
}

// AnalyzeRequested asks the app to analyse a session.
type AnalyzeRequested struct {
	SessionID string
}

// AnalysisCompleted carries the outcome of an analysis run.
type AnalysisCompleted struct {
	SessionID string
	Report    *domain.AnalysisReport
	Err       error
}

// GroupsLoaded carries the change groups of a session.
type GroupsLoaded struct {
	SessionID string
	Groups    []domain.ChangeGroup
	Err       error
}

// InProgressDemoted reports a demotion of in-progress instructions.
type InProgressDemoted struct {
	SessionID string
	Count     int64
	Err       error
}
