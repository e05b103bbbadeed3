package domain

import "time"

// AnalysisReport summarises one analysis run.
type AnalysisReport struct {
	// SessionID is the analysed session.
	SessionID string

	// Discovered is the number of revisions selected by delta discovery.
	Discovered int

	// Analyzed is the number of change-sets translated.
	Analyzed int

	// GroupsCreated is the number of change groups persisted.
	GroupsCreated int

	// ActionsCreated is the number of migration actions persisted.
	ActionsCreated int

	// Skipped is the number of change-sets skipped (already committed or empty).
	Skipped int

	// Gaps are revisions the repository returned no record for.
	Gaps []Revision

	// Instructions is the number of migration instructions generated.
	Instructions int

	// Backlogged is the number of instructions blocked on active conflicts.
	Backlogged int

	// Demoted is the number of in-progress instructions demoted at startup.
	Demoted int

	// LastAnalyzed is the high-water mark after the run.
	LastAnalyzed Revision

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time
}

// SessionStatus reports the persisted progress of a session.
type SessionStatus struct {
	SessionID    string
	LastAnalyzed Revision
	LastMigrated Revision
	Groups       map[ChangeGroupStatus]int
	Conflicts    int
}
