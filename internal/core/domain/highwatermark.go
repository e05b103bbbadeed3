package domain

import (
	"fmt"
	"time"
)

// Well-known high-water mark names.
const (
	// HWMLastAnalyzedRevision is the last source revision whose change group was committed.
	HWMLastAnalyzedRevision = "LastAnalyzedRevision"

	// HWMLastMigratedRevision is the last source revision applied to the peer.
	HWMLastMigratedRevision = "LastMigratedRevision"
)

// HighWaterMark is a persisted progress marker for one session, source and purpose.
type HighWaterMark struct {
	// SessionID is the owning session.
	SessionID string

	// SourceID is the side the mark tracks.
	SourceID string

	// Name is the purpose of the mark.
	Name string

	// Value is the last processed revision.
	Value Revision

	// UpdatedAt is when the mark last moved.
	UpdatedAt time.Time
}

// Advance returns a copy moved to value. Moving backwards is rejected.
func (m HighWaterMark) Advance(value Revision, now time.Time) (HighWaterMark, error) {
	if value < m.Value {
		return m, fmt.Errorf("%w: %s from %d to %d", ErrHighWaterMarkRegression, m.Name, m.Value, value)
	}
	m.Value = value
	m.UpdatedAt = now
	return m, nil
}
