package domain

import "time"

// ConversionRecord maps a source revision to the peer revision it was migrated to.
type ConversionRecord struct {
	SessionID      string
	SourceID       string
	SourceRevision Revision
	TargetSourceID string
	TargetRevision Revision
	RecordedAt     time.Time
}
