package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Ensure ConversionHistoryStore implements the interface.
var _ driven.ConversionHistoryStore = (*ConversionHistoryStore)(nil)

type revisionKey struct {
	scope, source string
	revision      domain.Revision
}

// ConversionHistoryStore is an in-memory implementation of driven.ConversionHistoryStore.
type ConversionHistoryStore struct {
	mu       sync.RWMutex
	bySource map[revisionKey]domain.ConversionRecord
	// byTarget is keyed by origin source, target source and target revision.
	byTarget map[revisionKey]domain.ConversionRecord
}

// NewConversionHistoryStore creates a new in-memory conversion history store.
func NewConversionHistoryStore() *ConversionHistoryStore {
	return &ConversionHistoryStore{
		bySource: make(map[revisionKey]domain.ConversionRecord),
		byTarget: make(map[revisionKey]domain.ConversionRecord),
	}
}

// Record stores a conversion, replacing an earlier one for the same source revision.
func (s *ConversionHistoryStore) Record(_ context.Context, record domain.ConversionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySource[revisionKey{record.SessionID, record.SourceID, record.SourceRevision}] = record
	s.byTarget[revisionKey{record.SourceID, record.TargetSourceID, record.TargetRevision}] = record
	return nil
}

// IsMigratedRevision reports whether revision on sourceID is the target of a
// conversion from originID.
func (s *ConversionHistoryStore) IsMigratedRevision(
	_ context.Context, sourceID, originID string, revision domain.Revision,
) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byTarget[revisionKey{originID, sourceID, revision}]
	return ok, nil
}

// FindBySource returns the conversion of a source revision.
func (s *ConversionHistoryStore) FindBySource(
	_ context.Context, sessionID, sourceID string, revision domain.Revision,
) (*domain.ConversionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.bySource[revisionKey{sessionID, sourceID, revision}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}
