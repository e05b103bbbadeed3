package memory

// Store bundles the in-memory stores, mirroring the sqlite Store accessors.
type Store struct {
	changeGroups   *ChangeGroupStore
	highWaterMarks *HighWaterMarkStore
	conflicts      *ConflictStore
	conversions    *ConversionHistoryStore
	sessions       *SessionStore
}

// NewStore creates an empty in-memory Store.
func NewStore() *Store {
	return &Store{
		changeGroups:   NewChangeGroupStore(),
		highWaterMarks: NewHighWaterMarkStore(),
		conflicts:      NewConflictStore(),
		conversions:    NewConversionHistoryStore(),
		sessions:       NewSessionStore(),
	}
}

// ChangeGroupStore returns the change group store.
func (s *Store) ChangeGroupStore() *ChangeGroupStore { return s.changeGroups }

// HighWaterMarkStore returns the high-water mark store.
func (s *Store) HighWaterMarkStore() *HighWaterMarkStore { return s.highWaterMarks }

// ConflictStore returns the conflict store.
func (s *Store) ConflictStore() *ConflictStore { return s.conflicts }

// ConversionHistoryStore returns the conversion history store.
func (s *Store) ConversionHistoryStore() *ConversionHistoryStore { return s.conversions }

// SessionStore returns the session store.
func (s *Store) SessionStore() *SessionStore { return s.sessions }
