package domain

import (
	"fmt"
	"time"
)

// DefaultPageSize is the number of revisions fetched per history page.
const DefaultPageSize = 50

// RepositoryConfig selects and configures a repository connector.
type RepositoryConfig struct {
	// Type identifies the connector (e.g., "git", "github").
	Type string

	// Config contains connector-specific configuration.
	Config map[string]string
}

// Session is a configured source/target pairing.
type Session struct {
	// ID is the unique identifier for the session.
	ID string

	// Name is the human-readable name.
	Name string

	// SourceID names the side this session analyses.
	SourceID string

	// PeerSourceID names the side migration instructions are produced for.
	PeerSourceID string

	// Repository configures the source repository.
	Repository RepositoryConfig

	// MappedPaths are the server paths selected for migration.
	MappedPaths []string

	// CloakedPaths are sub-paths of mapped paths excluded from migration.
	CloakedPaths []string

	// PageSize is the history window size. Zero means DefaultPageSize.
	PageSize int

	// SkipComment excludes change-sets whose comment contains it. Empty disables.
	SkipComment string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// UpdatedAt is when the session was last updated.
	UpdatedAt time.Time
}

// EffectivePageSize returns PageSize or the default when it is not positive.
func (s *Session) EffectivePageSize() int {
	if s.PageSize <= 0 {
		return DefaultPageSize
	}
	return s.PageSize
}

// Validate checks the session configuration.
func (s *Session) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	case s.SourceID == "" || s.PeerSourceID == "":
		return fmt.Errorf("%w: session %s needs source and peer ids", ErrInvalidInput, s.ID)
	case s.SourceID == s.PeerSourceID:
		return fmt.Errorf("%w: session %s source and peer ids must differ", ErrInvalidInput, s.ID)
	case s.Repository.Type == "":
		return fmt.Errorf("%w: session %s has no repository type", ErrInvalidInput, s.ID)
	case len(s.MappedPaths) == 0:
		return fmt.Errorf("%w: session %s maps no paths", ErrInvalidInput, s.ID)
	}
	for _, cloaked := range s.CloakedPaths {
		covered := false
		for _, mapped := range s.MappedPaths {
			if IsSubItem(cloaked, mapped) {
				covered = true
				break
			}
		}
		if !covered {
			return fmt.Errorf("%w: cloaked path %s is outside every mapped path", ErrInvalidInput, cloaked)
		}
	}
	return nil
}
