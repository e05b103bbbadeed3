package driving

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// AnalysisService runs change analysis for sessions.
type AnalysisService interface {
	// Analyze discovers new revisions, translates them into change groups and
	// promotes them through the pipeline. Progress made before an error is kept.
	Analyze(ctx context.Context, sessionID string) (*domain.AnalysisReport, error)

	// Status returns the persisted progress of a session.
	Status(ctx context.Context, sessionID string) (*domain.SessionStatus, error)
}
