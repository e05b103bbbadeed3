package driving

import (
	"context"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// ReportFunc receives the outcome of every analysis run by a watch.
type ReportFunc func(sessionID string, report *domain.AnalysisReport, err error)

// WatchService keeps sessions analysed as their repositories change.
type WatchService interface {
	// Watch analyses the sessions (all sessions when ids is empty) and
	// re-analyses them on repository changes until ctx is cancelled.
	Watch(ctx context.Context, sessionIDs []string, onReport ReportFunc) error
}
