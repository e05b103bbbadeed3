package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// Ensure WatchManager implements the interface.
var _ driving.WatchService = (*WatchManager)(nil)

// WatchPathsFunc returns the local paths whose changes signal new history
// for a repository. Remote repositories return none.
type WatchPathsFunc func(cfg domain.RepositoryConfig) ([]string, error)

// WatchManager resolves sessions into watch targets and runs a Watcher.
type WatchManager struct {
	sessions driven.SessionStore
	analysis driving.AnalysisService
	paths    WatchPathsFunc
	interval time.Duration
	debounce time.Duration
}

// NewWatchManager creates a watch manager. paths may be nil, in which case
// every session is only polled.
func NewWatchManager(
	sessions driven.SessionStore,
	analysis driving.AnalysisService,
	paths WatchPathsFunc,
	interval time.Duration,
) *WatchManager {
	return &WatchManager{
		sessions: sessions,
		analysis: analysis,
		paths:    paths,
		interval: interval,
	}
}

// Watch resolves the sessions and runs until ctx is cancelled.
func (m *WatchManager) Watch(ctx context.Context, sessionIDs []string, onReport driving.ReportFunc) error {
	targets, err := m.targets(ctx, sessionIDs)
	if err != nil {
		return err
	}

	w := NewWatcher(m.analysis, m.interval, m.debounce)
	w.OnReport(onReport)
	return w.Run(ctx, targets)
}

func (m *WatchManager) targets(ctx context.Context, sessionIDs []string) ([]WatchTarget, error) {
	var sessions []domain.Session
	if len(sessionIDs) == 0 {
		all, err := m.sessions.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		sessions = all
	} else {
		for _, id := range sessionIDs {
			s, err := m.sessions.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get session %s: %w", id, err)
			}
			sessions = append(sessions, *s)
		}
	}

	targets := make([]WatchTarget, 0, len(sessions))
	for _, s := range sessions {
		t := WatchTarget{SessionID: s.ID}
		if m.paths != nil {
			paths, err := m.paths(s.Repository)
			if err != nil {
				logger.Warn("Session %s will be polled only: %v", s.ID, err)
			}
			t.Paths = paths
		}
		targets = append(targets, t)
	}
	return targets, nil
}
