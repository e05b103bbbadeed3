package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// Watcher defaults.
const (
	DefaultWatchInterval = 5 * time.Minute
	DefaultDebounce      = 2 * time.Second
)

// WatchTarget is a session to keep analysed. Paths are local directories
// whose changes signal new history, such as a git directory. Sessions
// without paths are only polled.
type WatchTarget struct {
	SessionID string
	Paths     []string
}

// Watcher re-runs analysis when a watched directory changes and at a fixed
// polling interval. Bursts of file events are debounced into one run.
type Watcher struct {
	analysis driving.AnalysisService
	interval time.Duration
	debounce time.Duration
	onReport driving.ReportFunc
}

// NewWatcher creates a watcher. Non-positive durations use the defaults.
func NewWatcher(analysis driving.AnalysisService, interval, debounce time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{analysis: analysis, interval: interval, debounce: debounce}
}

// OnReport registers a callback for analysis results.
func (w *Watcher) OnReport(fn driving.ReportFunc) {
	w.onReport = fn
}

// Run analyses every target once, then watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, targets []WatchTarget) error {
	if len(targets) == 0 {
		return fmt.Errorf("%w: nothing to watch", domain.ErrInvalidInput)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	watched := make(map[string][]string)
	all := make([]string, 0, len(targets))
	for _, t := range targets {
		all = append(all, t.SessionID)
		for _, p := range t.Paths {
			p = filepath.Clean(p)
			if err := fsw.Add(p); err != nil {
				logger.Warn("Cannot watch %s for session %s: %v", p, t.SessionID, err)
				continue
			}
			watched[p] = append(watched[p], t.SessionID)
		}
	}

	w.analyze(ctx, all)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	debounce := time.NewTimer(w.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			w.analyze(ctx, all)

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			ids := sessionsForPath(watched, event.Name)
			if len(ids) == 0 {
				continue
			}
			logger.Debug("Change detected: %s", event)
			for _, id := range ids {
				pending[id] = true
			}
			debounce.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error: %v", err)

		case <-debounce.C:
			ids := make([]string, 0, len(pending))
			for id := range pending {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			pending = make(map[string]bool)
			w.analyze(ctx, ids)
		}
	}
}

func (w *Watcher) analyze(ctx context.Context, sessionIDs []string) {
	for _, id := range sessionIDs {
		if ctx.Err() != nil {
			return
		}
		report, err := w.analysis.Analyze(ctx, id)
		if err != nil {
			logger.Warn("Analysis of session %s failed: %v", id, err)
		}
		if w.onReport != nil {
			w.onReport(id, report, err)
		}
	}
}

// relevantEvent drops attribute-only changes and lock files.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return !strings.HasSuffix(event.Name, ".lock")
}

// sessionsForPath returns the sessions watching name or its directory.
func sessionsForPath(watched map[string][]string, name string) []string {
	name = filepath.Clean(name)
	if ids, ok := watched[name]; ok {
		return ids
	}
	return watched[filepath.Dir(name)]
}
