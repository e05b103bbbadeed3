package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

type countingAnalysis struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingAnalysis() *countingAnalysis {
	return &countingAnalysis{calls: make(map[string]int)}
}

func (a *countingAnalysis) Analyze(_ context.Context, sessionID string) (*domain.AnalysisReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[sessionID]++
	return &domain.AnalysisReport{SessionID: sessionID}, nil
}

func (a *countingAnalysis) Status(_ context.Context, sessionID string) (*domain.SessionStatus, error) {
	return &domain.SessionStatus{SessionID: sessionID}, nil
}

func (a *countingAnalysis) count(sessionID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[sessionID]
}

func runWatcher(t *testing.T, w *Watcher, targets []WatchTarget) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, targets) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return cancel
}

func TestWatcher_RequiresTargets(t *testing.T) {
	w := NewWatcher(newCountingAnalysis(), 0, 0)
	assert.ErrorIs(t, w.Run(context.Background(), nil), domain.ErrInvalidInput)
}

func TestWatcher_Defaults(t *testing.T) {
	w := NewWatcher(newCountingAnalysis(), -1, 0)
	assert.Equal(t, DefaultWatchInterval, w.interval)
	assert.Equal(t, DefaultDebounce, w.debounce)
}

func TestWatcher_PollsAtInterval(t *testing.T) {
	analysis := newCountingAnalysis()
	w := NewWatcher(analysis, 20*time.Millisecond, time.Second)

	var mu sync.Mutex
	var reports []string
	w.OnReport(func(id string, report *domain.AnalysisReport, err error) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, report.SessionID)
		assert.NoError(t, err)
	})

	runWatcher(t, w, []WatchTarget{{SessionID: "a"}, {SessionID: "b"}})

	require.Eventually(t, func() bool {
		return analysis.count("a") >= 3 && analysis.count("b") >= 3
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, reports[:2])
}

func TestWatcher_FileEventsTriggerAnalysis(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()

	analysis := newCountingAnalysis()
	w := NewWatcher(analysis, time.Hour, 20*time.Millisecond)
	runWatcher(t, w, []WatchTarget{
		{SessionID: "watched", Paths: []string{dir}},
		{SessionID: "polled", Paths: []string{filepath.Join(other, "missing")}},
	})

	// Initial run.
	require.Eventually(t, func() bool {
		return analysis.count("watched") == 1 && analysis.count("polled") == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "HEAD"), []byte("ref"), 0o600))

	require.Eventually(t, func() bool {
		return analysis.count("watched") >= 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, analysis.count("polled"))
}

func TestRelevantEvent(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/r/.git/HEAD", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/r/.git/refs/heads/main", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/r/.git/HEAD", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/r/.git/index.lock", Op: fsnotify.Create}, false},
		{fsnotify.Event{Name: "/r/.git/HEAD", Op: fsnotify.Write | fsnotify.Chmod}, true},
	}
	for _, tt := range tests {
		t.Run(tt.event.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, relevantEvent(tt.event))
		})
	}
}

func TestSessionsForPath(t *testing.T) {
	watched := map[string][]string{
		"/r/.git":            {"s1"},
		"/r/.git/refs/heads": {"s1", "s2"},
	}

	assert.Equal(t, []string{"s1"}, sessionsForPath(watched, "/r/.git"))
	assert.Equal(t, []string{"s1"}, sessionsForPath(watched, "/r/.git/HEAD"))
	assert.Equal(t, []string{"s1", "s2"}, sessionsForPath(watched, "/r/.git/refs/heads/main"))
	assert.Equal(t, []string{"s1", "s2"}, sessionsForPath(watched, "/r/.git/refs/heads/"))
	assert.Empty(t, sessionsForPath(watched, "/elsewhere/file"))
}
