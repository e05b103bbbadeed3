package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/custodia-labs/vcsbridge/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func watchSessions(t *testing.T) *memstore.SessionStore {
	t.Helper()
	store := memstore.NewSessionStore()
	for _, s := range []domain.Session{
		{ID: "local", Repository: domain.RepositoryConfig{Type: "git", Config: map[string]string{"path": "/repo"}}},
		{ID: "remote", Repository: domain.RepositoryConfig{Type: "github"}},
	} {
		require.NoError(t, store.Save(context.Background(), s))
	}
	return store
}

func TestWatchManager_Targets(t *testing.T) {
	paths := func(cfg domain.RepositoryConfig) ([]string, error) {
		if cfg.Type == "git" {
			return []string{cfg.Config["path"] + "/.git"}, nil
		}
		return nil, nil
	}
	m := NewWatchManager(watchSessions(t), newCountingAnalysis(), paths, 0)

	targets, err := m.targets(context.Background(), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []WatchTarget{
		{SessionID: "local", Paths: []string{"/repo/.git"}},
		{SessionID: "remote"},
	}, targets)

	targets, err = m.targets(context.Background(), []string{"remote"})
	require.NoError(t, err)
	assert.Equal(t, []WatchTarget{{SessionID: "remote"}}, targets)

	_, err = m.targets(context.Background(), []string{"missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWatchManager_PathErrorFallsBackToPolling(t *testing.T) {
	paths := func(domain.RepositoryConfig) ([]string, error) {
		return nil, errors.New("bad path")
	}
	m := NewWatchManager(watchSessions(t), newCountingAnalysis(), paths, 0)

	targets, err := m.targets(context.Background(), []string{"local"})
	require.NoError(t, err)
	assert.Equal(t, []WatchTarget{{SessionID: "local"}}, targets)
}

func TestWatchManager_NoSessions(t *testing.T) {
	m := NewWatchManager(memstore.NewSessionStore(), newCountingAnalysis(), nil, 0)
	err := m.Watch(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWatchManager_WatchReports(t *testing.T) {
	analysis := newCountingAnalysis()
	m := NewWatchManager(watchSessions(t), analysis, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var seen []string
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, []string{"local"}, func(id string, _ *domain.AnalysisReport, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, id)
			assert.NoError(t, err)
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, 0, analysis.count("remote"))
}
