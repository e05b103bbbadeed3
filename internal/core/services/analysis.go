package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// Ensure AnalysisEngine implements the interface.
var _ driving.AnalysisService = (*AnalysisEngine)(nil)

// AnalysisEngine runs analysis for sessions: discovery, translation of every
// new change-set into a delta group, and promotion through the pipeline.
type AnalysisEngine struct {
	sessions    driven.SessionStore
	factory     driven.RepositoryFactory
	groups      driven.ChangeGroupStore
	marks       driven.HighWaterMarkStore
	conversions driven.ConversionHistoryStore
	conflicts   *ConflictManager
	cache       *GroupCache

	newID func() string
	now   func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// NewAnalysisEngine creates an analysis engine.
func NewAnalysisEngine(
	sessions driven.SessionStore,
	factory driven.RepositoryFactory,
	groups driven.ChangeGroupStore,
	marks driven.HighWaterMarkStore,
	conversions driven.ConversionHistoryStore,
	conflicts *ConflictManager,
) *AnalysisEngine {
	return &AnalysisEngine{
		sessions:    sessions,
		factory:     factory,
		groups:      groups,
		marks:       marks,
		conversions: conversions,
		conflicts:   conflicts,
		cache:       NewGroupCache(DefaultGroupCacheCapacity),
		newID:       uuid.NewString,
		now:         time.Now,
		running:     make(map[string]bool),
	}
}

// WithCache replaces the change group cache, so pipelines of other services
// in the same process see the statuses analysis writes.
func (e *AnalysisEngine) WithCache(cache *GroupCache) *AnalysisEngine {
	if cache != nil {
		e.cache = cache
	}
	return e
}

// analysisRun holds the state of one Analyze call.
type analysisRun struct {
	session    *domain.Session
	repo       driven.Repository
	mapping    *PathMapping
	pipeline   *Pipeline
	translator *Translator
	report     *domain.AnalysisReport
}

func (e *AnalysisEngine) acquire(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[sessionID] {
		return false
	}
	e.running[sessionID] = true
	return true
}

func (e *AnalysisEngine) release(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, sessionID)
}

// Analyze runs one analysis pass for a session. On error the report holds
// the progress committed before it; an unresolved conflict is returned as
// *domain.UnresolvedConflictError.
func (e *AnalysisEngine) Analyze(ctx context.Context, sessionID string) (*domain.AnalysisReport, error) {
	if !e.acquire(sessionID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAnalysisInProgress, sessionID)
	}
	defer e.release(sessionID)

	// 1. Load session and open the repository
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if e.factory == nil {
		return nil, errors.New("create repository: repository factory not configured")
	}
	repo, err := e.factory.Create(ctx, *session)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()

	run := &analysisRun{
		session:  session,
		repo:     repo,
		mapping:  NewPathMapping(session),
		pipeline: NewPipeline(e.groups, e.marks, e.conversions, session, e.cache),
		report:   &domain.AnalysisReport{SessionID: sessionID, StartedAt: e.now()},
	}
	defer func() { run.report.FinishedAt = e.now() }()

	logger.Section("Analysing session " + session.Name)

	// 2. Crash recovery
	demoted, err := run.pipeline.DemoteInProgressActionsToPending(ctx)
	if err != nil {
		return run.report, err
	}
	run.report.Demoted = int(demoted)

	// 3. Discovery
	discovery, err := NewDeltaDiscovery(e.marks, e.conversions).Discover(ctx, session, repo, run.mapping)
	if err != nil {
		return run.report, fmt.Errorf("discover deltas: %w", err)
	}
	run.report.Discovered = len(discovery.Revisions)
	run.report.Skipped = discovery.SkippedComment + discovery.SkippedMigrated

	// 4. Translate page by page
	if len(discovery.Revisions) > 0 {
		run.translator = NewTranslator(repo, run.mapping, e.conflicts, session, discovery.Revisions)
		if err := e.analyzeHistory(ctx, run, discovery.Revisions); err != nil {
			e.finishReport(ctx, run)
			return run.report, err
		}
	}

	// 5. Promote and generate instructions
	if err := e.finalize(ctx, run); err != nil {
		e.finishReport(ctx, run)
		return run.report, err
	}
	e.finishReport(ctx, run)

	logger.Info("Analysis complete: %d change-sets, %d groups, %d actions, %d instructions",
		run.report.Analyzed, run.report.GroupsCreated, run.report.ActionsCreated, run.report.Instructions)
	return run.report, nil
}

func (e *AnalysisEngine) finishReport(ctx context.Context, run *analysisRun) {
	last, err := readMark(ctx, e.marks, run.session, domain.HWMLastAnalyzedRevision)
	if err != nil {
		logger.Warn("Failed to read high-water mark: %v", err)
		return
	}
	run.report.LastAnalyzed = last
}

func (e *AnalysisEngine) analyzeHistory(ctx context.Context, run *analysisRun, revisions []domain.Revision) error {
	pager := NewHistoryPager(run.repo, run.mapping.CommonRoot(), revisions, run.mapping.ChangesetCacheSize())
	for !pager.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}

		rev := pager.CurrentRevision()
		cs, err := pager.Current(ctx)
		if err != nil {
			return err
		}
		if cs == nil {
			logger.Warn("No history record for r%d, skipping", rev)
			run.report.Gaps = append(run.report.Gaps, rev)
		} else if err := e.analyzeChangeSet(ctx, run, cs); err != nil {
			return err
		}

		if pager.AtPageEnd() {
			if _, err := run.pipeline.PromoteDeltaToPending(ctx); err != nil {
				return err
			}
		}
		pager.MoveNext()
	}
	return nil
}

// analyzeChangeSet translates one change-set into a delta group and commits
// it together with the high-water mark.
func (e *AnalysisEngine) analyzeChangeSet(ctx context.Context, run *analysisRun, cs *domain.ChangeSet) error {
	exists, err := run.pipeline.HasDelta(ctx, cs.Revision)
	if err != nil {
		return err
	}
	if exists {
		logger.Debug("r%d already analysed", cs.Revision)
		run.report.Skipped++
		return e.commitRevision(ctx, run, cs.Revision)
	}

	group := domain.NewDeltaGroup(e.newID(), run.session.ID, run.session.SourceID, cs)
	tl := run.translator.Begin(cs, group)
	for i := range cs.Changes {
		if err := tl.Execute(ctx, &cs.Changes[i]); err != nil {
			return e.translationFailed(cs, err)
		}
	}
	if err := tl.Finish(ctx); err != nil {
		return e.translationFailed(cs, err)
	}
	run.report.Analyzed++

	if len(group.Actions) == 0 {
		logger.Debug("r%d has no mapped changes", cs.Revision)
		run.report.Skipped++
		return e.commitRevision(ctx, run, cs.Revision)
	}

	if err := run.pipeline.SaveDelta(ctx, group); err != nil {
		return err
	}
	run.report.GroupsCreated++
	run.report.ActionsCreated += len(group.Actions)
	logger.Debug("r%d: %d actions", cs.Revision, len(group.Actions))
	return e.commitRevision(ctx, run, cs.Revision)
}

func (e *AnalysisEngine) translationFailed(cs *domain.ChangeSet, err error) error {
	if uc, ok := domain.IsUnresolvedConflict(err); ok {
		logger.Error("Analysis stopped at r%d: %v", cs.Revision, uc)
		return err
	}
	return fmt.Errorf("translate r%d: %w", cs.Revision, err)
}

func (e *AnalysisEngine) commitRevision(ctx context.Context, run *analysisRun, rev domain.Revision) error {
	err := saveMark(ctx, e.marks, run.session, domain.HWMLastAnalyzedRevision, rev, e.now())
	if errors.Is(err, domain.ErrHighWaterMarkRegression) {
		return nil
	}
	return err
}

// finalize promotes the remaining deltas, generates migration instructions
// and runs conflict detection over them.
func (e *AnalysisEngine) finalize(ctx context.Context, run *analysisRun) error {
	if _, err := run.pipeline.PromoteDeltaToPending(ctx); err != nil {
		return err
	}
	created, err := run.pipeline.GenerateMigrationInstructions(ctx)
	if err != nil {
		return err
	}
	run.report.Instructions = len(created)

	if _, err := run.pipeline.BeginConflictDetection(ctx); err != nil {
		return err
	}
	backlogged, err := e.detectConflicts(ctx, run)
	if err != nil {
		return err
	}
	run.report.Backlogged = backlogged

	_, err = run.pipeline.BatchMarkMigrationInstructionsAsPending(ctx)
	return err
}

// detectConflicts backlogs instructions that touch a path with an active
// conflict and releases those whose conflicts were resolved.
func (e *AnalysisEngine) detectConflicts(ctx context.Context, run *analysisRun) (int, error) {
	scopes, err := e.conflicts.ActiveScopes(ctx, run.session.ID)
	if err != nil {
		return 0, fmt.Errorf("list active conflicts: %w", err)
	}
	waiting, err := run.pipeline.InstructionsAwaitingDetection(ctx)
	if err != nil {
		return 0, err
	}

	backlogged := 0
	for i := range waiting {
		g := &waiting[i]
		blocked := touchesAny(g, scopes)
		switch {
		case blocked:
			backlogged++
			if !g.ContainsBackloggedAction {
				if err := run.pipeline.BacklogInstruction(ctx, g.ID); err != nil {
					return backlogged, err
				}
			}
		case g.ContainsBackloggedAction:
			if err := run.pipeline.ClearBacklog(ctx, g.ID); err != nil {
				return backlogged, err
			}
		}
	}
	if backlogged > 0 {
		logger.Warn("%d instructions wait on active conflicts", backlogged)
	}
	return backlogged, nil
}

// touchesAny reports whether an action of g lies at or below one of scopes.
func touchesAny(g *domain.ChangeGroup, scopes []string) bool {
	for _, scope := range scopes {
		for _, a := range g.Actions {
			if domain.IsSubItem(a.Path, scope) || (a.SourcePath != "" && domain.IsSubItem(a.SourcePath, scope)) {
				return true
			}
		}
	}
	return false
}

// Status returns the persisted progress of a session.
func (e *AnalysisEngine) Status(ctx context.Context, sessionID string) (*domain.SessionStatus, error) {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	status := &domain.SessionStatus{SessionID: sessionID, Groups: make(map[domain.ChangeGroupStatus]int)}
	if status.LastAnalyzed, err = readMark(ctx, e.marks, session, domain.HWMLastAnalyzedRevision); err != nil {
		return nil, err
	}
	if status.LastMigrated, err = readMark(ctx, e.marks, session, domain.HWMLastMigratedRevision); err != nil {
		return nil, err
	}

	for _, side := range []string{session.SourceID, session.PeerSourceID} {
		counts, err := e.groups.CountByStatus(ctx, sessionID, side)
		if err != nil {
			return nil, fmt.Errorf("count groups: %w", err)
		}
		for s, n := range counts {
			status.Groups[s] += n
		}
	}

	active, err := e.conflicts.List(ctx, sessionID, domain.ConflictActive)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	status.Conflicts = len(active)
	return status, nil
}
