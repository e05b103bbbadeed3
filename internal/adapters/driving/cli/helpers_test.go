package cli

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
)

// resetCommandState restores flag variables between executions of the
// shared root command.
func resetCommandState() {
	verbose = false
	sessionAddFlags.name = ""
	sessionAddFlags.source = ""
	sessionAddFlags.peer = ""
	sessionAddFlags.repoType = ""
	sessionAddFlags.config = map[string]string{}
	sessionAddFlags.mapped = nil
	sessionAddFlags.cloaked = nil
	sessionAddFlags.pageSize = 0
	sessionAddFlags.skipComment = ""
	groupsSide = "all"
	groupsStatuses = nil
	checkoutLimit = 10
	conflictStatus = ""
	conflictResolution = string(domain.ResolutionUpdatedConflictedChangeAction)
	conflictScope = ""

	var walk func(*cobra.Command)
	walk = func(c *cobra.Command) {
		unset := func(f *pflag.Flag) { f.Changed = false }
		c.Flags().VisitAll(unset)
		c.PersistentFlags().VisitAll(unset)
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommandState()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// useServices installs services for one test.
func useServices(t *testing.T, s Services) {
	t.Helper()
	old := Services{
		Sessions:  sessionService,
		Analysis:  analysisService,
		Pipeline:  pipelineService,
		Conflicts: conflictService,
		Watch:     watchService,
	}
	SetServices(s)
	t.Cleanup(func() { SetServices(old) })
}

type fakeSessions struct {
	sessions map[string]domain.Session
	added    *domain.Session
	err      error
}

func newFakeSessions(sessions ...domain.Session) *fakeSessions {
	f := &fakeSessions{sessions: make(map[string]domain.Session)}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessions) Add(_ context.Context, s domain.Session) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.added = &s
	f.sessions[s.ID] = s
	return &s, nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessions) List(_ context.Context) ([]domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSessions) Remove(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) SupportedTypes() []string {
	return []string{"git", "github", "memory"}
}

type fakeAnalysis struct {
	reports  map[string]*domain.AnalysisReport
	errs     map[string]error
	status   *domain.SessionStatus
	analyzed []string
}

func (f *fakeAnalysis) Analyze(_ context.Context, id string) (*domain.AnalysisReport, error) {
	f.analyzed = append(f.analyzed, id)
	return f.reports[id], f.errs[id]
}

func (f *fakeAnalysis) Status(_ context.Context, id string) (*domain.SessionStatus, error) {
	if f.status == nil || f.status.SessionID != id {
		return nil, domain.ErrNotFound
	}
	return f.status, nil
}

type pipelineCall struct {
	op, session, instruction string
	limit                    int
	revision                 domain.Revision
}

type fakePipeline struct {
	groups   map[string][]domain.ChangeGroup
	calls    []pipelineCall
	err      error
	filtered []domain.ChangeGroupStatus
}

func (f *fakePipeline) record(c pipelineCall) error {
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakePipeline) ListGroups(
	_ context.Context, _ string, sourceID string, statuses ...domain.ChangeGroupStatus,
) ([]domain.ChangeGroup, error) {
	f.filtered = statuses
	return f.groups[sourceID], f.err
}

func (f *fakePipeline) GetGroup(_ context.Context, id string) (*domain.ChangeGroup, error) {
	for _, groups := range f.groups {
		for i := range groups {
			if groups[i].ID == id {
				return &groups[i], nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakePipeline) DemoteInProgress(_ context.Context, sessionID string) (int64, error) {
	return 2, f.record(pipelineCall{op: "demote", session: sessionID})
}

func (f *fakePipeline) RemoveInProgress(_ context.Context, sessionID string) (int64, error) {
	return 3, f.record(pipelineCall{op: "remove", session: sessionID})
}

func (f *fakePipeline) Discard(_ context.Context, sessionID, instructionID string) error {
	return f.record(pipelineCall{op: "discard", session: sessionID, instruction: instructionID})
}

func (f *fakePipeline) Reactivate(_ context.Context, sessionID, instructionID string) error {
	return f.record(pipelineCall{op: "reactivate", session: sessionID, instruction: instructionID})
}

func (f *fakePipeline) Checkout(_ context.Context, sessionID string, limit int) ([]domain.ChangeGroup, error) {
	if err := f.record(pipelineCall{op: "checkout", session: sessionID, limit: limit}); err != nil {
		return nil, err
	}
	return f.groups["peer"], nil
}

func (f *fakePipeline) Complete(_ context.Context, sessionID, instructionID string, rev domain.Revision) error {
	return f.record(pipelineCall{op: "complete", session: sessionID, instruction: instructionID, revision: rev})
}

type fakeConflicts struct {
	conflicts []domain.Conflict
	status    domain.ConflictStatus
	resolved  struct {
		id         string
		resolution domain.ResolutionType
		scope      string
	}
}

func (f *fakeConflicts) List(_ context.Context, _ string, status domain.ConflictStatus) ([]domain.Conflict, error) {
	f.status = status
	return f.conflicts, nil
}

func (f *fakeConflicts) Resolve(
	_ context.Context, id string, resolution domain.ResolutionType, scope string,
) (*domain.ResolutionRule, error) {
	if !resolution.IsValid() {
		return nil, domain.ErrInvalidInput
	}
	f.resolved.id = id
	f.resolved.resolution = resolution
	f.resolved.scope = scope
	if scope == "" {
		scope = "/trunk/lib"
	}
	return &domain.ResolutionRule{ID: "rule-1", Scope: scope, Resolution: resolution}, nil
}

type watchReport struct {
	id     string
	report *domain.AnalysisReport
	err    error
}

type fakeWatch struct {
	ids     []string
	reports []watchReport
	err     error
}

func (f *fakeWatch) Watch(_ context.Context, ids []string, onReport driving.ReportFunc) error {
	f.ids = ids
	for _, r := range f.reports {
		onReport(r.id, r.report, r.err)
	}
	return f.err
}
