package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

// Pipeline drives the change groups of one session through their statuses.
// Deltas belong to the session's source side; migration instructions to the
// peer side. Every status change is a conditional update in the store, so a
// failed call leaves all groups where they were.
type Pipeline struct {
	groups      driven.ChangeGroupStore
	marks       driven.HighWaterMarkStore
	conversions driven.ConversionHistoryStore
	cache       *GroupCache

	sessionID string
	sourceID  string
	peerID    string

	newID func() string
	now   func() time.Time
}

// NewPipeline creates a Pipeline for session. The cache is shared by the
// caller across pipelines of the same process; nil creates a private one.
func NewPipeline(
	groups driven.ChangeGroupStore,
	marks driven.HighWaterMarkStore,
	conversions driven.ConversionHistoryStore,
	session *domain.Session,
	cache *GroupCache,
) *Pipeline {
	if cache == nil {
		cache = NewGroupCache(DefaultGroupCacheCapacity)
	}
	return &Pipeline{
		groups:      groups,
		marks:       marks,
		conversions: conversions,
		cache:       cache,
		sessionID:   session.ID,
		sourceID:    session.SourceID,
		peerID:      session.PeerSourceID,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

func (p *Pipeline) sourceFilter(statuses ...domain.ChangeGroupStatus) domain.StatusFilter {
	return domain.StatusFilter{SessionID: p.sessionID, SourceID: p.sourceID, Statuses: statuses}
}

func (p *Pipeline) peerFilter(statuses ...domain.ChangeGroupStatus) domain.StatusFilter {
	return domain.StatusFilter{SessionID: p.sessionID, SourceID: p.peerID, Statuses: statuses}
}

// group returns a group by ID, from the cache when possible.
func (p *Pipeline) group(ctx context.Context, id string) (*domain.ChangeGroup, error) {
	if g, ok := p.cache.Get(id); ok {
		return g, nil
	}
	g, err := p.groups.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get change group %s: %w", id, err)
	}
	p.cache.Put(g)
	return g, nil
}

// transition applies changes and drops the affected groups from the cache.
func (p *Pipeline) transition(ctx context.Context, changes ...domain.StatusChange) error {
	err := p.groups.Transition(ctx, changes...)
	for _, c := range changes {
		p.cache.Remove(c.GroupID)
	}
	return err
}

func (p *Pipeline) batch(ctx context.Context, to domain.ChangeGroupStatus, filters ...domain.StatusFilter) (int64, error) {
	n, err := p.groups.BatchUpdateStatus(ctx, to, filters...)
	if n > 0 || err != nil {
		p.cache.Clear()
	}
	return n, err
}

// SaveDelta persists a freshly analysed delta group.
func (p *Pipeline) SaveDelta(ctx context.Context, group *domain.ChangeGroup) error {
	if group.Status != domain.StatusDelta {
		return fmt.Errorf("%w: new delta %s has status %s", domain.ErrInvalidInput, group.ID, group.Status)
	}
	if group.SessionID != p.sessionID || group.SourceID != p.sourceID {
		return fmt.Errorf("%w: delta %s belongs to %s/%s", domain.ErrInvalidInput, group.ID, group.SessionID, group.SourceID)
	}
	if err := p.groups.Create(ctx, group); err != nil {
		return fmt.Errorf("save delta: %w", err)
	}
	p.cache.Put(group)
	return nil
}

// HasDelta reports whether a live delta exists for revision.
func (p *Pipeline) HasDelta(ctx context.Context, revision domain.Revision) (bool, error) {
	found, err := p.groups.FindByExecutionOrder(ctx, p.sessionID, p.sourceID, int64(revision),
		domain.StatusDelta, domain.StatusDeltaPending, domain.StatusDeltaComplete)
	if err != nil {
		return false, fmt.Errorf("find delta r%d: %w", revision, err)
	}
	return len(found) > 0, nil
}

// PromoteDeltaToPending moves every Delta of the source to DeltaPending.
func (p *Pipeline) PromoteDeltaToPending(ctx context.Context) (int64, error) {
	n, err := p.batch(ctx, domain.StatusDeltaPending, p.sourceFilter(domain.StatusDelta))
	if err != nil {
		return 0, fmt.Errorf("promote deltas: %w", err)
	}
	if n > 0 {
		logger.Debug("Promoted %d deltas to %s", n, domain.StatusDeltaPending)
	}
	return n, nil
}

// GenerateMigrationInstructions creates a peer-side instruction for every
// DeltaPending delta that has no live instruction yet.
func (p *Pipeline) GenerateMigrationInstructions(ctx context.Context) ([]domain.ChangeGroup, error) {
	deltas, err := p.groups.List(ctx, p.sourceFilter(domain.StatusDeltaPending), 0)
	if err != nil {
		return nil, fmt.Errorf("list pending deltas: %w", err)
	}

	var created []domain.ChangeGroup
	for i := range deltas {
		delta := &deltas[i]
		live, err := p.hasLiveInstruction(ctx, delta.ID)
		if err != nil {
			return created, err
		}
		if live {
			continue
		}
		instruction := delta.CloneAsInstruction(p.newID(), p.peerID)
		if err := p.groups.Create(ctx, instruction); err != nil {
			return created, fmt.Errorf("create instruction for %s: %w", delta.ID, err)
		}
		p.cache.Put(instruction)
		created = append(created, *instruction)
	}
	if len(created) > 0 {
		logger.Info("Generated %d migration instructions", len(created))
	}
	return created, nil
}

func (p *Pipeline) hasLiveInstruction(ctx context.Context, deltaID string) (bool, error) {
	reflecting, err := p.groups.FindReflecting(ctx, deltaID)
	if err != nil {
		return false, fmt.Errorf("find instructions of %s: %w", deltaID, err)
	}
	for _, g := range reflecting {
		if g.Status != domain.StatusObsolete {
			return true, nil
		}
	}
	return false, nil
}

// BeginConflictDetection moves new instructions to PendingConflictDetection.
func (p *Pipeline) BeginConflictDetection(ctx context.Context) (int64, error) {
	n, err := p.batch(ctx, domain.StatusPendingConflictDetection, p.peerFilter(domain.StatusAnalysisMigrationInstruction))
	if err != nil {
		return 0, fmt.Errorf("begin conflict detection: %w", err)
	}
	return n, nil
}

// InstructionsAwaitingDetection lists the instructions in PendingConflictDetection.
func (p *Pipeline) InstructionsAwaitingDetection(ctx context.Context) ([]domain.ChangeGroup, error) {
	return p.groups.List(ctx, p.peerFilter(domain.StatusPendingConflictDetection), 0)
}

// BacklogInstruction flags an instruction as blocked on a conflict.
func (p *Pipeline) BacklogInstruction(ctx context.Context, id string) error {
	p.cache.Remove(id)
	if err := p.groups.SetBacklogged(ctx, id, true); err != nil {
		return fmt.Errorf("backlog %s: %w", id, err)
	}
	return nil
}

// ClearBacklog removes the conflict flag from an instruction.
func (p *Pipeline) ClearBacklog(ctx context.Context, id string) error {
	p.cache.Remove(id)
	if err := p.groups.SetBacklogged(ctx, id, false); err != nil {
		return fmt.Errorf("clear backlog %s: %w", id, err)
	}
	return nil
}

// BatchMarkMigrationInstructionsAsPending moves instructions that passed
// conflict detection to Pending. Backlogged instructions stay behind.
func (p *Pipeline) BatchMarkMigrationInstructionsAsPending(ctx context.Context) (int64, error) {
	waiting, err := p.InstructionsAwaitingDetection(ctx)
	if err != nil {
		return 0, fmt.Errorf("list instructions: %w", err)
	}
	var changes []domain.StatusChange
	for _, g := range waiting {
		if g.ContainsBackloggedAction {
			continue
		}
		changes = append(changes, domain.StatusChange{
			GroupID: g.ID, From: domain.StatusPendingConflictDetection, To: domain.StatusPending,
		})
	}
	if len(changes) == 0 {
		return 0, nil
	}
	if err := p.transition(ctx, changes...); err != nil {
		return 0, fmt.Errorf("mark instructions pending: %w", err)
	}
	return int64(len(changes)), nil
}

// CheckoutInstructions claims up to limit pending instructions in execution
// order and moves them to InProgress. A limit <= 0 claims all.
func (p *Pipeline) CheckoutInstructions(ctx context.Context, limit int) ([]domain.ChangeGroup, error) {
	pending, err := p.groups.List(ctx, p.peerFilter(domain.StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending instructions: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}
	changes := make([]domain.StatusChange, len(pending))
	for i := range pending {
		changes[i] = domain.StatusChange{GroupID: pending[i].ID, From: domain.StatusPending, To: domain.StatusInProgress}
		pending[i].Status = domain.StatusInProgress
	}
	if err := p.transition(ctx, changes...); err != nil {
		return nil, fmt.Errorf("checkout instructions: %w", err)
	}
	return pending, nil
}

// BatchMarkDeltaTableEntriesAsDeltaCompleted moves deltas from DeltaPending to DeltaComplete.
func (p *Pipeline) BatchMarkDeltaTableEntriesAsDeltaCompleted(ctx context.Context, deltaIDs ...string) error {
	changes := make([]domain.StatusChange, len(deltaIDs))
	for i, id := range deltaIDs {
		changes[i] = domain.StatusChange{GroupID: id, From: domain.StatusDeltaPending, To: domain.StatusDeltaComplete}
	}
	if err := p.transition(ctx, changes...); err != nil {
		return fmt.Errorf("complete deltas: %w", err)
	}
	return nil
}

// instructionAndDelta loads a peer-side instruction and its delta.
func (p *Pipeline) instructionAndDelta(ctx context.Context, id string) (*domain.ChangeGroup, *domain.ChangeGroup, error) {
	instruction, err := p.group(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if instruction.SessionID != p.sessionID || instruction.SourceID != p.peerID {
		return nil, nil, fmt.Errorf("%w: %s is not a migration instruction of session %s",
			domain.ErrInvalidInput, id, p.sessionID)
	}
	if instruction.ReflectedChangeGroupID == "" {
		return nil, nil, domain.NewInternalError("pipeline", "instruction %s has no delta link", id)
	}
	delta, err := p.group(ctx, instruction.ReflectedChangeGroupID)
	if err != nil {
		return nil, nil, err
	}
	return instruction, delta, nil
}

// CompleteInstruction records that the consumer applied an in-progress
// instruction as targetRevision on the peer. The instruction and its delta
// complete together, then conversion history and LastMigratedRevision follow.
// Calling it again for a complete instruction rewrites the record and the
// mark, so a failed record write can be retried.
func (p *Pipeline) CompleteInstruction(ctx context.Context, id string, targetRevision domain.Revision) error {
	instruction, delta, err := p.instructionAndDelta(ctx, id)
	if err != nil {
		return err
	}

	if instruction.Status == domain.StatusComplete {
		logger.Debug("Instruction %s already complete, recording conversion again", id)
	} else {
		changes := []domain.StatusChange{{GroupID: instruction.ID, From: domain.StatusInProgress, To: domain.StatusComplete}}
		if delta.Status == domain.StatusDeltaPending {
			changes = append(changes, domain.StatusChange{
				GroupID: delta.ID, From: domain.StatusDeltaPending, To: domain.StatusDeltaComplete,
			})
		}
		if err := p.transition(ctx, changes...); err != nil {
			return fmt.Errorf("complete instruction %s: %w", id, err)
		}
	}

	if err := p.conversions.Record(ctx, domain.ConversionRecord{
		SessionID:      p.sessionID,
		SourceID:       p.sourceID,
		SourceRevision: delta.Revision(),
		TargetSourceID: p.peerID,
		TargetRevision: targetRevision,
		RecordedAt:     p.now(),
	}); err != nil {
		return fmt.Errorf("record conversion: %w", err)
	}
	return p.advanceMark(ctx, domain.HWMLastMigratedRevision, delta.Revision())
}

// advanceMark moves a mark forward. Lower values are ignored, since
// instructions may be completed out of order.
func (p *Pipeline) advanceMark(ctx context.Context, name string, value domain.Revision) error {
	session := &domain.Session{ID: p.sessionID, SourceID: p.sourceID}
	current, err := readMark(ctx, p.marks, session, name)
	if err != nil {
		return err
	}
	if value <= current {
		return nil
	}
	return saveMark(ctx, p.marks, session, name, value, p.now())
}

// LastMigrated returns the LastMigratedRevision mark.
func (p *Pipeline) LastMigrated(ctx context.Context) (domain.Revision, error) {
	return readMark(ctx, p.marks, &domain.Session{ID: p.sessionID, SourceID: p.sourceID}, domain.HWMLastMigratedRevision)
}

// DemoteInProgressActionsToPending returns instructions claimed by a consumer
// that did not finish to Pending. It runs before analysis resumes.
func (p *Pipeline) DemoteInProgressActionsToPending(ctx context.Context) (int64, error) {
	n, err := p.batch(ctx, domain.StatusPending, p.peerFilter(domain.StatusInProgress))
	if err != nil {
		return 0, fmt.Errorf("demote in-progress instructions: %w", err)
	}
	if n > 0 {
		logger.Info("Demoted %d in-progress instructions to %s", n, domain.StatusPending)
	}
	return n, nil
}

// RemoveInProgressChangeGroups obsoletes the speculative work of a session:
// deltas not yet completed and instructions not yet applied.
func (p *Pipeline) RemoveInProgressChangeGroups(ctx context.Context) (int64, error) {
	n, err := p.batch(ctx, domain.StatusObsolete,
		p.sourceFilter(domain.StatusDelta, domain.StatusDeltaPending),
		p.peerFilter(domain.StatusInProgress, domain.StatusPending,
			domain.StatusPendingConflictDetection, domain.StatusAnalysisMigrationInstruction),
	)
	if err != nil {
		return 0, fmt.Errorf("remove in-progress change groups: %w", err)
	}
	return n, nil
}

// DiscardMigrationInstructionAndReactivateDelta obsoletes an instruction and
// returns its delta to DeltaPending so it can be processed again.
func (p *Pipeline) DiscardMigrationInstructionAndReactivateDelta(ctx context.Context, id string) error {
	instruction, delta, err := p.instructionAndDelta(ctx, id)
	if err != nil {
		return err
	}
	changes := []domain.StatusChange{{GroupID: instruction.ID, From: instruction.Status, To: domain.StatusObsolete}}
	if delta.Status == domain.StatusDeltaComplete {
		changes = append(changes, domain.StatusChange{
			GroupID: delta.ID, From: domain.StatusDeltaComplete, To: domain.StatusDeltaPending,
		})
	}
	if err := p.transition(ctx, changes...); err != nil {
		return fmt.Errorf("discard instruction %s: %w", id, err)
	}
	return nil
}

// ReactivateMigrationInstruction returns an instruction to Pending and marks
// its delta complete. Queued instructions generated for the same delta in the
// meantime become obsolete in the same update; one that a consumer already
// claimed or applied makes the call fail.
func (p *Pipeline) ReactivateMigrationInstruction(ctx context.Context, id string) error {
	instruction, delta, err := p.instructionAndDelta(ctx, id)
	if err != nil {
		return err
	}
	changes := []domain.StatusChange{{GroupID: instruction.ID, From: instruction.Status, To: domain.StatusPending}}

	reflecting, err := p.groups.FindReflecting(ctx, delta.ID)
	if err != nil {
		return fmt.Errorf("find instructions of %s: %w", delta.ID, err)
	}
	for _, other := range reflecting {
		if other.ID == instruction.ID {
			continue
		}
		switch other.Status {
		case domain.StatusObsolete:
		case domain.StatusInProgress, domain.StatusComplete:
			return fmt.Errorf("%w: delta %s already has instruction %s in status %s",
				domain.ErrInvalidInput, delta.ID, other.ID, other.Status)
		default:
			changes = append(changes, domain.StatusChange{GroupID: other.ID, From: other.Status, To: domain.StatusObsolete})
		}
	}
	if delta.Status == domain.StatusDeltaPending {
		changes = append(changes, domain.StatusChange{
			GroupID: delta.ID, From: domain.StatusDeltaPending, To: domain.StatusDeltaComplete,
		})
	}
	if err := p.transition(ctx, changes...); err != nil {
		return fmt.Errorf("reactivate instruction %s: %w", id, err)
	}
	return nil
}
