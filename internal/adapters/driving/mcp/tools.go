package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// defaultCheckoutLimit caps a checkout when the caller gives no limit.
const defaultCheckoutLimit = 10

// CheckoutInput is the input schema for the checkout_instructions tool.
type CheckoutInput struct {
	SessionID string `json:"session_id" jsonschema:"the session whose peer instructions to claim"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of instructions to claim (default 10)"`
}

// CheckoutOutput is the output schema for the checkout_instructions tool.
type CheckoutOutput struct {
	Instructions []InstructionOutput `json:"instructions"`
	Count        int                 `json:"count"`
}

// InstructionOutput is one claimed migration instruction.
type InstructionOutput struct {
	ID       string         `json:"id"`
	DeltaID  string         `json:"delta_id"`
	Revision int64          `json:"revision"`
	Owner    string         `json:"owner,omitempty"`
	Comment  string         `json:"comment,omitempty"`
	Actions  []ActionOutput `json:"actions"`
}

// ActionOutput is one action of an instruction, in apply order.
type ActionOutput struct {
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	SourcePath string `json:"source_path,omitempty"`
	Version    string `json:"version,omitempty"`
	ItemType   string `json:"item_type"`
}

// InstructionInput names one instruction of a session.
type InstructionInput struct {
	SessionID     string `json:"session_id" jsonschema:"the owning session"`
	InstructionID string `json:"instruction_id" jsonschema:"the migration instruction"`
}

// CompleteInput is the input schema for the complete_instruction tool.
type CompleteInput struct {
	SessionID      string `json:"session_id" jsonschema:"the owning session"`
	InstructionID  string `json:"instruction_id" jsonschema:"the claimed migration instruction"`
	TargetRevision int64  `json:"target_revision" jsonschema:"the revision the instruction was applied as on the peer"`
}

// StatusOutput reports the status an instruction was moved to.
type StatusOutput struct {
	InstructionID string `json:"instruction_id"`
	Status        string `json:"status"`
}

// ListConflictsInput is the input schema for the list_conflicts tool.
type ListConflictsInput struct {
	SessionID string `json:"session_id" jsonschema:"the session whose conflicts to list"`
	Status    string `json:"status,omitempty" jsonschema:"active or resolved; empty lists all"`
}

// ListConflictsOutput is the output schema for the list_conflicts tool.
type ListConflictsOutput struct {
	Conflicts []ConflictOutput `json:"conflicts"`
	Count     int              `json:"count"`
}

// ConflictOutput is one conflict of the backlog.
type ConflictOutput struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Scope    string `json:"scope"`
	Revision int64  `json:"revision"`
	Status   string `json:"status"`
	Details  string `json:"details,omitempty"`
}

// ResolveConflictInput is the input schema for the resolve_conflict tool.
type ResolveConflictInput struct {
	ConflictID string `json:"conflict_id" jsonschema:"the conflict to resolve"`
	Resolution string `json:"resolution" jsonschema:"updated-conflicted-change-action or manual"`
	Scope      string `json:"scope,omitempty" jsonschema:"path scope of the stored rule; empty uses the conflict scope"`
}

// ResolveConflictOutput describes the rule stored for the resolution.
type ResolveConflictOutput struct {
	RuleID       string `json:"rule_id"`
	ConflictType string `json:"conflict_type"`
	Scope        string `json:"scope"`
	Resolution   string `json:"resolution"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "checkout_instructions",
		Description: "Claim pending migration instructions of a session in execution order",
	}, s.handleCheckout)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "complete_instruction",
		Description: "Record that a claimed instruction was applied to the peer",
	}, s.handleComplete)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "discard_instruction",
		Description: "Discard an instruction and return its delta for regeneration",
	}, s.handleDiscard)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reactivate_instruction",
		Description: "Return a discarded or completed instruction to pending",
	}, s.handleReactivate)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_conflicts",
		Description: "List the conflicts of a session",
	}, s.handleListConflicts)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "resolve_conflict",
		Description: "Resolve a conflict and store a rule for matching conflicts",
	}, s.handleResolveConflict)
}

func (s *Server) handleCheckout(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CheckoutInput,
) (*mcp.CallToolResult, CheckoutOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultCheckoutLimit
	}

	groups, err := s.ports.Pipeline.Checkout(ctx, input.SessionID, limit)
	if err != nil {
		return nil, CheckoutOutput{}, err
	}

	output := CheckoutOutput{
		Instructions: make([]InstructionOutput, len(groups)),
		Count:        len(groups),
	}
	for i := range groups {
		output.Instructions[i] = instructionOutput(&groups[i])
	}
	return nil, output, nil
}

func instructionOutput(g *domain.ChangeGroup) InstructionOutput {
	out := InstructionOutput{
		ID:       g.ID,
		DeltaID:  g.ReflectedChangeGroupID,
		Revision: g.ExecutionOrder,
		Owner:    g.Owner,
		Comment:  g.Comment,
		Actions:  make([]ActionOutput, len(g.Actions)),
	}
	for i, a := range g.Actions {
		out.Actions[i] = ActionOutput{
			Kind:       string(a.Kind),
			Path:       a.Path,
			SourcePath: a.SourcePath,
			Version:    a.Version,
			ItemType:   string(a.ItemType),
		}
	}
	return out
}

func (s *Server) handleComplete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompleteInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if input.TargetRevision <= 0 {
		return nil, StatusOutput{}, fmt.Errorf("%w: target revision %d", domain.ErrInvalidInput, input.TargetRevision)
	}
	err := s.ports.Pipeline.Complete(ctx, input.SessionID, input.InstructionID, domain.Revision(input.TargetRevision))
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{InstructionID: input.InstructionID, Status: string(domain.StatusComplete)}, nil
}

func (s *Server) handleDiscard(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InstructionInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if err := s.ports.Pipeline.Discard(ctx, input.SessionID, input.InstructionID); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{InstructionID: input.InstructionID, Status: string(domain.StatusObsolete)}, nil
}

func (s *Server) handleReactivate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input InstructionInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if err := s.ports.Pipeline.Reactivate(ctx, input.SessionID, input.InstructionID); err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{InstructionID: input.InstructionID, Status: string(domain.StatusPending)}, nil
}

func (s *Server) handleListConflicts(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListConflictsInput,
) (*mcp.CallToolResult, ListConflictsOutput, error) {
	status := domain.ConflictStatus(input.Status)
	if status != "" && status != domain.ConflictActive && status != domain.ConflictResolved {
		return nil, ListConflictsOutput{}, fmt.Errorf("%w: conflict status %q", domain.ErrInvalidInput, input.Status)
	}

	conflicts, err := s.ports.Conflicts.List(ctx, input.SessionID, status)
	if err != nil {
		return nil, ListConflictsOutput{}, err
	}

	output := ListConflictsOutput{
		Conflicts: make([]ConflictOutput, len(conflicts)),
		Count:     len(conflicts),
	}
	for i := range conflicts {
		c := &conflicts[i]
		output.Conflicts[i] = ConflictOutput{
			ID:       c.ID,
			Type:     string(c.Type),
			Scope:    c.Scope,
			Revision: int64(c.Revision),
			Status:   string(c.Status),
			Details:  c.Details,
		}
	}
	return nil, output, nil
}

func (s *Server) handleResolveConflict(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolveConflictInput,
) (*mcp.CallToolResult, ResolveConflictOutput, error) {
	resolution := domain.ResolutionType(input.Resolution)
	if !resolution.IsValid() {
		return nil, ResolveConflictOutput{}, fmt.Errorf("%w: resolution %q", domain.ErrInvalidInput, input.Resolution)
	}

	rule, err := s.ports.Conflicts.Resolve(ctx, input.ConflictID, resolution, input.Scope)
	if err != nil {
		return nil, ResolveConflictOutput{}, err
	}
	return nil, ResolveConflictOutput{
		RuleID:       rule.ID,
		ConflictType: string(rule.ConflictType),
		Scope:        rule.Scope,
		Resolution:   string(rule.Resolution),
	}, nil
}
