package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

const uriScheme = "vcsbridge://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sessions",
		Name:        "sessions",
		Description: "Configured migration sessions",
		MIMEType:    "application/json",
	}, s.handleSessionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "groups/{groupId}",
		Name:        "change-group",
		Description: "A change group with its actions",
		MIMEType:    "application/json",
	}, s.handleGroupResource)
}

func (s *Server) handleSessionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Sessions == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	sessions, err := s.ports.Sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	type sessionInfo struct {
		ID         string   `json:"id"`
		Name       string   `json:"name,omitempty"`
		Source     string   `json:"source"`
		Peer       string   `json:"peer"`
		Repository string   `json:"repository"`
		Mapped     []string `json:"mapped"`
	}
	infos := make([]sessionInfo, len(sessions))
	for i := range sessions {
		infos[i] = sessionInfo{
			ID:         sessions[i].ID,
			Name:       sessions[i].Name,
			Source:     sessions[i].SourceID,
			Peer:       sessions[i].PeerSourceID,
			Repository: sessions[i].Repository.Type,
			Mapped:     sessions[i].MappedPaths,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling sessions: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func (s *Server) handleGroupResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractGroupID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	group, err := s.ports.Pipeline.GetGroup(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting change group: %w", err)
	}

	info := struct {
		InstructionOutput
		SessionID string `json:"session_id"`
		SourceID  string `json:"source_id"`
		Status    string `json:"status"`
	}{
		InstructionOutput: instructionOutput(group),
		SessionID:         group.SessionID,
		SourceID:          group.SourceID,
		Status:            string(group.Status),
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling change group: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractGroupID extracts the group ID from a URI like vcsbridge://groups/{groupId}.
func extractGroupID(uri string) string {
	const prefix = uriScheme + "groups/"
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
