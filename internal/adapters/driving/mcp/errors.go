// Package mcp provides an MCP (Model Context Protocol) server adapter for vcsbridge.
// It lets assistants and replay tools claim, apply and resolve migration work.
package mcp

import "errors"

var (
	// ErrMissingPipelineService is returned when the pipeline service is not provided.
	ErrMissingPipelineService = errors.New("mcp: pipeline service is required")

	// ErrMissingConflictService is returned when the conflict service is not provided.
	ErrMissingConflictService = errors.New("mcp: conflict service is required")
)
