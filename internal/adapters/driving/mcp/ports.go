package mcp

import (
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server exposes.
type Ports struct {
	// Pipeline hands out and completes migration instructions.
	Pipeline driving.PipelineService

	// Conflicts lists and resolves backlogged conflicts.
	Conflicts driving.ConflictService

	// Sessions backs the sessions resource. Optional.
	Sessions driving.SessionService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Pipeline == nil {
		return ErrMissingPipelineService
	}
	if p.Conflicts == nil {
		return ErrMissingConflictService
	}
	return nil
}
