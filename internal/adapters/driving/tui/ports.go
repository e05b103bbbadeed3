// Package tui provides an interactive dashboard for vcsbridge sessions.
// It is a driving adapter built on Bubbletea.
package tui

import (
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the dashboard.
type Ports struct {
	Sessions driving.SessionService
	Analysis driving.AnalysisService
	Pipeline driving.PipelineService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p == nil || p.Sessions == nil:
		return ErrMissingSessionService
	case p.Analysis == nil:
		return ErrMissingAnalysisService
	case p.Pipeline == nil:
		return ErrMissingPipelineService
	}
	return nil
}
