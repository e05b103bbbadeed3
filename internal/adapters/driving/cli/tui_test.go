package cli

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui"
)

type fakeProgram struct {
	model tea.Model
	err   error
}

func (p *fakeProgram) Run() (tea.Model, error) {
	return p.model, p.err
}

func stubProgram(t *testing.T, err error) *fakeProgram {
	t.Helper()
	prog := &fakeProgram{err: err}
	old := newProgram
	newProgram = func(m tea.Model) interface{ Run() (tea.Model, error) } {
		prog.model = m
		return prog
	}
	t.Cleanup(func() { newProgram = old })
	return prog
}

func TestTUICmd_RunsDashboard(t *testing.T) {
	prog := stubProgram(t, nil)
	useServices(t, Services{
		Sessions: newFakeSessions(),
		Analysis: &fakeAnalysis{},
		Pipeline: &fakePipeline{},
	})

	_, err := execute(t, "tui")
	require.NoError(t, err)
	assert.IsType(t, &tui.App{}, prog.model)
}

func TestTUICmd_Errors(t *testing.T) {
	stubProgram(t, errors.New("no tty"))

	useServices(t, Services{Sessions: newFakeSessions()})
	_, err := execute(t, "tui")
	assert.ErrorIs(t, err, tui.ErrMissingAnalysisService)

	useServices(t, Services{Sessions: newFakeSessions(), Analysis: &fakeAnalysis{}, Pipeline: &fakePipeline{}})
	_, err = execute(t, "tui")
	assert.ErrorContains(t, err, "TUI error: no tty")
}
