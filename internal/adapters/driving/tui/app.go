package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/views/groups"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/views/sessions"
)

// App is the dashboard model following the Elm architecture.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keys   *keymap.KeyMap

	sessionsView *sessions.View
	groupsView   *groups.View
	spinner      spinner.Model

	currentView messages.ViewType
	analyzing   string
	status      string
	statusErr   bool

	width  int
	height int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a dashboard with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	keys := keymap.DefaultKeyMap()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	return &App{
		ports:        ports,
		ctx:          context.Background(),
		styles:       s,
		keys:         keys,
		sessionsView: sessions.NewView(s, keys, ports.Sessions, ports.Analysis),
		groupsView:   groups.NewView(s, keys, ports.Pipeline),
		spinner:      sp,
		currentView:  messages.ViewSessions,
	}, nil
}

// WithContext sets the context analysis runs under.
func (a *App) WithContext(ctx context.Context) *App {
	if ctx != nil {
		a.ctx = ctx
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("vcsbridge"),
		a.sessionsView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.sessionsView.SetDimensions(msg.Width, msg.Height-2)
		a.groupsView.SetDimensions(msg.Width, msg.Height-2)
		return a, nil

	case tea.KeyMsg:
		if key.Matches(msg, a.keys.Quit) {
			return a, tea.Quit
		}
		if a.currentView == messages.ViewGroups && key.Matches(msg, a.keys.Back) {
			a.currentView = messages.ViewSessions
			return a, a.sessionsView.Reload()
		}
		return a, a.forward(msg)

	case messages.SessionSelected:
		a.currentView = messages.ViewGroups
		return a, a.groupsView.SetSession(msg.Session)

	case messages.AnalyzeRequested:
		if a.analyzing != "" {
			a.setStatus(fmt.Sprintf("Analysis of %s is still running", a.analyzing), true)
			return a, nil
		}
		a.analyzing = msg.SessionID
		a.setStatus("", false)
		return a, tea.Batch(a.spinner.Tick, a.analyze(msg.SessionID))

	case messages.AnalysisCompleted:
		a.analyzing = ""
		if msg.Err != nil {
			a.setStatus(fmt.Sprintf("Analysis of %s failed: %v", msg.SessionID, msg.Err), true)
		} else if msg.Report != nil {
			a.setStatus(fmt.Sprintf("%s: %d revisions analysed, %d instructions, last revision %d",
				msg.SessionID, msg.Report.Analyzed, msg.Report.Instructions, msg.Report.LastAnalyzed), false)
		}
		return a, a.sessionsView.Reload()

	case messages.InProgressDemoted:
		if msg.Err == nil {
			a.setStatus(fmt.Sprintf("Demoted %d in-progress instructions", msg.Count), false)
		}
		a.groupsView, cmd = a.groupsView.Update(msg)
		return a, cmd

	case messages.SessionsLoaded:
		a.sessionsView, cmd = a.sessionsView.Update(msg)
		return a, cmd

	case messages.GroupsLoaded:
		a.groupsView, cmd = a.groupsView.Update(msg)
		return a, cmd

	case spinner.TickMsg:
		if a.analyzing == "" {
			return a, nil
		}
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewGroups:
		a.groupsView, cmd = a.groupsView.Update(msg)
	default:
		a.sessionsView, cmd = a.sessionsView.Update(msg)
	}
	return cmd
}

func (a *App) analyze(sessionID string) tea.Cmd {
	ctx := a.ctx
	analysis := a.ports.Analysis
	return func() tea.Msg {
		report, err := analysis.Analyze(ctx, sessionID)
		return messages.AnalysisCompleted{SessionID: sessionID, Report: report, Err: err}
	}
}

func (a *App) setStatus(text string, isErr bool) {
	a.status = text
	a.statusErr = isErr
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder
	switch a.currentView {
	case messages.ViewGroups:
		b.WriteString(a.groupsView.View())
	default:
		b.WriteString(a.sessionsView.View())
	}
	b.WriteString("\n")
	b.WriteString(a.renderStatus())
	return b.String()
}

func (a *App) renderStatus() string {
	switch {
	case a.analyzing != "":
		return a.styles.StatusBar.Render(a.spinner.View() + " Analysing " + a.analyzing + "...")
	case a.status == "":
		return ""
	case a.statusErr:
		return a.styles.StatusBar.Render(a.styles.Error.Render(a.status))
	default:
		return a.styles.StatusBar.Render(a.status)
	}
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Status returns the status line text.
func (a *App) Status() string {
	return a.status
}

// Analyzing returns the session being analysed, if any.
func (a *App) Analyzing() string {
	return a.analyzing
}
