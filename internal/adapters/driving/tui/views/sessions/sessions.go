// Package sessions provides the sessions view of the dashboard.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
)

// View lists sessions with their analysis progress.
type View struct {
	styles   *styles.Styles
	keys     *keymap.KeyMap
	sessions driving.SessionService
	analysis driving.AnalysisService

	items    []domain.Session
	statuses map[string]*domain.SessionStatus
	selected int
	width    int
	height   int
	loading  bool
	err      error
}

// NewView creates a sessions view.
func NewView(s *styles.Styles, keys *keymap.KeyMap, sessions driving.SessionService, analysis driving.AnalysisService) *View {
	return &View{
		styles:   s,
		keys:     keys,
		sessions: sessions,
		analysis: analysis,
		statuses: make(map[string]*domain.SessionStatus),
	}
}

// Init loads the sessions.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

// load returns a command that lists sessions and reads their status.
func (v *View) load() tea.Cmd {
	return func() tea.Msg {
		if v.sessions == nil {
			return messages.SessionsLoaded{Err: errors.New("session service not available")}
		}
		ctx := context.Background()
		items, err := v.sessions.List(ctx)
		if err != nil {
			return messages.SessionsLoaded{Err: err}
		}
		statuses := make(map[string]*domain.SessionStatus, len(items))
		if v.analysis != nil {
			for _, s := range items {
				if st, err := v.analysis.Status(ctx, s.ID); err == nil {
					statuses[s.ID] = st
				}
			}
		}
		return messages.SessionsLoaded{Sessions: items, Statuses: statuses}
	}
}

// Update handles messages for the sessions view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.SessionsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.items = msg.Sessions
			v.statuses = msg.Statuses
			if v.selected >= len(v.items) {
				v.selected = max(len(v.items)-1, 0)
			}
		}
		return v, nil

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Up):
		if v.selected > 0 {
			v.selected--
		}
	case key.Matches(msg, v.keys.Down):
		if v.selected < len(v.items)-1 {
			v.selected++
		}
	case key.Matches(msg, v.keys.Select):
		if s, ok := v.Selected(); ok {
			return v, func() tea.Msg { return messages.SessionSelected{Session: s} }
		}
	case key.Matches(msg, v.keys.Analyze):
		if s, ok := v.Selected(); ok {
			return v, func() tea.Msg { return messages.AnalyzeRequested{SessionID: s.ID} }
		}
	case key.Matches(msg, v.keys.Reload):
		v.loading = true
		return v, v.load()
	}
	return v, nil
}

// Reload returns a command that reloads the sessions.
func (v *View) Reload() tea.Cmd {
	return v.load()
}

// View renders the sessions view.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Sessions"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading sessions..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.items) == 0:
		b.WriteString(v.styles.Muted.Render("No sessions configured. Add one with 'vcsbridge session add'."))
	default:
		for i := range v.items {
			b.WriteString(v.renderSession(i, &v.items[i]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render(keymap.HelpLine(v.keys.SessionsHelp())))
	return b.String()
}

func (v *View) renderSession(index int, s *domain.Session) string {
	progress := "not analysed"
	if st, ok := v.statuses[s.ID]; ok && st != nil {
		pending := st.Groups[domain.StatusPending] + st.Groups[domain.StatusInProgress]
		progress = fmt.Sprintf("rev %d  pending %d", st.LastAnalyzed, pending)
		if st.Conflicts > 0 {
			progress += fmt.Sprintf("  conflicts %d", st.Conflicts)
		}
	}
	typ := fmt.Sprintf("[%s]", s.Repository.Type)

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("> %-9s %-20s %s", typ, s.ID, progress))
	}
	return "  " + v.styles.Subtitle.Render(fmt.Sprintf("%-9s ", typ)) +
		v.styles.Normal.Render(fmt.Sprintf("%-20s ", s.ID)) +
		v.styles.Muted.Render(progress)
}

// Selected returns the highlighted session.
func (v *View) Selected() (domain.Session, bool) {
	if v.selected < 0 || v.selected >= len(v.items) {
		return domain.Session{}, false
	}
	return v.items[v.selected], true
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}
