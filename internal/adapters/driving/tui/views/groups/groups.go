// Package groups provides the change group view of the dashboard.
package groups

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/vcsbridge/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driving"
)

// maxActions is the number of actions previewed for the selected group.
const maxActions = 8

// View lists the change groups of one session on both sides.
type View struct {
	styles   *styles.Styles
	keys     *keymap.KeyMap
	pipeline driving.PipelineService

	session  domain.Session
	items    []domain.ChangeGroup
	selected int
	offset   int
	width    int
	height   int
	loading  bool
	err      error
}

// NewView creates a groups view.
func NewView(s *styles.Styles, keys *keymap.KeyMap, pipeline driving.PipelineService) *View {
	return &View{styles: s, keys: keys, pipeline: pipeline}
}

// SetSession switches the view to a session and returns the load command.
func (v *View) SetSession(s domain.Session) tea.Cmd {
	v.session = s
	v.items = nil
	v.selected = 0
	v.offset = 0
	v.err = nil
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	session := v.session
	return func() tea.Msg {
		if v.pipeline == nil {
			return messages.GroupsLoaded{SessionID: session.ID, Err: errors.New("pipeline service not available")}
		}
		ctx := context.Background()
		var all []domain.ChangeGroup
		for _, side := range []string{session.SourceID, session.PeerSourceID} {
			found, err := v.pipeline.ListGroups(ctx, session.ID, side, domain.AllChangeGroupStatuses()...)
			if err != nil {
				return messages.GroupsLoaded{SessionID: session.ID, Err: err}
			}
			all = append(all, found...)
		}
		sort.SliceStable(all, func(i, j int) bool {
			if all[i].ExecutionOrder != all[j].ExecutionOrder {
				return all[i].ExecutionOrder > all[j].ExecutionOrder
			}
			return all[i].SourceID == session.SourceID && all[j].SourceID != session.SourceID
		})
		return messages.GroupsLoaded{SessionID: session.ID, Groups: all}
	}
}

func (v *View) demote() tea.Cmd {
	id := v.session.ID
	return func() tea.Msg {
		if v.pipeline == nil {
			return messages.InProgressDemoted{SessionID: id, Err: errors.New("pipeline service not available")}
		}
		n, err := v.pipeline.DemoteInProgress(context.Background(), id)
		return messages.InProgressDemoted{SessionID: id, Count: n, Err: err}
	}
}

// Update handles messages for the groups view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.GroupsLoaded:
		if msg.SessionID != v.session.ID {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.items = msg.Groups
			if v.selected >= len(v.items) {
				v.selected = max(len(v.items)-1, 0)
			}
		}
		return v, nil

	case messages.InProgressDemoted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.loading = true
		return v, v.load()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Up):
			if v.selected > 0 {
				v.selected--
			}
		case key.Matches(msg, v.keys.Down):
			if v.selected < len(v.items)-1 {
				v.selected++
			}
		case key.Matches(msg, v.keys.Reload):
			v.loading = true
			return v, v.load()
		case key.Matches(msg, v.keys.Demote):
			return v, v.demote()
		}
	}
	return v, nil
}

// visibleRows is the number of list rows that fit above the action preview.
func (v *View) visibleRows() int {
	rows := v.height - maxActions - 10
	if rows < 5 {
		rows = 5
	}
	return rows
}

// View renders the groups view.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Change groups: " + v.session.ID))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render(v.session.SourceID + " -> " + v.session.PeerSourceID))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading change groups..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.items) == 0:
		b.WriteString(v.styles.Muted.Render("No change groups. Run an analysis first."))
	default:
		b.WriteString(v.renderList())
		b.WriteString("\n")
		b.WriteString(v.renderActions(&v.items[v.selected]))
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render(keymap.HelpLine(v.keys.GroupsHelp())))
	return b.String()
}

func (v *View) renderList() string {
	rows := v.visibleRows()
	if v.selected < v.offset {
		v.offset = v.selected
	}
	if v.selected >= v.offset+rows {
		v.offset = v.selected - rows + 1
	}
	end := min(v.offset+rows, len(v.items))

	var b strings.Builder
	for i := v.offset; i < end; i++ {
		g := &v.items[i]
		side := "delta"
		if g.SourceID != v.session.SourceID {
			side = "instr"
		}
		flag := ""
		if g.ContainsBackloggedAction {
			flag = " (backlog)"
		}
		comment := strings.ReplaceAll(g.Comment, "\n", " ")
		if len(comment) > 40 {
			comment = comment[:37] + "..."
		}
		text := fmt.Sprintf("%-6s %-6s %-28s %3d  %s%s", g.Name, side, g.Status, len(g.Actions), comment, flag)
		if i == v.selected {
			b.WriteString(v.styles.Selected.Render("> " + text))
		} else {
			b.WriteString("  " + v.styles.Status(g.Status).Render(text))
		}
		b.WriteString("\n")
	}
	if len(v.items) > rows {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %d-%d of %d", v.offset+1, end, len(v.items))))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *View) renderActions(g *domain.ChangeGroup) string {
	var b strings.Builder
	b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Revision %s by %s", g.Name, g.Owner)))
	b.WriteString("\n")
	for i, a := range g.Actions {
		if i == maxActions {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  ... %d more", len(g.Actions)-maxActions)))
			b.WriteString("\n")
			break
		}
		line := fmt.Sprintf("  %-8s %s", a.Kind, a.Path)
		if a.SourcePath != "" {
			line = fmt.Sprintf("  %-8s %s <- %s@%s", a.Kind, a.Path, a.SourcePath, a.Version)
		}
		b.WriteString(v.styles.Normal.Render(line))
		b.WriteString("\n")
	}
	return v.styles.Border.Padding(0, 1).Render(strings.TrimRight(b.String(), "\n"))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Session returns the displayed session.
func (v *View) Session() domain.Session {
	return v.session
}

// Groups returns the loaded groups.
func (v *View) Groups() []domain.ChangeGroup {
	return v.items
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
