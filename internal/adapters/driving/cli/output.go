package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// printer renders command output. Colours are only emitted when the
// writer is a terminal.
type printer struct {
	w      io.Writer
	header lipgloss.Style
	muted  lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:      w,
		header: r.NewStyle().Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("245")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("42")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		bad:    r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

func (p *printer) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.muted).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.w, t.String())
}

func (p *printer) status(s domain.ChangeGroupStatus) string {
	switch s {
	case domain.StatusComplete, domain.StatusDeltaComplete:
		return p.ok.Render(string(s))
	case domain.StatusInProgress, domain.StatusPendingConflictDetection:
		return p.warn.Render(string(s))
	case domain.StatusObsolete:
		return p.muted.Render(string(s))
	default:
		return string(s)
	}
}

func (p *printer) conflictStatus(s domain.ConflictStatus) string {
	if s == domain.ConflictActive {
		return p.bad.Render(string(s))
	}
	return p.ok.Render(string(s))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func revision(r domain.Revision) string {
	if r == domain.NoRevision {
		return "-"
	}
	return r.String()
}
