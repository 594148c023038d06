// Package tui renders jobs for the terminal: a plain listing for the
// reelgen subcommands and a live watch view.
package tui

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelgen/internal/domain"
)

const promptWidth = 48

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var titleCaser = cases.Title(language.English)

// StatusLabel turns a persisted status spelling into display text, e.g.
// "InProgress" becomes "In Progress".
func StatusLabel(s domain.Status) string {
	raw := string(s)
	if raw == "" {
		return "Unknown"
	}
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return titleCaser.String(b.String())
}

func statusStyle(s domain.Status) lipgloss.Style {
	switch s {
	case domain.StatusCompleted:
		return okStyle
	case domain.StatusFailed:
		return errorStyle
	case domain.StatusInProgress:
		return runningStyle
	default:
		return pendingStyle
	}
}

// StyledStatus is StatusLabel padded to a fixed width and coloured.
func StyledStatus(s domain.Status) string {
	return statusStyle(s).Render(fmt.Sprintf("%-11s", StatusLabel(s)))
}

// JobLine renders one job as a single line.
func JobLine(job *domain.Job) string {
	cfg := job.Config
	line := fmt.Sprintf("%s  %s  %2ds %2dfps %-9s  %s",
		job.Key(),
		StyledStatus(job.Status),
		cfg.Duration,
		cfg.FPS,
		cfg.Resolution,
		truncate(job.Prompt, promptWidth),
	)
	switch {
	case job.Status == domain.StatusCompleted && job.OutputPath != "":
		line += "  " + mutedStyle.Render("-> "+job.OutputPath)
	case job.Status == domain.StatusFailed && job.ErrorMessage != "":
		line += "  " + errorStyle.Render(job.ErrorMessage)
	}
	return line
}

// RenderJobs writes the recent jobs followed by the archive, if any.
func RenderJobs(w io.Writer, recent, archive []*domain.Job) error {
	if len(recent) == 0 && len(archive) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render("no jobs yet"))
		return err
	}
	if err := renderSection(w, "Recent", recent); err != nil {
		return err
	}
	if len(archive) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return renderSection(w, "Archive", archive)
}

func renderSection(w io.Writer, title string, list []*domain.Job) error {
	header := titleStyle.Render(title) + " " + mutedStyle.Render(fmt.Sprintf("(%d)", len(list)))
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, job := range list {
		if _, err := fmt.Fprintln(w, JobLine(job)); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
