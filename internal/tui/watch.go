package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"reelgen/internal/domain"
	"reelgen/internal/jobs"
)

// JobSource is what the watch view needs from the controller.
type JobSource interface {
	List(ctx context.Context) ([]*domain.Job, error)
	RefreshPending(ctx context.Context, schedule *jobs.RefreshSchedule) (int, error)
}

// WatchOptions configure the watch view.
type WatchOptions struct {
	// Recent is the number of jobs shown above the archive.
	Recent int
	// Tick is how often the view asks the schedule for due jobs.
	Tick time.Duration
	// Schedule throttles status checks per job.
	Schedule *jobs.RefreshSchedule
}

type tickMsg time.Time

type jobsMsg struct {
	jobs      []*domain.Job
	refreshed int
	err       error
	at        time.Time
}

type watchModel struct {
	ctx      context.Context
	source   JobSource
	opts     WatchOptions
	spinner  spinner.Model
	jobs     []*domain.Job
	busy     bool
	lastErr  error
	lastSync time.Time
	checked  int
	width    int
}

func newWatchModel(ctx context.Context, source JobSource, opts WatchOptions) watchModel {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Schedule == nil {
		opts.Schedule = jobs.NewRefreshSchedule(jobs.DefaultRefreshInterval)
	}
	if opts.Recent <= 0 {
		opts.Recent = 5
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = runningStyle
	return watchModel{ctx: ctx, source: source, opts: opts, spinner: sp, busy: true}
}

// Watch runs the live view until the user quits or ctx ends.
func Watch(ctx context.Context, source JobSource, opts WatchOptions) error {
	m := newWatchModel(ctx, source, opts)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if fm, ok := finalModel.(watchModel); ok && fm.lastErr != nil && len(fm.jobs) == 0 {
		return fm.lastErr
	}
	return nil
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshCmd(m.ctx, m.source, m.opts.Schedule))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.busy {
				return m, nil
			}
			m.busy = true
			// force a status check of every non-terminal job
			return m, refreshCmd(m.ctx, m.source, nil)
		}
		return m, nil
	case tickMsg:
		if m.busy {
			return m, tickCmd(m.opts.Tick)
		}
		m.busy = true
		return m, refreshCmd(m.ctx, m.source, m.opts.Schedule)
	case jobsMsg:
		m.busy = false
		m.lastErr = msg.err
		m.lastSync = msg.at
		m.checked = msg.refreshed
		if msg.jobs != nil {
			m.jobs = msg.jobs
		}
		return m, tickCmd(m.opts.Tick)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	header := titleStyle.Render("reelgen watch")
	if m.busy {
		header += " " + m.spinner.View()
	}
	if !m.lastSync.IsZero() {
		header += " " + mutedStyle.Render(fmt.Sprintf("synced %s, %d checked", m.lastSync.Format("15:04:05"), m.checked))
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	recent, archive := jobs.SplitRecent(m.jobs, m.opts.Recent)
	_ = RenderJobs(&b, recent, archive)

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	footer := pendingSummary(m.jobs)
	if next := nextCheckSummary(m.jobs, m.opts.Schedule, time.Now()); next != "" {
		footer += ", " + next
	}
	b.WriteString(mutedStyle.Render(footer + "  r refresh now  q quit"))

	if m.width > 0 {
		return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
	}
	return b.String()
}

func pendingSummary(list []*domain.Job) string {
	active := 0
	for _, job := range list {
		if !job.Status.Terminal() {
			active++
		}
	}
	return fmt.Sprintf("%d active / %d total", active, len(list))
}

// nextCheckSummary reports when the soonest active job is due for a status
// check. Empty when nothing is active.
func nextCheckSummary(list []*domain.Job, schedule *jobs.RefreshSchedule, now time.Time) string {
	soonest := time.Duration(-1)
	for _, job := range list {
		if job.Status.Terminal() {
			continue
		}
		wait := schedule.NextDue(job.Key(), now)
		if soonest < 0 || wait < soonest {
			soonest = wait
		}
	}
	switch {
	case soonest < 0:
		return ""
	case soonest == 0:
		return "next check now"
	default:
		return "next check in " + soonest.Round(time.Second).String()
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// refreshCmd refreshes due jobs and reloads the list. Refresh errors are
// reported alongside whatever list could still be loaded.
func refreshCmd(ctx context.Context, source JobSource, schedule *jobs.RefreshSchedule) tea.Cmd {
	return func() tea.Msg {
		n, refreshErr := source.RefreshPending(ctx, schedule)
		list, err := source.List(ctx)
		if err == nil {
			err = refreshErr
		}
		return jobsMsg{jobs: list, refreshed: n, err: err, at: time.Now()}
	}
}
