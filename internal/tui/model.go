// Package tui is the terminal front end of a local study timer.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studytimer/backend/internal/model"
	"studytimer/backend/internal/pomodoro"
	"studytimer/backend/internal/timer"
)

const (
	refreshInterval = time.Second
	barWidth        = 20
)

// Timer is the part of timer.WallClockTimer the UI drives.
type Timer interface {
	Start(ctx context.Context, goalID string) (timer.Snapshot, error)
	Pause(ctx context.Context) timer.Snapshot
	Reset(ctx context.Context) timer.Snapshot
	Stop(ctx context.Context) (*model.StudySession, timer.Snapshot, error)
	Tick(ctx context.Context) timer.Snapshot
	Visible(ctx context.Context) timer.Snapshot
	SetPomodoroEnabled(ctx context.Context, enabled bool) timer.Snapshot
}

var _ Timer = (*timer.WallClockTimer)(nil)

type Model struct {
	ctx       context.Context
	timer     Timer
	goalID    string
	goalTitle string

	snapshot    timer.Snapshot
	lastSession *model.StudySession
	err         error
	quitting    bool
}

func New(ctx context.Context, t Timer, goalID, goalTitle string) Model {
	return Model{
		ctx:       ctx,
		timer:     t,
		goalID:    goalID,
		goalTitle: goalTitle,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.FocusMsg:
		// The terminal regained focus: catch up right away.
		return m, m.visibleCmd()

	case TickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		return m, nil

	case StoppedMsg:
		m.snapshot = msg.Snapshot
		m.err = nil
		if msg.Session != nil {
			m.lastSession = msg.Session
		}
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		if msg.Snapshot != nil {
			m.snapshot = *msg.Snapshot
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case KeyStartStop:
		m.err = nil
		if m.snapshot.IsRunning {
			return m, m.pauseCmd()
		}
		return m, m.startCmd()
	case KeyStop:
		return m, m.stopCmd()
	case KeyReset:
		m.err = nil
		m.lastSession = nil
		return m, m.resetCmd()
	case KeyPomodoro:
		return m, m.pomodoroCmd(!m.snapshot.PomodoroEnabled)
	}
	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: m.timer.Tick(m.ctx)}
	}
}

func (m Model) visibleCmd() tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: m.timer.Visible(m.ctx)}
	}
}

func (m Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.timer.Start(m.ctx, m.goalID)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func (m Model) pauseCmd() tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: m.timer.Pause(m.ctx)}
	}
}

func (m Model) resetCmd() tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: m.timer.Reset(m.ctx)}
	}
}

func (m Model) stopCmd() tea.Cmd {
	return func() tea.Msg {
		session, snap, err := m.timer.Stop(m.ctx)
		if err != nil {
			return ErrorMsg{Err: err, Snapshot: &snap}
		}
		return StoppedMsg{Session: session, Snapshot: snap}
	}
}

func (m Model) pomodoroCmd(enabled bool) tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: m.timer.SetPomodoroEnabled(m.ctx, enabled)}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Studying: " + m.goalTitle))
	b.WriteString("\n")

	clock := clockStyle.BorderForeground(phaseColor(m.snapshot)).Render(FormatDuration(m.snapshot.ElapsedSeconds))
	b.WriteString(clock)
	b.WriteString("\n")

	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n")

	if m.lastSession != nil {
		b.WriteString(statusStyle.Render(fmt.Sprintf("Recorded %s", FormatDuration(m.lastSession.DurationSeconds))))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(errorText(m.err)))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("space start/pause • s stop • r reset • p pomodoro • q quit"))
	return b.String()
}

func (m Model) statusLine() string {
	state := "paused"
	if m.snapshot.IsRunning {
		state = "running"
	}
	if !m.snapshot.PomodoroEnabled || m.snapshot.Pomodoro == nil {
		return state
	}

	pos := m.snapshot.Pomodoro
	return fmt.Sprintf("%s • %s %s • %s left • %d done",
		state,
		phaseLabel(pos.Phase),
		phaseBar(*pos, m.snapshot.Settings, barWidth),
		FormatDuration(pos.RemainingInPhase),
		pos.CompletedFocusCount,
	)
}

// phaseBar draws how far into the current phase the timer is.
func phaseBar(pos pomodoro.Position, settings model.PomodoroSettings, width int) string {
	total := pomodoro.PhaseDuration(pos.Phase, settings)
	filled := 0
	if total > 0 {
		filled = pos.ElapsedInPhase * width / total
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func errorText(err error) string {
	switch {
	case errors.Is(err, timer.ErrNoGoalSelected):
		return "Select a goal first"
	case errors.Is(err, timer.ErrRecordingFailed):
		return "Could not save the session, press s to retry"
	default:
		return err.Error()
	}
}

func phaseLabel(phase model.Phase) string {
	switch phase {
	case model.PhaseBreak:
		return "break"
	case model.PhaseLongBreak:
		return "long break"
	default:
		return "focus"
	}
}

func phaseColor(snap timer.Snapshot) lipgloss.Color {
	if snap.Pomodoro == nil {
		return colorGray
	}
	switch snap.Pomodoro.Phase {
	case model.PhaseBreak:
		return colorBreak
	case model.PhaseLongBreak:
		return colorLongBreak
	default:
		return colorFocus
	}
}

// FormatDuration renders seconds as MM:SS, or H:MM:SS from one hour on.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
