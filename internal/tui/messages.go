package tui

import (
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/timer"
)

// TickMsg asks the model to refresh the snapshot from the wall clock.
type TickMsg struct{}

// SnapshotMsg carries the timer state after an action.
type SnapshotMsg struct {
	Snapshot timer.Snapshot
}

// StoppedMsg reports a finished run. Session is nil when nothing had elapsed.
type StoppedMsg struct {
	Session  *model.StudySession
	Snapshot timer.Snapshot
}

// ErrorMsg carries a failed action; the previous snapshot stays on screen.
type ErrorMsg struct {
	Err      error
	Snapshot *timer.Snapshot
}
