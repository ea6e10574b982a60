package model

import "time"

type Phase string

const (
	PhaseFocus     Phase = "focus"
	PhaseBreak     Phase = "break"
	PhaseLongBreak Phase = "longBreak"
)

func (p Phase) Valid() bool {
	return p == PhaseFocus || p == PhaseBreak || p == PhaseLongBreak
}

// TimerState is the persisted form of a study timer. ElapsedSeconds holds only
// the whole seconds accumulated before the current run segment and
// ElapsedCarryNanos the sub-second rest; the live total is ElapsedAt.
type TimerState struct {
	IsRunning              bool       `json:"isRunning"`
	ElapsedSeconds         int        `json:"elapsedSeconds"`
	ElapsedCarryNanos      int64      `json:"elapsedCarryNanos,omitempty"`
	LastResumeAt           *time.Time `json:"lastResumeTimestamp,omitempty"`
	GoalID                 string     `json:"goalId,omitempty"`
	PomodoroEnabled        bool       `json:"pomodoroEnabled"`
	PomodoroPhase          Phase      `json:"pomodoroPhase"`
	PomodoroCompletedCount int        `json:"pomodoroCompletedCount"`
}

func NewTimerState() TimerState {
	return TimerState{PomodoroPhase: PhaseFocus}
}

// ElapsedAt returns the whole seconds elapsed as observed at now.
func (s TimerState) ElapsedAt(now time.Time) int {
	total := s.ElapsedSeconds + int(s.pending(now)/time.Second)
	if total < 0 {
		return 0
	}
	return total
}

// FoldAt stops the run segment at now and moves it into ElapsedSeconds. The
// sub-second rest is carried so repeated pauses add up exactly.
func (s *TimerState) FoldAt(now time.Time) {
	pending := s.pending(now)
	s.ElapsedSeconds += int(pending / time.Second)
	s.ElapsedCarryNanos = int64(pending % time.Second)
	s.IsRunning = false
	s.LastResumeAt = nil
}

// pending is the time not yet counted in ElapsedSeconds: the carry plus the
// running segment.
func (s TimerState) pending(now time.Time) time.Duration {
	pending := time.Duration(s.ElapsedCarryNanos)
	if pending < 0 {
		pending = 0
	}
	if s.IsRunning && s.LastResumeAt != nil {
		if delta := now.Sub(*s.LastResumeAt); delta > 0 {
			pending += delta
		}
	}
	return pending
}
