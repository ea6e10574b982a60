// Package pomodoro maps a total elapsed study time onto the focus/break cycle.
// Everything here is a pure function of its inputs, so a timer that reloads
// its elapsed seconds lands on the same phase it would have reached without
// reloading.
package pomodoro

import "studytimer/backend/internal/model"

type Position struct {
	Phase               model.Phase `json:"phase"`
	ElapsedInPhase      int         `json:"elapsedInPhase"`
	RemainingInPhase    int         `json:"remainingInPhase"`
	CompletedFocusCount int         `json:"completedFocusCount"`
}

// CycleDuration is the length of one full cycle: CyclesBeforeLongBreak focus
// phases, each followed by a break, the last break being the long one.
func CycleDuration(s model.PomodoroSettings) int {
	return (s.FocusSeconds+s.BreakSeconds)*(s.CyclesBeforeLongBreak-1) + s.FocusSeconds + s.LongBreakSeconds
}

func PhaseDuration(phase model.Phase, s model.PomodoroSettings) int {
	switch phase {
	case model.PhaseBreak:
		return s.BreakSeconds
	case model.PhaseLongBreak:
		return s.LongBreakSeconds
	default:
		return s.FocusSeconds
	}
}

// Locate returns the phase containing totalElapsedSeconds. Settings must have
// been validated; invalid settings yield the start of a focus phase.
func Locate(totalElapsedSeconds int, s model.PomodoroSettings) Position {
	start := Position{Phase: model.PhaseFocus, RemainingInPhase: s.FocusSeconds}
	if s.Validate() != nil || totalElapsedSeconds <= 0 {
		return start
	}

	pos := totalElapsedSeconds % CycleDuration(s)
	completed := 0
	for i := 0; i < s.CyclesBeforeLongBreak; i++ {
		if pos < s.FocusSeconds {
			return Position{
				Phase:               model.PhaseFocus,
				ElapsedInPhase:      pos,
				RemainingInPhase:    s.FocusSeconds - pos,
				CompletedFocusCount: completed,
			}
		}
		pos -= s.FocusSeconds
		completed++

		phase, length := model.PhaseBreak, s.BreakSeconds
		if i == s.CyclesBeforeLongBreak-1 {
			phase, length = model.PhaseLongBreak, s.LongBreakSeconds
		}
		if pos < length {
			return Position{
				Phase:               phase,
				ElapsedInPhase:      pos,
				RemainingInPhase:    length - pos,
				CompletedFocusCount: completed,
			}
		}
		pos -= length
	}

	// pos < CycleDuration guarantees a return inside the loop.
	return start
}
