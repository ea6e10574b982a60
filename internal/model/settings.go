package model

import (
	"errors"
	"fmt"
)

const (
	DefaultFocusSeconds          = 25 * 60
	DefaultBreakSeconds          = 5 * 60
	DefaultLongBreakSeconds      = 15 * 60
	DefaultCyclesBeforeLongBreak = 4
)

var ErrInvalidPomodoroSettings = errors.New("invalid pomodoro settings")

type PomodoroSettings struct {
	FocusSeconds          int `json:"focusSeconds"`
	BreakSeconds          int `json:"breakSeconds"`
	LongBreakSeconds      int `json:"longBreakSeconds"`
	CyclesBeforeLongBreak int `json:"cyclesBeforeLongBreak"`
}

func DefaultPomodoroSettings() PomodoroSettings {
	return PomodoroSettings{
		FocusSeconds:          DefaultFocusSeconds,
		BreakSeconds:          DefaultBreakSeconds,
		LongBreakSeconds:      DefaultLongBreakSeconds,
		CyclesBeforeLongBreak: DefaultCyclesBeforeLongBreak,
	}
}

func (s PomodoroSettings) Validate() error {
	switch {
	case s.FocusSeconds <= 0:
		return fmt.Errorf("%w: focusSeconds must be positive", ErrInvalidPomodoroSettings)
	case s.BreakSeconds <= 0:
		return fmt.Errorf("%w: breakSeconds must be positive", ErrInvalidPomodoroSettings)
	case s.LongBreakSeconds <= 0:
		return fmt.Errorf("%w: longBreakSeconds must be positive", ErrInvalidPomodoroSettings)
	case s.CyclesBeforeLongBreak < 1:
		return fmt.Errorf("%w: cyclesBeforeLongBreak must be at least 1", ErrInvalidPomodoroSettings)
	}
	return nil
}
