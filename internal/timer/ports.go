package timer

import (
	"context"
	"errors"
	"time"

	"studytimer/backend/internal/model"
	"studytimer/backend/internal/pomodoro"
)

var (
	ErrNoGoalSelected         = errors.New("no goal selected")
	ErrPersistenceUnavailable = errors.New("timer persistence unavailable")
	ErrRecordingFailed        = errors.New("recording study session failed")
)

// Store is the key-value persistence a timer owns. Get reports ok=false when
// the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Recorder persists a finished run. It is called at most once per Stop.
type Recorder interface {
	Record(ctx context.Context, goalID string, durationSeconds int, occurredAt time.Time) (*model.StudySession, error)
}

// PhaseNotifier receives Pomodoro phase changes, typically to play a chime.
// Implementations must not block and must swallow their own failures.
type PhaseNotifier interface {
	PhaseChanged(transition PhaseTransition)
}

type PhaseTransition struct {
	GoalID              string      `json:"goalId"`
	From                model.Phase `json:"from"`
	To                  model.Phase `json:"to"`
	CompletedFocusCount int         `json:"completedFocusCount"`
	ElapsedSeconds      int         `json:"elapsedSeconds"`
	At                  time.Time   `json:"at"`
}

type Snapshot struct {
	GoalID          string                 `json:"goalId,omitempty"`
	IsRunning       bool                   `json:"isRunning"`
	ElapsedSeconds  int                    `json:"elapsedSeconds"`
	PomodoroEnabled bool                   `json:"pomodoroEnabled"`
	Pomodoro        *pomodoro.Position     `json:"pomodoro,omitempty"`
	Settings        model.PomodoroSettings `json:"settings"`
	ServerTime      time.Time              `json:"serverTime"`
}

type nopNotifier struct{}

func (nopNotifier) PhaseChanged(PhaseTransition) {}
