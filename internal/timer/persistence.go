package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/model"
)

// load reads the persisted state. An absent key is a fresh timer; a store
// error or an unparseable value falls back to the last known in-memory state.
func (t *WallClockTimer) load(ctx context.Context) model.TimerState {
	raw, ok, err := t.store.Get(ctx, StateKey)
	if err != nil {
		warnPersistence("read", StateKey, err)
		return t.cached
	}
	if !ok {
		t.cached = t.fresh(t.cached.PomodoroEnabled)
		return t.cached
	}

	state := model.NewTimerState()
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		warnPersistence("decode", StateKey, err)
		// Overwrite the unreadable value so the warning is not repeated on
		// every read.
		t.save(ctx, t.cached)
		return t.cached
	}
	if !state.PomodoroPhase.Valid() {
		state.PomodoroPhase = model.PhaseFocus
	}
	if state.ElapsedSeconds < 0 {
		state.ElapsedSeconds = 0
	}
	if state.ElapsedCarryNanos < 0 || state.ElapsedCarryNanos >= int64(time.Second) {
		state.ElapsedCarryNanos = 0
	}
	if state.IsRunning && state.LastResumeAt == nil {
		state.IsRunning = false
	}

	t.cached = state
	return state
}

func (t *WallClockTimer) save(ctx context.Context, state model.TimerState) {
	t.cached = state

	raw, err := json.Marshal(state)
	if err != nil {
		warnPersistence("encode", StateKey, err)
		return
	}
	if err := t.store.Set(ctx, StateKey, string(raw)); err != nil {
		warnPersistence("write", StateKey, err)
	}
}

func (t *WallClockTimer) clear(ctx context.Context, pomodoroEnabled bool) {
	t.cached = t.fresh(pomodoroEnabled)
	if err := t.store.Remove(ctx, StateKey); err != nil {
		warnPersistence("remove", StateKey, err)
	}
}

func (t *WallClockTimer) fresh(pomodoroEnabled bool) model.TimerState {
	state := model.NewTimerState()
	state.PomodoroEnabled = pomodoroEnabled
	return state
}

// loadSettings returns the persisted Pomodoro settings, falling back to the
// defaults when they are absent, unreadable or invalid.
func (t *WallClockTimer) loadSettings(ctx context.Context) model.PomodoroSettings {
	if t.settings != nil {
		return *t.settings
	}

	settings := model.DefaultPomodoroSettings()
	raw, ok, err := t.store.Get(ctx, SettingsKey)
	switch {
	case err != nil:
		warnPersistence("read", SettingsKey, err)
		return settings
	case !ok:
	default:
		var stored model.PomodoroSettings
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			warnPersistence("decode", SettingsKey, err)
		} else if err := stored.Validate(); err != nil {
			warnPersistence("validate", SettingsKey, err)
		} else {
			settings = stored
		}
	}

	t.settings = &settings
	return settings
}

func warnPersistence(op, key string, err error) {
	logging.Logger.Warn("timer persistence degraded",
		"op", op,
		"key", key,
		"error", fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err),
	)
}
