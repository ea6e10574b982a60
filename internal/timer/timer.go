package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"studytimer/backend/internal/clock"
	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/pomodoro"
)

const (
	StateKey    = "study-timer:state"
	SettingsKey = "study-timer:pomodoro-settings"

	DefaultTickInterval = time.Second
)

// WallClockTimer measures study time from wall-clock instants rather than by
// counting ticks, so dropped ticks and process suspension never skew the
// total. The persisted state is re-read on every operation; the in-memory
// copy is only used when the store cannot be read.
type WallClockTimer struct {
	// opMu serialises Start, Reset and Stop so a Stop waiting on the
	// recorder cannot be overtaken. It is always taken before mu.
	opMu     sync.Mutex
	mu       sync.Mutex
	store    Store
	clock    clock.Clock
	recorder Recorder
	notifier PhaseNotifier
	interval time.Duration

	cached   model.TimerState
	settings *model.PomodoroSettings
	done     chan struct{}
}

type Option func(*WallClockTimer)

func WithNotifier(n PhaseNotifier) Option {
	return func(t *WallClockTimer) {
		if n != nil {
			t.notifier = n
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(t *WallClockTimer) {
		if d > 0 {
			t.interval = d
		}
	}
}

func New(store Store, clk clock.Clock, recorder Recorder, opts ...Option) *WallClockTimer {
	t := &WallClockTimer{
		store:    store,
		clock:    clk,
		recorder: recorder,
		notifier: nopNotifier{},
		interval: DefaultTickInterval,
		cached:   model.NewTimerState(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins or resumes a run for goalID. Persisted time belonging to a
// different goal is discarded.
func (t *WallClockTimer) Start(ctx context.Context, goalID string) (Snapshot, error) {
	goalID = strings.TrimSpace(goalID)
	if goalID == "" {
		return Snapshot{}, ErrNoGoalSelected
	}

	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	state := t.load(ctx)
	settings := t.loadSettings(ctx)

	if state.GoalID != "" && state.GoalID != goalID {
		if discarded := state.ElapsedAt(now); discarded > 0 {
			logging.Logger.Info("discarding timer of previous goal",
				"previous_goal_id", state.GoalID,
				"goal_id", goalID,
				"discarded_seconds", discarded,
			)
		}
		state = t.fresh(state.PomodoroEnabled)
	}

	if state.IsRunning {
		t.startTicking()
		return t.snapshot(state, settings, now), nil
	}

	state.GoalID = goalID
	state.IsRunning = true
	state.LastResumeAt = &now
	t.save(ctx, state)
	t.startTicking()

	return t.snapshot(state, settings, now), nil
}

// Pause folds the current run segment into the accumulated total.
func (t *WallClockTimer) Pause(ctx context.Context) Snapshot {
	t.mu.Lock()
	now := t.clock.Now()
	state := t.load(ctx)
	settings := t.loadSettings(ctx)

	var transition *PhaseTransition
	if state.IsRunning {
		state, transition = t.pause(state, settings, now)
		t.save(ctx, state)
	}
	t.stopTicking()
	snap := t.snapshot(state, settings, now)
	t.mu.Unlock()

	t.notify(transition)
	return snap
}

// Reset zeroes the timer and clears its persisted state. The Pomodoro
// preference is kept for the rest of the process lifetime.
func (t *WallClockTimer) Reset(ctx context.Context) Snapshot {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.load(ctx)
	t.stopTicking()
	t.clear(ctx, state.PomodoroEnabled)

	return t.snapshot(t.cached, t.loadSettings(ctx), t.clock.Now())
}

// Stop pauses the timer and hands the total to the recorder. The state is
// reset only once the recorder succeeds; on failure the paused total is kept
// so the caller can retry. A timer with nothing elapsed is left untouched and
// Stop returns a nil session. The recorder runs without holding the state
// lock, so ticks and reads carry on while a session is being written.
func (t *WallClockTimer) Stop(ctx context.Context) (*model.StudySession, Snapshot, error) {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.mu.Lock()
	now := t.clock.Now()
	state := t.load(ctx)
	settings := t.loadSettings(ctx)

	total := state.ElapsedAt(now)
	if total == 0 {
		snap := t.snapshot(state, settings, now)
		t.mu.Unlock()
		return nil, snap, nil
	}
	if state.GoalID == "" {
		snap := t.snapshot(state, settings, now)
		t.mu.Unlock()
		return nil, snap, ErrNoGoalSelected
	}

	var transition *PhaseTransition
	if state.IsRunning {
		state, transition = t.pause(state, settings, now)
		t.save(ctx, state)
	}
	t.stopTicking()
	t.mu.Unlock()

	t.notify(transition)

	session, err := t.recorder.Record(ctx, state.GoalID, total, now)
	if err != nil {
		logging.Logger.Warn("record study session",
			"goal_id", state.GoalID,
			"duration_seconds", total,
			"error", err,
		)
		return nil, t.snapshot(state, settings, now), fmt.Errorf("%w: %w", ErrRecordingFailed, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.load(ctx)
	settings = t.loadSettings(ctx)
	if sameRun(current, state) {
		t.clear(ctx, current.PomodoroEnabled)
		current = t.cached
	} else {
		logging.Logger.Warn("timer changed while recording, keeping it",
			"goal_id", state.GoalID,
			"current_goal_id", current.GoalID,
		)
	}
	return session, t.snapshot(current, settings, now), nil
}

// sameRun reports whether current is still the paused run that was recorded.
func sameRun(current, recorded model.TimerState) bool {
	return current.GoalID == recorded.GoalID &&
		!current.IsRunning &&
		current.ElapsedSeconds == recorded.ElapsedSeconds &&
		current.ElapsedCarryNanos == recorded.ElapsedCarryNanos
}

// Tick recomputes the elapsed time from the persisted state and the wall
// clock. With Pomodoro enabled it persists phase changes and notifies them.
func (t *WallClockTimer) Tick(ctx context.Context) Snapshot {
	t.mu.Lock()
	now := t.clock.Now()
	state := t.load(ctx)
	settings := t.loadSettings(ctx)
	total := state.ElapsedAt(now)

	transition, changed := applyPomodoro(&state, total, settings, now)
	if changed {
		t.save(ctx, state)
	}
	if !state.IsRunning {
		t.stopTicking()
	}
	snap := t.snapshot(state, settings, now)
	t.mu.Unlock()

	t.notify(transition)
	return snap
}

// Visible handles the host becoming visible again: it ticks immediately
// instead of waiting for the next interval.
func (t *WallClockTimer) Visible(ctx context.Context) Snapshot {
	return t.Tick(ctx)
}

// Restore resumes ticking for a run that was persisted by an earlier process.
func (t *WallClockTimer) Restore(ctx context.Context) Snapshot {
	t.mu.Lock()
	if t.load(ctx).IsRunning {
		t.startTicking()
	}
	t.mu.Unlock()
	return t.Tick(ctx)
}

func (t *WallClockTimer) SetPomodoroEnabled(ctx context.Context, enabled bool) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	state := t.load(ctx)
	settings := t.loadSettings(ctx)

	state.PomodoroEnabled = enabled
	if enabled {
		applyPomodoro(&state, state.ElapsedAt(now), settings, now)
	} else {
		state.PomodoroPhase = model.PhaseFocus
		state.PomodoroCompletedCount = 0
	}
	t.save(ctx, state)

	return t.snapshot(state, settings, now)
}

func (t *WallClockTimer) PomodoroSettings(ctx context.Context) model.PomodoroSettings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadSettings(ctx)
}

// UpdatePomodoroSettings validates and persists new phase durations. The
// current phase is re-derived silently; changing durations is not a
// transition worth a chime.
func (t *WallClockTimer) UpdatePomodoroSettings(ctx context.Context, settings model.PomodoroSettings) (Snapshot, error) {
	if err := settings.Validate(); err != nil {
		return Snapshot{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := json.Marshal(settings)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode pomodoro settings: %w", err)
	}
	if err := t.store.Set(ctx, SettingsKey, string(raw)); err != nil {
		warnPersistence("write", SettingsKey, err)
	}
	t.settings = &settings

	now := t.clock.Now()
	state := t.load(ctx)
	if _, changed := applyPomodoro(&state, state.ElapsedAt(now), settings, now); changed {
		t.save(ctx, state)
	}

	return t.snapshot(state, settings, now), nil
}

// Close stops the background tick. The persisted state is left as is.
func (t *WallClockTimer) Close() {
	t.mu.Lock()
	t.stopTicking()
	t.mu.Unlock()
}

func (t *WallClockTimer) pause(state model.TimerState, settings model.PomodoroSettings, now time.Time) (model.TimerState, *PhaseTransition) {
	state.FoldAt(now)
	transition, _ := applyPomodoro(&state, state.ElapsedSeconds, settings, now)
	return state, transition
}

// applyPomodoro writes the Pomodoro position for total into state. It reports
// a transition when the phase differs from the stored one and whether any
// stored field changed.
func applyPomodoro(state *model.TimerState, total int, settings model.PomodoroSettings, now time.Time) (*PhaseTransition, bool) {
	if !state.PomodoroEnabled {
		return nil, false
	}

	pos := pomodoro.Locate(total, settings)
	changed := pos.Phase != state.PomodoroPhase || pos.CompletedFocusCount != state.PomodoroCompletedCount

	var transition *PhaseTransition
	if pos.Phase != state.PomodoroPhase {
		transition = &PhaseTransition{
			GoalID:              state.GoalID,
			From:                state.PomodoroPhase,
			To:                  pos.Phase,
			CompletedFocusCount: pos.CompletedFocusCount,
			ElapsedSeconds:      total,
			At:                  now,
		}
	}

	state.PomodoroPhase = pos.Phase
	state.PomodoroCompletedCount = pos.CompletedFocusCount
	return transition, changed
}

func (t *WallClockTimer) snapshot(state model.TimerState, settings model.PomodoroSettings, now time.Time) Snapshot {
	total := state.ElapsedAt(now)
	snap := Snapshot{
		GoalID:          state.GoalID,
		IsRunning:       state.IsRunning,
		ElapsedSeconds:  total,
		PomodoroEnabled: state.PomodoroEnabled,
		Settings:        settings,
		ServerTime:      now,
	}
	if state.PomodoroEnabled {
		pos := pomodoro.Locate(total, settings)
		snap.Pomodoro = &pos
	}
	return snap
}

func (t *WallClockTimer) notify(transition *PhaseTransition) {
	if transition == nil {
		return
	}
	logging.Logger.Debug("pomodoro phase changed",
		"goal_id", transition.GoalID,
		"from", transition.From,
		"to", transition.To,
		"completed_focus_count", transition.CompletedFocusCount,
	)
	t.notifier.PhaseChanged(*transition)
}

func (t *WallClockTimer) startTicking() {
	if t.done != nil {
		return
	}
	done := make(chan struct{})
	t.done = done
	go t.tickLoop(t.clock.NewTicker(t.interval), done)
}

func (t *WallClockTimer) stopTicking() {
	if t.done == nil {
		return
	}
	close(t.done)
	t.done = nil
}

func (t *WallClockTimer) tickLoop(ticker clock.Ticker, done <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			select {
			case <-done:
				return
			default:
			}
			t.Tick(context.Background())
		}
	}
}
