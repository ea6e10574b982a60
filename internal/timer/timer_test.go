package timer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studytimer/backend/internal/clock"
	"studytimer/backend/internal/model"
)

var t0 = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memoryStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, goalID string, durationSeconds int, occurredAt time.Time) (*model.StudySession, error) {
	args := m.Called(ctx, goalID, durationSeconds, occurredAt)
	session, _ := args.Get(0).(*model.StudySession)
	return session, args.Error(1)
}

type recordingNotifier struct {
	mu          sync.Mutex
	transitions []PhaseTransition
}

func (n *recordingNotifier) PhaseChanged(tr PhaseTransition) {
	n.mu.Lock()
	n.transitions = append(n.transitions, tr)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []PhaseTransition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]PhaseTransition(nil), n.transitions...)
}

type fixture struct {
	clock    *clock.Fake
	store    *memoryStore
	recorder *mockRecorder
	notifier *recordingNotifier
	timer    *WallClockTimer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.NewFake(t0),
		store:    newMemoryStore(),
		recorder: &mockRecorder{},
		notifier: &recordingNotifier{},
	}
	f.timer = New(f.store, f.clock, f.recorder, WithNotifier(f.notifier))
	t.Cleanup(func() {
		f.timer.Close()
		f.recorder.AssertExpectations(t)
	})
	return f
}

func TestStartRequiresGoal(t *testing.T) {
	f := newFixture(t)

	_, err := f.timer.Start(context.Background(), "  ")

	require.ErrorIs(t, err, ErrNoGoalSelected)
	assert.False(t, f.store.has(StateKey))
	assert.Equal(t, 0, f.clock.ActiveTickers())
}

func TestElapsedSurvivesMissingTicks(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{1, 59, 1500, 7200} {
		f := newFixture(t)

		_, err := f.timer.Start(ctx, "math")
		require.NoError(t, err)
		f.clock.Advance(time.Duration(n) * time.Second)
		snap := f.timer.Pause(ctx)

		assert.Equal(t, n, snap.ElapsedSeconds)
		assert.False(t, snap.IsRunning)
	}
}

func TestElapsedAccumulatesAcrossSegments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(40 * time.Second)
	f.timer.Pause(ctx)

	f.clock.Advance(time.Hour)
	_, err = f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(20 * time.Second)

	assert.Equal(t, 60, f.timer.Tick(ctx).ElapsedSeconds)
}

func TestSubSecondSegmentsAddUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 10; i++ {
		_, err := f.timer.Start(ctx, "math")
		require.NoError(t, err)
		f.clock.Advance(900 * time.Millisecond)
		f.timer.Pause(ctx)
	}
	assert.Equal(t, 9, f.timer.Tick(ctx).ElapsedSeconds)

	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(600 * time.Millisecond)
	assert.Equal(t, 9, f.timer.Pause(ctx).ElapsedSeconds)

	reloaded := New(f.store, f.clock, f.recorder)
	t.Cleanup(reloaded.Close)
	_, err = reloaded.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(400 * time.Millisecond)
	assert.Equal(t, 10, reloaded.Tick(ctx).ElapsedSeconds)
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)

	snap, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.ElapsedSeconds)
	assert.Equal(t, 1, f.clock.ActiveTickers())
}

func TestPauseWhenPausedIsNoop(t *testing.T) {
	f := newFixture(t)

	snap := f.timer.Pause(context.Background())

	assert.Zero(t, snap.ElapsedSeconds)
	assert.False(t, f.store.has(StateKey))
}

func TestResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	first := f.timer.Reset(ctx)
	second := f.timer.Reset(ctx)

	assert.Equal(t, first, second)
	assert.Zero(t, second.ElapsedSeconds)
	assert.False(t, second.IsRunning)
	assert.Empty(t, second.GoalID)
	assert.False(t, f.store.has(StateKey))
}

func TestStopWithoutElapsedTimeDoesNotRecord(t *testing.T) {
	f := newFixture(t)

	session, snap, err := f.timer.Stop(context.Background())

	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Zero(t, snap.ElapsedSeconds)
	f.recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGoalSwitchDiscardsPreviousGoalTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.timer.Start(ctx, "goal-a")
	require.NoError(t, err)
	f.clock.Advance(100 * time.Second)
	f.timer.Pause(ctx)

	_, err = f.timer.Start(ctx, "goal-b")
	require.NoError(t, err)
	f.clock.Advance(50 * time.Second)

	f.recorder.On("Record", mock.Anything, "goal-b", 50, t0.Add(150*time.Second)).
		Return(&model.StudySession{ID: "s1", GoalID: "goal-b", DurationSeconds: 50}, nil).Once()

	session, _, err := f.timer.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, session.DurationSeconds)
}

func TestStudySessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.timer.SetPomodoroEnabled(ctx, true)
	_, err := f.timer.Start(ctx, "Math")
	require.NoError(t, err)

	f.clock.Advance(1500 * time.Second)
	paused := f.timer.Pause(ctx)

	assert.Equal(t, 1500, paused.ElapsedSeconds)
	require.NotNil(t, paused.Pomodoro)
	assert.Equal(t, model.PhaseBreak, paused.Pomodoro.Phase)
	assert.Zero(t, paused.Pomodoro.ElapsedInPhase)

	transitions := f.notifier.all()
	require.Len(t, transitions, 1)
	assert.Equal(t, model.PhaseFocus, transitions[0].From)
	assert.Equal(t, model.PhaseBreak, transitions[0].To)
	assert.Equal(t, 1, transitions[0].CompletedFocusCount)

	f.recorder.On("Record", mock.Anything, "Math", 1500, t0.Add(1500*time.Second)).
		Return(&model.StudySession{ID: "s1", GoalID: "Math", DurationSeconds: 1500}, nil).Once()

	session, snap, err := f.timer.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1500, session.DurationSeconds)
	assert.Zero(t, snap.ElapsedSeconds)
	assert.True(t, snap.PomodoroEnabled)
	assert.False(t, f.store.has(StateKey))

	_, _, err = f.timer.Stop(ctx)
	require.NoError(t, err)
	f.recorder.AssertNumberOfCalls(t, "Record", 1)
}

func TestRecordingFailureKeepsElapsedTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storeErr := errors.New("goal store offline")

	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(300 * time.Second)

	f.recorder.On("Record", mock.Anything, "math", 300, mock.Anything).Return(nil, storeErr).Once()
	session, snap, err := f.timer.Stop(ctx)

	require.ErrorIs(t, err, ErrRecordingFailed)
	require.ErrorIs(t, err, storeErr)
	assert.Nil(t, session)
	assert.Equal(t, 300, snap.ElapsedSeconds)
	assert.False(t, snap.IsRunning)
	assert.True(t, f.store.has(StateKey))

	f.clock.Advance(time.Minute)
	f.recorder.On("Record", mock.Anything, "math", 300, mock.Anything).
		Return(&model.StudySession{ID: "s1", DurationSeconds: 300}, nil).Once()
	session, _, err = f.timer.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, session.DurationSeconds)
}

func TestTickIsNotBlockedWhileRecording(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})

	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	f.recorder.On("Record", mock.Anything, "math", 90, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&model.StudySession{ID: "s1", GoalID: "math", DurationSeconds: 90}, nil).Once()

	type stopResult struct {
		session *model.StudySession
		snap    Snapshot
		err     error
	}
	stopped := make(chan stopResult, 1)
	go func() {
		session, snap, err := f.timer.Stop(ctx)
		stopped <- stopResult{session, snap, err}
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("recorder was not called")
	}

	ticked := make(chan Snapshot, 1)
	go func() { ticked <- f.timer.Tick(ctx) }()
	select {
	case snap := <-ticked:
		assert.Equal(t, 90, snap.ElapsedSeconds)
		assert.False(t, snap.IsRunning)
	case <-time.After(time.Second):
		close(release)
		t.Fatal("tick blocked while the session was being recorded")
	}

	close(release)
	res := <-stopped
	require.NoError(t, res.err)
	assert.Equal(t, "s1", res.session.ID)
	assert.Zero(t, res.snap.ElapsedSeconds)
	assert.False(t, f.store.has(StateKey))
}

func TestStopKeepsStateChangedDuringRecording(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(30 * time.Second)

	resumed := t0.Add(30 * time.Second)
	other := model.NewTimerState()
	other.GoalID = "physics"
	other.IsRunning = true
	other.LastResumeAt = &resumed
	raw, err := json.Marshal(other)
	require.NoError(t, err)

	f.recorder.On("Record", mock.Anything, "math", 30, mock.Anything).
		Run(func(mock.Arguments) {
			require.NoError(t, f.store.Set(ctx, StateKey, string(raw)))
		}).
		Return(&model.StudySession{ID: "s1", DurationSeconds: 30}, nil).Once()

	session, snap, err := f.timer.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, session.DurationSeconds)
	assert.Equal(t, "physics", snap.GoalID)
	assert.True(t, snap.IsRunning)
	assert.True(t, f.store.has(StateKey))
}

func TestTickNotifiesPhaseChangeOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.timer.SetPomodoroEnabled(ctx, true)
	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)

	f.clock.Advance(1499 * time.Second)
	assert.Equal(t, model.PhaseFocus, f.timer.Tick(ctx).Pomodoro.Phase)
	assert.Empty(t, f.notifier.all())

	f.clock.Advance(time.Second)
	snap := f.timer.Tick(ctx)
	assert.Equal(t, model.PhaseBreak, snap.Pomodoro.Phase)
	f.timer.Tick(ctx)

	require.Len(t, f.notifier.all(), 1)
}

func TestReloadedTimerResumesFromPersistedState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.timer.SetPomodoroEnabled(ctx, true)
	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(1600 * time.Second)
	f.timer.Tick(ctx)
	f.timer.Close()

	f.clock.Advance(100 * time.Second)
	notifier := &recordingNotifier{}
	reloaded := New(f.store, f.clock, f.recorder, WithNotifier(notifier))
	t.Cleanup(reloaded.Close)

	snap := reloaded.Restore(ctx)

	assert.True(t, snap.IsRunning)
	assert.Equal(t, 1700, snap.ElapsedSeconds)
	assert.Equal(t, model.PhaseBreak, snap.Pomodoro.Phase)
	assert.Equal(t, 200, snap.Pomodoro.ElapsedInPhase)
	assert.Empty(t, notifier.all())
}

func TestCorruptPersistedStateIsTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.data[StateKey] = "{not json"
	f.store.data[SettingsKey] = `{"focusSeconds":0}`

	snap := f.timer.Tick(ctx)
	assert.Zero(t, snap.ElapsedSeconds)
	assert.Equal(t, model.DefaultPomodoroSettings(), snap.Settings)

	raw, ok, err := f.store.Get(ctx, StateKey)
	require.NoError(t, err)
	require.True(t, ok)
	var rewritten model.TimerState
	require.NoError(t, json.Unmarshal([]byte(raw), &rewritten), "unreadable state must be overwritten")
	assert.False(t, rewritten.IsRunning)

	_, err = f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 5, f.timer.Pause(ctx).ElapsedSeconds)
}

func TestUnavailableStoreFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.getErr = errors.New("quota exceeded")
	f.store.setErr = errors.New("quota exceeded")

	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(42 * time.Second)

	assert.Equal(t, 42, f.timer.Tick(ctx).ElapsedSeconds)
	assert.Equal(t, 42, f.timer.Pause(ctx).ElapsedSeconds)
}

func TestUpdatePomodoroSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.timer.UpdatePomodoroSettings(ctx, model.PomodoroSettings{FocusSeconds: 0, BreakSeconds: 1, LongBreakSeconds: 1, CyclesBeforeLongBreak: 1})
	require.ErrorIs(t, err, model.ErrInvalidPomodoroSettings)
	assert.Equal(t, model.DefaultPomodoroSettings(), f.timer.PomodoroSettings(ctx))

	custom := model.PomodoroSettings{FocusSeconds: 60, BreakSeconds: 30, LongBreakSeconds: 120, CyclesBeforeLongBreak: 2}
	f.timer.SetPomodoroEnabled(ctx, true)
	_, err = f.timer.Start(ctx, "math")
	require.NoError(t, err)
	f.clock.Advance(70 * time.Second)

	snap, err := f.timer.UpdatePomodoroSettings(ctx, custom)
	require.NoError(t, err)
	assert.Equal(t, custom, snap.Settings)
	assert.Equal(t, model.PhaseBreak, snap.Pomodoro.Phase)
	assert.Empty(t, f.notifier.all())

	reloaded := New(f.store, f.clock, f.recorder)
	t.Cleanup(reloaded.Close)
	assert.Equal(t, custom, reloaded.PomodoroSettings(ctx))
}

func TestBackgroundTickerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.timer.SetPomodoroEnabled(ctx, true)
	_, err := f.timer.Start(ctx, "math")
	require.NoError(t, err)
	require.Equal(t, 1, f.clock.ActiveTickers())

	f.clock.Advance(1500 * time.Second)
	f.clock.Fire()
	require.Eventually(t, func() bool {
		return len(f.notifier.all()) == 1
	}, time.Second, 5*time.Millisecond)

	f.timer.Pause(ctx)
	require.Eventually(t, func() bool {
		return f.clock.ActiveTickers() == 0
	}, time.Second, 5*time.Millisecond)
}
