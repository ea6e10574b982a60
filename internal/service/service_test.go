package service

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studytimer/backend/internal/clock"
	"studytimer/backend/internal/db"
	apperrors "studytimer/backend/internal/errors"
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/notify"
	"studytimer/backend/internal/repository"
)

type fixture struct {
	clock    *clock.Fake
	hub      *notify.Hub
	auth     *AuthService
	timers   *TimerService
	goals    *GoalService
	sessions *SessionService
	stats    *StatsService
	userID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.RunMigrations(database, db.MigrationSource("")))

	clk := clock.NewFake(time.Date(2026, time.March, 4, 8, 0, 0, 0, time.UTC))
	hub := notify.NewHub()

	goalRepo := repository.NewGoalRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	progressRepo := repository.NewProgressRepository(database)

	f := &fixture{
		clock: clk,
		hub:   hub,
		auth:  NewAuthService(repository.NewUserRepository(database), "secret", time.Hour),
		timers: NewTimerService(TimerServiceDeps{
			KV:        repository.NewKVRepository(database),
			Goals:     goalRepo,
			Sessions:  sessionRepo,
			Progress:  progressRepo,
			Notifiers: hub,
			Clock:     clk,
			Location:  time.UTC,
		}),
		sessions: NewSessionService(sessionRepo, time.UTC),
		stats:    NewStatsService(progressRepo, clk, time.UTC),
	}
	f.goals = NewGoalService(goalRepo, f.timers, clk, time.UTC)
	t.Cleanup(f.timers.Close)

	user, apiErr := f.auth.EnsureLocalUser(context.Background(), "local@studytimer")
	require.Nil(t, apiErr)
	f.userID = user.ID
	return f
}

func (f *fixture) createGoal(t *testing.T, title string, target int) string {
	t.Helper()
	goal, apiErr := f.goals.Create(context.Background(), f.userID, GoalInput{Title: title, DurationSeconds: target})
	require.Nil(t, apiErr)
	return goal.ID
}

// run starts the timer on goalID, advances the clock and stops it.
func (f *fixture) run(t *testing.T, goalID string, d time.Duration) *StopResult {
	t.Helper()
	ctx := context.Background()
	_, apiErr := f.timers.Start(ctx, f.userID, goalID)
	require.Nil(t, apiErr)
	f.clock.Advance(d)
	result, apiErr := f.timers.Stop(ctx, f.userID)
	require.Nil(t, apiErr)
	return result
}

func TestTimerServiceMathScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goalID := f.createGoal(t, "Math", 3600)

	events, cancel := f.hub.Subscribe(f.userID)
	defer cancel()

	_, apiErr := f.timers.SetPomodoroEnabled(ctx, f.userID, true)
	require.Nil(t, apiErr)
	_, apiErr = f.timers.Start(ctx, f.userID, goalID)
	require.Nil(t, apiErr)

	f.clock.Advance(1500 * time.Second)
	state, apiErr := f.timers.GetState(ctx, f.userID)
	require.Nil(t, apiErr)
	require.NotNil(t, state.Pomodoro)
	assert.Equal(t, model.PhaseBreak, state.Pomodoro.Phase)

	select {
	case event := <-events:
		require.NotNil(t, event.Transition)
		assert.Equal(t, model.PhaseFocus, event.Transition.From)
		assert.Equal(t, model.PhaseBreak, event.Transition.To)
	default:
		t.Fatal("expected a phase change event")
	}

	result, apiErr := f.timers.Stop(ctx, f.userID)
	require.Nil(t, apiErr)
	require.NotNil(t, result.Session)
	assert.Equal(t, 1500, result.Session.DurationSeconds)
	assert.Equal(t, 0, result.State.ElapsedSeconds)
	assert.True(t, result.State.PomodoroEnabled)

	goal, apiErr := f.goals.Get(ctx, f.userID, goalID)
	require.Nil(t, apiErr)
	assert.Equal(t, 1500, goal.CompletedDurationSeconds)

	sessions, apiErr := f.sessions.List(ctx, f.userID, "", 0)
	require.Nil(t, apiErr)
	require.Len(t, sessions, 1)
	assert.Equal(t, goalID, sessions[0].GoalID)
}

func TestTimerServiceRehydratesAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goalID := f.createGoal(t, "History", 3600)

	_, apiErr := f.timers.Start(ctx, f.userID, goalID)
	require.Nil(t, apiErr)
	f.clock.Advance(90 * time.Second)

	// A new service over the same store stands in for a restarted process.
	restarted := NewTimerService(TimerServiceDeps{
		KV:       f.timers.kv,
		Goals:    f.timers.goalRepo,
		Sessions: f.timers.sessionRepo,
		Progress: f.timers.progressRepo,
		Clock:    f.clock,
	})
	defer restarted.Close()

	state, apiErr := restarted.GetState(ctx, f.userID)
	require.Nil(t, apiErr)
	assert.True(t, state.IsRunning)
	assert.Equal(t, 90, state.ElapsedSeconds)
	assert.Equal(t, goalID, state.GoalID)
}

func TestTimerServiceErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, apiErr := f.timers.Start(ctx, f.userID, "  ")
	require.NotNil(t, apiErr)
	assert.Equal(t, apperrors.CodeNoGoalSelected, apiErr.Code)

	_, apiErr = f.timers.Start(ctx, f.userID, "unknown")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, apiErr = f.timers.UpdateSettings(ctx, f.userID, model.PomodoroSettings{FocusSeconds: 10})
	require.NotNil(t, apiErr)
	assert.Equal(t, apperrors.CodeInvalidPomodoroSettings, apiErr.Code)

	result, apiErr := f.timers.Stop(ctx, f.userID)
	require.Nil(t, apiErr)
	assert.Nil(t, result.Session)
}

func TestTimerServiceSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings, apiErr := f.timers.GetSettings(ctx, f.userID)
	require.Nil(t, apiErr)
	assert.Equal(t, model.DefaultPomodoroSettings(), *settings)

	custom := model.PomodoroSettings{FocusSeconds: 60, BreakSeconds: 30, LongBreakSeconds: 120, CyclesBeforeLongBreak: 2}
	_, apiErr = f.timers.UpdateSettings(ctx, f.userID, custom)
	require.Nil(t, apiErr)

	settings, apiErr = f.timers.GetSettings(ctx, f.userID)
	require.Nil(t, apiErr)
	assert.Equal(t, custom, *settings)
}

func TestGoalDeleteResetsAttributedTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goalID := f.createGoal(t, "Chemistry", 600)

	_, apiErr := f.timers.Start(ctx, f.userID, goalID)
	require.Nil(t, apiErr)
	f.clock.Advance(45 * time.Second)

	require.Nil(t, f.goals.Delete(ctx, f.userID, goalID))

	state, apiErr := f.timers.GetState(ctx, f.userID)
	require.Nil(t, apiErr)
	assert.False(t, state.IsRunning)
	assert.Zero(t, state.ElapsedSeconds)
	assert.Empty(t, state.GoalID)

	apiErr = f.goals.Delete(ctx, f.userID, goalID)
	require.NotNil(t, apiErr)
	assert.Equal(t, apperrors.CodeGoalNotFound, apiErr.Code)
}

func TestGoalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input GoalInput
		code  string
	}{
		{name: "blank title", input: GoalInput{Title: " ", DurationSeconds: 60}, code: "invalid_title"},
		{name: "zero target", input: GoalInput{Title: "Art", DurationSeconds: 0}, code: "invalid_duration"},
		{name: "bad weekday", input: GoalInput{Title: "Art", DurationSeconds: 60, ScheduleDays: []int{7}}, code: "invalid_schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, apiErr := f.goals.Create(ctx, f.userID, tt.input)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestGoalScheduledToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The fixture clock is a Wednesday.
	goal, apiErr := f.goals.Create(ctx, f.userID, GoalInput{Title: "Piano", DurationSeconds: 60, ScheduleDays: []int{3, 3, 5}})
	require.Nil(t, apiErr)
	assert.True(t, goal.ScheduledToday)
	assert.Equal(t, []time.Weekday{time.Wednesday, time.Friday}, goal.ScheduleDays)

	goal, apiErr = f.goals.Update(ctx, f.userID, goal.ID, GoalInput{Title: "Piano", DurationSeconds: 60, ScheduleDays: []int{1}})
	require.Nil(t, apiErr)
	assert.False(t, goal.ScheduledToday)
}

func TestSessionDeleteWithdrawsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goalID := f.createGoal(t, "Biology", 3600)

	result := f.run(t, goalID, 10*time.Minute)
	require.NotNil(t, result.Session)

	deleted, apiErr := f.sessions.Delete(ctx, f.userID, result.Session.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, 600, deleted.DurationSeconds)

	goal, apiErr := f.goals.Get(ctx, f.userID, goalID)
	require.Nil(t, apiErr)
	assert.Zero(t, goal.CompletedDurationSeconds)

	stats, apiErr := f.stats.Daily(ctx, f.userID, 1)
	require.Nil(t, apiErr)
	assert.Zero(t, stats.TodaySeconds)
	assert.Zero(t, stats.StreakDays)

	_, apiErr = f.sessions.Delete(ctx, f.userID, result.Session.ID)
	require.NotNil(t, apiErr)
	assert.Equal(t, apperrors.CodeSessionNotFound, apiErr.Code)
}

func TestSessionListFiltersByGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	math := f.createGoal(t, "Math", 3600)
	art := f.createGoal(t, "Art", 3600)

	f.run(t, math, time.Minute)
	f.run(t, art, 2*time.Minute)
	f.run(t, math, 3*time.Minute)

	all, apiErr := f.sessions.List(ctx, f.userID, "", 500)
	require.Nil(t, apiErr)
	assert.Len(t, all, 3)

	onlyMath, apiErr := f.sessions.List(ctx, f.userID, math, 10)
	require.Nil(t, apiErr)
	require.Len(t, onlyMath, 2)
	for _, session := range onlyMath {
		assert.Equal(t, math, session.GoalID)
	}
}

func TestDailyStatsStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	goalID := f.createGoal(t, "Reading", 36000)

	// Two consecutive days ending yesterday.
	f.clock.Set(time.Date(2026, time.March, 2, 20, 0, 0, 0, time.UTC))
	f.run(t, goalID, 5*time.Minute)
	f.clock.Set(time.Date(2026, time.March, 3, 20, 0, 0, 0, time.UTC))
	f.run(t, goalID, 10*time.Minute)

	f.clock.Set(time.Date(2026, time.March, 4, 8, 0, 0, 0, time.UTC))
	stats, apiErr := f.stats.Daily(ctx, f.userID, 0)
	require.Nil(t, apiErr)
	assert.Equal(t, 2, stats.StreakDays)
	assert.Zero(t, stats.TodaySeconds)
	require.Len(t, stats.Days, defaultStatsDays)
	assert.Equal(t, "2026-03-04", stats.Days[len(stats.Days)-1].Day)
	assert.Equal(t, 600, stats.Days[len(stats.Days)-2].Seconds)
	assert.Equal(t, 300, stats.Days[len(stats.Days)-3].Seconds)
	assert.Equal(t, "UTC", stats.Timezone)

	f.run(t, goalID, time.Minute)
	stats, apiErr = f.stats.Daily(ctx, f.userID, 2)
	require.Nil(t, apiErr)
	assert.Equal(t, 3, stats.StreakDays)
	assert.Equal(t, 60, stats.TodaySeconds)
	require.Len(t, stats.Today, 1)
	assert.Equal(t, goalID, stats.Today[0].GoalID)
}

func TestStreak(t *testing.T) {
	today := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		active []string
		want   int
	}{
		{name: "none", active: nil, want: 0},
		{name: "today only", active: []string{"2026-03-04"}, want: 1},
		{name: "ends yesterday", active: []string{"2026-03-03", "2026-03-02"}, want: 2},
		{name: "gap", active: []string{"2026-03-04", "2026-03-02"}, want: 1},
		{name: "stale", active: []string{"2026-03-01"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, streak(tt.active, today))
		})
	}
}

func TestEnsureLocalUserIsIdempotent(t *testing.T) {
	f := newFixture(t)

	again, apiErr := f.auth.EnsureLocalUser(context.Background(), "LOCAL@studytimer")
	require.Nil(t, apiErr)
	assert.Equal(t, f.userID, again.ID)
}
