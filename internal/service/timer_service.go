package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"studytimer/backend/internal/clock"
	apperrors "studytimer/backend/internal/errors"
	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/recorder"
	"studytimer/backend/internal/repository"
	"studytimer/backend/internal/timer"
)

// NotifierFactory hands out the phase notifier of one user.
type NotifierFactory interface {
	Notifier(userID string) timer.PhaseNotifier
}

// TimerService owns one WallClockTimer per user. Timers are created on first
// use and rehydrated from the user's key-value scope, so a run started before
// a restart keeps its elapsed time.
type TimerService struct {
	mu     sync.Mutex
	timers map[string]*timer.WallClockTimer

	kv           *repository.KVRepository
	goalRepo     *repository.GoalRepository
	sessionRepo  *repository.SessionRepository
	progressRepo *repository.ProgressRepository
	notifiers    NotifierFactory
	clock        clock.Clock
	location     *time.Location
	tickInterval time.Duration
}

type TimerServiceDeps struct {
	KV           *repository.KVRepository
	Goals        *repository.GoalRepository
	Sessions     *repository.SessionRepository
	Progress     *repository.ProgressRepository
	Notifiers    NotifierFactory
	Clock        clock.Clock
	Location     *time.Location
	TickInterval time.Duration
}

type StopResult struct {
	Session *model.StudySession `json:"session,omitempty"`
	State   timer.Snapshot      `json:"state"`
}

func NewTimerService(deps TimerServiceDeps) *TimerService {
	if deps.Clock == nil {
		deps.Clock = clock.NewReal()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &TimerService{
		timers:       make(map[string]*timer.WallClockTimer),
		kv:           deps.KV,
		goalRepo:     deps.Goals,
		sessionRepo:  deps.Sessions,
		progressRepo: deps.Progress,
		notifiers:    deps.Notifiers,
		clock:        deps.Clock,
		location:     deps.Location,
		tickInterval: deps.TickInterval,
	}
}

func (s *TimerService) GetState(ctx context.Context, userID string) (*timer.Snapshot, *apperrors.APIError) {
	snap := s.timerFor(ctx, userID).Tick(ctx)
	return &snap, nil
}

func (s *TimerService) Start(ctx context.Context, userID, goalID string) (*timer.Snapshot, *apperrors.APIError) {
	goalID = strings.TrimSpace(goalID)
	if goalID == "" {
		return nil, apperrors.BadRequest(apperrors.CodeNoGoalSelected, "select a goal before starting the timer")
	}

	_, err := s.goalRepo.Get(ctx, userID, goalID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.CodeGoalNotFound, "goal not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get goal")
	}

	snap, err := s.timerFor(ctx, userID).Start(ctx, goalID)
	if errors.Is(err, timer.ErrNoGoalSelected) {
		return nil, apperrors.BadRequest(apperrors.CodeNoGoalSelected, "select a goal before starting the timer")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to start timer")
	}
	return &snap, nil
}

func (s *TimerService) Pause(ctx context.Context, userID string) (*timer.Snapshot, *apperrors.APIError) {
	snap := s.timerFor(ctx, userID).Pause(ctx)
	return &snap, nil
}

func (s *TimerService) Reset(ctx context.Context, userID string) (*timer.Snapshot, *apperrors.APIError) {
	snap := s.timerFor(ctx, userID).Reset(ctx)
	return &snap, nil
}

func (s *TimerService) Stop(ctx context.Context, userID string) (*StopResult, *apperrors.APIError) {
	session, snap, err := s.timerFor(ctx, userID).Stop(ctx)
	switch {
	case errors.Is(err, timer.ErrRecordingFailed):
		return nil, apperrors.BadGateway(
			apperrors.CodeRecordingFailed,
			"study session could not be recorded, try stopping again",
			map[string]interface{}{"state": snap},
		)
	case errors.Is(err, timer.ErrNoGoalSelected):
		return nil, apperrors.BadRequest(apperrors.CodeNoGoalSelected, "timer has no goal")
	case err != nil:
		return nil, apperrors.Internal("failed to stop timer")
	}
	return &StopResult{Session: session, State: snap}, nil
}

func (s *TimerService) Visible(ctx context.Context, userID string) (*timer.Snapshot, *apperrors.APIError) {
	snap := s.timerFor(ctx, userID).Visible(ctx)
	return &snap, nil
}

func (s *TimerService) SetPomodoroEnabled(ctx context.Context, userID string, enabled bool) (*timer.Snapshot, *apperrors.APIError) {
	snap := s.timerFor(ctx, userID).SetPomodoroEnabled(ctx, enabled)
	return &snap, nil
}

func (s *TimerService) GetSettings(ctx context.Context, userID string) (*model.PomodoroSettings, *apperrors.APIError) {
	settings := s.timerFor(ctx, userID).PomodoroSettings(ctx)
	return &settings, nil
}

func (s *TimerService) UpdateSettings(ctx context.Context, userID string, settings model.PomodoroSettings) (*timer.Snapshot, *apperrors.APIError) {
	snap, err := s.timerFor(ctx, userID).UpdatePomodoroSettings(ctx, settings)
	if errors.Is(err, model.ErrInvalidPomodoroSettings) {
		return nil, apperrors.BadRequest(apperrors.CodeInvalidPomodoroSettings, err.Error())
	}
	if err != nil {
		return nil, apperrors.Internal("failed to update settings")
	}
	return &snap, nil
}

// DiscardGoal resets the user's timer when it is attributed to goalID.
func (s *TimerService) DiscardGoal(ctx context.Context, userID, goalID string) {
	t := s.timerFor(ctx, userID)
	if t.Tick(ctx).GoalID == goalID {
		t.Reset(ctx)
	}
}

// UserTimer exposes the timer of userID to in-process clients such as the
// terminal UI.
func (s *TimerService) UserTimer(ctx context.Context, userID string) *timer.WallClockTimer {
	return s.timerFor(ctx, userID)
}

// Close stops every background tick.
func (s *TimerService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Close()
	}
}

func (s *TimerService) timerFor(ctx context.Context, userID string) *timer.WallClockTimer {
	s.mu.Lock()
	t, ok := s.timers[userID]
	if !ok {
		var opts []timer.Option
		if s.notifiers != nil {
			opts = append(opts, timer.WithNotifier(s.notifiers.Notifier(userID)))
		}
		if s.tickInterval > 0 {
			opts = append(opts, timer.WithTickInterval(s.tickInterval))
		}
		rec := recorder.New(
			userID,
			userGoalStore{repo: s.goalRepo, userID: userID},
			userSessionStore{repo: s.sessionRepo},
			userProgressTracker{repo: s.progressRepo, userID: userID},
			s.location,
		)
		t = timer.New(s.kv.Scope(userID), s.clock, rec, opts...)
		s.timers[userID] = t
	}
	s.mu.Unlock()

	if !ok {
		snap := t.Restore(ctx)
		if snap.IsRunning {
			logging.Logger.Info("restored running timer", "user_id", userID, "goal_id", snap.GoalID, "elapsed_seconds", snap.ElapsedSeconds)
		}
	}
	return t
}

type userGoalStore struct {
	repo   *repository.GoalRepository
	userID string
}

func (g userGoalStore) IncrementCompletedDuration(ctx context.Context, goalID string, deltaSeconds int) (*model.Goal, error) {
	return g.repo.IncrementCompletedDuration(ctx, g.userID, goalID, deltaSeconds)
}

type userSessionStore struct {
	repo *repository.SessionRepository
}

func (s userSessionStore) InsertSession(ctx context.Context, session *model.StudySession) (string, error) {
	if err := s.repo.Insert(ctx, session); err != nil {
		return "", err
	}
	return session.ID, nil
}

type userProgressTracker struct {
	repo   *repository.ProgressRepository
	userID string
}

func (p userProgressTracker) AddProgress(ctx context.Context, goalID string, day time.Time, seconds int) error {
	return p.repo.Add(ctx, p.userID, goalID, day, seconds)
}
