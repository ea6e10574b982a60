package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"studytimer/backend/internal/clock"
	apperrors "studytimer/backend/internal/errors"
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/repository"
)

// GoalTimerResetter resets a user's timer when the goal it tracks goes away.
type GoalTimerResetter interface {
	DiscardGoal(ctx context.Context, userID, goalID string)
}

type GoalService struct {
	repo     *repository.GoalRepository
	timers   GoalTimerResetter
	clock    clock.Clock
	location *time.Location
}

type GoalInput struct {
	Title           string
	DurationSeconds int
	ScheduleDays    []int
}

type GoalView struct {
	model.Goal
	ProgressPercent int  `json:"progressPercent"`
	ScheduledToday  bool `json:"scheduledToday"`
}

func NewGoalService(repo *repository.GoalRepository, timers GoalTimerResetter, clk clock.Clock, location *time.Location) *GoalService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if location == nil {
		location = time.UTC
	}
	return &GoalService{repo: repo, timers: timers, clock: clk, location: location}
}

func (s *GoalService) Create(ctx context.Context, userID string, input GoalInput) (*GoalView, *apperrors.APIError) {
	days, apiErr := validateGoalInput(input)
	if apiErr != nil {
		return nil, apiErr
	}

	now := s.clock.Now().UTC()
	goal := model.Goal{
		ID:              uuid.NewString(),
		UserID:          userID,
		Title:           strings.TrimSpace(input.Title),
		DurationSeconds: input.DurationSeconds,
		ScheduleDays:    days,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, &goal); err != nil {
		return nil, apperrors.Internal("failed to create goal")
	}

	view := s.toView(goal)
	return &view, nil
}

func (s *GoalService) List(ctx context.Context, userID string) ([]GoalView, *apperrors.APIError) {
	goals, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list goals")
	}

	views := make([]GoalView, 0, len(goals))
	for _, goal := range goals {
		views = append(views, s.toView(goal))
	}
	return views, nil
}

func (s *GoalService) Get(ctx context.Context, userID, goalID string) (*GoalView, *apperrors.APIError) {
	goal, apiErr := s.get(ctx, userID, goalID)
	if apiErr != nil {
		return nil, apiErr
	}
	view := s.toView(*goal)
	return &view, nil
}

func (s *GoalService) Update(ctx context.Context, userID, goalID string, input GoalInput) (*GoalView, *apperrors.APIError) {
	days, apiErr := validateGoalInput(input)
	if apiErr != nil {
		return nil, apiErr
	}

	goal, apiErr := s.get(ctx, userID, goalID)
	if apiErr != nil {
		return nil, apiErr
	}

	goal.Title = strings.TrimSpace(input.Title)
	goal.DurationSeconds = input.DurationSeconds
	goal.ScheduleDays = days
	goal.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, goal); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeGoalNotFound, "goal not found")
		}
		return nil, apperrors.Internal("failed to update goal")
	}

	view := s.toView(*goal)
	return &view, nil
}

// Delete removes the goal with its sessions and daily progress. A timer
// attributed to it is reset so its time is not recorded against nothing.
func (s *GoalService) Delete(ctx context.Context, userID, goalID string) *apperrors.APIError {
	err := s.repo.Delete(ctx, userID, goalID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(apperrors.CodeGoalNotFound, "goal not found")
	}
	if err != nil {
		return apperrors.Internal("failed to delete goal")
	}

	if s.timers != nil {
		s.timers.DiscardGoal(ctx, userID, goalID)
	}
	return nil
}

func (s *GoalService) get(ctx context.Context, userID, goalID string) (*model.Goal, *apperrors.APIError) {
	goal, err := s.repo.Get(ctx, userID, goalID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.CodeGoalNotFound, "goal not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get goal")
	}
	return goal, nil
}

func (s *GoalService) toView(goal model.Goal) GoalView {
	today := s.clock.Now().In(s.location).Weekday()
	return GoalView{
		Goal:            goal,
		ProgressPercent: goal.ProgressPercent(),
		ScheduledToday:  goal.ScheduledOn(today),
	}
}

func validateGoalInput(input GoalInput) ([]time.Weekday, *apperrors.APIError) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.BadRequest("invalid_title", "title is required")
	}
	if input.DurationSeconds <= 0 {
		return nil, apperrors.BadRequest("invalid_duration", "durationSeconds must be positive")
	}

	seen := make(map[int]struct{}, len(input.ScheduleDays))
	days := make([]time.Weekday, 0, len(input.ScheduleDays))
	for _, day := range input.ScheduleDays {
		if day < 0 || day > 6 {
			return nil, apperrors.BadRequest("invalid_schedule", "scheduleDays must be weekdays 0 (Sunday) to 6")
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, time.Weekday(day))
	}
	return days, nil
}
