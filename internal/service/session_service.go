package service

import (
	"context"
	"errors"
	"time"

	apperrors "studytimer/backend/internal/errors"
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/repository"
)

type SessionService struct {
	repo     *repository.SessionRepository
	location *time.Location
}

func NewSessionService(repo *repository.SessionRepository, location *time.Location) *SessionService {
	if location == nil {
		location = time.UTC
	}
	return &SessionService{repo: repo, location: location}
}

func (s *SessionService) List(ctx context.Context, userID, goalID string, limit int) ([]model.StudySession, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sessions, err := s.repo.List(ctx, userID, repository.SessionFilter{GoalID: goalID, Limit: limit})
	if err != nil {
		return nil, apperrors.Internal("failed to get history")
	}
	return sessions, nil
}

func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*model.StudySession, *apperrors.APIError) {
	session, err := s.repo.Get(ctx, userID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.CodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get session")
	}
	return session, nil
}

// Delete removes a recorded session and withdraws its time from the goal.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) (*model.StudySession, *apperrors.APIError) {
	session, err := s.repo.Delete(ctx, userID, sessionID, s.location)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.CodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to delete session")
	}
	return session, nil
}
