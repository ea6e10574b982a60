// Package recorder turns a finished timer run into a stored study session and
// a progress update.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/model"
)

var ErrInvalidRun = errors.New("invalid study run")

type GoalStore interface {
	IncrementCompletedDuration(ctx context.Context, goalID string, deltaSeconds int) (*model.Goal, error)
}

type SessionStore interface {
	InsertSession(ctx context.Context, session *model.StudySession) (string, error)
}

// ProgressTracker maintains per-day totals derived from recorded sessions.
type ProgressTracker interface {
	AddProgress(ctx context.Context, goalID string, day time.Time, seconds int) error
}

type SessionRecorder struct {
	userID   string
	goals    GoalStore
	sessions SessionStore
	progress ProgressTracker
	location *time.Location
}

// New builds a recorder for one user. progress may be nil.
func New(userID string, goals GoalStore, sessions SessionStore, progress ProgressTracker, location *time.Location) *SessionRecorder {
	if location == nil {
		location = time.UTC
	}
	return &SessionRecorder{
		userID:   userID,
		goals:    goals,
		sessions: sessions,
		progress: progress,
		location: location,
	}
}

// Record credits durationSeconds to the goal and stores the session. If the
// session insert fails after the goal was credited, the credit is reverted so
// a retried stop does not count the run twice.
func (r *SessionRecorder) Record(ctx context.Context, goalID string, durationSeconds int, occurredAt time.Time) (*model.StudySession, error) {
	if strings.TrimSpace(goalID) == "" {
		return nil, fmt.Errorf("%w: goal is required", ErrInvalidRun)
	}
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidRun)
	}

	if _, err := r.goals.IncrementCompletedDuration(ctx, goalID, durationSeconds); err != nil {
		return nil, fmt.Errorf("increment goal duration: %w", err)
	}

	occurredAt = occurredAt.UTC()
	session := &model.StudySession{
		ID:              uuid.NewString(),
		UserID:          r.userID,
		GoalID:          goalID,
		DurationSeconds: durationSeconds,
		OccurredAt:      occurredAt,
		CreatedAt:       occurredAt,
	}
	id, err := r.sessions.InsertSession(ctx, session)
	if err != nil {
		if _, revertErr := r.goals.IncrementCompletedDuration(ctx, goalID, -durationSeconds); revertErr != nil {
			logging.Logger.Error("revert goal duration after failed session insert",
				"goal_id", goalID,
				"duration_seconds", durationSeconds,
				"error", revertErr,
			)
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}
	if id != "" {
		session.ID = id
	}

	if r.progress != nil {
		day := occurredAt.In(r.location)
		if err := r.progress.AddProgress(ctx, goalID, day, durationSeconds); err != nil {
			// The session is stored; daily totals can be rebuilt from sessions.
			logging.Logger.Warn("update daily progress",
				"goal_id", goalID,
				"session_id", session.ID,
				"error", err,
			)
		}
	}

	logging.Logger.Info("study session recorded",
		"user_id", r.userID,
		"goal_id", goalID,
		"session_id", session.ID,
		"duration_seconds", durationSeconds,
	)
	return session, nil
}
