package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"studytimer/backend/internal/model"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, user_id, goal_id, duration_seconds, occurred_at, created_at`

func (r *SessionRepository) Insert(ctx context.Context, session *model.StudySession) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO study_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.GoalID,
		session.DurationSeconds,
		formatTime(session.OccurredAt),
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, userID, sessionID string) (*model.StudySession, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM study_sessions WHERE id = ? AND user_id = ?`,
		sessionID,
		userID,
	)
	return scanSession(row)
}

type SessionFilter struct {
	GoalID string
	Since  *time.Time
	Limit  int
}

func (r *SessionRepository) List(ctx context.Context, userID string, filter SessionFilter) ([]model.StudySession, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + sessionColumns + ` FROM study_sessions WHERE user_id = ?`)
	args := []interface{}{userID}
	if filter.GoalID != "" {
		query.WriteString(` AND goal_id = ?`)
		args = append(args, filter.GoalID)
	}
	if filter.Since != nil {
		query.WriteString(` AND occurred_at >= ?`)
		args = append(args, formatTime(*filter.Since))
	}
	query.WriteString(` ORDER BY occurred_at DESC`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.StudySession, 0)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session and withdraws its duration from the goal total and
// from the daily total of the day it occurred on, in one transaction.
func (r *SessionRepository) Delete(ctx context.Context, userID, sessionID string, location *time.Location) (*model.StudySession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	session, err := scanSession(tx.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM study_sessions WHERE id = ? AND user_id = ?`,
		sessionID,
		userID,
	))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_sessions WHERE id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}

	if err := incrementGoalTx(ctx, tx, userID, session.GoalID, -session.DurationSeconds, time.Now()); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if location == nil {
		location = time.UTC
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE goal_daily_progress
		 SET seconds = MAX(0, seconds - ?)
		 WHERE goal_id = ? AND day = ?`,
		session.DurationSeconds,
		session.GoalID,
		FormatDay(session.OccurredAt.In(location)),
	); err != nil {
		return nil, fmt.Errorf("withdraw daily progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session delete: %w", err)
	}
	return session, nil
}

func scanSession(s scanner) (*model.StudySession, error) {
	session := model.StudySession{}
	var occurredAt string
	var createdAt string
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&session.GoalID,
		&session.DurationSeconds,
		&occurredAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if session.OccurredAt, err = parseTime(occurredAt); err != nil {
		return nil, fmt.Errorf("parse session occurred_at: %w", err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	return &session, nil
}
