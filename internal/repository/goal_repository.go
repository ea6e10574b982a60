package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"studytimer/backend/internal/model"
)

type GoalRepository struct {
	db *sql.DB
}

func NewGoalRepository(db *sql.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

const goalColumns = `id, user_id, title, duration_seconds, completed_duration_seconds,
		        schedule_days, created_at, updated_at`

func (r *GoalRepository) Create(ctx context.Context, goal *model.Goal) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO goals (
			id, user_id, title, duration_seconds, completed_duration_seconds,
			schedule_days, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.ID,
		goal.UserID,
		goal.Title,
		goal.DurationSeconds,
		goal.CompletedDurationSeconds,
		encodeWeekdays(goal.ScheduleDays),
		formatTime(goal.CreatedAt),
		formatTime(goal.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func (r *GoalRepository) Get(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`,
		goalID,
		userID,
	)
	return scanGoal(row)
}

func (r *GoalRepository) List(ctx context.Context, userID string) ([]model.Goal, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	goals := make([]model.Goal, 0)
	for rows.Next() {
		goal, scanErr := scanGoal(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		goals = append(goals, *goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return goals, nil
}

func (r *GoalRepository) Update(ctx context.Context, goal *model.Goal) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE goals
		 SET title = ?,
		     duration_seconds = ?,
		     schedule_days = ?,
		     updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		goal.Title,
		goal.DurationSeconds,
		encodeWeekdays(goal.ScheduleDays),
		formatTime(goal.UpdatedAt),
		goal.ID,
		goal.UserID,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return expectAffected(result, "update goal")
}

func (r *GoalRepository) Delete(ctx context.Context, userID, goalID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, goalID, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return expectAffected(result, "delete goal")
}

// IncrementCompletedDuration adds deltaSeconds (which may be negative) to the
// goal's completed total in one statement, never going below zero.
func (r *GoalRepository) IncrementCompletedDuration(ctx context.Context, userID, goalID string, deltaSeconds int) (*model.Goal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := incrementGoalTx(ctx, tx, userID, goalID, deltaSeconds, time.Now()); err != nil {
		return nil, err
	}

	goal, err := scanGoal(tx.QueryRowContext(
		ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`,
		goalID,
		userID,
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit goal increment: %w", err)
	}
	return goal, nil
}

func incrementGoalTx(ctx context.Context, tx *sql.Tx, userID, goalID string, deltaSeconds int, now time.Time) error {
	result, err := tx.ExecContext(
		ctx,
		`UPDATE goals
		 SET completed_duration_seconds = MAX(0, completed_duration_seconds + ?),
		     updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		deltaSeconds,
		formatTime(now),
		goalID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("increment goal duration: %w", err)
	}
	return expectAffected(result, "increment goal duration")
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGoal(s scanner) (*model.Goal, error) {
	goal := model.Goal{}
	var scheduleDays string
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&goal.ID,
		&goal.UserID,
		&goal.Title,
		&goal.DurationSeconds,
		&goal.CompletedDurationSeconds,
		&scheduleDays,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan goal: %w", err)
	}

	if goal.ScheduleDays, err = decodeWeekdays(scheduleDays); err != nil {
		return nil, fmt.Errorf("parse goal schedule_days: %w", err)
	}
	if goal.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse goal created_at: %w", err)
	}
	if goal.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse goal updated_at: %w", err)
	}
	return &goal, nil
}

func encodeWeekdays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, day := range days {
		parts = append(parts, strconv.Itoa(int(day)))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(raw string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, 7)
	if strings.TrimSpace(raw) == "" {
		return days, nil
	}
	for _, part := range strings.Split(raw, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if value < 0 || value > 6 {
			return nil, fmt.Errorf("weekday %d out of range", value)
		}
		days = append(days, time.Weekday(value))
	}
	return days, nil
}
