package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studytimer/backend/internal/model"
)

// ProgressRepository keeps per-goal, per-day study totals. Days are calendar
// dates rendered by the caller in its configured zone.
type ProgressRepository struct {
	db *sql.DB
}

func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) Add(ctx context.Context, userID, goalID string, day time.Time, seconds int) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO goal_daily_progress (user_id, goal_id, day, seconds)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(goal_id, day) DO UPDATE SET
		     seconds = goal_daily_progress.seconds + excluded.seconds`,
		userID,
		goalID,
		FormatDay(day),
		seconds,
	)
	if err != nil {
		return fmt.Errorf("add daily progress: %w", err)
	}
	return nil
}

// DailyTotals sums all goals per day for days in [from, to].
func (r *ProgressRepository) DailyTotals(ctx context.Context, userID string, from, to time.Time) ([]model.DailyProgress, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT day, SUM(seconds)
		 FROM goal_daily_progress
		 WHERE user_id = ? AND day >= ? AND day <= ?
		 GROUP BY day
		 ORDER BY day ASC`,
		userID,
		FormatDay(from),
		FormatDay(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list daily totals: %w", err)
	}
	return scanProgressRows(rows, false)
}

// ForDay returns the per-goal totals of one day.
func (r *ProgressRepository) ForDay(ctx context.Context, userID string, day time.Time) ([]model.DailyProgress, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT goal_id, day, seconds
		 FROM goal_daily_progress
		 WHERE user_id = ? AND day = ? AND seconds > 0
		 ORDER BY goal_id ASC`,
		userID,
		FormatDay(day),
	)
	if err != nil {
		return nil, fmt.Errorf("list day progress: %w", err)
	}
	return scanProgressRows(rows, true)
}

// ActiveDays lists, newest first, the days up to and including to that have
// any recorded time.
func (r *ProgressRepository) ActiveDays(ctx context.Context, userID string, to time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT day
		 FROM goal_daily_progress
		 WHERE user_id = ? AND day <= ?
		 GROUP BY day
		 HAVING SUM(seconds) > 0
		 ORDER BY day DESC`,
		userID,
		FormatDay(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list active days: %w", err)
	}
	defer rows.Close()

	days := make([]string, 0)
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan active day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active days: %w", err)
	}
	return days, nil
}

func scanProgressRows(rows *sql.Rows, withGoal bool) ([]model.DailyProgress, error) {
	defer rows.Close()

	items := make([]model.DailyProgress, 0)
	for rows.Next() {
		var item model.DailyProgress
		var err error
		if withGoal {
			err = rows.Scan(&item.GoalID, &item.Day, &item.Seconds)
		} else {
			err = rows.Scan(&item.Day, &item.Seconds)
		}
		if err != nil {
			return nil, fmt.Errorf("scan daily progress: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily progress: %w", err)
	}
	return items, nil
}
