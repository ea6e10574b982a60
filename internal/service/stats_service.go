package service

import (
	"context"
	"time"

	"studytimer/backend/internal/clock"
	apperrors "studytimer/backend/internal/errors"
	"studytimer/backend/internal/model"
	"studytimer/backend/internal/repository"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 366
)

type StatsService struct {
	repo     *repository.ProgressRepository
	clock    clock.Clock
	location *time.Location
}

// DailyStats buckets recorded time into calendar days of the configured zone.
// Days holds one entry per day, oldest first, including empty days.
type DailyStats struct {
	Timezone     string                `json:"timezone"`
	Days         []model.DailyProgress `json:"days"`
	TodaySeconds int                   `json:"todaySeconds"`
	Today        []model.DailyProgress `json:"today"`
	StreakDays   int                   `json:"streakDays"`
}

func NewStatsService(repo *repository.ProgressRepository, clk clock.Clock, location *time.Location) *StatsService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if location == nil {
		location = time.UTC
	}
	return &StatsService{repo: repo, clock: clk, location: location}
}

func (s *StatsService) Daily(ctx context.Context, userID string, days int) (*DailyStats, *apperrors.APIError) {
	if days <= 0 {
		days = defaultStatsDays
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}

	today := s.clock.Now().In(s.location)
	from := today.AddDate(0, 0, -(days - 1))

	totals, err := s.repo.DailyTotals(ctx, userID, from, today)
	if err != nil {
		return nil, apperrors.Internal("failed to load daily totals")
	}
	byDay := make(map[string]int, len(totals))
	for _, total := range totals {
		byDay[total.Day] = total.Seconds
	}

	stats := &DailyStats{
		Timezone: s.location.String(),
		Days:     make([]model.DailyProgress, 0, days),
	}
	for i := 0; i < days; i++ {
		day := repository.FormatDay(from.AddDate(0, 0, i))
		stats.Days = append(stats.Days, model.DailyProgress{Day: day, Seconds: byDay[day]})
	}
	stats.TodaySeconds = byDay[repository.FormatDay(today)]

	if stats.Today, err = s.repo.ForDay(ctx, userID, today); err != nil {
		return nil, apperrors.Internal("failed to load today's progress")
	}

	active, err := s.repo.ActiveDays(ctx, userID, today)
	if err != nil {
		return nil, apperrors.Internal("failed to load streak")
	}
	stats.StreakDays = streak(active, today)

	return stats, nil
}

// streak counts consecutive active days ending today, or ending yesterday when
// nothing has been recorded today yet. active is sorted newest first.
func streak(active []string, today time.Time) int {
	if len(active) == 0 {
		return 0
	}

	cursor := today
	if active[0] != repository.FormatDay(cursor) {
		cursor = cursor.AddDate(0, 0, -1)
	}

	count := 0
	for _, day := range active {
		if day != repository.FormatDay(cursor) {
			break
		}
		count++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return count
}
