package model

import "time"

type Goal struct {
	ID                       string         `json:"id"`
	UserID                   string         `json:"userId"`
	Title                    string         `json:"title"`
	DurationSeconds          int            `json:"durationSeconds"`
	CompletedDurationSeconds int            `json:"completedDurationSeconds"`
	ScheduleDays             []time.Weekday `json:"scheduleDays"`
	CreatedAt                time.Time      `json:"createdAt"`
	UpdatedAt                time.Time      `json:"updatedAt"`
}

// ProgressPercent is capped at 100 once the target is reached.
func (g Goal) ProgressPercent() int {
	if g.DurationSeconds <= 0 {
		return 0
	}
	percent := g.CompletedDurationSeconds * 100 / g.DurationSeconds
	if percent > 100 {
		return 100
	}
	return percent
}

// ScheduledOn reports whether the goal is planned for the given weekday. A goal
// without schedule days is planned every day.
func (g Goal) ScheduledOn(day time.Weekday) bool {
	if len(g.ScheduleDays) == 0 {
		return true
	}
	for _, d := range g.ScheduleDays {
		if d == day {
			return true
		}
	}
	return false
}
