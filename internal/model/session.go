package model

import "time"

type StudySession struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	GoalID          string    `json:"goalId"`
	DurationSeconds int       `json:"durationSeconds"`
	OccurredAt      time.Time `json:"occurredAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

type DailyProgress struct {
	GoalID  string `json:"goalId,omitempty"`
	Day     string `json:"day"`
	Seconds int    `json:"seconds"`
}
