package repository

import "time"

const (
	dayLayout = "2006-01-02"

	// timestampLayout always writes nine fractional digits so stored values
	// sort and compare as text in time order.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse(time.RFC3339, raw)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}

// FormatDay renders the calendar day of t in its own location.
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}
