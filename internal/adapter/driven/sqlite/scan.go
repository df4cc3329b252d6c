package sqlite

import (
	"encoding/json"
	"fmt"
	"time"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}

// formatTime stores timestamps as UTC RFC3339 strings.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// encodeWeekly serializes the weekly commit series as a JSON array.
func encodeWeekly(weekly []int) (string, error) {
	if weekly == nil {
		weekly = []int{}
	}
	data, err := json.Marshal(weekly)
	if err != nil {
		return "", fmt.Errorf("encode weekly series: %w", err)
	}
	return string(data), nil
}

// decodeWeekly parses the stored JSON weekly commit series.
func decodeWeekly(s string) ([]int, error) {
	if s == "" {
		return []int{}, nil
	}
	var weekly []int
	if err := json.Unmarshal([]byte(s), &weekly); err != nil {
		return nil, fmt.Errorf("decode weekly series: %w", err)
	}
	if weekly == nil {
		weekly = []int{}
	}
	return weekly, nil
}
