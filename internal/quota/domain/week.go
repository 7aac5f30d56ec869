package domain

import "time"

// WeekStartAt returns the Monday 00:00:00 UTC boundary for the week
// containing t. Weeks run Monday through Sunday, so a Sunday reference
// walks back six days to the preceding Monday.
func WeekStartAt(t time.Time) time.Time {
	t = t.UTC()
	var back int
	if t.Weekday() == time.Sunday {
		back = 6
	} else {
		back = int(t.Weekday()) - 1
	}
	monday := t.AddDate(0, 0, -back)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}
