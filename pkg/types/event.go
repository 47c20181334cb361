// Package types defines core data structures for Sofía
package types

// Event is a single calendar entry. Dates are ISO "YYYY-MM-DD" strings
// and times are 24-hour "HH:MM" strings; both are normalized before an
// event reaches the store.
type Event struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Date      string `json:"date" db:"date"`
	StartTime string `json:"start_time" db:"start_time"`
	EndTime   string `json:"end_time" db:"end_time"`
}

// EventFields carries the subset of event fields to change in an update.
// Nil pointers mean "leave unchanged".
type EventFields struct {
	Name      *string `json:"name,omitempty"`
	Date      *string `json:"date,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

// Overlaps reports whether the [start, end) interval collides with the
// event's own interval on the same date. Back-to-back events sharing an
// exact boundary time do not collide.
func (e Event) Overlaps(date, start, end string) bool {
	if e.Date != date {
		return false
	}
	return start < e.EndTime && end > e.StartTime
}
