package domain

import "time"

// CalendarEvent is the calendar-side representation of a synced record.
// The record identifier is not a first-class field of the calendar store;
// it lives as a trailing "ID:<key>" token inside Title.
type CalendarEvent struct {
	ID      string
	Title   string
	Start   time.Time
	End     time.Time
	Updated time.Time
}
