package domain

import "time"

// TimeRecord represents a remote time-tracking record in the domain.
type TimeRecord struct {
	ID          string // empty when the remote record carries no id
	Description string
	WorkspaceID string
	ProjectID   string
	Start       time.Time
	Stop        *time.Time // nil means the entry is still running
}

// Completed reports whether the record has a stop time and both timestamps
// parsed to valid instants. Records failing this are skipped by the sync.
func (r TimeRecord) Completed() bool {
	return r.Stop != nil && !r.Start.IsZero() && !r.Stop.IsZero()
}
