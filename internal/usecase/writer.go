package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toggl-calsync/internal/ports"
)

// ErrInvalidTimestamp marks a record whose timestamps do not form a valid
// event; the record is skipped, never silently dropped into the calendar.
var ErrInvalidTimestamp = errors.New("invalid event timestamp")

// Writer creates new calendar events. Creation is deliberately not retried:
// an ambiguous failure after a create may have landed, and a blind retry
// would duplicate the event.
type Writer struct {
	Cal ports.Calendar
}

// Create validates the instants and issues a single create call.
func (w *Writer) Create(ctx context.Context, title string, start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start=%s end=%s", ErrInvalidTimestamp, start, end)
	}
	return w.Cal.CreateEvent(ctx, title, start, end)
}
