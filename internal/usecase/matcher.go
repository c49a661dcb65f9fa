package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/WatchBeam/clock"

	"toggl-calsync/internal/domain"
	"toggl-calsync/internal/ports"
	"toggl-calsync/internal/retry"
)

// MatchOutcome is the per-record decision of the matcher.
type MatchOutcome int

const (
	// MatchMissing means no usable representation exists; the caller must
	// create one. Also reported after a failed update so the caller can
	// attempt a fresh create (an accepted trade-off that can leave a
	// duplicate until the next dedupe pass).
	MatchMissing MatchOutcome = iota

	// MatchUpToDate means an event exists and nothing was written.
	MatchUpToDate

	// MatchUpdated means an event existed and its title/time were rewritten.
	MatchUpdated

	// MatchAdopted means a legacy event without a terminated identifier
	// suffix was claimed by rewriting its title; time fields untouched.
	MatchAdopted
)

// searchLookback is the trailing window the text search covers.
const searchLookback = 3 // months

// Matcher decides, per record, whether a calendar event already represents
// it and reconciles drift. It is stateless: a pure decision function
// re-evaluated every run.
type Matcher struct {
	Log    *slog.Logger
	Cal    ports.Calendar
	Notify ports.Notifier
	Retry  retry.Policy
	Clock  clock.Clock
}

// Match looks up the record's event by its embedded identifier and brings
// it up to date. The returned error is non-nil only when the search itself
// failed; write failures are notified and folded into MatchMissing.
func (m *Matcher) Match(ctx context.Context, rec domain.TimeRecord, projectName string) (MatchOutcome, error) {
	key := domain.RecordKey(rec)
	now := m.Clock.Now().UTC()

	var events []domain.CalendarEvent
	err := m.Retry.Do(func() error {
		var serr error
		events, serr = m.Cal.SearchEvents(ctx, now.AddDate(0, -searchLookback, 0), now.AddDate(0, 0, 1), domain.KeyQuery(key))
		return serr
	})
	if err != nil {
		return MatchMissing, err
	}

	var exact, legacy *domain.CalendarEvent
	for i := range events {
		ev := &events[i]
		if domain.HasTrailingKey(ev.Title, key) {
			exact = ev
			break
		}
		if legacy == nil && domain.ContainsKeyToken(ev.Title, key) {
			legacy = ev
		}
	}

	if exact == nil && legacy == nil {
		return MatchMissing, nil
	}

	if exact == nil {
		// Adoption: terminate the suffix, leave the time fields alone.
		adopted := domain.AdoptTitle(legacy.Title, key)
		if uerr := m.update(ctx, legacy.ID, adopted, legacy.Start, legacy.End); uerr != nil {
			m.Notify.Notify(ctx, uerr, rec.ID)
			return MatchMissing, nil
		}
		m.Log.Info("adopted legacy event", slog.String("key", key), slog.String("event", legacy.ID))
		return MatchAdopted, nil
	}

	desired := domain.EventTitle(rec, projectName)
	if exact.Title == desired && exact.Start.Equal(rec.Start) && exact.End.Equal(*rec.Stop) {
		return MatchUpToDate, nil
	}
	if uerr := m.update(ctx, exact.ID, desired, rec.Start, *rec.Stop); uerr != nil {
		m.Notify.Notify(ctx, uerr, rec.ID)
		return MatchMissing, nil
	}
	m.Log.Info("updated drifted event", slog.String("key", key), slog.String("event", exact.ID))
	return MatchUpdated, nil
}

func (m *Matcher) update(ctx context.Context, eventID, title string, start, end time.Time) error {
	return m.Retry.Do(func() error {
		return m.Cal.UpdateEvent(ctx, eventID, title, start, end)
	})
}
