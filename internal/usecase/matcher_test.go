package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toggl-calsync/internal/domain"
	"toggl-calsync/internal/retry"
)

func newTestMatcher(cal *fakeCalendar) (*Matcher, *fakeNotifier) {
	notify := &fakeNotifier{}
	m := &Matcher{
		Log:    discardLogger(),
		Cal:    cal,
		Notify: notify,
		Retry:  retry.Policy{Attempts: 2},
		Clock:  clock.NewMockClock(),
	}
	return m, notify
}

func TestMatchMissingWhenNoEventExists(t *testing.T) {
	cal := &fakeCalendar{}
	m, notify := newTestMatcher(cal)
	rec := completedRecord("8001", "Writing report", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Hour)

	outcome, err := m.Match(context.Background(), rec, "")
	require.NoError(t, err)
	assert.Equal(t, MatchMissing, outcome)
	assert.Empty(t, cal.updated)
	assert.Empty(t, notify.notices)
	assert.Equal(t, "ID:8001", cal.lastQuery)
}

func TestMatchUpToDateWritesNothing(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := completedRecord("8001", "Writing report", start, time.Hour)
	cal := &fakeCalendar{events: []domain.CalendarEvent{
		{ID: "ev1", Title: "Writing report : Acme ID:8001", Start: start, End: start.Add(time.Hour)},
	}}
	m, _ := newTestMatcher(cal)

	outcome, err := m.Match(context.Background(), rec, "Acme")
	require.NoError(t, err)
	assert.Equal(t, MatchUpToDate, outcome)
	assert.Empty(t, cal.updated)
}

func TestMatchUpdatesDriftedEvent(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := completedRecord("8001", "Writing report", start, 2*time.Hour)
	// Same key, stale end time and stale title.
	cal := &fakeCalendar{events: []domain.CalendarEvent{
		{ID: "ev1", Title: "Writing ID:8001", Start: start, End: start.Add(time.Hour)},
	}}
	m, _ := newTestMatcher(cal)

	outcome, err := m.Match(context.Background(), rec, "Acme")
	require.NoError(t, err)
	assert.Equal(t, MatchUpdated, outcome)
	require.Len(t, cal.updated, 1)
	up := cal.updated[0]
	assert.Equal(t, "ev1", up.ID)
	assert.Equal(t, "Writing report : Acme ID:8001", up.Title)
	assert.True(t, up.Start.Equal(start))
	assert.True(t, up.End.Equal(start.Add(2*time.Hour)))
}

func TestMatchAdoptsLegacyEvent(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := completedRecord("8001", "Writing report", start, time.Hour)
	evStart := time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{events: []domain.CalendarEvent{
		{ID: "ev1", Title: "Writing report ID:8001 (moved)", Start: evStart, End: evStart.Add(time.Hour)},
	}}
	m, _ := newTestMatcher(cal)

	outcome, err := m.Match(context.Background(), rec, "Acme")
	require.NoError(t, err)
	assert.Equal(t, MatchAdopted, outcome)
	require.Len(t, cal.updated, 1)
	up := cal.updated[0]
	assert.Equal(t, "Writing report (moved) ID:8001", up.Title)
	// Adoption claims the event without touching its time fields.
	assert.True(t, up.Start.Equal(evStart))
	assert.True(t, up.End.Equal(evStart.Add(time.Hour)))
}

func TestMatchPrefersExactOverLegacy(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := completedRecord("8001", "Writing report", start, time.Hour)
	cal := &fakeCalendar{events: []domain.CalendarEvent{
		{ID: "legacy", Title: "Writing ID:8001 extra", Start: start, End: start.Add(time.Hour)},
		{ID: "exact", Title: "Writing report ID:8001", Start: start, End: start.Add(time.Hour)},
	}}
	m, _ := newTestMatcher(cal)

	outcome, err := m.Match(context.Background(), rec, "")
	require.NoError(t, err)
	assert.Equal(t, MatchUpToDate, outcome)
	assert.Empty(t, cal.updated)
}

func TestMatchRejectsLongerKeyWithSamePrefix(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := completedRecord("8001", "Writing report", start, time.Hour)
	cal := &fakeCalendar{events: []domain.CalendarEvent{
		{ID: "ev1", Title: "Other task ID:80011", Start: start, End: start.Add(time.Hour)},
	}}
	m, _ := newTestMatcher(cal)

	outcome, err := m.Match(context.Background(), rec, "")
	require.NoError(t, err)
	assert.Equal(t, MatchMissing, outcome)
}

func TestMatchSearchFailurePropagatesAfterRetries(t *testing.T) {
	boom := errors.New("calendar unavailable")
	cal := &fakeCalendar{searchErrs: []error{boom, boom}}
	m, _ := newTestMatcher(cal)
	rec := completedRecord("8001", "Writing report", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Hour)

	outcome, err := m.Match(context.Background(), rec, "")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, MatchMissing, outcome)
	assert.Equal(t, 2, cal.searchCalls)
}

func TestMatchSearchSucceedsOnSecondAttempt(t *testing.T) {
	cal := &fakeCalendar{searchErrs: []error{errors.New("transient")}}
	m, _ := newTestMatcher(cal)
	rec := completedRecord("8001", "Writing report", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Hour)

	outcome, err := m.Match(context.Background(), rec, "")
	require.NoError(t, err)
	assert.Equal(t, MatchMissing, outcome)
	assert.Equal(t, 2, cal.searchCalls)
}

func TestMatchUpdateFailureFoldsIntoMissing(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := completedRecord("8001", "Writing report", start, 2*time.Hour)
	cal := &fakeCalendar{
		events: []domain.CalendarEvent{
			{ID: "ev1", Title: "Stale ID:8001", Start: start, End: start.Add(time.Hour)},
		},
		updateErr: errors.New("patch rejected"),
	}
	m, notify := newTestMatcher(cal)

	outcome, err := m.Match(context.Background(), rec, "")
	require.NoError(t, err, "write failures are notified, not propagated")
	assert.Equal(t, MatchMissing, outcome)
	require.Len(t, notify.notices, 1)
	assert.Equal(t, "8001", notify.notices[0].recordID)
}

func TestMatchUsesCompositeKeyForRecordsWithoutID(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := completedRecord("", "Writing", start, time.Hour)
	key := "NO_ID:2025-03-01T09:00:00.000Z_Writing"
	cal := &fakeCalendar{events: []domain.CalendarEvent{
		{ID: "ev1", Title: "Writing ID:" + key, Start: start, End: start.Add(time.Hour)},
	}}
	m, _ := newTestMatcher(cal)

	outcome, err := m.Match(context.Background(), rec, "")
	require.NoError(t, err)
	assert.Equal(t, MatchUpToDate, outcome)
	assert.Equal(t, "ID:"+key, cal.lastQuery)
}
