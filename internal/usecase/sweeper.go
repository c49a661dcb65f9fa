package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WatchBeam/clock"

	"toggl-calsync/internal/domain"
	"toggl-calsync/internal/ports"
	"toggl-calsync/internal/retry"
)

// Sweep windows for the deletion sweeper.
const (
	SweepShortRange = 31 * 24 * time.Hour
	SweepLongRange  = 366 * 24 * time.Hour
)

// dedupeLookbackMonths matches the matcher's search window.
const dedupeLookbackMonths = 3

// Sweeper runs the auxiliary reconciliation passes over existing calendar
// events, independent of the incremental sync.
type Sweeper struct {
	Log   *slog.Logger
	API   ports.TimeAPI
	Cal   ports.Calendar
	Retry retry.Policy
	Clock clock.Clock
}

// RemoveDuplicates deletes events sharing an identifier key, keeping the
// first one encountered. "First" follows the calendar store's enumeration
// order, which is not guaranteed to be creation order.
func (s *Sweeper) RemoveDuplicates(ctx context.Context) (int, error) {
	now := s.Clock.Now().UTC()
	events, err := s.search(ctx, now.AddDate(0, -dedupeLookbackMonths, 0), now.AddDate(0, 0, 1))
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	removed := 0
	for _, ev := range events {
		key, ok := domain.ExtractKey(ev.Title)
		if !ok {
			continue
		}
		if !seen[key] {
			seen[key] = true
			continue
		}
		if err := s.delete(ctx, ev.ID); err != nil {
			return removed, fmt.Errorf("delete duplicate %s: %w", ev.ID, err)
		}
		removed++
		s.Log.Info("removed duplicate event", slog.String("key", key), slog.String("event", ev.ID))
	}
	s.Log.Info("duplicate sweep finished", slog.Int("scanned", len(events)), slog.Int("removed", removed))
	return removed, nil
}

// SweepDeleted removes events whose remote record no longer exists. Only a
// confirmed not-found deletes; any other probe failure propagates so a
// transient error never false-positives into a deletion. Events carrying
// composite keys have no remote id to probe and are left alone.
func (s *Sweeper) SweepDeleted(ctx context.Context, window time.Duration) (int, error) {
	now := s.Clock.Now().UTC()
	events, err := s.search(ctx, now.Add(-window), now.AddDate(0, 0, 1))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ev := range events {
		key, ok := domain.ExtractKey(ev.Title)
		if !ok || strings.HasPrefix(key, domain.NoIDPrefix) {
			continue
		}
		var exists bool
		err := s.Retry.Do(func() error {
			var perr error
			exists, perr = s.API.RecordExists(ctx, key)
			return perr
		})
		if err != nil {
			return removed, fmt.Errorf("probe record %s: %w", key, err)
		}
		if exists {
			continue
		}
		if err := s.delete(ctx, ev.ID); err != nil {
			return removed, fmt.Errorf("delete orphan %s: %w", ev.ID, err)
		}
		removed++
		s.Log.Info("removed event for deleted record", slog.String("key", key), slog.String("event", ev.ID))
	}
	s.Log.Info("deletion sweep finished", slog.Int("scanned", len(events)), slog.Int("removed", removed))
	return removed, nil
}

func (s *Sweeper) search(ctx context.Context, from, to time.Time) ([]domain.CalendarEvent, error) {
	var events []domain.CalendarEvent
	err := s.Retry.Do(func() error {
		var serr error
		events, serr = s.Cal.SearchEvents(ctx, from, to, domain.KeyQuery(""))
		return serr
	})
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return events, nil
}

func (s *Sweeper) delete(ctx context.Context, eventID string) error {
	return s.Retry.Do(func() error {
		return s.Cal.DeleteEvent(ctx, eventID)
	})
}
