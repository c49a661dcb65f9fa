package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"toggl-calsync/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Calendar ---

type writtenEvent struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

type fakeCalendar struct {
	events []domain.CalendarEvent

	searchErrs  []error // consumed one per call before events are served
	searchCalls int
	lastFrom    time.Time
	lastTo      time.Time
	lastQuery   string
	onSearch    func() // runs on every search, e.g. to advance a mock clock

	created    []writtenEvent
	createErrs []error

	updated   []writtenEvent
	updateErr error

	deleted   []string
	deleteErr map[string]error
}

func (f *fakeCalendar) SearchEvents(ctx context.Context, from, to time.Time, query string) ([]domain.CalendarEvent, error) {
	f.searchCalls++
	f.lastFrom, f.lastTo, f.lastQuery = from, to, query
	if f.onSearch != nil {
		f.onSearch()
	}
	if len(f.searchErrs) > 0 {
		err := f.searchErrs[0]
		f.searchErrs = f.searchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]domain.CalendarEvent{}, f.events...), nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, title string, start, end time.Time) error {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	f.created = append(f.created, writtenEvent{Title: title, Start: start, End: end})
	return nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, eventID, title string, start, end time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, writtenEvent{ID: eventID, Title: title, Start: start, End: end})
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	if err := f.deleteErr[eventID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

// --- TimeAPI ---

type fakeTimeAPI struct {
	records  []domain.TimeRecord
	listErrs []error // consumed one per call before records are served
	listNil  bool    // simulate a non-list response body
	lastFrom time.Time
	lastTo   time.Time

	exists    map[string]bool
	existsErr map[string]error
	probed    []string

	projects     map[string]string // project id -> name
	projectErrs  []error           // consumed one per lookup before names are served
	projectCalls int
}

func (f *fakeTimeAPI) ListRecords(ctx context.Context, from, to time.Time) ([]domain.TimeRecord, error) {
	f.lastFrom, f.lastTo = from, to
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.listNil {
		return nil, nil
	}
	return append([]domain.TimeRecord{}, f.records...), nil
}

func (f *fakeTimeAPI) RecordExists(ctx context.Context, id string) (bool, error) {
	f.probed = append(f.probed, id)
	if err := f.existsErr[id]; err != nil {
		return false, err
	}
	return f.exists[id], nil
}

func (f *fakeTimeAPI) GetProject(ctx context.Context, workspaceID, projectID string) (domain.ProjectInfo, error) {
	f.projectCalls++
	if len(f.projectErrs) > 0 {
		err := f.projectErrs[0]
		f.projectErrs = f.projectErrs[1:]
		if err != nil {
			return domain.ProjectInfo{}, err
		}
	}
	return domain.ProjectInfo{Name: f.projects[projectID]}, nil
}

// --- Locker ---

type fakeLocker struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	released   int
	lastName   string
}

func (f *fakeLocker) Acquire(ctx context.Context, name string, wait time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return "", f.acquireErr
	}
	f.acquired++
	f.lastName = name
	return "handle", nil
}

func (f *fakeLocker) Release(ctx context.Context, name, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

// --- Notifier ---

type notice struct {
	err      error
	recordID string
}

type fakeNotifier struct {
	notices []notice
}

func (f *fakeNotifier) Notify(ctx context.Context, err error, recordID string) {
	f.notices = append(f.notices, notice{err: err, recordID: recordID})
}

// --- KV tiers backing the checkpoint store ---

type memDurable struct {
	data map[string]string
}

func newMemDurable() *memDurable { return &memDurable{data: map[string]string{}} }

func (m *memDurable) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memDurable) Set(ctx context.Context, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *memDurable) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type memCache struct {
	memDurable
}

func newMemCache() *memCache { return &memCache{memDurable{data: map[string]string{}}} }

func (m *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return m.memDurable.Set(ctx, key, value)
}

// --- Record fixtures ---

func completedRecord(id, desc string, start time.Time, dur time.Duration) domain.TimeRecord {
	stop := start.Add(dur)
	return domain.TimeRecord{ID: id, Description: desc, Start: start, Stop: &stop}
}

func runningRecord(id, desc string, start time.Time) domain.TimeRecord {
	return domain.TimeRecord{ID: id, Description: desc, Start: start}
}
