package ports

import (
	"context"
	"errors"
	"time"

	"toggl-calsync/internal/domain"
)

// ErrLockNotAcquired reports that the bounded wait elapsed while another
// holder kept the lock. Lockers wrap it so callers can errors.Is on
// contention.
var ErrLockNotAcquired = errors.New("lock not acquired")

// TimeAPI defines the read surface of the remote time-tracking service.
type TimeAPI interface {
	// ListRecords fetches completed and running records in [from, to].
	// A nil slice with a nil error means the response decoded to something
	// other than a list ("no usable data"); callers treat it as nothing to
	// process but distinct from an empty window.
	ListRecords(ctx context.Context, from, to time.Time) ([]domain.TimeRecord, error)

	// RecordExists probes a single record by id. A not-found response maps
	// to (false, nil); any other failure is an error, never "deleted".
	RecordExists(ctx context.Context, id string) (bool, error)

	// GetProject resolves project metadata. Failures are retryable errors;
	// callers that only need the name cosmetically may swallow the
	// exhausted-retry failure into an empty ProjectInfo.
	GetProject(ctx context.Context, workspaceID, projectID string) (domain.ProjectInfo, error)
}

// Calendar is the event store the sync writes into. Correlation with remote
// records happens exclusively through the title text.
type Calendar interface {
	CreateEvent(ctx context.Context, title string, start, end time.Time) error
	SearchEvents(ctx context.Context, from, to time.Time, query string) ([]domain.CalendarEvent, error)
	UpdateEvent(ctx context.Context, eventID, title string, start, end time.Time) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// DurableKV is the source-of-truth tier of the checkpoint store.
type DurableKV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CacheKV is the fast tier of the checkpoint store. Entries may expire; the
// durable tier always backs them.
type CacheKV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Locker is an advisory mutual-exclusion lock with a bounded wait.
type Locker interface {
	// Acquire blocks up to wait for the named lock and returns an opaque
	// handle on success.
	Acquire(ctx context.Context, name string, wait time.Duration) (handle string, err error)
	Release(ctx context.Context, name, handle string) error
}

// Notifier delivers operator-facing error reports. Implementations must
// never propagate their own failures.
type Notifier interface {
	Notify(ctx context.Context, err error, recordID string)
}
