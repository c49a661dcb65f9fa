package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"toggl-calsync/internal/ports"
)

// lockExpirySeconds bounds how long a crashed holder can block the next
// run; it exceeds the longest run budget with room to spare. Expiry is
// written and compared against the database clock so clock skew between
// app and DB cannot shift the lock lifetime.
const lockExpirySeconds = 15 * 60

// lockPollInterval paces acquisition attempts during the bounded wait.
const lockPollInterval = 250 * time.Millisecond

// Locker implements ports.Locker on the calsync_locks table. Acquisition
// tries, in order: extend a lock this owner already holds, overwrite an
// expired lock, insert a fresh row.
type Locker struct {
	client *Client
}

func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

func (l *Locker) Acquire(ctx context.Context, name string, wait time.Duration) (string, error) {
	owner := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.tryAcquire(ctx, name, owner)
		if err != nil {
			return "", fmt.Errorf("mysql lock %s: %w", name, err)
		}
		if ok {
			return owner, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("mysql lock %s: %w within %s", name, ports.ErrLockNotAcquired, wait)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *Locker) tryAcquire(ctx context.Context, name, owner string) (bool, error) {
	obtainers := []func(context.Context, string, string) (sql.Result, error){
		l.extendIfAlreadyHeld,
		l.overwriteIfExpired,
		l.createLock,
	}
	for _, obtain := range obtainers {
		res, err := obtain(ctx, name, owner)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (l *Locker) createLock(ctx context.Context, name, owner string) (sql.Result, error) {
	return l.client.db.ExecContext(ctx,
		`INSERT IGNORE INTO calsync_locks (name, owner, expires_at)
		 VALUES (?, ?, DATE_ADD(CURRENT_TIMESTAMP, INTERVAL ? SECOND))`,
		name, owner, lockExpirySeconds,
	)
}

func (l *Locker) extendIfAlreadyHeld(ctx context.Context, name, owner string) (sql.Result, error) {
	return l.client.db.ExecContext(ctx,
		`UPDATE calsync_locks SET expires_at = DATE_ADD(CURRENT_TIMESTAMP, INTERVAL ? SECOND)
		 WHERE name = ? AND owner = ?`,
		lockExpirySeconds, name, owner,
	)
}

func (l *Locker) overwriteIfExpired(ctx context.Context, name, owner string) (sql.Result, error) {
	return l.client.db.ExecContext(ctx,
		`UPDATE calsync_locks SET owner = ?, expires_at = DATE_ADD(CURRENT_TIMESTAMP, INTERVAL ? SECOND)
		 WHERE name = ? AND expires_at < CURRENT_TIMESTAMP`,
		owner, lockExpirySeconds, name,
	)
}

func (l *Locker) Release(ctx context.Context, name, handle string) error {
	_, err := l.client.db.ExecContext(ctx,
		`DELETE FROM calsync_locks WHERE name = ? AND owner = ?`, name, handle)
	return err
}
