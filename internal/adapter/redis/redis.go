package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"

	"toggl-calsync/internal/ports"
)

// Client implements ports.CacheKV and carries the connection pool shared
// with the Locker. The cache tier is a performance cache only; a cold or
// flushed Redis never loses state because the durable tier backs it.
type Client struct {
	pool *redis.Pool
	log  *slog.Logger
}

func NewClient(addr, password string, db int, log *slog.Logger) *Client {
	pool := &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial(
				"tcp",
				addr,
				redis.DialDatabase(db),
				redis.DialPassword(password),
				redis.DialConnectTimeout(5*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	return &Client{pool: pool, log: log}
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	conn := c.pool.Get()
	defer conn.Close()

	v, err := redis.String(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	conn := c.pool.Get()
	defer conn.Close()

	var err error
	if ttl > 0 {
		_, err = conn.Do("SET", key, value, "PX", ttl.Milliseconds())
	} else {
		_, err = conn.Do("SET", key, value)
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	conn := c.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("DEL", key); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (c *Client) Close() error { return c.pool.Close() }

const (
	// lockExpiryMs bounds how long a crashed holder can block the next run.
	lockExpiryMs = 15 * 60 * 1000

	lockPollInterval = 250 * time.Millisecond
)

// Locker implements ports.Locker with SET NX PX acquisition and a
// compare-and-delete release so only the holder can release.
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
		ok, err := l.tryAcquire(name, owner)
		if err != nil {
			return "", fmt.Errorf("redis lock %s: %w", name, err)
		}
		if ok {
			return owner, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("redis lock %s: %w within %s", name, ports.ErrLockNotAcquired, wait)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *Locker) tryAcquire(name, owner string) (bool, error) {
	conn := l.client.pool.Get()
	defer conn.Close()

	// NX -- only set the key if it does not already exist.
	res, err := conn.Do("SET", name, owner, "NX", "PX", lockExpiryMs)
	if err != nil {
		return false, err
	}
	_, ok := res.(string)
	return ok, nil
}

func (l *Locker) Release(ctx context.Context, name, handle string) error {
	conn := l.client.pool.Get()
	defer conn.Close()

	// Only release the lock if the value matches.
	const unlockScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	if _, err := conn.Do("EVAL", unlockScript, 1, name, handle); err != nil {
		return fmt.Errorf("redis unlock %s: %w", name, err)
	}
	return nil
}
