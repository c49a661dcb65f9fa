package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded, fixed-delay retry executor wrapped around remote
// calls. Delays block the calling goroutine; no work interleaves.
type Policy struct {
	Attempts uint64 // total attempts, including the first
	Delay    time.Duration
}

// Do invokes op, retrying on failure after a fixed delay until Attempts are
// exhausted. The final failure's error propagates unchanged.
func (p Policy) Do(op func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), attempts-1)
	return backoff.Retry(op, bo)
}
