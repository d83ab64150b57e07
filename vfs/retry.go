package vfs

import (
	"sync"
	"time"

	"github.com/cockroachdb/tokenbucket"

	"github.com/videotable/vstore/internal/base"
)

// RetryPolicy implements spec.md §4.1's retry contract: retryable errors
// are retried with exponential backoff until success or a configurable
// cap; terminal errors propagate immediately. The teacher (and
// internal/rate in the wider pack) backs exactly this kind of loop with a
// token bucket rather than a bare sleep loop, so concurrent retries across
// many save/load workers sharing one process don't all hammer the backend
// in lockstep after a shared outage.
type RetryPolicy struct {
	mu struct {
		sync.Mutex
		tb tokenbucket.TokenBucket
	}
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxAttempts    int
}

// NewRetryPolicy returns a policy with the given initial/max backoff and
// attempt cap, and a token bucket refilling one retry token per
// initialBackoff interval (burst 4) so a storm of simultaneous transient
// errors drains down to the configured backoff rate instead of retrying in
// a tight loop.
func NewRetryPolicy(initialBackoff, maxBackoff time.Duration, maxAttempts int) *RetryPolicy {
	rp := &RetryPolicy{
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		maxAttempts:    maxAttempts,
	}
	ratePerSec := float64(time.Second) / float64(initialBackoff)
	rp.mu.tb.Init(tokenbucket.TokensPerSecond(ratePerSec), tokenbucket.Tokens(4))
	return rp
}

// DefaultRetryPolicy matches the original Scanner engine's BACKOFF_FAIL
// helper: retry fairly aggressively before giving up, since a single save
// worker owns the blob-store handle for the whole lifetime of an item.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(50*time.Millisecond, 5*time.Second, 8)
}

// Do runs fn, retrying on base.IsTransient errors with exponential backoff
// gated by the token bucket, up to maxAttempts. A terminal error, or
// exhausting maxAttempts, is returned to the caller unwrapped further —
// exhaustion promotes to terminal per spec.md §7.
func (rp *RetryPolicy) Do(fn func() error) error {
	backoff := rp.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= rp.maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !base.IsTransient(err) {
			return err
		}
		if attempt == rp.maxAttempts {
			break
		}
		rp.waitToken()
		time.Sleep(backoff)
		backoff *= 2
		if backoff > rp.maxBackoff {
			backoff = rp.maxBackoff
		}
	}
	return base.MarkTerminal(lastErr)
}

func (rp *RetryPolicy) waitToken() {
	for {
		rp.mu.Lock()
		ok, d := rp.mu.tb.TryToFulfill(1)
		rp.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(d)
	}
}
