package relay

import (
	"context"
	"time"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// AcceptBackoff spaces out retries after failed accepts. The delay starts at
// 5ms and doubles on each consecutive failure up to one second. The zero
// value is ready to use.
type AcceptBackoff struct {
	delay time.Duration
}

// Next returns the delay to wait before the next retry.
func (b *AcceptBackoff) Next() time.Duration {
	if b.delay == 0 {
		b.delay = minAcceptDelay
	} else {
		b.delay *= 2
	}
	if b.delay > maxAcceptDelay {
		b.delay = maxAcceptDelay
	}
	return b.delay
}

// Reset starts the sequence over after a successful accept.
func (b *AcceptBackoff) Reset() {
	b.delay = 0
}

// Sleep waits for d or until ctx is done, reporting whether the full delay
// elapsed.
func (b *AcceptBackoff) Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
