// Package limiter implements a token-bucket throughput gate shared across
// a single task's chunk workers.
package limiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps aggregate throughput across every worker of one task. A nil
// *Limiter is valid and behaves as unlimited, so callers needn't branch on
// whether a speed limit was configured.
type Limiter struct {
	bucket *rate.Limiter
}

// New returns a limiter with both bucket capacity and refill rate set to
// bytesPerSecond. The bucket starts empty, so the first second of
// transfer is paced like every later one. A zero or negative rate
// disables limiting.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	bucket := rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))
	bucket.AllowN(time.Now(), int(bytesPerSecond))
	return &Limiter{bucket: bucket}
}

// Wait blocks, if necessary, until n bytes' worth of tokens are available,
// then deducts them. A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil || n <= 0 {
		return nil
	}
	burst := l.bucket.Burst()
	// WaitN rejects requests larger than burst; split oversized stream
	// items (possible when speed_limit is set below the read buffer size)
	// into burst-sized waits.
	for n > 0 {
		step := n
		if step > burst {
			step = burst
		}
		if err := l.bucket.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
