package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound requests by a fixed courtesy delay. This is a pause
// between fetches, not a rate limiter with backoff.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer; a non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request may go out or the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
