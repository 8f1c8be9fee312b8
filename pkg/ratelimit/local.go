package ratelimit

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Local represents an in-process rate limiter backed by golang.org/x/time/rate.
type Local struct {
	*rate.Limiter
}

// NewLocalLimiter creates a new local rate limiter with the specified maximum
// and burstable requests per second.
func NewLocalLimiter(maximumRPS, burstableRPS int) Limiter {
	return Local{
		Limiter: rate.NewLimiter(rate.Limit(maximumRPS), burstableRPS),
	}
}

// Take blocks until the limiter allows one more request and returns the
// duration waited.
func (l Local) Take(ctx context.Context) time.Duration {
	start := time.Now()

	if err := l.Limiter.Wait(ctx); err != nil {
		log.WithContext(ctx).
			WithError(err).
			Fatal()
	}

	return time.Since(start)
}
