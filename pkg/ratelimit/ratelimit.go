package ratelimit

import (
	"context"
	"time"
)

// Limiter is an interface for rate limiting outbound platform API requests.
type Limiter interface {
	// Take blocks until the rate limit allows one more request, or the context
	// is canceled, and returns how long it waited.
	Take(ctx context.Context) time.Duration
}

// Take is a helper function that applies the given Limiter to an operation.
func Take(ctx context.Context, l Limiter) {
	l.Take(ctx)
}
