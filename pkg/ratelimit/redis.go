package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Redis represents a rate limiter shared across processes through Redis,
// useful when several clones of the repository drive the same platform
// account.
type Redis struct {
	*redis_rate.Limiter
	Key    string // Redis key the limit is accounted against
	MaxRPS int    // Maximum requests per second allowed
}

// NewRedisLimiter creates a new Redis-based rate limiter scoped to the given
// platform name.
func NewRedisLimiter(redisClient *redis.Client, platform string, maxRPS int) Limiter {
	return Redis{
		Limiter: redis_rate.NewLimiter(redisClient),
		Key:     fmt.Sprintf("deployctl:%s:api", platform),
		MaxRPS:  maxRPS,
	}
}

// Take blocks until the shared rate limit allows one more request and returns
// the duration waited.
func (r Redis) Take(ctx context.Context) time.Duration {
	start := time.Now()

	for {
		res, err := r.Allow(ctx, r.Key, redis_rate.PerSecond(r.MaxRPS))
		if err != nil {
			log.WithContext(ctx).
				WithError(err).
				Fatal()
		}

		if res.Allowed > 0 {
			break
		}

		log.WithFields(
			log.Fields{
				"for": res.RetryAfter.String(),
			},
		).Debug("throttled platform API requests")

		time.Sleep(res.RetryAfter)
	}

	return time.Since(start)
}
