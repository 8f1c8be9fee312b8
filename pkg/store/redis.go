package store

import (
	"context"

	"github.com/redis/go-redis/v9"      // Redis client for Go
	"github.com/vmihailenco/msgpack/v5" // Library for MessagePack serialization

	"github.com/helvethink/deployctl/pkg/schemas" // Data schemas
)

// redisJournalKeyPrefix prefixes the per-environment journal lists.
const redisJournalKeyPrefix string = "deployctl:journal:"

// Redis represents a Redis client wrapper journaling outcomes in
// per-environment lists, most recent first.
type Redis struct {
	*redis.Client

	maxEntries int
}

// journalKey returns the Redis key of the environment's journal list.
func journalKey(environment string) string {
	return redisJournalKeyPrefix + schemas.NormalizeEnvironmentName(environment)
}

// RecordOutcome journals an outcome in Redis.
func (r *Redis) RecordOutcome(ctx context.Context, o schemas.DeploymentOutcome) error {
	// Marshal the outcome into binary format using MessagePack
	marshalledOutcome, err := msgpack.Marshal(o)
	if err != nil {
		return err
	}

	k := journalKey(o.Environment)

	// Update the journaled entry in place when the outcome is already known
	marshalledOutcomes, err := r.LRange(ctx, k, 0, -1).Result()
	if err != nil {
		return err
	}

	for i, stored := range marshalledOutcomes {
		journaled := schemas.DeploymentOutcome{}

		if err = msgpack.Unmarshal([]byte(stored), &journaled); err != nil {
			return err
		}

		if journaled.Key() == o.Key() {
			_, err = r.LSet(ctx, k, int64(i), marshalledOutcome).Result()

			return err
		}
	}

	// Prepend the outcome and cap the retained history per environment
	if _, err = r.LPush(ctx, k, marshalledOutcome).Result(); err != nil {
		return err
	}

	if r.maxEntries > 0 {
		_, err = r.LTrim(ctx, k, 0, int64(r.maxEntries)-1).Result()
	}

	return err
}

// Outcomes retrieves the journaled outcomes of an environment from Redis,
// most recent first.
func (r *Redis) Outcomes(ctx context.Context, environment string, limit int) (schemas.DeploymentOutcomes, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	// Retrieve the marshalled outcomes from Redis
	marshalledOutcomes, err := r.LRange(ctx, journalKey(environment), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	outcomes := make(schemas.DeploymentOutcomes, 0, len(marshalledOutcomes))

	// Unmarshal each outcome and append it to the collection
	for _, marshalledOutcome := range marshalledOutcomes {
		o := schemas.DeploymentOutcome{}

		if err = msgpack.Unmarshal([]byte(marshalledOutcome), &o); err != nil {
			return outcomes, err
		}

		outcomes = append(outcomes, o)
	}

	return outcomes, nil
}

// LastOutcome retrieves the most recent outcome of an environment from Redis.
func (r *Redis) LastOutcome(ctx context.Context, environment string) (*schemas.DeploymentOutcome, error) {
	marshalledOutcome, err := r.LIndex(ctx, journalKey(environment), 0).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}

		return nil, err
	}

	o := schemas.DeploymentOutcome{}
	if err = msgpack.Unmarshal([]byte(marshalledOutcome), &o); err != nil {
		return nil, err
	}

	return &o, nil
}

// OutcomesCount returns the count of journaled outcomes of an environment in
// Redis.
func (r *Redis) OutcomesCount(ctx context.Context, environment string) (int64, error) {
	// Get the length of the environment's journal list
	return r.LLen(ctx, journalKey(environment)).Result()
}
