package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/schemas"
)

// Store is an interface that defines methods for journaling deployment
// outcomes, so that past promotions and rollbacks can be audited per
// environment.
type Store interface {
	// RecordOutcome appends an outcome to the environment's journal. Recording
	// an outcome whose key is already journaled updates the stored entry in
	// place, which is how a pending outcome gets resolved once the platform
	// reports a terminal state.
	RecordOutcome(ctx context.Context, o schemas.DeploymentOutcome) error

	// Outcomes retrieves the journaled outcomes of an environment, most
	// recent first. A non-positive limit returns all of them.
	Outcomes(ctx context.Context, environment string, limit int) (schemas.DeploymentOutcomes, error)

	// LastOutcome retrieves the most recent outcome of an environment, nil
	// when nothing has been journaled yet.
	LastOutcome(ctx context.Context, environment string) (*schemas.DeploymentOutcome, error)

	// OutcomesCount counts the journaled outcomes of an environment.
	OutcomesCount(ctx context.Context, environment string) (int64, error)
}

// NewLocalStore creates a new instance of the file-backed journal.
func NewLocalStore(path string, maxEntriesPerEnvironment int) Store {
	return &Local{
		path:       path,
		maxEntries: maxEntriesPerEnvironment,
		journal:    make(map[string]schemas.DeploymentOutcomes),
	}
}

// NewRedisStore creates a new instance of the journal backed by Redis.
func NewRedisStore(client *redis.Client, maxEntriesPerEnvironment int) Store {
	return &Redis{
		Client:     client, // Redis client to interact with the Redis server
		maxEntries: maxEntriesPerEnvironment,
	}
}

// New creates a new journal store based on the provided configuration.
func New(
	ctx context.Context,
	r *redis.Client,
	journal config.Journal,
) (s Store) {
	// Initializes an OpenTelemetry span for tracing
	_, span := otel.Tracer("deployctl").Start(ctx, "store:New")
	defer span.End()

	// Chooses the type of storage based on the presence of a Redis client
	if r != nil {
		s = NewRedisStore(r, journal.MaxEntriesPerEnvironment) // Uses Redis if a client is provided
	} else {
		s = NewLocalStore(journal.Path, journal.MaxEntriesPerEnvironment) // Uses the local journal file otherwise
	}

	return s
}
