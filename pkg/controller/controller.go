package controller

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"google.golang.org/grpc"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/deploy"
	"github.com/helvethink/deployctl/pkg/git"
	"github.com/helvethink/deployctl/pkg/ratelimit"
	"github.com/helvethink/deployctl/pkg/registry"
	"github.com/helvethink/deployctl/pkg/schemas"
	"github.com/helvethink/deployctl/pkg/store"
)

const tracerName = "deployctl"

// Controller holds the necessary clients and components to run the promotion
// and rollback pipelines. It includes configuration, the environment registry,
// the version-control and deploy-platform gateways, the outcome journal and an
// optional Redis connection used for the journal and shared rate limiting.
//
// Both the working tree and the remote branches are exclusively-mutated
// resources: only one promotion or rollback may safely run at a time against a
// given clone. Mutual exclusion across processes is the caller's
// responsibility, the controller holds no lock.
type Controller struct {
	Config    config.Config                           // Application configuration settings
	Redis     *redis.Client                           // Redis client for the journal and shared rate limiting
	Registry  *registry.Registry                      // Environment registry resolving names and aliases
	Git       git.Gateway                             // Version-control gateway mutating the local clone
	Deployers map[schemas.PlatformName]deploy.Gateway // Deploy-platform gateways, keyed by platform name
	Store     store.Store                             // Journal of deployment outcomes
	Confirm   Confirmer                               // Confirmation capability consulted before mutating

	// UUID uniquely identifies this controller instance, it tags the traces
	// and the journal entries produced by its pipelines.
	UUID uuid.UUID
}

// New creates and initializes a new Controller instance. It sets up tracing,
// the Redis connection, the outcome journal, the environment registry and the
// gateways.
func New(ctx context.Context, cfg config.Config, version string) (c Controller, err error) {
	c.Config = cfg      // Store configuration
	c.UUID = uuid.New() // Generate a new UUID for this controller instance

	// Configure distributed tracing if an OpenTelemetry gRPC endpoint is specified
	if err = configureTracing(ctx, cfg.OpenTelemetry.GRPCEndpoint); err != nil {
		return
	}

	// Initialize Redis connection with provided URL
	if err = c.configureRedis(ctx, cfg.Redis.URL); err != nil {
		return
	}

	// Initialize the journal, backed by Redis when configured
	c.Store = store.New(ctx, c.Redis, cfg.Journal)

	// Load the environment topology, the position in the list defines the
	// promotion order
	c.Registry = registry.New(cfg.Environments)

	// Configure the version-control gateway against the local clone
	if c.Git, err = git.NewClient(git.ClientConfig{
		Path:        cfg.Git.Path,
		Remote:      cfg.Git.Remote,
		AuthorName:  cfg.Git.AuthorName,
		AuthorEmail: cfg.Git.AuthorEmail,
	}); err != nil {
		return
	}

	// Configure the deploy-platform gateways, passing the app version for
	// client identification
	if err = c.configureDeployGateways(version); err != nil {
		return
	}

	// Confirmation goes through the terminal unless a front end injects its own
	c.Confirm = &TerminalConfirmer{
		In:  os.Stdin,
		Out: os.Stderr,
	}

	return
}

// platformInUse reports whether any registered environment targets the given
// platform. Gateways are only configured for platforms in use, so that
// credentials are not required for the others.
func (c *Controller) platformInUse(platform schemas.PlatformName) bool {
	for _, env := range c.Registry.All() {
		if env.UsesPlatform(platform) {
			return true
		}
	}

	return false
}

// platformRateLimiter returns the rate limiter of one platform, shared
// through Redis when a connection is configured.
func (c *Controller) platformRateLimiter(platform schemas.PlatformName, maximumRPS int) ratelimit.Limiter {
	// If Redis client is available, create a Redis-based rate limiter
	if c.Redis != nil {
		return ratelimit.NewRedisLimiter(c.Redis, string(platform), maximumRPS)
	}

	// Otherwise, create a local in-memory rate limiter with configured limits
	return ratelimit.NewLocalLimiter(maximumRPS, maximumRPS)
}

// configureDeployGateways initializes one deploy gateway per platform
// referenced by the registered environments.
func (c *Controller) configureDeployGateways(_ string) (err error) {
	c.Deployers = make(map[schemas.PlatformName]deploy.Gateway)

	if c.platformInUse(schemas.PlatformVercel) {
		var vercel *deploy.Vercel

		if vercel, err = deploy.NewVercelGateway(
			c.Config.Vercel,
			c.platformRateLimiter(schemas.PlatformVercel, c.Config.Vercel.MaximumRequestsPerSecond),
		); err != nil {
			return
		}

		c.Deployers[schemas.PlatformVercel] = vercel
	}

	if c.platformInUse(schemas.PlatformRender) {
		var render *deploy.Render

		if render, err = deploy.NewRenderGateway(
			c.Config.Render,
			c.platformRateLimiter(schemas.PlatformRender, c.Config.Render.MaximumRequestsPerSecond),
		); err != nil {
			return
		}

		c.Deployers[schemas.PlatformRender] = render
	}

	return
}

// configureRedis initializes the Redis client using the provided URL and sets
// up OpenTelemetry tracing instrumentation. It returns an error if any step of
// the configuration or connection fails.
func (c *Controller) configureRedis(ctx context.Context, url string) (err error) {
	// Start a new OpenTelemetry trace span for monitoring this function
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:configureRedis")
	defer span.End()

	// If no Redis URL is provided, skip Redis configuration and use local (in-memory) alternatives
	if len(url) <= 0 {
		log.Debug("redis url is not configured, skipping configuration & using local driver")

		return
	}

	log.Info("redis url configured, initializing connection..")

	var opt *redis.Options

	// Parse the Redis URL into options; return early on error
	if opt, err = redis.ParseURL(url); err != nil {
		return
	}

	// Create a new Redis client instance with the parsed options
	c.Redis = redis.NewClient(opt)

	// Instrument the Redis client with OpenTelemetry tracing for monitoring Redis operations
	if err = redisotel.InstrumentTracing(c.Redis); err != nil {
		return
	}

	// Test the Redis connection by sending a PING command; wrap any error with context
	if _, err = c.Redis.Ping(ctx).Result(); err != nil {
		return errors.Wrap(err, "connecting to redis")
	}

	log.Info("connected to redis")

	return
}

// configureTracing sets up OpenTelemetry tracing via a gRPC endpoint.
// If no endpoint is provided, tracing support is skipped.
func configureTracing(ctx context.Context, grpcEndpoint string) error {
	// If no gRPC endpoint is specified, log that tracing will be skipped and return nil
	if len(grpcEndpoint) == 0 {
		log.Debug("opentelemetry.grpc_endpoint is not configured, skipping open telemetry support")

		return nil
	}

	// Log that a gRPC endpoint is configured and tracing initialization is starting
	log.WithFields(log.Fields{
		"opentelemetry_grpc_endpoint": grpcEndpoint,
	}).Info("opentelemetry gRPC endpoint provided, initializing connection..")

	// Create a new OpenTelemetry gRPC trace client with insecure connection, connecting to the given endpoint,
	// and block until the connection is established
	traceClient := otlptracegrpc.NewClient(
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(grpcEndpoint),
		otlptracegrpc.WithDialOption(grpc.WithBlock()), // nolint: staticcheck
	)

	// Create a new trace exporter using the gRPC trace client
	traceExp, err := otlptrace.New(ctx, traceClient)
	if err != nil {
		return err
	}

	// Create a resource describing this application with metadata from environment,
	// process info, telemetry SDK, host info, and set the service name attribute
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("deployctl"),
		),
	)
	if err != nil {
		return err
	}

	// Create a batch span processor to buffer and send spans efficiently to the exporter
	bsp := sdktrace.NewBatchSpanProcessor(traceExp)

	// Create a tracer provider configured to always sample all traces,
	// associate the resource metadata, and use the batch span processor
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)

	// Set the global tracer provider so it will be used by the OpenTelemetry API
	otel.SetTracerProvider(tracerProvider)

	return nil
}
