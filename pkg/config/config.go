package config

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a global validator instance used to validate struct fields based on tags.
var validate *validator.Validate

// Config holds all the configuration parameters necessary for properly configuring the orchestrator.
type Config struct {
	Global        Global        `yaml:",omitempty"`      // Global contains shared runtime configuration settings.
	Log           Log           `yaml:"log"`             // Log holds configuration related to logging.
	OpenTelemetry OpenTelemetry `yaml:"opentelemetry"`   // OpenTelemetry contains configuration settings for OpenTelemetry integration.
	Git           Git           `yaml:"git"`             // Git contains settings for the local repository clone and its remote.
	Redis         Redis         `yaml:"redis"`           // Redis holds configuration parameters for connecting to Redis.
	Journal       Journal       `yaml:"journal"`         // Journal configures where deployment outcomes are recorded.
	Vercel        Vercel        `yaml:"vercel"`          // Vercel contains Vercel platform settings.
	Render        Render        `yaml:"render"`          // Render contains Render platform settings.

	// EnvironmentDefaults defines default environment parameters which can be
	// overridden at individual Environment level.
	EnvironmentDefaults EnvironmentParameters `yaml:"environment_defaults"`

	// Environments is the ordered list of deployment environments, lowest
	// first. The position in the list defines the promotion order.
	Environments []Environment `validate:"at-least-2-environments,unique=Name,dive" yaml:"environments"`
}

// Log holds configuration settings related to runtime logging.
type Log struct {
	// Level sets the logging verbosity level.
	// Valid values: trace, debug, info, warning, error, fatal, panic.
	// Defaults to "info".
	Level string `default:"info" validate:"required,oneof=trace debug info warning error fatal panic"`

	// Format sets the output format of the logs.
	// Valid values: "text" or "json".
	// Defaults to "text".
	Format string `default:"text" validate:"oneof=text json"`
}

// OpenTelemetry holds configuration related to OpenTelemetry integration.
type OpenTelemetry struct {
	// GRPCEndpoint is the gRPC address of the OpenTelemetry collector to send traces to.
	GRPCEndpoint string `yaml:"grpc_endpoint"`
}

// Git holds the configuration of the local repository clone the engines mutate.
type Git struct {
	// Path points at the repository working copy. Defaults to the current
	// directory.
	Path string `default:"." yaml:"path"`

	// Remote names the remote the engines fetch from and push to.
	Remote string `default:"origin" yaml:"remote"`

	// AuthorName and AuthorEmail identify the committer of merge and revert
	// commits produced by the engines.
	AuthorName  string `default:"deployctl" yaml:"author_name"`
	AuthorEmail string `default:"deployctl@localhost" yaml:"author_email"`
}

// Redis holds the configuration for connecting to a Redis instance.
type Redis struct {
	// URL is the connection string used to connect to the Redis server.
	// Format example: redis[s]://[:password@]host[:port][/db-number][?option=value]
	URL string `yaml:"url"`
}

// Journal configures the deployment outcome journal.
type Journal struct {
	// Path points at the local journal file. When empty, it defaults to
	// ${XDG_STATE_HOME}/deployctl/journal.yaml. Ignored when Redis is
	// configured, in which case outcomes are journaled there instead.
	Path string `yaml:"path"`

	// MaxEntriesPerEnvironment caps how many outcomes are retained per
	// environment.
	MaxEntriesPerEnvironment int `default:"100" validate:"gte=1" yaml:"max_entries_per_environment"`
}

// Vercel holds the configuration needed to reach the Vercel API.
type Vercel struct {
	// APIURL of the Vercel REST API.
	APIURL string `default:"https://api.vercel.com" validate:"required,url" yaml:"api_url"`

	// Token authenticates against the Vercel API. When unset, the
	// VERCEL_TOKEN environment variable is consulted.
	Token string `yaml:"token"`

	// TeamID scopes API calls to a Vercel team, when set.
	TeamID string `yaml:"team_id"`

	EnableTLSVerify          bool `default:"true" yaml:"enable_tls_verify"`                          // EnableTLSVerify toggles TLS certificate verification.
	MaximumRequestsPerSecond int  `default:"5" validate:"gte=1" yaml:"maximum_requests_per_second"` // MaximumRequestsPerSecond limits API request rate.
}

// Render holds the configuration needed to reach the Render API.
type Render struct {
	// APIURL of the Render REST API.
	APIURL string `default:"https://api.render.com" validate:"required,url" yaml:"api_url"`

	// Token authenticates against the Render API. When unset, the
	// RENDER_API_KEY environment variable is consulted.
	Token string `yaml:"token"`

	EnableTLSVerify          bool `default:"true" yaml:"enable_tls_verify"`                          // EnableTLSVerify toggles TLS certificate verification.
	MaximumRequestsPerSecond int  `default:"5" validate:"gte=1" yaml:"maximum_requests_per_second"` // MaximumRequestsPerSecond limits API request rate.
}

// UnmarshalYAML implements custom YAML unmarshaling logic for the Config struct,
// so that each environment entry inherits the configured defaults before its
// own values are applied.
func (c *Config) UnmarshalYAML(v *yaml.Node) (err error) {
	// Mirror of Config treating Environments as raw YAML nodes so they can be
	// decoded individually on top of the defaults.
	type localConfig struct {
		Log                 Log                   `yaml:"log"`
		OpenTelemetry       OpenTelemetry         `yaml:"opentelemetry"`
		Git                 Git                   `yaml:"git"`
		Redis               Redis                 `yaml:"redis"`
		Journal             Journal               `yaml:"journal"`
		Vercel              Vercel                `yaml:"vercel"`
		Render              Render                `yaml:"render"`
		EnvironmentDefaults EnvironmentParameters `yaml:"environment_defaults"`

		Environments []yaml.Node `yaml:"environments"`
	}

	_cfg := localConfig{}
	defaults.MustSet(&_cfg)

	if err = v.Decode(&_cfg); err != nil {
		return
	}

	c.Log = _cfg.Log
	c.OpenTelemetry = _cfg.OpenTelemetry
	c.Git = _cfg.Git
	c.Redis = _cfg.Redis
	c.Journal = _cfg.Journal
	c.Vercel = _cfg.Vercel
	c.Render = _cfg.Render
	c.EnvironmentDefaults = _cfg.EnvironmentDefaults

	// Decode each environment YAML node on top of the configured defaults.
	for _, n := range _cfg.Environments {
		e := c.NewEnvironment()
		if err = n.Decode(&e); err != nil {
			return
		}

		c.Environments = append(c.Environments, e)
	}

	return
}

// ToYAML serializes the Config object into a YAML formatted string.
// Before serialization, it masks sensitive data to avoid leaking secrets.
func (c Config) ToYAML() string {
	c.Global = Global{}

	if c.Vercel.Token != "" {
		c.Vercel.Token = "*******"
	}

	if c.Render.Token != "" {
		c.Render.Token = "*******"
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}

	return string(b)
}

// Validate checks if the Config struct's fields are valid according to the
// validation rules defined via struct tags and custom validators.
func (c Config) Validate() error {
	if validate == nil {
		validate = validator.New()
		_ = validate.RegisterValidation("at-least-2-environments", ValidateAtLeastTwoEnvironments)
	}

	if err := validate.Struct(c); err != nil {
		return err
	}

	return c.validateEnvironmentNames()
}

// ValidateAtLeastTwoEnvironments is a custom validation function ensuring the
// configuration defines at least two environments: a promotion needs a source
// and a target.
func ValidateAtLeastTwoEnvironments(v validator.FieldLevel) bool {
	return v.Parent().FieldByName("Environments").Len() >= 2
}

// New returns a new Config instance with default parameters set.
func New() (c Config) {
	defaults.MustSet(&c)

	return
}

// NewEnvironment returns a new Environment instance initialized with the
// default environment parameters defined in the Config.
func (c Config) NewEnvironment() (e Environment) {
	e.EnvironmentParameters = c.EnvironmentDefaults

	return
}
