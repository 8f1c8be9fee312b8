package config

import (
	"fmt"
	"strings"
)

// EnvironmentParameters holds the per-environment settings which can be set
// globally through EnvironmentDefaults and overridden at individual
// Environment level.
type EnvironmentParameters struct {
	// Platforms lists the deploy platforms serving the environment.
	// Valid values: "vercel", "render".
	Platforms []string `yaml:"platforms"`
}

// Environment is the configuration of a single deployment environment: a
// branch bound to one or more hosted services.
type Environment struct {
	EnvironmentParameters `yaml:",inline"`

	// Name is the canonical environment name, e.g. beta, gamma or prod.
	Name string `validate:"required" yaml:"name"`

	// Branch is the git branch holding the environment's deployed state.
	Branch string `validate:"required" yaml:"branch"`

	// Aliases are alternative names resolving to this environment, e.g.
	// production and main for prod. Resolution is case-insensitive.
	Aliases []string `yaml:"aliases"`

	VercelProject string `yaml:"vercel_project"` // VercelProject is the Vercel project identifier.
	RenderService string `yaml:"render_service"` // RenderService is the Render service identifier.

	// URL is the public URL of the environment, if any.
	URL string `validate:"omitempty,url" yaml:"url"`
}

// validateEnvironmentNames ensures environment names, branches and aliases do
// not collide with each other, comparing case-insensitively since resolution
// is case-insensitive.
func (c Config) validateEnvironmentNames() error {
	seen := map[string]string{}

	claim := func(name, owner string) error {
		lowered := strings.ToLower(name)
		if previous, found := seen[lowered]; found {
			return fmt.Errorf("environment name or alias '%s' of environment '%s' collides with environment '%s'", name, owner, previous)
		}

		seen[lowered] = owner

		return nil
	}

	branches := map[string]string{}

	for _, e := range c.Environments {
		if err := claim(e.Name, e.Name); err != nil {
			return err
		}

		for _, alias := range e.Aliases {
			if err := claim(alias, e.Name); err != nil {
				return err
			}
		}

		if previous, found := branches[e.Branch]; found {
			return fmt.Errorf("branch '%s' is bound to both environment '%s' and environment '%s'", e.Branch, previous, e.Name)
		}

		branches[e.Branch] = e.Name

		for _, p := range e.Platforms {
			switch p {
			case "vercel", "render":
			default:
				return fmt.Errorf("environment '%s' references unsupported platform '%s'", e.Name, p)
			}
		}
	}

	return nil
}
