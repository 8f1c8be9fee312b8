// Package registry holds the static topology of the deployment environments:
// their promotion order and the alias table used to resolve user-supplied
// names. Registration is static, there is no dynamic add/remove at runtime.
package registry

import (
	"golang.org/x/exp/slices"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/schemas"
)

// Registry resolves environment names and aliases towards their Environment
// definition. It is built once from configuration at process start and is
// read-only afterwards.
type Registry struct {
	environments schemas.Environments
	byName       map[string]schemas.EnvironmentKey
}

// New builds a Registry from the configured environments. The position of an
// environment in the configuration defines its rank in the promotion order,
// lowest first. Name and alias collisions are expected to have been rejected
// by config validation already.
func New(envs []config.Environment) *Registry {
	r := &Registry{
		environments: make(schemas.Environments, len(envs)),
		byName:       make(map[string]schemas.EnvironmentKey),
	}

	for rank, e := range envs {
		platforms := make([]schemas.PlatformName, 0, len(e.Platforms))
		for _, p := range e.Platforms {
			platforms = append(platforms, schemas.PlatformName(p))
		}

		env := schemas.Environment{
			Name:          e.Name,
			Branch:        e.Branch,
			Rank:          rank,
			Aliases:       e.Aliases,
			Platforms:     platforms,
			VercelProject: e.VercelProject,
			RenderService: e.RenderService,
			URL:           e.URL,
		}

		r.environments[env.Key()] = env

		r.byName[schemas.NormalizeEnvironmentName(e.Name)] = env.Key()
		for _, alias := range e.Aliases {
			r.byName[schemas.NormalizeEnvironmentName(alias)] = env.Key()
		}
	}

	return r
}

// Resolve returns the Environment the given name or alias refers to. Lookups
// are case-insensitive; unknown names yield an UnknownEnvironmentError.
func (r *Registry) Resolve(name string) (schemas.Environment, error) {
	key, found := r.byName[schemas.NormalizeEnvironmentName(name)]
	if !found {
		return schemas.Environment{}, schemas.UnknownEnvironmentError{Name: name}
	}

	return r.environments[key], nil
}

// All returns every registered environment ordered by rank, lowest first.
func (r *Registry) All() []schemas.Environment {
	out := make([]schemas.Environment, 0, r.environments.Count())
	for _, env := range r.environments {
		out = append(out, env)
	}

	slices.SortFunc(out, func(a, b schemas.Environment) int {
		return a.Rank - b.Rank
	})

	return out
}

// Count returns the number of registered environments.
func (r *Registry) Count() int {
	return r.environments.Count()
}
