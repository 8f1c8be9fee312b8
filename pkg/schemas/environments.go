package schemas

import (
	"hash/crc32" // For calculating CRC32 checksums
	"strconv"    // For string conversion operations
	"strings"
)

const (
	// PlatformVercel refers to the Vercel hosting platform.
	PlatformVercel PlatformName = "vercel"

	// PlatformRender refers to the Render hosting platform.
	PlatformRender PlatformName = "render"
)

// PlatformName is a custom type identifying a deploy platform.
type PlatformName string

// Environment represents a named deployment target bound to a branch and one or
// more hosted services. Entries are loaded once at startup and are read-only for
// the process lifetime.
type Environment struct {
	Name    string   // Canonical name of the environment (e.g. beta, gamma, prod)
	Branch  string   // Git branch holding the environment's deployed state
	Rank    int      // Position in the promotion order, lowest first
	Aliases []string // Alternative names resolving to this environment

	Platforms     []PlatformName // Deploy platforms serving this environment
	VercelProject string         // Vercel project identifier, when deployed to Vercel
	RenderService string         // Render service identifier, when deployed to Render

	URL string // Public URL of the environment, if any
}

// EnvironmentKey is a custom type used as a key for identifying environments.
type EnvironmentKey string

// Key generates a unique key for an Environment using a CRC32 checksum of the
// environment name and its branch.
func (e Environment) Key() EnvironmentKey {
	return EnvironmentKey(strconv.Itoa(int(crc32.ChecksumIEEE([]byte(e.Name + e.Branch)))))
}

// UsesPlatform returns whether the environment is configured to deploy onto the
// given platform.
func (e Environment) UsesPlatform(p PlatformName) bool {
	for _, configured := range e.Platforms {
		if configured == p {
			return true
		}
	}

	return false
}

// DefaultLabelsValues returns a map of default label values for an Environment,
// used to decorate log entries consistently across the engines.
func (e Environment) DefaultLabelsValues() map[string]string {
	return map[string]string{
		"environment": e.Name,   // The name of the environment
		"branch":      e.Branch, // The branch bound to the environment
	}
}

// Environments is a map used to keep track of multiple environments, with EnvironmentKey as the key.
type Environments map[EnvironmentKey]Environment

// Count returns the number of environments in the Environments map.
func (envs Environments) Count() int {
	return len(envs)
}

// NormalizeEnvironmentName lowercases and trims an environment name so lookups
// behave case-insensitively.
func NormalizeEnvironmentName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
