package config

// Global contains runtime settings that are shared across the whole process
// rather than belonging to a specific component.
type Global struct {
	// NonInteractive disables every confirmation prompt, e.g. when running
	// from CI. Prompts the engines would have shown are treated as approved.
	NonInteractive bool
}
