package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/helvethink/deployctl/pkg/schemas"
)

// Local represents the file-backed journal implementation. Outcomes are kept
// in memory per environment, oldest first, and flushed to a YAML file on every
// write so they survive across invocations.
type Local struct {
	path       string
	maxEntries int

	journal      map[string]schemas.DeploymentOutcomes
	journalMutex sync.RWMutex // Mutex for thread-safe access to the journal
	loaded       bool
}

// resolvePath returns the journal file location, defaulting to the XDG state
// directory when none is configured.
func (l *Local) resolvePath() (string, error) {
	if l.path != "" {
		return l.path, nil
	}

	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}

		stateDir = filepath.Join(home, ".local", "state")
	}

	return filepath.Join(stateDir, "deployctl", "journal.yaml"), nil
}

// load reads the journal file into memory, once. A missing file is an empty
// journal.
func (l *Local) load() error {
	if l.loaded {
		return nil
	}

	path, err := l.resolvePath()
	if err != nil {
		return err
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.loaded = true

			return nil
		}

		return err
	}

	if err = yaml.Unmarshal(payload, &l.journal); err != nil {
		return err
	}

	l.loaded = true

	return nil
}

// flush writes the journal to disk, atomically through a rename.
func (l *Local) flush() error {
	path, err := l.resolvePath()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	payload, err := yaml.Marshal(l.journal)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// RecordOutcome journals an outcome in the local file.
func (l *Local) RecordOutcome(_ context.Context, o schemas.DeploymentOutcome) error {
	l.journalMutex.Lock()         // Lock the mutex for exclusive access
	defer l.journalMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	if err := l.load(); err != nil {
		return err
	}

	env := schemas.NormalizeEnvironmentName(o.Environment)
	outcomes := l.journal[env]

	updated := false

	for i := range outcomes {
		if outcomes[i].Key() == o.Key() {
			// Merge the resolved outcome over the journaled one
			if err := mergo.Merge(&outcomes[i], o, mergo.WithOverride); err != nil {
				return err
			}

			updated = true

			break
		}
	}

	if !updated {
		outcomes = append(outcomes, o)
	}

	// Cap the retained history per environment
	if l.maxEntries > 0 && len(outcomes) > l.maxEntries {
		outcomes = outcomes[len(outcomes)-l.maxEntries:]
	}

	l.journal[env] = outcomes

	return l.flush()
}

// Outcomes retrieves the journaled outcomes of an environment from the local
// file, most recent first.
func (l *Local) Outcomes(_ context.Context, environment string, limit int) (schemas.DeploymentOutcomes, error) {
	l.journalMutex.Lock()         // Lock the mutex for exclusive access, load may mutate
	defer l.journalMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	if err := l.load(); err != nil {
		return nil, err
	}

	stored := l.journal[schemas.NormalizeEnvironmentName(environment)]

	outcomes := make(schemas.DeploymentOutcomes, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		outcomes = append(outcomes, stored[i])

		if limit > 0 && len(outcomes) == limit {
			break
		}
	}

	return outcomes, nil
}

// LastOutcome retrieves the most recent outcome of an environment from the
// local file.
func (l *Local) LastOutcome(ctx context.Context, environment string) (*schemas.DeploymentOutcome, error) {
	outcomes, err := l.Outcomes(ctx, environment, 1)
	if err != nil {
		return nil, err
	}

	if len(outcomes) == 0 {
		return nil, nil
	}

	return &outcomes[0], nil
}

// OutcomesCount returns the count of journaled outcomes of an environment in
// the local file.
func (l *Local) OutcomesCount(_ context.Context, environment string) (int64, error) {
	l.journalMutex.Lock()
	defer l.journalMutex.Unlock()

	if err := l.load(); err != nil {
		return 0, err
	}

	return int64(len(l.journal[schemas.NormalizeEnvironmentName(environment)])), nil
}
