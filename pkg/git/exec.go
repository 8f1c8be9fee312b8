package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"
)

// runner abstracts the execution of git commands so tests can substitute the
// binary invocation.
type runner interface {
	run(ctx context.Context, args ...string) (stdout, stderr string, err error)
}

// execRunner runs the git binary inside the repository working copy with the
// committer identity pinned, so merge and revert commits are attributed to the
// orchestrator rather than whichever identity the clone happens to carry.
type execRunner struct {
	dir string
	env []string
}

func newExecRunner(dir, authorName, authorEmail string) execRunner {
	env := os.Environ()

	if authorName != "" {
		env = append(env,
			fmt.Sprintf("GIT_AUTHOR_NAME=%s", authorName),
			fmt.Sprintf("GIT_COMMITTER_NAME=%s", authorName),
		)
	}

	if authorEmail != "" {
		env = append(env,
			fmt.Sprintf("GIT_AUTHOR_EMAIL=%s", authorEmail),
			fmt.Sprintf("GIT_COMMITTER_EMAIL=%s", authorEmail),
		)
	}

	return execRunner{
		dir: dir,
		env: env,
	}
}

func (r execRunner) run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = r.env

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithContext(ctx).
		WithFields(log.Fields{
			"args": args,
		}).
		Trace("running git")

	err := cmd.Run()

	return stdout.String(), stderr.String(), err
}
