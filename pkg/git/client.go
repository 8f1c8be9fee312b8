package git

import (
	"context"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/deployctl/pkg/schemas"
)

const tracerName = "deployctl"

// Client implements Gateway against a local repository clone. Read-only
// inspection goes through go-git; mutating operations shell out to the git
// binary, which go-git cannot express (revert) or only partially supports
// (merge).
type Client struct {
	Path   string // Path of the repository working copy
	Remote string // Name of the remote fetched from and pushed to

	AuthorName  string // Committer identity for merge/revert commits
	AuthorEmail string

	repo   *gogit.Repository
	runner runner
}

// ClientConfig holds configuration options needed to instantiate a new Client.
type ClientConfig struct {
	Path        string
	Remote      string
	AuthorName  string
	AuthorEmail string
}

// NewClient opens the repository at the configured path and verifies a usable
// git binary is available.
func NewClient(cfg ClientConfig) (*Client, error) {
	repo, err := gogit.PlainOpenWithOptions(cfg.Path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrapf(err, "opening repository at '%s'", cfg.Path)
	}

	c := &Client{
		Path:        cfg.Path,
		Remote:      cfg.Remote,
		AuthorName:  cfg.AuthorName,
		AuthorEmail: cfg.AuthorEmail,
		repo:        repo,
		runner:      newExecRunner(cfg.Path, cfg.AuthorName, cfg.AuthorEmail),
	}

	raw, _, err := c.runner.run(context.Background(), "version")
	if err != nil {
		return nil, errors.Wrap(err, "checking git binary")
	}

	if v := NewVersion(raw); !v.Supported() {
		log.WithFields(log.Fields{
			"git-version": strings.TrimSpace(raw),
			"minimum":     minimumVersion,
		}).Warn("git binary older than the minimum tested version")
	}

	return c, nil
}

// CurrentBranch returns the name of the branch HEAD points at.
func (c *Client) CurrentBranch(_ context.Context) (string, error) {
	head, err := c.repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "resolving HEAD")
	}

	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash().String())
	}

	return head.Name().Short(), nil
}

// HasUncommittedChanges reports whether the working tree is dirty.
func (c *Client) HasUncommittedChanges(ctx context.Context) (bool, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "git:HasUncommittedChanges")
	defer span.End()

	w, err := c.repo.Worktree()
	if err != nil {
		return false, errors.Wrap(err, "opening worktree")
	}

	status, err := w.Status()
	if err != nil {
		return false, errors.Wrap(err, "computing worktree status")
	}

	return !status.IsClean(), nil
}

// Fetch updates the remote tracking references, pruning removed branches.
func (c *Client) Fetch(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "git:Fetch")
	defer span.End()

	if _, stderr, err := c.runner.run(ctx, "fetch", "--prune", c.Remote); err != nil {
		return schemas.NetworkError{Op: "fetch", Err: errors.Wrap(err, strings.TrimSpace(stderr))}
	}

	return nil
}

// LocalBranchExists reports whether the branch exists locally.
func (c *Client) LocalBranchExists(_ context.Context, name string) (bool, error) {
	return c.referenceExists(plumbing.NewBranchReferenceName(name))
}

// RemoteBranchExists reports whether the branch exists on the remote, as of
// the last fetch.
func (c *Client) RemoteBranchExists(_ context.Context, name string) (bool, error) {
	return c.referenceExists(plumbing.NewRemoteReferenceName(c.Remote, name))
}

func (c *Client) referenceExists(name plumbing.ReferenceName) (bool, error) {
	_, err := c.repo.Reference(name, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}

		return false, errors.Wrapf(err, "looking up reference '%s'", name)
	}

	return true, nil
}

// CreateLocalFromRemote creates a local branch tracking the remote branch of
// the same name.
func (c *Client) CreateLocalFromRemote(ctx context.Context, name string) error {
	if _, stderr, err := c.runner.run(ctx, "branch", "--track", name, fmt.Sprintf("%s/%s", c.Remote, name)); err != nil {
		return errors.Wrapf(err, "creating local branch '%s': %s", name, strings.TrimSpace(stderr))
	}

	return nil
}

// Checkout switches the working tree to the given branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	if _, stderr, err := c.runner.run(ctx, "checkout", branch); err != nil {
		return errors.Wrapf(err, "checking out branch '%s': %s", branch, strings.TrimSpace(stderr))
	}

	return nil
}

// Pull fast-forwards the given branch from the remote. The branch is expected
// to be checked out.
func (c *Client) Pull(ctx context.Context, branch string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "git:Pull")
	defer span.End()

	if _, stderr, err := c.runner.run(ctx, "pull", "--ff-only", c.Remote, branch); err != nil {
		if isNetworkFailure(stderr) {
			return schemas.NetworkError{Op: "pull", Err: errors.New(strings.TrimSpace(stderr))}
		}

		return errors.Wrapf(err, "pulling branch '%s': %s", branch, strings.TrimSpace(stderr))
	}

	return nil
}

// RevisionRange returns the ordered revisions reachable from toRef but not
// from fromRef, oldest first.
func (c *Client) RevisionRange(ctx context.Context, fromRef, toRef string) (rr schemas.RevisionRange, err error) {
	rr.From = fromRef
	rr.To = toRef

	out, stderr, err := c.runner.run(ctx, "log", "--format=%h %s", "--reverse", fmt.Sprintf("%s..%s", fromRef, toRef))
	if err != nil {
		return rr, errors.Wrapf(err, "listing revisions '%s..%s': %s", fromRef, toRef, strings.TrimSpace(stderr))
	}

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}

		id, summary, _ := strings.Cut(line, " ")
		rr.Revisions = append(rr.Revisions, schemas.Revision{ID: id, Summary: summary})
	}

	return rr, nil
}

// CommitCount counts the revisions reachable from ref, walking at most limit
// revisions.
func (c *Client) CommitCount(_ context.Context, ref string, limit int) (int, error) {
	hash, err := c.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return 0, errors.Wrapf(err, "resolving revision '%s'", ref)
	}

	iter, err := c.repo.Log(&gogit.LogOptions{From: *hash})
	if err != nil {
		return 0, errors.Wrap(err, "walking history")
	}
	defer iter.Close()

	count := 0

	err = iter.ForEach(func(_ *object.Commit) error {
		count++
		if count >= limit {
			return storer.ErrStop
		}

		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "walking history")
	}

	return count, nil
}

// HeadRevision returns the revision identifier HEAD points at.
func (c *Client) HeadRevision(_ context.Context) (string, error) {
	head, err := c.repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "resolving HEAD")
	}

	return head.Hash().String(), nil
}

// Merge merges source into the currently checked out branch with the given
// message. On conflict, the merge is left in progress and the conflicting
// files are surfaced, resolution is manual.
func (c *Client) Merge(ctx context.Context, source, into, message string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "git:Merge")
	defer span.End()

	if _, stderr, err := c.runner.run(ctx, "merge", "--no-ff", "-m", message, source); err != nil {
		files, filesErr := c.conflictingFiles(ctx)
		if filesErr == nil && len(files) > 0 {
			return "", schemas.MergeConflictError{Branch: into, Files: files}
		}

		return "", errors.Wrapf(err, "merging '%s' into '%s': %s", source, into, strings.TrimSpace(stderr))
	}

	return c.HeadRevision(ctx)
}

// Revert produces a single inverse commit undoing the given revision range on
// the currently checked out branch. On conflict, the revert is left in
// progress and the conflicting files are surfaced, resolution is manual.
func (c *Client) Revert(ctx context.Context, branch string, rr schemas.RevisionRange, message string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "git:Revert")
	defer span.End()

	if rr.Empty() {
		return "", errors.New("refusing to revert an empty revision range")
	}

	if _, stderr, err := c.runner.run(ctx, "revert", "--no-commit", rr.Spec()); err != nil {
		files, filesErr := c.conflictingFiles(ctx)
		if filesErr == nil && len(files) > 0 {
			return "", schemas.RevertConflictError{Branch: branch, Files: files}
		}

		return "", errors.Wrapf(err, "reverting '%s': %s", rr.Spec(), strings.TrimSpace(stderr))
	}

	if _, stderr, err := c.runner.run(ctx, "commit", "-m", message); err != nil {
		return "", errors.Wrapf(err, "committing revert of '%s': %s", rr.Spec(), strings.TrimSpace(stderr))
	}

	return c.HeadRevision(ctx)
}

// Push publishes the given branch to the remote.
func (c *Client) Push(ctx context.Context, branch string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "git:Push")
	defer span.End()

	if _, stderr, err := c.runner.run(ctx, "push", c.Remote, branch); err != nil {
		if isNetworkFailure(stderr) {
			return schemas.NetworkError{Op: "push", Err: errors.New(strings.TrimSpace(stderr))}
		}

		return schemas.PushRejectedError{Branch: branch, Reason: strings.TrimSpace(stderr)}
	}

	return nil
}

// ReadinessCheck verifies the configured remote is reachable by listing its
// branch heads without touching the working tree.
func (c *Client) ReadinessCheck(ctx context.Context) healthcheck.Check {
	return func() error {
		if _, stderr, err := c.runner.run(ctx, "ls-remote", "--heads", c.Remote); err != nil {
			return schemas.NetworkError{Op: "ls-remote", Err: errors.Wrap(err, strings.TrimSpace(stderr))}
		}

		return nil
	}
}

// conflictingFiles lists the paths currently in an unmerged state.
func (c *Client) conflictingFiles(ctx context.Context) ([]string, error) {
	out, _, err := c.runner.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}

	var files []string

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}

	return files, nil
}

// isNetworkFailure sniffs the stderr of a remote operation for the usual
// unreachable-remote signatures.
func isNetworkFailure(stderr string) bool {
	lowered := strings.ToLower(stderr)

	for _, marker := range []string{
		"could not resolve host",
		"unable to access",
		"connection refused",
		"connection timed out",
		"could not read from remote repository",
	} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}

	return false
}
