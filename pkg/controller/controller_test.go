package controller

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heptiolabs/healthcheck"

	"github.com/helvethink/deployctl/pkg/config"
	"github.com/helvethink/deployctl/pkg/deploy"
	"github.com/helvethink/deployctl/pkg/registry"
	"github.com/helvethink/deployctl/pkg/schemas"
	"github.com/helvethink/deployctl/pkg/store"
)

// fakeGit implements git.Gateway in memory and records every call made
// against it, so tests can assert which operations a pipeline reached.
type fakeGit struct {
	dirty          bool
	localBranches  map[string]bool
	remoteBranches map[string]bool
	ranges         map[string]schemas.RevisionRange
	commitCount    int
	head           string

	fetchErr  error
	mergeErr  error
	revertErr error
	pushErr   error

	calls []string
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		localBranches:  map[string]bool{"beta": true, "prod": true},
		remoteBranches: map[string]bool{"beta": true, "prod": true},
		ranges:         map[string]schemas.RevisionRange{},
		commitCount:    10,
		head:           "cafe42",
	}
}

func (g *fakeGit) record(call string) {
	g.calls = append(g.calls, call)
}

// networkCalls counts the recorded operations reaching the remote.
func (g *fakeGit) networkCalls() (n int) {
	for _, call := range g.calls {
		switch strings.Split(call, " ")[0] {
		case "fetch", "pull", "push":
			n++
		}
	}

	return
}

func (g *fakeGit) setRange(fromRef, toRef string, revisions ...schemas.Revision) {
	g.ranges[fromRef+".."+toRef] = schemas.RevisionRange{
		From:      fromRef,
		To:        toRef,
		Revisions: revisions,
	}
}

func (g *fakeGit) CurrentBranch(_ context.Context) (string, error) {
	g.record("current-branch")

	return "beta", nil
}

func (g *fakeGit) HasUncommittedChanges(_ context.Context) (bool, error) {
	g.record("status")

	return g.dirty, nil
}

func (g *fakeGit) Fetch(_ context.Context) error {
	g.record("fetch")

	return g.fetchErr
}

func (g *fakeGit) LocalBranchExists(_ context.Context, name string) (bool, error) {
	g.record("local-branch-exists " + name)

	return g.localBranches[name], nil
}

func (g *fakeGit) RemoteBranchExists(_ context.Context, name string) (bool, error) {
	g.record("remote-branch-exists " + name)

	return g.remoteBranches[name], nil
}

func (g *fakeGit) CreateLocalFromRemote(_ context.Context, name string) error {
	g.record("create-local " + name)
	g.localBranches[name] = true

	return nil
}

func (g *fakeGit) Checkout(_ context.Context, branch string) error {
	g.record("checkout " + branch)

	return nil
}

func (g *fakeGit) Pull(_ context.Context, branch string) error {
	g.record("pull " + branch)

	return nil
}

func (g *fakeGit) RevisionRange(_ context.Context, fromRef, toRef string) (schemas.RevisionRange, error) {
	g.record("revision-range " + fromRef + ".." + toRef)

	return g.ranges[fromRef+".."+toRef], nil
}

func (g *fakeGit) CommitCount(_ context.Context, _ string, limit int) (int, error) {
	g.record("commit-count")

	if g.commitCount > limit {
		return limit, nil
	}

	return g.commitCount, nil
}

func (g *fakeGit) HeadRevision(_ context.Context) (string, error) {
	g.record("head-revision")

	return g.head, nil
}

func (g *fakeGit) Merge(_ context.Context, source, into, _ string) (string, error) {
	g.record("merge " + source + " into " + into)

	if g.mergeErr != nil {
		return "", g.mergeErr
	}

	return "merged1", nil
}

func (g *fakeGit) Revert(_ context.Context, branch string, _ schemas.RevisionRange, _ string) (string, error) {
	g.record("revert " + branch)

	if g.revertErr != nil {
		return "", g.revertErr
	}

	return "reverted1", nil
}

func (g *fakeGit) Push(_ context.Context, branch string) error {
	g.record("push " + branch)

	return g.pushErr
}

// fakeDeployer implements deploy.Gateway, replying with canned statuses.
type fakeDeployer struct {
	platform      schemas.PlatformName
	serviceExists bool
	status        schemas.DeployStatus
	deployErr     error

	deploys []string
}

func (d *fakeDeployer) Name() schemas.PlatformName {
	return d.platform
}

func (d *fakeDeployer) ServiceExists(_ context.Context, _ schemas.Environment) (bool, error) {
	return d.serviceExists, nil
}

func (d *fakeDeployer) TriggerDeploy(_ context.Context, env schemas.Environment, revision string, _ bool) (schemas.DeploymentOutcome, error) {
	d.deploys = append(d.deploys, fmt.Sprintf("%s@%s", env.Name, revision))

	if d.deployErr != nil {
		return schemas.DeploymentOutcome{}, d.deployErr
	}

	return schemas.DeploymentOutcome{
		Environment: env.Name,
		Platform:    d.platform,
		Revision:    revision,
		Status:      d.status,
	}, nil
}

func (d *fakeDeployer) ResolveURL(_ context.Context, _ schemas.Environment) (*string, error) {
	return nil, nil
}

func (d *fakeDeployer) ReadinessCheck(_ context.Context) healthcheck.Check {
	return func() error { return nil }
}

// fakeConfirmer records the prompts it was asked and replies with a canned
// answer.
type fakeConfirmer struct {
	answer  bool
	prompts []string
}

func (f *fakeConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	f.prompts = append(f.prompts, prompt)

	return f.answer, nil
}

func testEnvironments() []config.Environment {
	return []config.Environment{
		{
			EnvironmentParameters: config.EnvironmentParameters{Platforms: []string{"vercel"}},
			Name:                  "beta",
			Branch:                "beta",
		},
		{
			EnvironmentParameters: config.EnvironmentParameters{Platforms: []string{"vercel"}},
			Name:                  "prod",
			Branch:                "prod",
			Aliases:               []string{"production", "main"},
		},
	}
}

func newTestController(t *testing.T) (Controller, *fakeGit, *fakeDeployer, *fakeConfirmer) {
	t.Helper()

	g := newFakeGit()
	d := &fakeDeployer{
		platform:      schemas.PlatformVercel,
		serviceExists: true,
		status:        schemas.DeployStatusSucceeded,
	}
	confirm := &fakeConfirmer{answer: true}

	c := Controller{
		Config:   config.Config{},
		Registry: registry.New(testEnvironments()),
		Git:      g,
		Deployers: map[schemas.PlatformName]deploy.Gateway{
			schemas.PlatformVercel: d,
		},
		Store:   store.NewLocalStore(filepath.Join(t.TempDir(), "journal.yaml"), 100),
		Confirm: confirm,
	}

	return c, g, d, confirm
}
