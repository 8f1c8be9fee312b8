package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/deployctl/pkg/schemas"
)

// gitCmd runs a git command in dir with a pinned identity, failing the test on
// error.
func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()

	fullArgs := append([]string{
		"-c", "user.name=tester",
		"-c", "user.email=tester@localhost",
		"-c", "commit.gpgsign=false",
	}, args...)

	cmd := exec.Command("git", fullArgs...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, string(out))

	return string(out)
}

func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	gitCmd(t, dir, "add", name)
	gitCmd(t, dir, "commit", "-m", message)
}

// setupRepos creates a bare remote with beta and prod branches plus a local
// clone, and returns a Client opened on the clone.
func setupRepos(t *testing.T) (*Client, string, string) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	base := t.TempDir()
	remote := filepath.Join(base, "remote.git")
	clone := filepath.Join(base, "clone")

	gitCmd(t, base, "init", "--bare", "-b", "beta", remote)
	gitCmd(t, base, "clone", remote, clone)

	// HEAD of the fresh clone already points at the unborn beta branch.
	commitFile(t, clone, "app.txt", "v1\n", "initial release")
	gitCmd(t, clone, "push", "origin", "beta")

	gitCmd(t, clone, "checkout", "-b", "prod")
	gitCmd(t, clone, "push", "origin", "prod")
	gitCmd(t, clone, "checkout", "beta")

	c, err := NewClient(ClientConfig{
		Path:        clone,
		Remote:      "origin",
		AuthorName:  "deployctl",
		AuthorEmail: "deployctl@localhost",
	})
	require.NoError(t, err)

	return c, clone, remote
}

func TestCurrentBranch(t *testing.T) {
	c, _, _ := setupRepos(t)

	branch, err := c.CurrentBranch(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "beta", branch)
}

func TestHasUncommittedChanges(t *testing.T) {
	c, clone, _ := setupRepos(t)
	ctx := context.Background()

	dirty, err := c.HasUncommittedChanges(ctx)
	assert.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(clone, "scratch.txt"), []byte("wip"), 0o600))

	dirty, err = c.HasUncommittedChanges(ctx)
	assert.NoError(t, err)
	assert.True(t, dirty)
}

func TestBranchExistence(t *testing.T) {
	c, _, _ := setupRepos(t)
	ctx := context.Background()

	exists, err := c.LocalBranchExists(ctx, "beta")
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.LocalBranchExists(ctx, "gamma")
	assert.NoError(t, err)
	assert.False(t, exists)

	exists, err = c.RemoteBranchExists(ctx, "prod")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateLocalFromRemote(t *testing.T) {
	c, clone, _ := setupRepos(t)
	ctx := context.Background()

	// Drop the local prod branch, keep the remote one.
	gitCmd(t, clone, "branch", "-D", "prod")

	exists, err := c.LocalBranchExists(ctx, "prod")
	require.NoError(t, err)
	require.False(t, exists)

	assert.NoError(t, c.CreateLocalFromRemote(ctx, "prod"))

	exists, err = c.LocalBranchExists(ctx, "prod")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestRevisionRange(t *testing.T) {
	c, clone, _ := setupRepos(t)
	ctx := context.Background()

	commitFile(t, clone, "app.txt", "v2\n", "feature one")
	commitFile(t, clone, "app.txt", "v3\n", "feature two")

	rr, err := c.RevisionRange(ctx, "prod", "beta")
	assert.NoError(t, err)
	assert.Equal(t, 2, rr.Count())
	assert.Equal(t, "feature one", rr.Revisions[0].Summary)
	assert.Equal(t, "feature two", rr.Revisions[1].Summary)
	assert.False(t, rr.Empty())
}

func TestRevisionRangeEmpty(t *testing.T) {
	c, _, _ := setupRepos(t)

	rr, err := c.RevisionRange(context.Background(), "prod", "beta")
	assert.NoError(t, err)
	assert.True(t, rr.Empty())
}

func TestCommitCount(t *testing.T) {
	c, clone, _ := setupRepos(t)
	ctx := context.Background()

	commitFile(t, clone, "app.txt", "v2\n", "feature one")

	count, err := c.CommitCount(ctx, "beta", 10)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	// The walk stops at the limit.
	count, err = c.CommitCount(ctx, "beta", 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMergeAndPush(t *testing.T) {
	c, clone, _ := setupRepos(t)
	ctx := context.Background()

	commitFile(t, clone, "app.txt", "v2\n", "feature one")

	require.NoError(t, c.Checkout(ctx, "prod"))

	revision, err := c.Merge(ctx, "beta", "prod", "Promote beta to prod")
	assert.NoError(t, err)
	assert.NotEmpty(t, revision)

	assert.NoError(t, c.Push(ctx, "prod"))

	// The merged file content is now on prod.
	content, err := os.ReadFile(filepath.Join(clone, "app.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(content))
}

func TestMergeConflict(t *testing.T) {
	c, clone, _ := setupRepos(t)
	ctx := context.Background()

	commitFile(t, clone, "app.txt", "beta change\n", "beta edit")

	require.NoError(t, c.Checkout(ctx, "prod"))
	commitFile(t, clone, "app.txt", "prod hotfix\n", "prod edit")

	_, err := c.Merge(ctx, "beta", "prod", "Promote beta to prod")
	require.Error(t, err)

	var conflict schemas.MergeConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "prod", conflict.Branch)
	assert.Contains(t, conflict.Files, "app.txt")
}

func TestRevertRestoresTree(t *testing.T) {
	c, clone, _ := setupRepos(t)
	ctx := context.Background()

	commitFile(t, clone, "app.txt", "v2\n", "feature one")
	commitFile(t, clone, "app.txt", "v3\n", "feature two")

	rr, err := c.RevisionRange(ctx, "HEAD~2", "HEAD")
	require.NoError(t, err)
	require.Equal(t, 2, rr.Count())

	revision, err := c.Revert(ctx, "beta", rr, "Rollback beta by 2 revision(s)")
	assert.NoError(t, err)
	assert.NotEmpty(t, revision)

	// The tree is textually identical to the one 2 revisions before tip, and
	// history is preserved, not rewritten.
	content, err := os.ReadFile(filepath.Join(clone, "app.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1\n", string(content))

	count, err := c.CommitCount(ctx, "beta", 10)
	assert.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestPushRejected(t *testing.T) {
	c, _, remote := setupRepos(t)
	ctx := context.Background()

	// Advance the remote beta branch from a second clone so our push is
	// non-fast-forward.
	other := filepath.Join(t.TempDir(), "other")
	gitCmd(t, filepath.Dir(other), "clone", remote, other)
	gitCmd(t, other, "checkout", "beta")
	commitFile(t, other, "other.txt", "concurrent\n", "concurrent work")
	gitCmd(t, other, "push", "origin", "beta")

	// Local beta diverges.
	clone := c.Path
	commitFile(t, clone, "app.txt", "diverged\n", "local work")

	err := c.Push(ctx, "beta")
	require.Error(t, err)

	var rejected schemas.PushRejectedError
	assert.ErrorAs(t, err, &rejected)
	assert.Equal(t, "beta", rejected.Branch)
}

func TestReadinessCheck(t *testing.T) {
	c, _, _ := setupRepos(t)
	ctx := context.Background()

	assert.NoError(t, c.ReadinessCheck(ctx)())

	c.Remote = "nowhere"

	err := c.ReadinessCheck(ctx)()
	require.Error(t, err)

	var netErr schemas.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, "ls-remote", netErr.Op)
}

func TestFetch(t *testing.T) {
	c, _, remote := setupRepos(t)
	ctx := context.Background()

	// A new remote branch becomes visible after fetch.
	other := filepath.Join(t.TempDir(), "other")
	gitCmd(t, filepath.Dir(other), "clone", remote, other)
	gitCmd(t, other, "checkout", "-b", "gamma")
	commitFile(t, other, "gamma.txt", "gamma\n", "gamma work")
	gitCmd(t, other, "push", "origin", "gamma")

	assert.NoError(t, c.Fetch(ctx))

	exists, err := c.RemoteBranchExists(ctx, "gamma")
	assert.NoError(t, err)
	assert.True(t, exists)
}
