package source

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustedanalytics/platform-parent/src/ctxlog"
)

type origin struct {
	dir  string
	repo *git.Repository
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &origin{dir: dir, repo: repo}
}

func (o *origin) commit(t *testing.T, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(o.dir, name), []byte(content), 0o644))
	wt, err := o.repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

func testContext(buf *bytes.Buffer) context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(buf, nil)))
}

func TestAcquire_CloneDefaultBranch(t *testing.T) {
	o := newOrigin(t)
	head := o.commit(t, "README", "one")
	ws := filepath.Join(t.TempDir(), "svc-a")

	res, err := NewGit().Acquire(context.Background(), Request{Dir: ws, URL: o.dir})
	require.NoError(t, err)

	assert.Equal(t, DefaultBranch, res.Outcome)
	assert.Equal(t, "master", res.Branch)
	assert.Equal(t, head.String(), res.Commit)
	assert.FileExists(t, filepath.Join(ws, "README"))
}

func TestAcquire_UnknownRefFallsBack(t *testing.T) {
	o := newOrigin(t)
	head := o.commit(t, "README", "one")
	ws := filepath.Join(t.TempDir(), "svc-a")

	var logs bytes.Buffer
	res, err := NewGit().Acquire(testContext(&logs), Request{Dir: ws, URL: o.dir, Ref: "v9.9.9"})
	require.NoError(t, err)

	assert.Equal(t, FellBackToDefaultBranch, res.Outcome)
	assert.Equal(t, "v9.9.9", res.Requested)
	assert.Equal(t, "master", res.Branch)
	assert.Equal(t, head.String(), res.Commit)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "v9.9.9")
}

func TestAcquire_PinnedTag(t *testing.T) {
	o := newOrigin(t)
	first := o.commit(t, "README", "one")
	_, err := o.repo.CreateTag("v1.0", first, nil)
	require.NoError(t, err)
	o.commit(t, "README", "two")
	ws := filepath.Join(t.TempDir(), "svc-a")

	res, err := NewGit().Acquire(context.Background(), Request{Dir: ws, URL: o.dir, Ref: "v1.0"})
	require.NoError(t, err)

	assert.Equal(t, CheckedOutPinned, res.Outcome)
	assert.Equal(t, first.String(), res.Commit)
	assert.Empty(t, res.Branch)

	data, err := os.ReadFile(filepath.Join(ws, "README"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestAcquire_UpdatesExistingWorkspace(t *testing.T) {
	o := newOrigin(t)
	first := o.commit(t, "README", "one")
	_, err := o.repo.CreateTag("v1.0", first, nil)
	require.NoError(t, err)
	ws := filepath.Join(t.TempDir(), "svc-a")
	g := NewGit()

	_, err = g.Acquire(context.Background(), Request{Dir: ws, URL: o.dir, Ref: "v1.0"})
	require.NoError(t, err)

	second := o.commit(t, "README", "two")

	// Second run starts from a detached HEAD and must land on the updated
	// primary branch.
	res, err := g.Acquire(context.Background(), Request{Dir: ws, URL: o.dir})
	require.NoError(t, err)
	assert.Equal(t, DefaultBranch, res.Outcome)
	assert.Equal(t, "master", res.Branch)
	assert.Equal(t, second.String(), res.Commit)
}

func TestAcquire_CloneFailureIsFatal(t *testing.T) {
	ws := filepath.Join(t.TempDir(), "svc-a")
	_, err := NewGit().Acquire(context.Background(), Request{Dir: ws, URL: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: clone")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "default", DefaultBranch.String())
	assert.Equal(t, "pinned", CheckedOutPinned.String())
	assert.Equal(t, "fallback", FellBackToDefaultBranch.String())
}
