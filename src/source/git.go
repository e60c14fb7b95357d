// Package source acquires project sources into persistent local workspaces.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/trustedanalytics/platform-parent/src/ctxlog"
)

// Outcome records how the requested ref was honoured.
type Outcome int

const (
	// DefaultBranch means no ref was requested.
	DefaultBranch Outcome = iota
	// CheckedOutPinned means the requested ref is checked out.
	CheckedOutPinned
	// FellBackToDefaultBranch means the requested ref could not be checked
	// out and the workspace stayed on its primary branch.
	FellBackToDefaultBranch
)

func (o Outcome) String() string {
	switch o {
	case CheckedOutPinned:
		return "pinned"
	case FellBackToDefaultBranch:
		return "fallback"
	default:
		return "default"
	}
}

// Request describes one acquisition.
type Request struct {
	Dir      string    // workspace directory, reused across runs
	URL      string    // clone origin
	Ref      string    // optional commit, tag or branch
	Progress io.Writer // clone/fetch progress, may be nil
}

// Result describes the source state left in the workspace.
type Result struct {
	Outcome   Outcome
	Requested string
	Branch    string // empty when HEAD is detached
	Commit    string // full HEAD hash
}

// Fetcher acquires sources for a workspace.
type Fetcher interface {
	Acquire(ctx context.Context, req Request) (Result, error)
}

// Git fetches with go-git. An existing workspace is switched to its primary
// branch and fast-forwarded; a missing one is cloned.
type Git struct{}

// NewGit returns a go-git backed Fetcher.
func NewGit() *Git { return &Git{} }

// Acquire brings req.Dir up to date and checks out req.Ref on a best-effort
// basis. Network and repository failures are returned; an unknown ref is
// not an error.
func (g *Git) Acquire(ctx context.Context, req Request) (Result, error) {
	logger := ctxlog.FromContext(ctx)
	res := Result{Requested: req.Ref}

	var (
		repo *git.Repository
		err  error
	)
	if _, statErr := os.Stat(req.Dir); statErr == nil {
		logger.Info("updating sources", "dir", req.Dir)
		repo, err = g.update(ctx, req)
	} else {
		if req.URL == "" {
			return res, fmt.Errorf("source: no url to clone %s from", req.Dir)
		}
		logger.Info("cloning sources", "url", req.URL)
		repo, err = git.PlainCloneContext(ctx, req.Dir, false, &git.CloneOptions{
			URL:      req.URL,
			Tags:     git.AllTags,
			Progress: req.Progress,
		})
		if err != nil {
			err = fmt.Errorf("source: clone %s: %w", req.URL, err)
		}
	}
	if err != nil {
		return res, err
	}

	res.Outcome = DefaultBranch
	if req.Ref != "" {
		if err := checkoutRef(repo, req.Ref); err != nil {
			logger.Warn("cannot check out pinned ref, staying on current branch", "ref", req.Ref, "error", err)
			res.Outcome = FellBackToDefaultBranch
		} else {
			res.Outcome = CheckedOutPinned
		}
	}

	head, err := repo.Head()
	if err != nil {
		return res, fmt.Errorf("source: reading HEAD: %w", err)
	}
	res.Commit = head.Hash().String()
	if head.Name().IsBranch() {
		res.Branch = head.Name().Short()
	}
	return res, nil
}

// update switches an existing workspace to its primary branch and pulls.
func (g *Git) update(ctx context.Context, req Request) (*git.Repository, error) {
	repo, err := git.PlainOpen(req.Dir)
	if err != nil {
		return nil, fmt.Errorf("source: opening %s: %w", req.Dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("source: worktree %s: %w", req.Dir, err)
	}

	branch := PrimaryBranch(repo)
	if err := checkoutBranch(repo, wt, branch); err != nil {
		return nil, fmt.Errorf("source: checkout %s: %w", branch, err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    git.DefaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		Progress:      req.Progress,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("source: pull %s: %w", branch, err)
	}

	// Pull only follows the branch; pinned refs may name newer tags.
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Tags:       git.AllTags,
		Progress:   req.Progress,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("source: fetch tags %s: %w", req.Dir, err)
	}
	return repo, nil
}

// PrimaryBranch reads the symbolic ref for origin/HEAD and falls back to
// master, then main, then whatever HEAD currently names.
func PrimaryBranch(repo *git.Repository) string {
	// Don't resolve: we need the symbolic target, not the commit.
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, "HEAD"), false)
	if err == nil && ref.Type() == plumbing.SymbolicReference {
		prefix := "refs/remotes/" + git.DefaultRemoteName + "/"
		if target := ref.Target().String(); strings.HasPrefix(target, prefix) {
			return strings.TrimPrefix(target, prefix)
		}
	}
	for _, name := range []string{"master", "main"} {
		if hasBranch(repo, name) {
			return name
		}
	}
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		return head.Name().Short()
	}
	return "master"
}

func hasBranch(repo *git.Repository, name string) bool {
	if _, err := repo.Reference(plumbing.NewBranchReferenceName(name), true); err == nil {
		return true
	}
	_, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, name), true)
	return err == nil
}

// checkoutBranch checks out a local branch, creating it from the remote
// branch of the same name when needed. Local modifications are discarded:
// workspaces are build mirrors.
func checkoutBranch(repo *git.Repository, wt *git.Worktree, name string) error {
	local := plumbing.NewBranchReferenceName(name)
	if _, err := repo.Reference(local, true); err == nil {
		return wt.Checkout(&git.CheckoutOptions{Branch: local, Force: true})
	}
	remote, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, name), true)
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Branch: local, Hash: remote.Hash(), Create: true, Force: true})
}

// checkoutRef resolves ref as a branch, remote branch, tag or revision.
func checkoutRef(repo *git.Repository, ref string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if hasBranch(repo, ref) {
		return checkoutBranch(repo, wt, ref)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true})
}
