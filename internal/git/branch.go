package git

import (
	"context"
	"fmt"
	"strings"
)

// CurrentBranch returns the checked-out branch name, or an empty string on a
// detached HEAD.
func (g *Git) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "branch", "--show-current")
}

// BranchExists reports whether a local branch with the given name exists.
func (g *Git) BranchExists(ctx context.Context, dir, branch string) bool {
	_, err := g.run(ctx, dir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// DefaultBranch resolves the base branch: the remote HEAD when one is
// configured, else a local main or master branch, else the current branch.
func (g *Git) DefaultBranch(ctx context.Context, dir string) (string, error) {
	if out, err := g.run(ctx, dir, "symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil {
		return strings.TrimPrefix(out, "origin/"), nil
	}
	for _, name := range []string{"main", "master"} {
		if g.BranchExists(ctx, dir, name) {
			return name, nil
		}
	}
	current, err := g.CurrentBranch(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("resolving default branch: %w", err)
	}
	if current == "" {
		return "", fmt.Errorf("resolving default branch: detached HEAD and no main or master")
	}
	return current, nil
}

// Checkout switches dir to an existing branch.
func (g *Git) Checkout(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "checkout", branch)
	return err
}

// CreateAndCheckout creates branch from base and switches to it. An empty
// base branches from HEAD.
func (g *Git) CreateAndCheckout(ctx context.Context, dir, branch, base string) error {
	args := []string{"checkout", "-b", branch}
	if base != "" {
		args = append(args, base)
	}
	_, err := g.run(ctx, dir, args...)
	return err
}

// Pull runs git pull in dir. Callers classify failures with IsNoRemote,
// IsEmptyRepo, IsMergeConflict, and IsNetworkError.
func (g *Git) Pull(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "pull")
	return err
}

// Push pushes the current branch.
func (g *Git) Push(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "push")
	return err
}

// UncommittedChanges reports whether the work tree has staged or unstaged
// changes.
func (g *Git) UncommittedChanges(ctx context.Context, dir string) (bool, error) {
	out, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// AllPushed reports whether every local commit on the current branch is on
// its upstream. A branch with a remote configured but no upstream counts as
// not pushed.
func (g *Git) AllPushed(ctx context.Context, dir string) (bool, error) {
	out, err := g.run(ctx, dir, "rev-list", "--count", "@{upstream}..HEAD")
	if err != nil {
		if outputContains(err, "no upstream", "upstream configured") {
			return !g.HasRemote(ctx, dir), nil
		}
		return false, err
	}
	return out == "0", nil
}

// CommitPaths stages the given paths and commits them in dir's repository.
// Returns the new commit sha. When the staged paths hold no changes it
// returns an empty sha and no error.
func (g *Git) CommitPaths(ctx context.Context, dir string, paths []string, message string) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}
	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := g.run(ctx, dir, addArgs...); err != nil {
		return "", err
	}

	commitArgs := []string{"commit", "-m", message}
	if g.Author != "" {
		commitArgs = append(commitArgs, "--author", g.Author)
	}
	if g.NoGPGSign {
		commitArgs = append(commitArgs, "--no-gpg-sign")
	}
	if _, err := g.run(ctx, dir, commitArgs...); err != nil {
		if IsNothingToCommit(err) {
			return "", nil
		}
		return "", err
	}
	return g.RevParseHead(ctx, dir)
}
