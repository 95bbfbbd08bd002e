package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Worktree is one entry from git worktree list.
type Worktree struct {
	Path   string
	Head   string
	Branch string
	Bare   bool
}

// WorktreeList returns all worktrees of the repository containing dir,
// including the main checkout.
func (g *Git) WorktreeList(ctx context.Context, dir string) ([]Worktree, error) {
	out, err := g.run(ctx, dir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

func parseWorktreeList(out string) []Worktree {
	var worktrees []Worktree
	var current *Worktree
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current != nil {
				worktrees = append(worktrees, *current)
			}
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			if current != nil {
				current.Head = strings.TrimPrefix(line, "HEAD ")
			}
		case strings.HasPrefix(line, "branch "):
			if current != nil {
				ref := strings.TrimPrefix(line, "branch ")
				current.Branch = strings.TrimPrefix(ref, "refs/heads/")
			}
		case line == "bare":
			if current != nil {
				current.Bare = true
			}
		}
	}
	if current != nil {
		worktrees = append(worktrees, *current)
	}
	return worktrees
}

// FindWorktreeForBranch returns the worktree checked out on branch, if any.
func (g *Git) FindWorktreeForBranch(ctx context.Context, dir, branch string) (*Worktree, error) {
	worktrees, err := g.WorktreeList(ctx, dir)
	if err != nil {
		return nil, err
	}
	for i := range worktrees {
		if worktrees[i].Branch == branch {
			return &worktrees[i], nil
		}
	}
	return nil, nil
}

// WorktreeAdd checks out an existing branch into a new worktree at path.
func (g *Git) WorktreeAdd(ctx context.Context, dir, path, branch string) error {
	_, err := g.run(ctx, dir, "worktree", "add", path, branch)
	return err
}

// WorktreeAddNewBranch creates branch from base and checks it out into a new
// worktree at path. An empty base branches from HEAD.
func (g *Git) WorktreeAddNewBranch(ctx context.Context, dir, path, branch, base string) error {
	args := []string{"worktree", "add", "-b", branch, path}
	if base != "" {
		args = append(args, base)
	}
	_, err := g.run(ctx, dir, args...)
	return err
}

// WorktreeRemove removes the worktree at path. force discards uncommitted
// changes. The branch is left alone.
func (g *Git) WorktreeRemove(ctx context.Context, dir, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := g.run(ctx, dir, args...)
	return err
}

// IsInsideWorktree reports whether dir belongs to a linked worktree rather
// than the main checkout, by comparing the git dir with the shared common
// dir.
func (g *Git) IsInsideWorktree(ctx context.Context, dir string) bool {
	gitDir, err := g.run(ctx, dir, "rev-parse", "--git-dir")
	if err != nil || gitDir == "" {
		return false
	}
	commonDir, err := g.run(ctx, dir, "rev-parse", "--git-common-dir")
	if err != nil || commonDir == "" {
		return false
	}
	absGit, err1 := absAgainst(dir, gitDir)
	absCommon, err2 := absAgainst(dir, commonDir)
	if err1 != nil || err2 != nil {
		return false
	}
	return absGit != absCommon
}

// MainRepoFromWorktree returns the main repository root for dir. Inside a
// linked worktree that is the common dir's parent; in a normal checkout it
// is the repo root itself.
func (g *Git) MainRepoFromWorktree(ctx context.Context, dir string) (string, error) {
	commonDir, err := g.run(ctx, dir, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	abs, err := absAgainst(dir, commonDir)
	if err != nil {
		return "", fmt.Errorf("resolving git common dir: %w", err)
	}
	if filepath.Base(abs) != ".git" {
		// Bare repository: the common dir is the repo itself.
		return abs, nil
	}
	return filepath.Dir(abs), nil
}

// absAgainst resolves path against base when relative. git rev-parse prints
// paths relative to the working directory it ran in.
func absAgainst(base, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Abs(filepath.Join(base, path))
}
