// Package workon prepares the working environment for a task: deriving its
// branch, reconciling branch or worktree state, and recording the execution
// state once the working directory is settled.
package workon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/mcp-tasks/internal/config"
	"github.com/steveyegge/mcp-tasks/internal/debug"
	"github.com/steveyegge/mcp-tasks/internal/execstate"
	"github.com/steveyegge/mcp-tasks/internal/git"
	"github.com/steveyegge/mcp-tasks/internal/store"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

var (
	// ErrDirtyWorkingTree means a branch switch was refused because the
	// working tree holds uncommitted changes.
	ErrDirtyWorkingTree = errors.New("uncommitted changes in working tree")
	// ErrBaseBranchMissing means the configured base branch does not exist.
	ErrBaseBranchMissing = errors.New("base branch does not exist")
	// ErrWrongBranch means the current worktree is checked out on a branch
	// other than the task's.
	ErrWrongBranch = errors.New("worktree is on an unexpected branch")
	// ErrNotStory means a task's parent is not a story.
	ErrNotStory = errors.New("parent is not a story")
)

// Result reports what work-on did and where the caller should work.
type Result struct {
	Task  *types.Task
	Story *types.Task

	BranchName     string
	BranchCreated  bool
	BranchSwitched bool

	WorktreePath    string
	WorktreeName    string
	WorktreeCreated bool
	// WorktreeClean is set only when the worktree state was verified.
	WorktreeClean *bool

	// StatePath is where the execution state lives once written.
	StatePath    string
	StateWritten bool

	// NeedsDirectorySwitch means the caller must move to WorktreePath
	// before working; Message explains how.
	NeedsDirectorySwitch bool
	Message              string
}

// Coordinator reconciles git state for tasks.
type Coordinator struct {
	settings *config.Settings
	git      *git.Git
}

func New(settings *config.Settings, g *git.Git) *Coordinator {
	return &Coordinator{settings: settings, git: g}
}

// WorkOn prepares the environment for the task. The branch derives from the
// parent story when one exists, so sibling tasks share a branch and
// worktree. Execution state is written only when no directory switch is
// required.
func (c *Coordinator) WorkOn(ctx context.Context, repo *store.Repository, taskID int, workDir string) (*Result, error) {
	task := repo.Get(taskID)
	if task == nil {
		return nil, fmt.Errorf("task %d: %w", taskID, store.ErrNotFound)
	}

	title, sourceID := task.Title, task.ID
	var story *types.Task
	if task.ParentID != nil {
		story = repo.Get(*task.ParentID)
		if story == nil {
			return nil, fmt.Errorf("parent story %d: %w", *task.ParentID, store.ErrNotFound)
		}
		if story.Type != types.TypeStory {
			return nil, fmt.Errorf("task %d parent %d: %w", task.ID, story.ID, ErrNotStory)
		}
		title, sourceID = story.Title, story.ID
	}

	res := &Result{
		Task:       task,
		Story:      story,
		BranchName: git.BranchName(sourceID, title, c.settings.BranchTitleWords),
		StatePath:  execstate.Path(workDir),
	}

	switch {
	case c.settings.WorktreeManagement:
		if err := c.prepareWorktree(ctx, res, workDir); err != nil {
			return nil, err
		}
	case c.settings.BranchManagement:
		if err := c.prepareBranch(ctx, res, workDir); err != nil {
			return nil, err
		}
	}

	if !res.NeedsDirectorySwitch {
		var storyID *int
		if story != nil {
			storyID = &story.ID
		}
		if err := execstate.Begin(workDir, task.ID, storyID); err != nil {
			return nil, fmt.Errorf("writing execution state: %w", err)
		}
		res.StateWritten = true
	}
	return res, nil
}

func (c *Coordinator) prepareWorktree(ctx context.Context, res *Result, workDir string) error {
	mainRepo := c.settings.MainRepoDir

	existing, err := c.git.FindWorktreeForBranch(ctx, mainRepo, res.BranchName)
	if err != nil {
		return fmt.Errorf("listing worktrees: %w", err)
	}
	if existing != nil {
		res.WorktreePath = existing.Path
		res.WorktreeName = filepath.Base(existing.Path)
	} else {
		name := res.BranchName
		if c.settings.WorktreePrefix == config.PrefixProjectName {
			name = c.settings.ProjectName() + "-" + name
		}
		res.WorktreeName = name
		res.WorktreePath = filepath.Join(filepath.Dir(mainRepo), name)
	}

	if _, err := os.Stat(res.WorktreePath); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("checking worktree path: %w", err)
		}
		branchCreated, err := c.createWorktree(ctx, mainRepo, res.WorktreePath, res.BranchName)
		if err != nil {
			return err
		}
		res.BranchCreated = branchCreated
		res.WorktreeCreated = true
		res.NeedsDirectorySwitch = true
		res.Message = fmt.Sprintf("Created worktree %s on branch %s. Start a new session in that directory to work on this task.",
			res.WorktreePath, res.BranchName)
		return nil
	}

	inside, err := insideDir(workDir, res.WorktreePath)
	if err != nil {
		return err
	}
	if !inside {
		res.NeedsDirectorySwitch = true
		res.Message = fmt.Sprintf("Worktree %s already exists. Switch to that directory to work on this task.", res.WorktreePath)
		return nil
	}

	// Working inside the worktree: it must be on the task's branch.
	current, err := c.git.CurrentBranch(ctx, res.WorktreePath)
	if err != nil {
		return fmt.Errorf("reading worktree branch: %w", err)
	}
	if current != res.BranchName {
		return fmt.Errorf("worktree %s is on %s, expected %s: %w",
			res.WorktreePath, current, res.BranchName, ErrWrongBranch)
	}
	dirty, err := c.git.UncommittedChanges(ctx, res.WorktreePath)
	if err != nil {
		return fmt.Errorf("checking worktree state: %w", err)
	}
	clean := !dirty
	res.WorktreeClean = &clean
	return nil
}

func (c *Coordinator) createWorktree(ctx context.Context, mainRepo, path, branch string) (branchCreated bool, err error) {
	if c.git.BranchExists(ctx, mainRepo, branch) {
		if err := c.git.WorktreeAdd(ctx, mainRepo, path, branch); err != nil {
			return false, fmt.Errorf("creating worktree: %w", err)
		}
		return false, nil
	}
	base, err := c.baseBranch(ctx, mainRepo)
	if err != nil {
		return false, err
	}
	if err := c.git.WorktreeAddNewBranch(ctx, mainRepo, path, branch, base); err != nil {
		return false, fmt.Errorf("creating worktree: %w", err)
	}
	return true, nil
}

func (c *Coordinator) prepareBranch(ctx context.Context, res *Result, workDir string) error {
	current, err := c.git.CurrentBranch(ctx, workDir)
	if err != nil {
		return fmt.Errorf("reading current branch: %w", err)
	}
	if current == res.BranchName {
		return nil
	}

	dirty, err := c.git.UncommittedChanges(ctx, workDir)
	if err != nil {
		return fmt.Errorf("checking working tree: %w", err)
	}
	if dirty {
		return fmt.Errorf("switching to %s: %w", res.BranchName, ErrDirtyWorkingTree)
	}

	base, err := c.baseBranch(ctx, workDir)
	if err != nil {
		return err
	}
	if err := c.git.Checkout(ctx, workDir, base); err != nil {
		return fmt.Errorf("checking out %s: %w", base, err)
	}
	if err := c.git.Pull(ctx, workDir); err != nil {
		// Local-only repositories have nothing to pull from.
		debug.Logf("workon: pull on %s: %v\n", base, err)
	}

	if c.git.BranchExists(ctx, workDir, res.BranchName) {
		if err := c.git.Checkout(ctx, workDir, res.BranchName); err != nil {
			return fmt.Errorf("checking out %s: %w", res.BranchName, err)
		}
	} else {
		if err := c.git.CreateAndCheckout(ctx, workDir, res.BranchName, base); err != nil {
			return fmt.Errorf("creating branch %s: %w", res.BranchName, err)
		}
		res.BranchCreated = true
	}
	res.BranchSwitched = true
	return nil
}

func (c *Coordinator) baseBranch(ctx context.Context, dir string) (string, error) {
	if c.settings.BaseBranch != "" {
		if !c.git.BranchExists(ctx, dir, c.settings.BaseBranch) {
			return "", fmt.Errorf("%s: %w", c.settings.BaseBranch, ErrBaseBranchMissing)
		}
		return c.settings.BaseBranch, nil
	}
	base, err := c.git.DefaultBranch(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("detecting base branch: %w", err)
	}
	return base, nil
}

// CleanupAfterComplete removes the worktree a just-completed task was worked
// in. It applies only to standalone tasks and stories; child-task worktrees
// are shared with siblings and stay. Failures and skipped preconditions
// come back as a warning string, never an error, and the branch is never
// deleted.
func (c *Coordinator) CleanupAfterComplete(ctx context.Context, task *types.Task, workDir string) string {
	if !c.settings.WorktreeManagement || task.ParentID != nil {
		return ""
	}
	if !c.git.IsInsideWorktree(ctx, workDir) {
		return ""
	}
	root, err := c.git.RepoRoot(ctx, workDir)
	if err != nil {
		return fmt.Sprintf("worktree cleanup skipped: %v", err)
	}
	dirty, err := c.git.UncommittedChanges(ctx, root)
	if err != nil {
		return fmt.Sprintf("worktree cleanup skipped: %v", err)
	}
	if dirty {
		return fmt.Sprintf("worktree %s kept: uncommitted changes present", root)
	}
	pushed, err := c.git.AllPushed(ctx, root)
	if err != nil {
		return fmt.Sprintf("worktree cleanup skipped: %v", err)
	}
	if !pushed {
		return fmt.Sprintf("worktree %s kept: unpushed commits present", root)
	}
	mainRepo, err := c.git.MainRepoFromWorktree(ctx, root)
	if err != nil {
		return fmt.Sprintf("worktree cleanup skipped: %v", err)
	}
	if err := c.git.WorktreeRemove(ctx, mainRepo, root, false); err != nil {
		return fmt.Sprintf("removing worktree %s: %v", root, err)
	}
	return ""
}

// insideDir reports whether dir is root or lives under it, resolving
// symlinks on both sides first.
func insideDir(dir, root string) (bool, error) {
	d, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false, err
	}
	r, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(r, d)
	if err != nil {
		return false, err
	}
	if rel == "." {
		return true, nil
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}
