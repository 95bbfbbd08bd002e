package ops

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/mcp-tasks/internal/config"
	"github.com/steveyegge/mcp-tasks/internal/git"
	"github.com/steveyegge/mcp-tasks/internal/gitsync"
	"github.com/steveyegge/mcp-tasks/internal/lock"
	"github.com/steveyegge/mcp-tasks/internal/store"
	"github.com/steveyegge/mcp-tasks/internal/types"
	"github.com/steveyegge/mcp-tasks/internal/workon"
)

func testSettings(dir string) *config.Settings {
	return &config.Settings{
		BaseDir:          dir,
		MainRepoDir:      dir,
		TasksDir:         filepath.Join(dir, ".mcp-tasks"),
		WorktreePrefix:   config.PrefixProjectName,
		BranchTitleWords: 4,
		LockTimeout:      2 * time.Second,
		LockPollInterval: 10 * time.Millisecond,
	}
}

func newOps(t *testing.T, settings *config.Settings) *Ops {
	t.Helper()
	o, err := New(settings, &config.LocalConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func testOps(t *testing.T) *Ops {
	t.Helper()
	return newOps(t, testSettings(t.TempDir()))
}

func intp(v int) *int { return &v }

func strp(v string) *string { return &v }

// mustAdd adds a task, defaulting the category to simple.
func mustAdd(t *testing.T, o *Ops, args AddTaskArgs) *types.Task {
	t.Helper()
	if args.Category == "" {
		args.Category = "simple"
	}
	resp, err := o.AddTask(context.Background(), args)
	if err != nil {
		t.Fatalf("AddTask(%q): %v", args.Title, err)
	}
	return taskFrom(t, resp)
}

// taskFrom extracts the task payload chunk from a single-task response.
func taskFrom(t *testing.T, resp *Response) *types.Task {
	t.Helper()
	for _, c := range resp.Content {
		if task, ok := c.Data.(*types.Task); ok {
			return task
		}
	}
	t.Fatalf("no task chunk in response: %+v", resp)
	return nil
}

// dataFrom extracts the structured payload chunk, skipping git-status.
func dataFrom(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	for _, c := range resp.Content {
		if m, ok := c.Data.(map[string]any); ok {
			if _, isGit := m["git-status"]; !isGit {
				return m
			}
		}
	}
	t.Fatalf("no data chunk in response: %+v", resp)
	return nil
}

func gitStatusFrom(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	for _, c := range resp.Content {
		if m, ok := c.Data.(map[string]any); ok {
			if _, isGit := m["git-status"]; isGit {
				return m
			}
		}
	}
	t.Fatalf("no git-status chunk in response: %+v", resp)
	return nil
}

func wantKind(t *testing.T, err error, kind Kind) *OpError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var oe *OpError
	if !errors.As(err, &oe) {
		t.Fatalf("error %v is not an *OpError", err)
	}
	if oe.Kind != kind {
		t.Fatalf("error kind = %s, want %s (%v)", oe.Kind, kind, err)
	}
	return oe
}

// canonical resolves symlinks so path comparisons survive /tmp symlinks.
func canonical(t *testing.T, dir string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s): %v", dir, err)
	}
	return resolved
}

func TestFailClassifiesKinds(t *testing.T) {
	conflict := &git.GitError{
		Args:   []string{"pull"},
		Stdout: "CONFLICT (content): Merge conflict in tasks.ednl\nAutomatic merge failed; fix conflicts and then commit the result.",
		Err:    errors.New("exit status 1"),
	}
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"lock timeout", &lock.TimeoutError{Path: "/x/tasks.ednl.lock", Timeout: time.Second}, KindLock},
		{"pull conflict", &gitsync.PullError{Dir: "/x", Err: conflict}, KindSync},
		{"cycle", &store.CycleError{Cycle: []int{1, 2, 1}}, KindValidation},
		{"blocking children", &store.ChildrenBlockingError{ParentID: 1, ChildIDs: []int{2}}, KindState},
		{"duplicate id", &store.DuplicateIDError{ID: 3, First: "tasks.ednl", Next: "complete.ednl"}, KindSync},
		{"not found", fmt.Errorf("task 9: %w", store.ErrNotFound), KindNotFound},
		{"not unique", fmt.Errorf("2 tasks matched: %w", store.ErrNotUnique), KindValidation},
		{"size limit", fmt.Errorf("too big: %w", store.ErrSizeLimit), KindValidation},
		{"already closed", fmt.Errorf("task 4: %w", store.ErrAlreadyClosed), KindState},
		{"already deleted", fmt.Errorf("task 4: %w", store.ErrAlreadyDeleted), KindState},
		{"not closed", fmt.Errorf("task 4: %w", store.ErrNotClosed), KindState},
		{"bad transition", fmt.Errorf("open -> closed: %w", store.ErrBadTransition), KindState},
		{"not story", fmt.Errorf("parent 5: %w", workon.ErrNotStory), KindNotFound},
		{"dirty tree", fmt.Errorf("switching: %w", workon.ErrDirtyWorkingTree), KindGit},
		{"missing base", fmt.Errorf("release: %w", workon.ErrBaseBranchMissing), KindGit},
		{"wrong branch", fmt.Errorf("worktree: %w", workon.ErrWrongBranch), KindGit},
		{"git failure", conflict, KindGit},
		{"unclassified", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oe := fail(OpAddTask, tt.err)
			if oe.Kind != tt.want {
				t.Errorf("fail(%v) kind = %s, want %s", tt.err, oe.Kind, tt.want)
			}
			if oe.Op != OpAddTask {
				t.Errorf("op = %q, want %q", oe.Op, OpAddTask)
			}
		})
	}
}

func TestFailPullConflictDetails(t *testing.T) {
	conflict := &git.GitError{
		Args:   []string{"pull"},
		Stdout: "CONFLICT (content): Merge conflict in tasks.ednl",
		Err:    errors.New("exit status 1"),
	}
	oe := fail(OpAddTask, &gitsync.PullError{Dir: "/work/.mcp-tasks", Err: conflict})
	if oe.Details["merge-conflict"] != true {
		t.Errorf("merge-conflict = %v, want true", oe.Details["merge-conflict"])
	}
	if oe.Details["tasks-dir"] != "/work/.mcp-tasks" {
		t.Errorf("tasks-dir = %v", oe.Details["tasks-dir"])
	}
	if !strings.Contains(oe.Message, "resolve it there") {
		t.Errorf("message %q does not ask for manual resolution", oe.Message)
	}
}

func TestFailBlockingChildrenDetails(t *testing.T) {
	oe := fail(OpCompleteTask, &store.ChildrenBlockingError{ParentID: 10, ChildIDs: []int{11, 12}})
	ids, ok := oe.Details["blocking-children"].([]int)
	if !ok || len(ids) != 2 || ids[0] != 11 {
		t.Errorf("blocking-children = %v, want [11 12]", oe.Details["blocking-children"])
	}
	if oe.Details["parent-id"] != 10 {
		t.Errorf("parent-id = %v, want 10", oe.Details["parent-id"])
	}
}

func TestFailPreservesClassifiedErrors(t *testing.T) {
	orig := validationf(OpUpdateTask, "bad input")
	oe := fail(OpAddTask, fmt.Errorf("wrapped: %w", orig))
	if oe != orig {
		t.Errorf("fail rewrapped an already classified error: %v", oe)
	}
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(validationf(OpAddTask, "title is required"))
	if !resp.IsError {
		t.Fatal("IsError not set")
	}
	if !strings.Contains(resp.Message(), "title is required") {
		t.Errorf("message = %q", resp.Message())
	}
	payload, ok := resp.Content[1].Data.(map[string]any)
	if !ok {
		t.Fatalf("second chunk is not the payload: %+v", resp.Content)
	}
	if payload["attempted-operation"] != OpAddTask {
		t.Errorf("attempted-operation = %v", payload["attempted-operation"])
	}
	if payload["error-type"] != "validation" {
		t.Errorf("error-type = %v", payload["error-type"])
	}
}

func TestErrorResponseWrapsPlainErrors(t *testing.T) {
	resp := ErrorResponse(errors.New("disk on fire"))
	if !resp.IsError {
		t.Fatal("IsError not set")
	}
	payload := resp.Content[1].Data.(map[string]any)
	if payload["error-type"] != "internal" {
		t.Errorf("error-type = %v, want internal", payload["error-type"])
	}
	if payload["message"] != "disk on fire" {
		t.Errorf("message = %v", payload["message"])
	}
}
