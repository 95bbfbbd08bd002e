package ops

import (
	"context"
	"fmt"

	"github.com/steveyegge/mcp-tasks/internal/debug"
	"github.com/steveyegge/mcp-tasks/internal/execstate"
	"github.com/steveyegge/mcp-tasks/internal/store"
	"github.com/steveyegge/mcp-tasks/internal/telemetry"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

// CompleteTaskArgs closes one task, selected by id or exact title. Category
// narrows a title match when several categories share the title.
type CompleteTaskArgs struct {
	TaskID            *int   `json:"task-id,omitempty"`
	Title             string `json:"title,omitempty"`
	Category          string `json:"category,omitempty"`
	CompletionComment string `json:"completion-comment,omitempty"`
}

// CompleteTask closes the task, archives it, updates the execution state,
// and removes the task's worktree when the cleanup preconditions hold.
// Cleanup problems degrade to a warning in the response message.
func (o *Ops) CompleteTask(ctx context.Context, args CompleteTaskArgs) (resp *Response, err error) {
	ctx, finish := telemetry.StartOp(ctx, OpCompleteTask)
	defer func() { finish(err) }()

	if err := requireSelector(OpCompleteTask, args.TaskID, args.Title, "title"); err != nil {
		return nil, err
	}

	var completed *types.Task
	_, st, err := o.Engine.Mutate(ctx, commitMessage("complete", args.TaskID, args.Title), func(r *store.Repository) error {
		id, resolveErr := resolveTask(r, args.TaskID, args.Title, args.Category)
		if resolveErr != nil {
			return resolveErr
		}
		var markErr error
		completed, markErr = r.MarkComplete(id, args.CompletionComment)
		return markErr
	})
	if err != nil {
		return nil, withSelector(fail(OpCompleteTask, err), args.TaskID, "title", args.Title)
	}

	debug.LogEvent("TASK_COMPLETED", completed.ID, completed.Title)
	// State first, cleanup second: the untracked state file would otherwise
	// make the worktree look dirty and block its removal.
	if stateErr := execstate.FinishTask(o.Settings.BaseDir, completed.ID); stateErr != nil {
		debug.Logf("ops: updating execution state after complete: %v\n", stateErr)
	}

	msg := fmt.Sprintf("Completed task %d: %s", completed.ID, completed.Title)
	if warning := o.Workon.CleanupAfterComplete(ctx, completed, o.Settings.BaseDir); warning != "" {
		msg += "\nWarning: " + warning
	}
	return respond(msg, completed, st), nil
}

// DeleteTaskArgs removes one task, selected by id or title pattern. The
// pattern matches as a regular expression, or as a case-insensitive
// substring when it does not compile.
type DeleteTaskArgs struct {
	TaskID       *int   `json:"task-id,omitempty"`
	TitlePattern string `json:"title-pattern,omitempty"`
}

// DeleteTask marks the task deleted and archives it. Parents with children
// still in a blocking status are rejected. Pattern selection considers
// active tasks only and must match exactly one.
func (o *Ops) DeleteTask(ctx context.Context, args DeleteTaskArgs) (resp *Response, err error) {
	ctx, finish := telemetry.StartOp(ctx, OpDeleteTask)
	defer func() { finish(err) }()

	if err := requireSelector(OpDeleteTask, args.TaskID, args.TitlePattern, "title-pattern"); err != nil {
		return nil, err
	}

	var deleted *types.Task
	_, st, err := o.Engine.Mutate(ctx, commitMessage("delete", args.TaskID, args.TitlePattern), func(r *store.Repository) error {
		id := 0
		if args.TaskID != nil {
			id = *args.TaskID
		} else {
			res, qErr := r.Query(store.QueryFilter{TaskFilter: types.TaskFilter{TitlePattern: args.TitlePattern}})
			if qErr != nil {
				return qErr
			}
			switch res.TotalMatches {
			case 0:
				return fmt.Errorf("no active task matches %q: %w", args.TitlePattern, store.ErrNotFound)
			case 1:
				id = res.Tasks[0].ID
			default:
				return fmt.Errorf("%d active tasks match %q %v: %w",
					res.TotalMatches, args.TitlePattern, taskIDs(res.Tasks), store.ErrNotUnique)
			}
		}
		var delErr error
		deleted, delErr = r.MarkDeleted(id)
		return delErr
	})
	if err != nil {
		return nil, withSelector(fail(OpDeleteTask, err), args.TaskID, "title-pattern", args.TitlePattern)
	}

	debug.LogEvent("TASK_DELETED", deleted.ID, deleted.Title)
	if stateErr := execstate.FinishTask(o.Settings.BaseDir, deleted.ID); stateErr != nil {
		debug.Logf("ops: updating execution state after delete: %v\n", stateErr)
	}
	return respond(fmt.Sprintf("Deleted task %d: %s", deleted.ID, deleted.Title), deleted, st), nil
}

// ReopenTaskArgs returns a closed task to the active queue, selected by id
// or exact title.
type ReopenTaskArgs struct {
	TaskID *int   `json:"task-id,omitempty"`
	Title  string `json:"title,omitempty"`
}

// ReopenTask moves a closed task from the archive back to the live queue
// with status open. Deleted tasks stay deleted.
func (o *Ops) ReopenTask(ctx context.Context, args ReopenTaskArgs) (resp *Response, err error) {
	ctx, finish := telemetry.StartOp(ctx, OpReopenTask)
	defer func() { finish(err) }()

	if err := requireSelector(OpReopenTask, args.TaskID, args.Title, "title"); err != nil {
		return nil, err
	}

	var reopened *types.Task
	_, st, err := o.Engine.Mutate(ctx, commitMessage("reopen", args.TaskID, args.Title), func(r *store.Repository) error {
		id, resolveErr := resolveClosedTask(r, args.TaskID, args.Title)
		if resolveErr != nil {
			return resolveErr
		}
		var reErr error
		reopened, reErr = r.Reopen(id)
		return reErr
	})
	if err != nil {
		return nil, withSelector(fail(OpReopenTask, err), args.TaskID, "title", args.Title)
	}

	debug.LogEvent("TASK_REOPENED", reopened.ID, reopened.Title)
	return respond(fmt.Sprintf("Reopened task %d: %s", reopened.ID, reopened.Title), reopened, st), nil
}

// requireSelector enforces exactly one of id and the title-style selector.
func requireSelector(op string, id *int, title, titleField string) *OpError {
	switch {
	case id == nil && title == "":
		return validationf(op, "task-id or %s is required", titleField)
	case id != nil && title != "":
		return validationf(op, "give task-id or %s, not both", titleField)
	case id != nil && *id <= 0:
		return validationf(op, "task-id must be positive, got %d", *id)
	}
	return nil
}

// withSelector records which selector the failed operation used.
func withSelector(e *OpError, id *int, key, value string) *OpError {
	if id != nil {
		return e.with("task-id", *id)
	}
	return e.with(key, value)
}

// commitMessage names the mutation for the tasks-repo commit. Title-selected
// operations cannot know the id before the lock is taken.
func commitMessage(verb string, id *int, title string) string {
	if id != nil {
		return fmt.Sprintf("mcp-tasks: %s task %d", verb, *id)
	}
	return fmt.Sprintf("mcp-tasks: %s %q", verb, title)
}

// resolveTask finds the mutation target: directly by id when given, else by
// exact title among active tasks, narrowed by category when set.
func resolveTask(r *store.Repository, id *int, title, category string) (int, error) {
	if id != nil {
		return *id, nil
	}
	var matches []*types.Task
	for _, t := range r.ActiveTasks() {
		if t.Title != title {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		matches = append(matches, t)
	}
	switch len(matches) {
	case 0:
		return 0, fmt.Errorf("no active task titled %q: %w", title, store.ErrNotFound)
	case 1:
		return matches[0].ID, nil
	default:
		return 0, fmt.Errorf("%d active tasks titled %q %v: %w",
			len(matches), title, taskIDs(matches), store.ErrNotUnique)
	}
}

// resolveClosedTask finds the reopen target: by id directly, else by exact
// title among closed tasks. An active task with the title is reported as
// still active rather than not found.
func resolveClosedTask(r *store.Repository, id *int, title string) (int, error) {
	if id != nil {
		return *id, nil
	}
	res, err := r.Query(store.QueryFilter{TaskFilter: types.TaskFilter{Status: string(types.StatusClosed)}})
	if err != nil {
		return 0, err
	}
	var matches []*types.Task
	for _, t := range res.Tasks {
		if t.Title == title {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		for _, t := range r.ActiveTasks() {
			if t.Title == title {
				return 0, fmt.Errorf("task %d %q is still active: %w", t.ID, title, store.ErrNotClosed)
			}
		}
		return 0, fmt.Errorf("no closed task titled %q: %w", title, store.ErrNotFound)
	case 1:
		return matches[0].ID, nil
	default:
		return 0, fmt.Errorf("%d closed tasks titled %q %v: %w",
			len(matches), title, taskIDs(matches), store.ErrNotUnique)
	}
}

func taskIDs(tasks []*types.Task) []int {
	ids := make([]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
