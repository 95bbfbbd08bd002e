package ops

import (
	"context"
	"fmt"

	"github.com/steveyegge/mcp-tasks/internal/debug"
	"github.com/steveyegge/mcp-tasks/internal/execstate"
	"github.com/steveyegge/mcp-tasks/internal/telemetry"
	"github.com/steveyegge/mcp-tasks/internal/workon"
)

// WorkOnArgs selects the task to start working on.
type WorkOnArgs struct {
	TaskID int `json:"task-id"`
}

// WorkOn prepares the environment for a task: derives its branch, reconciles
// branch or worktree state per the configuration, and records the execution
// state once the working directory is settled. The task files themselves are
// never mutated.
func (o *Ops) WorkOn(ctx context.Context, args WorkOnArgs) (resp *Response, err error) {
	ctx, finish := telemetry.StartOp(ctx, OpWorkOn)
	defer func() { finish(err) }()

	if args.TaskID <= 0 {
		return nil, validationf(OpWorkOn, "task-id is required")
	}
	repo, err := o.Engine.Load()
	if err != nil {
		return nil, fail(OpWorkOn, err)
	}
	res, err := o.Workon.WorkOn(ctx, repo, args.TaskID, o.Settings.BaseDir)
	if err != nil {
		return nil, fail(OpWorkOn, err).with("task-id", args.TaskID)
	}

	debug.LogEvent("WORK_ON", res.Task.ID, res.BranchName)
	msg := res.Message
	if msg == "" {
		msg = fmt.Sprintf("Working on task %d: %s", res.Task.ID, res.Task.Title)
		if res.BranchSwitched {
			msg += fmt.Sprintf(" (branch %s)", res.BranchName)
		}
	}
	return respond(msg, workOnData(res), nil), nil
}

// workOnData renders the coordinator result in wire form. Worktree keys
// appear only when worktree management ran.
func workOnData(res *workon.Result) map[string]any {
	data := map[string]any{
		"task":                   res.Task,
		"branch-name":            res.BranchName,
		"state-file":             res.StatePath,
		"state-written":          res.StateWritten,
		"needs-directory-switch": res.NeedsDirectorySwitch,
	}
	if res.Story != nil {
		data["story"] = res.Story
	}
	if res.BranchCreated {
		data["branch-created"] = true
	}
	if res.BranchSwitched {
		data["branch-switched"] = true
	}
	if res.WorktreePath != "" {
		data["worktree-path"] = res.WorktreePath
		data["worktree-name"] = res.WorktreeName
		data["worktree-created"] = res.WorktreeCreated
		if res.WorktreeClean != nil {
			data["worktree-clean"] = *res.WorktreeClean
		}
	}
	return data
}

// ExecutionStateArgs drives the execution-state file: write replaces it,
// clear removes it, read reports it. Every action returns the resulting
// state.
type ExecutionStateArgs struct {
	Action  string `json:"action"`
	TaskID  *int   `json:"task-id,omitempty"`
	StoryID *int   `json:"story-id,omitempty"`
}

// ExecutionState manipulates the per-directory execution state. It touches
// neither the task files nor the lock; the state file is owned by the
// working directory.
func (o *Ops) ExecutionState(ctx context.Context, args ExecutionStateArgs) (resp *Response, err error) {
	_, finish := telemetry.StartOp(ctx, OpExecutionState)
	defer func() { finish(err) }()

	dir := o.Settings.BaseDir
	switch args.Action {
	case "write":
		if args.TaskID == nil || *args.TaskID <= 0 {
			return nil, validationf(OpExecutionState, "write requires a positive task-id")
		}
		if writeErr := execstate.Begin(dir, *args.TaskID, args.StoryID); writeErr != nil {
			return nil, fail(OpExecutionState, writeErr)
		}
	case "clear":
		if clearErr := execstate.Clear(dir); clearErr != nil {
			return nil, fail(OpExecutionState, clearErr)
		}
	case "read":
	default:
		return nil, validationf(OpExecutionState, "invalid action %q (valid: write, clear, read)", args.Action)
	}

	st := execstate.Read(dir)
	data := map[string]any{"state-file": execstate.Path(dir)}
	msg := "No execution state"
	if st != nil {
		if st.TaskID != nil {
			data["task-id"] = *st.TaskID
			msg = fmt.Sprintf("Executing task %d", *st.TaskID)
		}
		if st.StoryID != nil {
			data["story-id"] = *st.StoryID
			if st.TaskID != nil {
				msg += fmt.Sprintf(" (story %d)", *st.StoryID)
			} else {
				msg = fmt.Sprintf("Between tasks of story %d", *st.StoryID)
			}
		}
		if st.TaskStartTime != "" {
			data["task-start-time"] = st.TaskStartTime
		}
	}
	return respond(msg, data, nil), nil
}
