package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/mcp-tasks/internal/debug"
	"github.com/steveyegge/mcp-tasks/internal/execstate"
	"github.com/steveyegge/mcp-tasks/internal/store"
	"github.com/steveyegge/mcp-tasks/internal/telemetry"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

// AddTaskArgs creates one task. Category must name a known prompt; Type
// defaults to the category prompt's suggested type, then to task.
type AddTaskArgs struct {
	Category    string            `json:"category"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Design      string            `json:"design,omitempty"`
	Type        string            `json:"type,omitempty"`
	ParentID    *int              `json:"parent-id,omitempty"`
	Prepend     bool              `json:"prepend,omitempty"`
	Relations   []types.Relation  `json:"relations,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// AddTask validates the arguments, assigns the next id under the lock, and
// appends the task to the active queue.
func (o *Ops) AddTask(ctx context.Context, args AddTaskArgs) (resp *Response, err error) {
	ctx, finish := telemetry.StartOp(ctx, OpAddTask)
	defer func() { finish(err) }()

	title := strings.TrimSpace(args.Title)
	if title == "" {
		return nil, validationf(OpAddTask, "title is required")
	}
	if args.Category == "" {
		return nil, validationf(OpAddTask, "category is required").
			with("known-categories", o.Prompts.Categories())
	}
	if !o.Prompts.Has(args.Category) {
		return nil, validationf(OpAddTask, "unknown category %q (known: %s)",
			args.Category, strings.Join(o.Prompts.Categories(), ", ")).
			with("known-categories", o.Prompts.Categories())
	}
	taskType, err := o.resolveType(OpAddTask, args.Type, args.Category)
	if err != nil {
		return nil, err
	}

	var created *types.Task
	_, st, err := o.Engine.Mutate(ctx, fmt.Sprintf("mcp-tasks: add %q", title), func(r *store.Repository) error {
		t := &types.Task{
			Title:       title,
			Description: args.Description,
			Design:      args.Design,
			Category:    args.Category,
			Type:        taskType,
			ParentID:    args.ParentID,
			Relations:   args.Relations,
			Meta:        args.Meta,
		}
		var addErr error
		created, addErr = r.Add(t, args.Prepend)
		return addErr
	})
	if err != nil {
		return nil, fail(OpAddTask, err).with("title", title)
	}

	debug.LogEvent("TASK_CREATED", created.ID, created.Title)
	return respond(fmt.Sprintf("Created task %d: %s", created.ID, created.Title), created, st), nil
}

// resolveType parses an explicit task type or falls back to the category
// prompt's suggestion, then to plain task.
func (o *Ops) resolveType(op, explicit, category string) (types.TaskType, error) {
	if explicit != "" {
		t := types.TaskType(explicit)
		if !t.IsValid() {
			return "", validationf(op, "invalid type %q (valid: task, bug, feature, story, chore)", explicit)
		}
		return t, nil
	}
	if p := o.Prompts.Get(category); p != nil && p.SuggestedType != "" {
		if t := types.TaskType(p.SuggestedType); t.IsValid() {
			return t, nil
		}
	}
	return types.TypeTask, nil
}

// UpdateTaskArgs patches one task. Pointer fields replace the value;
// relations and meta replace wholesale; the add-* lists append and never
// rewrite existing entries.
type UpdateTaskArgs struct {
	TaskID           int                  `json:"task-id"`
	Title            *string              `json:"title,omitempty"`
	Description      *string              `json:"description,omitempty"`
	Design           *string              `json:"design,omitempty"`
	Category         *string              `json:"category,omitempty"`
	Type             *string              `json:"type,omitempty"`
	Status           *string              `json:"status,omitempty"`
	ParentID         *int                 `json:"parent-id,omitempty"`
	Meta             map[string]string    `json:"meta,omitempty"`
	Relations        []types.Relation     `json:"relations,omitempty"`
	AddSharedContext []string             `json:"add-shared-context,omitempty"`
	AddSessionEvents []types.SessionEvent `json:"add-session-events,omitempty"`
	CodeReviewed     *string              `json:"code-reviewed,omitempty"`
	PRNum            *int                 `json:"pr-num,omitempty"`
}

// UpdateTask applies a partial update. Shared-context entries appended while
// the working directory's execution state names a task get the "Task N: "
// prefix so the shared log attributes its entries across story children.
func (o *Ops) UpdateTask(ctx context.Context, args UpdateTaskArgs) (resp *Response, err error) {
	ctx, finish := telemetry.StartOp(ctx, OpUpdateTask)
	defer func() { finish(err) }()

	if args.TaskID <= 0 {
		return nil, validationf(OpUpdateTask, "task-id is required")
	}
	patch, changed, err := o.buildPatch(args)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, validationf(OpUpdateTask, "no fields to update").with("task-id", args.TaskID)
	}

	var updated *types.Task
	_, st, err := o.Engine.Mutate(ctx, fmt.Sprintf("mcp-tasks: update task %d", args.TaskID), func(r *store.Repository) error {
		var upErr error
		updated, upErr = r.Update(args.TaskID, patch)
		return upErr
	})
	if err != nil {
		return nil, fail(OpUpdateTask, err).with("task-id", args.TaskID)
	}

	debug.LogEvent("TASK_UPDATED", updated.ID, strings.Join(changed, ","))
	return respond(fmt.Sprintf("Updated task %d: %s", updated.ID, strings.Join(changed, ", ")), updated, st), nil
}

// buildPatch validates and converts the wire arguments into a store patch,
// returning the names of the fields it changes.
func (o *Ops) buildPatch(args UpdateTaskArgs) (store.Patch, []string, error) {
	var p store.Patch
	var changed []string

	if args.Title != nil {
		if strings.TrimSpace(*args.Title) == "" {
			return p, nil, validationf(OpUpdateTask, "title cannot be blank")
		}
		p.Title = args.Title
		changed = append(changed, "title")
	}
	if args.Description != nil {
		p.Description = args.Description
		changed = append(changed, "description")
	}
	if args.Design != nil {
		p.Design = args.Design
		changed = append(changed, "design")
	}
	if args.Category != nil {
		if !o.Prompts.Has(*args.Category) {
			return p, nil, validationf(OpUpdateTask, "unknown category %q (known: %s)",
				*args.Category, strings.Join(o.Prompts.Categories(), ", "))
		}
		p.Category = args.Category
		changed = append(changed, "category")
	}
	if args.Type != nil {
		t := types.TaskType(*args.Type)
		if !t.IsValid() {
			return p, nil, validationf(OpUpdateTask, "invalid type %q (valid: task, bug, feature, story, chore)", *args.Type)
		}
		p.Type = &t
		changed = append(changed, "type")
	}
	if args.Status != nil {
		s := types.Status(*args.Status)
		if !s.IsValid() {
			return p, nil, validationf(OpUpdateTask, "invalid status %q (valid: open, in-progress, blocked, closed, deleted)", *args.Status)
		}
		p.Status = &s
		changed = append(changed, "status")
	}
	if args.ParentID != nil {
		p.ParentID = args.ParentID
		changed = append(changed, "parent-id")
	}
	if args.Meta != nil {
		p.Meta = args.Meta
		changed = append(changed, "meta")
	}
	if args.Relations != nil {
		p.Relations = args.Relations
		changed = append(changed, "relations")
	}
	if len(args.AddSharedContext) > 0 {
		p.AddSharedContext = o.prefixSharedContext(args.AddSharedContext)
		changed = append(changed, "shared-context")
	}
	if len(args.AddSessionEvents) > 0 {
		for _, e := range args.AddSessionEvents {
			if !e.EventType.IsValid() {
				return p, nil, validationf(OpUpdateTask, "invalid event type %q (valid: user-prompt, compaction, session-start)", e.EventType)
			}
		}
		p.AddSessionEvents = args.AddSessionEvents
		changed = append(changed, "session-events")
	}
	if args.CodeReviewed != nil {
		if *args.CodeReviewed != "" {
			if tsErr := types.ValidateReviewTimestamp(*args.CodeReviewed); tsErr != nil {
				return p, nil, validationf(OpUpdateTask, "%v", tsErr)
			}
		}
		p.CodeReviewed = args.CodeReviewed
		changed = append(changed, "code-reviewed")
	}
	if args.PRNum != nil {
		p.PRNum = args.PRNum
		changed = append(changed, "pr-num")
	}
	return p, changed, nil
}

// prefixSharedContext attributes appended context entries to the task the
// working directory is executing. Direct appends with no execution state
// pass through unprefixed.
func (o *Ops) prefixSharedContext(entries []string) []string {
	st := execstate.Read(o.Settings.BaseDir)
	if st == nil || st.TaskID == nil {
		return entries
	}
	prefix := fmt.Sprintf("Task %d: ", *st.TaskID)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = prefix + e
	}
	return out
}

// SelectTasksArgs filters the task queue. Zero values mean no constraint;
// filters compose with AND. Status defaults to the non-resolved statuses;
// "any" includes the archive.
type SelectTasksArgs struct {
	TaskID       *int   `json:"task-id,omitempty"`
	Category     string `json:"category,omitempty"`
	ParentID     *int   `json:"parent-id,omitempty"`
	TitlePattern string `json:"title-pattern,omitempty"`
	Type         string `json:"type,omitempty"`
	Status       string `json:"status,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Unique       bool   `json:"unique,omitempty"`
}

// SelectTasks queries without locking or syncing. Results keep queue order:
// active tasks in insertion order, then archived tasks when the status
// filter includes them.
func (o *Ops) SelectTasks(ctx context.Context, args SelectTasksArgs) (resp *Response, err error) {
	_, finish := telemetry.StartOp(ctx, OpSelectTasks)
	defer func() { finish(err) }()

	if args.Type != "" && !types.TaskType(args.Type).IsValid() {
		return nil, validationf(OpSelectTasks, "invalid type %q (valid: task, bug, feature, story, chore)", args.Type)
	}
	if args.Status != "" && args.Status != types.StatusAny && !types.Status(args.Status).IsValid() {
		return nil, validationf(OpSelectTasks, "invalid status %q (valid: open, in-progress, blocked, closed, deleted, any)", args.Status)
	}
	if args.Limit < 0 {
		return nil, validationf(OpSelectTasks, "limit must be positive, got %d", args.Limit)
	}

	repo, err := o.Engine.Load()
	if err != nil {
		return nil, fail(OpSelectTasks, err)
	}
	res, err := repo.Query(store.QueryFilter{
		TaskFilter: types.TaskFilter{
			ID:           args.TaskID,
			Category:     args.Category,
			ParentID:     args.ParentID,
			TitlePattern: args.TitlePattern,
			Type:         types.TaskType(args.Type),
			Status:       args.Status,
		},
		Limit:  args.Limit,
		Unique: args.Unique,
	})
	if err != nil {
		return nil, fail(OpSelectTasks, err)
	}

	tasks := res.Tasks
	if tasks == nil {
		tasks = []*types.Task{}
	}
	open := 0
	for _, t := range repo.ActiveTasks() {
		if t.Status == types.StatusOpen {
			open++
		}
	}
	data := map[string]any{
		"tasks":           tasks,
		"total-matches":   res.TotalMatches,
		"open-task-count": open,
	}
	if args.ParentID != nil {
		data["closed-children"] = res.ClosedChildren
	}

	msg := fmt.Sprintf("Found %d tasks", res.TotalMatches)
	if res.TotalMatches == 1 {
		msg = "Found 1 task"
	}
	if len(tasks) < res.TotalMatches {
		msg += fmt.Sprintf(" (showing %d)", len(tasks))
	}
	return respond(msg, data, nil), nil
}
