package store

import (
	"fmt"
	"time"

	"github.com/steveyegge/mcp-tasks/internal/ednl"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

// Repository is the in-memory view of one tasks directory: active tasks in
// insertion order plus the archive of closed and deleted tasks. It is not
// safe for concurrent use; callers serialize through the directory lock.
type Repository struct {
	active      []*types.Task
	activeByID  map[int]*types.Task
	archive     []*types.Task
	archiveByID map[int]*types.Task
	nextID      int

	activeDirty    bool
	archiveRewrite bool
	archiveAppends []*types.Task
}

// Load reads both task streams and builds the repository. Ids must be unique
// across the two files combined; a duplicate rejects the whole load.
func Load(p Paths) (*Repository, error) {
	active, err := ReadTasks(p.Tasks)
	if err != nil {
		return nil, err
	}
	archive, err := ReadTasks(p.Complete)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		active:      active,
		activeByID:  make(map[int]*types.Task, len(active)),
		archive:     archive,
		archiveByID: make(map[int]*types.Task, len(archive)),
		nextID:      1,
	}

	seen := make(map[int]string, len(active)+len(archive))
	index := func(tasks []*types.Task, byID map[int]*types.Task, file string) error {
		for _, t := range tasks {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("%s: task %d: %w", file, t.ID, err)
			}
			if first, dup := seen[t.ID]; dup {
				return &DuplicateIDError{ID: t.ID, First: first, Next: file}
			}
			seen[t.ID] = file
			byID[t.ID] = t
			if t.ID >= r.nextID {
				r.nextID = t.ID + 1
			}
		}
		return nil
	}
	if err := index(active, r.activeByID, p.Tasks); err != nil {
		return nil, err
	}
	if err := index(archive, r.archiveByID, p.Complete); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRepository returns an empty repository, used by tests and by init before
// any file exists.
func NewRepository() *Repository {
	return &Repository{
		activeByID:  make(map[int]*types.Task),
		archiveByID: make(map[int]*types.Task),
		nextID:      1,
	}
}

// Save flushes pending changes. The active file is rewritten atomically;
// the archive is appended to in completion order unless an operation
// (reopen, delete of an archived task) forced a rewrite.
func (r *Repository) Save(p Paths) error {
	if r.activeDirty {
		if err := WriteTasks(p.Tasks, r.active); err != nil {
			return err
		}
	}
	if r.archiveRewrite {
		if err := WriteTasks(p.Complete, r.archive); err != nil {
			return err
		}
	} else if len(r.archiveAppends) > 0 {
		if err := AppendTasks(p.Complete, r.archiveAppends...); err != nil {
			return err
		}
	}
	r.activeDirty = false
	r.archiveRewrite = false
	r.archiveAppends = nil
	return nil
}

// Dirty reports whether any unsaved mutation is pending.
func (r *Repository) Dirty() bool {
	return r.activeDirty || r.archiveRewrite || len(r.archiveAppends) > 0
}

// ChangedPaths lists the files the pending mutations touch, for git staging.
func (r *Repository) ChangedPaths(p Paths) []string {
	var paths []string
	if r.activeDirty {
		paths = append(paths, p.Tasks)
	}
	if r.archiveRewrite || len(r.archiveAppends) > 0 {
		paths = append(paths, p.Complete)
	}
	return paths
}

// Get returns the task with the given id from the active set or the archive,
// or nil when no such task exists.
func (r *Repository) Get(id int) *types.Task {
	if t, ok := r.activeByID[id]; ok {
		return t
	}
	if t, ok := r.archiveByID[id]; ok {
		return t
	}
	return nil
}

// ActiveTasks returns the active tasks in insertion order. Callers must not
// mutate the returned tasks.
func (r *Repository) ActiveTasks() []*types.Task {
	return r.active
}

// NextID returns the id the next added task will receive.
func (r *Repository) NextID() int {
	return r.nextID
}

// Children returns the active tasks whose parent-id matches, in insertion
// order.
func (r *Repository) Children(parentID int) []*types.Task {
	var out []*types.Task
	for _, t := range r.active {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out
}

// ClosedChildrenCount counts archived children of parentID with status
// closed. Deleted children do not count toward progress.
func (r *Repository) ClosedChildrenCount(parentID int) int {
	n := 0
	for _, t := range r.archive {
		if t.Status == types.StatusClosed && t.ParentID != nil && *t.ParentID == parentID {
			n++
		}
	}
	return n
}

// Add assigns the next id to the task, forces status open, validates it, and
// inserts it into the active set. prepend places it at the head of the queue
// instead of the tail.
func (r *Repository) Add(t *types.Task, prepend bool) (*types.Task, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot add nil task")
	}
	t.ID = r.nextID
	t.Status = types.StatusOpen
	t.SetDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.ParentID != nil {
		if r.Get(*t.ParentID) == nil {
			return nil, fmt.Errorf("parent task %d: %w", *t.ParentID, ErrNotFound)
		}
	}
	for _, rel := range t.Relations {
		if rel.RelatesTo != t.ID && r.Get(rel.RelatesTo) == nil {
			return nil, fmt.Errorf("relation target %d: %w", rel.RelatesTo, ErrNotFound)
		}
	}
	if cycle := r.cycleFrom(t.ID, t.BlockedByIDs()); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	r.nextID++
	if prepend {
		r.active = append([]*types.Task{t}, r.active...)
	} else {
		r.active = append(r.active, t)
	}
	r.activeByID[t.ID] = t
	r.activeDirty = true
	return t, nil
}

// Patch describes a partial update. Pointer fields replace the value when
// non-nil. Meta and Relations replace wholesale when non-nil; pass an empty
// non-nil value to clear. The Add lists append and never rewrite existing
// entries.
type Patch struct {
	Title            *string
	Description      *string
	Design           *string
	Category         *string
	Type             *types.TaskType
	Status           *types.Status
	ParentID         *int
	Meta             map[string]string
	Relations        []types.Relation
	AddSharedContext []string
	AddSessionEvents []types.SessionEvent
	CodeReviewed     *string
	PRNum            *int
}

// Update applies a patch to the task with the given id. Archived tasks accept
// field updates (review metadata arrives after completion) but not status
// changes; those go through Reopen. The mutation is validated on a copy and
// committed only when every check passes.
func (r *Repository) Update(id int, patch Patch) (*types.Task, error) {
	task := r.Get(id)
	if task == nil {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	_, archived := r.archiveByID[id]

	next := task.Clone()
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Design != nil {
		next.Design = *patch.Design
	}
	if patch.Category != nil {
		next.Category = *patch.Category
	}
	if patch.Type != nil {
		next.Type = *patch.Type
	}
	if patch.Status != nil {
		if archived {
			return nil, fmt.Errorf("task %d is archived; reopen it instead: %w", id, ErrBadTransition)
		}
		if err := checkTransition(task.Status, *patch.Status); err != nil {
			return nil, err
		}
		next.Status = *patch.Status
	}
	if patch.ParentID != nil {
		if *patch.ParentID == id {
			return nil, fmt.Errorf("task %d cannot be its own parent", id)
		}
		if r.Get(*patch.ParentID) == nil {
			return nil, fmt.Errorf("parent task %d: %w", *patch.ParentID, ErrNotFound)
		}
		pid := *patch.ParentID
		next.ParentID = &pid
	}
	if patch.Meta != nil {
		next.Meta = make(map[string]string, len(patch.Meta))
		for k, v := range patch.Meta {
			next.Meta[k] = v
		}
	}
	if patch.Relations != nil {
		next.Relations = append([]types.Relation{}, patch.Relations...)
	}
	if len(patch.AddSharedContext) > 0 {
		next.SharedContext = append(next.SharedContext, patch.AddSharedContext...)
		size, err := ednl.SharedContextSize(next.SharedContext)
		if err != nil {
			return nil, err
		}
		if size > types.MaxAppendListBytes {
			return nil, fmt.Errorf("shared-context would be %d bytes (limit %d): %w", size, types.MaxAppendListBytes, ErrSizeLimit)
		}
	}
	if len(patch.AddSessionEvents) > 0 {
		for _, e := range patch.AddSessionEvents {
			if e.Timestamp == "" {
				e.Timestamp = time.Now().UTC().Format(time.RFC3339)
			}
			next.SessionEvents = append(next.SessionEvents, e)
		}
		size, err := ednl.SessionEventsSize(next.SessionEvents)
		if err != nil {
			return nil, err
		}
		if size > types.MaxAppendListBytes {
			return nil, fmt.Errorf("session-events would be %d bytes (limit %d): %w", size, types.MaxAppendListBytes, ErrSizeLimit)
		}
	}
	if patch.CodeReviewed != nil {
		next.CodeReviewed = *patch.CodeReviewed
	}
	if patch.PRNum != nil {
		pr := *patch.PRNum
		next.PRNum = &pr
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	if patch.Relations != nil {
		if cycle := r.cycleFrom(id, next.BlockedByIDs()); cycle != nil {
			return nil, &CycleError{Cycle: cycle}
		}
	}

	*task = *next
	if archived {
		r.archiveRewrite = true
	} else {
		r.activeDirty = true
	}
	return task, nil
}

// MarkComplete closes a task and moves it to the archive, appending the
// optional completion comment to its description. Tasks with children still
// in a blocking status cannot be completed.
func (r *Repository) MarkComplete(id int, comment string) (*types.Task, error) {
	if t, ok := r.archiveByID[id]; ok {
		if t.Status == types.StatusDeleted {
			return nil, fmt.Errorf("task %d: %w", id, ErrAlreadyDeleted)
		}
		return nil, fmt.Errorf("task %d: %w", id, ErrAlreadyClosed)
	}
	task, ok := r.activeByID[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if ids := r.blockingChildIDs(id); len(ids) > 0 {
		return nil, &ChildrenBlockingError{ParentID: id, ChildIDs: ids}
	}

	if comment != "" {
		if task.Description == "" {
			task.Description = comment
		} else {
			task.Description += "\n\n" + comment
		}
	}
	task.Status = types.StatusClosed
	r.moveToArchive(task)
	return task, nil
}

// MarkDeleted marks a task deleted and archives it. Deleting a parent with
// children in a blocking status is rejected.
func (r *Repository) MarkDeleted(id int) (*types.Task, error) {
	if t, ok := r.archiveByID[id]; ok {
		if t.Status == types.StatusDeleted {
			return nil, fmt.Errorf("task %d: %w", id, ErrAlreadyDeleted)
		}
		if ids := r.blockingChildIDs(id); len(ids) > 0 {
			return nil, &ChildrenBlockingError{ParentID: id, ChildIDs: ids}
		}
		t.Status = types.StatusDeleted
		r.archiveRewrite = true
		return t, nil
	}
	task, ok := r.activeByID[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if ids := r.blockingChildIDs(id); len(ids) > 0 {
		return nil, &ChildrenBlockingError{ParentID: id, ChildIDs: ids}
	}
	task.Status = types.StatusDeleted
	r.moveToArchive(task)
	return task, nil
}

// Reopen moves a closed task back to the active queue with status open,
// removing it from the archive stream.
func (r *Repository) Reopen(id int) (*types.Task, error) {
	task, ok := r.archiveByID[id]
	if !ok {
		if _, active := r.activeByID[id]; active {
			return nil, fmt.Errorf("task %d: %w", id, ErrNotClosed)
		}
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if task.Status != types.StatusClosed {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotClosed)
	}

	for i, t := range r.archive {
		if t.ID == id {
			r.archive = append(r.archive[:i], r.archive[i+1:]...)
			break
		}
	}
	delete(r.archiveByID, id)
	// Pending appends may still reference the task; folding into a rewrite
	// keeps the archive file consistent.
	r.archiveAppends = removeByID(r.archiveAppends, id)
	r.archiveRewrite = true

	task.Status = types.StatusOpen
	r.active = append(r.active, task)
	r.activeByID[id] = task
	r.activeDirty = true
	return task, nil
}

func (r *Repository) moveToArchive(task *types.Task) {
	for i, t := range r.active {
		if t.ID == task.ID {
			r.active = append(r.active[:i], r.active[i+1:]...)
			break
		}
	}
	delete(r.activeByID, task.ID)
	r.archive = append(r.archive, task)
	r.archiveByID[task.ID] = task
	r.activeDirty = true
	if !r.archiveRewrite {
		r.archiveAppends = append(r.archiveAppends, task)
	}
}

// blockingChildIDs returns ids of children still in a blocking status.
// Active tasks are by definition open, in-progress, or blocked, so every
// active child counts.
func (r *Repository) blockingChildIDs(parentID int) []int {
	var ids []int
	for _, t := range r.active {
		if t.ID != parentID && t.ParentID != nil && *t.ParentID == parentID {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func checkTransition(from, to types.Status) error {
	if to == types.StatusClosed {
		return fmt.Errorf("status %s -> closed goes through complete: %w", from, ErrBadTransition)
	}
	if to == types.StatusDeleted {
		return fmt.Errorf("status %s -> deleted goes through delete: %w", from, ErrBadTransition)
	}
	// Transitions among open, in-progress, and blocked are all legal.
	return nil
}

func removeByID(tasks []*types.Task, id int) []*types.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
