package store

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/steveyegge/mcp-tasks/internal/types"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func statusPtr(s types.Status) *types.Status { return &s }

func mustAdd(t *testing.T, r *Repository, task *types.Task) *types.Task {
	t.Helper()
	added, err := r.Add(task, false)
	if err != nil {
		t.Fatalf("Add(%q) failed: %v", task.Title, err)
	}
	return added
}

func TestAddAssignsMonotonicIDs(t *testing.T) {
	r := NewRepository()
	first := mustAdd(t, r, &types.Task{Title: "First", Category: "simple"})
	second := mustAdd(t, r, &types.Task{Title: "Second", Category: "simple"})

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids = [%d %d], want [1 2]", first.ID, second.ID)
	}
	if first.Status != types.StatusOpen {
		t.Errorf("status = %s, want open", first.Status)
	}
	if r.NextID() != 3 {
		t.Errorf("NextID = %d, want 3", r.NextID())
	}

	active := r.ActiveTasks()
	if len(active) != 2 || active[0].ID != 1 || active[1].ID != 2 {
		t.Errorf("active order wrong: %+v", active)
	}
}

func TestAddPrepend(t *testing.T) {
	r := NewRepository()
	mustAdd(t, r, &types.Task{Title: "Tail", Category: "simple"})
	prepended, err := r.Add(&types.Task{Title: "Head", Category: "simple"}, true)
	if err != nil {
		t.Fatalf("Add prepend failed: %v", err)
	}

	active := r.ActiveTasks()
	if active[0].ID != prepended.ID {
		t.Errorf("prepended task not at head: %+v", active)
	}
}

func TestAddValidatesParentAndRelations(t *testing.T) {
	r := NewRepository()
	mustAdd(t, r, &types.Task{Title: "Existing", Category: "simple"})

	_, err := r.Add(&types.Task{Title: "Orphan", Category: "simple", ParentID: intPtr(99)}, false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing parent: got %v, want ErrNotFound", err)
	}

	_, err = r.Add(&types.Task{
		Title:     "Dangling",
		Category:  "simple",
		Relations: []types.Relation{{ID: 1, RelatesTo: 42, AsType: types.RelBlockedBy}},
	}, false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing relation target: got %v, want ErrNotFound", err)
	}

	// IDs are not consumed by failed adds.
	next := mustAdd(t, r, &types.Task{Title: "Next", Category: "simple"})
	if next.ID != 2 {
		t.Errorf("id after failed adds = %d, want 2", next.ID)
	}
}

func TestAddRejectsSelfBlocking(t *testing.T) {
	r := NewRepository()
	_, err := r.Add(&types.Task{
		Title:     "Ouroboros",
		Category:  "simple",
		Relations: []types.Relation{{ID: 1, RelatesTo: 1, AsType: types.RelBlockedBy}},
	}, false)

	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(ce.Cycle) != 2 || ce.Cycle[0] != 1 || ce.Cycle[1] != 1 {
		t.Errorf("cycle = %v, want [1 1]", ce.Cycle)
	}
}

func TestUpdateFields(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Before", Category: "simple", Meta: map[string]string{"keep": "no"}})

	updated, err := r.Update(task.ID, Patch{
		Title:       strPtr("After"),
		Description: strPtr("new description"),
		Meta:        map[string]string{"owner": "infra"},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "After" || updated.Description != "new description" {
		t.Errorf("update not applied: %+v", updated)
	}
	if len(updated.Meta) != 1 || updated.Meta["owner"] != "infra" {
		t.Errorf("meta should be replaced wholesale, got %v", updated.Meta)
	}
}

func TestUpdateMissingTask(t *testing.T) {
	r := NewRepository()
	_, err := r.Update(7, Patch{Title: strPtr("Nope")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Mover", Category: "simple"})

	for _, status := range []types.Status{types.StatusInProgress, types.StatusBlocked, types.StatusOpen} {
		if _, err := r.Update(task.ID, Patch{Status: statusPtr(status)}); err != nil {
			t.Errorf("transition to %s failed: %v", status, err)
		}
	}

	_, err := r.Update(task.ID, Patch{Status: statusPtr(types.StatusClosed)})
	if !errors.Is(err, ErrBadTransition) {
		t.Errorf("direct close: got %v, want ErrBadTransition", err)
	}
	_, err = r.Update(task.ID, Patch{Status: statusPtr(types.StatusDeleted)})
	if !errors.Is(err, ErrBadTransition) {
		t.Errorf("direct delete: got %v, want ErrBadTransition", err)
	}
}

func TestUpdateAppendsPreserveExisting(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Notes", Category: "simple"})

	if _, err := r.Update(task.ID, Patch{AddSharedContext: []string{"first"}}); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	updated, err := r.Update(task.ID, Patch{AddSharedContext: []string{"second", "third"}})
	if err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(updated.SharedContext) != len(want) {
		t.Fatalf("shared-context = %v, want %v", updated.SharedContext, want)
	}
	for i, s := range want {
		if updated.SharedContext[i] != s {
			t.Errorf("shared-context[%d] = %q, want %q", i, updated.SharedContext[i], s)
		}
	}
}

func TestUpdateEnforcesSizeLimit(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Big", Category: "simple"})

	huge := strings.Repeat("x", types.MaxAppendListBytes+1)
	_, err := r.Update(task.ID, Patch{AddSharedContext: []string{huge}})
	if !errors.Is(err, ErrSizeLimit) {
		t.Fatalf("got %v, want ErrSizeLimit", err)
	}

	// The failed append must not leak into the task.
	if got := r.Get(task.ID); len(got.SharedContext) != 0 {
		t.Errorf("failed append mutated task: %v", got.SharedContext)
	}

	_, err = r.Update(task.ID, Patch{AddSessionEvents: []types.SessionEvent{
		{EventType: types.EventUserPrompt, Content: huge},
	}})
	if !errors.Is(err, ErrSizeLimit) {
		t.Errorf("session-events cap: got %v, want ErrSizeLimit", err)
	}
}

func TestUpdateStampsEventTimestamps(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Evented", Category: "simple"})

	updated, err := r.Update(task.ID, Patch{AddSessionEvents: []types.SessionEvent{
		{EventType: types.EventSessionStart, SessionID: "s1"},
		{EventType: types.EventUserPrompt, Content: "hello", Timestamp: "2026-01-01T00:00:00Z"},
	}})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.SessionEvents[0].Timestamp == "" {
		t.Error("missing timestamp was not generated")
	}
	if updated.SessionEvents[1].Timestamp != "2026-01-01T00:00:00Z" {
		t.Errorf("explicit timestamp overwritten: %s", updated.SessionEvents[1].Timestamp)
	}
}

func TestUpdateRejectsCycle(t *testing.T) {
	r := NewRepository()
	a := mustAdd(t, r, &types.Task{Title: "A", Category: "simple"})
	b := mustAdd(t, r, &types.Task{
		Title:     "B",
		Category:  "simple",
		Relations: []types.Relation{{ID: 1, RelatesTo: a.ID, AsType: types.RelBlockedBy}},
	})

	_, err := r.Update(a.ID, Patch{Relations: []types.Relation{
		{ID: 1, RelatesTo: b.ID, AsType: types.RelBlockedBy},
	}})
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(ce.Cycle) != 3 || ce.Cycle[0] != a.ID || ce.Cycle[1] != b.ID || ce.Cycle[2] != a.ID {
		t.Errorf("cycle = %v, want [%d %d %d]", ce.Cycle, a.ID, b.ID, a.ID)
	}

	// Rejected mutation leaves the task untouched.
	if got := r.Get(a.ID); len(got.Relations) != 0 {
		t.Errorf("rejected update mutated relations: %v", got.Relations)
	}
}

func TestUpdateArchivedTaskFields(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Shipped", Category: "simple"})
	if _, err := r.MarkComplete(task.ID, ""); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}

	updated, err := r.Update(task.ID, Patch{
		PRNum:        intPtr(123),
		CodeReviewed: strPtr("2026-02-01T10:00:00Z"),
	})
	if err != nil {
		t.Fatalf("Update of archived task failed: %v", err)
	}
	if updated.PRNum == nil || *updated.PRNum != 123 {
		t.Errorf("pr-num not applied: %+v", updated.PRNum)
	}

	_, err = r.Update(task.ID, Patch{Status: statusPtr(types.StatusOpen)})
	if !errors.Is(err, ErrBadTransition) {
		t.Errorf("status change on archived task: got %v, want ErrBadTransition", err)
	}
}

func TestMarkComplete(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Done soon", Category: "simple", Description: "work"})

	closed, err := r.MarkComplete(task.ID, "all finished")
	if err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	if closed.Status != types.StatusClosed {
		t.Errorf("status = %s, want closed", closed.Status)
	}
	if closed.Description != "work\n\nall finished" {
		t.Errorf("comment not appended: %q", closed.Description)
	}
	if len(r.ActiveTasks()) != 0 {
		t.Error("completed task still active")
	}
	if r.Get(task.ID) == nil {
		t.Error("archived task not visible by id")
	}

	_, err = r.MarkComplete(task.ID, "")
	if !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("second complete: got %v, want ErrAlreadyClosed", err)
	}
}

func TestMarkCompleteBlockedByChildren(t *testing.T) {
	r := NewRepository()
	story := mustAdd(t, r, &types.Task{Title: "Story", Category: "simple", Type: types.TypeStory})
	child := mustAdd(t, r, &types.Task{Title: "Child", Category: "simple", ParentID: intPtr(story.ID)})

	_, err := r.MarkComplete(story.ID, "")
	var cbe *ChildrenBlockingError
	if !errors.As(err, &cbe) {
		t.Fatalf("expected ChildrenBlockingError, got %v", err)
	}
	if len(cbe.ChildIDs) != 1 || cbe.ChildIDs[0] != child.ID {
		t.Errorf("blocking children = %v, want [%d]", cbe.ChildIDs, child.ID)
	}

	// Close the child, then the story completes.
	if _, err := r.MarkComplete(child.ID, ""); err != nil {
		t.Fatalf("completing child failed: %v", err)
	}
	if _, err := r.MarkComplete(story.ID, ""); err != nil {
		t.Fatalf("completing story after child closed: %v", err)
	}
}

func TestMarkDeleted(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Drop me", Category: "simple"})

	deleted, err := r.MarkDeleted(task.ID)
	if err != nil {
		t.Fatalf("MarkDeleted failed: %v", err)
	}
	if deleted.Status != types.StatusDeleted {
		t.Errorf("status = %s, want deleted", deleted.Status)
	}

	_, err = r.MarkDeleted(task.ID)
	if !errors.Is(err, ErrAlreadyDeleted) {
		t.Errorf("second delete: got %v, want ErrAlreadyDeleted", err)
	}

	// Deleted ids are never handed out again.
	next := mustAdd(t, r, &types.Task{Title: "Later", Category: "simple"})
	if next.ID != task.ID+1 {
		t.Errorf("next id = %d, want %d", next.ID, task.ID+1)
	}
}

func TestMarkDeletedRejectsParentsWithChildren(t *testing.T) {
	r := NewRepository()
	parent := mustAdd(t, r, &types.Task{Title: "Parent", Category: "simple"})
	mustAdd(t, r, &types.Task{Title: "Child", Category: "simple", ParentID: intPtr(parent.ID)})

	_, err := r.MarkDeleted(parent.ID)
	var cbe *ChildrenBlockingError
	if !errors.As(err, &cbe) {
		t.Errorf("expected ChildrenBlockingError, got %v", err)
	}
}

func TestReopen(t *testing.T) {
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Round two", Category: "simple"})
	if _, err := r.MarkComplete(task.ID, ""); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}

	reopened, err := r.Reopen(task.ID)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if reopened.Status != types.StatusOpen {
		t.Errorf("status = %s, want open", reopened.Status)
	}
	if len(r.ActiveTasks()) != 1 {
		t.Error("reopened task not active")
	}

	// Reopening an open task fails.
	_, err = r.Reopen(task.ID)
	if !errors.Is(err, ErrNotClosed) {
		t.Errorf("reopen open task: got %v, want ErrNotClosed", err)
	}

	// Deleted tasks cannot be reopened.
	gone := mustAdd(t, r, &types.Task{Title: "Gone", Category: "simple"})
	if _, err := r.MarkDeleted(gone.ID); err != nil {
		t.Fatalf("MarkDeleted failed: %v", err)
	}
	_, err = r.Reopen(gone.ID)
	if !errors.Is(err, ErrNotClosed) {
		t.Errorf("reopen deleted task: got %v, want ErrNotClosed", err)
	}
}

func TestBlocked(t *testing.T) {
	r := NewRepository()
	blocker := mustAdd(t, r, &types.Task{Title: "Blocker", Category: "simple"})
	blocked := mustAdd(t, r, &types.Task{
		Title:     "Blocked",
		Category:  "simple",
		Relations: []types.Relation{{ID: 1, RelatesTo: blocker.ID, AsType: types.RelBlockedBy}},
	})

	info := r.Blocked(blocked.ID)
	if !info.Blocked {
		t.Error("task with open blocker should be blocked")
	}
	if len(info.BlockingIDs) != 1 || info.BlockingIDs[0] != blocker.ID {
		t.Errorf("blocking ids = %v, want [%d]", info.BlockingIDs, blocker.ID)
	}

	// Closing the blocker unblocks.
	if _, err := r.MarkComplete(blocker.ID, ""); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	info = r.Blocked(blocked.ID)
	if info.Blocked {
		t.Errorf("closed blocker still blocks: %+v", info)
	}
}

func TestBlockedTransitive(t *testing.T) {
	r := NewRepository()
	c := mustAdd(t, r, &types.Task{Title: "C", Category: "simple"})
	b := mustAdd(t, r, &types.Task{
		Title: "B", Category: "simple",
		Relations: []types.Relation{{ID: 1, RelatesTo: c.ID, AsType: types.RelBlockedBy}},
	})
	a := mustAdd(t, r, &types.Task{
		Title: "A", Category: "simple",
		Relations: []types.Relation{{ID: 1, RelatesTo: b.ID, AsType: types.RelBlockedBy}},
	})

	info := r.Blocked(a.ID)
	if !info.Blocked {
		t.Fatal("transitively blocked task reported unblocked")
	}
	if len(info.BlockingIDs) != 2 {
		t.Errorf("blocking ids = %v, want both %d and %d", info.BlockingIDs, b.ID, c.ID)
	}
}

func TestBlockedMissingTarget(t *testing.T) {
	r := NewRepository()
	target := mustAdd(t, r, &types.Task{Title: "Target", Category: "simple"})
	task := mustAdd(t, r, &types.Task{
		Title: "Relies", Category: "simple",
		Relations: []types.Relation{{ID: 1, RelatesTo: target.ID, AsType: types.RelBlockedBy}},
	})

	// Simulate a dangling reference by pointing at an id that was never
	// allocated.
	if _, err := r.Update(task.ID, Patch{Relations: []types.Relation{
		{ID: 1, RelatesTo: 999, AsType: types.RelBlockedBy},
	}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	info := r.Blocked(task.ID)
	if !info.Blocked {
		t.Error("missing target should block")
	}
	if len(info.MissingIDs) != 1 || info.MissingIDs[0] != 999 {
		t.Errorf("missing ids = %v, want [999]", info.MissingIDs)
	}
}

func TestBlockedCycleReported(t *testing.T) {
	r := NewRepository()
	a := mustAdd(t, r, &types.Task{Title: "A", Category: "simple"})
	b := mustAdd(t, r, &types.Task{
		Title: "B", Category: "simple",
		Relations: []types.Relation{{ID: 1, RelatesTo: a.ID, AsType: types.RelBlockedBy}},
	})

	// Bypass the write-time check to build a pre-existing cycle, as a file
	// edited by hand could contain.
	r.activeByID[a.ID].Relations = []types.Relation{{ID: 1, RelatesTo: b.ID, AsType: types.RelBlockedBy}}

	info := r.Blocked(a.ID)
	if !info.Blocked {
		t.Error("cycle participant should be blocked")
	}
	if len(info.Cycle) != 3 || info.Cycle[0] != a.ID || info.Cycle[1] != b.ID || info.Cycle[2] != a.ID {
		t.Errorf("cycle = %v, want [%d %d %d]", info.Cycle, a.ID, b.ID, a.ID)
	}
}

func TestQueryDefaultsExcludeArchive(t *testing.T) {
	r := NewRepository()
	keep := mustAdd(t, r, &types.Task{Title: "Keep", Category: "simple"})
	done := mustAdd(t, r, &types.Task{Title: "Done", Category: "simple"})
	if _, err := r.MarkComplete(done.ID, ""); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}

	res, err := r.Query(QueryFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.TotalMatches != 1 || res.Tasks[0].ID != keep.ID {
		t.Errorf("default query = %+v, want only task %d", res.Tasks, keep.ID)
	}

	res, err = r.Query(QueryFilter{TaskFilter: types.TaskFilter{Status: types.StatusAny}})
	if err != nil {
		t.Fatalf("Query any failed: %v", err)
	}
	if res.TotalMatches != 2 {
		t.Errorf("status any matches = %d, want 2", res.TotalMatches)
	}

	res, err = r.Query(QueryFilter{TaskFilter: types.TaskFilter{Status: string(types.StatusClosed)}})
	if err != nil {
		t.Fatalf("Query closed failed: %v", err)
	}
	if res.TotalMatches != 1 || res.Tasks[0].ID != done.ID {
		t.Errorf("closed query = %+v, want task %d", res.Tasks, done.ID)
	}
}

func TestQueryTitlePattern(t *testing.T) {
	r := NewRepository()
	mustAdd(t, r, &types.Task{Title: "Fix login bug", Category: "simple"})
	mustAdd(t, r, &types.Task{Title: "Add logout", Category: "simple"})

	// Valid regex.
	res, err := r.Query(QueryFilter{TaskFilter: types.TaskFilter{TitlePattern: "^Fix"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.TotalMatches != 1 || res.Tasks[0].Title != "Fix login bug" {
		t.Errorf("regex query = %+v", res.Tasks)
	}

	// Invalid regex falls back to case-insensitive substring.
	res, err = r.Query(QueryFilter{TaskFilter: types.TaskFilter{TitlePattern: "LOGIN ["}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.TotalMatches != 0 {
		t.Errorf("substring fallback matched %d, want 0", res.TotalMatches)
	}
	res, err = r.Query(QueryFilter{TaskFilter: types.TaskFilter{TitlePattern: "login bug ["}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	// "login bug [" is not valid regex; substring of "Fix login bug ["? No
	// bracket in the title, so no match either.
	if res.TotalMatches != 0 {
		t.Errorf("substring fallback matched %d, want 0", res.TotalMatches)
	}
	res, err = r.Query(QueryFilter{TaskFilter: types.TaskFilter{TitlePattern: "(LOGIN"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.TotalMatches != 0 {
		t.Errorf("unmatched paren fallback matched %d, want 0", res.TotalMatches)
	}
}

func TestQueryUnique(t *testing.T) {
	r := NewRepository()
	a := mustAdd(t, r, &types.Task{Title: "Solo", Category: "simple"})
	mustAdd(t, r, &types.Task{Title: "Pair one", Category: "other"})
	mustAdd(t, r, &types.Task{Title: "Pair two", Category: "other"})

	res, err := r.Query(QueryFilter{TaskFilter: types.TaskFilter{ID: intPtr(a.ID)}, Unique: true})
	if err != nil {
		t.Fatalf("unique query failed: %v", err)
	}
	if len(res.Tasks) != 1 || res.Tasks[0].ID != a.ID {
		t.Errorf("unique query = %+v", res.Tasks)
	}

	_, err = r.Query(QueryFilter{TaskFilter: types.TaskFilter{Category: "other"}, Unique: true})
	if !errors.Is(err, ErrNotUnique) {
		t.Errorf("two matches: got %v, want ErrNotUnique", err)
	}

	_, err = r.Query(QueryFilter{TaskFilter: types.TaskFilter{ID: intPtr(404)}, Unique: true})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unique by missing id: got %v, want ErrNotFound", err)
	}

	// Zero matches without an explicit id is not an error.
	res, err = r.Query(QueryFilter{TaskFilter: types.TaskFilter{Category: "nothing"}, Unique: true})
	if err != nil {
		t.Errorf("unique with no id and no matches: %v", err)
	}
	if len(res.Tasks) != 0 {
		t.Errorf("expected empty result, got %+v", res.Tasks)
	}
}

func TestQueryLimit(t *testing.T) {
	r := NewRepository()
	for _, title := range []string{"One", "Two", "Three"} {
		mustAdd(t, r, &types.Task{Title: title, Category: "simple"})
	}

	res, err := r.Query(QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Tasks) != 2 {
		t.Errorf("limited result = %d tasks, want 2", len(res.Tasks))
	}
	if res.TotalMatches != 3 {
		t.Errorf("TotalMatches = %d, want 3", res.TotalMatches)
	}

	_, err = r.Query(QueryFilter{Limit: -1})
	if err == nil {
		t.Error("negative limit should fail")
	}
}

func TestQueryParentCountsClosedChildren(t *testing.T) {
	r := NewRepository()
	story := mustAdd(t, r, &types.Task{Title: "Story", Category: "simple", Type: types.TypeStory})
	c1 := mustAdd(t, r, &types.Task{Title: "Child 1", Category: "simple", ParentID: intPtr(story.ID)})
	mustAdd(t, r, &types.Task{Title: "Child 2", Category: "simple", ParentID: intPtr(story.ID)})
	if _, err := r.MarkComplete(c1.ID, ""); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}

	res, err := r.Query(QueryFilter{TaskFilter: types.TaskFilter{ParentID: intPtr(story.ID)}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Tasks) != 1 || res.Tasks[0].Title != "Child 2" {
		t.Errorf("active children = %+v", res.Tasks)
	}
	if res.ClosedChildren != 1 {
		t.Errorf("ClosedChildren = %d, want 1", res.ClosedChildren)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	p := PathsFor(t.TempDir())
	r := NewRepository()
	mustAdd(t, r, &types.Task{Title: "Persist me", Category: "simple"})
	second := mustAdd(t, r, &types.Task{Title: "Complete me", Category: "simple"})
	if _, err := r.MarkComplete(second.ID, "done"); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	if err := r.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if r.Dirty() {
		t.Error("repository still dirty after save")
	}

	loaded, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.ActiveTasks()) != 1 {
		t.Errorf("active after reload = %d, want 1", len(loaded.ActiveTasks()))
	}
	if got := loaded.Get(second.ID); got == nil || got.Status != types.StatusClosed {
		t.Errorf("archived task after reload = %+v", got)
	}
	if loaded.NextID() != 3 {
		t.Errorf("NextID after reload = %d, want 3", loaded.NextID())
	}
}

func TestSaveFailureLeavesFilesUntouched(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping Unix permission test on Windows")
	}
	if os.Getuid() == 0 {
		t.Skip("skipping permission test when running as root")
	}

	dir := t.TempDir()
	p := PathsFor(dir)
	r := NewRepository()
	mustAdd(t, r, &types.Task{Title: "Survivor", Category: "simple"})
	if err := r.Save(p); err != nil {
		t.Fatalf("initial save: %v", err)
	}

	mustAdd(t, r, &types.Task{Title: "Casualty", Category: "simple"})
	if err := os.Chmod(dir, 0500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	if err := r.Save(p); err == nil {
		t.Fatal("expected save into read-only directory to fail")
	}
	if !r.Dirty() {
		t.Error("failed save must leave the mutation pending")
	}

	if err := os.Chmod(dir, 0755); err != nil {
		t.Fatalf("restoring permissions: %v", err)
	}
	loaded, err := Load(p)
	if err != nil {
		t.Fatalf("Load after failed save: %v", err)
	}
	if len(loaded.ActiveTasks()) != 1 || loaded.ActiveTasks()[0].Title != "Survivor" {
		t.Errorf("failed save changed on-disk state: %+v", loaded.ActiveTasks())
	}

	// The pending mutation survives and a retry lands it.
	if err := r.Save(p); err != nil {
		t.Fatalf("retry save: %v", err)
	}
	reloaded, err := Load(p)
	if err != nil {
		t.Fatalf("Load after retry: %v", err)
	}
	if len(reloaded.ActiveTasks()) != 2 {
		t.Errorf("active after retry = %d, want 2", len(reloaded.ActiveTasks()))
	}
}

func TestReopenPersistsArchiveRemoval(t *testing.T) {
	p := PathsFor(t.TempDir())
	r := NewRepository()
	task := mustAdd(t, r, &types.Task{Title: "Twice", Category: "simple"})
	if _, err := r.MarkComplete(task.ID, ""); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	if err := r.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	r2, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := r2.Reopen(task.ID); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if err := r2.Save(p); err != nil {
		t.Fatalf("Save after reopen failed: %v", err)
	}

	// The id must not appear in both files.
	r3, err := Load(p)
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if got := r3.Get(task.ID); got == nil || got.Status != types.StatusOpen {
		t.Errorf("reopened task = %+v, want open", got)
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	p := PathsFor(dir)
	task := &types.Task{ID: 5, Status: types.StatusOpen, Title: "Dup", Type: types.TypeTask}
	if err := WriteTasks(p.Tasks, []*types.Task{task}); err != nil {
		t.Fatalf("writing tasks: %v", err)
	}
	closedDup := &types.Task{ID: 5, Status: types.StatusClosed, Title: "Dup again", Type: types.TypeTask}
	if err := WriteTasks(p.Complete, []*types.Task{closedDup}); err != nil {
		t.Fatalf("writing complete: %v", err)
	}

	_, err := Load(p)
	var de *DuplicateIDError
	if !errors.As(err, &de) {
		t.Fatalf("expected DuplicateIDError, got %v", err)
	}
	if de.ID != 5 {
		t.Errorf("duplicate id = %d, want 5", de.ID)
	}
}

func TestLoadPreservesInsertionOrder(t *testing.T) {
	p := PathsFor(t.TempDir())
	r := NewRepository()
	if _, err := r.Add(&types.Task{Title: "Tail", Category: "simple"}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add(&types.Task{Title: "Head", Category: "simple"}, true); err != nil {
		t.Fatal(err)
	}
	if err := r.Save(p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	active := loaded.ActiveTasks()
	if active[0].Title != "Head" || active[1].Title != "Tail" {
		t.Errorf("order after reload = [%s %s], want [Head Tail]", active[0].Title, active[1].Title)
	}
	if filepath.Base(p.Tasks) != TasksFileName {
		t.Errorf("unexpected tasks file name %s", p.Tasks)
	}
}
