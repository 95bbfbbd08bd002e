package types

import (
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestTaskValidation(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid task",
			task: Task{
				ID:       1,
				Title:    "Valid task",
				Status:   StatusOpen,
				Category: "simple",
				Type:     TypeTask,
			},
			wantErr: false,
		},
		{
			name: "missing title",
			task: Task{
				ID:       1,
				Status:   StatusOpen,
				Category: "simple",
				Type:     TypeTask,
			},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name: "whitespace title",
			task: Task{
				ID:       1,
				Title:    "   ",
				Status:   StatusOpen,
				Category: "simple",
				Type:     TypeTask,
			},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name: "negative id",
			task: Task{
				ID:       -1,
				Title:    "Test",
				Status:   StatusOpen,
				Category: "simple",
				Type:     TypeTask,
			},
			wantErr: true,
			errMsg:  "id must be non-negative",
		},
		{
			name: "invalid status",
			task: Task{
				ID:       1,
				Title:    "Test",
				Status:   Status("done"),
				Category: "simple",
				Type:     TypeTask,
			},
			wantErr: true,
			errMsg:  "invalid status",
		},
		{
			name: "invalid type",
			task: Task{
				ID:       1,
				Title:    "Test",
				Status:   StatusOpen,
				Category: "simple",
				Type:     TaskType("epic"),
			},
			wantErr: true,
			errMsg:  "invalid type",
		},
		{
			name: "invalid relation type",
			task: Task{
				ID:       1,
				Title:    "Test",
				Status:   StatusOpen,
				Category: "simple",
				Type:     TypeTask,
				Relations: []Relation{
					{ID: 1, RelatesTo: 2, AsType: RelationType("blocks")},
				},
			},
			wantErr: true,
			errMsg:  "invalid relation type",
		},
		{
			name: "duplicate relation id",
			task: Task{
				ID:       1,
				Title:    "Test",
				Status:   StatusOpen,
				Category: "simple",
				Type:     TypeTask,
				Relations: []Relation{
					{ID: 1, RelatesTo: 2, AsType: RelBlockedBy},
					{ID: 1, RelatesTo: 3, AsType: RelRelated},
				},
			},
			wantErr: true,
			errMsg:  "duplicate relation id",
		},
		{
			name: "negative pr-num",
			task: Task{
				ID:       1,
				Title:    "Test",
				Status:   StatusOpen,
				Category: "simple",
				Type:     TypeTask,
				PRNum:    intPtr(-2),
			},
			wantErr: true,
			errMsg:  "pr-num must be non-negative",
		},
		{
			name: "code-reviewed with offset rejected",
			task: Task{
				ID:           1,
				Title:        "Test",
				Status:       StatusOpen,
				Category:     "simple",
				Type:         TypeTask,
				CodeReviewed: "2025-06-01T10:00:00+02:00",
			},
			wantErr: true,
			errMsg:  "ending in Z",
		},
		{
			name: "code-reviewed UTC accepted",
			task: Task{
				ID:           1,
				Title:        "Test",
				Status:       StatusOpen,
				Category:     "simple",
				Type:         TypeTask,
				CodeReviewed: "2025-06-01T10:00:00Z",
			},
			wantErr: false,
		},
		{
			name: "invalid event type",
			task: Task{
				ID:       1,
				Title:    "Test",
				Status:   StatusOpen,
				Category: "simple",
				Type:     TypeTask,
				SessionEvents: []SessionEvent{
					{EventType: EventType("resume")},
				},
			},
			wantErr: true,
			errMsg:  "invalid event type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestStatusBlocking(t *testing.T) {
	blocking := []Status{StatusOpen, StatusInProgress, StatusBlocked}
	for _, s := range blocking {
		if !s.Blocking() {
			t.Errorf("Status(%s).Blocking() = false, want true", s)
		}
		if s.Resolved() {
			t.Errorf("Status(%s).Resolved() = true, want false", s)
		}
	}
	resolved := []Status{StatusClosed, StatusDeleted}
	for _, s := range resolved {
		if s.Blocking() {
			t.Errorf("Status(%s).Blocking() = true, want false", s)
		}
		if !s.Resolved() {
			t.Errorf("Status(%s).Resolved() = false, want true", s)
		}
	}
}

func TestBlockedByIDs(t *testing.T) {
	task := Task{
		ID: 5, Title: "t", Status: StatusOpen, Category: "simple", Type: TypeTask,
		Relations: []Relation{
			{ID: 1, RelatesTo: 2, AsType: RelBlockedBy},
			{ID: 2, RelatesTo: 3, AsType: RelRelated},
			{ID: 3, RelatesTo: 4, AsType: RelBlockedBy},
			{ID: 4, RelatesTo: 7, AsType: RelDiscoveredDuring},
		},
	}
	got := task.BlockedByIDs()
	want := []int{2, 4}
	if len(got) != len(want) {
		t.Fatalf("BlockedByIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("BlockedByIDs()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Task{
		ID: 1, Title: "t", Status: StatusOpen, Category: "simple", Type: TypeTask,
		ParentID:      intPtr(9),
		Meta:          map[string]string{"k": "v"},
		Relations:     []Relation{{ID: 1, RelatesTo: 2, AsType: RelBlockedBy}},
		SharedContext: []string{"a"},
		SessionEvents: []SessionEvent{{EventType: EventUserPrompt, Content: "hi"}},
	}
	c := orig.Clone()
	c.Meta["k"] = "changed"
	c.Relations[0].RelatesTo = 99
	c.SharedContext[0] = "changed"
	c.SessionEvents[0].Content = "changed"
	*c.ParentID = 42

	if orig.Meta["k"] != "v" {
		t.Error("Clone() shares Meta map")
	}
	if orig.Relations[0].RelatesTo != 2 {
		t.Error("Clone() shares Relations slice")
	}
	if orig.SharedContext[0] != "a" {
		t.Error("Clone() shares SharedContext slice")
	}
	if orig.SessionEvents[0].Content != "hi" {
		t.Error("Clone() shares SessionEvents slice")
	}
	if *orig.ParentID != 9 {
		t.Error("Clone() shares ParentID pointer")
	}
}

func TestFilterMatches(t *testing.T) {
	open := Task{ID: 1, Title: "Fix parser", Status: StatusOpen, Category: "simple", Type: TypeTask, ParentID: intPtr(7)}
	closed := Task{ID: 2, Title: "Old work", Status: StatusClosed, Category: "simple", Type: TypeBug}

	tests := []struct {
		name   string
		filter TaskFilter
		task   Task
		want   bool
	}{
		{"empty filter matches active", TaskFilter{}, open, true},
		{"empty filter excludes archived", TaskFilter{}, closed, false},
		{"status any includes archived", TaskFilter{Status: StatusAny}, closed, true},
		{"explicit status", TaskFilter{Status: "closed"}, closed, true},
		{"explicit status mismatch", TaskFilter{Status: "closed"}, open, false},
		{"id match", TaskFilter{ID: intPtr(1)}, open, true},
		{"id mismatch", TaskFilter{ID: intPtr(3)}, open, false},
		{"category match", TaskFilter{Category: "simple"}, open, true},
		{"category mismatch", TaskFilter{Category: "deploy"}, open, false},
		{"parent match", TaskFilter{ParentID: intPtr(7)}, open, true},
		{"parent mismatch", TaskFilter{ParentID: intPtr(8)}, open, false},
		{"type match", TaskFilter{Type: TypeTask}, open, true},
		{"type mismatch", TaskFilter{Type: TypeStory}, open, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(&tt.task); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
