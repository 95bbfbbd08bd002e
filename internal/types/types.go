// Package types defines core data structures for the mcp-tasks task store.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
	StatusDeleted    Status = "deleted"
)

// IsValid checks if the status is a valid value
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed, StatusDeleted:
		return true
	}
	return false
}

// Blocking reports whether the status counts as incomplete for dependency
// resolution. A blocked-by relation pointing at a task in a blocking status
// keeps the dependent task blocked.
func (s Status) Blocking() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked:
		return true
	}
	return false
}

// Resolved reports whether the status no longer blocks dependents.
func (s Status) Resolved() bool {
	return s == StatusClosed || s == StatusDeleted
}

// TaskType categorizes the kind of work
type TaskType string

const (
	TypeTask    TaskType = "task"
	TypeBug     TaskType = "bug"
	TypeFeature TaskType = "feature"
	TypeStory   TaskType = "story"
	TypeChore   TaskType = "chore"
)

// IsValid checks if the task type is a valid value
func (t TaskType) IsValid() bool {
	switch t {
	case TypeTask, TypeBug, TypeFeature, TypeStory, TypeChore:
		return true
	}
	return false
}

// RelationType describes how a task relates to another task
type RelationType string

const (
	// RelBlockedBy asserts the owning task cannot start until the target resolves
	RelBlockedBy RelationType = "blocked-by"
	// RelRelated is an informational link with no scheduling effect
	RelRelated RelationType = "related"
	// RelDiscoveredDuring records that the owning task was found while working the target
	RelDiscoveredDuring RelationType = "discovered-during"
)

// IsValid checks if the relation type is a valid value
func (r RelationType) IsValid() bool {
	switch r {
	case RelBlockedBy, RelRelated, RelDiscoveredDuring:
		return true
	}
	return false
}

// Blocks reports whether the relation type participates in blocking
// computation. Only blocked-by does; related and discovered-during are
// informational.
func (r RelationType) Blocks() bool {
	return r == RelBlockedBy
}

// Relation links the owning task to another task.
// The id is unique within the owning task's relations, not globally.
type Relation struct {
	ID        int          `json:"id" edn:"id"`
	RelatesTo int          `json:"relates-to" edn:"relates-to"`
	AsType    RelationType `json:"as-type" edn:"as-type"`
}

// EventType identifies the kind of a session event
type EventType string

const (
	EventUserPrompt   EventType = "user-prompt"
	EventCompaction   EventType = "compaction"
	EventSessionStart EventType = "session-start"
)

// IsValid checks if the event type is a valid value
func (e EventType) IsValid() bool {
	switch e {
	case EventUserPrompt, EventCompaction, EventSessionStart:
		return true
	}
	return false
}

// SessionEvent records one agent-session occurrence on a task.
// Exactly one of Content, Trigger, SessionID is meaningful depending on
// EventType; the others stay empty.
type SessionEvent struct {
	EventType EventType `json:"event-type" edn:"event-type"`
	Timestamp string    `json:"timestamp,omitempty" edn:"timestamp,omitempty"`
	Content   string    `json:"content,omitempty" edn:"content,omitempty"`
	Trigger   string    `json:"trigger,omitempty" edn:"trigger,omitempty"`
	SessionID string    `json:"session-id,omitempty" edn:"session-id,omitempty"`
}

// MaxAppendListBytes caps the serialized size of each append-only list
// (shared-context and session-events) at 50 KiB.
const MaxAppendListBytes = 51200

// Task represents a unit of work tracked by the store
type Task struct {
	ID            int               `json:"id" edn:"id"`
	ParentID      *int              `json:"parent-id,omitempty" edn:"parent-id,omitempty"`
	Status        Status            `json:"status" edn:"status"`
	Title         string            `json:"title" edn:"title"`
	Description   string            `json:"description,omitempty" edn:"description,omitempty"`
	Design        string            `json:"design,omitempty" edn:"design,omitempty"`
	Category      string            `json:"category" edn:"category"`
	Type          TaskType          `json:"type" edn:"type"`
	Meta          map[string]string `json:"meta,omitempty" edn:"meta,omitempty"`
	Relations     []Relation        `json:"relations,omitempty" edn:"relations,omitempty"`
	SharedContext []string          `json:"shared-context,omitempty" edn:"shared-context,omitempty"`
	SessionEvents []SessionEvent    `json:"session-events,omitempty" edn:"session-events,omitempty"`
	CodeReviewed  string            `json:"code-reviewed,omitempty" edn:"code-reviewed,omitempty"`
	PRNum         *int              `json:"pr-num,omitempty" edn:"pr-num,omitempty"`
}

// SetDefaults applies default values to a task after decoding or before add
func (t *Task) SetDefaults() {
	if t.Type == "" {
		t.Type = TypeTask
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
}

// Validate checks that the task satisfies schema constraints
func (t *Task) Validate() error {
	if t.ID < 0 {
		return fmt.Errorf("id must be non-negative, got %d", t.ID)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("invalid type: %s", t.Type)
	}
	if t.ParentID != nil && *t.ParentID < 0 {
		return fmt.Errorf("parent-id must be non-negative, got %d", *t.ParentID)
	}
	if t.PRNum != nil && *t.PRNum < 0 {
		return fmt.Errorf("pr-num must be non-negative, got %d", *t.PRNum)
	}
	if t.CodeReviewed != "" {
		if err := ValidateReviewTimestamp(t.CodeReviewed); err != nil {
			return err
		}
	}
	seen := make(map[int]bool, len(t.Relations))
	for _, r := range t.Relations {
		if !r.AsType.IsValid() {
			return fmt.Errorf("invalid relation type: %s", r.AsType)
		}
		if r.RelatesTo < 0 {
			return fmt.Errorf("relation relates-to must be non-negative, got %d", r.RelatesTo)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate relation id %d", r.ID)
		}
		seen[r.ID] = true
	}
	for _, e := range t.SessionEvents {
		if !e.EventType.IsValid() {
			return fmt.Errorf("invalid event type: %s", e.EventType)
		}
	}
	return nil
}

// ValidateReviewTimestamp checks that a code-reviewed value is an ISO-8601
// UTC timestamp with a trailing Z. Offset forms like +00:00 are rejected.
func ValidateReviewTimestamp(s string) error {
	if !strings.HasSuffix(s, "Z") {
		return fmt.Errorf("code-reviewed must be UTC ISO-8601 ending in Z, got %q", s)
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		return fmt.Errorf("code-reviewed is not a valid ISO-8601 timestamp: %q", s)
	}
	return nil
}

// BlockedByIDs returns the ids of blocked-by relation targets in relation order
func (t *Task) BlockedByIDs() []int {
	var ids []int
	for _, r := range t.Relations {
		if r.AsType.Blocks() {
			ids = append(ids, r.RelatesTo)
		}
	}
	return ids
}

// HasParent reports whether the task belongs to a story (or other parent)
func (t *Task) HasParent() bool {
	return t.ParentID != nil
}

// Clone returns a deep copy of the task. The repository hands out clones so
// callers cannot mutate indexed state behind its back.
func (t *Task) Clone() *Task {
	c := *t
	if t.ParentID != nil {
		v := *t.ParentID
		c.ParentID = &v
	}
	if t.PRNum != nil {
		v := *t.PRNum
		c.PRNum = &v
	}
	if t.Meta != nil {
		c.Meta = make(map[string]string, len(t.Meta))
		for k, v := range t.Meta {
			c.Meta[k] = v
		}
	}
	if t.Relations != nil {
		c.Relations = append([]Relation(nil), t.Relations...)
	}
	if t.SharedContext != nil {
		c.SharedContext = append([]string(nil), t.SharedContext...)
	}
	if t.SessionEvents != nil {
		c.SessionEvents = append([]SessionEvent(nil), t.SessionEvents...)
	}
	return &c
}

// TaskFilter describes query criteria. Filters compose with AND; zero values
// mean "no constraint" except Status, where empty selects the active set
// (non-closed, non-deleted) and StatusAny includes the archive.
type TaskFilter struct {
	ID           *int
	Category     string
	ParentID     *int
	TitlePattern string
	Type         TaskType
	Status       string
}

// StatusAny selects tasks in every status, archived included
const StatusAny = "any"

// Matches reports whether the task satisfies every set filter except
// TitlePattern, which needs compiled state and is evaluated by the store.
func (f *TaskFilter) Matches(t *Task) bool {
	if f.ID != nil && t.ID != *f.ID {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.ParentID != nil && (t.ParentID == nil || *t.ParentID != *f.ParentID) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	switch f.Status {
	case "":
		if t.Status.Resolved() {
			return false
		}
	case StatusAny:
	default:
		if t.Status != Status(f.Status) {
			return false
		}
	}
	return true
}
