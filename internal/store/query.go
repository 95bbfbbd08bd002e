package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/mcp-tasks/internal/types"
)

// QueryFilter composes field filters with an optional result limit and
// uniqueness requirement. A zero Limit means unlimited.
type QueryFilter struct {
	types.TaskFilter
	Limit  int
	Unique bool
}

// QueryResult carries the matching tasks plus counts the UI layers render.
// ClosedChildren is populated only for parent-id queries.
type QueryResult struct {
	Tasks          []*types.Task
	TotalMatches   int
	ClosedChildren int
}

// Query returns tasks matching all set filters, in queue order: active tasks
// in insertion order, then archived tasks in completion order. Status
// defaults to the non-resolved statuses; StatusAny includes the archive.
func (r *Repository) Query(f QueryFilter) (*QueryResult, error) {
	if f.Limit < 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", f.Limit)
	}
	matchTitle := titleMatcher(f.TitlePattern)

	var matches []*types.Task
	for _, t := range r.active {
		if f.Matches(t) && matchTitle(t.Title) {
			matches = append(matches, t)
		}
	}
	for _, t := range r.archive {
		if f.Matches(t) && matchTitle(t.Title) {
			matches = append(matches, t)
		}
	}

	result := &QueryResult{TotalMatches: len(matches)}

	limit := f.Limit
	if f.Unique {
		if len(matches) > 1 {
			return nil, fmt.Errorf("%d tasks matched: %w", len(matches), ErrNotUnique)
		}
		if len(matches) == 0 && f.ID != nil {
			return nil, fmt.Errorf("task %d: %w", *f.ID, ErrNotFound)
		}
		limit = 1
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	result.Tasks = matches

	if f.ParentID != nil {
		result.ClosedChildren = r.ClosedChildrenCount(*f.ParentID)
	}
	return result, nil
}

// titleMatcher interprets the pattern as a regular expression when it
// compiles; otherwise it falls back to a case-insensitive substring match.
func titleMatcher(pattern string) func(string) bool {
	if pattern == "" {
		return func(string) bool { return true }
	}
	if re, err := regexp.Compile(pattern); err == nil {
		return re.MatchString
	}
	lower := strings.ToLower(pattern)
	return func(title string) bool {
		return strings.Contains(strings.ToLower(title), lower)
	}
}
