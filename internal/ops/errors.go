package ops

import (
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/mcp-tasks/internal/git"
	"github.com/steveyegge/mcp-tasks/internal/gitsync"
	"github.com/steveyegge/mcp-tasks/internal/lock"
	"github.com/steveyegge/mcp-tasks/internal/store"
	"github.com/steveyegge/mcp-tasks/internal/workon"
)

// Kind classifies an operation failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not-found"
	KindState      Kind = "state"
	KindLock       Kind = "lock"
	KindSync       Kind = "sync"
	KindGit        Kind = "git"
	// KindInternal covers lower-layer failures outside the taxonomy, wrapped
	// at the operation boundary.
	KindInternal Kind = "internal"
)

// OpError is the structured failure of one operation.
type OpError struct {
	Op      string
	Kind    Kind
	Message string
	// Details carries retry context specific to the failure.
	Details map[string]any
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *OpError) Unwrap() error { return e.Err }

// Payload is the wire form of the error, embedded in error responses.
func (e *OpError) Payload() map[string]any {
	p := map[string]any{
		"attempted-operation": e.Op,
		"error-type":          string(e.Kind),
		"message":             e.Message,
	}
	for k, v := range e.Details {
		p[k] = v
	}
	return p
}

// with attaches one detail, allocating the map on first use.
func (e *OpError) with(key string, v any) *OpError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = v
	return e
}

// validationf builds a validation error. These are raised before any disk
// access.
func validationf(op, format string, args ...any) *OpError {
	return &OpError{Op: op, Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// AsOpError returns err's OpError, wrapping unclassified values as internal
// failures.
func AsOpError(err error) *OpError {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe
	}
	return &OpError{Op: "operation", Kind: KindInternal, Message: err.Error(), Err: err}
}

// fail classifies err into an *OpError for op. Errors already classified
// deeper in the call chain pass through unchanged.
func fail(op string, err error) *OpError {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe
	}

	out := &OpError{Op: op, Message: err.Error(), Err: err}

	var timeout *lock.TimeoutError
	var pull *gitsync.PullError
	var cycle *store.CycleError
	var children *store.ChildrenBlockingError
	var dup *store.DuplicateIDError
	var gitErr *git.GitError

	switch {
	case errors.As(err, &timeout):
		out.Kind = KindLock
		out.with("lock-path", timeout.Path).with("timeout", timeout.Timeout.String())
		if timeout.Holder != "" {
			out.with("holder", timeout.Holder)
		}
	case errors.As(err, &pull):
		out.Kind = KindSync
		out.with("tasks-dir", pull.Dir)
		out.with("merge-conflict", git.IsMergeConflict(pull.Err))
		out.with("network-error", git.IsNetworkError(pull.Err))
		if git.IsMergeConflict(pull.Err) {
			out.Message = fmt.Sprintf("pull conflict in %s; resolve it there and retry", pull.Dir)
		}
	case errors.As(err, &cycle):
		out.Kind = KindValidation
		out.with("cycle", cycle.Cycle)
	case errors.As(err, &children):
		out.Kind = KindState
		out.with("parent-id", children.ParentID).with("blocking-children", children.ChildIDs)
	case errors.As(err, &dup):
		// A duplicate id means the task files disagree with each other,
		// usually after a hand-resolved merge.
		out.Kind = KindSync
		out.with("duplicate-id", dup.ID)
	case errors.Is(err, store.ErrNotFound):
		out.Kind = KindNotFound
	case errors.Is(err, store.ErrNotUnique), errors.Is(err, store.ErrSizeLimit):
		out.Kind = KindValidation
	case errors.Is(err, store.ErrAlreadyClosed),
		errors.Is(err, store.ErrAlreadyDeleted),
		errors.Is(err, store.ErrNotClosed),
		errors.Is(err, store.ErrBadTransition):
		out.Kind = KindState
	case errors.Is(err, workon.ErrNotStory):
		out.Kind = KindNotFound
	case errors.Is(err, workon.ErrDirtyWorkingTree),
		errors.Is(err, workon.ErrBaseBranchMissing),
		errors.Is(err, workon.ErrWrongBranch):
		out.Kind = KindGit
	case errors.As(err, &gitErr):
		out.Kind = KindGit
		out.with("git-command", "git "+strings.Join(gitErr.Args, " "))
		if s := strings.TrimSpace(gitErr.Stderr); s != "" {
			out.with("git-stderr", s)
		}
	default:
		out.Kind = KindInternal
	}
	return out
}
