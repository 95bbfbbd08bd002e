package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for repository operations. Callers match with errors.Is
// and map them onto their own error surfaces.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyClosed  = errors.New("task is already closed")
	ErrAlreadyDeleted = errors.New("task is already deleted")
	ErrNotClosed      = errors.New("task is not closed")
	ErrNotUnique      = errors.New("query matched more than one task")
	ErrSizeLimit      = errors.New("append list exceeds size limit")
	ErrBadTransition  = errors.New("illegal status transition")
)

// CycleError reports a blocked-by cycle that a mutation would introduce.
// Cycle holds the id sequence forming the loop, first id repeated at the end.
type CycleError struct {
	Cycle []int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency: %v", e.Cycle)
}

// ChildrenBlockingError reports children that prevent completing or deleting
// a parent task.
type ChildrenBlockingError struct {
	ParentID int
	ChildIDs []int
}

func (e *ChildrenBlockingError) Error() string {
	return fmt.Sprintf("task %d has children not yet closed or deleted: %v", e.ParentID, e.ChildIDs)
}

// DuplicateIDError reports the same task id seen twice at load time.
type DuplicateIDError struct {
	ID          int
	First, Next string
}

func (e *DuplicateIDError) Error() string {
	if e.First == e.Next {
		return fmt.Sprintf("duplicate task id %d in %s", e.ID, e.First)
	}
	return fmt.Sprintf("duplicate task id %d in %s and %s", e.ID, e.First, e.Next)
}
