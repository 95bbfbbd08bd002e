// Package mcptasks provides a minimal public API for driving the task queue
// programmatically.
//
// Most integrations should talk to the MCP server (mt serve) or shell out to
// the mt binary. This package exports only the essential types and the
// operation surface for Go programs that want to use the queue directly.
package mcptasks

import (
	"github.com/steveyegge/mcp-tasks/internal/config"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

// Core types for working with tasks
type (
	Task         = types.Task
	Status       = types.Status
	TaskType     = types.TaskType
	Relation     = types.Relation
	RelationType = types.RelationType
	SessionEvent = types.SessionEvent
)

// Status constants
const (
	StatusOpen       = types.StatusOpen
	StatusInProgress = types.StatusInProgress
	StatusBlocked    = types.StatusBlocked
	StatusClosed     = types.StatusClosed
	StatusDeleted    = types.StatusDeleted
)

// TaskType constants
const (
	TypeTask    = types.TypeTask
	TypeBug     = types.TypeBug
	TypeFeature = types.TypeFeature
	TypeStory   = types.TypeStory
	TypeChore   = types.TypeChore
)

// Ops is the operation surface bound to one resolved configuration. Every
// mutation pulls the shared state, applies under the queue lock, and commits
// when git sync is configured.
type Ops = ops.Ops

// Operation argument and result types
type (
	AddTaskArgs        = ops.AddTaskArgs
	UpdateTaskArgs     = ops.UpdateTaskArgs
	SelectTasksArgs    = ops.SelectTasksArgs
	CompleteTaskArgs   = ops.CompleteTaskArgs
	DeleteTaskArgs     = ops.DeleteTaskArgs
	ReopenTaskArgs     = ops.ReopenTaskArgs
	WorkOnArgs         = ops.WorkOnArgs
	ExecutionStateArgs = ops.ExecutionStateArgs
	Response           = ops.Response
	OpError            = ops.OpError
)

// Open resolves the project configuration upward from startDir (the working
// directory when empty) and returns the operation surface bound to it.
func Open(startDir string) (*Ops, error) {
	settings, err := config.Resolve(startDir)
	if err != nil {
		return nil, err
	}
	local := config.LoadLocalConfigWithEnv(settings.TasksDir)
	return ops.New(settings, local)
}
