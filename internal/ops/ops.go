// Package ops implements the named operations of mcp-tasks: add, update,
// select, complete, delete, reopen, work-on, and execution-state. Each
// operation validates its arguments, runs reads directly and mutations
// through the gitsync engine, and renders a Response that the MCP and CLI
// adapters pass through unchanged.
//
// Errors never escape unclassified: every failure is an *OpError carrying
// the attempted operation, a kind from the fixed taxonomy, and enough
// context to retry.
package ops

import (
	"fmt"

	"github.com/steveyegge/mcp-tasks/internal/config"
	"github.com/steveyegge/mcp-tasks/internal/git"
	"github.com/steveyegge/mcp-tasks/internal/gitsync"
	"github.com/steveyegge/mcp-tasks/internal/prompt"
	"github.com/steveyegge/mcp-tasks/internal/workon"
)

// Operation names as exposed through the MCP tool list and the CLI.
const (
	OpAddTask        = "add-task"
	OpUpdateTask     = "update-task"
	OpSelectTasks    = "select-tasks"
	OpCompleteTask   = "complete-task"
	OpDeleteTask     = "delete-task"
	OpReopenTask     = "reopen-task"
	OpWorkOn         = "work-on"
	OpExecutionState = "execution-state"
)

// Ops is the operation surface bound to one resolved configuration.
type Ops struct {
	Settings *config.Settings
	Local    *config.LocalConfig
	Git      *git.Git
	Engine   *gitsync.Engine
	Workon   *workon.Coordinator
	Prompts  *prompt.Registry
}

// New wires the operation surface for settings. The local config supplies
// the commit author and push policy; the prompt registry defines the valid
// task categories.
func New(settings *config.Settings, local *config.LocalConfig) (*Ops, error) {
	g := git.New()
	g.Author = local.GitAuthor
	g.NoGPGSign = local.NoGPGSign
	prompts, err := prompt.Load(settings.TasksDir)
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}
	return &Ops{
		Settings: settings,
		Local:    local,
		Git:      g,
		Engine:   gitsync.New(settings, g, *local),
		Workon:   workon.New(settings, g),
		Prompts:  prompts,
	}, nil
}
