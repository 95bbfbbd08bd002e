package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

var workOnCmd = &cobra.Command{
	Use:     "work-on <id>",
	GroupID: "workflow",
	Short:   "Prepare the environment for a task",
	Long: `Prepare the environment for working on a task: derive its branch,
create or switch branch and worktree per the project config, and record
the execution state in the settled working directory. Task files are
never modified.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task id %q", args[0])
		}

		resp := runOp(func() (*ops.Response, error) {
			return taskOps.WorkOn(rootCtx, ops.WorkOnArgs{TaskID: id})
		})
		if jsonOutput || quietFlag {
			return
		}
		data, ok := responsePayload(resp).(map[string]any)
		if !ok {
			return
		}
		if created, _ := data["branch-created"].(bool); created {
			fmt.Printf("  Created branch %s\n", data["branch-name"])
		} else if switched, _ := data["branch-switched"].(bool); switched {
			fmt.Printf("  Switched to branch %s\n", data["branch-name"])
		}
		if needsSwitch, _ := data["needs-directory-switch"].(bool); needsSwitch {
			fmt.Printf("\n%s Continue in the task worktree:\n  cd %s\n",
				ui.RenderWarn("→"), data["worktree-path"])
		}
	},
}

func init() {
	rootCmd.AddCommand(workOnCmd)
}
