package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

var reopenCmd = &cobra.Command{
	Use:     "reopen [id]",
	GroupID: "tasks",
	Short:   "Move a closed task back to the queue",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title, _ := cmd.Flags().GetString("title")

		opArgs := ops.ReopenTaskArgs{Title: title}
		if len(args) == 1 {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				FatalError("invalid task id %q", args[0])
			}
			opArgs.TaskID = &id
		}

		resp := runOp(func() (*ops.Response, error) {
			return taskOps.ReopenTask(rootCtx, opArgs)
		})
		if jsonOutput || quietFlag {
			return
		}
		if task, ok := responsePayload(resp).(*types.Task); ok {
			fmt.Println(formatTaskLine(task))
		}
	},
}

func init() {
	reopenCmd.Flags().String("title", "", "Select by exact archived title instead of id")
	rootCmd.AddCommand(reopenCmd)
}
