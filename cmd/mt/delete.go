package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [id]",
	GroupID: "tasks",
	Short:   "Mark a task deleted and archive it",
	Long: `Mark a task deleted and move it to the archive. Deleted tasks never
reopen. Selection by --title pattern must match exactly one active task;
a parent with unresolved children is refused.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		titlePattern, _ := cmd.Flags().GetString("title")

		opArgs := ops.DeleteTaskArgs{TitlePattern: titlePattern}
		if len(args) == 1 {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				FatalError("invalid task id %q", args[0])
			}
			opArgs.TaskID = &id
		}

		runOp(func() (*ops.Response, error) {
			return taskOps.DeleteTask(rootCtx, opArgs)
		})
	},
}

func init() {
	deleteCmd.Flags().String("title", "", "Select by title pattern (must match exactly one)")
	rootCmd.AddCommand(deleteCmd)
}
