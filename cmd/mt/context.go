package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
)

var contextCmd = &cobra.Command{
	Use:     "context <id>",
	GroupID: "workflow",
	Short:   "List or append a task's shared context",
	Long: `List the shared context entries on a task, or append one with --add.
Shared context is the append-only log agents use to hand findings to
whoever picks the task up next; entries are never rewritten. Appends made
while this directory executes a story child are prefixed with that task's
number.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task id %q", args[0])
		}
		entry, _ := cmd.Flags().GetString("add")

		if cmd.Flags().Changed("add") {
			if entry == "" {
				FatalError("--add requires a non-empty entry")
			}
			runOp(func() (*ops.Response, error) {
				return taskOps.UpdateTask(rootCtx, ops.UpdateTaskArgs{
					TaskID:           id,
					AddSharedContext: []string{entry},
				})
			})
			return
		}

		task := fetchTask(id)
		if jsonOutput {
			entries := task.SharedContext
			if entries == nil {
				entries = []string{}
			}
			outputJSON(entries)
			return
		}
		if len(task.SharedContext) == 0 {
			if !quietFlag {
				fmt.Printf("No shared context on task %d.\n", id)
			}
			return
		}
		for _, entry := range task.SharedContext {
			fmt.Printf("• %s\n", entry)
		}
	},
}

func init() {
	contextCmd.Flags().String("add", "", "Append a shared context entry")
	rootCmd.AddCommand(contextCmd)
}
