package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

var completeCmd = &cobra.Command{
	Use:     "complete [id]",
	GroupID: "tasks",
	Short:   "Close a task and archive it",
	Long: `Close a task and move it to the archive. The task can be selected by id
or by exact title with --title. Completing the task the execution state
points at advances the state; the task's worktree is removed when it is
clean and fully pushed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title, _ := cmd.Flags().GetString("title")
		category, _ := cmd.Flags().GetString("category")
		comment, _ := cmd.Flags().GetString("comment")

		opArgs := ops.CompleteTaskArgs{
			Title:             title,
			Category:          category,
			CompletionComment: comment,
		}
		if len(args) == 1 {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				FatalError("invalid task id %q", args[0])
			}
			opArgs.TaskID = &id
		}

		resp := runOp(func() (*ops.Response, error) {
			return taskOps.CompleteTask(rootCtx, opArgs)
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
	completeCmd.Flags().String("title", "", "Select by exact title instead of id")
	completeCmd.Flags().StringP("category", "c", "", "Narrow title selection to a category")
	completeCmd.Flags().StringP("comment", "m", "", "Completion comment appended to the description")
	rootCmd.AddCommand(completeCmd)
}
