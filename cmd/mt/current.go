package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

var currentCmd = &cobra.Command{
	Use:     "current",
	GroupID: "workflow",
	Short:   "Show or change this directory's execution state",
	Long: `Show which task this working directory is executing. The state is local
to the directory and lives next to the task files, never in git.

  mt current             show the state
  mt current --set 12    mark task 12 as executing (--story for its story)
  mt current --clear     clear the state`,
	Run: func(cmd *cobra.Command, args []string) {
		setID, _ := cmd.Flags().GetInt("set")
		storyID, _ := cmd.Flags().GetInt("story")
		clear, _ := cmd.Flags().GetBool("clear")

		opArgs := ops.ExecutionStateArgs{Action: "read"}
		switch {
		case clear && cmd.Flags().Changed("set"):
			FatalError("--set and --clear cannot be combined")
		case clear:
			opArgs.Action = "clear"
		case cmd.Flags().Changed("set"):
			opArgs.Action = "write"
			opArgs.TaskID = &setID
			if cmd.Flags().Changed("story") {
				opArgs.StoryID = &storyID
			}
		}

		resp := runOp(func() (*ops.Response, error) {
			return taskOps.ExecutionState(rootCtx, opArgs)
		})
		if jsonOutput || quietFlag || opArgs.Action != "read" {
			return
		}
		data, ok := responsePayload(resp).(map[string]any)
		if !ok {
			return
		}
		if start, ok := data["task-start-time"].(string); ok && start != "" {
			fmt.Printf("  Started: %s\n", ui.RenderMuted(start))
		}
	},
}

func init() {
	currentCmd.Flags().Int("set", 0, "Record the given task as executing")
	currentCmd.Flags().Int("story", 0, "Story the task belongs to (with --set)")
	currentCmd.Flags().Bool("clear", false, "Clear the execution state")
	rootCmd.AddCommand(currentCmd)
}
