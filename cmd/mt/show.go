package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/types"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <id...>",
	GroupID: "views",
	Short:   "Show task details",
	Long: `Show the full record of one or more tasks, archived ones included.
Description and design render as markdown; long output goes through the
pager.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		noPager, _ := cmd.Flags().GetBool("no-pager")

		tasks := make([]*types.Task, 0, len(args))
		for _, arg := range args {
			id, err := strconv.Atoi(arg)
			if err != nil {
				FatalError("invalid task id %q", arg)
			}
			tasks = append(tasks, fetchTask(id))
		}

		if jsonOutput {
			outputJSON(tasks)
			return
		}

		var b strings.Builder
		for i, t := range tasks {
			if i > 0 {
				b.WriteString("\n" + ui.RenderSeparator() + "\n\n")
			}
			renderTaskDetail(&b, t)
		}
		if err := ui.ToPager(b.String(), ui.PagerOptions{NoPager: noPager}); err != nil {
			FatalError("%v", err)
		}
	},
}

// fetchTask loads one task by id, archived tasks included, or exits.
func fetchTask(id int) *types.Task {
	resp, err := taskOps.SelectTasks(rootCtx, ops.SelectTasksArgs{
		TaskID: &id,
		Status: types.StatusAny,
	})
	if err != nil {
		if jsonOutput {
			outputJSONError(err)
		}
		FatalError("%v", err)
	}
	data, _ := responsePayload(resp).(map[string]any)
	tasks, _ := data["tasks"].([]*types.Task)
	if len(tasks) == 0 {
		FatalError("task %d not found", id)
	}
	return tasks[0]
}

func init() {
	showCmd.Flags().Bool("no-pager", false, "Never pipe output through the pager")
	rootCmd.AddCommand(showCmd)
}
