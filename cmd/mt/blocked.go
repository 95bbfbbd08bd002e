package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/types"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	GroupID: "views",
	Short:   "List blocked tasks and why",
	Long: `List active tasks that cannot start: the target of a blocked-by relation
is unresolved or missing, or the relation graph cycles. Blocking is
transitive through unresolved targets.`,
	Run: func(cmd *cobra.Command, args []string) {
		repo, err := taskOps.Engine.Load()
		if err != nil {
			FatalError("%v", err)
		}

		type blockedTask struct {
			Task        *types.Task `json:"task"`
			BlockingIDs []int       `json:"blocking-ids,omitempty"`
			MissingIDs  []int       `json:"missing-ids,omitempty"`
			Cycle       []int       `json:"cycle,omitempty"`
		}
		var out []blockedTask
		for _, t := range repo.ActiveTasks() {
			info := repo.Blocked(t.ID)
			if !info.Blocked {
				continue
			}
			out = append(out, blockedTask{t, info.BlockingIDs, info.MissingIDs, info.Cycle})
		}

		if jsonOutput {
			if out == nil {
				out = []blockedTask{}
			}
			outputJSON(out)
			return
		}
		if len(out) == 0 {
			if !quietFlag {
				fmt.Println("No blocked tasks.")
			}
			return
		}
		for _, bt := range out {
			fmt.Println(formatTaskLine(bt.Task))
			var reasons []string
			if len(bt.BlockingIDs) > 0 {
				reasons = append(reasons, "blocked by "+joinIDs(bt.BlockingIDs))
			}
			if len(bt.MissingIDs) > 0 {
				reasons = append(reasons, "references missing "+joinIDs(bt.MissingIDs))
			}
			if len(bt.Cycle) > 0 {
				reasons = append(reasons, "cycle "+joinIDs(bt.Cycle))
			}
			fmt.Printf("    %s%s\n", ui.TreeLast, ui.RenderMuted(strings.Join(reasons, "; ")))
		}
	},
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "#" + strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(blockedCmd)
}
