package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/timeparsing"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	GroupID: "tasks",
	Short:   "Update fields of a task",
	Long: `Update fields of a task. Only flags you pass change anything; --meta
replaces the metadata wholesale. Closing a task goes through 'mt complete',
so --status accepts open, in-progress and blocked.

--code-reviewed accepts relative expressions (-1d, "yesterday 5pm", now)
and stores the resolved UTC timestamp; pass an empty string to clear it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task id %q", args[0])
		}

		opArgs := ops.UpdateTaskArgs{TaskID: id}
		setString := func(flag string, dst **string) {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
			}
		}
		setString("title", &opArgs.Title)
		setString("description", &opArgs.Description)
		setString("design", &opArgs.Design)
		setString("category", &opArgs.Category)
		setString("type", &opArgs.Type)
		setString("status", &opArgs.Status)

		if cmd.Flags().Changed("parent") {
			parent, _ := cmd.Flags().GetInt("parent")
			opArgs.ParentID = &parent
		}
		if cmd.Flags().Changed("pr-num") {
			pr, _ := cmd.Flags().GetInt("pr-num")
			opArgs.PRNum = &pr
		}
		if cmd.Flags().Changed("meta") {
			metaFlags, _ := cmd.Flags().GetStringArray("meta")
			meta, err := parseMetaFlags(metaFlags)
			if err != nil {
				FatalError("%v", err)
			}
			opArgs.Meta = meta
		}
		if cmd.Flags().Changed("code-reviewed") {
			raw, _ := cmd.Flags().GetString("code-reviewed")
			stamp, err := resolveReviewTimestamp(raw, time.Now())
			if err != nil {
				FatalError("%v", err)
			}
			opArgs.CodeReviewed = &stamp
		}

		resp := runOp(func() (*ops.Response, error) {
			return taskOps.UpdateTask(rootCtx, opArgs)
		})
		if jsonOutput || quietFlag {
			return
		}
		if task, ok := responsePayload(resp).(*types.Task); ok {
			fmt.Println(formatTaskLine(task))
		}
	},
}

// resolveReviewTimestamp turns a CLI time expression into the UTC RFC3339
// form the task record requires. Empty input clears the field.
func resolveReviewTimestamp(raw string, now time.Time) (string, error) {
	if raw == "" {
		return "", nil
	}
	if raw == "now" {
		return now.UTC().Format(time.RFC3339), nil
	}
	t, err := timeparsing.ParseRelativeTime(raw, now)
	if err != nil {
		return "", fmt.Errorf("code-reviewed: %w", err)
	}
	return t.UTC().Format(time.RFC3339), nil
}

func init() {
	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().String("design", "", "New design note")
	updateCmd.Flags().String("category", "", "New category")
	updateCmd.Flags().StringP("type", "t", "", "New type (task, bug, feature, story, chore)")
	updateCmd.Flags().StringP("status", "s", "", "New status (open, in-progress, blocked)")
	updateCmd.Flags().IntP("parent", "p", 0, "New parent story id")
	updateCmd.Flags().StringArray("meta", nil, "Replacement metadata key=value (repeatable)")
	updateCmd.Flags().String("code-reviewed", "", "Review timestamp (now, -1d, 2025-06-01, empty clears)")
	updateCmd.Flags().Int("pr-num", 0, "Pull request number")
	rootCmd.AddCommand(updateCmd)
}
