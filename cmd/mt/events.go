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

var eventsCmd = &cobra.Command{
	Use:     "events <id>",
	GroupID: "workflow",
	Short:   "List or append a task's session events",
	Long: `List the session events recorded on a task, or append one with --add.
Events are the session journal agents leave behind: user prompts,
compactions, session starts.

--since accepts relative expressions: -1d, "yesterday", 2025-06-01.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			FatalError("invalid task id %q", args[0])
		}
		addContent, _ := cmd.Flags().GetString("add")
		eventType, _ := cmd.Flags().GetString("type")
		sessionID, _ := cmd.Flags().GetString("session")
		since, _ := cmd.Flags().GetString("since")

		if cmd.Flags().Changed("add") {
			event := types.SessionEvent{
				EventType: types.EventType(eventType),
				Content:   addContent,
				SessionID: sessionID,
			}
			runOp(func() (*ops.Response, error) {
				return taskOps.UpdateTask(rootCtx, ops.UpdateTaskArgs{
					TaskID:           id,
					AddSessionEvents: []types.SessionEvent{event},
				})
			})
			return
		}

		task := fetchTask(id)
		events := task.SessionEvents
		if since != "" {
			cutoff, err := timeparsing.ParseRelativeTime(since, time.Now())
			if err != nil {
				FatalError("--since: %v", err)
			}
			events = filterEventsSince(events, cutoff)
		}

		if jsonOutput {
			if events == nil {
				events = []types.SessionEvent{}
			}
			outputJSON(events)
			return
		}
		if len(events) == 0 {
			if !quietFlag {
				fmt.Printf("No session events on task %d.\n", id)
			}
			return
		}
		for _, ev := range events {
			fmt.Println(formatEvent(ev))
		}
	},
}

// filterEventsSince keeps events at or after the cutoff. Events whose
// timestamp does not parse are kept; hiding them would make the journal
// look shorter than it is.
func filterEventsSince(events []types.SessionEvent, cutoff time.Time) []types.SessionEvent {
	var out []types.SessionEvent
	for _, ev := range events {
		t, err := time.Parse(time.RFC3339, ev.Timestamp)
		if err == nil && t.Before(cutoff) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func init() {
	eventsCmd.Flags().String("add", "", "Append an event with this content")
	eventsCmd.Flags().StringP("type", "t", string(types.EventUserPrompt), "Event type for --add (user-prompt, compaction, session-start)")
	eventsCmd.Flags().String("session", "", "Session id recorded on the appended event")
	eventsCmd.Flags().String("since", "", "Only list events at or after this time")
	rootCmd.AddCommand(eventsCmd)
}
