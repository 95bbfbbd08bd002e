package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/store"
	"github.com/steveyegge/mcp-tasks/internal/types"
	"golang.org/x/sync/errgroup"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "views",
	Short:   "List tasks in queue order",
	Long: `List tasks in queue order: active tasks first, archived ones when the
status filter includes them. Status defaults to the unresolved statuses;
pass --status any to include closed and deleted tasks.

With --watch the listing re-renders whenever another agent writes the
task files.`,
	Run: func(cmd *cobra.Command, args []string) {
		category, _ := cmd.Flags().GetString("category")
		parentID, _ := cmd.Flags().GetInt("parent")
		titlePattern, _ := cmd.Flags().GetString("title")
		taskType, _ := cmd.Flags().GetString("type")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		unique, _ := cmd.Flags().GetBool("unique")
		watch, _ := cmd.Flags().GetBool("watch")

		opArgs := ops.SelectTasksArgs{
			Category:     category,
			TitlePattern: titlePattern,
			Type:         taskType,
			Status:       status,
			Limit:        limit,
			Unique:       unique,
		}
		if cmd.Flags().Changed("parent") {
			opArgs.ParentID = &parentID
		}

		if watch {
			if jsonOutput {
				FatalError("--watch and --json cannot be combined")
			}
			watchTasks(opArgs)
			return
		}

		resp := runOp(func() (*ops.Response, error) {
			return taskOps.SelectTasks(rootCtx, opArgs)
		})
		if jsonOutput {
			return
		}
		renderTaskList(resp)
	},
}

// renderTaskList prints one line per task under the summary runOp already
// printed.
func renderTaskList(resp *ops.Response) {
	data, ok := responsePayload(resp).(map[string]any)
	if !ok {
		return
	}
	tasks, ok := data["tasks"].([]*types.Task)
	if !ok {
		return
	}
	for _, t := range tasks {
		fmt.Println(formatTaskLine(t))
	}
	if closed, ok := data["closed-children"].(int); ok && closed > 0 {
		fmt.Printf("  (%d closed children)\n", closed)
	}
}

// watchTasks re-renders the listing whenever the task files change.
// rootCtx already cancels on SIGINT/SIGTERM, so the loops unwind on Ctrl+C.
func watchTasks(opArgs ops.SelectTasksArgs) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		FatalError("creating watcher: %v", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(settings.TasksDir); err != nil {
		FatalError("watching %s: %v", settings.TasksDir, err)
	}

	render := func() {
		resp, err := taskOps.SelectTasks(rootCtx, opArgs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error refreshing tasks: %v\n", err)
			return
		}
		if !quietFlag {
			fmt.Println(resp.Message())
		}
		renderTaskList(resp)
		fmt.Fprintf(os.Stderr, "\nWatching for changes... (Press Ctrl+C to exit)\n")
	}
	render()

	const debounceDelay = 500 * time.Millisecond
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				basename := filepath.Base(event.Name)
				if basename != store.TasksFileName && basename != store.CompleteFileName {
					continue
				}
				// Debounce rapid changes: a sync writes both files
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, render)
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		FatalError("%v", err)
	}
	fmt.Fprintf(os.Stderr, "\nStopped watching.\n")
}

func init() {
	listCmd.Flags().StringP("category", "c", "", "Filter by category")
	listCmd.Flags().IntP("parent", "p", 0, "Filter by parent story id")
	listCmd.Flags().String("title", "", "Filter by title pattern (case-insensitive regexp)")
	listCmd.Flags().StringP("type", "t", "", "Filter by type")
	listCmd.Flags().StringP("status", "s", "", "Filter by status (open, in-progress, blocked, closed, deleted, any)")
	listCmd.Flags().IntP("limit", "n", 0, "Maximum tasks to show (0: all)")
	listCmd.Flags().Bool("unique", false, "Require exactly one match")
	listCmd.Flags().BoolP("watch", "w", false, "Re-render when the task files change")
	rootCmd.AddCommand(listCmd)
}
