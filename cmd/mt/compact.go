package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/compact"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/types"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

var compactCmd = &cobra.Command{
	Use:     "compact <id...>",
	GroupID: "workflow",
	Short:   "Distill a task's working material into a design digest",
	Long: `Distill a task's description, design note and shared context into a
short design digest and write it to the design field. The digest goes
through the regular update pipeline, so it syncs and commits like any
other change; shared context itself is never rewritten.

Requires ANTHROPIC_API_KEY unless --dry-run is set.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		model, _ := cmd.Flags().GetString("model")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		ids := make([]int, 0, len(args))
		for _, arg := range args {
			id, err := strconv.Atoi(arg)
			if err != nil {
				FatalError("invalid task id %q", arg)
			}
			ids = append(ids, id)
		}

		compactor, err := compact.New(&opsPipeline{ops: taskOps}, &compact.Config{
			Model:       model,
			Concurrency: concurrency,
			DryRun:      dryRun,
		})
		if err != nil {
			FatalError("%v", err)
		}

		results := compactor.DigestBatch(rootCtx, ids)
		if jsonOutput {
			outputJSON(compactReport(results))
		} else {
			renderCompactResults(results)
		}
		for _, r := range results {
			if r.Err != nil {
				os.Exit(1)
			}
		}
	},
}

// opsPipeline adapts the operation surface to the digest pipeline. Reads
// side-step the lock; the digest write goes through the regular update path
// and records the compaction event.
type opsPipeline struct {
	ops *ops.Ops
}

func (p *opsPipeline) GetTask(ctx context.Context, id int) (*types.Task, error) {
	repo, err := p.ops.Engine.Load()
	if err != nil {
		return nil, err
	}
	t := repo.Get(id)
	if t == nil {
		return nil, fmt.Errorf("task %d not found", id)
	}
	return t, nil
}

func (p *opsPipeline) ApplyDigest(ctx context.Context, id int, digest, trigger string) error {
	_, err := p.ops.UpdateTask(ctx, ops.UpdateTaskArgs{
		TaskID: id,
		Design: &digest,
		AddSessionEvents: []types.SessionEvent{{
			EventType: types.EventCompaction,
			Trigger:   trigger,
		}},
	})
	return err
}

type compactResultJSON struct {
	TaskID      int    `json:"task-id"`
	SourceBytes int    `json:"source-bytes,omitempty"`
	DigestBytes int    `json:"digest-bytes,omitempty"`
	DryRun      bool   `json:"dry-run,omitempty"`
	Error       string `json:"error,omitempty"`
}

func compactReport(results []compact.Result) []compactResultJSON {
	out := make([]compactResultJSON, 0, len(results))
	for _, r := range results {
		cr := compactResultJSON{
			TaskID:      r.TaskID,
			SourceBytes: r.SourceBytes,
			DigestBytes: r.DigestBytes,
			DryRun:      r.DryRun,
		}
		if r.Err != nil {
			cr.Error = r.Err.Error()
		}
		out = append(out, cr)
	}
	return out
}

func renderCompactResults(results []compact.Result) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Printf("%s task %d: %v\n", ui.RenderFail("✗"), r.TaskID, r.Err)
		case r.DryRun:
			fmt.Printf("%s task %d: %d bytes to digest\n", ui.RenderMuted("·"), r.TaskID, r.SourceBytes)
		default:
			fmt.Printf("%s task %d: digested %d bytes into %d\n",
				ui.RenderPass("✓"), r.TaskID, r.SourceBytes, r.DigestBytes)
		}
	}
}

func init() {
	compactCmd.Flags().Bool("dry-run", false, "Report digest sizes without calling the API or writing")
	compactCmd.Flags().String("model", "", "Override the summarization model")
	compactCmd.Flags().Int("concurrency", 0, "Parallel API calls for multiple tasks")
	rootCmd.AddCommand(compactCmd)
}
