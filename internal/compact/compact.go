// Package compact distills a task's accumulated working material into a
// short design note using Claude Haiku. The digest is written to the task's
// design field through the regular update pipeline, so it takes the same
// lock, pulls the same remote state, and lands in the same commit stream as
// any other mutation. Shared context is append-only and is never rewritten
// by a digest.
package compact

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/steveyegge/mcp-tasks/internal/types"
)

const defaultConcurrency = 3

// TriggerManual marks digests requested explicitly from the CLI.
const TriggerManual = "manual"

// Config controls digest generation.
type Config struct {
	// APIKey authenticates against the Anthropic API. ANTHROPIC_API_KEY
	// takes precedence when set.
	APIKey string
	// Model overrides the default Haiku model.
	Model string
	// Concurrency bounds parallel API calls in DigestBatch.
	Concurrency int
	// DryRun reports source sizes without calling the API or writing.
	DryRun bool
	// Trigger is recorded on the compaction session event. Defaults to
	// TriggerManual.
	Trigger string
}

// taskPipeline is the slice of the task surface digests flow through. The
// operations layer satisfies it through a small adapter, so a digest lands
// the way any other update does: lock, pull, validate, save, commit.
type taskPipeline interface {
	GetTask(ctx context.Context, id int) (*types.Task, error)
	ApplyDigest(ctx context.Context, id int, digest, trigger string) error
}

type summarizer interface {
	Summarize(ctx context.Context, task *types.Task) (string, error)
}

// Compactor generates design digests for tasks.
type Compactor struct {
	tasks      taskPipeline
	summarizer summarizer
	config     *Config
}

// New builds a Compactor over the given pipeline. Unless config.DryRun is
// set, an API key must be available via config or ANTHROPIC_API_KEY; there
// is no silent fallback to a dry run.
func New(tasks taskPipeline, config *Config) (*Compactor, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	if config.Trigger == "" {
		config.Trigger = TriggerManual
	}

	var s summarizer
	if !config.DryRun {
		hc, err := newHaikuClient(config.APIKey, config.Model)
		if err != nil {
			return nil, err
		}
		s = hc
	}

	return &Compactor{tasks: tasks, summarizer: s, config: config}, nil
}

// Result reports one digest attempt.
type Result struct {
	TaskID      int
	SourceBytes int
	DigestBytes int
	Digest      string
	DryRun      bool
	Err         error
}

// Digest summarizes the task's description, current design note, and shared
// context into a fresh design note and applies it. Tasks with nothing to
// digest are refused, as are digests that do not shrink the material.
func (c *Compactor) Digest(ctx context.Context, taskID int) (*Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	task, err := c.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("fetching task: %w", err)
	}

	sourceBytes := sourceSize(task)
	if sourceBytes == 0 {
		return nil, fmt.Errorf("task %d has no description or shared context to digest", taskID)
	}

	if c.config.DryRun {
		return &Result{TaskID: taskID, SourceBytes: sourceBytes, DryRun: true}, nil
	}

	digest, err := c.summarizer.Summarize(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("summarizing task %d: %w", taskID, err)
	}
	digest = strings.TrimSpace(digest)

	digestBytes := len(digest)
	if digestBytes == 0 {
		return nil, fmt.Errorf("model returned an empty digest for task %d", taskID)
	}
	if digestBytes >= sourceBytes {
		return nil, fmt.Errorf("digest (%d bytes) is not shorter than its source (%d bytes), leaving task %d unchanged",
			digestBytes, sourceBytes, taskID)
	}

	if err := c.tasks.ApplyDigest(ctx, taskID, digest, c.config.Trigger); err != nil {
		return nil, fmt.Errorf("applying digest: %w", err)
	}

	return &Result{
		TaskID:      taskID,
		SourceBytes: sourceBytes,
		DigestBytes: digestBytes,
		Digest:      digest,
	}, nil
}

// DigestBatch digests several tasks with at most Concurrency API calls in
// flight. Results come back in input order with per-task errors; the writes
// behind ApplyDigest serialize on the store lock regardless.
func (c *Compactor) DigestBatch(ctx context.Context, taskIDs []int) []Result {
	if len(taskIDs) == 0 {
		return nil
	}

	results := make([]Result, len(taskIDs))
	sem := make(chan struct{}, c.config.Concurrency)
	var wg sync.WaitGroup

	for i, id := range taskIDs {
		wg.Add(1)
		go func(idx, taskID int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r, err := c.Digest(ctx, taskID)
			if err != nil {
				results[idx] = Result{TaskID: taskID, Err: err}
				return
			}
			results[idx] = *r
		}(i, id)
	}

	wg.Wait()
	return results
}

// sourceSize measures the material a digest would be built from. Whitespace
// padding in the prose fields does not count; context entries count as-is.
func sourceSize(t *types.Task) int {
	n := len(strings.TrimSpace(t.Description)) + len(strings.TrimSpace(t.Design))
	for _, entry := range t.SharedContext {
		n += len(entry)
	}
	return n
}
