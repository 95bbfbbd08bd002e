// Package gitsync wraps mutating task operations with the shared-file
// coordination policy: take the lock, pull the tasks repository, reload
// state from disk, apply the mutation, save, then commit and push after
// the lock is released.
package gitsync

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/steveyegge/mcp-tasks/internal/config"
	"github.com/steveyegge/mcp-tasks/internal/debug"
	"github.com/steveyegge/mcp-tasks/internal/git"
	"github.com/steveyegge/mcp-tasks/internal/lock"
	"github.com/steveyegge/mcp-tasks/internal/store"
	"github.com/steveyegge/mcp-tasks/internal/telemetry"
)

// pushMaxRetries bounds transient-network push retries per mutation.
const pushMaxRetries = 2

// Status describes the git outcome of one committed mutation.
type Status struct {
	// Ok is false when the commit itself failed. Push failures never clear
	// it; the next successful push carries the commit along.
	Ok bool
	// Commit is the sha of the created commit, empty when nothing changed.
	Commit string
	// Error holds the git failure detail when !Ok.
	Error string
}

// PullError reports a mutation aborted before any write: the pre-mutation
// pull failed in a way that needs manual attention in the tasks directory.
type PullError struct {
	Dir string
	Err error
}

func (e *PullError) Error() string {
	return fmt.Sprintf("pulling %s before mutation: %v", e.Dir, e.Err)
}

func (e *PullError) Unwrap() error { return e.Err }

// Engine coordinates mutations against one tasks directory.
type Engine struct {
	settings *config.Settings
	git      *git.Git
	local    config.LocalConfig
}

func New(settings *config.Settings, g *git.Git, local config.LocalConfig) *Engine {
	return &Engine{settings: settings, git: g, local: local}
}

// Mutate runs fn against a freshly loaded repository under the file lock
// and persists the result. The commit/push phase runs after the lock is
// released so other writers are not serialized behind the network.
//
// The returned Status is nil when git integration is disabled.
func (e *Engine) Mutate(ctx context.Context, message string, fn func(*store.Repository) error) (*store.Repository, *Status, error) {
	paths := store.PathsFor(e.settings.TasksDir)
	if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating tasks directory: %w", err)
	}

	lockStart := time.Now()
	lk, err := lock.Acquire(ctx, paths.Lock, e.settings.LockTimeout, e.settings.LockPollInterval)
	if err != nil {
		return nil, nil, err
	}
	telemetry.RecordLockWait(ctx, time.Since(lockStart))

	var changed []string
	repo, err := func() (*store.Repository, error) {
		defer lk.Release()

		if e.settings.SyncEnabled() {
			if err := e.pull(ctx); err != nil {
				return nil, err
			}
		}

		// Reload after the pull; any state loaded before the lock is stale.
		r, err := store.Load(paths)
		if err != nil {
			return nil, err
		}
		if err := fn(r); err != nil {
			return nil, err
		}
		changed = r.ChangedPaths(paths)
		if err := r.Save(paths); err != nil {
			return nil, err
		}
		return r, nil
	}()
	if err != nil {
		return nil, nil, err
	}

	var status *Status
	if e.settings.CommitsEnabled() {
		status = e.commitAndPush(ctx, changed, message)
	}
	return repo, status, nil
}

// Load reads the repository without locking or syncing, for read-only
// operations.
func (e *Engine) Load() (*store.Repository, error) {
	return store.Load(store.PathsFor(e.settings.TasksDir))
}

// pull brings the tasks directory up to date with its remote. Directories
// that are not repositories, have no remote, or track an empty remote are
// skipped; conflicts and network failures abort the mutation.
func (e *Engine) pull(ctx context.Context) error {
	dir := e.settings.TasksDir
	err := e.git.Pull(ctx, dir)
	if err == nil {
		return nil
	}
	if git.IsNotRepo(err) || git.IsNoRemote(err) || git.IsEmptyRepo(err) {
		debug.Logf("gitsync: skipping pull in %s: %v\n", dir, err)
		return nil
	}
	return &PullError{Dir: dir, Err: err}
}

func (e *Engine) commitAndPush(ctx context.Context, changed []string, message string) *Status {
	dir := e.settings.TasksDir
	if len(changed) == 0 {
		return &Status{Ok: true}
	}
	if !e.git.IsRepo(ctx, dir) {
		debug.Logf("gitsync: %s is not a repository, skipping commit\n", dir)
		return &Status{Ok: true}
	}

	sha, err := e.git.CommitPaths(ctx, dir, changed, message)
	if err != nil {
		if git.IsNothingToCommit(err) {
			return &Status{Ok: true}
		}
		return &Status{Ok: false, Error: err.Error()}
	}
	st := &Status{Ok: true, Commit: sha}

	if e.local.NoPush {
		debug.Logf("gitsync: no-push set, skipping push\n")
		return st
	}
	if !e.git.HasRemote(ctx, dir) {
		return st
	}
	if err := e.pushWithRetry(ctx, dir); err != nil {
		// Last-writer-wins: the commit stays local and rides along with the
		// next successful push.
		debug.Logf("gitsync: push failed: %v\n", err)
		debug.LogEvent("PUSH_FAILED", 0, err.Error())
	}
	return st
}

func (e *Engine) pushWithRetry(ctx context.Context, dir string) error {
	op := func() error {
		err := e.git.Push(ctx, dir)
		if err == nil {
			return nil
		}
		if git.IsNetworkError(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), pushMaxRetries), ctx)
	return backoff.Retry(op, bo)
}
