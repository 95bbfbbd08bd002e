// Package lock provides advisory file locking for cross-process mutation
// safety. A sidecar .lock file next to the data file carries an OS-level
// exclusive lock; writers poll for it and give up after a timeout.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLockBusy is returned by the platform flock helpers when another process
// holds the lock.
var ErrLockBusy = errors.New("lock already held by another process")

// TimeoutError reports that the lock could not be acquired within the
// configured timeout. Holder carries a best-effort description of the
// current owner when the lock file content is readable.
type TimeoutError struct {
	Path    string
	Timeout time.Duration
	Holder  string
}

func (e *TimeoutError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("timed out after %s waiting for lock %s (%s)", e.Timeout, e.Path, e.Holder)
	}
	return fmt.Sprintf("timed out after %s waiting for lock %s", e.Timeout, e.Path)
}

// Lock is a held advisory lock. Release it when the critical section ends.
type Lock struct {
	path string
	file *os.File
}

// holderInfo is written into the lock file so a blocked process can report
// who owns the lock. It is informational only.
type holderInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname,omitempty"`
	StartedAt time.Time `json:"started-at"`
}

// Acquire takes an exclusive advisory lock on path, polling every poll
// interval until timeout elapses. On timeout it returns a *TimeoutError.
// The context cancels the wait early.
func Acquire(ctx context.Context, path string, timeout, poll time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := flockExclusive(f)
		if err == nil {
			writeHolder(f)
			return &Lock{path: path, file: f}, nil
		}
		if !errors.Is(err, ErrLockBusy) {
			f.Close()
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		if !time.Now().Before(deadline) {
			holder := describeHolder(path)
			f.Close()
			return nil, &TimeoutError{Path: path, Timeout: timeout, Holder: holder}
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// Release unlocks and closes the lock file. The file itself stays on disk;
// removing it would race with other waiters polling the same inode.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Clear holder info so a later timeout does not report a stale owner.
	l.file.Truncate(0)
	unlockErr := flockUnlock(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("unlocking %s: %w", l.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", l.path, closeErr)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

func writeHolder(f *os.File) {
	info := holderInfo{PID: os.Getpid(), StartedAt: time.Now().UTC()}
	if host, err := os.Hostname(); err == nil {
		info.Hostname = host
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	// Best effort; the lock itself does not depend on the content.
	f.Truncate(0)
	f.WriteAt(data, 0)
	f.Sync()
}

func describeHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return ""
	}
	var info holderInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ""
	}
	desc := fmt.Sprintf("held by pid %d", info.PID)
	if info.Hostname != "" {
		desc += " on " + info.Hostname
	}
	if !info.StartedAt.IsZero() {
		desc += " since " + info.StartedAt.Format(time.RFC3339)
	}
	return desc
}
