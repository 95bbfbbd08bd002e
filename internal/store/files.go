// Package store persists tasks as line-delimited EDN and maintains the
// in-memory repository view used by every operation.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/steveyegge/mcp-tasks/internal/ednl"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

const (
	// TasksFileName holds active tasks, one record per line.
	TasksFileName = "tasks.ednl"
	// CompleteFileName holds archived tasks in completion order.
	CompleteFileName = "complete.ednl"
	// LockFileName is the sidecar file carrying the advisory lock.
	LockFileName = "tasks.ednl.lock"

	// maxLineBytes bounds a single record line. The append lists alone can
	// reach 100 KiB serialized, so leave generous headroom.
	maxLineBytes = 4 * 1024 * 1024
)

// Paths locates the files of one tasks directory.
type Paths struct {
	Dir      string
	Tasks    string
	Complete string
	Lock     string
}

// PathsFor returns the file layout under tasksDir.
func PathsFor(tasksDir string) Paths {
	return Paths{
		Dir:      tasksDir,
		Tasks:    filepath.Join(tasksDir, TasksFileName),
		Complete: filepath.Join(tasksDir, CompleteFileName),
		Lock:     filepath.Join(tasksDir, LockFileName),
	}
}

// ReadTasks loads all records from path. A missing file yields an empty
// slice. Blank and whitespace-only lines are skipped. Parse errors carry
// the file path and line number.
func ReadTasks(path string) ([]*types.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var tasks []*types.Task
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		task, err := ednl.DecodeTask(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return tasks, nil
}

// WriteTasks rewrites path with the given records. The write goes to a temp
// file in the same directory followed by an atomic rename, so readers never
// observe a partial file and failures leave the previous content intact.
func WriteTasks(path string, tasks []*types.Task) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, t := range tasks {
		line, err := ednl.EncodeTask(t)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("encoding task %d: %w", t.ID, err)
		}
		if _, err := w.Write(line); err != nil {
			tmp.Close()
			return fmt.Errorf("writing %s: %w", tmpPath, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("writing %s: %w", tmpPath, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// AppendTasks appends records to path, creating it if needed. Adding a task
// is a single appended line.
func AppendTasks(path string, tasks ...*types.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	var buf bytes.Buffer
	for _, t := range tasks {
		line, err := ednl.EncodeTask(t)
		if err != nil {
			return fmt.Errorf("encoding task %d: %w", t.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
