// Package execstate tracks which task the current working directory is
// executing. The state lives in a single-record EDN file in the working
// directory itself, not the tasks directory, so each checkout and worktree
// carries its own.
package execstate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/steveyegge/mcp-tasks/internal/ednl"
)

// FileName is the execution state file written into the working directory.
const FileName = ".mcp-tasks-current.edn"

// State is the per-directory execution record. TaskID is absent between
// story child tasks; StoryID is set only while working under a parent story.
type State struct {
	TaskID        *int
	StoryID       *int
	TaskStartTime string
}

// Path returns the state file path for a working directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Read loads the state for dir. Returns nil when the file is missing or
// malformed; a stale or corrupt state file never blocks an operation.
func Read(dir string) *State {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil
	}
	m, err := ednl.ParseMap(data)
	if err != nil {
		return nil
	}
	s := &State{}
	if v, ok := m["task-id"]; ok && v != nil {
		n, err := ednl.AsInt(v)
		if err != nil {
			return nil
		}
		s.TaskID = &n
	}
	if v, ok := m["story-id"]; ok && v != nil {
		n, err := ednl.AsInt(v)
		if err != nil {
			return nil
		}
		s.StoryID = &n
	}
	if v, ok := m["task-start-time"]; ok && v != nil {
		ts, err := ednl.AsString(v)
		if err != nil {
			return nil
		}
		s.TaskStartTime = ts
	}
	return s
}

// Write replaces the state file for dir with the given record.
func Write(dir string, s *State) error {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true
	writeInt := func(key string, v int) {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteByte(':')
		b.WriteString(key)
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(v))
	}
	if s.TaskID != nil {
		writeInt("task-id", *s.TaskID)
	}
	if s.StoryID != nil {
		writeInt("story-id", *s.StoryID)
	}
	if s.TaskStartTime != "" {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(":task-start-time ")
		enc, err := ednl.EncodeString(s.TaskStartTime)
		if err != nil {
			return fmt.Errorf("encoding task-start-time: %w", err)
		}
		b.Write(enc)
	}
	b.WriteString("}\n")
	if err := os.WriteFile(Path(dir), b.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing execution state: %w", err)
	}
	return nil
}

// Clear removes the state file if present.
func Clear(dir string) error {
	err := os.Remove(Path(dir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing execution state: %w", err)
	}
	return nil
}

// Begin records the start of work on a task. A non-nil storyID marks the
// task as a child of that story.
func Begin(dir string, taskID int, storyID *int) error {
	s := &State{
		TaskID:        &taskID,
		TaskStartTime: time.Now().UTC().Format(time.RFC3339),
	}
	if storyID != nil {
		sid := *storyID
		s.StoryID = &sid
	}
	return Write(dir, s)
}

// FinishTask updates the state after completing taskID. Completing a story
// child drops task-id but keeps the story context for the next child;
// completing a standalone task or the story itself clears the file.
func FinishTask(dir string, taskID int) error {
	s := Read(dir)
	if s == nil {
		return nil
	}
	if s.TaskID == nil || *s.TaskID != taskID {
		// The state belongs to a different task; completing the story it
		// points at still clears it.
		if s.StoryID != nil && *s.StoryID == taskID {
			return Clear(dir)
		}
		return nil
	}
	if s.StoryID != nil && *s.StoryID != taskID {
		return Write(dir, &State{StoryID: s.StoryID, TaskStartTime: s.TaskStartTime})
	}
	return Clear(dir)
}
