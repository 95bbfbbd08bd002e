package mcptasks_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	mcptasks "github.com/steveyegge/mcp-tasks"
)

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	queue, err := mcptasks.Open(tmpDir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if queue == nil {
		t.Fatal("expected non-nil ops")
	}

	ctx := context.Background()
	resp, err := queue.AddTask(ctx, mcptasks.AddTaskArgs{
		Category: "simple",
		Title:    "Wire the public entry point",
	})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	task, ok := resp.Content[1].Data.(*mcptasks.Task)
	if !ok {
		t.Fatalf("expected task payload, got %T", resp.Content[1].Data)
	}
	if task.ID == 0 {
		t.Error("expected a non-zero task id")
	}

	resp, err = queue.SelectTasks(ctx, mcptasks.SelectTasksArgs{TaskID: &task.ID})
	if err != nil {
		t.Fatalf("SelectTasks failed: %v", err)
	}
	payload, ok := resp.Content[1].Data.(map[string]any)
	if !ok {
		t.Fatalf("expected map payload, got %T", resp.Content[1].Data)
	}
	tasks, ok := payload["tasks"].([]*mcptasks.Task)
	if !ok || len(tasks) != 1 {
		t.Fatalf("expected one matching task, got %v", payload["tasks"])
	}
	if tasks[0].Title != "Wire the public entry point" {
		t.Errorf("Title = %q, want %q", tasks[0].Title, "Wire the public entry point")
	}
}

func TestOpenMissingExplicitTasksDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := "{:tasks-dir \"does-not-exist\"}\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".mcp-tasks.edn"), []byte(cfg), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := mcptasks.Open(tmpDir); err == nil {
		t.Fatal("Open should fail when the configured tasks-dir is missing")
	}
}

// Test that exported constants have correct values
func TestConstants(t *testing.T) {
	// Status constants
	if mcptasks.StatusOpen != "open" {
		t.Errorf("StatusOpen = %q, want %q", mcptasks.StatusOpen, "open")
	}
	if mcptasks.StatusInProgress != "in-progress" {
		t.Errorf("StatusInProgress = %q, want %q", mcptasks.StatusInProgress, "in-progress")
	}
	if mcptasks.StatusBlocked != "blocked" {
		t.Errorf("StatusBlocked = %q, want %q", mcptasks.StatusBlocked, "blocked")
	}
	if mcptasks.StatusClosed != "closed" {
		t.Errorf("StatusClosed = %q, want %q", mcptasks.StatusClosed, "closed")
	}

	// TaskType constants
	if mcptasks.TypeTask != "task" {
		t.Errorf("TypeTask = %q, want %q", mcptasks.TypeTask, "task")
	}
	if mcptasks.TypeBug != "bug" {
		t.Errorf("TypeBug = %q, want %q", mcptasks.TypeBug, "bug")
	}
	if mcptasks.TypeFeature != "feature" {
		t.Errorf("TypeFeature = %q, want %q", mcptasks.TypeFeature, "feature")
	}
	if mcptasks.TypeStory != "story" {
		t.Errorf("TypeStory = %q, want %q", mcptasks.TypeStory, "story")
	}
}
