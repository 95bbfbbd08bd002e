package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "tasks.edn.lock")

	l, err := Acquire(context.Background(), path, time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file not created: %v", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// Lock file stays behind after release.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file removed on release: %v", err)
	}

	// Reacquire succeeds immediately.
	l2, err := Acquire(context.Background(), path, time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	if err := l2.Release(); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "tasks.edn.lock")

	held, err := Acquire(context.Background(), path, time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer held.Release()

	start := time.Now()
	_, err = Acquire(context.Background(), path, 60*time.Millisecond, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if te.Path != path {
		t.Errorf("TimeoutError.Path = %q, want %q", te.Path, path)
	}
	if !strings.Contains(te.Holder, "pid") {
		t.Errorf("TimeoutError.Holder = %q, want holder pid info", te.Holder)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("timed out after %s, before the configured timeout", elapsed)
	}
}

func TestAcquireHonorsContextCancel(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "tasks.edn.lock")

	held, err := Acquire(context.Background(), path, time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = Acquire(ctx, path, 5*time.Second, 10*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReleaseClearsHolderInfo(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "tasks.edn.lock")

	l, err := Acquire(context.Background(), path, time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading lock file: %v", err)
	}
	if !strings.Contains(string(data), "pid") {
		t.Errorf("lock file missing holder info: %q", data)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading released lock file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("released lock file not truncated: %q", data)
	}
}

func TestReleaseNilSafe(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("Release on nil lock = %v, want nil", err)
	}
}
