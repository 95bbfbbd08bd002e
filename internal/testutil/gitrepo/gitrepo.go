// Package gitrepo provides scratch git repositories for tests.
//
// Tests using this package require the `git` binary in PATH. When git is
// not available, tests are skipped automatically via t.Skip. Repositories
// are created under t.TempDir and need no explicit cleanup.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    dir := filepath.Join(t.TempDir(), "repo")
//	    gitrepo.Init(t, dir)
//	    gitrepo.Run(t, dir, "log", "--oneline")
//	}
package gitrepo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Require skips the test when the git binary is not in PATH.
func Require(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// Run executes git with the given arguments in dir and returns trimmed
// combined output. The test fails on a non-zero exit.
func Run(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\nOutput: %s", args, err, output)
	}
	return strings.TrimSpace(string(output))
}

// Configure sets the test identity and disables signing and rebase pulls
// so commits work in a clean environment.
func Configure(t testing.TB, dir string) {
	t.Helper()
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "user.name", "Test User")
	Run(t, dir, "config", "commit.gpgsign", "false")
	Run(t, dir, "config", "pull.rebase", "false")
}

// Init creates dir if needed and turns it into a configured repository.
func Init(t testing.TB, dir string) {
	t.Helper()
	Require(t)
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("creating %s: %v", dir, err)
	}
	Run(t, dir, "init")
	Configure(t, dir)
}

// RemotePair creates a bare origin plus two clones that both track it. The
// first clone seeds the origin with an initial commit, so pulls and pushes
// work immediately in either clone.
func RemotePair(t testing.TB) (cloneA, cloneB string) {
	t.Helper()
	Require(t)

	root := t.TempDir()
	bare := filepath.Join(root, "origin.git")
	if err := os.MkdirAll(bare, 0750); err != nil {
		t.Fatal(err)
	}
	Run(t, bare, "init", "--bare")

	cloneA = filepath.Join(root, "clone-a")
	Run(t, root, "clone", bare, cloneA)
	Configure(t, cloneA)
	seed := filepath.Join(cloneA, ".gitkeep")
	if err := os.WriteFile(seed, nil, 0644); err != nil {
		t.Fatal(err)
	}
	Run(t, cloneA, "add", ".")
	Run(t, cloneA, "commit", "-m", "initial")
	Run(t, cloneA, "push", "-u", "origin", "HEAD")

	cloneB = filepath.Join(root, "clone-b")
	Run(t, root, "clone", bare, cloneB)
	Configure(t, cloneB)
	return cloneA, cloneB
}
