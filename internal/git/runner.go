// Package git wraps the system git binary. Every operation shells out per
// call with an explicit working directory; failures carry the command's
// stderr so callers can classify them.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git invokes the git binary. The zero value is usable; commit fields, when
// set, are applied to commits created through CommitPaths.
type Git struct {
	// Author overrides the commit author as "Name <email>" when non-empty.
	Author string
	// NoGPGSign passes --no-gpg-sign so automated commits never hang on a
	// key passphrase prompt.
	NoGPGSign bool
}

// New returns a git adapter.
func New() *Git {
	return &Git{}
}

// GitError is a failed git invocation with its captured output.
type GitError struct {
	Args   []string
	Dir    string
	Stdout string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

func (e *GitError) Unwrap() error { return e.Err }

// run executes git with the given arguments in dir and returns trimmed
// stdout. Non-zero exits return a *GitError.
func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &GitError{Args: args, Dir: dir, Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// outputContains reports whether err is a *GitError whose output contains
// any of the given fragments, case-insensitively. git splits diagnostics
// across stdout and stderr (merge conflicts print on stdout), so both
// streams are searched.
func outputContains(err error, fragments ...string) bool {
	ge, ok := err.(*GitError)
	if !ok {
		return false
	}
	combined := strings.ToLower(ge.Stderr + "\n" + ge.Stdout)
	for _, f := range fragments {
		if strings.Contains(combined, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// IsNotRepo reports whether the error means dir is not a git repository.
func IsNotRepo(err error) bool {
	return outputContains(err, "not a git repository")
}

// IsEmptyRepo reports whether the error means the remote has no commits to
// pull yet.
func IsEmptyRepo(err error) bool {
	return outputContains(err,
		"couldn't find remote ref",
		"does not have any commits yet",
		"no such ref was fetched")
}

// IsNoRemote reports whether the error means no remote or tracking branch is
// configured. The wording varies across git versions.
func IsNoRemote(err error) bool {
	return outputContains(err,
		"no tracking information",
		"no configured push destination",
		"no remote repository specified",
		"no remote repositories specified",
		"'origin' does not appear to be a git repository")
}

// IsMergeConflict reports whether a pull failed on conflicting changes.
func IsMergeConflict(err error) bool {
	return outputContains(err,
		"conflict",
		"automatic merge failed",
		"would be overwritten",
		"need to specify how to reconcile")
}

// IsNetworkError reports whether a remote operation failed to reach the
// server.
func IsNetworkError(err error) bool {
	return outputContains(err,
		"could not resolve host",
		"connection refused",
		"connection timed out",
		"unable to access")
}

// IsNothingToCommit reports whether a commit failed only because the staged
// paths held no changes.
func IsNothingToCommit(err error) bool {
	return outputContains(err, "nothing to commit", "no changes added to commit")
}

// Init creates a new repository in dir.
func (g *Git) Init(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "init")
	return err
}

// IsRepo reports whether dir is inside a git repository.
func (g *Git) IsRepo(ctx context.Context, dir string) bool {
	_, err := g.run(ctx, dir, "rev-parse", "--git-dir")
	return err == nil
}

// HasRemote reports whether the repository has any remote configured.
func (g *Git) HasRemote(ctx context.Context, dir string) bool {
	out, err := g.run(ctx, dir, "remote")
	return err == nil && out != ""
}

// RepoRoot returns the top-level directory of the repository containing dir.
func (g *Git) RepoRoot(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "rev-parse", "--show-toplevel")
}

// RevParseHead returns the commit sha of HEAD.
func (g *Git) RevParseHead(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "rev-parse", "HEAD")
}
