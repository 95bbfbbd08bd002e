// Package config resolves the effective settings for a working directory:
// the project config file found by walking up the directory tree, option
// defaults, and the resolved tasks/main-repo paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/steveyegge/mcp-tasks/internal/ednl"
)

const (
	// ConfigFileName is searched upward from the working directory.
	ConfigFileName = ".mcp-tasks.edn"
	// DefaultTasksDirName is used when the config does not set tasks-dir.
	DefaultTasksDirName = ".mcp-tasks"

	DefaultBranchTitleWords = 4
	DefaultLockTimeout      = 30 * time.Second
	DefaultLockPollInterval = 100 * time.Millisecond
)

// WorktreePrefix selects how derived worktree directory names are prefixed.
type WorktreePrefix string

const (
	PrefixProjectName WorktreePrefix = "project-name"
	PrefixNone        WorktreePrefix = "none"
)

// Settings is the settled configuration for one invocation.
type Settings struct {
	// BaseDir is the canonicalized start directory.
	BaseDir string
	// MainRepoDir is the main repository root; equals BaseDir unless the
	// start directory is a worktree or a *-main/bare sibling layout.
	MainRepoDir string
	// TasksDir is the absolute directory holding tasks.ednl and complete.ednl.
	TasksDir string
	// ConfigPath is the config file that was found, or empty when running
	// on defaults.
	ConfigPath string

	UseGit             bool
	BranchManagement   bool
	WorktreeManagement bool
	WorktreePrefix     WorktreePrefix
	BaseBranch         string
	// BranchTitleWords caps how many title words go into derived branch
	// names. Zero means unlimited.
	BranchTitleWords int
	LockTimeout      time.Duration
	LockPollInterval time.Duration
	// EnableGitSync overrides pull behavior independently of UseGit when
	// non-nil.
	EnableGitSync *bool

	useGitExplicit bool
}

// SyncEnabled reports whether mutations pull from the remote first.
func (s *Settings) SyncEnabled() bool {
	if s.EnableGitSync != nil {
		return *s.EnableGitSync
	}
	return s.UseGit
}

// CommitsEnabled reports whether mutations commit to the tasks repository.
// The sync override gates pulls only.
func (s *Settings) CommitsEnabled() bool {
	return s.UseGit
}

// ProjectName is the basename of the main repository, used as the worktree
// name prefix.
func (s *Settings) ProjectName() string {
	return filepath.Base(s.MainRepoDir)
}

// Resolve builds the settings for startDir (the process working directory
// when empty). It canonicalizes the path, finds the nearest config file in
// the ancestor chain, applies defaults, and resolves the tasks and main-repo
// directories.
func Resolve(startDir string) (*Settings, error) {
	if startDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		startDir = wd
	}
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", startDir, err)
	}
	base, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", abs, err)
	}

	s := &Settings{
		BaseDir:          base,
		WorktreePrefix:   PrefixProjectName,
		BranchTitleWords: DefaultBranchTitleWords,
		LockTimeout:      DefaultLockTimeout,
		LockPollInterval: DefaultLockPollInterval,
	}

	configPath, configDir := findConfigFile(base)
	tasksDirExplicit := false
	if configPath != "" {
		s.ConfigPath = configPath
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", configPath, err)
		}
		opts, err := ednl.ParseMap(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", configPath, err)
		}
		if tasksDirExplicit, err = applyOptions(s, opts); err != nil {
			return nil, fmt.Errorf("%s: %w", configPath, err)
		}
	}

	if s.TasksDir == "" {
		s.TasksDir = DefaultTasksDirName
	}
	if !filepath.IsAbs(s.TasksDir) {
		anchor := configDir
		if anchor == "" {
			anchor = base
		}
		s.TasksDir = filepath.Join(anchor, s.TasksDir)
	}
	s.TasksDir = filepath.Clean(s.TasksDir)
	if tasksDirExplicit {
		if info, err := os.Stat(s.TasksDir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("tasks-dir %s does not exist", s.TasksDir)
		}
	}

	mainRepo, err := resolveMainRepo(base)
	if err != nil {
		return nil, err
	}
	s.MainRepoDir = mainRepo

	tasksRepo := hasGitEntry(s.TasksDir)
	if s.useGitExplicit {
		if s.UseGit && !tasksRepo {
			return nil, fmt.Errorf("use-git? is enabled but %s is not a git repository", s.TasksDir)
		}
	} else {
		s.UseGit = tasksRepo
	}

	if s.WorktreeManagement {
		s.BranchManagement = true
	}
	return s, nil
}

// findConfigFile walks from dir to the filesystem root looking for the
// config file. Returns the file path and its directory, or empty strings.
func findConfigFile(dir string) (path, configDir string) {
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ""
		}
		dir = parent
	}
}

// applyOptions merges a parsed config map into s. Unknown keys are ignored.
// Returns whether tasks-dir was set explicitly.
func applyOptions(s *Settings, opts map[string]interface{}) (bool, error) {
	tasksDirExplicit := false
	for key, value := range opts {
		switch key {
		case "use-git?":
			b, err := ednl.AsBool(value)
			if err != nil {
				return false, fmt.Errorf("use-git?: %w", err)
			}
			s.UseGit = b
			s.useGitExplicit = true
		case "branch-management?":
			b, err := ednl.AsBool(value)
			if err != nil {
				return false, fmt.Errorf("branch-management?: %w", err)
			}
			s.BranchManagement = b
		case "worktree-management?":
			b, err := ednl.AsBool(value)
			if err != nil {
				return false, fmt.Errorf("worktree-management?: %w", err)
			}
			s.WorktreeManagement = b
		case "worktree-prefix":
			name, err := ednl.AsName(value)
			if err != nil {
				return false, fmt.Errorf("worktree-prefix: %w", err)
			}
			switch WorktreePrefix(name) {
			case PrefixProjectName, PrefixNone:
				s.WorktreePrefix = WorktreePrefix(name)
			default:
				return false, fmt.Errorf("worktree-prefix: %q is not project-name or none", name)
			}
		case "base-branch":
			branch, err := ednl.AsString(value)
			if err != nil {
				return false, fmt.Errorf("base-branch: %w", err)
			}
			s.BaseBranch = branch
		case "branch-title-words":
			if value == nil {
				s.BranchTitleWords = 0
				continue
			}
			n, err := ednl.AsInt(value)
			if err != nil {
				return false, fmt.Errorf("branch-title-words: %w", err)
			}
			if n < 1 {
				return false, fmt.Errorf("branch-title-words: must be positive, got %d", n)
			}
			s.BranchTitleWords = n
		case "tasks-dir":
			dir, err := ednl.AsString(value)
			if err != nil {
				return false, fmt.Errorf("tasks-dir: %w", err)
			}
			s.TasksDir = dir
			tasksDirExplicit = true
		case "lock-timeout-ms":
			ms, err := positiveInt(value, "lock-timeout-ms")
			if err != nil {
				return false, err
			}
			s.LockTimeout = time.Duration(ms) * time.Millisecond
		case "lock-poll-interval-ms":
			ms, err := positiveInt(value, "lock-poll-interval-ms")
			if err != nil {
				return false, err
			}
			s.LockPollInterval = time.Duration(ms) * time.Millisecond
		case "enable-git-sync?":
			b, err := ednl.AsBool(value)
			if err != nil {
				return false, fmt.Errorf("enable-git-sync?: %w", err)
			}
			s.EnableGitSync = &b
		}
	}
	return tasksDirExplicit, nil
}

func positiveInt(value interface{}, key string) (int, error) {
	n, err := ednl.AsInt(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, n)
	}
	return n, nil
}

// resolveMainRepo finds the main repository root for dir per the layered
// rules: worktree pointer, local .git directory, *-main or bare sibling
// layout, then dir itself.
func resolveMainRepo(dir string) (string, error) {
	gitEntry := filepath.Join(dir, ".git")
	info, err := os.Stat(gitEntry)
	switch {
	case err == nil && !info.IsDir():
		// A .git file marks a worktree; follow its pointer to the main
		// repository.
		return mainRepoFromPointer(gitEntry)
	case err == nil && info.IsDir():
		return dir, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return dir, nil
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, "-main") && name != "bare" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if gitInfo, err := os.Stat(filepath.Join(candidate, ".git")); err == nil && gitInfo.IsDir() {
			return candidate, nil
		}
	}
	return dir, nil
}

// mainRepoFromPointer parses a worktree's .git file: "gitdir: <path>" where
// path ends with .git/worktrees/<name>. Stripping the two trailing
// components yields the main .git directory, whose parent is the repo root.
func mainRepoFromPointer(gitFile string) (string, error) {
	data, err := os.ReadFile(gitFile)
	if err != nil {
		return "", fmt.Errorf("reading worktree pointer %s: %w", gitFile, err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, "gitdir:") {
		return "", fmt.Errorf("malformed worktree pointer %s: missing gitdir line", gitFile)
	}
	gitdir := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if gitdir == "" {
		return "", fmt.Errorf("malformed worktree pointer %s: empty gitdir", gitFile)
	}
	if !filepath.IsAbs(gitdir) {
		gitdir = filepath.Join(filepath.Dir(gitFile), gitdir)
	}
	gitdir = filepath.Clean(gitdir)

	worktreesDir := filepath.Dir(gitdir)
	if filepath.Base(worktreesDir) != "worktrees" {
		return "", fmt.Errorf("malformed worktree pointer %s: %s is not under worktrees", gitFile, gitdir)
	}
	mainGitDir := filepath.Dir(worktreesDir)
	repo := filepath.Dir(mainGitDir)
	if info, err := os.Stat(filepath.Join(repo, ".git")); err != nil || !info.IsDir() {
		return "", fmt.Errorf("malformed worktree pointer %s: %s has no .git directory", gitFile, repo)
	}
	return repo, nil
}

func hasGitEntry(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
