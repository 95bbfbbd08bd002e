package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/config"
	"github.com/steveyegge/mcp-tasks/internal/git"
	"github.com/steveyegge/mcp-tasks/internal/store"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Initialize a tasks directory in the current project",
	Long: `Initialize a tasks directory and write the project config file.

Creates the tasks directory with empty task files, a prompts/ directory
for category overrides, and a ` + config.ConfigFileName + ` config in the
target directory. On a terminal an interactive wizard asks about git
sync and branch management; pass --no-input to take the defaults.`,
	Run: func(cmd *cobra.Command, args []string) {
		tasksDirName, _ := cmd.Flags().GetString("tasks-dir")
		useGit, _ := cmd.Flags().GetBool("git")
		branches, _ := cmd.Flags().GetBool("branches")
		worktrees, _ := cmd.Flags().GetBool("worktrees")
		baseBranch, _ := cmd.Flags().GetString("base-branch")
		noInput, _ := cmd.Flags().GetBool("no-input")
		force, _ := cmd.Flags().GetBool("force")

		targetDir := dirFlag
		if targetDir == "" {
			var err error
			targetDir, err = os.Getwd()
			if err != nil {
				FatalError("resolving working directory: %v", err)
			}
		}

		cfgPath := filepath.Join(targetDir, config.ConfigFileName)
		if _, err := os.Stat(cfgPath); err == nil && !force {
			FatalErrorWithHint(
				fmt.Sprintf("%s already exists", cfgPath),
				"pass --force to overwrite it")
		}

		opts := initOptions{
			TasksDir:   tasksDirName,
			UseGit:     useGit,
			Branches:   branches,
			Worktrees:  worktrees,
			BaseBranch: baseBranch,
		}
		if !noInput && !jsonOutput && ui.IsTerminal() && !ui.IsAgentMode() {
			if err := runInitWizard(&opts); err != nil {
				if err == huh.ErrUserAborted {
					fmt.Fprintln(os.Stderr, "Init cancelled.")
					os.Exit(0)
				}
				FatalError("wizard: %v", err)
			}
		}
		if opts.Worktrees {
			opts.Branches = true
		}

		tasksDir := opts.TasksDir
		if !filepath.IsAbs(tasksDir) {
			tasksDir = filepath.Join(targetDir, tasksDir)
		}
		if err := scaffoldTasksDir(tasksDir, opts.UseGit); err != nil {
			FatalError("%v", err)
		}
		if err := os.WriteFile(cfgPath, []byte(renderInitConfig(opts)), 0o644); err != nil {
			FatalError("writing %s: %v", cfgPath, err)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"config":    cfgPath,
				"tasks-dir": tasksDir,
				"use-git":   opts.UseGit,
			})
			return
		}
		if !quietFlag {
			fmt.Printf("%s Initialized tasks directory: %s\n", ui.RenderPass("✓"), tasksDir)
			fmt.Printf("  Config: %s\n", cfgPath)
			if opts.UseGit {
				fmt.Printf("  Git sync: enabled\n")
			}
			fmt.Printf("\nNext: 'mt add simple \"First task\"' or hook up an agent with 'mt serve'.\n")
		}
	},
}

type initOptions struct {
	TasksDir   string
	UseGit     bool
	Branches   bool
	Worktrees  bool
	BaseBranch string
}

// runInitWizard fills opts interactively. Flag values become the form's
// starting answers.
func runInitWizard(opts *initOptions) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Tasks directory").
				Description("Where task files live, relative to this directory").
				Value(&opts.TasksDir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("tasks directory is required")
					}
					return nil
				}),

			huh.NewConfirm().
				Title("Sync through git?").
				Description("Commit every mutation and pull before each one").
				Value(&opts.UseGit),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Manage task branches?").
				Description("work-on derives and switches to a branch per task").
				Value(&opts.Branches),

			huh.NewConfirm().
				Title("Manage worktrees?").
				Description("work-on keeps one worktree per task branch (implies branches)").
				Value(&opts.Worktrees),

			huh.NewInput().
				Title("Base branch").
				Description("Branch new task branches start from (empty: auto-detect)").
				Placeholder("main").
				Value(&opts.BaseBranch),
		),
	)
	return form.Run()
}

// scaffoldTasksDir creates the directory, empty task files, and the prompts
// override directory. Existing files are left alone.
func scaffoldTasksDir(tasksDir string, useGit bool) error {
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", tasksDir, err)
	}
	if err := os.MkdirAll(filepath.Join(tasksDir, "prompts"), 0o755); err != nil {
		return fmt.Errorf("creating prompts dir: %w", err)
	}
	for _, name := range []string{store.TasksFileName, store.CompleteFileName} {
		path := filepath.Join(tasksDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	if useGit {
		g := git.New()
		if !g.IsRepo(rootCtx, tasksDir) {
			if err := g.Init(rootCtx, tasksDir); err != nil {
				return fmt.Errorf("initializing git repository: %w", err)
			}
		}
	}
	return nil
}

// renderInitConfig writes the EDN config map. Only options that differ from
// the resolver's defaults are recorded.
func renderInitConfig(opts initOptions) string {
	var b strings.Builder
	b.WriteString("{")
	entries := []string{}
	if opts.TasksDir != "" && opts.TasksDir != config.DefaultTasksDirName {
		entries = append(entries, fmt.Sprintf(":tasks-dir %q", opts.TasksDir))
	}
	if opts.UseGit {
		entries = append(entries, ":use-git? true")
	}
	if opts.Branches {
		entries = append(entries, ":branch-management? true")
	}
	if opts.Worktrees {
		entries = append(entries, ":worktree-management? true")
	}
	if opts.BaseBranch != "" {
		entries = append(entries, fmt.Sprintf(":base-branch %q", opts.BaseBranch))
	}
	b.WriteString(strings.Join(entries, "\n "))
	b.WriteString("}\n")
	return b.String()
}

func init() {
	initCmd.Flags().String("tasks-dir", config.DefaultTasksDirName, "Tasks directory name or path")
	initCmd.Flags().Bool("git", false, "Enable git sync (initializes a repository when needed)")
	initCmd.Flags().Bool("branches", false, "Enable per-task branch management")
	initCmd.Flags().Bool("worktrees", false, "Enable per-task worktree management (implies --branches)")
	initCmd.Flags().String("base-branch", "", "Base branch for new task branches")
	initCmd.Flags().Bool("no-input", false, "Skip the interactive wizard")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
