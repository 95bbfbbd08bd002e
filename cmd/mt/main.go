package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/config"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

var (
	dirFlag    string
	jsonOutput bool
	quietFlag  bool
	noColor    bool

	settings *config.Settings
	localCfg *config.LocalConfig
	taskOps  *ops.Ops

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

// noConfigCommands run without a resolved tasks directory.
var noConfigCommands = map[string]bool{
	"init":       true,
	"version":    true,
	"help":       true,
	"completion": true,
}

func needsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if noConfigCommands[c.Name()] {
			return false
		}
	}
	return true
}

var rootCmd = &cobra.Command{
	Use:   "mt",
	Short: "mt - Git-backed task queue for coding agents",
	Long: `A task queue stored as plain EDNL files in your repository, shared
between humans and coding agents through git. Agents connect over MCP
(mt serve); humans use the commands below.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("mt version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		configureOutput()

		if !needsConfig(cmd) {
			return
		}

		startDir := dirFlag
		if startDir == "" {
			var err error
			startDir, err = os.Getwd()
			if err != nil {
				FatalError("resolving working directory: %v", err)
			}
		}

		var err error
		settings, err = config.Resolve(startDir)
		if err != nil {
			FatalErrorWithHint(err.Error(), "run 'mt init' to set up a tasks directory")
		}
		localCfg = config.LoadLocalConfigWithEnv(settings.TasksDir)
		configureOutput()

		taskOps, err = ops.New(settings, localCfg)
		if err != nil {
			FatalError("%v", err)
		}
	},
}

// setupSignalContext cancels rootCtx on SIGINT/SIGTERM so in-flight git
// operations unwind instead of dying mid-push.
func setupSignalContext() {
	if rootCtx != nil {
		return
	}
	rootCtx, rootCancel = context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		rootCancel()
	}()
}

func configureOutput() {
	mode := "auto"
	if noColor || os.Getenv("NO_COLOR") != "" {
		mode = "never"
	} else if localCfg != nil && localCfg.Color != "" {
		mode = localCfg.Color
	} else if envColor := os.Getenv("MCP_TASKS_COLOR"); envColor != "" {
		mode = envColor
	}
	ui.Configure(mode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "Start directory for config discovery (default: cwd)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().BoolP("version", "v", false, "Show version")

	rootCmd.AddGroup(&cobra.Group{ID: "tasks", Title: "Working With Tasks:"})
	rootCmd.AddGroup(&cobra.Group{ID: "views", Title: "Views & Queries:"})
	rootCmd.AddGroup(&cobra.Group{ID: "workflow", Title: "Agent Workflow:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Serving:"})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
