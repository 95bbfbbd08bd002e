package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/mcp"
	"github.com/steveyegge/mcp-tasks/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "setup",
	Short:   "Serve the task tools over MCP on stdio",
	Long: `Serve the task operations to an MCP client over stdio. Stdout carries
the protocol only; diagnostics go to stderr. This is the command agent
configurations point at:

  {"command": "mt", "args": ["serve"]}`,
	Run: func(cmd *cobra.Command, args []string) {
		if telemetry.Enabled() {
			if err := telemetry.Init(rootCtx, "mcp-tasks", Version); err != nil {
				fmt.Fprintf(os.Stderr, "telemetry init: %v\n", err)
			}
			defer telemetry.Shutdown(context.Background())
		}

		server := mcp.NewServer("mcp-tasks", Version,
			mcp.WithInstructions(mcp.Instructions),
			mcp.WithPrompts(taskOps.Prompts))
		mcp.RegisterTaskTools(server, taskOps)

		g, ctx := errgroup.WithContext(rootCtx)
		g.Go(func() error {
			return server.Serve(os.Stdin, os.Stdout)
		})
		g.Go(func() error {
			// Stops the serve loop on SIGINT/SIGTERM; when the loop ends
			// on its own (stdin closed) ctx unblocks this goroutine too.
			<-ctx.Done()
			server.Stop()
			return nil
		})
		if err := g.Wait(); err != nil && err != context.Canceled {
			FatalError("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
