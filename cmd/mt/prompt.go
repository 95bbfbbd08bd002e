package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

var promptCmd = &cobra.Command{
	Use:     "prompt [category]",
	GroupID: "views",
	Short:   "List categories or show a category's workflow prompt",
	Long: `Without arguments, list the known task categories. With a category,
render its workflow prompt. Project prompts in {tasks-dir}/prompts/
override the built-ins of the same name.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		noPager, _ := cmd.Flags().GetBool("no-pager")

		if len(args) == 0 {
			listPrompts()
			return
		}

		p := taskOps.Prompts.Get(args[0])
		if p == nil {
			FatalErrorWithHint(
				fmt.Sprintf("unknown category %q", args[0]),
				"'mt prompt' lists the known categories")
		}
		if jsonOutput {
			outputJSON(map[string]string{
				"category":       p.Category,
				"description":    p.Description,
				"suggested-type": p.SuggestedType,
				"source":         p.Source,
				"body":           p.Body,
			})
			return
		}
		content := ui.RenderMarkdown(p.Body)
		if err := ui.ToPager(content, ui.PagerOptions{NoPager: noPager}); err != nil {
			FatalError("%v", err)
		}
	},
}

func listPrompts() {
	categories := taskOps.Prompts.Categories()
	if jsonOutput {
		out := make([]map[string]string, 0, len(categories))
		for _, c := range categories {
			p := taskOps.Prompts.Get(c)
			out = append(out, map[string]string{
				"category":       p.Category,
				"description":    p.Description,
				"suggested-type": p.SuggestedType,
				"source":         p.Source,
			})
		}
		outputJSON(out)
		return
	}
	for _, c := range categories {
		p := taskOps.Prompts.Get(c)
		line := ui.RenderAccent(c)
		if p.Description != "" {
			line += "  " + ui.RenderMuted(p.Description)
		}
		fmt.Println(line)
	}
}

func init() {
	promptCmd.Flags().Bool("no-pager", false, "Never pipe output through the pager")
	rootCmd.AddCommand(promptCmd)
}
