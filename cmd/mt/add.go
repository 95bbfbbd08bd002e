package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/steveyegge/mcp-tasks/internal/ops"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

var addCmd = &cobra.Command{
	Use:     "add <category> [title...]",
	GroupID: "tasks",
	Short:   "Add a task to the queue",
	Long: `Add a task to the active queue. The category must name a known prompt
(see 'mt prompt'); the task type defaults to the category's suggestion.

With --interactive the details are collected through a terminal form and
positional arguments are optional.`,
	Args: cobra.MinimumNArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		design, _ := cmd.Flags().GetString("design")
		taskType, _ := cmd.Flags().GetString("type")
		parentID, _ := cmd.Flags().GetInt("parent")
		prepend, _ := cmd.Flags().GetBool("prepend")
		metaFlags, _ := cmd.Flags().GetStringArray("meta")
		interactive, _ := cmd.Flags().GetBool("interactive")

		opArgs := ops.AddTaskArgs{
			Description: description,
			Design:      design,
			Type:        taskType,
			Prepend:     prepend,
		}
		if len(args) > 0 {
			opArgs.Category = args[0]
		}
		if len(args) > 1 {
			opArgs.Title = strings.Join(args[1:], " ")
		}
		if cmd.Flags().Changed("parent") {
			opArgs.ParentID = &parentID
		}

		meta, err := parseMetaFlags(metaFlags)
		if err != nil {
			FatalError("%v", err)
		}
		opArgs.Meta = meta

		if interactive {
			if err := runAddForm(&opArgs); err != nil {
				if err == huh.ErrUserAborted {
					fmt.Fprintln(os.Stderr, "Task creation cancelled.")
					os.Exit(0)
				}
				FatalError("form: %v", err)
			}
		}

		resp := runOp(func() (*ops.Response, error) {
			return taskOps.AddTask(rootCtx, opArgs)
		})
		if jsonOutput || quietFlag {
			return
		}
		if task, ok := responsePayload(resp).(*types.Task); ok {
			fmt.Println(formatTaskLine(task))
		}
	},
}

// runAddForm collects the task details interactively. Values already set
// from flags or arguments become the form's starting answers.
func runAddForm(opArgs *ops.AddTaskArgs) error {
	categories := taskOps.Prompts.Categories()
	categoryOptions := make([]huh.Option[string], 0, len(categories))
	for _, c := range categories {
		label := c
		if p := taskOps.Prompts.Get(c); p != nil && p.Description != "" {
			label = fmt.Sprintf("%s - %s", c, p.Description)
		}
		categoryOptions = append(categoryOptions, huh.NewOption(label, c))
	}

	typeOptions := []huh.Option[string]{
		huh.NewOption("Category default", ""),
		huh.NewOption("Task", "task"),
		huh.NewOption("Bug", "bug"),
		huh.NewOption("Feature", "feature"),
		huh.NewOption("Story", "story"),
		huh.NewOption("Chore", "chore"),
	}

	var parentInput string
	if opArgs.ParentID != nil {
		parentInput = strconv.Itoa(*opArgs.ParentID)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Category").
				Description("Workflow prompt the task follows").
				Options(categoryOptions...).
				Value(&opArgs.Category),

			huh.NewInput().
				Title("Title").
				Placeholder("e.g., Fix the login redirect loop").
				Value(&opArgs.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title is required")
					}
					return nil
				}),

			huh.NewText().
				Title("Description").
				Description("Context the task lives in (optional)").
				CharLimit(5000).
				Value(&opArgs.Description),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Type").
				Options(typeOptions...).
				Value(&opArgs.Type),

			huh.NewInput().
				Title("Parent story id").
				Description("Makes this a child of a story (optional)").
				Value(&parentInput).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("must be a task id")
					}
					return nil
				}),

			huh.NewConfirm().
				Title("Create this task?").
				Affirmative("Create").
				Negative("Cancel"),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if s := strings.TrimSpace(parentInput); s != "" {
		id, err := strconv.Atoi(s)
		if err == nil {
			opArgs.ParentID = &id
		}
	} else {
		opArgs.ParentID = nil
	}
	return nil
}

// parseMetaFlags turns repeated key=value flags into a metadata map.
func parseMetaFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid meta %q, expected key=value", pair)
		}
		meta[strings.TrimSpace(key)] = value
	}
	return meta, nil
}

func init() {
	addCmd.Flags().StringP("description", "d", "", "Task description")
	addCmd.Flags().String("design", "", "Design note")
	addCmd.Flags().StringP("type", "t", "", "Task type (task, bug, feature, story, chore)")
	addCmd.Flags().IntP("parent", "p", 0, "Parent story id")
	addCmd.Flags().Bool("prepend", false, "Insert at the head of the queue")
	addCmd.Flags().StringArray("meta", nil, "Metadata key=value (repeatable)")
	addCmd.Flags().BoolP("interactive", "i", false, "Collect details through a terminal form")
	rootCmd.AddCommand(addCmd)
}
