package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/mcp-tasks/internal/types"
	"github.com/steveyegge/mcp-tasks/internal/ui"
)

// formatTaskLine renders the one-line listing form of a task:
//
//	◐ #12 Fix the login redirect loop  [bugfix · bug]
func formatTaskLine(t *types.Task) string {
	tags := []string{t.Category}
	if t.Type != "" && t.Type != types.TypeTask {
		tags = append(tags, string(t.Type))
	}
	if t.ParentID != nil {
		tags = append(tags, fmt.Sprintf("story %d", *t.ParentID))
	}
	return fmt.Sprintf("%s %s %s  %s",
		ui.RenderStatusIcon(string(t.Status)),
		ui.RenderAccent(fmt.Sprintf("#%d", t.ID)),
		t.Title,
		ui.RenderMuted("["+strings.Join(tags, " · ")+"]"))
}

// renderTaskDetail writes the full record. Markdown prose goes through the
// terminal renderer so agents' structured notes stay readable.
func renderTaskDetail(b *strings.Builder, t *types.Task) {
	fmt.Fprintf(b, "%s %s %s  [%s]\n",
		ui.RenderStatusIcon(string(t.Status)),
		ui.RenderAccent(fmt.Sprintf("#%d", t.ID)),
		t.Title,
		ui.RenderStatus(strings.ToUpper(string(t.Status))))

	line := fmt.Sprintf("Category: %s · Type: %s", t.Category, t.Type)
	if t.ParentID != nil {
		line += fmt.Sprintf(" · Story: %d", *t.ParentID)
	}
	if t.PRNum != nil {
		line += fmt.Sprintf(" · PR: #%d", *t.PRNum)
	}
	if t.CodeReviewed != "" {
		line += fmt.Sprintf(" · Reviewed: %s", t.CodeReviewed)
	}
	fmt.Fprintln(b, line)

	if t.Description != "" {
		fmt.Fprintf(b, "\n%s\n%s\n", ui.RenderHeader("description"), ui.RenderMarkdown(t.Description))
	}
	if t.Design != "" {
		fmt.Fprintf(b, "\n%s\n%s\n", ui.RenderHeader("design"), ui.RenderMarkdown(t.Design))
	}
	if len(t.Relations) > 0 {
		fmt.Fprintf(b, "\n%s\n", ui.RenderHeader("relations"))
		for _, rel := range t.Relations {
			fmt.Fprintf(b, "  %d %s %d\n", rel.ID, rel.AsType, rel.RelatesTo)
		}
	}
	if len(t.Meta) > 0 {
		fmt.Fprintf(b, "\n%s\n", ui.RenderHeader("meta"))
		for _, k := range sortedKeys(t.Meta) {
			fmt.Fprintf(b, "  %s: %s\n", k, t.Meta[k])
		}
	}
	if len(t.SharedContext) > 0 {
		fmt.Fprintf(b, "\n%s\n", ui.RenderHeader("shared context"))
		for _, entry := range t.SharedContext {
			fmt.Fprintf(b, "  • %s\n", entry)
		}
	}
	if len(t.SessionEvents) > 0 {
		fmt.Fprintf(b, "\n%s\n", ui.RenderHeader("session events"))
		for _, ev := range t.SessionEvents {
			fmt.Fprintf(b, "  %s\n", formatEvent(ev))
		}
	}
}

// formatEvent renders one session event as a single line.
func formatEvent(ev types.SessionEvent) string {
	line := fmt.Sprintf("%s %s", ui.RenderMuted(ev.Timestamp), ev.EventType)
	if ev.Trigger != "" {
		line += fmt.Sprintf(" (%s)", ev.Trigger)
	}
	if ev.Content != "" {
		line += ": " + ui.TruncateSimple(ev.Content, 120)
	}
	return line
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
