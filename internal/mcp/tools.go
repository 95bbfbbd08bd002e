package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/mcp-tasks/internal/ops"
)

// Instructions is the workflow summary sent to clients during initialize.
const Instructions = `mcp-tasks tracks the work queue for coding agents.

Typical flow: select-tasks to find work, work-on to prepare the branch or
worktree, update-task to record progress and shared context, complete-task
when done. The queue is git-backed and shared between agents; every mutation
pulls the remote state before it applies.`

// RegisterTaskTools binds the operation surface to the server as MCP tools,
// one tool per operation.
func RegisterTaskTools(s *Server, o *ops.Ops) {
	s.RegisterTool(addTaskTool(), handlerFor(o.AddTask))
	s.RegisterTool(updateTaskTool(), handlerFor(o.UpdateTask))
	s.RegisterTool(selectTasksTool(), handlerFor(o.SelectTasks))
	s.RegisterTool(completeTaskTool(), handlerFor(o.CompleteTask))
	s.RegisterTool(deleteTaskTool(), handlerFor(o.DeleteTask))
	s.RegisterTool(reopenTaskTool(), handlerFor(o.ReopenTask))
	s.RegisterTool(workOnTool(), handlerFor(o.WorkOn))
	s.RegisterTool(executionStateTool(), handlerFor(o.ExecutionState))
}

// handlerFor adapts one operation into a ToolHandler. Operation failures
// become isError results carrying the classified payload; only argument
// decode failures surface as handler errors.
func handlerFor[T any](op func(context.Context, T) (*ops.Response, error)) ToolHandler {
	return func(ctx context.Context, raw json.RawMessage) (*ToolCallResult, error) {
		var args T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		resp, err := op(ctx, args)
		if err != nil {
			return toolResult(ops.ErrorResponse(err)), nil
		}
		return toolResult(resp), nil
	}
}

// toolResult renders an operation response as MCP content: text chunks pass
// through, payload chunks are serialized as JSON text blocks.
func toolResult(resp *ops.Response) *ToolCallResult {
	out := &ToolCallResult{IsError: resp.IsError}
	for _, c := range resp.Content {
		if c.Text != "" {
			out.Content = append(out.Content, TextContent(c.Text))
			continue
		}
		data, err := json.Marshal(c.Data)
		if err != nil {
			out.Content = append(out.Content, TextContent(fmt.Sprintf("unrenderable payload: %v", err)))
			continue
		}
		out.Content = append(out.Content, TextContent(string(data)))
	}
	return out
}

func strProp(desc string) *PropertySchema {
	return &PropertySchema{Type: "string", Description: desc}
}

func intProp(desc string) *PropertySchema {
	return &PropertySchema{Type: "integer", Description: desc}
}

func boolProp(desc string) *PropertySchema {
	return &PropertySchema{Type: "boolean", Description: desc}
}

func objProp(desc string) *PropertySchema {
	return &PropertySchema{Type: "object", Description: desc}
}

func enumProp(desc string, values ...string) *PropertySchema {
	return &PropertySchema{Type: "string", Description: desc, Enum: values}
}

func relationsProp() *PropertySchema {
	return &PropertySchema{
		Type:        "array",
		Description: "links to other tasks",
		Items: &PropertySchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"id":         intProp("relation id, unique within this task"),
				"relates-to": intProp("id of the related task"),
				"as-type":    enumProp("relation kind", "blocked-by", "related", "discovered-during"),
			},
			Required: []string{"id", "relates-to", "as-type"},
		},
	}
}

func sessionEventsProp() *PropertySchema {
	return &PropertySchema{
		Type:        "array",
		Description: "session events to append; timestamps default to now",
		Items: &PropertySchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"event-type": enumProp("event kind", "user-prompt", "compaction", "session-start"),
				"content":    strProp("prompt text, for user-prompt events"),
				"trigger":    strProp("what triggered the event, for compaction events"),
				"session-id": strProp("agent session id, for session-start events"),
				"timestamp":  strProp("RFC3339 UTC timestamp; omit to stamp on write"),
			},
			Required: []string{"event-type"},
		},
	}
}

func addTaskTool() Tool {
	return Tool{
		Name:        ops.OpAddTask,
		Description: "Create a task in the queue. The category selects the workflow prompt and suggests a type.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"category":    strProp("workflow category; prompts/list names the valid ones"),
				"title":       strProp("short imperative summary"),
				"description": strProp("full task description, markdown"),
				"design":      strProp("design notes, markdown"),
				"type":        enumProp("task kind; omitted means the category's suggestion", "task", "bug", "feature", "story", "chore"),
				"parent-id":   intProp("id of the parent story"),
				"prepend":     boolProp("insert at the head of the queue instead of the tail"),
				"relations":   relationsProp(),
				"meta":        objProp("string key/value metadata"),
			},
			Required: []string{"category", "title"},
		},
	}
}

func updateTaskTool() Tool {
	return Tool{
		Name:        ops.OpUpdateTask,
		Description: "Update fields of a task. Shared context and session events append; closing and deleting go through complete-task and delete-task.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"task-id":            intProp("id of the task to update"),
				"title":              strProp("replacement title"),
				"description":        strProp("replacement description, markdown"),
				"design":             strProp("replacement design notes, markdown"),
				"category":           strProp("replacement workflow category"),
				"type":               enumProp("replacement task kind", "task", "bug", "feature", "story", "chore"),
				"status":             enumProp("status change", "open", "in-progress", "blocked"),
				"parent-id":          intProp("replacement parent story id"),
				"meta":               objProp("replacement metadata; replaces the whole map"),
				"relations":          relationsProp(),
				"add-shared-context": &PropertySchema{Type: "array", Description: "context entries to append to the shared log", Items: strProp("one context entry")},
				"add-session-events": sessionEventsProp(),
				"code-reviewed":      strProp("review timestamp, RFC3339 UTC with Z suffix; empty string clears"),
				"pr-num":             intProp("pull request number"),
			},
			Required: []string{"task-id"},
		},
	}
}

func selectTasksTool() Tool {
	return Tool{
		Name:        ops.OpSelectTasks,
		Description: "Query the task queue in order. Filters compose with AND; status defaults to the non-resolved statuses.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"task-id":       intProp("select one task by id"),
				"category":      strProp("filter by workflow category"),
				"parent-id":     intProp("children of this story; adds closed-children counts"),
				"title-pattern": strProp("case-insensitive regular expression; invalid patterns match as substring"),
				"type":          enumProp("filter by task kind", "task", "bug", "feature", "story", "chore"),
				"status":        enumProp("filter by status; \"any\" includes the archive", "open", "in-progress", "blocked", "closed", "deleted", "any"),
				"limit":         intProp("max results; 0 means all"),
				"unique":        boolProp("require exactly one match"),
			},
		},
	}
}

func completeTaskTool() Tool {
	return Tool{
		Name:        ops.OpCompleteTask,
		Description: "Close a task and archive it. Stories require all children closed. Exactly one of task-id or title selects the task.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"task-id":            intProp("id of the task to complete"),
				"title":              strProp("exact title of an active task"),
				"category":           strProp("disambiguates duplicate titles"),
				"completion-comment": strProp("appended to the description on completion"),
			},
		},
	}
}

func deleteTaskTool() Tool {
	return Tool{
		Name:        ops.OpDeleteTask,
		Description: "Mark a task deleted and archive it. Exactly one of task-id or title-pattern selects the task; the pattern must match exactly one active task.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"task-id":       intProp("id of the task to delete"),
				"title-pattern": strProp("case-insensitive pattern over active task titles"),
			},
		},
	}
}

func reopenTaskTool() Tool {
	return Tool{
		Name:        ops.OpReopenTask,
		Description: "Move a closed task back to the live queue with status open. Exactly one of task-id or title selects the task.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"task-id": intProp("id of the closed task"),
				"title":   strProp("exact title of a closed task"),
			},
		},
	}
}

func workOnTool() Tool {
	return Tool{
		Name:        ops.OpWorkOn,
		Description: "Prepare the working environment for a task: derive its branch from the parent story, create or switch the branch or worktree, and record the execution state.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"task-id": intProp("id of the task to work on"),
			},
			Required: []string{"task-id"},
		},
	}
}

func executionStateTool() Tool {
	return Tool{
		Name:        ops.OpExecutionState,
		Description: "Read, write, or clear this directory's execution state, the record of which task and story the session is executing.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"action":   enumProp("what to do with the state", "read", "write", "clear"),
				"task-id":  intProp("task to record, for write"),
				"story-id": intProp("story to record, for write"),
			},
			Required: []string{"action"},
		},
	}
}
