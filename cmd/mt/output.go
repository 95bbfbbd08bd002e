package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/steveyegge/mcp-tasks/internal/ops"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// outputJSONError outputs the structured operation error to stderr and exits
// with code 1.
func outputJSONError(err error) {
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(ops.AsOpError(err).Payload())
	os.Exit(1)
}

// runOp executes one operation and handles the failure path. In JSON mode
// the whole response is printed; otherwise the caller renders the details
// and runOp only prints the summary line and any git degradation warning.
func runOp(op func() (*ops.Response, error)) *ops.Response {
	resp, err := op()
	if err != nil {
		if jsonOutput {
			outputJSONError(err)
		}
		FatalError("%v", err)
	}
	if jsonOutput {
		outputJSON(resp)
		return resp
	}
	if !quietFlag {
		fmt.Println(resp.Message())
	}
	warnGitStatus(resp)
	return resp
}

// responsePayload returns the first structured chunk that is not the git
// status footer.
func responsePayload(resp *ops.Response) any {
	for _, c := range resp.Content {
		if c.Data == nil {
			continue
		}
		if m, ok := c.Data.(map[string]any); ok {
			if _, isGit := m["git-status"]; isGit {
				continue
			}
		}
		return c.Data
	}
	return nil
}

// warnGitStatus surfaces a failed commit after the primary output. The
// mutation itself succeeded; the commit rides along with the next one.
func warnGitStatus(resp *ops.Response) {
	for _, c := range resp.Content {
		m, ok := c.Data.(map[string]any)
		if !ok {
			continue
		}
		if st, _ := m["git-status"].(string); st == "error" {
			WarnError("git: %v", m["git-error"])
		}
	}
}
