package ui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls paging of long command output.
type PagerOptions struct {
	NoPager bool
}

func shouldPage(opts PagerOptions) bool {
	if opts.NoPager || IsAgentMode() {
		return false
	}
	if os.Getenv("MCP_TASKS_NO_PAGER") != "" {
		return false
	}
	return IsTerminal()
}

// pagerCommand prefers MCP_TASKS_PAGER, then PAGER, then less.
func pagerCommand() string {
	if p := os.Getenv("MCP_TASKS_PAGER"); p != "" {
		return p
	}
	if p := os.Getenv("PAGER"); p != "" {
		return p
	}
	return "less"
}

func terminalHeight() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	_, h, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return h
}

// ToPager writes content through the user's pager when it will not fit the
// terminal, and straight to stdout otherwise.
func ToPager(content string, opts PagerOptions) error {
	if !shouldPage(opts) {
		fmt.Print(content)
		return nil
	}
	if h := terminalHeight(); h > 0 && strings.Count(content, "\n")+1 <= h-1 {
		fmt.Print(content)
		return nil
	}

	parts := strings.Fields(pagerCommand())
	if len(parts) == 0 {
		fmt.Print(content)
		return nil
	}
	cmd := exec.Command(parts[0], parts[1:]...) // #nosec G204 - the pager is user-configured
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// -R passes ANSI colors, -F quits on one screen, -X keeps the screen.
	if os.Getenv("LESS") == "" {
		cmd.Env = append(os.Environ(), "LESS=-RFX")
	} else {
		cmd.Env = os.Environ()
	}
	return cmd.Run()
}
