package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is a TTY.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsAgentMode reports whether an automation agent drives this process.
// Agents get plain output: no glamour, no pager.
func IsAgentMode() bool {
	return os.Getenv("MCP_TASKS_AGENT") != ""
}

// ShouldUseColor decides color output from the conventional environment
// variables. NO_COLOR always wins (presence counts, even empty),
// CLICOLOR_FORCE overrides the TTY check, CLICOLOR=0 opts out, otherwise
// color follows the terminal.
func ShouldUseColor() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return IsTerminal()
}

// Configure applies a color mode ("auto", "always", "never") to every
// styling layer in use: lipgloss, fatih/color, and anything else rendering
// through the termenv profile.
func Configure(mode string) {
	enabled := ShouldUseColor()
	switch mode {
	case "always":
		enabled = true
	case "never":
		enabled = false
	}
	if enabled {
		lipgloss.SetColorProfile(termenv.ColorProfile())
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	color.NoColor = !enabled
}
