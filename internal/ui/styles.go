// Package ui styles mt's terminal output: an adaptive Ayu palette, task
// status styling, markdown rendering, paging and text truncation.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu palette, adaptive between the light and dark variants.
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// Tree glyphs for hierarchical listings.
const (
	TreeChild  = "⎿ "
	TreeLast   = "└─ "
	TreeIndent = "  "
)

const separatorLight = "──────────────────────────────────────────"

// StatusStyle maps a task status onto its display style.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "open":
		return AccentStyle
	case "in-progress":
		return WarnStyle
	case "blocked":
		return FailStyle
	case "closed":
		return PassStyle
	default:
		return MutedStyle
	}
}

// StatusIcon returns the one-glyph marker for a task status.
func StatusIcon(status string) string {
	switch status {
	case "open":
		return "○"
	case "in-progress":
		return "◐"
	case "blocked":
		return "⊘"
	case "closed":
		return "✓"
	case "deleted":
		return "✗"
	default:
		return "·"
	}
}

// RenderStatus renders the status word in its color.
func RenderStatus(status string) string {
	return StatusStyle(status).Render(status)
}

// RenderStatusIcon renders the status glyph in its color.
func RenderStatusIcon(status string) string {
	return StatusStyle(status).Render(StatusIcon(status))
}

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderHeader renders a section header, uppercased and bold.
func RenderHeader(s string) string {
	return HeaderStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders a muted horizontal rule.
func RenderSeparator() string {
	return MutedStyle.Render(separatorLight)
}
