package ui

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Defaults for long-field display in show output.
const (
	DefaultMaxLines     = 15
	DefaultContextLines = 5
)

// TruncateLines keeps the head and tail of long text with a hidden-line
// marker between them. Text at or under maxLines comes back unchanged.
func TruncateLines(text string, maxLines, contextLines int) string {
	if text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	if contextLines < 1 {
		contextLines = DefaultContextLines
	}
	// Not enough room for head+marker+tail: cut from the end only.
	if maxLines < contextLines*2+3 {
		return strings.Join(lines[:maxLines], "\n") + "\n..."
	}

	hidden := len(lines) - contextLines*2
	var b strings.Builder
	b.WriteString(strings.Join(lines[:contextLines], "\n"))
	b.WriteString("\n")
	b.WriteString(RenderMuted("... [" + strconv.Itoa(hidden) + " lines hidden, use --full] ..."))
	b.WriteString("\n")
	b.WriteString(strings.Join(lines[len(lines)-contextLines:], "\n"))
	return b.String()
}

// TruncateSimple cuts text at maxLen runes with a "..." suffix.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// WrapText wraps at word boundaries to maxWidth columns, preserving
// existing newlines. Words longer than the width stay unbroken.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, maxWidth)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, maxWidth int) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}
	var b strings.Builder
	width := 0
	for _, word := range strings.Fields(line) {
		wlen := utf8.RuneCountInString(word)
		switch {
		case width == 0:
			b.WriteString(word)
			width = wlen
		case width+1+wlen <= maxWidth:
			b.WriteString(" ")
			b.WriteString(word)
			width += 1 + wlen
		default:
			b.WriteString("\n")
			b.WriteString(word)
			width = wlen
		}
	}
	return b.String()
}
