// Package timeparsing resolves the relative date expressions accepted by
// --since style flags. Parsing is layered: compact durations (+6h, -1d,
// 2w), then natural language ("tomorrow at 9am", "3 days ago"), then
// date-only (2006-01-02), then RFC3339.
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var compactRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// IsCompactDuration reports whether s uses the compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactRe.MatchString(s)
}

// ParseCompactDuration applies a compact duration like +6h, -1d or 2w to
// now. Units are hours, days, weeks, months and years; a missing sign means
// forward. Day and larger units go through AddDate so calendar arithmetic
// (DST, month lengths) follows the standard library.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	m := compactRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("duration amount %q: %w", m[2], err)
	}
	if m[1] == "-" {
		n = -n
	}
	switch m[3] {
	case "h":
		return now.Add(time.Duration(n) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, n), nil
	case "w":
		return now.AddDate(0, 0, n*7), nil
	case "m":
		return now.AddDate(0, n, 0), nil
	default:
		return now.AddDate(n, 0, 0), nil
	}
}

// ParseRelativeTime resolves s against now, trying each layer in order.
// The layers are disjoint enough that the first hit wins: compact
// durations never look like dates, and the natural-language layer only
// accepts a match covering the whole input, so timestamps fall through to
// the absolute layers intact.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	if t, err := ParseNaturalLanguage(s, now); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time expression %q (try +6h, -1d, \"yesterday\", or 2006-01-02)", s)
}
