package git

import (
	"fmt"
	"strings"
)

// Slugify lowercases a title, replaces whitespace runs with dashes, drops
// everything outside [a-z0-9-], and collapses consecutive dashes.
func Slugify(title string) string {
	lower := strings.ToLower(title)
	var b strings.Builder
	b.Grow(len(lower))
	lastDash := true // swallow leading dashes
	for _, r := range lower {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '-':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// TitleSlug slugifies the first maxWords words of a title. Zero means all
// words.
func TitleSlug(title string, maxWords int) string {
	words := strings.Fields(title)
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return Slugify(strings.Join(words, " "))
}

// BranchName derives the branch for a task: "{id}-{slug}" with the slug
// capped at maxWords title words.
func BranchName(id int, title string, maxWords int) string {
	slug := TitleSlug(title, maxWords)
	if slug == "" {
		return fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%d-%s", id, slug)
}
