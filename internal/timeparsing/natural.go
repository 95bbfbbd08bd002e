package timeparsing

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	naturalOnce sync.Once
	natural     *when.Parser
)

func naturalParser() *when.Parser {
	naturalOnce.Do(func() {
		natural = when.New(nil)
		natural.Add(en.All...)
		natural.Add(common.All...)
	})
	return natural
}

// ParseNaturalLanguage interprets expressions like "tomorrow", "next monday
// at 2pm" or "3 days ago" relative to now. The match must cover the whole
// input; a partial hit (say the 14:30 inside an RFC3339 timestamp) is
// rejected so callers can fall through to stricter formats.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}
	r, err := naturalParser().Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized time expression: %q", s)
	}
	if r.Index != 0 || strings.TrimSpace(r.Text) != s {
		return time.Time{}, fmt.Errorf("time expression %q only partially understood (matched %q)", s, r.Text)
	}
	return r.Time, nil
}
