package util

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for the given duration or until the context is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$[\d,]+(?:k|K)?(?:\s*(?:-|to)\s*\$[\d,]+(?:k|K)?)?`),
	regexp.MustCompile(`(?i)budget.*?\$[\d,]+`),
	regexp.MustCompile(`(?i)retainer.*?\$[\d,]+`),
	regexp.MustCompile(`(?i)[\d,]+k?\s*(?:per|/)\s*month`),
}

// BudgetMention returns the first budget or retainer mention found in the
// text, or an empty string when there is none.
func BudgetMention(text string) string {
	for _, p := range budgetPatterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// RelativeTime formats the given timestamp relative to now, e.g. "2 hours ago".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}

	seconds := int(now.Sub(t).Seconds())
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < 604800:
		return plural(seconds/86400, "day")
	case seconds < 2592000:
		return plural(seconds/604800, "week")
	default:
		return plural(seconds/2592000, "month")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
