// Package display formats sizes and timestamps for API and CLI output.
package display

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

func FileSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// RelativeTime renders t relative to now: "Just now", "5m ago", "3h ago",
// "Yesterday", "4d ago", and "Jan 02" for anything a week or older.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	diff := now.Sub(t)
	if diff < 0 {
		diff = 0
	}
	days := int(diff / (24 * time.Hour))
	switch {
	case days == 0 && diff < time.Hour:
		if m := int(diff / time.Minute); m > 0 {
			return fmt.Sprintf("%dm ago", m)
		}
		return "Just now"
	case days == 0:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("Jan 02")
	}
}
