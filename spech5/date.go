package spech5

import (
	"strings"
	"time"
)

// Layouts seen in #D lines across SPEC deployments. The ctime form is
// by far the most common.
var dateLayouts = []string{
	"Mon Jan 2 15:04:05 2006",
	"Mon Jan 2 15:04:05 MST 2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// toISO8601 reformats a #D date string to YYYY-MM-DDTHH:MM:SS. An
// unrecognized date is passed through unchanged rather than dropped.
func toISO8601(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02T15:04:05")
		}
	}
	return raw
}
