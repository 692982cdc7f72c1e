package calendar

import (
	"time"
)

// NormalizeISO re-serializes a model-emitted timestamp into RFC 3339 with an
// explicit offset. Timestamps that arrive without one are interpreted in loc.
// The result always contains either "Z" or a numeric offset; an unparseable
// input falls back to the current time in loc so a calendar write still
// carries a valid instant.
func NormalizeISO(s string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for i, layout := range layouts {
		var t time.Time
		var err error
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return time.Now().In(loc).Format(time.RFC3339)
}
