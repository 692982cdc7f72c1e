// Package schedule turns the user's task/event list into compact, timezone
// normalized context for model prompts.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// NoItemsSentinel is what the prompt context says when the list is empty.
const NoItemsSentinel = "The user currently has no tasks or events scheduled."

// Item is a single task or event record as read from the task store.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Priority    string `json:"priority"`
	IsTask      bool   `json:"isTask"`
}

// Entry is an Item annotated with local-timezone renderings and relative-day
// flags.
type Entry struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Priority    string `json:"priority"`

	StartISO   string `json:"startISO"`
	EndISO     string `json:"endISO"`
	StartDate  string `json:"startDate"`
	StartClock string `json:"startTime"`
	StartFull  string `json:"startFull"`
	EndDate    string `json:"endDate"`
	EndClock   string `json:"endTime"`
	EndFull    string `json:"endFull"`

	IsToday    bool `json:"isToday"`
	IsTomorrow bool `json:"isTomorrow"`
}

// Context groups the user's schedule into events and tasks.
type Context struct {
	Events []Entry `json:"events"`
	Tasks  []Entry `json:"tasks"`
}

const (
	dateLayout = "Mon, Jan 2 2006"
	timeLayout = "3:04 PM"
	fullLayout = "Mon, Jan 2 2006 3:04 PM MST"
)

// BuildContext converts items into a Context. Relative-day flags are computed
// against now rendered in loc; a nil loc means time.Local. Unparseable
// timestamps keep their raw string and render without local forms.
func BuildContext(items []Item, now time.Time, loc *time.Location) Context {
	if loc == nil {
		loc = time.Local
	}
	today := now.In(loc)

	var ctx Context
	for _, it := range items {
		e := Entry{
			Title:       it.Title,
			Description: it.Description,
			Location:    it.Location,
			Priority:    it.Priority,
			StartISO:    it.StartTime,
			EndISO:      it.EndTime,
		}

		if start, ok := parseISO(it.StartTime, loc); ok {
			local := start.In(loc)
			e.StartDate = local.Format(dateLayout)
			e.StartClock = local.Format(timeLayout)
			e.StartFull = local.Format(fullLayout)
			e.IsToday = sameDay(local, today)
			e.IsTomorrow = sameDay(local, today.AddDate(0, 0, 1))
		}
		if end, ok := parseISO(it.EndTime, loc); ok {
			local := end.In(loc)
			e.EndDate = local.Format(dateLayout)
			e.EndClock = local.Format(timeLayout)
			e.EndFull = local.Format(fullLayout)
		}

		if it.IsTask {
			ctx.Tasks = append(ctx.Tasks, e)
		} else {
			ctx.Events = append(ctx.Events, e)
		}
	}
	return ctx
}

// PromptText renders the context as prompt text. Empty input yields the
// fixed no-items sentinel rather than an empty structure.
func PromptText(ctx Context) string {
	if len(ctx.Events) == 0 && len(ctx.Tasks) == 0 {
		return NoItemsSentinel
	}

	var b strings.Builder
	if len(ctx.Events) > 0 {
		b.WriteString("Scheduled events:\n")
		for _, e := range ctx.Events {
			writeEntry(&b, e)
		}
	}
	if len(ctx.Tasks) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Tasks:\n")
		for _, e := range ctx.Tasks {
			writeEntry(&b, e)
		}
	}
	return b.String()
}

func writeEntry(b *strings.Builder, e Entry) {
	fmt.Fprintf(b, "- %s", e.Title)
	switch {
	case e.IsToday:
		b.WriteString(" (today")
	case e.IsTomorrow:
		b.WriteString(" (tomorrow")
	case e.StartDate != "":
		fmt.Fprintf(b, " (%s", e.StartDate)
	default:
		fmt.Fprintf(b, " (%s", e.StartISO)
	}
	if e.StartClock != "" {
		fmt.Fprintf(b, " %s", e.StartClock)
	}
	if e.EndClock != "" {
		fmt.Fprintf(b, " - %s", e.EndClock)
	}
	b.WriteString(")")
	if e.Location != "" {
		fmt.Fprintf(b, " at %s", e.Location)
	}
	if e.Priority != "" {
		fmt.Fprintf(b, " [priority: %s]", e.Priority)
	}
	if e.Description != "" {
		fmt.Fprintf(b, ": %s", e.Description)
	}
	b.WriteString("\n")
}

// parseISO accepts RFC 3339 as well as offset-less timestamps. Offset-less
// inputs are interpreted in loc, matching how calendar payloads read them.
func parseISO(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
