// Package parse extracts structured intents from raw model responses.
//
// The model is asked to emit JSON for scheduling intents, but nothing
// enforces that. This parser is the actual contract at the model boundary:
// it tolerates markdown fences, a legacy leading marker, and malformed JSON,
// and it always degrades to a user-visible text response instead of failing.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind discriminates the parsed intent.
type Kind int

const (
	// KindUnrecognized means the response was empty or reduced to nothing.
	KindUnrecognized Kind = iota
	// KindText is a plain conversational reply.
	KindText
	// KindEvents is one or more calendar event drafts.
	KindEvents
	// KindTaskPlan is a multi-step plan whose subtasks await confirmation.
	KindTaskPlan
)

// ApologyText is returned when the model emitted something JSON-shaped that
// does not parse. Fixed wording; chat history depends on it being stable.
const ApologyText = "Sorry, I had trouble reading my own scheduling suggestion. Could you rephrase your request?"

// UnrecognizedStructureText is returned for valid JSON in none of the known
// shapes.
const UnrecognizedStructureText = "I put together a response I couldn't turn into events or tasks. Could you try asking again?"

// EventDraft is a parsed-but-unconfirmed calendar event.
// Start/end are ISO 8601 strings as emitted by the model; the parser does not
// validate ordering (start may exceed end), consumers must tolerate that.
type EventDraft struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Location        string `json:"location,omitempty"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	Assignee        string `json:"assignee,omitempty"`
	IsTaskPlanEvent bool   `json:"isTaskPlanEvent,omitempty"`
}

// Subtask is one step of a task plan.
type Subtask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
}

// TaskPlan is a multi-step plan extracted from a model response.
type TaskPlan struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Subtasks    []Subtask `json:"taskPlan"`
}

// Result is the tagged outcome of parsing. Exactly one of Text, Events,
// TaskPlan is populated, selected by Kind.
type Result struct {
	Kind     Kind
	Text     string
	Events   []EventDraft
	TaskPlan *TaskPlan
}

var (
	fenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	markerRe = regexp.MustCompile(`(?i)^\[(?:bot|assistant)\]:?\s*`)
)

// Parse classifies a raw model response. It never returns an error and never
// panics: malformed structured output becomes a fixed apology text.
func Parse(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Kind: KindUnrecognized}
	}

	candidate := trimmed
	fenced := false
	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		candidate = strings.TrimSpace(m[1])
		fenced = true
	} else {
		candidate = strings.TrimSpace(markerRe.ReplaceAllString(candidate, ""))
	}

	if strings.HasPrefix(candidate, "{") || strings.HasPrefix(candidate, "[") {
		return parseStructured(candidate)
	}

	// Plain prose. Report the original text with fences and marker stripped.
	text := trimmed
	if fenced {
		text = strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	}
	text = strings.TrimSpace(markerRe.ReplaceAllString(text, ""))
	if text == "" {
		return Result{Kind: KindUnrecognized}
	}
	return Result{Kind: KindText, Text: text}
}

func parseStructured(candidate string) Result {
	if strings.HasPrefix(candidate, "[") {
		// Bare array: an older response shape that meant an events list.
		var events []EventDraft
		if err := json.Unmarshal([]byte(candidate), &events); err != nil {
			return Result{Kind: KindText, Text: ApologyText}
		}
		return Result{Kind: KindEvents, Events: events}
	}

	var obj struct {
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Events      []json.RawMessage `json:"events"`
		TaskPlan    []json.RawMessage `json:"taskPlan"`
	}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return Result{Kind: KindText, Text: ApologyText}
	}

	switch {
	case obj.Events != nil:
		events := make([]EventDraft, 0, len(obj.Events))
		for _, raw := range obj.Events {
			var e EventDraft
			if err := json.Unmarshal(raw, &e); err != nil {
				return Result{Kind: KindText, Text: ApologyText}
			}
			events = append(events, e)
		}
		return Result{Kind: KindEvents, Events: events}

	case obj.TaskPlan != nil:
		subtasks := make([]Subtask, 0, len(obj.TaskPlan))
		for _, raw := range obj.TaskPlan {
			var st Subtask
			if err := json.Unmarshal(raw, &st); err != nil {
				return Result{Kind: KindText, Text: ApologyText}
			}
			subtasks = append(subtasks, st)
		}
		return Result{Kind: KindTaskPlan, TaskPlan: &TaskPlan{
			Title:       obj.Title,
			Description: obj.Description,
			Subtasks:    subtasks,
		}}

	default:
		return Result{Kind: KindText, Text: UnrecognizedStructureText}
	}
}

// OutcomeLabel names the result kind for metrics.
func (r Result) OutcomeLabel() string {
	switch r.Kind {
	case KindEvents:
		return "events"
	case KindTaskPlan:
		return "task_plan"
	case KindText:
		if r.Text == ApologyText {
			return "apology"
		}
		return "text"
	default:
		return "unrecognized"
	}
}
