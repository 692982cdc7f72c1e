// Package prompts holds the system instructions sent to the model.
// Defaults are compiled in; a YAML file can override any of them.
package prompts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Templates are the model-facing instruction texts.
type Templates struct {
	// PersonalSystem is the system prompt for personal threads.
	PersonalSystem string `yaml:"personal_system"`

	// ProjectSystem is the system prompt for project threads.
	ProjectSystem string `yaml:"project_system"`

	// Summarizer is the dedicated instruction for the summarization call.
	Summarizer string `yaml:"summarizer"`
}

const defaultPersonalSystem = `You are a scheduling assistant inside a personal to-do and calendar app.
Help the user plan their day, create events, and break big goals into steps.

When the user asks to schedule something, reply with ONLY a JSON object:
{"events": [{"title", "description", "location", "startTime", "endTime"}]}
with ISO 8601 timestamps including a timezone offset.

When the user asks for a multi-step plan, reply with ONLY a JSON object:
{"title", "description", "taskPlan": [{"title", "description", "startTime", "endTime"}]}

For anything else, reply in plain conversational text. Never mix JSON and prose.`

const defaultProjectSystem = `You are a scheduling assistant inside a shared project chat.
Several people read this conversation; events may be assigned to any member.

When someone asks to schedule something, reply with ONLY a JSON object:
{"events": [{"title", "description", "location", "startTime", "endTime", "assignee"}]}
with ISO 8601 timestamps including a timezone offset. Set "assignee" to the
member the event is for, or omit it when unassigned.

When someone asks for a multi-step plan, reply with ONLY a JSON object:
{"title", "description", "taskPlan": [{"title", "description", "startTime", "endTime"}]}

For anything else, reply in plain conversational text. Never mix JSON and prose.`

const defaultSummarizer = `Produce a concise summary of the following conversation between a user and
their scheduling assistant. Keep every commitment, scheduled event, deadline,
and open question. Write plain prose, no JSON, at most a few short paragraphs.`

// Defaults returns the compiled-in templates.
func Defaults() Templates {
	return Templates{
		PersonalSystem: defaultPersonalSystem,
		ProjectSystem:  defaultProjectSystem,
		Summarizer:     defaultSummarizer,
	}
}

// Load returns the defaults with any fields present in the YAML file at path
// overriding them. An empty path returns the defaults unchanged.
func Load(path string) (Templates, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("reading prompts file: %w", err)
	}

	var overrides Templates
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return t, fmt.Errorf("parsing prompts file: %w", err)
	}

	if overrides.PersonalSystem != "" {
		t.PersonalSystem = overrides.PersonalSystem
	}
	if overrides.ProjectSystem != "" {
		t.ProjectSystem = overrides.ProjectSystem
	}
	if overrides.Summarizer != "" {
		t.Summarizer = overrides.Summarizer
	}
	return t, nil
}

// SystemFor returns the system prompt for a thread scope, with the user's
// schedule context appended when present.
func (t Templates) SystemFor(scope, scheduleContext string) string {
	base := t.PersonalSystem
	if scope == "project" {
		base = t.ProjectSystem
	}
	if scheduleContext == "" {
		return base
	}
	return base + "\n\nCurrent schedule:\n" + scheduleContext
}
