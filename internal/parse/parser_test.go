package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		r := Parse(raw)
		assert.Equal(t, KindUnrecognized, r.Kind)
		assert.Empty(t, r.Text)
		assert.Nil(t, r.Events)
		assert.Nil(t, r.TaskPlan)
	}
}

func TestParse_FencedEvents(t *testing.T) {
	raw := "Here you go:\n```json\n{\"events\":[{\"title\":\"Dentist\",\"startTime\":\"2026-09-02T10:00:00Z\",\"endTime\":\"2026-09-02T11:00:00Z\"}]}\n```"
	r := Parse(raw)
	require.Equal(t, KindEvents, r.Kind)
	require.Len(t, r.Events, 1)
	assert.Equal(t, "Dentist", r.Events[0].Title)
	assert.Empty(t, r.Text)
	assert.Nil(t, r.TaskPlan)
}

func TestParse_FenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"events\":[{\"title\":\"Gym\"}]}\n```"
	r := Parse(raw)
	require.Equal(t, KindEvents, r.Kind)
	assert.Equal(t, "Gym", r.Events[0].Title)
}

func TestParse_UnfencedObject(t *testing.T) {
	raw := `{"events":[{"title":"A"},{"title":"B","assignee":"bob@example.com"}]}`
	r := Parse(raw)
	require.Equal(t, KindEvents, r.Kind)
	require.Len(t, r.Events, 2)
	assert.Equal(t, "bob@example.com", r.Events[1].Assignee)
}

func TestParse_TaskPlan(t *testing.T) {
	raw := `{"title":"Launch prep","description":"Everything before Friday","taskPlan":[{"title":"Draft announcement"},{"title":"Book venue","startTime":"2026-09-03T09:00:00Z"}]}`
	r := Parse(raw)
	require.Equal(t, KindTaskPlan, r.Kind)
	require.NotNil(t, r.TaskPlan)
	assert.Equal(t, "Launch prep", r.TaskPlan.Title)
	require.Len(t, r.TaskPlan.Subtasks, 2)
	assert.Equal(t, "Book venue", r.TaskPlan.Subtasks[1].Title)
	assert.Nil(t, r.Events)
}

func TestParse_BareArrayIsEvents(t *testing.T) {
	// Back-compat with an older response shape.
	raw := `[{"title":"Old style","startTime":"2026-09-02T10:00:00Z","endTime":"2026-09-02T11:00:00Z"}]`
	r := Parse(raw)
	require.Equal(t, KindEvents, r.Kind)
	require.Len(t, r.Events, 1)
	assert.Equal(t, "Old style", r.Events[0].Title)
}

func TestParse_MalformedJSONReturnsApology(t *testing.T) {
	for _, raw := range []string{
		`{"events": [{"title": "broken"`,
		"```json\n{not json}\n```",
		`[{"title": }]`,
	} {
		r := Parse(raw)
		require.Equal(t, KindText, r.Kind, "input: %s", raw)
		assert.Equal(t, ApologyText, r.Text)
		assert.Nil(t, r.Events)
		assert.Nil(t, r.TaskPlan)
	}
}

func TestParse_UnrecognizedObjectShape(t *testing.T) {
	r := Parse(`{"answer": 42}`)
	require.Equal(t, KindText, r.Kind)
	assert.Equal(t, UnrecognizedStructureText, r.Text)
}

func TestParse_PlainProse(t *testing.T) {
	r := Parse("Sure, your Tuesday is wide open after 2 PM.")
	require.Equal(t, KindText, r.Kind)
	assert.Equal(t, "Sure, your Tuesday is wide open after 2 PM.", r.Text)
	assert.Nil(t, r.Events)
	assert.Nil(t, r.TaskPlan)
}

func TestParse_LegacyMarkerStripped(t *testing.T) {
	r := Parse("[BOT]: Your next meeting is at 3 PM.")
	require.Equal(t, KindText, r.Kind)
	assert.Equal(t, "Your next meeting is at 3 PM.", r.Text)

	r = Parse("[assistant] Done!")
	require.Equal(t, KindText, r.Kind)
	assert.Equal(t, "Done!", r.Text)
}

func TestParse_MarkerOnlyBecomesUnrecognized(t *testing.T) {
	r := Parse("[BOT]:")
	assert.Equal(t, KindUnrecognized, r.Kind)
}

func TestParse_FencedNonJSONFallsBackToProse(t *testing.T) {
	raw := "Try this command:\n```\nls -la\n```\nand tell me what you see."
	r := Parse(raw)
	require.Equal(t, KindText, r.Kind)
	assert.Contains(t, r.Text, "Try this command:")
	assert.Contains(t, r.Text, "and tell me what you see.")
	assert.NotContains(t, r.Text, "ls -la")
}

func TestParse_EventFieldsCarryThrough(t *testing.T) {
	raw := `{"events":[{"title":"Sync","description":"weekly","location":"Zoom","startTime":"2026-09-02T10:00:00","endTime":"2026-09-02T09:00:00","assignee":"Ana","isTaskPlanEvent":true}]}`
	r := Parse(raw)
	require.Equal(t, KindEvents, r.Kind)
	e := r.Events[0]
	assert.Equal(t, "weekly", e.Description)
	assert.Equal(t, "Zoom", e.Location)
	assert.Equal(t, "Ana", e.Assignee)
	assert.True(t, e.IsTaskPlanEvent)
	// Inverted ranges pass through untouched; reconciliation deals with them.
	assert.Equal(t, "2026-09-02T10:00:00", e.StartTime)
	assert.Equal(t, "2026-09-02T09:00:00", e.EndTime)
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "events", Parse(`{"events":[]}`).OutcomeLabel())
	assert.Equal(t, "task_plan", Parse(`{"taskPlan":[]}`).OutcomeLabel())
	assert.Equal(t, "text", Parse("hello").OutcomeLabel())
	assert.Equal(t, "apology", Parse("{bad").OutcomeLabel())
	assert.Equal(t, "unrecognized", Parse("").OutcomeLabel())
}
