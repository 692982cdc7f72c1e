package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getMetricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_New(t *testing.T) {
	m := New()
	assert.NotNil(t, m.ModelCallsTotal)
	assert.NotNil(t, m.ModelCallDuration)
	assert.NotNil(t, m.ParseOutcomesTotal)
	assert.NotNil(t, m.SummaryRunsTotal)
	assert.NotNil(t, m.CalendarWritesTotal)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestMetrics_RecordModelCall(t *testing.T) {
	m := New()
	m.RecordModelCall("chat", "ok")
	m.RecordModelCall("chat", "ok")
	m.RecordModelCall("summary", "error")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `assistant_model_calls_total{purpose="chat",status="ok"} 2`)
	assert.Contains(t, body, `assistant_model_calls_total{purpose="summary",status="error"} 1`)
}

func TestMetrics_RecordParseOutcome(t *testing.T) {
	m := New()
	m.RecordParseOutcome("events")
	m.RecordParseOutcome("apology")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `assistant_parse_outcomes_total{outcome="events"} 1`)
	assert.Contains(t, body, `assistant_parse_outcomes_total{outcome="apology"} 1`)
}

func TestMetrics_RecordCalendarWrite(t *testing.T) {
	m := New()
	m.RecordCalendarWrite("shared", "ok")
	m.RecordCalendarWrite("primary", "auth_expired")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `assistant_calendar_writes_total{status="ok",target="shared"} 1`)
	assert.Contains(t, body, `assistant_calendar_writes_total{status="auth_expired",target="primary"} 1`)
}

func TestMetrics_ObserveModelCall(t *testing.T) {
	m := New()
	m.ObserveModelCall("chat", 1.5)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, "assistant_model_call_duration_seconds")
}
