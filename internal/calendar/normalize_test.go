package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func TestNormalizeISO_KeepsExplicitOffset(t *testing.T) {
	out := NormalizeISO("2026-09-01T09:00:00+02:00", time.UTC)
	assert.Equal(t, "2026-09-01T09:00:00+02:00", out)
}

func TestNormalizeISO_KeepsZulu(t *testing.T) {
	out := NormalizeISO("2026-09-01T09:00:00Z", berlin(t))
	assert.Equal(t, "2026-09-01T09:00:00Z", out)
}

func TestNormalizeISO_NaiveGetsLocationOffset(t *testing.T) {
	out := NormalizeISO("2026-09-01T09:00:00", berlin(t))
	assert.Equal(t, "2026-09-01T09:00:00+02:00", out)
}

func TestNormalizeISO_DateOnly(t *testing.T) {
	out := NormalizeISO("2026-12-24", berlin(t))
	assert.Equal(t, "2026-12-24T00:00:00+01:00", out)
}

func TestNormalizeISO_MinutePrecision(t *testing.T) {
	out := NormalizeISO("2026-09-01T09:30", time.UTC)
	assert.Equal(t, "2026-09-01T09:30:00Z", out)
}

func TestNormalizeISO_GarbageFallsBackToNow(t *testing.T) {
	before := time.Now().Add(-time.Minute)
	out := NormalizeISO("next tuesday-ish", time.UTC)

	parsed, err := time.Parse(time.RFC3339, out)
	require.NoError(t, err)
	assert.True(t, parsed.After(before))
	assert.True(t, parsed.Before(time.Now().Add(time.Minute)))
}
