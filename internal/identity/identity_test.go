package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_Matches(t *testing.T) {
	u := User{ID: "u1", Username: "AnaLima", Email: "ana@example.com"}

	assert.True(t, u.Matches("analima"))
	assert.True(t, u.Matches("ANALIMA"))
	assert.True(t, u.Matches("Ana@Example.com"))
	assert.False(t, u.Matches("bob"))
	assert.False(t, u.Matches("bob@example.com"))
	assert.False(t, u.Matches(""))
}

func TestCalendarAuth_Expired(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	live := CalendarAuth{AccessToken: "tok", Expiry: now.Add(time.Hour)}
	assert.False(t, live.Expired(now))

	expired := CalendarAuth{AccessToken: "tok", Expiry: now.Add(-time.Minute)}
	assert.True(t, expired.Expired(now))

	exact := CalendarAuth{AccessToken: "tok", Expiry: now}
	assert.True(t, exact.Expired(now))

	noExpiry := CalendarAuth{AccessToken: "tok"}
	assert.False(t, noExpiry.Expired(now))
}
