// Package identity carries the current user's identity and calendar
// authorization, and resolves project context.
package identity

import (
	"strings"
	"time"
)

// User is the current user as resolved from the request context.
type User struct {
	ID       string
	Username string
	Email    string
}

// Matches reports whether an assignee string refers to this user.
// Comparison is case-insensitive against both username and email.
func (u User) Matches(assignee string) bool {
	if assignee == "" {
		return false
	}
	return strings.EqualFold(assignee, u.Username) || strings.EqualFold(assignee, u.Email)
}

// CalendarAuth is the user's calendar API authorization state.
type CalendarAuth struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Expired reports whether the access token has expired. A zero expiry means
// the token carries no known lifetime and is treated as live.
func (a CalendarAuth) Expired(now time.Time) bool {
	if a.Expiry.IsZero() {
		return false
	}
	return !now.Before(a.Expiry)
}

// ProjectContext resolves a project's shared calendar, if any.
type ProjectContext interface {
	// SharedCalendarID returns the project's shared calendar id, or "" when
	// the project has none.
	SharedCalendarID(projectID string) (string, error)
}
