// Package calendar wraps the external calendar REST API.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	aerrors "github.com/tasklyhq/assistant/internal/errors"
	"github.com/tasklyhq/assistant/internal/identity"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authenticator applies authentication to requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// TokenAuth authenticates with a bearer token and refuses to issue requests
// on an expired token, so expiry surfaces as an auth error before the wire.
type TokenAuth struct {
	Auth identity.CalendarAuth
	Now  func() time.Time
}

func (t *TokenAuth) Apply(req *http.Request) error {
	now := time.Now()
	if t.Now != nil {
		now = t.Now()
	}
	if t.Auth.AccessToken == "" || t.Auth.Expired(now) {
		return aerrors.ErrAuthExpired
	}
	req.Header.Set("Authorization", "Bearer "+t.Auth.AccessToken)
	return nil
}

// Client wraps the calendar REST API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	auth       Authenticator
	logger     zerolog.Logger
}

// NewClient creates a new calendar API client.
func NewClient(baseURL string, auth Authenticator, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		auth:       auth,
		logger:     logger.With().Str("component", "calendar").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// SetAuth swaps the authenticator (per-user token).
func (c *Client) SetAuth(auth Authenticator) {
	c.auth = auth
}

// EventDateTime is a start or end instant with explicit timezone.
type EventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// ExtendedProperties carries private key/value tags on an event.
type ExtendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
}

// Event is the calendar API event body.
type Event struct {
	ID                 string              `json:"id,omitempty"`
	Summary            string              `json:"summary"`
	Description        string              `json:"description,omitempty"`
	Location           string              `json:"location,omitempty"`
	Start              EventDateTime       `json:"start"`
	End                EventDateTime       `json:"end"`
	ExtendedProperties *ExtendedProperties `json:"extendedProperties,omitempty"`
}

// InsertEvent creates an event on the given calendar.
// 401-class responses come back as an auth error the caller can classify.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, ev *Event) (*Event, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.auth.Apply(req); err != nil {
		return nil, fmt.Errorf("applying auth: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := aerrors.NewAPIError("calendar", resp.StatusCode, string(respBody))
		if resp.StatusCode == 401 {
			return nil, fmt.Errorf("%w: %s", aerrors.ErrAuthExpired, apiErr)
		}
		return nil, apiErr
	}

	var created Event
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug().
		Str("calendar_id", calendarID).
		Str("summary", ev.Summary).
		Msg("event created")
	return &created, nil
}
