// Package httpapi is the HTTP gateway the mobile client talks to. It runs
// the conversation pipeline behind a small set of JSON routes.
package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tasklyhq/assistant/internal/parse"
)

// ProblemDetail is an RFC 7807 problem response body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// CreateThreadRequest opens a new conversation thread.
type CreateThreadRequest struct {
	Scope     string `json:"scope"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title,omitempty"`
}

// ThreadResponse describes a thread.
type ThreadResponse struct {
	ID        string `json:"id"`
	Scope     string `json:"scope"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// MessageResponse is one chat message.
type MessageResponse struct {
	ID         string `json:"id"`
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name,omitempty"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"created_at"`
}

// SendMessageRequest carries the user's chat input.
type SendMessageRequest struct {
	Text       string `json:"text"`
	SenderName string `json:"sender_name,omitempty"`
}

// PendingResponse describes the draft currently awaiting confirmation.
type PendingResponse struct {
	Draft *parse.EventDraft `json:"draft,omitempty"`
	Index int               `json:"index"`
	Total int               `json:"total"`
}

// SendMessageResponse is the pipeline's answer to one chat message. Kind is
// one of "text", "events", "task_plan", "unrecognized".
type SendMessageResponse struct {
	Kind     string             `json:"kind"`
	Text     string             `json:"text,omitempty"`
	Events   []parse.EventDraft `json:"events,omitempty"`
	TaskPlan *parse.TaskPlan    `json:"task_plan,omitempty"`
	Pending  *PendingResponse   `json:"pending,omitempty"`
}

// ConfirmRequest confirms the current draft, or, when Plan is set, accepts a
// proposed task plan whose subtasks then queue up for per-item confirmation.
type ConfirmRequest struct {
	Plan *parse.TaskPlan `json:"plan,omitempty"`
}

// OutcomeResponse reports what one confirm or cancel did.
type OutcomeResponse struct {
	Message        string `json:"message"`
	CalendarCalled bool   `json:"calendar_called"`
	CalendarID     string `json:"calendar_id,omitempty"`
	Index          int    `json:"index"`
	Remaining      int    `json:"remaining"`
	Done           bool   `json:"done"`
}
