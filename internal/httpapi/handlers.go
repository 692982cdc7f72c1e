package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	aerrors "github.com/tasklyhq/assistant/internal/errors"
	"github.com/tasklyhq/assistant/internal/health"
	"github.com/tasklyhq/assistant/internal/identity"
	"github.com/tasklyhq/assistant/internal/metrics"
	"github.com/tasklyhq/assistant/internal/parse"
	"github.com/tasklyhq/assistant/internal/prompts"
	"github.com/tasklyhq/assistant/internal/reconcile"
	"github.com/tasklyhq/assistant/internal/schedule"
	"github.com/tasklyhq/assistant/internal/session"
	"github.com/tasklyhq/assistant/internal/store"
)

// CalendarFactory builds a calendar client bound to one user's token.
type CalendarFactory func(auth identity.CalendarAuth) reconcile.CalendarAPI

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	store     *store.Store
	sessions  *session.Manager
	engine    *reconcile.Engine
	templates prompts.Templates
	calendars CalendarFactory
	checker   *health.Checker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	loc       *time.Location
}

// NewHandlers creates a Handlers instance. loc nil means time.Local.
func NewHandlers(
	st *store.Store,
	sessions *session.Manager,
	engine *reconcile.Engine,
	templates prompts.Templates,
	calendars CalendarFactory,
	checker *health.Checker,
	m *metrics.Metrics,
	loc *time.Location,
	logger zerolog.Logger,
) *Handlers {
	if loc == nil {
		loc = time.Local
	}
	return &Handlers{
		store:     st,
		sessions:  sessions,
		engine:    engine,
		templates: templates,
		calendars: calendars,
		checker:   checker,
		metrics:   m,
		logger:    logger.With().Str("component", "handlers").Logger(),
		loc:       loc,
	}
}

// CreateThread handles POST /v1/threads.
func (h *Handlers) CreateThread(c *fiber.Ctx) error {
	var req CreateThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.Scope == "" {
		req.Scope = session.ScopePersonal
	}
	if req.Scope != session.ScopePersonal && req.Scope != session.ScopeProject {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_scope", "Bad Request",
			"scope must be \"personal\" or \"project\"")
	}
	if req.Scope == session.ScopeProject && req.ProjectID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_project", "Bad Request",
			"project_id is required for project threads")
	}

	th := &store.Thread{
		Scope:     req.Scope,
		ProjectID: req.ProjectID,
		Title:     req.Title,
	}
	if err := h.store.CreateThread(th); err != nil {
		h.logger.Error().Err(err).Msg("failed to create thread")
		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusCreated).JSON(threadResponse(th))
}

// ListMessages handles GET /v1/threads/:id/messages.
func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	th, err := h.loadThread(c)
	if err != nil || th == nil {
		return err
	}

	msgs, err := h.store.Messages(th.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("thread_id", th.ID).Msg("failed to list messages")
		return fiber.ErrInternalServerError
	}

	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{
			ID:         m.ID,
			Sender:     m.Sender,
			SenderName: m.SenderName,
			Text:       m.Text,
			CreatedAt:  m.CreatedAt,
		})
	}
	return c.JSON(out)
}

// SendMessage handles POST /v1/threads/:id/messages. This is the full
// pipeline: run the model, persist the user turn, parse the reply, and
// either persist a conversational answer or stage drafts for confirmation.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if req.Text == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_text", "Bad Request",
			"text is required")
	}

	th, err := h.loadThread(c)
	if err != nil || th == nil {
		return err
	}
	user := currentUser(c)
	if err := h.requireMembership(c, th, user); err != nil {
		return err
	}

	key := session.Key{Scope: th.Scope, ThreadID: th.ID}
	if !h.sessions.IsActive(key) {
		systemPrompt := h.templates.SystemFor(th.Scope, h.scheduleContext(user.ID))
		if err := h.sessions.Start(c.Context(), key, systemPrompt); err != nil {
			if errors.Is(err, aerrors.ErrMissingCredentials) {
				return problemResponse(c, fiber.StatusServiceUnavailable,
					"model_unconfigured", "Service Unavailable",
					"The assistant model is not configured")
			}
			h.logger.Error().Err(err).Str("thread_id", th.ID).Msg("failed to start session")
			return fiber.ErrInternalServerError
		}
	}

	reply, err := h.sessions.Send(c.Context(), key, req.Text)
	if err != nil {
		h.logger.Error().Err(err).Str("thread_id", th.ID).Msg("model call failed")
		return problemResponse(c, fiber.StatusBadGateway,
			"model_error", "Bad Gateway",
			"The assistant failed to respond: "+err.Error())
	}

	// Persist the user turn only after the model call succeeds. A fresh or
	// rehydrated session replays stored history into the transcript, so
	// appending before Start would hand Send the same text twice.
	userMsg := &store.Message{
		ThreadID:   th.ID,
		Sender:     user.ID,
		SenderName: req.SenderName,
		Text:       req.Text,
	}
	if userMsg.SenderName == "" {
		userMsg.SenderName = user.Username
	}
	if err := h.store.AppendMessage(userMsg); err != nil {
		h.logger.Error().Err(err).Str("thread_id", th.ID).Msg("failed to persist user message")
	}

	res := parse.Parse(reply)
	if h.metrics != nil {
		h.metrics.RecordParseOutcome(res.OutcomeLabel())
	}

	switch res.Kind {
	case parse.KindEvents:
		if len(res.Events) == 0 {
			return c.JSON(SendMessageResponse{Kind: "unrecognized"})
		}
		h.engine.Begin(th.ID, res.Events)
		return c.JSON(SendMessageResponse{
			Kind:   "events",
			Events: res.Events,
			Pending: &PendingResponse{
				Draft: &res.Events[0],
				Index: 0,
				Total: len(res.Events),
			},
		})

	case parse.KindTaskPlan:
		return c.JSON(SendMessageResponse{
			Kind:     "task_plan",
			TaskPlan: res.TaskPlan,
		})

	case parse.KindText:
		botMsg := &store.Message{
			ThreadID: th.ID,
			Sender:   store.SenderBot,
			Text:     res.Text,
		}
		if err := h.store.AppendMessage(botMsg); err != nil {
			h.logger.Error().Err(err).Str("thread_id", th.ID).Msg("failed to persist bot message")
		}
		return c.JSON(SendMessageResponse{Kind: "text", Text: res.Text})

	default:
		return c.JSON(SendMessageResponse{Kind: "unrecognized"})
	}
}

// Confirm handles POST /v1/threads/:id/confirm. With a plan body it stages
// the plan's subtasks; otherwise it confirms the current draft.
func (h *Handlers) Confirm(c *fiber.Ctx) error {
	th, err := h.loadThread(c)
	if err != nil || th == nil {
		return err
	}
	user := currentUser(c)
	if err := h.requireMembership(c, th, user); err != nil {
		return err
	}

	var req ConfirmRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_body", "Bad Request",
				"Invalid request body: "+err.Error())
		}
	}

	if req.Plan != nil {
		h.engine.ConfirmPlan(th.ID, req.Plan)
		return c.JSON(h.pendingResponse(th.ID))
	}

	out, err := h.engine.Confirm(c.Context(), reconcile.Input{
		ThreadID:  th.ID,
		Scope:     th.Scope,
		ProjectID: th.ProjectID,
		User:      user,
		Calendar:  h.calendars(calendarAuthFromRequest(c)),
	})
	if err != nil {
		if errors.Is(err, aerrors.ErrNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"no_pending", "Not Found",
				"No draft is awaiting confirmation")
		}
		h.logger.Error().Err(err).Str("thread_id", th.ID).Msg("confirm failed")
		return fiber.ErrInternalServerError
	}
	return c.JSON(outcomeResponse(out))
}

// Cancel handles POST /v1/threads/:id/cancel.
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	th, err := h.loadThread(c)
	if err != nil || th == nil {
		return err
	}
	user := currentUser(c)
	if err := h.requireMembership(c, th, user); err != nil {
		return err
	}

	out, err := h.engine.Cancel(c.Context(), reconcile.Input{
		ThreadID:  th.ID,
		Scope:     th.Scope,
		ProjectID: th.ProjectID,
		User:      user,
	})
	if err != nil {
		if errors.Is(err, aerrors.ErrNotFound) {
			return problemResponse(c, fiber.StatusNotFound,
				"no_pending", "Not Found",
				"No draft is awaiting confirmation")
		}
		h.logger.Error().Err(err).Str("thread_id", th.ID).Msg("cancel failed")
		return fiber.ErrInternalServerError
	}
	return c.JSON(outcomeResponse(out))
}

// Pending handles GET /v1/threads/:id/pending.
func (h *Handlers) Pending(c *fiber.Ctx) error {
	th, err := h.loadThread(c)
	if err != nil || th == nil {
		return err
	}
	return c.JSON(h.pendingResponse(th.ID))
}

// Healthz handles GET /healthz.
func (h *Handlers) Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readyz handles GET /readyz.
func (h *Handlers) Readyz(c *fiber.Ctx) error {
	if h.checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}

	results := h.checker.RunAll(c.Context())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"checks": results,
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}

// loadThread resolves :id. A nil thread with nil error means the 404 has
// already been written.
func (h *Handlers) loadThread(c *fiber.Ctx) (*store.Thread, error) {
	id := c.Params("id")
	th, err := h.store.GetThread(id)
	if err != nil {
		h.logger.Error().Err(err).Str("thread_id", id).Msg("failed to load thread")
		return nil, fiber.ErrInternalServerError
	}
	if th == nil {
		return nil, problemResponse(c, fiber.StatusNotFound,
			"thread_not_found", "Not Found",
			"Thread does not exist")
	}
	return th, nil
}

// requireMembership rejects project-thread access by non-members.
func (h *Handlers) requireMembership(c *fiber.Ctx, th *store.Thread, user identity.User) error {
	if th.Scope != session.ScopeProject {
		return nil
	}
	member, err := h.store.IsProjectMember(th.ProjectID, user.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("project_id", th.ProjectID).Msg("membership check failed")
		return fiber.ErrInternalServerError
	}
	if !member {
		return problemResponse(c, fiber.StatusForbidden,
			"not_a_member", "Forbidden",
			"You are not a member of this project")
	}
	return nil
}

// scheduleContext renders the user's current task list for the system prompt.
func (h *Handlers) scheduleContext(userID string) string {
	tasks, err := h.store.Tasks(userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load tasks for schedule context")
		return schedule.NoItemsSentinel
	}

	items := make([]schedule.Item, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, schedule.Item{
			Title:       t.Title,
			Description: t.Description,
			Location:    t.Location,
			StartTime:   t.StartTime,
			EndTime:     t.EndTime,
			Priority:    t.Priority,
			IsTask:      t.IsTask,
		})
	}
	return schedule.PromptText(schedule.BuildContext(items, time.Now(), h.loc))
}

func (h *Handlers) pendingResponse(threadID string) PendingResponse {
	draft, index, total, ok := h.engine.Pending(threadID)
	if !ok {
		return PendingResponse{}
	}
	return PendingResponse{Draft: &draft, Index: index, Total: total}
}

func threadResponse(th *store.Thread) ThreadResponse {
	return ThreadResponse{
		ID:        th.ID,
		Scope:     th.Scope,
		ProjectID: th.ProjectID,
		Title:     th.Title,
		CreatedAt: th.CreatedAt,
	}
}

func outcomeResponse(out reconcile.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Message:        out.Message,
		CalendarCalled: out.CalendarCalled,
		CalendarID:     out.CalendarID,
		Index:          out.Index,
		Remaining:      out.Remaining,
		Done:           out.Done,
	}
}
