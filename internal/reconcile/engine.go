// Package reconcile turns confirmed event drafts into calendar writes and
// user-facing acknowledgements. Drafts wait in a per-thread queue and are
// confirmed or cancelled one at a time; a failed write is reported in chat
// and never blocks the rest of the queue.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tasklyhq/assistant/internal/calendar"
	aerrors "github.com/tasklyhq/assistant/internal/errors"
	"github.com/tasklyhq/assistant/internal/identity"
	"github.com/tasklyhq/assistant/internal/metrics"
	"github.com/tasklyhq/assistant/internal/parse"
	"github.com/tasklyhq/assistant/internal/store"
)

// PrimaryCalendarID is the calendar API's alias for the user's own calendar.
const PrimaryCalendarID = "primary"

// Extended private property keys set on created events.
const (
	propTaskPlanEvent = "taskPlanEvent"
	propAssignee      = "assignee"
)

// CalendarAPI is the slice of the calendar client the engine needs. The
// caller supplies a per-user authenticated instance with each confirm.
type CalendarAPI interface {
	InsertEvent(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
}

// ChatAppender posts acknowledgement messages back into the thread.
type ChatAppender interface {
	AppendMessage(m *store.Message) error
}

// Settings resolves the user's default calendar redirect.
type Settings interface {
	DefaultCalendarID(userID string) (string, error)
}

// TaskRefresher is poked once whenever a confirmation queue drains.
type TaskRefresher interface {
	RefreshTaskList(ctx context.Context, userID string) error
}

// queue is the pending-confirmation state for one thread.
type queue struct {
	drafts []parse.EventDraft
	index  int
}

// Engine drives the per-thread confirmation state machine.
type Engine struct {
	chat      ChatAppender
	projects  identity.ProjectContext
	settings  Settings
	refresher TaskRefresher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	loc       *time.Location

	mu     sync.Mutex
	queues map[string]*queue
}

// New creates an Engine. metrics may be nil; loc nil means time.Local.
func New(chat ChatAppender, projects identity.ProjectContext, settings Settings, refresher TaskRefresher, m *metrics.Metrics, loc *time.Location, logger zerolog.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		chat:      chat,
		projects:  projects,
		settings:  settings,
		refresher: refresher,
		metrics:   m,
		logger:    logger.With().Str("component", "reconcile").Logger(),
		loc:       loc,
		queues:    make(map[string]*queue),
	}
}

// Input carries the per-request context for a confirm or cancel.
type Input struct {
	ThreadID  string
	Scope     string // "personal" or "project"
	ProjectID string // set when Scope is "project"
	User      identity.User
	Calendar  CalendarAPI
}

// Outcome describes what one confirm/cancel did.
type Outcome struct {
	Message        string
	CalendarCalled bool
	CalendarID     string
	Index          int // index of the processed draft
	Remaining      int // drafts still awaiting confirmation
	Done           bool
}

// Begin seeds a fresh confirmation queue for a thread, replacing any
// leftover queue.
func (e *Engine) Begin(threadID string, drafts []parse.EventDraft) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(drafts) == 0 {
		delete(e.queues, threadID)
		return
	}
	e.queues[threadID] = &queue{drafts: drafts}
}

// ConfirmPlan converts a confirmed task plan's subtasks into drafts and
// seeds a fresh queue with them. Plan events re-enter the same per-item
// confirmation flow as regular events.
func (e *Engine) ConfirmPlan(threadID string, plan *parse.TaskPlan) {
	if plan == nil {
		return
	}
	drafts := make([]parse.EventDraft, 0, len(plan.Subtasks))
	for _, st := range plan.Subtasks {
		drafts = append(drafts, parse.EventDraft{
			Title:           st.Title,
			Description:     st.Description,
			Location:        st.Location,
			StartTime:       st.StartTime,
			EndTime:         st.EndTime,
			IsTaskPlanEvent: true,
		})
	}
	e.Begin(threadID, drafts)
}

// Pending returns the draft currently awaiting confirmation.
func (e *Engine) Pending(threadID string) (draft parse.EventDraft, index, total int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, exists := e.queues[threadID]
	if !exists || q.index >= len(q.drafts) {
		return parse.EventDraft{}, 0, 0, false
	}
	return q.drafts[q.index], q.index, len(q.drafts), true
}

// Clear drops a thread's queue without processing, mirroring screen unmount.
func (e *Engine) Clear(threadID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.queues, threadID)
}

// Confirm processes the current draft through the decision table, appends the
// acknowledgement to the thread, and advances the queue. A calendar failure
// is reported, not retried, and still advances.
func (e *Engine) Confirm(ctx context.Context, in Input) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, exists := e.queues[in.ThreadID]
	if !exists || q.index >= len(q.drafts) {
		return Outcome{}, fmt.Errorf("thread %s has no pending confirmation: %w", in.ThreadID, aerrors.ErrNotFound)
	}
	draft := q.drafts[q.index]

	out := e.processConfirm(ctx, in, draft)
	out.Index = q.index

	e.appendAck(in.ThreadID, out.Message)
	e.advance(ctx, in, q, &out)
	return out, nil
}

// Cancel records a cancellation acknowledgement and advances. The calendar
// API is never called.
func (e *Engine) Cancel(ctx context.Context, in Input) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, exists := e.queues[in.ThreadID]
	if !exists || q.index >= len(q.drafts) {
		return Outcome{}, fmt.Errorf("thread %s has no pending confirmation: %w", in.ThreadID, aerrors.ErrNotFound)
	}
	draft := q.drafts[q.index]

	out := Outcome{
		Message: fmt.Sprintf("Okay, I skipped %q.", draft.Title),
		Index:   q.index,
	}
	e.appendAck(in.ThreadID, out.Message)
	e.advance(ctx, in, q, &out)
	return out, nil
}

// advance moves to the next draft or drains the queue. Draining triggers the
// task-list refresh exactly once.
func (e *Engine) advance(ctx context.Context, in Input, q *queue, out *Outcome) {
	q.index++
	if q.index < len(q.drafts) {
		out.Remaining = len(q.drafts) - q.index
		return
	}

	delete(e.queues, in.ThreadID)
	out.Done = true
	if e.refresher != nil {
		if err := e.refresher.RefreshTaskList(ctx, in.User.ID); err != nil {
			e.logger.Warn().Err(err).Str("user_id", in.User.ID).Msg("task list refresh failed")
		}
	}
}

func (e *Engine) appendAck(threadID, text string) {
	err := e.chat.AppendMessage(&store.Message{
		ThreadID: threadID,
		Sender:   store.SenderBot,
		Text:     text,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("thread_id", threadID).Msg("failed to append acknowledgement")
	}
}

// processConfirm applies the assignment decision table to a single draft.
func (e *Engine) processConfirm(ctx context.Context, in Input, draft parse.EventDraft) Outcome {
	assignedToMe := in.User.Matches(draft.Assignee)
	unassigned := draft.Assignee == ""

	sharedCalendarID := ""
	if in.Scope == "project" && e.projects != nil {
		id, err := e.projects.SharedCalendarID(in.ProjectID)
		if err != nil {
			e.logger.Warn().Err(err).Str("project_id", in.ProjectID).Msg("shared calendar lookup failed")
		} else {
			sharedCalendarID = id
		}
	}

	switch {
	case unassigned || assignedToMe:
		if in.Scope == "project" {
			if sharedCalendarID != "" {
				annotate := !unassigned
				return e.writeEvent(ctx, in, draft, sharedCalendarID, "shared", annotate,
					fmt.Sprintf("Added %q to the project calendar.", draft.Title))
			}
			if assignedToMe {
				return e.writeEvent(ctx, in, draft, PrimaryCalendarID, "primary", false,
					fmt.Sprintf("Added %q to your primary calendar.", draft.Title))
			}
			// Unassigned, project thread, no shared calendar: nothing to write to.
			return Outcome{Message: fmt.Sprintf("Noted %q in the project plan.", draft.Title)}
		}
		return e.writeEvent(ctx, in, draft, PrimaryCalendarID, "primary", false,
			fmt.Sprintf("Added %q to your calendar.", draft.Title))

	default: // assigned to someone else
		if in.Scope == "project" && sharedCalendarID != "" {
			return e.writeEvent(ctx, in, draft, sharedCalendarID, "shared", true,
				fmt.Sprintf("Assigned %q to %s on the project calendar.", draft.Title, draft.Assignee))
		}
		// No calendar we can write on the assignee's behalf.
		return Outcome{Message: fmt.Sprintf("Assigned %q to %s.", draft.Title, draft.Assignee)}
	}
}

// writeEvent builds the calendar payload and performs the single write
// attempt. target labels the metric ("primary" or "shared").
func (e *Engine) writeEvent(ctx context.Context, in Input, draft parse.EventDraft, calendarID, target string, annotate bool, successMsg string) Outcome {
	if calendarID == PrimaryCalendarID {
		if id, err := e.settings.DefaultCalendarID(in.User.ID); err != nil {
			e.logger.Warn().Err(err).Str("user_id", in.User.ID).Msg("default calendar lookup failed")
		} else if id != "" {
			calendarID = id
		}
	}

	summaryText := draft.Title
	if annotate && draft.Assignee != "" {
		summaryText = fmt.Sprintf("%s (Assigned: %s)", draft.Title, draft.Assignee)
	}

	private := map[string]string{
		propTaskPlanEvent: fmt.Sprintf("%t", draft.IsTaskPlanEvent),
	}
	if draft.Assignee != "" {
		private[propAssignee] = draft.Assignee
	}

	ev := &calendar.Event{
		Summary:     summaryText,
		Description: draft.Description,
		Location:    draft.Location,
		Start: calendar.EventDateTime{
			DateTime: calendar.NormalizeISO(draft.StartTime, e.loc),
			TimeZone: e.loc.String(),
		},
		End: calendar.EventDateTime{
			DateTime: calendar.NormalizeISO(draft.EndTime, e.loc),
			TimeZone: e.loc.String(),
		},
		ExtendedProperties: &calendar.ExtendedProperties{Private: private},
	}

	_, err := in.Calendar.InsertEvent(ctx, calendarID, ev)
	out := Outcome{CalendarCalled: true, CalendarID: calendarID}

	switch {
	case err == nil:
		out.Message = successMsg
		e.recordWrite(target, "ok")
	case aerrors.IsAuthError(err):
		out.Message = fmt.Sprintf("I couldn't add %q: your calendar authorization has expired. Please reconnect your calendar and try again.", draft.Title)
		e.recordWrite(target, "auth_expired")
		e.logger.Warn().Err(err).Str("calendar_id", calendarID).Msg("calendar write rejected, token expired")
	default:
		out.Message = fmt.Sprintf("I couldn't add %q to the calendar: %v", draft.Title, err)
		e.recordWrite(target, "error")
		e.logger.Error().Err(err).Str("calendar_id", calendarID).Msg("calendar write failed")
	}
	return out
}

func (e *Engine) recordWrite(target, status string) {
	if e.metrics != nil {
		e.metrics.RecordCalendarWrite(target, status)
	}
}
