// Package session owns the per-thread model sessions. Sessions are process
// local: history is rehydrated from the message store on start, never from a
// previous process.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	aerrors "github.com/tasklyhq/assistant/internal/errors"
	"github.com/tasklyhq/assistant/internal/llm"
	"github.com/tasklyhq/assistant/internal/metrics"
	"github.com/tasklyhq/assistant/internal/store"
	"github.com/tasklyhq/assistant/internal/summary"
)

// Thread scopes.
const (
	ScopePersonal = "personal"
	ScopeProject  = "project"
)

// Key identifies a conversation session.
type Key struct {
	Scope    string
	ThreadID string
}

// MessageStore is the slice of the store the manager needs.
type MessageStore interface {
	Messages(threadID string) ([]store.Message, error)
	GetSummary(threadID string) (*store.Summary, error)
}

type session struct {
	systemPrompt string
	history      []llm.Message
}

// Manager holds the keyed session map. The map is mutex-guarded because HTTP
// handlers run concurrently; serialized use per key is still the caller's
// responsibility, matching the one-pending-send-per-thread UI contract.
type Manager struct {
	provider   llm.Provider
	store      MessageStore
	summarizer *summary.Controller
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	// refreshTimeout bounds the detached post-send summary refresh.
	refreshTimeout time.Duration

	mu       sync.Mutex
	sessions map[Key]*session
}

// NewManager creates a session manager. provider may be nil when model
// credentials are absent; Start then fails with a configuration error.
// metrics may be nil.
func NewManager(provider llm.Provider, st MessageStore, summarizer *summary.Controller, m *metrics.Metrics, logger zerolog.Logger) *Manager {
	return &Manager{
		provider:       provider,
		store:          st,
		summarizer:     summarizer,
		metrics:        m,
		logger:         logger.With().Str("component", "session").Logger(),
		refreshTimeout: 60 * time.Second,
		sessions:       make(map[Key]*session),
	}
}

// IsActive reports whether a session exists for the key.
func (mgr *Manager) IsActive(key Key) bool {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	_, ok := mgr.sessions[key]
	return ok
}

// Start creates (or recreates) the session for a key. The summarization
// controller runs first so the history handed to the model reflects the
// latest compaction; the stored summary, if any, becomes a synthetic leading
// turn and only messages past its cursor are replayed verbatim.
func (mgr *Manager) Start(ctx context.Context, key Key, systemPrompt string) error {
	if mgr.provider == nil {
		return aerrors.ErrMissingCredentials
	}

	if err := mgr.summarizer.Refresh(ctx, key.ThreadID); err != nil {
		return fmt.Errorf("refreshing summary: %w", err)
	}

	msgs, err := mgr.store.Messages(key.ThreadID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	sum, err := mgr.store.GetSummary(key.ThreadID)
	if err != nil {
		return fmt.Errorf("loading summary: %w", err)
	}

	var history []llm.Message
	cursorSeen := sum == nil
	if sum != nil {
		history = append(history, llm.Message{
			Role:    llm.RoleAssistant,
			Content: "Summary of the conversation so far: " + sum.Text,
		})
	}
	for _, m := range msgs {
		if !cursorSeen {
			if m.ID == sum.LastMessageID {
				cursorSeen = true
			}
			continue
		}
		role := llm.RoleUser
		if m.Sender == store.SenderBot {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Text})
	}

	mgr.mu.Lock()
	_, existed := mgr.sessions[key]
	mgr.sessions[key] = &session{systemPrompt: systemPrompt, history: history}
	count := len(mgr.sessions)
	mgr.mu.Unlock()

	if mgr.metrics != nil {
		mgr.metrics.SessionsActive.Set(float64(count))
	}
	mgr.logger.Debug().
		Str("scope", key.Scope).
		Str("thread_id", key.ThreadID).
		Bool("recreated", existed).
		Int("history", len(history)).
		Msg("session started")
	return nil
}

// Send sends a user turn and returns the model's reply text. After the reply
// arrives, the summary refresh runs as a detached task; its failure is logged
// and never reaches the caller.
func (mgr *Manager) Send(ctx context.Context, key Key, text string) (string, error) {
	mgr.mu.Lock()
	sess, ok := mgr.sessions[key]
	if !ok {
		mgr.mu.Unlock()
		return "", fmt.Errorf("thread %s: %w", key.ThreadID, aerrors.ErrSessionNotFound)
	}
	sess.history = append(sess.history, llm.Message{Role: llm.RoleUser, Content: text})
	req := llm.CompletionRequest{
		SystemPrompt: sess.systemPrompt,
		Messages:     append([]llm.Message(nil), sess.history...),
	}
	mgr.mu.Unlock()

	started := time.Now()
	resp, err := mgr.provider.Complete(ctx, req)
	if mgr.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		mgr.metrics.RecordModelCall("chat", status)
		mgr.metrics.ObserveModelCall("chat", time.Since(started).Seconds())
	}
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}

	mgr.mu.Lock()
	sess.history = append(sess.history, llm.Message{Role: llm.RoleAssistant, Content: resp.Text})
	mgr.mu.Unlock()

	go mgr.backgroundRefresh(key.ThreadID)

	return resp.Text, nil
}

func (mgr *Manager) backgroundRefresh(threadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), mgr.refreshTimeout)
	defer cancel()
	if err := mgr.summarizer.Refresh(ctx, threadID); err != nil {
		mgr.logger.Warn().Err(err).Str("thread_id", threadID).Msg("background summary refresh failed")
	}
}

// Reset drops one session. Persisted messages and summaries are untouched.
func (mgr *Manager) Reset(key Key) {
	mgr.mu.Lock()
	delete(mgr.sessions, key)
	count := len(mgr.sessions)
	mgr.mu.Unlock()

	if mgr.metrics != nil {
		mgr.metrics.SessionsActive.Set(float64(count))
	}
}

// ResetAll drops all sessions.
func (mgr *Manager) ResetAll() {
	mgr.mu.Lock()
	mgr.sessions = make(map[Key]*session)
	mgr.mu.Unlock()

	if mgr.metrics != nil {
		mgr.metrics.SessionsActive.Set(0)
	}
}
