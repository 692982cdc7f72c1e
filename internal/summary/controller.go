// Package summary maintains the rolling conversation summary that bounds
// prompt size. Compaction is triggered by unsummarized message count; the
// most recent messages are always left out of the summary so the model keeps
// seeing the latest exchange verbatim.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tasklyhq/assistant/internal/llm"
	"github.com/tasklyhq/assistant/internal/metrics"
	"github.com/tasklyhq/assistant/internal/store"
)

const (
	// TriggerThreshold is how many unsummarized messages it takes before a
	// compaction runs.
	TriggerThreshold = 20

	// MessagesToKeep is how many trailing messages stay out of the summary.
	MessagesToKeep = 10

	// summaryTemperature keeps the compaction deterministic-ish.
	summaryTemperature = 0.2
)

// Fallback is stored when the summarization call itself fails. Compaction is
// best-effort and must never surface an error into the chat flow.
const Fallback = "Earlier parts of this conversation could not be summarized."

// MessageStore is the slice of the store the controller needs.
type MessageStore interface {
	Messages(threadID string) ([]store.Message, error)
	GetSummary(threadID string) (*store.Summary, error)
	SaveSummary(threadID, text, lastMessageID string) error
}

// Controller decides when history must be compacted and performs it.
type Controller struct {
	store       MessageStore
	provider    llm.Provider
	instruction string
	maxTokens   int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// New creates a Controller. metrics may be nil.
func New(st MessageStore, provider llm.Provider, instruction string, maxTokens int, m *metrics.Metrics, logger zerolog.Logger) *Controller {
	return &Controller{
		store:       st,
		provider:    provider,
		instruction: instruction,
		maxTokens:   maxTokens,
		metrics:     m,
		logger:      logger.With().Str("component", "summary").Logger(),
	}
}

// Refresh runs the trigger rule for one thread. It returns an error only for
// store failures; model failures degrade to the fallback text.
func (c *Controller) Refresh(ctx context.Context, threadID string) error {
	msgs, err := c.store.Messages(threadID)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	sum, err := c.store.GetSummary(threadID)
	if err != nil {
		return fmt.Errorf("loading summary: %w", err)
	}

	if sum == nil {
		return c.createInitial(ctx, threadID, msgs)
	}
	return c.update(ctx, threadID, sum, msgs)
}

func (c *Controller) createInitial(ctx context.Context, threadID string, msgs []store.Message) error {
	if len(msgs) < TriggerThreshold {
		c.record("skipped")
		return nil
	}

	slice := msgs[:len(msgs)-MessagesToKeep]
	text := c.summarize(ctx, "", slice)
	last := slice[len(slice)-1]

	if err := c.store.SaveSummary(threadID, text, last.ID); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	c.record("created")
	c.logger.Debug().Str("thread_id", threadID).Int("covered", len(slice)).Msg("summary created")
	return nil
}

func (c *Controller) update(ctx context.Context, threadID string, sum *store.Summary, msgs []store.Message) error {
	idx := -1
	for i, m := range msgs {
		if m.ID == sum.LastMessageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// The cursor message is gone, likely deleted. Not worth crashing over.
		c.logger.Warn().
			Str("thread_id", threadID).
			Str("cursor", sum.LastMessageID).
			Msg("summary cursor not found in message list, skipping refresh")
		c.record("skipped")
		return nil
	}

	newCount := len(msgs) - (idx + 1)
	if newCount < TriggerThreshold {
		c.record("skipped")
		return nil
	}

	slice := msgs[idx+1 : len(msgs)-MessagesToKeep]
	if len(slice) == 0 {
		c.record("skipped")
		return nil
	}

	text := c.summarize(ctx, sum.Text, slice)
	last := slice[len(slice)-1]

	if err := c.store.SaveSummary(threadID, text, last.ID); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	c.record("updated")
	c.logger.Debug().Str("thread_id", threadID).Int("covered", len(slice)).Msg("summary updated")
	return nil
}

// summarize makes the single-shot compaction call. The previous summary, if
// any, is prepended as a synthetic leading turn so the new summary subsumes
// it. A failed call yields the fixed fallback string.
func (c *Controller) summarize(ctx context.Context, previous string, msgs []store.Message) string {
	var b strings.Builder
	if previous != "" {
		b.WriteString("Summary of the conversation so far: ")
		b.WriteString(previous)
		b.WriteString("\n\n")
	}
	for _, m := range msgs {
		name := m.SenderName
		if m.Sender == store.SenderBot {
			name = "Assistant"
		}
		if name == "" {
			name = m.Sender
		}
		fmt.Fprintf(&b, "%s: %s\n", name, m.Text)
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: c.instruction,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		MaxTokens:    c.maxTokens,
		Temperature:  summaryTemperature,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		c.logger.Warn().Err(err).Msg("summarization call failed, using fallback")
		c.record("fallback")
		return Fallback
	}
	return strings.TrimSpace(resp.Text)
}

func (c *Controller) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordSummaryRun(result)
	}
}
