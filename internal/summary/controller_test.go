package summary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklyhq/assistant/internal/llm"
	"github.com/tasklyhq/assistant/internal/store"
)

type fakeProvider struct {
	text     string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text, StopReason: "end_turn"}, nil
}

func (f *fakeProvider) ModelID() string { return "fake" }
func (f *fakeProvider) MaxTokens() int  { return 512 }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newController(st MessageStore, p llm.Provider) *Controller {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return New(st, p, "Produce a concise summary.", 512, nil, logger)
}

func seedThread(t *testing.T, s *store.Store, n int) (string, []store.Message) {
	t.Helper()
	th := &store.Thread{}
	require.NoError(t, s.CreateThread(th))
	for i := 0; i < n; i++ {
		m := &store.Message{
			ThreadID:   th.ID,
			Sender:     "user-1",
			SenderName: "Ana",
			Text:       fmt.Sprintf("message %d", i),
		}
		require.NoError(t, s.AppendMessage(m))
	}
	msgs, err := s.Messages(th.ID)
	require.NoError(t, err)
	return th.ID, msgs
}

func TestRefresh_BelowThresholdNoWrite(t *testing.T) {
	s := newTestStore(t)
	p := &fakeProvider{text: "sum"}
	c := newController(s, p)

	threadID, _ := seedThread(t, s, TriggerThreshold-1)
	require.NoError(t, c.Refresh(context.Background(), threadID))

	sum, err := s.GetSummary(threadID)
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.Empty(t, p.requests)
}

func TestRefresh_AtThresholdCreatesSummary(t *testing.T) {
	s := newTestStore(t)
	p := &fakeProvider{text: "the gist of it"}
	c := newController(s, p)

	threadID, msgs := seedThread(t, s, TriggerThreshold)
	require.NoError(t, c.Refresh(context.Background(), threadID))

	sum, err := s.GetSummary(threadID)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "the gist of it", sum.Text)
	// Cursor is the 10th-from-last message: index len-11.
	assert.Equal(t, msgs[len(msgs)-MessagesToKeep-1].ID, sum.LastMessageID)

	// The trailing window stays out of the compaction input.
	require.Len(t, p.requests, 1)
	prompt := p.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "message 0")
	assert.Contains(t, prompt, fmt.Sprintf("message %d", TriggerThreshold-MessagesToKeep-1))
	assert.NotContains(t, prompt, fmt.Sprintf("message %d", TriggerThreshold-MessagesToKeep))
}

func TestRefresh_IdempotentWithoutNewMessages(t *testing.T) {
	s := newTestStore(t)
	p := &fakeProvider{text: "v1"}
	c := newController(s, p)

	threadID, _ := seedThread(t, s, TriggerThreshold)
	require.NoError(t, c.Refresh(context.Background(), threadID))
	first, err := s.GetSummary(threadID)
	require.NoError(t, err)

	p.text = "v2"
	require.NoError(t, c.Refresh(context.Background(), threadID))
	second, err := s.GetSummary(threadID)
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.LastMessageID, second.LastMessageID)
	assert.Len(t, p.requests, 1)
}

func TestRefresh_UpdateSubsumesOldSummary(t *testing.T) {
	s := newTestStore(t)
	p := &fakeProvider{text: "first summary"}
	c := newController(s, p)

	threadID, _ := seedThread(t, s, TriggerThreshold)
	require.NoError(t, c.Refresh(context.Background(), threadID))

	// 25 more messages arrive past the cursor's trailing window.
	for i := 0; i < 25; i++ {
		m := &store.Message{ThreadID: threadID, Sender: "user-1", SenderName: "Ana", Text: fmt.Sprintf("later %d", i)}
		require.NoError(t, s.AppendMessage(m))
	}
	msgs, err := s.Messages(threadID)
	require.NoError(t, err)

	p.text = "second summary"
	require.NoError(t, c.Refresh(context.Background(), threadID))

	sum, err := s.GetSummary(threadID)
	require.NoError(t, err)
	assert.Equal(t, "second summary", sum.Text)
	assert.Equal(t, msgs[len(msgs)-MessagesToKeep-1].ID, sum.LastMessageID)

	// The old summary rides along as a synthetic leading turn.
	require.Len(t, p.requests, 2)
	prompt := p.requests[1].Messages[0].Content
	assert.Contains(t, prompt, "first summary")
	// The 10 most recent messages stay excluded.
	assert.NotContains(t, prompt, "later 24")
	assert.NotContains(t, prompt, fmt.Sprintf("later %d", 25-MessagesToKeep))
}

func TestRefresh_FewNewMessagesNoUpdate(t *testing.T) {
	s := newTestStore(t)
	p := &fakeProvider{text: "v1"}
	c := newController(s, p)

	threadID, _ := seedThread(t, s, TriggerThreshold)
	require.NoError(t, c.Refresh(context.Background(), threadID))

	for i := 0; i < TriggerThreshold-1; i++ {
		m := &store.Message{ThreadID: threadID, Sender: "user-1", Text: fmt.Sprintf("late %d", i)}
		require.NoError(t, s.AppendMessage(m))
	}

	require.NoError(t, c.Refresh(context.Background(), threadID))
	assert.Len(t, p.requests, 1)
}

func TestRefresh_MissingCursorIsSilentlySkipped(t *testing.T) {
	s := newTestStore(t)
	p := &fakeProvider{text: "v1"}
	c := newController(s, p)

	threadID, _ := seedThread(t, s, TriggerThreshold+5)
	require.NoError(t, s.SaveSummary(threadID, "old", "deleted-message-id"))

	require.NoError(t, c.Refresh(context.Background(), threadID))

	sum, err := s.GetSummary(threadID)
	require.NoError(t, err)
	assert.Equal(t, "old", sum.Text)
	assert.Equal(t, "deleted-message-id", sum.LastMessageID)
	assert.Empty(t, p.requests)
}

func TestRefresh_ProviderFailureStoresFallback(t *testing.T) {
	s := newTestStore(t)
	p := &fakeProvider{err: fmt.Errorf("model unavailable")}
	c := newController(s, p)

	threadID, msgs := seedThread(t, s, TriggerThreshold)
	require.NoError(t, c.Refresh(context.Background(), threadID))

	sum, err := s.GetSummary(threadID)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, Fallback, sum.Text)
	assert.Equal(t, msgs[len(msgs)-MessagesToKeep-1].ID, sum.LastMessageID)
}

func TestRefresh_BotMessagesLabeledAssistant(t *testing.T) {
	s := newTestStore(t)
	p := &fakeProvider{text: "sum"}
	c := newController(s, p)

	th := &store.Thread{}
	require.NoError(t, s.CreateThread(th))
	for i := 0; i < TriggerThreshold; i++ {
		sender, name := "user-1", "Ana"
		if i%2 == 1 {
			sender, name = store.SenderBot, ""
		}
		m := &store.Message{ThreadID: th.ID, Sender: sender, SenderName: name, Text: fmt.Sprintf("m%d", i)}
		require.NoError(t, s.AppendMessage(m))
	}

	require.NoError(t, c.Refresh(context.Background(), th.ID))
	require.Len(t, p.requests, 1)
	assert.Contains(t, p.requests[0].Messages[0].Content, "Assistant: m1")
	assert.Contains(t, p.requests[0].Messages[0].Content, "Ana: m0")
}
