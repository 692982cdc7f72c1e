package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Summary is the running conversation summary for a thread. LastMessageID is
// the summarization cursor: the id of the last message the summary covers.
type Summary struct {
	ThreadID      string
	Text          string
	LastMessageID string
	UpdatedAt     int64
}

// GetSummary retrieves the summary for a thread. Returns nil if absent.
func (s *Store) GetSummary(threadID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &Summary{}
	query := `SELECT thread_id, text, last_message_id, updated_at FROM summaries WHERE thread_id = ?`
	err := s.db.QueryRow(query, threadID).Scan(&sum.ThreadID, &sum.Text, &sum.LastMessageID, &sum.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return sum, nil
}

// SaveSummary upserts the thread's summary. One row per thread, always.
func (s *Store) SaveSummary(threadID, text, lastMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO summaries (thread_id, text, last_message_id, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(thread_id) DO UPDATE SET
		text = excluded.text,
		last_message_id = excluded.last_message_id,
		updated_at = excluded.updated_at
	`

	_, err := s.db.Exec(query, threadID, text, lastMessageID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}
