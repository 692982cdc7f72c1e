package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sender value for assistant-authored messages. Anything else is a user id.
const SenderBot = "bot"

// Thread is a personal or project-scoped conversation.
type Thread struct {
	ID        string
	Scope     string // "personal" or "project"
	ProjectID string // set when Scope == "project"
	Title     string
	CreatedAt int64
}

// Message is a single chat message. Ordinal is store-assigned and strictly
// increasing per thread; it realizes the arrival-order guarantee.
type Message struct {
	ID         string
	ThreadID   string
	Ordinal    int64
	Sender     string
	SenderName string
	Text       string
	CreatedAt  int64
}

// CreateThread creates a new conversation thread.
func (s *Store) CreateThread(th *Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if th.ID == "" {
		th.ID = uuid.NewString()
	}
	if th.Scope == "" {
		th.Scope = "personal"
	}
	if th.CreatedAt == 0 {
		th.CreatedAt = time.Now().UnixMilli()
	}

	query := `
	INSERT INTO threads (id, scope, project_id, title, created_at)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		th.ID, th.Scope,
		sql.NullString{String: th.ProjectID, Valid: th.ProjectID != ""},
		th.Title, th.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

// GetThread retrieves a thread by ID. Returns nil if not found.
func (s *Store) GetThread(id string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	th := &Thread{}
	var projectID sql.NullString

	query := `SELECT id, scope, project_id, title, created_at FROM threads WHERE id = ?`
	err := s.db.QueryRow(query, id).Scan(&th.ID, &th.Scope, &projectID, &th.Title, &th.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	if projectID.Valid {
		th.ProjectID = projectID.String
	}
	return th, nil
}

// AppendMessage appends a message to a thread, assigning the next ordinal.
func (s *Store) AppendMessage(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRow(
		`SELECT COALESCE(MAX(ordinal), 0) + 1 FROM messages WHERE thread_id = ?`,
		m.ThreadID,
	).Scan(&m.Ordinal)
	if err != nil {
		return fmt.Errorf("failed to assign ordinal: %w", err)
	}

	_, err = tx.Exec(`
	INSERT INTO messages (id, thread_id, ordinal, sender, sender_name, text, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ThreadID, m.Ordinal, m.Sender, m.SenderName, m.Text, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return tx.Commit()
}

// Messages returns all messages of a thread in arrival order.
func (s *Store) Messages(threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, thread_id, ordinal, sender, sender_name, text, created_at
	FROM messages WHERE thread_id = ? ORDER BY ordinal ASC
	`
	rows, err := s.db.Query(query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Ordinal, &m.Sender, &m.SenderName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
