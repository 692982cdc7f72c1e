package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is a task or event record on the user's list. StartTime and EndTime
// are ISO 8601 strings as handed to and from the model layer.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Location    string
	StartTime   string
	EndTime     string
	Priority    string
	IsTask      bool
	CreatedAt   int64
	UpdatedAt   int64
}

// SaveTask inserts or replaces a task.
func (s *Store) SaveTask(t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `
	INSERT OR REPLACE INTO tasks (
		id, user_id, title, description, location, start_time, end_time,
		priority, is_task, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		t.ID, t.UserID, t.Title, t.Description, t.Location, t.StartTime, t.EndTime,
		t.Priority, boolToInt(t.IsTask), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Tasks lists a user's tasks ordered by start time.
func (s *Store) Tasks(userID string) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, user_id, title, description, location, start_time, end_time,
	       priority, is_task, created_at, updated_at
	FROM tasks WHERE user_id = ? ORDER BY start_time ASC
	`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var isTask int
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Location,
			&t.StartTime, &t.EndTime, &t.Priority, &isTask, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.IsTask = isTask != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
