package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project is a shared workspace. SharedCalendarID is empty when the project
// has no calendar of its own.
type Project struct {
	ID               string
	Name             string
	SharedCalendarID string
	CreatedAt        int64
}

// SaveProject inserts or replaces a project.
func (s *Store) SaveProject(p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UnixMilli()
	}

	query := `
	INSERT OR REPLACE INTO projects (id, name, shared_calendar_id, created_at)
	VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, p.ID, p.Name, p.SharedCalendarID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID. Returns nil if not found.
func (s *Store) GetProject(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &Project{}
	query := `SELECT id, name, shared_calendar_id, created_at FROM projects WHERE id = ?`
	err := s.db.QueryRow(query, id).Scan(&p.ID, &p.Name, &p.SharedCalendarID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// SharedCalendarID returns the project's shared calendar id, or "" when the
// project has none or does not exist.
func (s *Store) SharedCalendarID(projectID string) (string, error) {
	p, err := s.GetProject(projectID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", nil
	}
	return p.SharedCalendarID, nil
}

// AddProjectMember adds a user to a project.
func (s *Store) AddProjectMember(projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO project_members (project_id, user_id) VALUES (?, ?)`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add project member: %w", err)
	}
	return nil
}

// IsProjectMember reports whether a user belongs to a project.
func (s *Store) IsProjectMember(projectID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// DefaultCalendarID returns the user's configured default calendar id, or ""
// when the user never configured one.
func (s *Store) DefaultCalendarID(userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRow(
		`SELECT default_calendar_id FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get default calendar: %w", err)
	}
	return id, nil
}

// SetDefaultCalendarID sets the user's default calendar id.
func (s *Store) SetDefaultCalendarID(userID, calendarID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO user_settings (user_id, default_calendar_id) VALUES (?, ?)
	ON CONFLICT(user_id) DO UPDATE SET default_calendar_id = excluded.default_calendar_id
	`
	_, err := s.db.Exec(query, userID, calendarID)
	if err != nil {
		return fmt.Errorf("failed to set default calendar: %w", err)
	}
	return nil
}
