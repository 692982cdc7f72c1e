package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT 'personal',
		project_id TEXT,
		title TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		sender TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (thread_id) REFERENCES threads(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, ordinal);

	CREATE TABLE IF NOT EXISTS summaries (
		thread_id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		last_message_id TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (thread_id) REFERENCES threads(id)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		is_task INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migration v1: %w", err)
	}
	return nil
}

func (s *Store) migrateV2() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		shared_calendar_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (project_id, user_id),
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		default_calendar_id TEXT NOT NULL DEFAULT ''
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migration v2: %w", err)
	}
	return nil
}
