// SQLite conversation storage.
//
// Information Hiding:
// - SQLite connection management hidden behind the interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/relay/model"
)

// SqliteStorage implements ConversationStorage using SQLite. Messages are
// stored as JSON payloads so metadata survives round trips unchanged.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS topics (
			topic_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			payload TEXT NOT NULL,
			FOREIGN KEY (topic_id) REFERENCES topics(topic_id) ON DELETE CASCADE,
			UNIQUE(topic_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_topic
		ON messages(topic_id, message_index);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SqliteStorage) ensureTopic(ctx context.Context, topicID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO topics (topic_id) VALUES (?)",
		topicID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure topic: %w", err)
	}
	return nil
}

// Save replaces the stored message list for a topic.
func (s *SqliteStorage) Save(ctx context.Context, topicID string, messages []model.Message) error {
	if err := s.ensureTopic(ctx, topicID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE topic_id = ?", topicID)
	if err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (topic_id, message_index, payload) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, topicID, i, string(payload)); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE topics SET updated_at = datetime('now') WHERE topic_id = ?",
		topicID)
	if err != nil {
		return fmt.Errorf("failed to update topic timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load returns the stored messages for a topic, empty if unknown.
func (s *SqliteStorage) Load(ctx context.Context, topicID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM messages WHERE topic_id = ? ORDER BY message_index ASC",
		topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// Delete removes a topic and its messages.
func (s *SqliteStorage) Delete(ctx context.Context, topicID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM topics WHERE topic_id = ?",
		topicID)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	// Cascade is not always enabled; clear messages explicitly.
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM messages WHERE topic_id = ?",
		topicID)
	if err != nil {
		return fmt.Errorf("failed to delete topic messages: %w", err)
	}
	return nil
}

// ListTopics returns all topic IDs, most recently updated first.
func (s *SqliteStorage) ListTopics(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT topic_id FROM topics ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	topics := []string{}
	for rows.Next() {
		var topicID string
		if err := rows.Scan(&topicID); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topicID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}
	return topics, nil
}

// Rename sets the display name of a topic. Unknown topics are an error, not
// an implicit create.
func (s *SqliteStorage) Rename(ctx context.Context, topicID, name string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE topics SET name = ?, updated_at = datetime('now') WHERE topic_id = ?",
		name, topicID)
	if err != nil {
		return fmt.Errorf("failed to rename topic: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to rename topic: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unknown topic: %s", topicID)
	}
	return nil
}

// Verify SqliteStorage implements ConversationStorage
var _ ConversationStorage = (*SqliteStorage)(nil)
