// ABOUTME: SQLite Backend implementation using modernc.org/sqlite.
// ABOUTME: Conversations and messages tables with automatic schema creation.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteBackend implements Backend using a local SQLite database.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteBackend opens (or creates) the database at path. Parent
// directories are created if needed and the schema is applied on open.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	logger := slog.Default().With("component", "sqlite")

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	b := &SQLiteBackend{
		db:     db,
		logger: logger,
	}

	if err := b.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite backend initialized", "path", path)
	return b, nil
}

// createSchema creates the database tables if they don't exist.
func (b *SQLiteBackend) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			agent_id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (agent_id) REFERENCES conversations(agent_id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_agent_id
			ON messages(agent_id);
	`

	_, err := b.db.Exec(schema)
	return err
}

// Load reads every conversation and its messages in insertion order.
func (b *SQLiteBackend) Load(ctx context.Context) (map[string]*Conversation, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT agent_id, started_at, updated_at FROM conversations")
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Conversation)
	for rows.Next() {
		conv := &Conversation{}
		if err := rows.Scan(&conv.AgentID, &conv.StartedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out[conv.AgentID] = conv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	for _, conv := range out {
		if err := b.loadMessages(ctx, conv); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// loadMessages fills conv.Messages ordered by insertion (rowid), not by
// timestamp, so same-millisecond messages keep their append order.
func (b *SQLiteBackend) loadMessages(ctx context.Context, conv *Conversation) error {
	rows, err := b.db.QueryContext(ctx,
		"SELECT id, role, content, created_at FROM messages WHERE agent_id = ? ORDER BY rowid",
		conv.AgentID)
	if err != nil {
		return fmt.Errorf("querying messages for %s: %w", conv.AgentID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return fmt.Errorf("scanning message: %w", err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return rows.Err()
}

// SaveMessage upserts the conversation row and appends the message row in
// one transaction.
func (b *SQLiteBackend) SaveMessage(ctx context.Context, conv *Conversation, msg Message) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (agent_id, started_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET updated_at = excluded.updated_at`,
		conv.AgentID, conv.StartedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, agent_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, conv.AgentID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	return tx.Commit()
}

// DeleteConversation removes a conversation and its messages.
func (b *SQLiteBackend) DeleteConversation(ctx context.Context, agentID string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE agent_id = ?", agentID); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE agent_id = ?", agentID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	return tx.Commit()
}

// DeleteAll removes every conversation and message.
func (b *SQLiteBackend) DeleteAll(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations"); err != nil {
		return fmt.Errorf("deleting conversations: %w", err)
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
