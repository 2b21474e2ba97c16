package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RichardoC/chatline/internal/models"
	"github.com/mattn/go-sqlite3"
)

// Timestamps are stored as Unix microseconds so ordering is numeric and
// values round-trip exactly.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_recency
    ON conversations(updated_at DESC, created_at DESC, id);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
    ON messages(conversation_id, created_at);`

// Database is the SQLite-backed Store.
type Database struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath and applies
// the schema.
func New(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Save(ctx context.Context, conv *models.Conversation) error {
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO conversations (id, title, created_at, updated_at)
        VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt.UnixMicro(), conv.UpdatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("saving conversation %s: %w", conv.ID, translate(err))
	}
	return nil
}

func (db *Database) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	row := db.db.QueryRowContext(ctx, `
        SELECT id, title, created_at, updated_at
        FROM conversations
        WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding conversation %s: %w", id, err)
	}
	return conv, nil
}

func (db *Database) FindAll(ctx context.Context, offset, limit int) ([]models.Conversation, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, title, created_at, updated_at
        FROM conversations
        ORDER BY updated_at DESC, created_at DESC, id ASC
        LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

func (db *Database) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting conversations: %w", err)
	}
	return n, nil
}

func (db *Database) UpdateTitle(ctx context.Context, id, title string, at time.Time) (*models.Conversation, error) {
	row := db.db.QueryRowContext(ctx, `
        UPDATE conversations SET title = ?, updated_at = ?
        WHERE id = ?
        RETURNING id, title, created_at, updated_at`,
		title, at.UnixMicro(), id)

	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating conversation %s: %w", id, err)
	}
	return conv, nil
}

func (db *Database) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := db.db.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", at.UnixMicro(), id); err != nil {
		return fmt.Errorf("touching conversation %s: %w", id, err)
	}
	return nil
}

// AddMessages inserts the batch inside one transaction.
func (db *Database) AddMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO messages (id, conversation_id, role, content, created_at)
        VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		if _, err := stmt.ExecContext(ctx, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt.UnixMicro()); err != nil {
			return fmt.Errorf("inserting message %s: %w", msg.ID, translate(err))
		}
	}

	return tx.Commit()
}

func (db *Database) FindByConversationID(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at ASC, rowid ASC
        LIMIT ? OFFSET ?`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg       models.Message
			role      string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = models.Role(role)
		msg.CreatedAt = time.UnixMicro(createdAt).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (db *Database) CountByConversationID(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*models.Conversation, error) {
	var (
		conv                 models.Conversation
		createdAt, updatedAt int64
	)
	if err := s.Scan(&conv.ID, &conv.Title, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	conv.CreatedAt = time.UnixMicro(createdAt).UTC()
	conv.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return &conv, nil
}

// translate maps SQLite key violations onto ErrDuplicate.
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return ErrDuplicate
		}
	}
	return err
}
