// Package handlers implements the 8 catalog functions over a minimal chat
// store and a vector index collaborator. Handlers are deterministic and do no
// I/O beyond their collaborators; dispatch owns deadlines and classification.
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/agentgw/internal/storage"
)

var ErrMessageNotFound = errors.New("message not found")

// Message is one chat message.
type Message struct {
	ID        string
	ThreadID  string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

// ChatStore reads the chat schema. It is read-only: message CRUD lives
// outside this service.
type ChatStore struct {
	db *sql.DB
}

func NewChatStore(db *sql.DB) *ChatStore {
	return &ChatStore{db: db}
}

// Messages returns a thread's messages oldest first. An unknown thread reads
// as an empty thread.
func (s *ChatStore) Messages(ctx context.Context, threadID string) ([]Message, error) {
	return s.query(ctx, `
SELECT id, thread_id, sender_id, body, created_at
FROM messages
WHERE thread_id = ?
ORDER BY created_at ASC, id ASC;
`, threadID)
}

// MessagesSince returns a thread's messages at or after the cutoff, oldest
// first.
func (s *ChatStore) MessagesSince(ctx context.Context, threadID string, since time.Time) ([]Message, error) {
	return s.query(ctx, `
SELECT id, thread_id, sender_id, body, created_at
FROM messages
WHERE thread_id = ? AND created_at >= ?
ORDER BY created_at ASC, id ASC;
`, threadID, since.UTC().Format(storage.TimeLayout))
}

// Message fetches one message.
func (s *ChatStore) Message(ctx context.Context, id string) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, thread_id, sender_id, body, created_at
FROM messages
WHERE id = ?;
`, id)
	var (
		m         Message
		createdAt string
	)
	err := row.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		m.CreatedAt = t
	}
	return &m, nil
}

// Search returns messages containing the query text, newest first, limited to
// threads the user is a member of.
func (s *ChatStore) Search(ctx context.Context, userID, query string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.query(ctx, `
SELECT m.id, m.thread_id, m.sender_id, m.body, m.created_at
FROM messages m
JOIN thread_members tm ON tm.thread_id = m.thread_id
WHERE tm.user_id = ? AND m.body LIKE '%' || ? || '%'
ORDER BY m.created_at DESC, m.id DESC
LIMIT ?;
`, userID, query, limit)
}

func (s *ChatStore) query(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			m         Message
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			m.CreatedAt = t
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
