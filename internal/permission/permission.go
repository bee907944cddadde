// Package permission answers "may this user touch this resource". Checks are
// resource-scoped: thread access means membership, message access means
// membership in the message's thread.
package permission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	ResourceThread  = "thread"
	ResourceMessage = "message"
)

// Checker decides access. Implementations must treat a missing resource the
// same as a denied one so callers cannot probe for existence.
type Checker interface {
	CheckUserAccess(ctx context.Context, userID, resourceID, resourceType string) (bool, error)
}

// SQLChecker answers access questions from the chat schema.
type SQLChecker struct {
	db *sql.DB
}

func NewSQLChecker(db *sql.DB) *SQLChecker {
	return &SQLChecker{db: db}
}

func (c *SQLChecker) CheckUserAccess(ctx context.Context, userID, resourceID, resourceType string) (bool, error) {
	if userID == "" || resourceID == "" {
		return false, nil
	}
	switch resourceType {
	case ResourceThread:
		return c.isThreadMember(ctx, userID, resourceID)
	case ResourceMessage:
		return c.canSeeMessage(ctx, userID, resourceID)
	default:
		return false, fmt.Errorf("unknown resource type %q", resourceType)
	}
}

func (c *SQLChecker) isThreadMember(ctx context.Context, userID, threadID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `
SELECT 1 FROM thread_members WHERE thread_id = ? AND user_id = ?;
`, threadID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check thread membership: %w", err)
	}
	return true, nil
}

func (c *SQLChecker) canSeeMessage(ctx context.Context, userID, messageID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `
SELECT 1
FROM messages m
JOIN thread_members tm ON tm.thread_id = m.thread_id
WHERE m.id = ? AND tm.user_id = ?;
`, messageID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check message access: %w", err)
	}
	return true, nil
}
