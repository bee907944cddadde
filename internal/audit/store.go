package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/agentgw/internal/storage"
)

var ErrEntryNotFound = errors.New("execution log entry not found")

const defaultFindLimit = 100

// Store reads and writes execution_log rows.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one entry. The entry's ID must be unique; an empty ID gets
// a generated one. Returns the ID actually stored.
func (s *Store) Append(ctx context.Context, e *Entry) (string, error) {
	if e.Function == "" {
		return "", fmt.Errorf("function is empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	params, err := json.Marshal(e.Params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO execution_log(
  id, function, params, caller_hash, status, error_details, result_summary, duration_ms, created_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.Function, string(params), e.CallerHash, string(e.Status),
		nullable(e.ErrorDetails), nullable(e.ResultSummary),
		e.Duration.Milliseconds(), e.CreatedAt.UTC().Format(storage.TimeLayout))
	if err != nil {
		return "", fmt.Errorf("append execution log: %w", err)
	}
	return e.ID, nil
}

// GetByID fetches a single entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, function, params, caller_hash, status, error_details, result_summary, duration_ms, created_at
FROM execution_log
WHERE id = ?;
`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution log entry: %w", err)
	}
	return e, nil
}

// Find returns entries matching q, newest first.
func (s *Store) Find(ctx context.Context, q Query) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	if q.Function != "" {
		where = append(where, "function = ?")
		args = append(args, q.Function)
	}
	if q.CallerHash != "" {
		where = append(where, "caller_hash = ?")
		args = append(args, q.CallerHash)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UTC().Format(storage.TimeLayout))
	}
	if !q.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, q.Until.UTC().Format(storage.TimeLayout))
	}

	query := `
SELECT id, function, params, caller_hash, status, error_details, result_summary, duration_ms, created_at
FROM execution_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultFindLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the retention window and reports how many
// rows went away.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := time.Now().UTC().Add(-retention).Format(storage.TimeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_log WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune execution log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune execution log rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e          Entry
		paramsJSON string
		status     string
		errDetails sql.NullString
		summary    sql.NullString
		durationMs int64
		createdAt  string
	)
	if err := row.Scan(&e.ID, &e.Function, &paramsJSON, &e.CallerHash, &status,
		&errDetails, &summary, &durationMs, &createdAt); err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.Duration = time.Duration(durationMs) * time.Millisecond
	if errDetails.Valid {
		e.ErrorDetails = errDetails.String
	}
	if summary.Valid {
		e.ResultSummary = summary.String
	}
	if err := json.Unmarshal([]byte(paramsJSON), &e.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
