package retryq

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/agentgw/internal/fault"
	"github.com/mattjoyce/agentgw/internal/storage"
)

var ErrRecordNotFound = errors.New("failed request record not found")

// SQLStore persists failed_requests rows.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	replay, err := json.Marshal(rec.ReplayParams)
	if err != nil {
		return fmt.Errorf("marshal replay params: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO failed_requests(
  id, function, caller_hash, error_kind, error_details, retry_count,
  next_retry_at, resolved, query_hash, message_hash, replay_params,
  created_at, updated_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.Function, rec.CallerHash, string(rec.ErrorKind),
		nullable(rec.ErrorDetails), rec.RetryCount,
		rec.NextRetryAt.UTC().Format(storage.TimeLayout), boolToInt(rec.Resolved),
		nullable(rec.QueryHash), nullable(rec.MessageHash), string(replay),
		rec.CreatedAt.UTC().Format(storage.TimeLayout), rec.UpdatedAt.UTC().Format(storage.TimeLayout))
	if err != nil {
		return fmt.Errorf("create failed request: %w", err)
	}
	return nil
}

// ListDue returns unresolved records whose next_retry_at has passed, oldest
// due first, capped at limit.
func (s *SQLStore) ListDue(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, function, caller_hash, error_kind, error_details, retry_count,
       next_retry_at, resolved, query_hash, message_hash, replay_params,
       created_at, updated_at
FROM failed_requests
WHERE resolved = 0 AND next_retry_at <= ?
ORDER BY next_retry_at ASC, id ASC
LIMIT ?;
`, time.Now().UTC().Format(storage.TimeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("list due failed requests: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed request: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ApplyBatch writes the mutable fields of each record in one transaction.
func (s *SQLStore) ApplyBatch(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin retry batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
UPDATE failed_requests
SET error_kind = ?, error_details = ?, retry_count = ?, next_retry_at = ?,
    resolved = ?, updated_at = ?
WHERE id = ?;
`)
	if err != nil {
		return fmt.Errorf("prepare retry batch: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(storage.TimeLayout)
	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, string(rec.ErrorKind),
			nullable(rec.ErrorDetails), rec.RetryCount,
			rec.NextRetryAt.UTC().Format(storage.TimeLayout),
			boolToInt(rec.Resolved), now, rec.ID); err != nil {
			return fmt.Errorf("apply retry update %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// ListRecent returns the newest records regardless of due time, for
// inspection surfaces.
func (s *SQLStore) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, function, caller_hash, error_kind, error_details, retry_count,
       next_retry_at, resolved, query_hash, message_hash, replay_params,
       created_at, updated_at
FROM failed_requests
ORDER BY created_at DESC, id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent failed requests: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed request: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetByID fetches one record.
func (s *SQLStore) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, function, caller_hash, error_kind, error_details, retry_count,
       next_retry_at, resolved, query_hash, message_hash, replay_params,
       created_at, updated_at
FROM failed_requests
WHERE id = ?;
`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed request: %w", err)
	}
	return rec, nil
}

// QueueStats summarizes queue depth for the stats endpoint.
type QueueStats struct {
	Pending  int64 `json:"pending"`
	Due      int64 `json:"due"`
	Resolved int64 `json:"resolved"`
}

func (s *SQLStore) Stats(ctx context.Context) (QueueStats, error) {
	var st QueueStats
	now := time.Now().UTC().Format(storage.TimeLayout)
	row := s.db.QueryRowContext(ctx, `
SELECT
  COUNT(*) FILTER (WHERE resolved = 0),
  COUNT(*) FILTER (WHERE resolved = 0 AND next_retry_at <= ?),
  COUNT(*) FILTER (WHERE resolved = 1)
FROM failed_requests;
`, now)
	if err := row.Scan(&st.Pending, &st.Due, &st.Resolved); err != nil {
		return QueueStats{}, fmt.Errorf("failed request stats: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                             Record
		kind                            string
		errDetails, queryHash, msgHash  sql.NullString
		replayJSON                      sql.NullString
		resolved                        int
		nextRetryAt, createdAt, updated string
	)
	if err := row.Scan(&rec.ID, &rec.Function, &rec.CallerHash, &kind,
		&errDetails, &rec.RetryCount, &nextRetryAt, &resolved,
		&queryHash, &msgHash, &replayJSON, &createdAt, &updated); err != nil {
		return nil, err
	}
	rec.ErrorKind = fault.Kind(kind)
	rec.Resolved = resolved != 0
	if errDetails.Valid {
		rec.ErrorDetails = errDetails.String
	}
	if queryHash.Valid {
		rec.QueryHash = queryHash.String
	}
	if msgHash.Valid {
		rec.MessageHash = msgHash.String
	}
	if replayJSON.Valid && replayJSON.String != "" && replayJSON.String != "null" {
		if err := json.Unmarshal([]byte(replayJSON.String), &rec.ReplayParams); err != nil {
			return nil, fmt.Errorf("unmarshal replay params: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, nextRetryAt); err == nil {
		rec.NextRetryAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
