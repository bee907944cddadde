package retryq

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattjoyce/agentgw/internal/fault"
	"github.com/mattjoyce/agentgw/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "retryq.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	s := NewSQLStore(openTestDB(t))
	ctx := context.Background()

	rec := &Record{
		Function:     "semanticSearch",
		CallerHash:   "abcd1234abcd1234",
		ErrorKind:    fault.KindTimeout,
		ErrorDetails: "semantic search: timed out",
		NextRetryAt:  time.Now().UTC().Add(time.Second),
		QueryHash:    "1111222233334444",
		ReplayParams: map[string]any{"userId": "u1", "topK": float64(5)},
	}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Create should assign an ID")
	}

	got, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Function != "semanticSearch" || got.ErrorKind != fault.KindTimeout {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Resolved {
		t.Fatal("fresh record must be unresolved")
	}
	if got.ReplayParams["userId"] != "u1" {
		t.Fatalf("replay params not round-tripped: %v", got.ReplayParams)
	}
	if got.QueryHash != "1111222233334444" {
		t.Fatalf("query hash not round-tripped: %q", got.QueryHash)
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	s := NewSQLStore(openTestDB(t))
	if _, err := s.GetByID(context.Background(), "nope"); err != ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestListDueSkipsResolvedAndFuture(t *testing.T) {
	t.Parallel()

	s := NewSQLStore(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	due := &Record{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout,
		NextRetryAt: now.Add(-time.Second)}
	future := &Record{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout,
		NextRetryAt: now.Add(time.Hour)}
	done := &Record{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout,
		NextRetryAt: now.Add(-time.Second), Resolved: true}
	for _, r := range []*Record{due, future, done} {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := s.ListDue(ctx, 50)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("expected only the due record, got %d", len(got))
	}
}

func TestListDueHonorsLimit(t *testing.T) {
	t.Parallel()

	s := NewSQLStore(openTestDB(t))
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	for i := 0; i < 60; i++ {
		r := &Record{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout,
			NextRetryAt: past.Add(time.Duration(i) * time.Millisecond)}
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := s.ListDue(ctx, 50)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("batch must be capped at 50, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].NextRetryAt.Before(got[i-1].NextRetryAt) {
			t.Fatal("records must come back oldest due first")
		}
	}
}

func TestListDueSubsecondOrdering(t *testing.T) {
	t.Parallel()

	s := NewSQLStore(openTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second).Add(-10 * time.Second)

	a := &Record{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout,
		NextRetryAt: base.Add(500 * time.Millisecond)}
	b := &Record{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout,
		NextRetryAt: base.Add(510 * time.Millisecond)}
	for _, r := range []*Record{b, a} {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := s.ListDue(ctx, 50)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	// .5s and .51s serialize at different widths; due order must still be
	// chronological.
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("due records must order by retry time, got %d", len(got))
	}
}

func TestApplyBatch(t *testing.T) {
	t.Parallel()

	s := NewSQLStore(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	a := &Record{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout,
		NextRetryAt: now.Add(-time.Second)}
	b := &Record{Function: "semanticSearch", CallerHash: "c", ErrorKind: fault.KindServiceUnavailable,
		NextRetryAt: now.Add(-time.Second)}
	for _, r := range []*Record{a, b} {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	a.Resolved = true
	b.RetryCount = 2
	b.ErrorKind = fault.KindNetworkFailure
	b.ErrorDetails = "connection refused"
	b.NextRetryAt = now.Add(4 * time.Second)
	if err := s.ApplyBatch(ctx, []*Record{a, b}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	gotA, err := s.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID a: %v", err)
	}
	if !gotA.Resolved {
		t.Fatal("a should be resolved after batch")
	}

	gotB, err := s.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID b: %v", err)
	}
	if gotB.RetryCount != 2 || gotB.ErrorKind != fault.KindNetworkFailure {
		t.Fatalf("b updates not applied: %+v", gotB)
	}
	if gotB.Resolved {
		t.Fatal("b must stay unresolved")
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := NewSQLStore(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	recs := []*Record{
		{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout, NextRetryAt: now.Add(-time.Second)},
		{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout, NextRetryAt: now.Add(time.Hour)},
		{Function: "searchMessages", CallerHash: "c", ErrorKind: fault.KindTimeout, NextRetryAt: now.Add(-time.Second), Resolved: true},
	}
	for _, r := range recs {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Pending != 2 || st.Due != 1 || st.Resolved != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
