package handlers

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/agentgw/internal/fault"
	"github.com/mattjoyce/agentgw/internal/storage"
)

func seedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	base := time.Now().UTC().Add(-2 * time.Hour)
	exec := func(q string, args ...any) {
		t.Helper()
		if _, err := db.ExecContext(context.Background(), q, args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	exec(`INSERT INTO threads(id, title, created_at) VALUES('t1', 'release planning', ?)`, base.Format(storage.TimeLayout))
	exec(`INSERT INTO threads(id, title, created_at) VALUES('empty', 'nothing here', ?)`, base.Format(storage.TimeLayout))
	exec(`INSERT INTO thread_members(thread_id, user_id) VALUES('t1', 'alice')`)
	exec(`INSERT INTO thread_members(thread_id, user_id) VALUES('t1', 'bob')`)

	msgs := []struct {
		id, sender, body string
		offset           time.Duration
	}{
		{"m1", "alice", "We decided to ship the release on Friday, great work everyone", 0},
		{"m2", "bob", "Thanks! I will prepare the deployment checklist, please review it", 10 * time.Minute},
		{"m3", "alice", "One problem: the staging environment is broken again", 20 * time.Minute},
		{"m4", "bob", "TODO: fix staging before Thursday", 30 * time.Minute},
	}
	for _, m := range msgs {
		exec(`INSERT INTO messages(id, thread_id, sender_id, body, created_at) VALUES(?, 't1', ?, ?, ?)`,
			m.id, m.sender, m.body, base.Add(m.offset).Format(storage.TimeLayout))
	}
	return db
}

func newTestSet(t *testing.T) *Set {
	t.Helper()
	store := NewChatStore(seedDB(t))
	return NewSet(store, NewKeywordIndex(store))
}

func call(t *testing.T, s *Set, function string, params map[string]any) *Result {
	t.Helper()
	h, ok := s.Get(function)
	if !ok {
		t.Fatalf("handler %q missing", function)
	}
	res, err := h(context.Background(), "alice", params)
	if err != nil {
		t.Fatalf("%s: %v", function, err)
	}
	return res
}

func TestSetCoversAllFunctions(t *testing.T) {
	t.Parallel()

	s := newTestSet(t)
	want := []string{"analyzeSentiment", "draftReply", "extractActionItems", "getConversationStats",
		"searchMessages", "semanticSearch", "summarizeThread", "translateMessage"}
	got := s.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d handlers, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("handler set mismatch: got %v", got)
		}
	}
}

func TestSummarizeEmptyThread(t *testing.T) {
	t.Parallel()

	res := call(t, newTestSet(t), "summarizeThread", map[string]any{"threadId": "empty"})
	if res.Data["summary"] != "No messages in this thread." {
		t.Fatalf("unexpected summary: %v", res.Data["summary"])
	}
	if kp, ok := res.Data["keyPoints"].([]string); !ok || len(kp) != 0 {
		t.Fatalf("keyPoints must be an empty list, got %v", res.Data["keyPoints"])
	}
	if res.Data["decisionCount"] != 0 || res.Data["messageCount"] != 0 {
		t.Fatalf("counts must be zero: %v", res.Data)
	}
}

func TestSummarizeThread(t *testing.T) {
	t.Parallel()

	res := call(t, newTestSet(t), "summarizeThread", map[string]any{"threadId": "t1", "maxSentences": float64(2)})
	if res.Data["messageCount"] != 4 {
		t.Fatalf("expected 4 messages, got %v", res.Data["messageCount"])
	}
	if res.Data["decisionCount"] != 1 {
		t.Fatalf("expected 1 decision, got %v", res.Data["decisionCount"])
	}
	kp := res.Data["keyPoints"].([]string)
	if len(kp) != 2 {
		t.Fatalf("maxSentences must cap key points, got %d", len(kp))
	}
	if !strings.Contains(res.Data["summary"].(string), "2 participants") {
		t.Fatalf("summary should mention participants: %v", res.Data["summary"])
	}
}

func TestSearchMessagesScopedToMembership(t *testing.T) {
	t.Parallel()

	s := newTestSet(t)
	res := call(t, s, "searchMessages", map[string]any{"query": "staging", "userId": "alice"})
	if res.Data["count"] != 2 {
		t.Fatalf("expected 2 staging hits, got %v", res.Data["count"])
	}

	h, _ := s.Get("searchMessages")
	out, err := h(context.Background(), "mallory", map[string]any{"query": "staging", "userId": "mallory"})
	if err != nil {
		t.Fatalf("searchMessages: %v", err)
	}
	if out.Data["count"] != 0 {
		t.Fatalf("non-member must see no results, got %v", out.Data["count"])
	}
}

func TestSearchMessagesLimit(t *testing.T) {
	t.Parallel()

	res := call(t, newTestSet(t), "searchMessages", map[string]any{
		"query": "th", "userId": "alice", "limit": float64(1),
	})
	if res.Data["count"] != 1 {
		t.Fatalf("limit not honored, got %v", res.Data["count"])
	}
	if res.Summary != "Returned 1 items" {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}
}

func TestSemanticSearch(t *testing.T) {
	t.Parallel()

	res := call(t, newTestSet(t), "semanticSearch", map[string]any{
		"query": "staging environment broken", "topK": float64(2),
	})
	matches := res.Data["matches"].([]Match)
	if len(matches) == 0 || len(matches) > 2 {
		t.Fatalf("expected 1-2 matches, got %d", len(matches))
	}
	if matches[0].MessageID != "m3" {
		t.Fatalf("best match should be the staging message, got %+v", matches[0])
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatal("matches must be ordered by descending score")
		}
	}
}

type flakyIndex struct {
	failures int
	calls    int
}

func (f *flakyIndex) Query(ctx context.Context, query string, topK int, threadID string) ([]Match, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &fault.Error{Kind: fault.KindNetworkFailure, Provider: "pinecone", Op: "vector query",
			Err: errors.New("connection refused")}
	}
	return []Match{{MessageID: "m1", Score: 1}}, nil
}

func TestQueryWithRetryRecovers(t *testing.T) {
	t.Parallel()

	idx := &flakyIndex{failures: 2}
	matches, err := queryWithRetry(context.Background(), idx, time.Millisecond, "q", 5, "")
	if err != nil {
		t.Fatalf("retry should have recovered: %v", err)
	}
	if len(matches) != 1 || idx.calls != 3 {
		t.Fatalf("expected success on third call, calls=%d", idx.calls)
	}
}

func TestQueryWithRetryGivesUp(t *testing.T) {
	t.Parallel()

	idx := &flakyIndex{failures: 10}
	if _, err := queryWithRetry(context.Background(), idx, time.Millisecond, "q", 5, ""); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if idx.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", idx.calls)
	}
}

type brokenIndex struct{ calls int }

func (b *brokenIndex) Query(ctx context.Context, query string, topK int, threadID string) ([]Match, error) {
	b.calls++
	return nil, &fault.Error{Kind: fault.KindInvalidRequest, Provider: "pinecone", Op: "vector query",
		Err: errors.New("malformed filter")}
}

func TestQueryWithRetrySkipsNonRetryable(t *testing.T) {
	t.Parallel()

	idx := &brokenIndex{}
	if _, err := queryWithRetry(context.Background(), idx, time.Millisecond, "q", 5, ""); err == nil {
		t.Fatal("expected error")
	}
	if idx.calls != 1 {
		t.Fatalf("non-retryable failure must not be re-attempted, calls=%d", idx.calls)
	}
}

func TestExtractActionItems(t *testing.T) {
	t.Parallel()

	res := call(t, newTestSet(t), "extractActionItems", map[string]any{"threadId": "t1"})
	items := res.Data["items"].([]map[string]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 action items (m2, m4), got %d: %v", len(items), items)
	}
	if items[0]["messageId"] != "m2" || items[1]["messageId"] != "m4" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestExtractActionItemsWindow(t *testing.T) {
	t.Parallel()

	res := call(t, newTestSet(t), "extractActionItems", map[string]any{
		"threadId": "t1", "sinceHours": float64(1),
	})
	// All seeded messages are about 2h old.
	if res.Data["count"] != 0 {
		t.Fatalf("window should exclude old messages, got %v", res.Data["count"])
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	t.Parallel()

	s := newTestSet(t)
	res := call(t, s, "analyzeSentiment", map[string]any{"threadId": "t1"})
	if res.Data["messageCount"] != 4 {
		t.Fatalf("expected all 4 messages, got %v", res.Data["messageCount"])
	}

	res = call(t, s, "analyzeSentiment", map[string]any{
		"threadId": "t1", "messageIds": []any{"m3"},
	})
	if res.Data["messageCount"] != 1 {
		t.Fatalf("messageIds filter not applied: %v", res.Data["messageCount"])
	}
	if res.Data["overall"] != "negative" {
		t.Fatalf("m3 alone should read negative, got %v", res.Data["overall"])
	}
}

func TestDraftReply(t *testing.T) {
	t.Parallel()

	s := newTestSet(t)
	res := call(t, s, "draftReply", map[string]any{"threadId": "t1", "tone": "formal"})
	draft := res.Data["draft"].(string)
	if !strings.HasPrefix(draft, "Thank you") {
		t.Fatalf("formal tone not applied: %q", draft)
	}

	res = call(t, s, "draftReply", map[string]any{
		"threadId": "t1", "maxWords": float64(10),
	})
	if res.Data["wordCount"].(int) > 10 {
		t.Fatalf("maxWords not honored: %v", res.Data["wordCount"])
	}
}

func TestTranslateMessage(t *testing.T) {
	t.Parallel()

	s := newTestSet(t)
	res := call(t, s, "translateMessage", map[string]any{
		"messageId": "m4", "targetLanguage": "fr",
	})
	if !strings.HasPrefix(res.Data["translatedText"].(string), "[fr] ") {
		t.Fatalf("unexpected translation: %v", res.Data["translatedText"])
	}

	h, _ := s.Get("translateMessage")
	if _, err := h(context.Background(), "alice", map[string]any{
		"messageId": "ghost", "targetLanguage": "fr",
	}); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestGetConversationStats(t *testing.T) {
	t.Parallel()

	res := call(t, newTestSet(t), "getConversationStats", map[string]any{"threadId": "t1"})
	if res.Data["messageCount"] != 4 || res.Data["participantCount"] != 2 {
		t.Fatalf("unexpected stats: %v", res.Data)
	}
	if res.Data["busiestSender"] != "alice" {
		// alice and bob are tied at 2; the tie breaks alphabetically.
		t.Fatalf("unexpected busiest sender: %v", res.Data["busiestSender"])
	}
	if _, ok := res.Data["firstMessageAt"]; !ok {
		t.Fatal("stats should include first/last timestamps")
	}
}
