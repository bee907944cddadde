package handlers

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mattjoyce/agentgw/internal/fault"
)

// Match is one semantic search hit.
type Match struct {
	MessageID string  `json:"messageId"`
	ThreadID  string  `json:"threadId"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
}

// VectorIndex is the semantic search collaborator. Implementations should
// return *fault.Error for upstream failures so classification stays exact.
type VectorIndex interface {
	Query(ctx context.Context, query string, topK int, threadID string) ([]Match, error)
}

// queryWithRetry re-attempts transient index failures in place. This policy
// (1s·2^attempt, two extra attempts) is deliberately separate from the retry
// queue's: it covers blips inside a single dispatch, the queue covers
// outages across dispatches.
func queryWithRetry(ctx context.Context, idx VectorIndex, base time.Duration, query string, topK int, threadID string) ([]Match, error) {
	const extraAttempts = 2

	var lastErr error
	for attempt := 0; ; attempt++ {
		matches, err := idx.Query(ctx, query, topK, threadID)
		if err == nil {
			return matches, nil
		}
		lastErr = err
		if attempt >= extraAttempts || !fault.Classify(err).Retryable {
			return nil, lastErr
		}
		delay := base << attempt
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// KeywordIndex is a naive lexical stand-in for an external vector store:
// token overlap between the query and each message body, scored 0..1.
type KeywordIndex struct {
	store *ChatStore
}

func NewKeywordIndex(store *ChatStore) *KeywordIndex {
	return &KeywordIndex{store: store}
}

func (k *KeywordIndex) Query(ctx context.Context, query string, topK int, threadID string) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		msgs []Message
		err  error
	)
	if threadID != "" {
		msgs, err = k.store.Messages(ctx, threadID)
	} else {
		msgs, err = k.store.query(ctx, `
SELECT id, thread_id, sender_id, body, created_at
FROM messages
ORDER BY created_at DESC, id DESC
LIMIT 1000;
`)
	}
	if err != nil {
		return nil, &fault.Error{Kind: fault.KindServiceUnavailable, Provider: "vector_db", Op: "vector query", Err: err}
	}

	var matches []Match
	for _, m := range msgs {
		bodyTerms := tokenize(m.Body)
		hits := 0
		for _, t := range terms {
			for _, bt := range bodyTerms {
				if t == bt {
					hits++
					break
				}
			}
		}
		if hits == 0 {
			continue
		}
		matches = append(matches, Match{
			MessageID: m.ID,
			ThreadID:  m.ThreadID,
			Score:     float64(hits) / float64(len(terms)),
			Snippet:   snippet(m.Body, 80),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
