package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Result is what a handler hands back to dispatch: the caller-visible payload
// and a short summary for the execution log.
type Result struct {
	Data    map[string]any
	Summary string
}

// Handler runs one catalog function. Parameters arrive already validated;
// handlers may still fail on missing resources or collaborator errors.
type Handler func(ctx context.Context, userID string, params map[string]any) (*Result, error)

// Set binds every catalog function to its implementation.
type Set struct {
	store          *ChatStore
	index          VectorIndex
	indexRetryBase time.Duration
	handlers       map[string]Handler
	now            func() time.Time
}

// Option tweaks a Set.
type Option func(*Set)

// WithIndexRetryBase overrides the base delay of the vector index's in-place
// retries.
func WithIndexRetryBase(d time.Duration) Option {
	return func(s *Set) { s.indexRetryBase = d }
}

func NewSet(store *ChatStore, index VectorIndex, opts ...Option) *Set {
	s := &Set{
		store:          store,
		index:          index,
		indexRetryBase: time.Second,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handlers = map[string]Handler{
		"summarizeThread":      s.summarizeThread,
		"searchMessages":       s.searchMessages,
		"semanticSearch":       s.semanticSearch,
		"extractActionItems":   s.extractActionItems,
		"analyzeSentiment":     s.analyzeSentiment,
		"draftReply":           s.draftReply,
		"translateMessage":     s.translateMessage,
		"getConversationStats": s.getConversationStats,
	}
	return s
}

func (s *Set) Get(name string) (Handler, bool) {
	h, ok := s.handlers[name]
	return h, ok
}

func (s *Set) Names() []string {
	names := make([]string, 0, len(s.handlers))
	for n := range s.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Set) summarizeThread(ctx context.Context, _ string, params map[string]any) (*Result, error) {
	threadID := strParam(params, "threadId", "")
	maxSentences := intParam(params, "maxSentences", 3)

	msgs, err := s.store.Messages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return &Result{
			Data: map[string]any{
				"summary":       "No messages in this thread.",
				"keyPoints":     []string{},
				"decisionCount": 0,
				"messageCount":  0,
			},
			Summary: "Returned 0 items",
		}, nil
	}

	participants := map[string]bool{}
	decisions := 0
	for _, m := range msgs {
		participants[m.SenderID] = true
		body := strings.ToLower(m.Body)
		if strings.Contains(body, "decision") || strings.Contains(body, "decided") || strings.Contains(body, "agreed") {
			decisions++
		}
	}

	// Key points: the longest messages carry the most content. Stable sort
	// keeps the output deterministic for equal lengths.
	byLength := make([]Message, len(msgs))
	copy(byLength, msgs)
	sort.SliceStable(byLength, func(i, j int) bool { return len(byLength[i].Body) > len(byLength[j].Body) })
	if len(byLength) > maxSentences {
		byLength = byLength[:maxSentences]
	}
	keyPoints := make([]string, 0, len(byLength))
	for _, m := range byLength {
		keyPoints = append(keyPoints, snippet(m.Body, 100))
	}

	summary := fmt.Sprintf("%d messages from %d participants between %s and %s.",
		len(msgs), len(participants),
		msgs[0].CreatedAt.Format("2006-01-02"), msgs[len(msgs)-1].CreatedAt.Format("2006-01-02"))

	return &Result{
		Data: map[string]any{
			"summary":       summary,
			"keyPoints":     keyPoints,
			"decisionCount": decisions,
			"messageCount":  len(msgs),
		},
		Summary: fmt.Sprintf("Returned %d items", len(keyPoints)),
	}, nil
}

func (s *Set) searchMessages(ctx context.Context, _ string, params map[string]any) (*Result, error) {
	query := strParam(params, "query", "")
	userID := strParam(params, "userId", "")
	limit := intParam(params, "limit", 10)

	msgs, err := s.store.Search(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		results = append(results, map[string]any{
			"messageId": m.ID,
			"threadId":  m.ThreadID,
			"snippet":   snippet(m.Body, 100),
			"createdAt": m.CreatedAt.Format(time.RFC3339),
		})
	}
	return &Result{
		Data:    map[string]any{"results": results, "count": len(results)},
		Summary: fmt.Sprintf("Returned %d items", len(results)),
	}, nil
}

func (s *Set) semanticSearch(ctx context.Context, _ string, params map[string]any) (*Result, error) {
	query := strParam(params, "query", "")
	topK := intParam(params, "topK", 5)
	threadID := strParam(params, "threadId", "")

	matches, err := queryWithRetry(ctx, s.index, s.indexRetryBase, query, topK, threadID)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []Match{}
	}
	return &Result{
		Data:    map[string]any{"matches": matches, "count": len(matches)},
		Summary: fmt.Sprintf("Returned %d items", len(matches)),
	}, nil
}

var actionMarkers = []string{"todo", "action", "please ", "need to", "will ", "follow up"}

func (s *Set) extractActionItems(ctx context.Context, _ string, params map[string]any) (*Result, error) {
	threadID := strParam(params, "threadId", "")
	sinceHours := intParam(params, "sinceHours", 24)

	msgs, err := s.store.MessagesSince(ctx, threadID, s.now().Add(-time.Duration(sinceHours)*time.Hour))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0)
	for _, m := range msgs {
		body := strings.ToLower(m.Body)
		for _, marker := range actionMarkers {
			if strings.Contains(body, marker) {
				items = append(items, map[string]any{
					"messageId": m.ID,
					"assignee":  m.SenderID,
					"text":      snippet(m.Body, 100),
				})
				break
			}
		}
	}
	return &Result{
		Data:    map[string]any{"items": items, "count": len(items)},
		Summary: fmt.Sprintf("Returned %d items", len(items)),
	}, nil
}

var (
	positiveWords = []string{"great", "good", "thanks", "thank", "love", "excellent", "happy", "agree", "nice"}
	negativeWords = []string{"bad", "problem", "hate", "angry", "blocked", "broken", "fail", "delay", "wrong"}
)

func (s *Set) analyzeSentiment(ctx context.Context, _ string, params map[string]any) (*Result, error) {
	threadID := strParam(params, "threadId", "")
	wanted := strSetParam(params, "messageIds")

	msgs, err := s.store.Messages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	pos, neg, counted := 0, 0, 0
	for _, m := range msgs {
		if wanted != nil && !wanted[m.ID] {
			continue
		}
		counted++
		body := strings.ToLower(m.Body)
		for _, w := range positiveWords {
			if strings.Contains(body, w) {
				pos++
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(body, w) {
				neg++
			}
		}
	}

	score := 0.0
	if pos+neg > 0 {
		score = float64(pos-neg) / float64(pos+neg)
	}
	overall := "neutral"
	switch {
	case score > 0.2:
		overall = "positive"
	case score < -0.2:
		overall = "negative"
	}
	return &Result{
		Data:    map[string]any{"overall": overall, "score": score, "messageCount": counted},
		Summary: fmt.Sprintf("Analyzed %d messages", counted),
	}, nil
}

var replyTemplates = map[string]string{
	"formal":   "Thank you for the update. I will review the details and follow up shortly.",
	"casual":   "Got it, thanks! I'll take a look and get back to you.",
	"friendly": "Thanks so much for this! I'll check it out and circle back soon.",
}

func (s *Set) draftReply(ctx context.Context, _ string, params map[string]any) (*Result, error) {
	threadID := strParam(params, "threadId", "")
	tone := strParam(params, "tone", "casual")
	maxWords := intParam(params, "maxWords", 100)

	msgs, err := s.store.Messages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	draft := replyTemplates[tone]
	if draft == "" {
		draft = replyTemplates["casual"]
	}
	if len(msgs) == 0 {
		draft = "There's no conversation here yet. Feel free to start one!"
	}

	words := strings.Fields(draft)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	draft = strings.Join(words, " ")

	return &Result{
		Data:    map[string]any{"draft": draft, "tone": tone, "wordCount": len(words)},
		Summary: fmt.Sprintf("Drafted reply (%d words)", len(words)),
	}, nil
}

func (s *Set) translateMessage(ctx context.Context, _ string, params map[string]any) (*Result, error) {
	messageID := strParam(params, "messageId", "")
	lang := strParam(params, "targetLanguage", "")

	m, err := s.store.Message(ctx, messageID)
	if err != nil {
		return nil, err
	}

	// Placeholder translation: the real MT backend is an external
	// collaborator. The marker keeps the output visibly non-authoritative.
	translated := fmt.Sprintf("[%s] %s", lang, m.Body)
	return &Result{
		Data: map[string]any{
			"messageId":      m.ID,
			"targetLanguage": lang,
			"translatedText": translated,
		},
		Summary: "Translated 1 message",
	}, nil
}

func (s *Set) getConversationStats(ctx context.Context, _ string, params map[string]any) (*Result, error) {
	threadID := strParam(params, "threadId", "")
	days := intParam(params, "days", 30)

	msgs, err := s.store.MessagesSince(ctx, threadID, s.now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return nil, err
	}

	perSender := map[string]int{}
	for _, m := range msgs {
		perSender[m.SenderID]++
	}
	busiest := ""
	for sender, n := range perSender {
		if busiest == "" || n > perSender[busiest] || (n == perSender[busiest] && sender < busiest) {
			busiest = sender
		}
	}

	data := map[string]any{
		"messageCount":     len(msgs),
		"participantCount": len(perSender),
		"busiestSender":    busiest,
	}
	if len(msgs) > 0 {
		data["firstMessageAt"] = msgs[0].CreatedAt.Format(time.RFC3339)
		data["lastMessageAt"] = msgs[len(msgs)-1].CreatedAt.Format(time.RFC3339)
	}
	return &Result{
		Data:    data,
		Summary: fmt.Sprintf("Returned stats for %d messages", len(msgs)),
	}, nil
}

func strParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

// strSetParam returns nil when the parameter is absent, so callers can tell
// "no filter" from "empty filter".
func strSetParam(params map[string]any, key string) map[string]bool {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	set := make(map[string]bool, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			set[s] = true
		}
	}
	return set
}
