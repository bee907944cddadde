// Package events is an in-memory feed of dispatch activity for the SSE
// endpoint and the watch TUI. Delivery is best-effort: slow subscribers drop
// events rather than block dispatch.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the service.
const (
	TypeExecution = "execution"
	TypeRetryRun  = "retry_run"
	TypePrune     = "prune"
)

type Event struct {
	Seq     int64           `json:"seq"`
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// ExecutionEvent is the payload for TypeExecution. Params never appear here;
// the feed carries the same sanitized surface as the execution log.
type ExecutionEvent struct {
	ExecutionID string `json:"execution_id"`
	Function    string `json:"function"`
	Status      string `json:"status"`
	DurationMS  int64  `json:"duration_ms"`
	ErrorCode   string `json:"error_code,omitempty"`
}

// RetryRunEvent is the payload for TypeRetryRun.
type RetryRunEvent struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// PruneEvent is the payload for TypePrune.
type PruneEvent struct {
	Removed int64 `json:"removed"`
}

// Hub fans events out to subscribers and keeps a ring of recent events so a
// reconnecting client can catch up.
type Hub struct {
	nextSeq atomic.Int64

	mu    sync.Mutex
	ring  []Event
	start int
	size  int

	subs      map[int]chan Event
	nextSubID int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 200
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

func (h *Hub) Publish(eventType string, payload any) {
	seq := h.nextSeq.Add(1)

	raw := json.RawMessage("{}")
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}

	ev := Event{Seq: seq, Type: eventType, At: time.Now().UTC(), Payload: raw}

	h.mu.Lock()
	h.pushLocked(ev)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default: // drop for slow subscribers
		}
	}
	h.mu.Unlock()
}

// Subscribe returns a buffered event channel and a cancel func. Cancel is
// idempotent and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 64)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Since returns buffered events with Seq > lastSeq, oldest first. lastSeq 0
// returns the whole buffer.
func (h *Hub) Since(lastSeq int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if ev.Seq > lastSeq {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = ev
		h.size++
		return
	}
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
