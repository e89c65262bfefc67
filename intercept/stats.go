package intercept

import (
	"container/list"
	"time"
)

// ErrorStats is a snapshot of interceptor statistics.
type ErrorStats struct {
	TotalErrors int64            `json:"total_errors"`
	ByType      map[string]int64 `json:"by_type"`
	BySource    map[string]int64 `json:"by_source"`

	// Recent lists bounded error summaries, most recently updated first.
	Recent []ErrorSummary `json:"recent"`
}

// ErrorSummary aggregates repeated occurrences of one (type, message,
// source) identity.
type ErrorSummary struct {
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Source      string    `json:"source"`
	Count       int64     `json:"count"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastErrorID string    `json:"last_error_id"`
}

type summaryKey struct {
	typ     string
	message string
	source  string
}

// recentTable is a fixed-capacity ordered map keyed by (type, message,
// source). Upserting an existing identity bumps its count and moves it to
// the front; at capacity the least-recently-updated entry is evicted.
type recentTable struct {
	capacity int
	ll       *list.List // front = most recently updated
	index    map[summaryKey]*list.Element
}

func newRecentTable(capacity int) *recentTable {
	return &recentTable{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[summaryKey]*list.Element, capacity),
	}
}

func (t *recentTable) upsert(key summaryKey, errorID string, now time.Time) {
	if elem, ok := t.index[key]; ok {
		summary := elem.Value.(*ErrorSummary)
		summary.Count++
		summary.LastSeen = now
		summary.LastErrorID = errorID
		t.ll.MoveToFront(elem)
		return
	}

	if t.ll.Len() >= t.capacity {
		oldest := t.ll.Back()
		if oldest != nil {
			old := oldest.Value.(*ErrorSummary)
			delete(t.index, summaryKey{old.Type, old.Message, old.Source})
			t.ll.Remove(oldest)
		}
	}

	t.index[key] = t.ll.PushFront(&ErrorSummary{
		Type:        key.typ,
		Message:     key.message,
		Source:      key.source,
		Count:       1,
		FirstSeen:   now,
		LastSeen:    now,
		LastErrorID: errorID,
	})
}

// snapshot copies the table, most recently updated first.
func (t *recentTable) snapshot() []ErrorSummary {
	out := make([]ErrorSummary, 0, t.ll.Len())
	for elem := t.ll.Front(); elem != nil; elem = elem.Next() {
		out = append(out, *elem.Value.(*ErrorSummary))
	}
	return out
}
