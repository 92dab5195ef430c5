package monitor

import (
	"sync"
	"time"
)

// RunRecord captures one monitor pass.
type RunRecord struct {
	ID        string        `json:"id"`
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"processed"`
	Responded int           `json:"responded"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Error     string        `json:"error,omitempty"`
	Success   bool          `json:"success"`
}

// History is a fixed-capacity ring of run records. Once full, each new
// record evicts the oldest.
type History struct {
	mu       sync.Mutex
	records  []RunRecord
	capacity int
	next     int
	full     bool
}

// NewHistory creates a history holding up to capacity records.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		records:  make([]RunRecord, capacity),
		capacity: capacity,
	}
}

// Add appends a record, evicting the oldest when full.
func (h *History) Add(rec RunRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.next] = rec
	h.next = (h.next + 1) % h.capacity
	if h.next == 0 {
		h.full = true
	}
}

// Len reports how many records are held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return h.capacity
	}
	return h.next
}

// Last returns up to n records, newest first. n <= 0 returns all.
func (h *History) Last(n int) []RunRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.next
	if h.full {
		size = h.capacity
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]RunRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + h.capacity) % h.capacity
		out = append(out, h.records[idx])
	}
	return out
}

// LastRun returns the most recent record, if any.
func (h *History) LastRun() (RunRecord, bool) {
	recs := h.Last(1)
	if len(recs) == 0 {
		return RunRecord{}, false
	}
	return recs[0], true
}
