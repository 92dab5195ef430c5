package processor

import "sync"

// StatsSnapshot is a point-in-time copy of the processing counters.
type StatsSnapshot struct {
	TotalProcessed      int `json:"total_processed"`
	SuccessfulResponses int `json:"successful_responses"`
	FailedResponses     int `json:"failed_responses"`
	SkippedEmails       int `json:"skipped_emails"`
	Errors              int `json:"errors"`
}

// Stats accumulates processing counters across batches.
type Stats struct {
	mu       sync.Mutex
	snapshot StatsSnapshot
}

func (s *Stats) recordResponded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.TotalProcessed++
	s.snapshot.SuccessfulResponses++
}

func (s *Stats) recordSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.TotalProcessed++
	s.snapshot.SkippedEmails++
}

// recordErrored counts a failed email both as a failed response and as
// an error.
func (s *Stats) recordErrored() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.TotalProcessed++
	s.snapshot.FailedResponses++
	s.snapshot.Errors++
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = StatsSnapshot{}
}
