// Package ratelimit caps outbound replies per recipient over a
// sliding time window, so a mail loop cannot flood anyone.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks reply timestamps per recipient. Entries outside the
// window are pruned lazily on the next Allow call for that recipient.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	sends  map[string][]time.Time

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// New builds a limiter allowing max replies per recipient within
// window.
func New(window time.Duration, max int) *Limiter {
	return &Limiter{
		window: window,
		max:    max,
		sends:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether another reply to recipient may be sent now,
// recording the send when permitted. Denied calls record nothing.
func (l *Limiter) Allow(recipient string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.sends[recipient][:0]
	for _, t := range l.sends[recipient] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.max {
		l.sends[recipient] = recent
		return false
	}

	l.sends[recipient] = append(recent, now)
	return true
}

// Pending returns how many sends are currently counted against the
// recipient, without recording anything.
func (l *Limiter) Pending(recipient string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	count := 0
	for _, t := range l.sends[recipient] {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// Reset forgets all recorded sends.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sends = make(map[string][]time.Time)
}
