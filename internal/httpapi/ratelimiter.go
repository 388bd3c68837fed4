package httpapi

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRateLimited is returned when a connection sends too many frames per window
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTooManyInFlight is returned when a connection has too many turns running
	ErrTooManyInFlight = errors.New("too many concurrent turns")
)

// ConnLimiter is a sliding-window limiter for one chat connection
type ConnLimiter struct {
	mu          sync.Mutex
	perWindow   int
	maxInFlight int
	window      time.Duration
	now         func() time.Time
	starts      []time.Time
	inFlight    int
}

// NewConnLimiter allows perWindow turns per window and maxInFlight turns at once.
// Non-positive arguments fall back to 30 per minute and 2 in flight.
func NewConnLimiter(perWindow, maxInFlight int, window time.Duration) *ConnLimiter {
	if perWindow <= 0 {
		perWindow = 30
	}
	if maxInFlight <= 0 {
		maxInFlight = 2
	}
	if window <= 0 {
		window = time.Minute
	}
	return &ConnLimiter{
		perWindow:   perWindow,
		maxInFlight: maxInFlight,
		window:      window,
		now:         time.Now,
	}
}

// Acquire reserves a slot for one turn. Callers must Release on success.
func (l *ConnLimiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight >= l.maxInFlight {
		return ErrTooManyInFlight
	}

	now := l.now()
	l.prune(now)
	if len(l.starts) >= l.perWindow {
		return ErrRateLimited
	}

	l.starts = append(l.starts, now)
	l.inFlight++
	return nil
}

// Release frees a slot taken by Acquire
func (l *ConnLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
}

// Stats returns turns started within the window and turns in flight
func (l *ConnLimiter) Stats() (started, inFlight int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.starts), l.inFlight
}

func (l *ConnLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.starts[:0]
	for _, t := range l.starts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.starts = kept
}
