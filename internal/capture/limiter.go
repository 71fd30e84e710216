package capture

import (
	"context"
	"errors"
	"time"
)

// ErrTooManySessions is returned when no session slot frees up in time.
var ErrTooManySessions = errors.New("too many capture sessions, please try again later")

const (
	// DefaultMaxSessions bounds live sessions when the config leaves it unset.
	DefaultMaxSessions = 16
	// DefaultMaxWait is how long Open queues for a slot.
	DefaultMaxWait = 5 * time.Second

	drainPoll = 50 * time.Millisecond
)

// SessionLimiter bounds the number of live capture sessions. A session
// holds its slot from Open until the entry is closed.
type SessionLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewSessionLimiter allows at most maxSessions live sessions. Non-positive values
// fall back to the defaults.
func NewSessionLimiter(maxSessions int, maxWait time.Duration) *SessionLimiter {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &SessionLimiter{slots: make(chan struct{}, maxSessions), maxWait: maxWait}
}

// Acquire takes a slot, queueing up to maxWait. Every successful Acquire
// must be paired with one Release.
func (l *SessionLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManySessions
	}
}

// Release frees a slot taken by Acquire.
func (l *SessionLimiter) Release() {
	<-l.slots
}

// ActiveCount reports how many slots are held.
func (l *SessionLimiter) ActiveCount() int {
	return len(l.slots)
}

// WaitForDrain returns once no slot is held, or with ctx's error.
func (l *SessionLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for l.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is reported by the health endpoint.
type LimiterStatus struct {
	Active      int `json:"active"`
	Available   int `json:"available"`
	MaxSessions int `json:"max_sessions"`
}

// Status snapshots slot usage.
func (l *SessionLimiter) Status() LimiterStatus {
	active := len(l.slots)
	return LimiterStatus{
		Active:      active,
		Available:   cap(l.slots) - active,
		MaxSessions: cap(l.slots),
	}
}
