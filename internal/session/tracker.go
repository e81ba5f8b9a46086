// Package session tracks how long the user has been on the same context and
// emits threshold events independent of the poll rate feeding it.
package session

import (
	"sync"
	"time"

	"focusd/internal/activity"
	"focusd/internal/logging"
)

// EventType identifies a session transition
type EventType string

const (
	EventContextChanged EventType = "context_changed"
	EventWarnThreshold  EventType = "warn_threshold"
	EventLongThreshold  EventType = "long_threshold"
	EventFollowUp       EventType = "follow_up" // still on same context after long threshold
)

// Event is emitted when session state changes
type Event struct {
	Type      EventType
	Context   *activity.Context
	Duration  time.Duration
	Timestamp time.Time
}

// Session is the one ongoing span of attention on a single context
type Session struct {
	Context        *activity.Context
	StartedAt      time.Time
	LastActivityAt time.Time

	now func() time.Time // the owning tracker's clock
}

// Duration returns how long the session has been open, measured on the
// clock of the tracker that created it.
func (s *Session) Duration() time.Duration {
	if s.now == nil {
		return time.Since(s.StartedAt)
	}
	return s.now().Sub(s.StartedAt)
}

// Config holds the tracker thresholds. All values are caller-supplied; the
// tracker bakes in no defaults.
type Config struct {
	WarnThreshold    time.Duration
	LongThreshold    time.Duration
	FollowUpInterval time.Duration // cadence of follow_up events after long
}

// Callback receives session events. Callbacks run synchronously on the
// Update goroutine and must not call back into the tracker.
type Callback func(Event)

// Tracker converts a noisy polling stream of contexts into discrete,
// once-only threshold events. Safe for concurrent use.
type Tracker struct {
	mu  sync.Mutex
	cfg Config

	current        *Session
	warnEmitted    bool
	longEmitted    bool
	lastFollowUpAt time.Time
	callbacks      []Callback

	now func() time.Time // swapped in tests
}

// NewTracker creates a tracker with the given thresholds. A warn threshold at
// or above the long threshold makes warn events unreachable; that is accepted
// degraded behavior, not an error.
func NewTracker(cfg Config) *Tracker {
	if cfg.WarnThreshold >= cfg.LongThreshold {
		logging.Warn("session", "warn threshold %v >= long threshold %v; warn events will never fire",
			cfg.WarnThreshold, cfg.LongThreshold)
	}
	return &Tracker{cfg: cfg, now: time.Now}
}

// Subscribe registers a callback for session events
func (t *Tracker) Subscribe(cb Callback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, cb)
}

// Current returns the active session, or nil. Pure read.
func (t *Tracker) Current() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Update feeds the tracker the latest observed context. A nil context means
// detection failed this poll; state is kept as-is. At most one event is
// emitted per call. Returns the active session.
func (t *Tracker) Update(ctx *activity.Context) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	if ctx == nil {
		return t.current
	}

	// Context changed (or first ever): replace session, reset fired flags
	if t.current == nil || t.current.Context.ID != ctx.ID {
		t.current = &Session{Context: ctx, StartedAt: now, LastActivityAt: now, now: t.now}
		t.warnEmitted = false
		t.longEmitted = false
		t.lastFollowUpAt = time.Time{}
		t.emit(Event{Type: EventContextChanged, Context: ctx, Duration: 0, Timestamp: now})
		return t.current
	}

	// Same context: refresh and check thresholds, long before warn so a
	// misconfigured warn >= long degrades instead of double-firing.
	t.current.LastActivityAt = now
	duration := now.Sub(t.current.StartedAt)

	switch {
	case duration >= t.cfg.LongThreshold && !t.longEmitted:
		t.longEmitted = true
		t.lastFollowUpAt = now
		t.emit(Event{Type: EventLongThreshold, Context: ctx, Duration: duration, Timestamp: now})
	case duration >= t.cfg.LongThreshold && now.Sub(t.lastFollowUpAt) >= t.cfg.FollowUpInterval:
		t.lastFollowUpAt = now
		t.emit(Event{Type: EventFollowUp, Context: ctx, Duration: duration, Timestamp: now})
	case duration >= t.cfg.WarnThreshold && !t.warnEmitted:
		t.warnEmitted = true
		t.emit(Event{Type: EventWarnThreshold, Context: ctx, Duration: duration, Timestamp: now})
	}

	return t.current
}

// emit invokes each callback, isolating panics so one bad subscriber cannot
// block the others or corrupt tracker state. Called with t.mu held.
func (t *Tracker) emit(ev Event) {
	for _, cb := range t.callbacks {
		t.safeInvoke(cb, ev)
	}
}

func (t *Tracker) safeInvoke(cb Callback, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("session", "event callback panicked: %v", r)
		}
	}()
	cb(ev)
}
