// Package gate decides, from session events and the current mental-state
// classification, when to actually invoke the assistant. At most one
// non-follow-up intervention fires per cooldown window.
package gate

import (
	"context"
	"strings"
	"sync"
	"time"

	"focusd/internal/assistant"
	"focusd/internal/logging"
	"focusd/internal/mind"
	"focusd/internal/session"
	"focusd/internal/store"
)

// Classifier supplies the current mental state
type Classifier interface {
	Classify() mind.State
	LastSnapshot() *mind.Snapshot
}

// History supplies recent finished sessions for assistant context
type History interface {
	RecentSessions(limit int) ([]store.SessionRecord, error)
}

// Outcome describes one handled actionable event
type Outcome struct {
	Event    session.Event
	State    mind.State
	Message  string
	FollowUp bool
	Invoked  bool // false when suppressed by cooldown
}

// StateCallback observes classifications made for actionable events
type StateCallback func(ev session.Event, state mind.State, followUp bool)

// OutcomeCallback observes final gate decisions (including fallbacks)
type OutcomeCallback func(Outcome)

// Config holds gate policy
type Config struct {
	Cooldown         time.Duration // min gap between non-follow-up interventions
	AssistantTimeout time.Duration // bound on one assistant round trip
	RecentLimit      int           // sessions of history passed to the assistant
	QueueSize        int
}

// Gate serializes intervention decisions on a single worker so the cooldown
// read-modify-write is never concurrent, and slow assistant calls never stall
// the polling loops feeding OnSessionEvent.
type Gate struct {
	mu sync.Mutex

	cfg        Config
	assistant  assistant.Assistant
	classifier Classifier
	history    History

	lastActionAt   time.Time
	latestFeedback string
	feedbackAt     time.Time

	stateCallbacks   []StateCallback
	outcomeCallbacks []OutcomeCallback

	queue   chan session.Event
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	now func() time.Time
}

// New creates a gate. history may be nil.
func New(cfg Config, asst assistant.Assistant, classifier Classifier, history History) *Gate {
	if cfg.AssistantTimeout <= 0 {
		cfg.AssistantTimeout = 30 * time.Second
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Gate{
		cfg:        cfg,
		assistant:  asst,
		classifier: classifier,
		history:    history,
		queue:      make(chan session.Event, cfg.QueueSize),
		stop:       make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the decision worker
func (g *Gate) Start() {
	g.wg.Add(1)
	go g.worker()
	logging.Info("gate", "started (cooldown=%v, timeout=%v)", g.cfg.Cooldown, g.cfg.AssistantTimeout)
}

// Stop drains the worker
func (g *Gate) Stop() {
	g.stopped.Do(func() { close(g.stop) })
	g.wg.Wait()
}

// OnState registers a mental-state observer
func (g *Gate) OnState(cb StateCallback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stateCallbacks = append(g.stateCallbacks, cb)
}

// OnOutcome registers a decision observer
func (g *Gate) OnOutcome(cb OutcomeCallback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomeCallbacks = append(g.outcomeCallbacks, cb)
}

// LatestFeedback returns the last user-facing message and when it was set
func (g *Gate) LatestFeedback() (string, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latestFeedback, g.feedbackAt
}

// OnSessionEvent receives tracker events. Only long_threshold and follow_up
// are actionable; everything else is informative and dropped here. Never
// blocks the caller: a full queue sheds the event with a warning.
func (g *Gate) OnSessionEvent(ev session.Event) {
	if ev.Type != session.EventLongThreshold && ev.Type != session.EventFollowUp {
		return
	}
	select {
	case g.queue <- ev:
	default:
		logging.Warn("gate", "decision queue full, dropping %s for %s", ev.Type, ev.Context.DisplayName())
	}
}

func (g *Gate) worker() {
	defer g.wg.Done()
	for {
		select {
		case <-g.stop:
			return
		case ev := <-g.queue:
			g.handle(ev)
		}
	}
}

// handle runs one decision end to end. It never panics outward: assistant
// failures become fallback messages, observer panics are recovered.
func (g *Gate) handle(ev session.Event) {
	followUp := ev.Type == session.EventFollowUp
	state := g.classifier.Classify()

	logging.Info("gate", "%s after %.0fs on %s -> state %s",
		ev.Type, ev.Duration.Seconds(), ev.Context.DisplayName(), state)

	g.notifyState(ev, state, followUp)

	// Cooldown: explicit follow-ups bypass it, the tracker already
	// rate-limits them by the follow-up interval.
	now := g.now()
	g.mu.Lock()
	inCooldown := !followUp && !g.lastActionAt.IsZero() && now.Sub(g.lastActionAt) < g.cfg.Cooldown
	g.mu.Unlock()
	if inCooldown {
		logging.Info("gate", "cooldown active, suppressing %s", ev.Type)
		g.notifyOutcome(Outcome{Event: ev, State: state, FollowUp: followUp, Invoked: false})
		return
	}

	msg := g.invoke(ev, state, followUp)

	g.mu.Lock()
	g.latestFeedback = msg
	g.feedbackAt = g.now()
	g.lastActionAt = g.now()
	g.mu.Unlock()

	g.notifyOutcome(Outcome{Event: ev, State: state, Message: msg, FollowUp: followUp, Invoked: true})
}

// invoke calls the assistant and always returns a non-empty message
func (g *Gate) invoke(ev session.Event, state mind.State, followUp bool) string {
	req := assistant.Request{
		AppName:        ev.Context.AppName,
		WindowTitle:    ev.Context.WindowTitle,
		ContextType:    ev.Context.Type,
		ReadingSection: ev.Context.ReadingSection,
		Duration:       ev.Duration,
		State:          state,
		FollowUp:       followUp,
		Metrics:        g.classifier.LastSnapshot(),
	}
	if g.history != nil {
		recent, err := g.history.RecentSessions(g.cfg.RecentLimit)
		if err != nil {
			logging.Warn("gate", "recent sessions unavailable: %v", err)
		} else {
			req.RecentSessions = recent
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.AssistantTimeout)
	defer cancel()

	decision, err := g.safeDecide(ctx, req)
	if err != nil {
		logging.Warn("gate", "assistant failed: %v", err)
		return FallbackMessage(state)
	}
	if decision == nil || !decision.ShouldHelp {
		return FallbackMessage(state)
	}
	if msg := strings.TrimSpace(decision.Message); msg != "" {
		return msg
	}
	return FallbackMessage(state)
}

// safeDecide guards against panicking Assistant implementations
func (g *Gate) safeDecide(ctx context.Context, req assistant.Request) (d *assistant.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = panicError{r}
		}
	}()
	return g.assistant.Decide(ctx, req)
}

type panicError struct{ v any }

func (e panicError) Error() string { return "assistant panicked" }

// FallbackMessage is the deterministic per-state text used whenever the
// assistant fails or declines, so the feedback channel is never empty after
// an actionable event.
func FallbackMessage(state mind.State) string {
	switch state {
	case mind.StateStuck:
		return "You appear stuck. Try a different section or take a short break."
	case mind.StateDistracted:
		return "Your focus seems to have drifted. Try getting back to the content."
	case mind.StateFocused:
		return "Good job, keep going!"
	default:
		return "Good job, keep going!"
	}
}

func (g *Gate) notifyState(ev session.Event, state mind.State, followUp bool) {
	g.mu.Lock()
	callbacks := make([]StateCallback, len(g.stateCallbacks))
	copy(callbacks, g.stateCallbacks)
	g.mu.Unlock()
	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Warn("gate", "state callback panicked: %v", r)
				}
			}()
			cb(ev, state, followUp)
		}()
	}
}

func (g *Gate) notifyOutcome(o Outcome) {
	g.mu.Lock()
	callbacks := make([]OutcomeCallback, len(g.outcomeCallbacks))
	copy(callbacks, g.outcomeCallbacks)
	g.mu.Unlock()
	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Warn("gate", "outcome callback panicked: %v", r)
				}
			}()
			cb(o)
		}()
	}
}
