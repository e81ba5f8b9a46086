// Package app wires the daemon together: activity sources feed the session
// tracker, headset metrics feed the mind buffer, threshold events flow
// through the intervention gate, and outcomes fan out to storage, the
// journal, and feedback channels.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"focusd/internal/activity"
	"focusd/internal/assistant"
	"focusd/internal/collector"
	"focusd/internal/config"
	"focusd/internal/feedback"
	"focusd/internal/gate"
	"focusd/internal/logging"
	"focusd/internal/mind"
	"focusd/internal/monitor"
	"focusd/internal/session"
	"focusd/internal/store"
)

type App struct {
	cfg config.Config

	store   *store.Store
	journal *activity.Journal
	buffer  *mind.Buffer
	tracker *session.Tracker
	gate    *gate.Gate
	server  *collector.Server
	source  monitor.Source
	stale   *monitor.Staleness

	notifiers []feedback.Notifier
	discord   *feedback.DiscordNotifier

	mu        sync.Mutex
	sessionID int64             // open row in the store, 0 when none
	remoteCtx *activity.Context // most recent context from the collector

	// serializes handleActivity: the poll loop and the collector callback
	// both feed it, and the prev-read plus bookkeeping must be atomic
	actMu sync.Mutex

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New builds the daemon from config. Everything that can fail at startup
// fails here.
func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &App{
		cfg:      cfg,
		store:    st,
		journal:  activity.NewJournal(cfg.DataDir),
		buffer:   mind.NewBuffer(cfg.BufferSize),
		server:   collector.NewServer(),
		source:   monitor.NewProcessSource(cfg.WatchedApps, cfg.MinCPU),
		stale:    monitor.NewStaleness(3 * cfg.PollInterval()),
		stopChan: make(chan struct{}),
	}

	a.tracker = session.NewTracker(session.Config{
		WarnThreshold:    cfg.WarnThreshold(),
		LongThreshold:    cfg.LongThreshold(),
		FollowUpInterval: cfg.FollowUpInterval(),
	})

	asst := assistant.NewClient(cfg.AssistantBaseURL, cfg.AssistantAPIKey, cfg.AssistantModel, cfg.AssistantTimeout())
	a.gate = gate.New(gate.Config{
		Cooldown:         cfg.Cooldown(),
		AssistantTimeout: cfg.AssistantTimeout(),
	}, asst, a.buffer, st)

	a.notifiers = []feedback.Notifier{feedback.LogNotifier{}}
	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		dn, err := feedback.NewDiscordNotifier(cfg.DiscordToken, cfg.DiscordChannel)
		if err != nil {
			logging.Warn("app", "discord notifier disabled: %v", err)
		} else {
			a.discord = dn
			a.notifiers = append(a.notifiers, dn)
		}
	}

	a.wire()
	return a, nil
}

// wire connects the callback graph between components
func (a *App) wire() {
	a.server.OnActivity(func(ctx *activity.Context) {
		a.mu.Lock()
		changed := a.remoteCtx == nil || a.remoteCtx.ID != ctx.ID
		a.remoteCtx = ctx
		a.mu.Unlock()
		a.stale.MarkRemote(time.Now())
		if changed {
			err := a.journal.Log(activity.Entry{
				Kind:      activity.KindInput,
				Summary:   ctx.DisplayName(),
				ContextID: ctx.ID,
			})
			if err != nil {
				logging.Warn("app", "journal write failed: %v", err)
			}
		}
		a.handleActivity(ctx)
	})
	a.server.OnMetrics(a.buffer.Store)

	a.tracker.Subscribe(func(ev session.Event) {
		switch ev.Type {
		case session.EventWarnThreshold, session.EventLongThreshold, session.EventFollowUp:
			if err := a.journal.LogThreshold(string(ev.Type), ev.Context, ev.Duration); err != nil {
				logging.Warn("app", "journal write failed: %v", err)
			}
		}
		a.gate.OnSessionEvent(ev)
	})

	a.gate.OnState(func(ev session.Event, state mind.State, followUp bool) {
		logging.Debug("app", "state %s at %s event (%.0fs on %s)",
			state, ev.Type, ev.Duration.Seconds(), ev.Context.DisplayName())
	})

	a.gate.OnOutcome(a.handleOutcome)
}

// handleActivity does session storage bookkeeping, then advances the
// tracker. Bookkeeping must run before tracker.Update so the ending
// session's duration is still readable, and the whole sequence runs under
// actMu: two callers observing the same stale prev would otherwise both
// take the change branch and double-book the session rows.
func (a *App) handleActivity(ctx *activity.Context) {
	a.actMu.Lock()
	defer a.actMu.Unlock()

	if ctx == nil {
		a.tracker.Update(nil)
		return
	}

	prev := a.tracker.Current()
	if prev == nil || prev.Context.ID != ctx.ID {
		a.mu.Lock()
		if a.sessionID != 0 && prev != nil {
			if err := a.store.EndSession(a.sessionID, prev.Duration()); err != nil {
				logging.Warn("app", "ending session: %v", err)
			}
			a.journalSession(activity.KindSessionEnd, prev.Context, prev.Duration())
		}
		id, err := a.store.StartSession(ctx)
		if err != nil {
			logging.Warn("app", "starting session: %v", err)
			id = 0
		}
		a.sessionID = id
		a.mu.Unlock()
		a.journalSession(activity.KindSessionStart, ctx, 0)
	}

	a.tracker.Update(ctx)
}

func (a *App) journalSession(kind activity.Kind, ctx *activity.Context, d time.Duration) {
	err := a.journal.Log(activity.Entry{
		Kind:      kind,
		Summary:   ctx.DisplayName(),
		ContextID: ctx.ID,
		Duration:  d.Seconds(),
	})
	if err != nil {
		logging.Warn("app", "journal write failed: %v", err)
	}
}

// handleOutcome records what the gate did with a threshold event
func (a *App) handleOutcome(o gate.Outcome) {
	if !o.Invoked {
		logging.Debug("app", "intervention suppressed (cooldown) for %s", o.Event.Context.DisplayName())
		return
	}

	a.mu.Lock()
	sessionID := a.sessionID
	a.mu.Unlock()

	if err := a.store.RecordIntervention(sessionID, string(o.Event.Type), o.Event.Duration, o.State, o.Message, o.FollowUp); err != nil {
		logging.Warn("app", "recording intervention: %v", err)
	}
	if err := a.journal.LogIntervention(o.Event.Context, o.Event.Duration, string(o.State), o.Message, o.FollowUp); err != nil {
		logging.Warn("app", "journal write failed: %v", err)
	}

	a.server.Broadcast(o.Message)
	feedback.Fanout(a.notifiers, o.Message)
}

// Start brings the daemon up: gate worker, collector server, poll loop.
func (a *App) Start() error {
	a.gate.Start()
	if err := a.server.Start(a.cfg.ListenAddr); err != nil {
		return fmt.Errorf("starting collector: %w", err)
	}

	a.wg.Add(1)
	go a.pollLoop()

	logging.Info("app", "daemon running (poll %.0fs, warn %.0fs, long %.0fs)",
		a.cfg.PollInterval().Seconds(), a.cfg.WarnThreshold().Seconds(), a.cfg.LongThreshold().Seconds())
	return nil
}

// pollLoop ticks the tracker so thresholds fire even between payloads.
// The remote feed owns the context while it is live; the local process
// monitor takes over when it goes quiet.
func (a *App) pollLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.handleActivity(a.currentContext())
		}
	}
}

// currentContext picks the context for this tick
func (a *App) currentContext() *activity.Context {
	if a.stale.RemoteLive(time.Now()) {
		a.mu.Lock()
		ctx := a.remoteCtx
		a.mu.Unlock()
		return ctx
	}

	ctx, err := a.source.Poll()
	if err != nil {
		logging.Debug("app", "process poll failed: %v", err)
		return nil
	}
	return ctx
}

// Stop shuts the daemon down, closing the open session record.
func (a *App) Stop() {
	close(a.stopChan)
	a.wg.Wait()

	a.gate.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Stop(ctx); err != nil {
		logging.Warn("app", "collector shutdown: %v", err)
	}

	a.actMu.Lock()
	a.mu.Lock()
	if a.sessionID != 0 {
		if cur := a.tracker.Current(); cur != nil {
			if err := a.store.EndSession(a.sessionID, cur.Duration()); err != nil {
				logging.Warn("app", "closing open session: %v", err)
			}
			a.journalSession(activity.KindSessionEnd, cur.Context, cur.Duration())
		}
		a.sessionID = 0
	}
	a.mu.Unlock()
	a.actMu.Unlock()

	if a.discord != nil {
		a.discord.Close()
	}
	if err := a.store.Close(); err != nil {
		logging.Warn("app", "closing store: %v", err)
	}
	logging.Info("app", "daemon stopped")
}
