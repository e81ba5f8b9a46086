// Package collector ingests activity and headset metric payloads from
// companion clients, over WebSocket or plain HTTP, and pushes feedback
// messages back to connected clients.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"focusd/internal/activity"
	"focusd/internal/logging"
)

// Payload is the envelope every client message uses. Exactly one of the
// data fields is set, selected by Type. Metrics arrive in several shapes
// depending on the client: nested under eeg, as a flat metrics map, as a
// precomputed mental_state map, or as a bare met array.
type Payload struct {
	Type        string            `json:"type"`
	Timestamp   float64           `json:"timestamp,omitempty"`
	Activity    *ActivitySnapshot `json:"activity,omitempty"`
	EEG         *MetricsSnapshot  `json:"eeg,omitempty"`
	Metrics     map[string]any    `json:"metrics,omitempty"`
	MentalState map[string]any    `json:"mental_state,omitempty"`
	Met         any               `json:"met,omitempty"`
}

// MetricsSnapshot is the nested form headset bridges send
type MetricsSnapshot struct {
	Metrics   map[string]any `json:"metrics"`
	Timestamp float64        `json:"timestamp,omitempty"`
}

// ActivitySnapshot is what a desktop client reports about the foreground
// window. ContextID and ContextType are optional; we derive them if absent.
type ActivitySnapshot struct {
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title"`
	ContextID   string `json:"context_id,omitempty"`
	ContextType string `json:"context_type,omitempty"`
}

// ToContext converts a reported snapshot into an activity context, filling
// in derived fields the client did not supply.
func (a *ActivitySnapshot) ToContext() *activity.Context {
	if a == nil || a.AppName == "" {
		return nil
	}
	ctx := activity.New(a.AppName, a.WindowTitle)
	if a.ContextID != "" {
		ctx.ID = a.ContextID
	}
	if a.ContextType != "" {
		ctx.Type = activity.ContextType(a.ContextType)
	}
	return ctx
}

// ActivityFunc receives each activity report as it arrives
type ActivityFunc func(ctx *activity.Context)

// MetricsFunc receives each raw metrics sample as it arrives
type MetricsFunc func(raw map[string]any)

// Server accepts client connections and fans payloads out to callbacks.
type Server struct {
	mu         sync.Mutex
	onActivity []ActivityFunc
	onMetrics  []MetricsFunc
	clients    map[*websocket.Conn]bool

	feedback   string
	feedbackAt time.Time

	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

func NewServer() *Server {
	return &Server{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// local daemon, clients connect from the same machine
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// OnActivity registers a callback for incoming activity reports
func (s *Server) OnActivity(fn ActivityFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onActivity = append(s.onActivity, fn)
}

// OnMetrics registers a callback for incoming metric samples
func (s *Server) OnMetrics(fn MetricsFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMetrics = append(s.onMetrics, fn)
}

// Start begins listening on addr. Non-blocking; errors after startup are
// logged, not returned.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/feedback", s.handleFeedback)

	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	logging.Info("collector", "listening on %s", addr)

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn("collector", "server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down, closing client connections.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("collector", "upgrade failed: %v", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	n := len(s.clients)
	s.mu.Unlock()
	logging.Info("collector", "client connected (%d total)", n)

	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		logging.Info("collector", "client disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			logging.Warn("collector", "bad payload: %v", err)
			continue
		}
		s.dispatch(&p)
	}
}

// dispatch routes a decoded payload to the registered callbacks
func (s *Server) dispatch(p *Payload) {
	switch p.Type {
	case "activity":
		ctx := p.Activity.ToContext()
		if ctx == nil {
			return
		}
		for _, fn := range s.activityFns() {
			fn(ctx)
		}
	case "metrics", "eeg", "mental_state":
		raw := p.metricsMap()
		if raw == nil {
			return
		}
		for _, fn := range s.metricsFns() {
			fn(raw)
		}
	case "heartbeat":
		// keepalive only
	default:
		logging.Debug("collector", "ignoring payload type %q", p.Type)
	}
}

// metricsMap normalizes the payload's metric shapes to one raw map
func (p *Payload) metricsMap() map[string]any {
	switch {
	case p.EEG != nil && p.EEG.Metrics != nil:
		return p.EEG.Metrics
	case p.Metrics != nil:
		return p.Metrics
	case p.MentalState != nil:
		return p.MentalState
	case p.Met != nil:
		return map[string]any{"met": p.Met}
	default:
		return nil
	}
}

func (s *Server) activityFns() []ActivityFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityFunc, len(s.onActivity))
	copy(out, s.onActivity)
	return out
}

func (s *Server) metricsFns() []MetricsFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MetricsFunc, len(s.onMetrics))
	copy(out, s.onMetrics)
	return out
}

// handleMetrics accepts a one-shot metrics POST for clients that cannot
// hold a WebSocket open.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, fmt.Sprintf("bad json: %v", err), http.StatusBadRequest)
		return
	}
	for _, fn := range s.metricsFns() {
		fn(raw)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFeedback returns the most recent assistant feedback for polling
// clients.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := map[string]any{
		"feedback": s.feedback,
	}
	if !s.feedbackAt.IsZero() {
		resp["updated_at"] = s.feedbackAt.UTC().Format(time.RFC3339)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Broadcast pushes a feedback message to every connected WebSocket client
// and records it for the polling endpoint.
func (s *Server) Broadcast(message string) {
	s.mu.Lock()
	s.feedback = message
	s.feedbackAt = time.Now()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	msg := map[string]string{"type": "feedback", "feedback": message}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.Debug("collector", "write failed, dropping client: %v", err)
			c.Close()
		}
	}
}
