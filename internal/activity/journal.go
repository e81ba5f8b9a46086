package activity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a journal entry records
type Kind string

const (
	KindInput        Kind = "input"        // Activity observation received
	KindSessionStart Kind = "session_start"
	KindSessionEnd   Kind = "session_end"
	KindThreshold    Kind = "threshold"    // Session duration crossed a boundary
	KindIntervention Kind = "intervention" // Gate decided and produced feedback
	KindError        Kind = "error"
)

// Entry is a single journal record
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Kind      Kind           `json:"kind"`
	Summary   string         `json:"summary"`
	ContextID string         `json:"context_id,omitempty"`
	Duration  float64        `json:"duration_sec,omitempty"`
	State     string         `json:"mental_state,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Journal is a durable JSONL log of everything the daemon observed and did.
// It is the append/query log the rest of the system treats as opaque.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal creates a journal writing to dir/journal.jsonl
func NewJournal(dir string) *Journal {
	return &Journal{path: filepath.Join(dir, "journal.jsonl")}
}

// Log appends an entry, filling in ID and timestamp when missing.
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LogThreshold records a session threshold crossing
func (j *Journal) LogThreshold(event string, ctx *Context, duration time.Duration) error {
	return j.Log(Entry{
		Kind:      KindThreshold,
		Summary:   event + ": " + ctx.DisplayName(),
		ContextID: ctx.ID,
		Duration:  duration.Seconds(),
		Data:      map[string]any{"event": event},
	})
}

// LogIntervention records a gate decision and the message shown to the user
func (j *Journal) LogIntervention(ctx *Context, duration time.Duration, state, message string, followUp bool) error {
	return j.Log(Entry{
		Kind:      KindIntervention,
		Summary:   "intervention: " + ctx.DisplayName(),
		ContextID: ctx.ID,
		Duration:  duration.Seconds(),
		State:     state,
		Data: map[string]any{
			"message":   message,
			"follow_up": followUp,
		},
	})
}

// LogError records a recovered failure
func (j *Journal) LogError(summary string, err error) error {
	return j.Log(Entry{
		Kind:    KindError,
		Summary: summary,
		Data:    map[string]any{"error": err.Error()},
	})
}

// Recent returns the last n entries
func (j *Journal) Recent(n int) ([]Entry, error) {
	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}
	if n >= len(entries) {
		return entries, nil
	}
	return entries[len(entries)-n:], nil
}

// ByKind returns the most recent entries of one kind, newest first
func (j *Journal) ByKind(k Kind, limit int) ([]Entry, error) {
	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}
	var result []Entry
	for i := len(entries) - 1; i >= 0 && len(result) < limit; i-- {
		if entries[i].Kind == k {
			result = append(result, entries[i])
		}
	}
	return result, nil
}

func (j *Journal) readAll() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
