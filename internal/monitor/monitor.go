// Package monitor provides the local fallback activity source. The primary
// source is the collector feed; when no collector client is connected, this
// poller guesses the active context from the busiest watched process.
package monitor

import (
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"focusd/internal/activity"
	"focusd/internal/logging"
)

// Source produces the current activity context; nil with nil error means
// detection failed this poll, which is not an error.
type Source interface {
	Poll() (*activity.Context, error)
}

// ProcessSource watches a configured set of application process names and
// reports the one currently using the most CPU as the active context.
type ProcessSource struct {
	watched map[string]bool
	minCPU  float64 // ignore watched processes idling below this

	// cache process handles between polls so CPUPercent measures deltas
	handles map[int32]*process.Process
}

// NewProcessSource builds a source watching the given process names
// (case-insensitive). minCPU <= 0 defaults to 1%.
func NewProcessSource(watchedApps []string, minCPU float64) *ProcessSource {
	if minCPU <= 0 {
		minCPU = 1.0
	}
	watched := make(map[string]bool, len(watchedApps))
	for _, name := range watchedApps {
		watched[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return &ProcessSource{
		watched: watched,
		minCPU:  minCPU,
		handles: make(map[int32]*process.Process),
	}
}

// Poll scans watched processes and returns the busiest one as a context.
// Returns (nil, nil) when nothing watched is active enough.
func (s *ProcessSource) Poll() (*activity.Context, error) {
	if len(s.watched) == 0 {
		return nil, nil
	}

	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	seen := make(map[int32]bool)
	var bestName, bestTitle string
	bestCPU := s.minCPU

	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !s.watched[strings.ToLower(name)] {
			continue
		}
		seen[p.Pid] = true

		// Reuse the cached handle so CPUPercent reports usage since the
		// previous poll instead of process lifetime average.
		handle, ok := s.handles[p.Pid]
		if !ok {
			handle = p
			s.handles[p.Pid] = p
		}
		cpu, err := handle.CPUPercent()
		if err != nil {
			continue
		}
		if cpu >= bestCPU {
			bestCPU = cpu
			bestName = name
			bestTitle = windowTitleGuess(handle)
		}
	}

	// Drop handles for exited processes
	for pid := range s.handles {
		if !seen[pid] {
			delete(s.handles, pid)
		}
	}

	if bestName == "" {
		return nil, nil
	}
	logging.Debug("monitor", "active: %s (%.1f%% cpu) %s", bestName, bestCPU, logging.Truncate(bestTitle, 60))
	return activity.New(bestName, bestTitle), nil
}

// windowTitleGuess derives a title-like string from the command line. Without
// a window system query this is the best available identity for the work.
func windowTitleGuess(p *process.Process) string {
	cmdline, err := p.Cmdline()
	if err != nil || cmdline == "" {
		return ""
	}
	// Last argument is usually the document/path being worked on
	fields := strings.Fields(cmdline)
	if len(fields) > 1 {
		last := fields[len(fields)-1]
		if !strings.HasPrefix(last, "-") {
			return TrimTitle(last)
		}
	}
	return TrimTitle(cmdline)
}

// TrimTitle bounds a derived title to a window-title-like length
func TrimTitle(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > 80 {
		return string(runes[:80])
	}
	return s
}

// Staleness tracks whether a remote feed has gone quiet, deciding when the
// fallback source should take over. Marked from the feed's goroutine and
// read from the poll loop, so access is mutex-guarded.
type Staleness struct {
	mu         sync.Mutex
	lastRemote time.Time
	window     time.Duration
}

// NewStaleness considers the remote feed dead after window of silence
func NewStaleness(window time.Duration) *Staleness {
	return &Staleness{window: window}
}

// MarkRemote records that remote activity data just arrived
func (s *Staleness) MarkRemote(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRemote = t
}

// RemoteLive reports whether remote data arrived within the window
func (s *Staleness) RemoteLive(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastRemote.IsZero() && now.Sub(s.lastRemote) < s.window
}
