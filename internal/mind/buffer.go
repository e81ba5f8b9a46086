package mind

import (
	"sync"
	"time"
)

// DefaultCapacity covers ~30s of history at 2 Hz
const DefaultCapacity = 15

// Buffer holds the most recent metric samples in a fixed-capacity ring and
// classifies the newest classifiable one. Safe for concurrent use: the metric
// ingest loop stores while the gate classifies.
type Buffer struct {
	mu      sync.Mutex
	samples []Sample // ring storage
	head    int      // next write position
	size    int

	now func() time.Time
}

// NewBuffer creates a buffer keeping the last capacity samples
// (DefaultCapacity when capacity <= 0).
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{samples: make([]Sample, capacity), now: time.Now}
}

// Store decodes and appends a raw metrics reading, evicting the oldest sample
// beyond capacity. O(1).
func (b *Buffer) Store(raw map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples[b.head] = DecodeSample(raw, b.now())
	b.head = (b.head + 1) % len(b.samples)
	if b.size < len(b.samples) {
		b.size++
	}
}

// Classify scans from the most recent sample to the oldest and returns the
// first non-unknown result, tolerating transient null/NaN readings. Pure:
// repeated calls without new stores return the same label.
func (b *Buffer) Classify() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < b.size; i++ {
		idx := (b.head - 1 - i + len(b.samples)) % len(b.samples)
		if s := classifySample(b.samples[idx]); s != StateUnknown {
			return s
		}
	}
	return StateUnknown
}

// LastRaw returns a copy of the most recent raw metrics, or nil if the buffer
// is empty. Used to attach metric context to assistant requests.
func (b *Buffer) LastRaw() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}
	idx := (b.head - 1 + len(b.samples)) % len(b.samples)
	raw := b.samples[idx].Raw
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}

// LastSnapshot normalizes the most recent raw metrics into a Snapshot, or nil
// if the buffer is empty.
func (b *Buffer) LastSnapshot() *Snapshot {
	raw := b.LastRaw()
	if raw == nil {
		return nil
	}
	snap := ParseMet(raw)
	return &snap
}

// Len returns the number of buffered samples
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}
