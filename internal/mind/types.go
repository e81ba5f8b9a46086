// Package mind turns buffered biosignal performance metrics into a coarse
// mental-state label. It consumes pre-computed scalars in [0,1]; no signal
// processing happens here.
package mind

import (
	"math"
	"time"
)

// State is the inferred mental state
type State string

const (
	StateFocused    State = "focused"    // actively working
	StateStuck      State = "stuck"      // blocked, frustrated, needing help
	StateDistracted State = "distracted" // mind wandering
	StateUnknown    State = "unknown"    // no metrics or not classifiable
)

// Schema tags which metric vocabulary a sample arrived in. Decoded once at
// ingestion so classification never re-sniffs the raw map.
type Schema int

const (
	SchemaUnknown Schema = iota
	SchemaMN8            // attention + cognitiveStress
	SchemaPerf           // eng, attention, str, rel performance metrics
)

// Sample is one decoded metric reading. Absent and NaN values are nil; zero
// is a valid low-end reading and is kept.
type Sample struct {
	At     time.Time
	Schema Schema

	// MN8 fields
	Attention       *float64
	CognitiveStress *float64

	// Performance-metric fields (Attention is shared with MN8)
	Eng        *float64
	Stress     *float64
	Relaxation *float64

	Raw map[string]any // original payload, kept for traceability
}

// DecodeSample classifies the raw metrics map into a tagged sample.
func DecodeSample(raw map[string]any, at time.Time) Sample {
	s := Sample{At: at, Raw: raw}

	attention := numField(raw, "attention")
	cogStress := numField(raw, "cognitiveStress")
	if attention != nil && cogStress != nil {
		s.Schema = SchemaMN8
		s.Attention = attention
		s.CognitiveStress = cogStress
		return s
	}

	eng := numField(raw, "eng")
	if eng == nil && attention == nil {
		return s // SchemaUnknown
	}
	s.Schema = SchemaPerf
	s.Eng = eng
	s.Attention = attention
	s.Stress = numField(raw, "str")
	s.Relaxation = numField(raw, "rel")
	return s
}

// numField extracts a numeric field, treating NaN and non-numeric values as
// absent rather than zero.
func numField(m map[string]any, key string) *float64 {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// Snapshot carries already-normalized metrics for layers that have a single
// reading rather than buffer access. Nil fields are absent, not zero.
type Snapshot struct {
	Engagement *float64 `json:"engagement,omitempty"`
	Stress     *float64 `json:"stress,omitempty"`
	Focus      *float64 `json:"focus,omitempty"`
	Relaxation *float64 `json:"relaxation,omitempty"`
	Excitement *float64 `json:"excitement,omitempty"`
	Interest   *float64 `json:"interest,omitempty"`
	Raw        any      `json:"metrics,omitempty"`
}
