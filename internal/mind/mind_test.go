package mind

import (
	"math"
	"testing"
	"time"
)

func fptr(f float64) *float64 { return &f }

func timeNowForTest() time.Time {
	return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
}

func TestClassifyMN8Schema(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want State
	}{
		{"focused", map[string]any{"attention": 0.7, "cognitiveStress": 0.2}, StateFocused},
		{"stuck", map[string]any{"attention": 0.5, "cognitiveStress": 0.6}, StateStuck},
		{"distracted", map[string]any{"attention": 0.2, "cognitiveStress": 0.5}, StateDistracted},
		{"ambiguous", map[string]any{"attention": 0.45, "cognitiveStress": 0.5}, StateUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuffer(5)
			b.Store(tc.raw)
			if got := b.Classify(); got != tc.want {
				t.Errorf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyPerfSchema(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want State
	}{
		{"focused", map[string]any{"eng": 0.75, "attention": 0.8, "str": 0.2, "rel": 0.5}, StateFocused},
		{"stuck", map[string]any{"eng": 0.5, "str": 0.7}, StateStuck},
		{"distracted", map[string]any{"eng": 0.2, "attention": 0.25, "str": 0.3, "rel": 0.6}, StateDistracted},
		{"eng proxy when attention absent", map[string]any{"eng": 0.6, "str": 0.3}, StateFocused},
		{"low relaxation blocks focused", map[string]any{"attention": 0.6, "str": 0.2, "rel": 0.1}, StateUnknown},
		{"no attention signal", map[string]any{"str": 0.7, "rel": 0.5}, StateUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuffer(5)
			b.Store(tc.raw)
			if got := b.Classify(); got != tc.want {
				t.Errorf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

// TestMN8PreferredOverPerf: when both schemas are present, the MN8 pair wins.
func TestMN8PreferredOverPerf(t *testing.T) {
	b := NewBuffer(5)
	// Perf fields say focused, MN8 fields say stuck
	b.Store(map[string]any{
		"eng": 0.8, "str": 0.1, "rel": 0.6,
		"attention": 0.5, "cognitiveStress": 0.6,
	})
	if got := b.Classify(); got != StateStuck {
		t.Errorf("Classify() = %s, want stuck (MN8 schema preferred)", got)
	}
}

func TestClassifyEmptyBuffer(t *testing.T) {
	b := NewBuffer(5)
	if got := b.Classify(); got != StateUnknown {
		t.Errorf("Classify() on empty buffer = %s, want unknown", got)
	}
}

// TestClassifySkipsUnclassifiable: the newest classifiable sample wins even
// when newer samples are null or NaN.
func TestClassifySkipsUnclassifiable(t *testing.T) {
	b := NewBuffer(10)
	b.Store(map[string]any{"attention": 0.8, "cognitiveStress": 0.2}) // focused
	b.Store(map[string]any{})                                         // unknown
	b.Store(map[string]any{"attention": math.NaN(), "cognitiveStress": math.NaN()})
	if got := b.Classify(); got != StateFocused {
		t.Errorf("Classify() = %s, want focused from older sample", got)
	}
}

// TestNaNTreatedAsAbsent: NaN must not read as zero (zero is a valid value).
func TestNaNTreatedAsAbsent(t *testing.T) {
	s := DecodeSample(map[string]any{"attention": math.NaN(), "cognitiveStress": 0.6, "eng": 0.5, "str": 0.7}, timeNowForTest())
	if s.Schema != SchemaPerf {
		t.Fatalf("schema = %v, want perf fallback when MN8 attention is NaN", s.Schema)
	}
	if s.Attention != nil {
		t.Error("NaN attention should decode as absent")
	}
	zero := DecodeSample(map[string]any{"attention": 0.0, "cognitiveStress": 0.6}, timeNowForTest())
	if zero.Schema != SchemaMN8 || zero.Attention == nil || *zero.Attention != 0 {
		t.Error("zero attention is a valid reading, not absent")
	}
}

// TestClassifyDeterministic: without new stores, repeated classification
// returns the same label.
func TestClassifyDeterministic(t *testing.T) {
	b := NewBuffer(5)
	b.Store(map[string]any{"eng": 0.2, "attention": 0.25, "str": 0.3, "rel": 0.6})
	first := b.Classify()
	for i := 0; i < 10; i++ {
		if got := b.Classify(); got != first {
			t.Fatalf("classification changed from %s to %s on call %d", first, got, i)
		}
	}
}

// TestBufferEviction: only the newest capacity samples are kept.
func TestBufferEviction(t *testing.T) {
	b := NewBuffer(3)
	b.Store(map[string]any{"attention": 0.8, "cognitiveStress": 0.2}) // focused, will be evicted
	for i := 0; i < 3; i++ {
		b.Store(map[string]any{"attention": 0.2, "cognitiveStress": 0.4}) // distracted
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
	if got := b.Classify(); got != StateDistracted {
		t.Errorf("Classify() = %s, want distracted after eviction", got)
	}
}

func TestLastRaw(t *testing.T) {
	b := NewBuffer(5)
	if b.LastRaw() != nil {
		t.Error("LastRaw() on empty buffer should be nil")
	}
	b.Store(map[string]any{"eng": 0.4})
	b.Store(map[string]any{"eng": 0.9})
	raw := b.LastRaw()
	if raw == nil || raw["eng"] != 0.9 {
		t.Errorf("LastRaw() = %v, want most recent sample", raw)
	}
	raw["eng"] = 0.0 // caller mutation must not reach the buffer
	if again := b.LastRaw(); again["eng"] != 0.9 {
		t.Error("LastRaw() exposed internal map")
	}
}

func TestParseMetScalarMap(t *testing.T) {
	snap := ParseMet(map[string]any{"met": map[string]any{
		"eng": 0.55, "str": 0.4, "rel": 0.5, "attention": 0.7, "int": 0.45,
	}})
	if snap.Engagement == nil || *snap.Engagement != 0.55 {
		t.Errorf("Engagement = %v, want 0.55", snap.Engagement)
	}
	if snap.Stress == nil || *snap.Stress != 0.4 {
		t.Errorf("Stress = %v, want 0.4", snap.Stress)
	}
	if snap.Focus == nil || *snap.Focus != 0.7 {
		t.Errorf("Focus = %v, want 0.7 (attention alias)", snap.Focus)
	}
	if snap.Interest == nil || *snap.Interest != 0.45 {
		t.Errorf("Interest = %v, want 0.45", snap.Interest)
	}
}

func TestParseMetPairedArray(t *testing.T) {
	// [isActive, eng, isActive, exc, lex, isActive, str, isActive, rel, isActive, int, isActive, attention]
	snap := ParseMet(map[string]any{"met": []any{
		true, 0.65, true, 0.42, 0.38, true, 0.55, true, 0.48, true, 0.5, true, 0.6,
	}})
	if snap.Engagement == nil || *snap.Engagement != 0.65 {
		t.Errorf("Engagement = %v, want 0.65", snap.Engagement)
	}
	if snap.Stress == nil || *snap.Stress != 0.55 {
		t.Errorf("Stress = %v, want 0.55", snap.Stress)
	}
	if snap.Relaxation == nil || *snap.Relaxation != 0.48 {
		t.Errorf("Relaxation = %v, want 0.48", snap.Relaxation)
	}
	if snap.Focus == nil || *snap.Focus != 0.6 {
		t.Errorf("Focus = %v, want 0.6", snap.Focus)
	}
}

func TestParseMetFlatArray(t *testing.T) {
	snap := ParseMet(map[string]any{"met": []any{0.6, 0.45, 0.5, 0.35, 0.7}})
	if snap.Engagement == nil || *snap.Engagement != 0.6 {
		t.Errorf("Engagement = %v, want 0.6", snap.Engagement)
	}
	if snap.Stress == nil || *snap.Stress != 0.35 {
		t.Errorf("Stress = %v, want 0.35", snap.Stress)
	}
	if snap.Focus == nil || *snap.Focus != 0.7 {
		t.Errorf("Focus = %v, want 0.7 (attention position)", snap.Focus)
	}
}

func TestParseMetUnrecognized(t *testing.T) {
	snap := ParseMet(map[string]any{"met": "garbage"})
	if snap.Engagement != nil || snap.Stress != nil || snap.Focus != nil {
		t.Error("unrecognized met shape should produce an empty snapshot")
	}
	if snap.Raw == nil {
		t.Error("Raw payload should be preserved for traceability")
	}
}

func TestLabelFromSnapshot(t *testing.T) {
	cases := []struct {
		name string
		snap *Snapshot
		want State
	}{
		{"nil snapshot", nil, StateUnknown},
		{"stuck", &Snapshot{Engagement: fptr(0.3), Stress: fptr(0.6), Focus: fptr(0.3)}, StateStuck},
		{"distracted", &Snapshot{Engagement: fptr(0.5), Stress: fptr(0.3), Focus: fptr(0.2)}, StateDistracted},
		{"focused", &Snapshot{Engagement: fptr(0.6), Stress: fptr(0.3), Focus: fptr(0.7)}, StateFocused},
		{"missing fields default focused", &Snapshot{}, StateFocused},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LabelFromSnapshot(tc.snap); got != tc.want {
				t.Errorf("LabelFromSnapshot() = %s, want %s", got, tc.want)
			}
		})
	}
}
