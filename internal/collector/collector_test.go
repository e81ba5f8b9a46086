package collector

import (
	"encoding/json"
	"testing"

	"focusd/internal/activity"
)

func TestActivitySnapshotToContext(t *testing.T) {
	snap := &ActivitySnapshot{AppName: "Preview", WindowTitle: "paper.pdf - Page 3 of 20"}
	ctx := snap.ToContext()
	if ctx == nil {
		t.Fatal("expected context")
	}
	if ctx.Type != activity.TypePDF {
		t.Errorf("expected pdf type, got %s", ctx.Type)
	}
	if ctx.ID != activity.ContextID("Preview", "paper.pdf - Page 3 of 20") {
		t.Errorf("derived ID mismatch: %s", ctx.ID)
	}
}

func TestActivitySnapshotKeepsClientFields(t *testing.T) {
	snap := &ActivitySnapshot{
		AppName:     "firefox",
		WindowTitle: "docs",
		ContextID:   "custom::id",
		ContextType: "website",
	}
	ctx := snap.ToContext()
	if ctx.ID != "custom::id" {
		t.Errorf("client context_id should win, got %s", ctx.ID)
	}
	if ctx.Type != activity.TypeWebsite {
		t.Errorf("client context_type should win, got %s", ctx.Type)
	}
}

func TestActivitySnapshotEmptyApp(t *testing.T) {
	if (&ActivitySnapshot{WindowTitle: "x"}).ToContext() != nil {
		t.Error("expected nil context for empty app name")
	}
	var nilSnap *ActivitySnapshot
	if nilSnap.ToContext() != nil {
		t.Error("expected nil context for nil snapshot")
	}
}

func TestDispatchActivity(t *testing.T) {
	s := NewServer()
	var got *activity.Context
	s.OnActivity(func(ctx *activity.Context) { got = ctx })

	raw := []byte(`{"type":"activity","activity":{"app_name":"code","window_title":"main.go"}}`)
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	s.dispatch(&p)

	if got == nil || got.AppName != "code" {
		t.Fatalf("activity callback not invoked correctly: %+v", got)
	}
}

func TestDispatchMetrics(t *testing.T) {
	s := NewServer()
	var got map[string]any
	s.OnMetrics(func(raw map[string]any) { got = raw })

	raw := []byte(`{"type":"eeg","metrics":{"attention":0.7,"cognitiveStress":0.2}}`)
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	s.dispatch(&p)

	if got == nil {
		t.Fatal("metrics callback not invoked")
	}
	if got["attention"] != 0.7 {
		t.Errorf("attention = %v", got["attention"])
	}
}

func TestDispatchBareMetArray(t *testing.T) {
	s := NewServer()
	var got map[string]any
	s.OnMetrics(func(raw map[string]any) { got = raw })

	raw := []byte(`{"type":"metrics","met":[0.5,0.1,0.2,0.3,0.6,0.7]}`)
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	s.dispatch(&p)

	if got == nil {
		t.Fatal("metrics callback not invoked")
	}
	if _, ok := got["met"]; !ok {
		t.Error("bare met array should be wrapped under met key")
	}
}

func TestDispatchNestedEEG(t *testing.T) {
	s := NewServer()
	var got map[string]any
	s.OnMetrics(func(raw map[string]any) { got = raw })

	raw := []byte(`{"type":"eeg","eeg":{"metrics":{"eng":0.6,"str":0.3},"timestamp":1700000000}}`)
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	s.dispatch(&p)

	if got == nil || got["eng"] != 0.6 {
		t.Fatalf("nested eeg metrics not extracted: %v", got)
	}
}

func TestDispatchMentalState(t *testing.T) {
	s := NewServer()
	var got map[string]any
	s.OnMetrics(func(raw map[string]any) { got = raw })

	raw := []byte(`{"type":"mental_state","mental_state":{"attention":0.8,"cognitiveStress":0.1}}`)
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	s.dispatch(&p)

	if got == nil || got["attention"] != 0.8 {
		t.Fatalf("mental_state map not routed to metrics: %v", got)
	}
}

func TestDispatchUnknownTypeIgnored(t *testing.T) {
	s := NewServer()
	called := false
	s.OnActivity(func(*activity.Context) { called = true })
	s.OnMetrics(func(map[string]any) { called = true })

	s.dispatch(&Payload{Type: "ping"})
	s.dispatch(&Payload{Type: "heartbeat"})
	if called {
		t.Error("unknown and heartbeat payloads should not invoke callbacks")
	}
}
