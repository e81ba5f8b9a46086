package assistant

import (
	"strings"
	"testing"
	"time"

	"focusd/internal/activity"
	"focusd/internal/mind"
	"focusd/internal/store"
)

func fptr(f float64) *float64 { return &f }

func TestBuildPrompt(t *testing.T) {
	req := Request{
		AppName:        "Preview",
		WindowTitle:    "attention_is_all_you_need.pdf – Page 7 of 21",
		ContextType:    activity.TypePDF,
		ReadingSection: "Page 7 of 21",
		Duration:       185 * time.Second,
		State:          mind.StateStuck,
		Metrics:        &mind.Snapshot{Engagement: fptr(0.35), Stress: fptr(0.62)},
		RecentSessions: []store.SessionRecord{
			{AppName: "Cursor", WindowTitle: "model.py", Duration: 240 * time.Second},
		},
	}

	prompt := BuildPrompt(req)
	for _, want := range []string{
		"185 seconds",
		"App: Preview",
		"Page 7 of 21",
		"Inferred mental state: stuck",
		"engagement=0.35",
		"stress=0.62",
		"Cursor | model.py (240s)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "STILL on this content") {
		t.Error("non-follow-up prompt should not carry the follow-up hint")
	}

	req.FollowUp = true
	if !strings.Contains(BuildPrompt(req), "STILL on this content") {
		t.Error("follow-up prompt missing the follow-up hint")
	}
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(`Here you go:
{"should_help": true, "message": "Skim section 3 first.", "reason": "stuck on dense math", "action_type": "hint"}`)
	if err != nil {
		t.Fatalf("ParseDecision: %v", err)
	}
	if !d.ShouldHelp || d.Message != "Skim section 3 first." || d.ActionType != "hint" {
		t.Errorf("unexpected decision: %+v", d)
	}

	if _, err := ParseDecision("I cannot answer that."); err == nil {
		t.Error("expected error for output without JSON")
	}
	if _, err := ParseDecision("{not json}"); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
