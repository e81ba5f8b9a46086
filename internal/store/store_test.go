package store

import (
	"path/filepath"
	"testing"
	"time"

	"focusd/internal/activity"
	"focusd/internal/mind"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	ctx := activity.New("Cursor", "tracker.go")
	id, err := s.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero session id")
	}

	// Open sessions are excluded from recents
	recents, err := s.RecentSessions(10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(recents) != 0 {
		t.Errorf("open session leaked into recents: %+v", recents)
	}

	if err := s.EndSession(id, 95*time.Second); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	recents, err = s.RecentSessions(10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(recents) != 1 {
		t.Fatalf("got %d recents, want 1", len(recents))
	}
	rec := recents[0]
	if rec.AppName != "Cursor" || rec.WindowTitle != "tracker.go" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Duration != 95*time.Second {
		t.Errorf("duration = %v, want 95s", rec.Duration)
	}
}

func TestRecentSessionsOrderAndLimit(t *testing.T) {
	s := openTestStore(t)

	for i, title := range []string{"first", "second", "third"} {
		id, err := s.StartSession(activity.New("Firefox", title))
		if err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		if err := s.EndSession(id, time.Duration(i+1)*time.Minute); err != nil {
			t.Fatalf("EndSession: %v", err)
		}
		time.Sleep(5 * time.Millisecond) // distinct ended_at
	}

	recents, err := s.RecentSessions(2)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(recents) != 2 {
		t.Fatalf("got %d recents, want 2", len(recents))
	}
	if recents[0].WindowTitle != "third" {
		t.Errorf("newest first: got %q", recents[0].WindowTitle)
	}
}

func TestOpenSession(t *testing.T) {
	s := openTestStore(t)

	open, err := s.OpenSession()
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if open != nil {
		t.Fatalf("fresh store has no open session, got %+v", open)
	}

	id, err := s.StartSession(activity.New("iTerm2", "~/src"))
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	open, err = s.OpenSession()
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if open == nil || open.AppName != "iTerm2" {
		t.Fatalf("expected the running session, got %+v", open)
	}

	if err := s.EndSession(id, time.Minute); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	open, err = s.OpenSession()
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if open != nil {
		t.Errorf("ended session still reported open: %+v", open)
	}
}

func TestRecordIntervention(t *testing.T) {
	s := openTestStore(t)

	ctx := activity.New("Preview", "paper.pdf – Page 7 of 21")
	id, _ := s.StartSession(ctx)

	if err := s.RecordIntervention(id, "long_threshold", 3*time.Minute, mind.StateStuck, "try the appendix", false); err != nil {
		t.Fatalf("RecordIntervention: %v", err)
	}
	// Unknown state stored as NULL, no session row
	if err := s.RecordIntervention(0, "follow_up", 5*time.Minute, mind.StateUnknown, "still there?", true); err != nil {
		t.Fatalf("RecordIntervention without session: %v", err)
	}
}
