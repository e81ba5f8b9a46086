// Package assistant calls the external LLM helper that decides whether and
// how to nudge the user. The rest of the system sees only the Assistant
// interface and the Decision contract.
package assistant

import (
	"context"
	"time"

	"focusd/internal/activity"
	"focusd/internal/mind"
	"focusd/internal/store"
)

// Request carries everything the helper needs to decide
type Request struct {
	AppName        string
	WindowTitle    string
	ContextType    activity.ContextType
	ReadingSection string
	Duration       time.Duration
	State          mind.State
	FollowUp       bool
	RecentSessions []store.SessionRecord
	Metrics        *mind.Snapshot
}

// Decision is the helper's structured answer
type Decision struct {
	ShouldHelp bool   `json:"should_help"`
	Message    string `json:"message"`
	Reason     string `json:"reason"`
	ActionType string `json:"action_type"`
}

// Assistant decides on an intervention. Implementations may block for
// seconds; callers bound them with the context.
type Assistant interface {
	Decide(ctx context.Context, req Request) (*Decision, error)
}
