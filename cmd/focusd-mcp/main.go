// focusd-mcp exposes the daemon's session history, journal, and intervention
// log as MCP tools so an agent can inspect what the user has been working on.
//
// It reads the same data directory the daemon writes to: the sqlite session
// store and the JSONL journal. The daemon does not need to be running, but
// the data reflects whatever it last recorded.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"focusd/internal/activity"
	"focusd/internal/config"
	"focusd/internal/store"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("FOCUSD_CONFIG")
	if configPath == "" {
		configPath = "focusd.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"focusd-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(currentSessionTool(), makeCurrentSessionHandler(cfg))
	s.AddTool(recentSessionsTool(), makeRecentSessionsHandler(cfg))
	s.AddTool(latestFeedbackTool(), makeLatestFeedbackHandler(cfg))
	s.AddTool(recentInterventionsTool(), makeJournalHandler(cfg, activity.KindIntervention))
	s.AddTool(recentThresholdsTool(), makeJournalHandler(cfg, activity.KindThreshold))
	s.AddTool(journalTool(), makeFullJournalHandler(cfg))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func currentSessionTool() mcp.Tool {
	return mcp.NewTool("current_session",
		mcp.WithDescription("Return the session the daemon is currently tracking (app, window title, elapsed time), or a message when nothing is active."),
	)
}

func makeCurrentSessionHandler(cfg config.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := store.Open(cfg.DBPath())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
		}
		defer st.Close()

		open, err := st.OpenSession()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to query session: %v", err)), nil
		}
		if open == nil {
			return mcp.NewToolResultText("No session is currently active."), nil
		}
		return jsonResult(open)
	}
}

func latestFeedbackTool() mcp.Tool {
	return mcp.NewTool("latest_feedback",
		mcp.WithDescription("Return the most recent feedback message delivered to the user, with the mental state and context it was triggered by."),
	)
}

func makeLatestFeedbackHandler(cfg config.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		j := activity.NewJournal(cfg.DataDir)
		entries, err := j.ByKind(activity.KindIntervention, 1)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read journal: %v", err)), nil
		}
		if len(entries) == 0 {
			return mcp.NewToolResultText("No feedback has been delivered yet."), nil
		}
		return jsonResult(entries[0])
	}
}

func recentSessionsTool() mcp.Tool {
	return mcp.NewTool("recent_sessions",
		mcp.WithDescription("List the most recent completed focus sessions: app, window title, context type, duration, start time."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum sessions to return (default 10)"),
		),
	)
}

func makeRecentSessionsHandler(cfg config.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := argLimit(req, 10)

		st, err := store.Open(cfg.DBPath())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to open store: %v", err)), nil
		}
		defer st.Close()

		sessions, err := st.RecentSessions(limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to query sessions: %v", err)), nil
		}
		return jsonResult(sessions)
	}
}

func recentInterventionsTool() mcp.Tool {
	return mcp.NewTool("recent_interventions",
		mcp.WithDescription("List recent intervention messages delivered to the user, with the mental state and session duration that triggered each one."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (default 10)"),
		),
	)
}

func recentThresholdsTool() mcp.Tool {
	return mcp.NewTool("recent_thresholds",
		mcp.WithDescription("List recent session threshold crossings (warn, long, follow-up) with context and duration."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (default 10)"),
		),
	)
}

func makeJournalHandler(cfg config.Config, kind activity.Kind) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := argLimit(req, 10)

		j := activity.NewJournal(cfg.DataDir)
		entries, err := j.ByKind(kind, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read journal: %v", err)), nil
		}
		return jsonResult(entries)
	}
}

func journalTool() mcp.Tool {
	return mcp.NewTool("journal",
		mcp.WithDescription("Return the most recent journal entries of every kind: session starts and ends, threshold crossings, interventions, errors."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (default 20)"),
		),
	)
}

func makeFullJournalHandler(cfg config.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := argLimit(req, 20)

		j := activity.NewJournal(cfg.DataDir)
		entries, err := j.Recent(limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read journal: %v", err)), nil
		}
		return jsonResult(entries)
	}
}

func argLimit(req mcp.CallToolRequest, def int) int {
	args, _ := req.Params.Arguments.(map[string]any)
	if l, ok := args["limit"].(float64); ok && l > 0 {
		return int(l)
	}
	return def
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
