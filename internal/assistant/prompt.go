package assistant

import (
	"fmt"
	"strings"

	"github.com/tsawler/prose/v3"
)

const systemPrompt = `You are a focus assistant watching how long someone has been on the same content and what their biosignal metrics suggest about their mental state. Decide whether a short nudge would help. Be brief and concrete; never lecture.

Respond with a single JSON object: {"should_help": bool, "message": string, "reason": string, "action_type": string}. action_type is one of "hint", "break", "refocus", "encourage".`

// BuildPrompt renders the user-facing prompt from the request
func BuildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The user has been on the same %s content for %.0f seconds.\n", req.ContextType, req.Duration.Seconds())
	fmt.Fprintf(&b, "App: %s\n", req.AppName)
	if req.WindowTitle != "" {
		fmt.Fprintf(&b, "Window: %s\n", req.WindowTitle)
	}
	if req.ReadingSection != "" {
		fmt.Fprintf(&b, "Reading position: %s\n", req.ReadingSection)
	}
	fmt.Fprintf(&b, "Inferred mental state: %s\n", req.State)

	if topics := Topics(req.WindowTitle + " " + req.ReadingSection); len(topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(topics, ", "))
	}

	if m := req.Metrics; m != nil {
		var parts []string
		add := func(name string, v *float64) {
			if v != nil {
				parts = append(parts, fmt.Sprintf("%s=%.2f", name, *v))
			}
		}
		add("engagement", m.Engagement)
		add("stress", m.Stress)
		add("focus", m.Focus)
		add("relaxation", m.Relaxation)
		if len(parts) > 0 {
			fmt.Fprintf(&b, "Metrics: %s\n", strings.Join(parts, ", "))
		}
	}

	if len(req.RecentSessions) > 0 {
		b.WriteString("Recent activity:\n")
		for _, s := range req.RecentSessions {
			fmt.Fprintf(&b, "- %s | %s (%.0fs)\n", s.AppName, s.WindowTitle, s.Duration.Seconds())
		}
	}

	if req.FollowUp {
		b.WriteString("\nThe user is STILL on this content after an earlier nudge. Try a different angle.\n")
	}

	b.WriteString("\nDecide whether to help and answer in JSON.")
	return b.String()
}

// Topics extracts named entities from free text to anchor the prompt; empty
// on any extraction failure.
func Topics(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var topics []string
	for _, ent := range doc.Entities() {
		name := strings.TrimSpace(ent.Text)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		topics = append(topics, name)
		if len(topics) == 5 {
			break
		}
	}
	return topics
}
