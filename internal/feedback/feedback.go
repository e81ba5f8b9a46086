// Package feedback delivers intervention messages to the user through
// whatever channels are configured.
package feedback

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"focusd/internal/logging"
)

// Notifier delivers one feedback message to the user
type Notifier interface {
	Notify(message string) error
}

// LogNotifier writes feedback to the daemon log. Always available.
type LogNotifier struct{}

func (LogNotifier) Notify(message string) error {
	logging.Info("feedback", "%s", message)
	return nil
}

// DiscordNotifier DMs feedback to a Discord channel.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier connects to Discord with the given bot token. The
// session is opened immediately so misconfiguration fails at startup.
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("discord token and channel id required")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("opening discord connection: %w", err)
	}
	logging.Info("feedback", "discord notifier connected (channel %s)", channelID)
	return &DiscordNotifier{session: dg, channelID: channelID}, nil
}

func (d *DiscordNotifier) Notify(message string) error {
	_, err := d.session.ChannelMessageSend(d.channelID, message)
	if err != nil {
		return fmt.Errorf("sending discord message: %w", err)
	}
	return nil
}

// Close shuts down the Discord session
func (d *DiscordNotifier) Close() error {
	return d.session.Close()
}

// Fanout sends a message to every notifier, logging failures instead of
// letting one bad channel block the rest.
func Fanout(notifiers []Notifier, message string) {
	for _, n := range notifiers {
		if err := n.Notify(message); err != nil {
			logging.Warn("feedback", "notify failed: %v", err)
		}
	}
}
