package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordSender delivers notifications to Discord channels.
// The recipient is a channel ID.
type DiscordSender struct {
	session *discordgo.Session
}

// NewDiscordSender creates a Discord sender for the given bot token.
// The session uses plain REST calls; no gateway connection is opened.
func NewDiscordSender(botToken string) (*DiscordSender, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordSender{session: session}, nil
}

// Send delivers one message to a channel.
func (s *DiscordSender) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.session.ChannelMessageSend(recipient, "**"+subject+"**\n"+body)
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}
