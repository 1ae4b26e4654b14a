package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

// Messenger delivers notifications through a Discord session. discordgo does
// not accept a context on send, so cancellation is checked before each call.
type Messenger struct {
	session *discordgo.Session
	logger  *logging.Logger
}

func NewMessenger(session *discordgo.Session, logger *logging.Logger) *Messenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Messenger{session: session, logger: logger}
}

// OpenSession builds and opens a gateway session for the given bot token.
func OpenSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord gateway: %w", err)
	}
	return session, nil
}

func (m *Messenger) SendReminder(ctx context.Context, channelID string, rec match.Match, offsetMinutes int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.session.ChannelMessageSendEmbed(channelID, buildReminderEmbed(rec, offsetMinutes)); err != nil {
		return fmt.Errorf("send reminder embed channel=%s match=%d: %w", channelID, rec.ID, err)
	}
	return nil
}

func (m *Messenger) SendResult(ctx context.Context, channelID string, rec match.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.session.ChannelMessageSendEmbed(channelID, buildResultEmbed(rec)); err != nil {
		return fmt.Errorf("send result embed channel=%s match=%d: %w", channelID, rec.ID, err)
	}
	return nil
}

// LogMessenger writes deliveries to the log instead of Discord. It backs
// local runs without a bot token.
type LogMessenger struct {
	logger *logging.Logger
}

func NewLogMessenger(logger *logging.Logger) *LogMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) SendReminder(ctx context.Context, channelID string, rec match.Match, offsetMinutes int) error {
	m.logger.InfoContext(ctx, "reminder delivery (dry run)",
		"channel_id", channelID,
		"match_id", rec.ID,
		"offset_minutes", offsetMinutes,
	)
	return nil
}

func (m *LogMessenger) SendResult(ctx context.Context, channelID string, rec match.Match) error {
	m.logger.InfoContext(ctx, "result delivery (dry run)",
		"channel_id", channelID,
		"match_id", rec.ID,
		"status", rec.Status,
	)
	return nil
}
