package bot

import (
	"context"
	"fmt"
	"strconv"

	"guildbot/bot/common"
	"guildbot/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultDMRate keeps direct messages under the global Discord rate limit
	DefaultDMRate  = rate.Limit(5)
	DefaultDMBurst = 5
)

// directMessenger is the part of discordgo.Session used to send DMs
type directMessenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier delivers direct messages with optional buttons
type DiscordNotifier struct {
	session directMessenger
	limiter *rate.Limiter
}

// NewDiscordNotifier creates a notifier throttled to limit messages per second
func NewDiscordNotifier(session *discordgo.Session, limit rate.Limit, burst int) *DiscordNotifier {
	return newDiscordNotifier(session, limit, burst)
}

func newDiscordNotifier(session directMessenger, limit rate.Limit, burst int) *DiscordNotifier {
	if limit <= 0 {
		limit = DefaultDMRate
	}
	if burst <= 0 {
		burst = DefaultDMBurst
	}
	return &DiscordNotifier{
		session: session,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Notify sends text to the member's DM channel
func (n *DiscordNotifier) Notify(ctx context.Context, platformID int64, text string, actions []models.NotificationAction) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for DM rate limit: %w", err)
	}

	userID := strconv.FormatInt(platformID, 10)
	channel, err := n.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel for %s: %w", userID, err)
	}

	message := &discordgo.MessageSend{Content: text}
	if len(actions) > 0 {
		buttons := make([]discordgo.Button, 0, len(actions))
		for _, action := range actions {
			buttons = append(buttons, discordgo.Button{
				Label:    action.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: action.CustomID,
			})
		}
		message.Components = common.ActionRows(buttons...)
	}

	if _, err := n.session.ChannelMessageSendComplex(channel.ID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send DM to %s: %w", userID, err)
	}

	log.WithFields(log.Fields{
		"platform_id": platformID,
		"actions":     len(actions),
	}).Debug("Direct message sent")

	return nil
}
