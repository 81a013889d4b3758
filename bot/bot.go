package bot

import (
	"context"
	"fmt"

	"guildbot/models"
	"guildbot/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token   string
	GuildID string
}

// memberDirectory is the slice of the registry the bot needs
type memberDirectory interface {
	EnsureMember(ctx context.Context, platformID int64, handle string) (*models.Member, error)
	ListCharacters(ctx context.Context, memberID int64) ([]*models.Character, error)
}

// queueDesk is the slice of the queue engine the bot needs
type queueDesk interface {
	ListQueues(ctx context.Context) ([]*models.QueueSummary, error)
	Join(ctx context.Context, memberID, queueID, characterID int64) (*models.Membership, error)
}

var (
	_ memberDirectory = (service.RegistryService)(nil)
	_ queueDesk       = (service.QueueService)(nil)
)

type Bot struct {
	config  Config
	session *discordgo.Session
	members memberDirectory
	queues  queueDesk
}

// New creates the Discord session. Call Open to connect.
func New(config Config, registryService service.RegistryService, queueService service.QueueService) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	bot := &Bot{
		config:  config,
		session: dg,
		members: registryService,
		queues:  queueService,
	}

	// Notification buttons are the only interactions handled here
	dg.AddHandler(bot.handleComponentInteraction)

	return bot, nil
}

// Open connects the websocket
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	log.WithField("guild_id", b.config.GuildID).Info("Discord session opened")
	return nil
}

// Session exposes the underlying session for the notifier
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

func (b *Bot) Close() error {
	return b.session.Close()
}
