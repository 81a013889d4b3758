package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"guildbot/bot/common"
	"guildbot/models"
	"guildbot/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const interactionTimeout = 10 * time.Second

func (b *Bot) handleComponentInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	user := common.InteractionUser(i)
	if user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	content, err := b.handleComponent(ctx, user, i.MessageComponentData().CustomID)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}
	if content == "" {
		return
	}

	if err := common.RespondWithMessage(s, i, content, true); err != nil {
		log.WithFields(log.Fields{
			"user_id": user.ID,
			"error":   err,
		}).Error("Failed to respond to component interaction")
	}
}

// handleComponent returns the reply for a button press; an empty reply means the button is not ours
func (b *Bot) handleComponent(ctx context.Context, user *discordgo.User, customID string) (string, error) {
	if customID == models.QueuesCustomID {
		return b.queueList(ctx)
	}
	if queueID, ok := models.ParseRejoinCustomID(customID); ok {
		return b.rejoin(ctx, user, queueID)
	}
	return "", nil
}

func (b *Bot) queueList(ctx context.Context) (string, error) {
	summaries, err := b.queues.ListQueues(ctx)
	if err != nil {
		return "", common.NewSystemError(err, "Failed to list queues")
	}
	return common.FormatQueueList(summaries), nil
}

// rejoin puts the user back into queueID under their main character
func (b *Bot) rejoin(ctx context.Context, user *discordgo.User, queueID int64) (string, error) {
	platformID, err := strconv.ParseInt(user.ID, 10, 64)
	if err != nil {
		return "", common.NewSystemError(err, fmt.Sprintf("Invalid Discord ID %q", user.ID))
	}

	member, err := b.members.EnsureMember(ctx, platformID, user.Username)
	if err != nil {
		return "", common.FromServiceError(err, "Failed to resolve member")
	}

	characters, err := b.members.ListCharacters(ctx, member.ID)
	if err != nil {
		return "", common.FromServiceError(err, "Failed to list characters")
	}
	if len(characters) == 0 || !characters[0].IsMain {
		return "", common.FromServiceError(service.ErrMainRequired, "Rejoin without a main character")
	}
	mainCharacter := characters[0]

	membership, err := b.queues.Join(ctx, member.ID, queueID, mainCharacter.ID)
	if err != nil {
		return "", common.FromServiceError(err, "Rejoin failed")
	}

	log.WithFields(log.Fields{
		"member_id": member.ID,
		"queue_id":  queueID,
		"character": membership.CharacterNickname,
	}).Info("Member rejoined queue from notification")

	return fmt.Sprintf("✅ You are back in the queue as **%s**.", membership.CharacterNickname), nil
}
