package common

import (
	"github.com/bwmarrin/discordgo"
)

// RespondWithMessage sends a text interaction response
func RespondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{
		Content: content,
	}

	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// RespondWithSuccess sends a success message
func RespondWithSuccess(s *discordgo.Session, i *discordgo.InteractionCreate, message string, ephemeral bool) error {
	return RespondWithMessage(s, i, "✅ "+message, ephemeral)
}

// ActionRows lays buttons out one per row
func ActionRows(buttons ...discordgo.Button) []discordgo.MessageComponent {
	rows := make([]discordgo.MessageComponent, 0, len(buttons))
	for _, button := range buttons {
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{button},
		})
	}
	return rows
}
