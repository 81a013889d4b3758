package common

import (
	"errors"
	"fmt"

	"guildbot/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const genericErrorMessage = "Something went wrong. Please try again later."

// BotError represents a structured error with user-facing and internal messages
type BotError struct {
	UserMessage string // Message shown to Discord user
	LogMessage  string // Internal message for logging
	System      bool   // Unexpected failure rather than a rejected action
	Err         error  // Underlying error
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.LogMessage, e.Err)
	}
	return e.LogMessage
}

// Unwrap returns the underlying error
func (e *BotError) Unwrap() error {
	return e.Err
}

// NewUserError creates an error for a rejected action
func NewUserError(userMessage string, logMessage string) *BotError {
	return &BotError{
		UserMessage: userMessage,
		LogMessage:  logMessage,
	}
}

// NewSystemError creates an error for system issues (database, unexpected state, etc)
func NewSystemError(err error, logMessage string) *BotError {
	return &BotError{
		UserMessage: genericErrorMessage,
		LogMessage:  logMessage,
		System:      true,
		Err:         err,
	}
}

var serviceMessages = []struct {
	target  error
	message string
}{
	{service.ErrAlreadyMember, "You are already in this queue."},
	{service.ErrNotMember, "You are not in this queue."},
	{service.ErrAlreadyIssued, "This reward was already issued."},
	{service.ErrQueueLocked, "This queue is locked right now."},
	{service.ErrLimitExceeded, "You have reached your queue limit. Leave a queue first."},
	{service.ErrMainRequired, "Register your main character first."},
	{service.ErrChoiceRequired, "This character is still queued. Choose whether to move or remove its entries."},
	{service.ErrBanned, "You are banned from queues."},
	{service.ErrForbidden, "You are not allowed to do that."},
	{service.ErrValidation, "That input is not valid."},
	{service.ErrAlreadyExists, "That already exists."},
	{service.ErrNotFound, "Not found. It may have been removed."},
}

// FromServiceError translates a service error into a BotError; unknown errors become system errors
func FromServiceError(err error, logMessage string) *BotError {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr
	}

	for _, known := range serviceMessages {
		if errors.Is(err, known.target) {
			return &BotError{
				UserMessage: known.message,
				LogMessage:  logMessage,
				Err:         err,
			}
		}
	}

	return NewSystemError(err, logMessage)
}

// RespondWithError sends an error message as an interaction response
func RespondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("❌ %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Error sending error response: %v", err)
	}
}

// HandleError logs err and responds with its user message
func HandleError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	botErr := FromServiceError(err, "Interaction failed")

	fields := log.Fields{
		"user_id":      InteractionUserID(i),
		"error":        botErr.Error(),
		"user_message": botErr.UserMessage,
	}
	if i.Type == discordgo.InteractionMessageComponent {
		fields["custom_id"] = i.MessageComponentData().CustomID
	}

	if botErr.System {
		log.WithFields(fields).Error(botErr.LogMessage)
	} else {
		log.WithFields(fields).Info(botErr.LogMessage)
	}

	RespondWithError(s, i, botErr.UserMessage)
}

// InteractionUserID returns the invoking user's ID in guild channels and DMs
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if user := InteractionUser(i); user != nil {
		return user.ID
	}
	return ""
}

// InteractionUser returns the invoking user; DMs carry User, guild channels carry Member
func InteractionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
