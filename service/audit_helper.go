package service

import (
	"context"
	"fmt"

	"guildbot/events"
	"guildbot/models"
)

// recordAudit appends an audit entry and publishes it for the spreadsheet mirror.
// The event is delivered only if the unit of work commits.
func recordAudit(ctx context.Context, uow UnitOfWork, entry *models.AuditEntry) error {
	if err := uow.AuditRepository().Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	uow.EventBus().Publish(events.AuditRecordedEvent{Entry: *entry})
	return nil
}

// mainNicknameOr returns the member's main nickname, or fallback when there is no main
func mainNicknameOr(ctx context.Context, uow UnitOfWork, memberID int64, fallback string) (string, error) {
	main, err := uow.CharacterRepository().GetMain(ctx, memberID)
	if err != nil {
		return "", fmt.Errorf("failed to get main character: %w", err)
	}
	if main == nil {
		return fallback, nil
	}
	return main.Nickname, nil
}

// requireMember loads a member that is allowed to act
func requireMember(ctx context.Context, uow UnitOfWork, memberID int64) (*models.Member, error) {
	member, err := uow.MemberRepository().GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}
	if member.IsBanned {
		return nil, ErrBanned
	}
	return member, nil
}

// requireGuildmaster loads the acting member and checks the guildmaster role
func requireGuildmaster(ctx context.Context, uow UnitOfWork, actorID int64) (*models.Member, error) {
	actor, err := requireMember(ctx, uow, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsGuildmaster {
		return nil, fmt.Errorf("member %d is not a guildmaster: %w", actorID, ErrForbidden)
	}
	return actor, nil
}
