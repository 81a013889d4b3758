package service

import (
	"context"
	"fmt"
	"strings"

	"guildbot/events"
	"guildbot/models"

	log "github.com/sirupsen/logrus"
)

// registryService implements the RegistryService interface
type registryService struct {
	uowFactory UnitOfWorkFactory
	oracle     RosterOracle
}

// NewRegistryService creates a new registry service
func NewRegistryService(uowFactory UnitOfWorkFactory, oracle RosterOracle) RegistryService {
	return &registryService{
		uowFactory: uowFactory,
		oracle:     oracle,
	}
}

// EnsureMember returns the member for a Discord identity, creating it on first contact
func (s *registryService) EnsureMember(ctx context.Context, platformID int64, handle string) (*models.Member, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	member, created, err := uow.MemberRepository().Upsert(ctx, platformID, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert member: %w", err)
	}

	if created {
		uow.EventBus().Publish(events.MemberCreatedEvent{
			MemberID:      member.ID,
			PlatformID:    member.PlatformID,
			Handle:        member.Handle,
			IsGuildmaster: member.IsGuildmaster,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if created {
		log.WithFields(log.Fields{
			"member_id":   member.ID,
			"platform_id": platformID,
			"guildmaster": member.IsGuildmaster,
		}).Info("Registered new member")
	}

	return member, nil
}

// ListCharacters returns the member's characters, main first
func (s *registryService) ListCharacters(ctx context.Context, memberID int64) ([]*models.Character, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	characters, err := uow.CharacterRepository().ListByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return characters, nil
}

// validateNickname trims the nickname and asks the roster oracle about it
func (s *registryService) validateNickname(ctx context.Context, nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", fmt.Errorf("nickname is empty: %w", ErrValidation)
	}
	if !s.oracle.IsValidNickname(ctx, nickname) {
		return "", fmt.Errorf("nickname %q is not on the guild roster: %w", nickname, ErrValidation)
	}
	return nickname, nil
}

// ProposeMain applies the change straight away when the member has no main.
// Replacing an existing main needs ConfirmMain because every membership moves to the new nickname.
func (s *registryService) ProposeMain(ctx context.Context, memberID int64, nickname string) (*models.MainChange, error) {
	nickname, err := s.validateNickname(ctx, nickname)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireMember(ctx, uow, memberID); err != nil {
		return nil, err
	}

	existing, err := s.ownedCharacter(ctx, uow, memberID, nickname)
	if err != nil {
		return nil, err
	}

	currentMain, err := uow.CharacterRepository().GetMain(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get main character: %w", err)
	}

	change := &models.MainChange{MemberID: memberID, Current: nickname}

	switch {
	case currentMain == nil:
		promoted, err := s.installMain(ctx, uow, memberID, nickname, existing)
		if err != nil {
			return nil, err
		}
		change.PromotedAlt = promoted
		change.Applied = true
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
	case currentMain.Nickname == nickname:
		change.Previous = currentMain.Nickname
	default:
		change.Previous = currentMain.Nickname
		change.PromotedAlt = existing != nil
		change.RequiresConfirmation = true
	}

	return change, nil
}

// ConfirmMain replaces the main character and moves every membership to it
func (s *registryService) ConfirmMain(ctx context.Context, memberID int64, nickname string) (*models.MainChange, error) {
	nickname, err := s.validateNickname(ctx, nickname)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	member, err := requireMember(ctx, uow, memberID)
	if err != nil {
		return nil, err
	}

	existing, err := s.ownedCharacter(ctx, uow, memberID, nickname)
	if err != nil {
		return nil, err
	}

	currentMain, err := uow.CharacterRepository().GetMain(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get main character: %w", err)
	}

	change := &models.MainChange{MemberID: memberID, Current: nickname}
	if currentMain != nil {
		change.Previous = currentMain.Nickname
		if currentMain.Nickname == nickname {
			return change, nil
		}
	}

	promoted, err := s.installMain(ctx, uow, memberID, nickname, existing)
	if err != nil {
		return nil, err
	}
	change.PromotedAlt = promoted

	memberships, err := uow.MembershipRepository().ListByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	for _, membership := range memberships {
		if membership.CharacterNickname == nickname {
			continue
		}
		if err := uow.MembershipRepository().UpdateCharacter(ctx, membership.ID, nickname); err != nil {
			return nil, fmt.Errorf("failed to move membership %d: %w", membership.ID, err)
		}
		err := recordAudit(ctx, uow, &models.AuditEntry{
			MemberID:          memberID,
			QueueName:         membership.QueueName,
			MainNickname:      nickname,
			CharacterNickname: nickname,
			ActorHandle:       member.Handle,
			Status:            models.AuditStatusMainChanged,
			Detail:            membership.CharacterNickname,
		})
		if err != nil {
			return nil, err
		}
		change.MembershipsUpdated++
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	change.Applied = true

	log.WithFields(log.Fields{
		"member_id":   memberID,
		"previous":    change.Previous,
		"current":     nickname,
		"memberships": change.MembershipsUpdated,
	}).Info("Main character changed")

	return change, nil
}

// AddAlt registers an alternate character
func (s *registryService) AddAlt(ctx context.Context, memberID int64, nickname string) (*models.Character, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("nickname is empty: %w", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireMember(ctx, uow, memberID); err != nil {
		return nil, err
	}

	currentMain, err := uow.CharacterRepository().GetMain(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get main character: %w", err)
	}
	if currentMain == nil {
		return nil, ErrMainRequired
	}

	existing, err := uow.CharacterRepository().GetByNickname(ctx, nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to look up nickname: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("character %q: %w", nickname, ErrAlreadyExists)
	}

	if !s.oracle.IsValidNickname(ctx, nickname) {
		return nil, fmt.Errorf("nickname %q is not on the guild roster: %w", nickname, ErrValidation)
	}

	character, err := uow.CharacterRepository().Create(ctx, memberID, nickname, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create character: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return character, nil
}

// DeleteCharacter deletes a character, handling its memberships per policy
func (s *registryService) DeleteCharacter(ctx context.Context, actorID, characterID int64, policy models.DeletePolicy) (*models.CharacterDeletion, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	actor, err := requireMember(ctx, uow, actorID)
	if err != nil {
		return nil, err
	}

	character, err := uow.CharacterRepository().GetByID(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	if character == nil {
		return nil, fmt.Errorf("character %d: %w", characterID, ErrNotFound)
	}
	if character.MemberID != actor.ID && !actor.IsGuildmaster {
		return nil, fmt.Errorf("character %q belongs to another member: %w", character.Nickname, ErrForbidden)
	}

	memberships, err := uow.MembershipRepository().ListByCharacter(ctx, character.MemberID, character.Nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	deletion := &models.CharacterDeletion{
		Character:           character,
		Policy:              policy,
		MembershipsAffected: len(memberships),
	}

	if len(memberships) > 0 {
		switch policy {
		case models.DeletePolicyReassign:
			err = s.reassignMemberships(ctx, uow, actor, character, memberships)
		case models.DeletePolicyRemove:
			err = s.removeMemberships(ctx, uow, actor, character, memberships)
		default:
			err = fmt.Errorf("character %q holds %d memberships: %w", character.Nickname, len(memberships), ErrChoiceRequired)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := uow.CharacterRepository().Delete(ctx, character.ID); err != nil {
		return nil, fmt.Errorf("failed to delete character: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"character":   character.Nickname,
		"member_id":   character.MemberID,
		"actor":       actor.Handle,
		"policy":      policy,
		"memberships": len(memberships),
	}).Info("Character deleted")

	return deletion, nil
}

// ownedCharacter returns the member's character with this nickname, or nil when nobody owns it
func (s *registryService) ownedCharacter(ctx context.Context, uow UnitOfWork, memberID int64, nickname string) (*models.Character, error) {
	character, err := uow.CharacterRepository().GetByNickname(ctx, nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to look up nickname: %w", err)
	}
	if character != nil && character.MemberID != memberID {
		return nil, fmt.Errorf("character %q: %w", nickname, ErrAlreadyExists)
	}
	return character, nil
}

// installMain promotes an existing alt or creates the main character.
// SetMain demotes the previous main in the same statement sequence, so the one-main index holds.
func (s *registryService) installMain(ctx context.Context, uow UnitOfWork, memberID int64, nickname string, existing *models.Character) (bool, error) {
	if existing != nil {
		if err := uow.CharacterRepository().SetMain(ctx, memberID, existing.ID); err != nil {
			return false, fmt.Errorf("failed to promote alt: %w", err)
		}
		return true, nil
	}

	created, err := uow.CharacterRepository().Create(ctx, memberID, nickname, false)
	if err != nil {
		return false, fmt.Errorf("failed to create character: %w", err)
	}
	if err := uow.CharacterRepository().SetMain(ctx, memberID, created.ID); err != nil {
		return false, fmt.Errorf("failed to set main character: %w", err)
	}
	return false, nil
}

func (s *registryService) reassignMemberships(ctx context.Context, uow UnitOfWork, actor *models.Member, character *models.Character, memberships []*models.Membership) error {
	currentMain, err := uow.CharacterRepository().GetMain(ctx, character.MemberID)
	if err != nil {
		return fmt.Errorf("failed to get main character: %w", err)
	}
	if currentMain == nil {
		return ErrMainRequired
	}
	if currentMain.ID == character.ID {
		return fmt.Errorf("cannot reassign memberships of the main character to itself: %w", ErrValidation)
	}

	for _, membership := range memberships {
		if err := uow.MembershipRepository().UpdateCharacter(ctx, membership.ID, currentMain.Nickname); err != nil {
			return fmt.Errorf("failed to reassign membership %d: %w", membership.ID, err)
		}
		err := recordAudit(ctx, uow, &models.AuditEntry{
			MemberID:          character.MemberID,
			QueueName:         membership.QueueName,
			MainNickname:      currentMain.Nickname,
			CharacterNickname: currentMain.Nickname,
			ActorHandle:       actor.Handle,
			Status:            models.AuditStatusReassigned,
			Detail:            character.Nickname,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *registryService) removeMemberships(ctx context.Context, uow UnitOfWork, actor *models.Member, character *models.Character, memberships []*models.Membership) error {
	mainNickname, err := mainNicknameOr(ctx, uow, character.MemberID, character.Nickname)
	if err != nil {
		return err
	}

	for _, membership := range memberships {
		if _, err := uow.MembershipRepository().Delete(ctx, membership.ID); err != nil {
			return fmt.Errorf("failed to remove membership %d: %w", membership.ID, err)
		}
		err := recordAudit(ctx, uow, &models.AuditEntry{
			MemberID:          character.MemberID,
			QueueName:         membership.QueueName,
			MainNickname:      mainNickname,
			CharacterNickname: character.Nickname,
			ActorHandle:       actor.Handle,
			Status:            models.AuditStatusCharDeleted,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
