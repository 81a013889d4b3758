package service

import (
	"context"
	"fmt"
	"strings"

	"guildbot/events"
	"guildbot/models"

	log "github.com/sirupsen/logrus"
)

// queueService implements the QueueService interface
type queueService struct {
	uowFactory UnitOfWorkFactory
}

// NewQueueService creates a new queue service
func NewQueueService(uowFactory UnitOfWorkFactory) QueueService {
	return &queueService{
		uowFactory: uowFactory,
	}
}

// ListQueues returns active queues with their membership counts
func (s *queueService) ListQueues(ctx context.Context) ([]*models.QueueSummary, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	summaries, err := uow.QueueRepository().ListActiveWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	return summaries, nil
}

// GetQueue returns an active queue with its memberships in join order
func (s *queueService) GetQueue(ctx context.Context, queueID int64) (*models.QueueDetail, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	queue, err := activeQueue(ctx, uow, queueID)
	if err != nil {
		return nil, err
	}

	memberships, err := uow.MembershipRepository().ListByQueue(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	return &models.QueueDetail{Queue: queue, Memberships: memberships}, nil
}

// ListMemberships returns the member's memberships
func (s *queueService) ListMemberships(ctx context.Context, memberID int64) ([]*models.Membership, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	memberships, err := uow.MembershipRepository().ListByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

// Join places the member in a queue under one of their characters.
// The member row stays locked until commit so concurrent joins see each other's counts.
func (s *queueService) Join(ctx context.Context, memberID, queueID, characterID int64) (*models.Membership, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	member, err := uow.MemberRepository().GetByIDForUpdate(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}
	if member.IsBanned {
		return nil, ErrBanned
	}

	queue, err := activeQueue(ctx, uow, queueID)
	if err != nil {
		return nil, err
	}

	character, err := ownCharacter(ctx, uow, memberID, characterID)
	if err != nil {
		return nil, err
	}

	existing, err := uow.MembershipRepository().GetByMemberAndQueue(ctx, memberID, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("queue %q: %w", queue.Name, ErrAlreadyMember)
	}

	if queue.IsLocked {
		return nil, fmt.Errorf("queue %q: %w", queue.Name, ErrQueueLocked)
	}

	count, err := uow.MembershipRepository().CountByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to count memberships: %w", err)
	}
	limit, err := effectiveLimit(ctx, uow.SettingsRepository(), member)
	if err != nil {
		return nil, err
	}
	if count >= limit {
		return nil, fmt.Errorf("%d of %d slots in use: %w", count, limit, ErrLimitExceeded)
	}

	membership, err := uow.MembershipRepository().Create(ctx, memberID, queueID, character.Nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	if membership == nil {
		return nil, fmt.Errorf("queue %q: %w", queue.Name, ErrAlreadyMember)
	}

	mainNickname, err := mainNicknameOr(ctx, uow, memberID, character.Nickname)
	if err != nil {
		return nil, err
	}

	err = recordAudit(ctx, uow, &models.AuditEntry{
		MemberID:          memberID,
		QueueName:         queue.Name,
		MainNickname:      mainNickname,
		CharacterNickname: character.Nickname,
		ActorHandle:       member.Handle,
		Status:            models.AuditStatusJoined,
	})
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"member_id": memberID,
		"queue":     queue.Name,
		"character": character.Nickname,
		"slots":     fmt.Sprintf("%d/%d", count+1, limit),
	}).Info("Member joined queue")

	return membership, nil
}

// Leave removes the member from a queue
func (s *queueService) Leave(ctx context.Context, memberID, queueID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	member, err := uow.MemberRepository().GetByID(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}

	membership, err := uow.MembershipRepository().GetByMemberAndQueue(ctx, memberID, queueID)
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}
	if membership == nil {
		return ErrNotMember
	}

	deleted, err := uow.MembershipRepository().Delete(ctx, membership.ID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if !deleted {
		return ErrNotMember
	}

	mainNickname, err := mainNicknameOr(ctx, uow, memberID, membership.CharacterNickname)
	if err != nil {
		return err
	}

	err = recordAudit(ctx, uow, &models.AuditEntry{
		MemberID:          memberID,
		QueueName:         membership.QueueName,
		MainNickname:      mainNickname,
		CharacterNickname: membership.CharacterNickname,
		ActorHandle:       member.Handle,
		Status:            models.AuditStatusLeft,
	})
	if err != nil {
		return err
	}

	return uow.Commit()
}

// Swap changes the character a membership is held under
func (s *queueService) Swap(ctx context.Context, memberID, membershipID, characterID int64) (*models.Membership, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	member, err := requireMember(ctx, uow, memberID)
	if err != nil {
		return nil, err
	}

	character, err := ownCharacter(ctx, uow, memberID, characterID)
	if err != nil {
		return nil, err
	}

	membership, err := uow.MembershipRepository().GetByID(ctx, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if membership == nil || membership.MemberID != memberID {
		return nil, ErrNotMember
	}

	previous := membership.CharacterNickname
	if previous == character.Nickname {
		return membership, nil
	}

	if err := uow.MembershipRepository().UpdateCharacter(ctx, membership.ID, character.Nickname); err != nil {
		return nil, fmt.Errorf("failed to swap character: %w", err)
	}
	membership.CharacterNickname = character.Nickname

	mainNickname, err := mainNicknameOr(ctx, uow, memberID, character.Nickname)
	if err != nil {
		return nil, err
	}

	err = recordAudit(ctx, uow, &models.AuditEntry{
		MemberID:          memberID,
		QueueName:         membership.QueueName,
		MainNickname:      mainNickname,
		CharacterNickname: character.Nickname,
		ActorHandle:       member.Handle,
		Status:            models.AuditStatusSwapped,
		Detail:            previous,
	})
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return membership, nil
}

// Issue grants the reward for a membership and vacates the slot.
// The delete runs first; a membership that is already gone means another issuer won the race.
func (s *queueService) Issue(ctx context.Context, issuerID, membershipID int64) (*models.RewardHistoryEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	issuer, err := requireGuildmaster(ctx, uow, issuerID)
	if err != nil {
		return nil, err
	}

	membership, err := uow.MembershipRepository().GetByID(ctx, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if membership == nil {
		return nil, ErrAlreadyIssued
	}

	deleted, err := uow.MembershipRepository().Delete(ctx, membership.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to vacate membership: %w", err)
	}
	if !deleted {
		return nil, ErrAlreadyIssued
	}

	entry := &models.RewardHistoryEntry{
		MemberID:          membership.MemberID,
		CharacterNickname: membership.CharacterNickname,
		QueueName:         membership.QueueName,
		IssuerHandle:      issuer.Handle,
	}
	if err := uow.RewardHistoryRepository().Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record reward: %w", err)
	}

	mainNickname, err := mainNicknameOr(ctx, uow, membership.MemberID, membership.CharacterNickname)
	if err != nil {
		return nil, err
	}

	err = recordAudit(ctx, uow, &models.AuditEntry{
		MemberID:          membership.MemberID,
		QueueName:         membership.QueueName,
		MainNickname:      mainNickname,
		CharacterNickname: membership.CharacterNickname,
		ActorHandle:       issuer.Handle,
		Status:            models.AuditStatusIssued,
	})
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.RewardIssuedEvent{
		MemberID:          membership.MemberID,
		PlatformID:        membership.MemberPlatformID,
		QueueID:           membership.QueueID,
		QueueName:         membership.QueueName,
		CharacterNickname: membership.CharacterNickname,
		IssuerHandle:      issuer.Handle,
		IssuedAt:          entry.IssuedAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"queue":     membership.QueueName,
		"character": membership.CharacterNickname,
		"issuer":    issuer.Handle,
	}).Info("Reward issued")

	return entry, nil
}

// ForceAdd places a nickname in a queue regardless of lock, limit and the guild roster.
// A nickname without a character record is attributed to the acting guildmaster.
func (s *queueService) ForceAdd(ctx context.Context, actorID, queueID int64, nickname string) (*models.Membership, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("nickname is empty: %w", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	actor, err := requireGuildmaster(ctx, uow, actorID)
	if err != nil {
		return nil, err
	}

	queue, err := activeQueue(ctx, uow, queueID)
	if err != nil {
		return nil, err
	}

	ownerID := actor.ID
	character, err := uow.CharacterRepository().GetByNickname(ctx, nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to look up nickname: %w", err)
	}
	if character != nil {
		ownerID = character.MemberID
	}

	existing, err := uow.MembershipRepository().GetByMemberAndQueue(ctx, ownerID, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("queue %q: %w", queue.Name, ErrAlreadyMember)
	}

	membership, err := uow.MembershipRepository().Create(ctx, ownerID, queueID, nickname)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	if membership == nil {
		return nil, fmt.Errorf("queue %q: %w", queue.Name, ErrAlreadyMember)
	}

	mainNickname, err := mainNicknameOr(ctx, uow, ownerID, nickname)
	if err != nil {
		return nil, err
	}

	err = recordAudit(ctx, uow, &models.AuditEntry{
		MemberID:          ownerID,
		QueueName:         queue.Name,
		MainNickname:      mainNickname,
		CharacterNickname: nickname,
		ActorHandle:       actor.Handle,
		Status:            models.AuditStatusForceAdded,
	})
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return membership, nil
}

// ForceRemove kicks a membership without notifying the member
func (s *queueService) ForceRemove(ctx context.Context, actorID, membershipID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	actor, err := requireGuildmaster(ctx, uow, actorID)
	if err != nil {
		return err
	}

	membership, err := uow.MembershipRepository().GetByID(ctx, membershipID)
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}
	if membership == nil {
		return fmt.Errorf("membership %d: %w", membershipID, ErrNotFound)
	}

	deleted, err := uow.MembershipRepository().Delete(ctx, membership.ID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if !deleted {
		return fmt.Errorf("membership %d: %w", membershipID, ErrNotFound)
	}

	mainNickname, err := mainNicknameOr(ctx, uow, membership.MemberID, membership.CharacterNickname)
	if err != nil {
		return err
	}

	err = recordAudit(ctx, uow, &models.AuditEntry{
		MemberID:          membership.MemberID,
		QueueName:         membership.QueueName,
		MainNickname:      mainNickname,
		CharacterNickname: membership.CharacterNickname,
		ActorHandle:       actor.Handle,
		Status:            models.AuditStatusKicked,
	})
	if err != nil {
		return err
	}

	return uow.Commit()
}

// ToggleLock flips the locked flag; existing memberships are untouched
func (s *queueService) ToggleLock(ctx context.Context, actorID, queueID int64) (*models.QueueDefinition, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return nil, err
	}

	queue, err := activeQueue(ctx, uow, queueID)
	if err != nil {
		return nil, err
	}

	if err := uow.QueueRepository().SetLocked(ctx, queue.ID, !queue.IsLocked); err != nil {
		return nil, fmt.Errorf("failed to toggle lock: %w", err)
	}
	queue.IsLocked = !queue.IsLocked

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"queue":  queue.Name,
		"locked": queue.IsLocked,
	}).Info("Queue lock toggled")

	return queue, nil
}

// SetDescription replaces the queue description
func (s *queueService) SetDescription(ctx context.Context, actorID, queueID int64, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("description is empty: %w", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return err
	}

	queue, err := activeQueue(ctx, uow, queueID)
	if err != nil {
		return err
	}

	if err := uow.QueueRepository().SetDescription(ctx, queue.ID, description); err != nil {
		return fmt.Errorf("failed to set description: %w", err)
	}

	return uow.Commit()
}

// Deactivate hides a queue from listings and joins
func (s *queueService) Deactivate(ctx context.Context, actorID, queueID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return err
	}

	queue, err := activeQueue(ctx, uow, queueID)
	if err != nil {
		return err
	}

	if err := uow.QueueRepository().SetActive(ctx, queue.ID, false); err != nil {
		return fmt.Errorf("failed to deactivate queue: %w", err)
	}

	return uow.Commit()
}

func activeQueue(ctx context.Context, uow UnitOfWork, queueID int64) (*models.QueueDefinition, error) {
	queue, err := uow.QueueRepository().GetByID(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}
	if queue == nil || !queue.IsActive {
		return nil, fmt.Errorf("queue %d: %w", queueID, ErrNotFound)
	}
	return queue, nil
}

func ownCharacter(ctx context.Context, uow UnitOfWork, memberID, characterID int64) (*models.Character, error) {
	character, err := uow.CharacterRepository().GetByID(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	if character == nil {
		return nil, fmt.Errorf("character %d: %w", characterID, ErrNotFound)
	}
	if character.MemberID != memberID {
		return nil, fmt.Errorf("character %q belongs to another member: %w", character.Nickname, ErrForbidden)
	}
	return character, nil
}
