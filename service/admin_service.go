package service

import (
	"context"
	"fmt"
	"strings"

	"guildbot/models"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultRecentRewards = 15
	DefaultMemberRewards = 10
	DefaultRecentAudit   = 20
)

// adminService implements the AdminService interface
type adminService struct {
	uowFactory UnitOfWorkFactory
}

// NewAdminService creates a new admin service
func NewAdminService(uowFactory UnitOfWorkFactory) AdminService {
	return &adminService{uowFactory: uowFactory}
}

// ListMembers returns all members ordered by handle
func (s *adminService) ListMembers(ctx context.Context, actorID int64) ([]*models.Member, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return nil, err
	}

	members, err := uow.MemberRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ToggleBan bans or unbans a member. A ban also clears every membership the member holds.
func (s *adminService) ToggleBan(ctx context.Context, actorID, memberID int64) (*models.Member, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	actor, err := requireGuildmaster(ctx, uow, actorID)
	if err != nil {
		return nil, err
	}

	target, err := uow.MemberRepository().GetByIDForUpdate(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}
	if target.IsGuildmaster {
		return nil, fmt.Errorf("cannot ban guildmaster %s: %w", target.Handle, ErrForbidden)
	}

	banned := !target.IsBanned
	if err := uow.MemberRepository().SetBanned(ctx, target.ID, banned); err != nil {
		return nil, fmt.Errorf("failed to update ban flag: %w", err)
	}

	removed := 0
	if banned {
		memberships, err := uow.MembershipRepository().ListByMember(ctx, target.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list memberships: %w", err)
		}

		mainNickname, err := mainNicknameOr(ctx, uow, target.ID, "")
		if err != nil {
			return nil, err
		}

		for _, membership := range memberships {
			if _, err := uow.MembershipRepository().Delete(ctx, membership.ID); err != nil {
				return nil, fmt.Errorf("failed to remove membership %d: %w", membership.ID, err)
			}
			err := recordAudit(ctx, uow, &models.AuditEntry{
				MemberID:          target.ID,
				QueueName:         membership.QueueName,
				MainNickname:      mainNickname,
				CharacterNickname: membership.CharacterNickname,
				ActorHandle:       actor.Handle,
				Status:            models.AuditStatusBanRemoved,
			})
			if err != nil {
				return nil, err
			}
			removed++
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	target.IsBanned = banned

	log.WithFields(log.Fields{
		"member":      target.Handle,
		"banned":      banned,
		"actor":       actor.Handle,
		"memberships": removed,
	}).Info("Member ban toggled")

	return target, nil
}

// Promote grants the guildmaster role to the member with this handle
func (s *adminService) Promote(ctx context.Context, actorID int64, handle string) (*models.Member, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("handle is empty: %w", ErrValidation)
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

	target, err := uow.MemberRepository().GetByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("member %s: %w", handle, ErrNotFound)
	}
	if target.IsGuildmaster {
		return target, nil
	}
	if target.IsBanned {
		return nil, fmt.Errorf("member %s is banned: %w", target.Handle, ErrValidation)
	}

	if err := uow.MemberRepository().SetGuildmaster(ctx, target.ID, true); err != nil {
		return nil, fmt.Errorf("failed to promote member: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	target.IsGuildmaster = true

	log.WithFields(log.Fields{
		"member": target.Handle,
		"actor":  actor.Handle,
	}).Info("Member promoted to guildmaster")

	return target, nil
}

// RecentRewards returns the latest rewards across the guild
func (s *adminService) RecentRewards(ctx context.Context, actorID int64, limit int) ([]*models.RewardHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentRewards
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return nil, err
	}

	entries, err := uow.RewardHistoryRepository().ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return entries, nil
}

// RecentAudit returns the latest audit entries
func (s *adminService) RecentAudit(ctx context.Context, actorID int64, limit int) ([]*models.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentAudit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return nil, err
	}

	entries, err := uow.AuditRepository().ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// MemberRewards returns the member's own reward history
func (s *adminService) MemberRewards(ctx context.Context, memberID int64, limit int) ([]*models.RewardHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultMemberRewards
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entries, err := uow.RewardHistoryRepository().ListByMember(ctx, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return entries, nil
}
