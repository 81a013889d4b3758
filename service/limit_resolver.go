package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"guildbot/models"
)

// fallbackLimit applies when the default_limit setting is missing or unreadable
const fallbackLimit = 1

// ResolveLimit computes a member's concurrent membership cap.
// A positive personal limit wins; otherwise the stored default applies when it parses to a positive integer.
func ResolveLimit(personal *int, defaultValue string, found bool) int {
	if personal != nil && *personal > 0 {
		return *personal
	}
	if !found {
		return fallbackLimit
	}
	limit, err := strconv.Atoi(strings.TrimSpace(defaultValue))
	if err != nil || limit <= 0 {
		return fallbackLimit
	}
	return limit
}

// effectiveLimit resolves the member's limit inside the current unit of work
func effectiveLimit(ctx context.Context, settings SettingsRepository, member *models.Member) (int, error) {
	value, found, err := settings.Get(ctx, models.SettingDefaultLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to read default limit: %w", err)
	}
	return ResolveLimit(member.PersonalLimit, value, found), nil
}

// limitService implements the LimitService interface
type limitService struct {
	uowFactory UnitOfWorkFactory
}

// NewLimitService creates a new limit service
func NewLimitService(uowFactory UnitOfWorkFactory) LimitService {
	return &limitService{uowFactory: uowFactory}
}

// EffectiveLimit returns the member's concurrent membership cap
func (s *limitService) EffectiveLimit(ctx context.Context, memberID int64) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	member, err := uow.MemberRepository().GetByID(ctx, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil {
		return 0, fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}

	return effectiveLimit(ctx, uow.SettingsRepository(), member)
}

// GlobalLimit returns the default limit
func (s *limitService) GlobalLimit(ctx context.Context) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	value, found, err := uow.SettingsRepository().Get(ctx, models.SettingDefaultLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to read default limit: %w", err)
	}
	return ResolveLimit(nil, value, found), nil
}

// SetGlobalLimit changes the default limit; it must be positive
func (s *limitService) SetGlobalLimit(ctx context.Context, actorID int64, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("global limit must be positive, got %d: %w", limit, ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return err
	}

	if err := uow.SettingsRepository().Set(ctx, models.SettingDefaultLimit, strconv.Itoa(limit)); err != nil {
		return fmt.Errorf("failed to store default limit: %w", err)
	}

	return uow.Commit()
}

// SetPersonalLimit sets a member override. Zero clears it so the member inherits the default again.
func (s *limitService) SetPersonalLimit(ctx context.Context, actorID, memberID int64, limit int) error {
	if limit < 0 {
		return fmt.Errorf("personal limit cannot be negative, got %d: %w", limit, ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return err
	}

	target, err := uow.MemberRepository().GetByID(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to get member: %w", err)
	}
	if target == nil {
		return fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}

	var stored *int
	if limit > 0 {
		stored = &limit
	}
	if err := uow.MemberRepository().SetPersonalLimit(ctx, memberID, stored); err != nil {
		return fmt.Errorf("failed to store personal limit: %w", err)
	}

	return uow.Commit()
}

// ListPersonalLimits returns members with an override
func (s *limitService) ListPersonalLimits(ctx context.Context, actorID int64) ([]*models.Member, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return nil, err
	}

	members, err := uow.MemberRepository().ListWithPersonalLimit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal limits: %w", err)
	}
	return members, nil
}
