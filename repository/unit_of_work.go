package repository

import (
	"context"
	"errors"
	"fmt"

	"guildbot/database"
	"guildbot/events"
	"guildbot/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	memberRepo       service.MemberRepository
	characterRepo    service.CharacterRepository
	queueRepo        service.QueueRepository
	membershipRepo   service.MembershipRepository
	rewardRepo       service.RewardHistoryRepository
	auditRepo        service.AuditRepository
	announcementRepo service.AnnouncementRepository
	settingsRepo     service.SettingsRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.memberRepo = newMemberRepositoryWithTx(tx)
	u.characterRepo = newCharacterRepositoryWithTx(tx)
	u.queueRepo = newQueueRepositoryWithTx(tx)
	u.membershipRepo = newMembershipRepositoryWithTx(tx)
	u.rewardRepo = newRewardHistoryRepositoryWithTx(tx)
	u.auditRepo = newAuditRepositoryWithTx(tx)
	u.announcementRepo = newAnnouncementRepositoryWithTx(tx)
	u.settingsRepo = newSettingsRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

func mustBegin[T any](repo T, started bool) T {
	if !started {
		panic("unit of work not started - call Begin() first")
	}
	return repo
}

// MemberRepository returns the member repository for this unit of work
func (u *unitOfWork) MemberRepository() service.MemberRepository {
	return mustBegin(u.memberRepo, u.memberRepo != nil)
}

// CharacterRepository returns the character repository for this unit of work
func (u *unitOfWork) CharacterRepository() service.CharacterRepository {
	return mustBegin(u.characterRepo, u.characterRepo != nil)
}

// QueueRepository returns the queue repository for this unit of work
func (u *unitOfWork) QueueRepository() service.QueueRepository {
	return mustBegin(u.queueRepo, u.queueRepo != nil)
}

// MembershipRepository returns the membership repository for this unit of work
func (u *unitOfWork) MembershipRepository() service.MembershipRepository {
	return mustBegin(u.membershipRepo, u.membershipRepo != nil)
}

// RewardHistoryRepository returns the reward history repository for this unit of work
func (u *unitOfWork) RewardHistoryRepository() service.RewardHistoryRepository {
	return mustBegin(u.rewardRepo, u.rewardRepo != nil)
}

// AuditRepository returns the audit repository for this unit of work
func (u *unitOfWork) AuditRepository() service.AuditRepository {
	return mustBegin(u.auditRepo, u.auditRepo != nil)
}

// AnnouncementRepository returns the announcement repository for this unit of work
func (u *unitOfWork) AnnouncementRepository() service.AnnouncementRepository {
	return mustBegin(u.announcementRepo, u.announcementRepo != nil)
}

// SettingsRepository returns the settings repository for this unit of work
func (u *unitOfWork) SettingsRepository() service.SettingsRepository {
	return mustBegin(u.settingsRepo, u.settingsRepo != nil)
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
