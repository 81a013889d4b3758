package service

import (
	"context"

	"guildbot/events"
	"guildbot/models"

	"github.com/stretchr/testify/mock"
)

// MockMemberRepository is a mock implementation of MemberRepository
type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberRepository) GetByPlatformID(ctx context.Context, platformID int64) (*models.Member, error) {
	args := m.Called(ctx, platformID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberRepository) GetByHandle(ctx context.Context, handle string) (*models.Member, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockMemberRepository) Upsert(ctx context.Context, platformID int64, handle string) (*models.Member, bool, error) {
	args := m.Called(ctx, platformID, handle)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Member), args.Bool(1), args.Error(2)
}

func (m *MockMemberRepository) SetGuildmaster(ctx context.Context, id int64, guildmaster bool) error {
	args := m.Called(ctx, id, guildmaster)
	return args.Error(0)
}

func (m *MockMemberRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	args := m.Called(ctx, id, banned)
	return args.Error(0)
}

func (m *MockMemberRepository) SetPersonalLimit(ctx context.Context, id int64, limit *int) error {
	args := m.Called(ctx, id, limit)
	return args.Error(0)
}

func (m *MockMemberRepository) ListWithPersonalLimit(ctx context.Context) ([]*models.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

func (m *MockMemberRepository) ListBroadcastRecipients(ctx context.Context) ([]*models.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

func (m *MockMemberRepository) List(ctx context.Context) ([]*models.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

// MockCharacterRepository is a mock implementation of CharacterRepository
type MockCharacterRepository struct {
	mock.Mock
}

func (m *MockCharacterRepository) GetByID(ctx context.Context, id int64) (*models.Character, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Character), args.Error(1)
}

func (m *MockCharacterRepository) GetByNickname(ctx context.Context, nickname string) (*models.Character, error) {
	args := m.Called(ctx, nickname)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Character), args.Error(1)
}

func (m *MockCharacterRepository) GetMain(ctx context.Context, memberID int64) (*models.Character, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Character), args.Error(1)
}

func (m *MockCharacterRepository) ListByMember(ctx context.Context, memberID int64) ([]*models.Character, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Character), args.Error(1)
}

func (m *MockCharacterRepository) Create(ctx context.Context, memberID int64, nickname string, isMain bool) (*models.Character, error) {
	args := m.Called(ctx, memberID, nickname, isMain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Character), args.Error(1)
}

func (m *MockCharacterRepository) SetMain(ctx context.Context, memberID int64, characterID int64) error {
	args := m.Called(ctx, memberID, characterID)
	return args.Error(0)
}

func (m *MockCharacterRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockQueueRepository is a mock implementation of QueueRepository
type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) GetByID(ctx context.Context, id int64) (*models.QueueDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueDefinition), args.Error(1)
}

func (m *MockQueueRepository) GetByName(ctx context.Context, name string) (*models.QueueDefinition, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueDefinition), args.Error(1)
}

func (m *MockQueueRepository) CreateIfMissing(ctx context.Context, name, description string) (bool, error) {
	args := m.Called(ctx, name, description)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueueRepository) ListActiveWithCounts(ctx context.Context) ([]*models.QueueSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QueueSummary), args.Error(1)
}

func (m *MockQueueRepository) SetLocked(ctx context.Context, id int64, locked bool) error {
	args := m.Called(ctx, id, locked)
	return args.Error(0)
}

func (m *MockQueueRepository) SetDescription(ctx context.Context, id int64, description string) error {
	args := m.Called(ctx, id, description)
	return args.Error(0)
}

func (m *MockQueueRepository) SetActive(ctx context.Context, id int64, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

// MockMembershipRepository is a mock implementation of MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) GetByID(ctx context.Context, id int64) (*models.Membership, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) GetByMemberAndQueue(ctx context.Context, memberID, queueID int64) (*models.Membership, error) {
	args := m.Called(ctx, memberID, queueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) ListByMember(ctx context.Context, memberID int64) ([]*models.Membership, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) ListByQueue(ctx context.Context, queueID int64) ([]*models.Membership, error) {
	args := m.Called(ctx, queueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) ListByCharacter(ctx context.Context, memberID int64, nickname string) ([]*models.Membership, error) {
	args := m.Called(ctx, memberID, nickname)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) CountByMember(ctx context.Context, memberID int64) (int, error) {
	args := m.Called(ctx, memberID)
	return args.Int(0), args.Error(1)
}

func (m *MockMembershipRepository) Create(ctx context.Context, memberID, queueID int64, nickname string) (*models.Membership, error) {
	args := m.Called(ctx, memberID, queueID, nickname)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) UpdateCharacter(ctx context.Context, id int64, nickname string) error {
	args := m.Called(ctx, id, nickname)
	return args.Error(0)
}

func (m *MockMembershipRepository) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockRewardHistoryRepository is a mock implementation of RewardHistoryRepository
type MockRewardHistoryRepository struct {
	mock.Mock
}

func (m *MockRewardHistoryRepository) Record(ctx context.Context, entry *models.RewardHistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRewardHistoryRepository) ListByMember(ctx context.Context, memberID int64, limit int) ([]*models.RewardHistoryEntry, error) {
	args := m.Called(ctx, memberID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RewardHistoryEntry), args.Error(1)
}

func (m *MockRewardHistoryRepository) ListRecent(ctx context.Context, limit int) ([]*models.RewardHistoryEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RewardHistoryEntry), args.Error(1)
}

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditEntry), args.Error(1)
}

// MockAnnouncementRepository is a mock implementation of AnnouncementRepository
type MockAnnouncementRepository struct {
	mock.Mock
}

func (m *MockAnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	args := m.Called(ctx, announcement)
	return args.Error(0)
}

func (m *MockAnnouncementRepository) GetByID(ctx context.Context, id int64) (*models.Announcement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Announcement), args.Error(1)
}

func (m *MockAnnouncementRepository) ListActive(ctx context.Context) ([]*models.Announcement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Announcement), args.Error(1)
}

func (m *MockAnnouncementRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockSettingsRepository is a mock implementation of SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockSettingsRepository) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockSettingsRepository) SetIfMissing(ctx context.Context, key, value string) (bool, error) {
	args := m.Called(ctx, key, value)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork.
// Repository getters return the embedded mocks without recording calls.
type MockUnitOfWork struct {
	mock.Mock

	Members       *MockMemberRepository
	Characters    *MockCharacterRepository
	Queues        *MockQueueRepository
	Memberships   *MockMembershipRepository
	Rewards       *MockRewardHistoryRepository
	Audit         *MockAuditRepository
	Announcements *MockAnnouncementRepository
	Settings      *MockSettingsRepository
	Events        *MockEventPublisher
}

// NewMockUnitOfWork creates a unit of work with a fresh mock behind every repository
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		Members:       new(MockMemberRepository),
		Characters:    new(MockCharacterRepository),
		Queues:        new(MockQueueRepository),
		Memberships:   new(MockMembershipRepository),
		Rewards:       new(MockRewardHistoryRepository),
		Audit:         new(MockAuditRepository),
		Announcements: new(MockAnnouncementRepository),
		Settings:      new(MockSettingsRepository),
		Events:        new(MockEventPublisher),
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) MemberRepository() MemberRepository { return m.Members }

func (m *MockUnitOfWork) CharacterRepository() CharacterRepository { return m.Characters }

func (m *MockUnitOfWork) QueueRepository() QueueRepository { return m.Queues }

func (m *MockUnitOfWork) MembershipRepository() MembershipRepository { return m.Memberships }

func (m *MockUnitOfWork) RewardHistoryRepository() RewardHistoryRepository { return m.Rewards }

func (m *MockUnitOfWork) AuditRepository() AuditRepository { return m.Audit }

func (m *MockUnitOfWork) AnnouncementRepository() AnnouncementRepository { return m.Announcements }

func (m *MockUnitOfWork) SettingsRepository() SettingsRepository { return m.Settings }

func (m *MockUnitOfWork) EventBus() EventPublisher { return m.Events }

// AssertAllExpectations checks the unit of work and every repository mock
func (m *MockUnitOfWork) AssertAllExpectations(t mock.TestingT) {
	m.AssertExpectations(t)
	m.Members.AssertExpectations(t)
	m.Characters.AssertExpectations(t)
	m.Queues.AssertExpectations(t)
	m.Memberships.AssertExpectations(t)
	m.Rewards.AssertExpectations(t)
	m.Audit.AssertExpectations(t)
	m.Announcements.AssertExpectations(t)
	m.Settings.AssertExpectations(t)
	m.Events.AssertExpectations(t)
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockRosterOracle is a mock implementation of RosterOracle
type MockRosterOracle struct {
	mock.Mock
}

func (m *MockRosterOracle) IsValidNickname(ctx context.Context, nickname string) bool {
	args := m.Called(ctx, nickname)
	return args.Bool(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, platformID int64, text string, actions []models.NotificationAction) error {
	args := m.Called(ctx, platformID, text, actions)
	return args.Error(0)
}

// MockJobScheduler is a mock implementation of JobScheduler
type MockJobScheduler struct {
	mock.Mock
}

func (m *MockJobScheduler) Schedule(announcement *models.Announcement) error {
	args := m.Called(announcement)
	return args.Error(0)
}

func (m *MockJobScheduler) Unschedule(announcementID int64) {
	m.Called(announcementID)
}

// MockBroadcaster is a mock implementation of Broadcaster
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, text string) (models.BroadcastResult, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(models.BroadcastResult), args.Error(1)
}
