package service

import (
	"context"

	"guildbot/events"
	"guildbot/models"
)

// MemberRepository defines the interface for member data access
type MemberRepository interface {
	// GetByID retrieves a member by internal ID
	GetByID(ctx context.Context, id int64) (*models.Member, error)

	// GetByIDForUpdate retrieves a member and locks the row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Member, error)

	// GetByPlatformID retrieves a member by their Discord ID
	GetByPlatformID(ctx context.Context, platformID int64) (*models.Member, error)

	// GetByHandle retrieves a member by handle, case-insensitively
	GetByHandle(ctx context.Context, handle string) (*models.Member, error)

	// Upsert creates the member or refreshes the handle of an existing one.
	// The first member ever created is made a guildmaster. created reports whether a row was inserted.
	Upsert(ctx context.Context, platformID int64, handle string) (member *models.Member, created bool, err error)

	// SetGuildmaster grants or revokes the guildmaster role
	SetGuildmaster(ctx context.Context, id int64, guildmaster bool) error

	// SetBanned sets the banned flag
	SetBanned(ctx context.Context, id int64, banned bool) error

	// SetPersonalLimit stores a personal limit; nil clears the override
	SetPersonalLimit(ctx context.Context, id int64, limit *int) error

	// ListWithPersonalLimit returns members that override the global limit
	ListWithPersonalLimit(ctx context.Context) ([]*models.Member, error)

	// ListBroadcastRecipients returns every member that owns at least one character
	ListBroadcastRecipients(ctx context.Context) ([]*models.Member, error)

	// List returns all members ordered by handle
	List(ctx context.Context) ([]*models.Member, error)
}

// CharacterRepository defines the interface for character data access
type CharacterRepository interface {
	// GetByID retrieves a character by ID
	GetByID(ctx context.Context, id int64) (*models.Character, error)

	// GetByNickname retrieves a character by exact nickname
	GetByNickname(ctx context.Context, nickname string) (*models.Character, error)

	// GetMain returns the member's main character, or nil
	GetMain(ctx context.Context, memberID int64) (*models.Character, error)

	// ListByMember returns the member's characters, main first
	ListByMember(ctx context.Context, memberID int64) ([]*models.Character, error)

	// Create creates a character
	Create(ctx context.Context, memberID int64, nickname string, isMain bool) (*models.Character, error)

	// SetMain makes characterID the member's only main character
	SetMain(ctx context.Context, memberID int64, characterID int64) error

	// Delete removes a character
	Delete(ctx context.Context, id int64) error
}

// QueueRepository defines the interface for queue definition data access
type QueueRepository interface {
	// GetByID retrieves a queue by ID
	GetByID(ctx context.Context, id int64) (*models.QueueDefinition, error)

	// GetByName retrieves a queue by name
	GetByName(ctx context.Context, name string) (*models.QueueDefinition, error)

	// CreateIfMissing inserts a queue unless one with the same name exists
	CreateIfMissing(ctx context.Context, name, description string) (bool, error)

	// ListActiveWithCounts returns active queues ordered by ID with their membership counts
	ListActiveWithCounts(ctx context.Context) ([]*models.QueueSummary, error)

	// SetLocked sets the locked flag
	SetLocked(ctx context.Context, id int64, locked bool) error

	// SetDescription updates the description
	SetDescription(ctx context.Context, id int64, description string) error

	// SetActive sets the active flag
	SetActive(ctx context.Context, id int64, active bool) error
}

// MembershipRepository defines the interface for queue membership data access
type MembershipRepository interface {
	// GetByID retrieves a membership by ID
	GetByID(ctx context.Context, id int64) (*models.Membership, error)

	// GetByMemberAndQueue retrieves the membership for a (member, queue) pair
	GetByMemberAndQueue(ctx context.Context, memberID, queueID int64) (*models.Membership, error)

	// ListByMember returns the member's memberships with queue names
	ListByMember(ctx context.Context, memberID int64) ([]*models.Membership, error)

	// ListByQueue returns a queue's memberships in join order with member details
	ListByQueue(ctx context.Context, queueID int64) ([]*models.Membership, error)

	// ListByCharacter returns the member's memberships held under nickname
	ListByCharacter(ctx context.Context, memberID int64, nickname string) ([]*models.Membership, error)

	// CountByMember counts memberships across all queues
	CountByMember(ctx context.Context, memberID int64) (int, error)

	// Create inserts a membership; it returns nil when the pair already has one
	Create(ctx context.Context, memberID, queueID int64, nickname string) (*models.Membership, error)

	// UpdateCharacter changes the nickname of one membership
	UpdateCharacter(ctx context.Context, id int64, nickname string) error

	// Delete removes a membership and reports whether a row was removed
	Delete(ctx context.Context, id int64) (bool, error)
}

// RewardHistoryRepository defines the interface for reward history tracking
type RewardHistoryRepository interface {
	// Record appends a reward history entry
	Record(ctx context.Context, entry *models.RewardHistoryEntry) error

	// ListByMember returns the member's most recent rewards
	ListByMember(ctx context.Context, memberID int64, limit int) ([]*models.RewardHistoryEntry, error)

	// ListRecent returns the most recent rewards across all members
	ListRecent(ctx context.Context, limit int) ([]*models.RewardHistoryEntry, error)
}

// AuditRepository defines the interface for the membership audit log
type AuditRepository interface {
	// Append appends an audit entry
	Append(ctx context.Context, entry *models.AuditEntry) error

	// ListRecent returns the most recent audit entries
	ListRecent(ctx context.Context, limit int) ([]*models.AuditEntry, error)
}

// AnnouncementRepository defines the interface for scheduled announcement data access
type AnnouncementRepository interface {
	// Create persists an announcement and fills its ID and CreatedAt
	Create(ctx context.Context, announcement *models.Announcement) error

	// GetByID retrieves an announcement by ID
	GetByID(ctx context.Context, id int64) (*models.Announcement, error)

	// ListActive returns active announcements ordered by ID
	ListActive(ctx context.Context) ([]*models.Announcement, error)

	// Deactivate clears the active flag and reports whether the row exists
	Deactivate(ctx context.Context, id int64) (bool, error)
}

// SettingsRepository defines the interface for global settings
type SettingsRepository interface {
	// Get returns a setting value and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set creates or replaces a setting
	Set(ctx context.Context, key, value string) error

	// SetIfMissing creates a setting unless it exists
	SetIfMissing(ctx context.Context, key, value string) (bool, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	MemberRepository() MemberRepository
	CharacterRepository() CharacterRepository
	QueueRepository() QueueRepository
	MembershipRepository() MembershipRepository
	RewardHistoryRepository() RewardHistoryRepository
	AuditRepository() AuditRepository
	AnnouncementRepository() AnnouncementRepository
	SettingsRepository() SettingsRepository

	// EventBus returns the transactional event publisher
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// RosterOracle validates nicknames against the guild roster
type RosterOracle interface {
	IsValidNickname(ctx context.Context, nickname string) bool
}

// Notifier delivers a direct message to a member
type Notifier interface {
	Notify(ctx context.Context, platformID int64, text string, actions []models.NotificationAction) error
}

// JobScheduler keeps live timers in step with persisted announcements
type JobScheduler interface {
	// Schedule registers or replaces the job for the announcement
	Schedule(announcement *models.Announcement) error

	// Unschedule removes the job; unknown IDs are ignored
	Unschedule(announcementID int64)
}

// Broadcaster fans a message out to every broadcast recipient
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (models.BroadcastResult, error)
}

// RegistryService manages members and their characters
type RegistryService interface {
	// EnsureMember returns the member for a Discord identity, creating it on first contact
	EnsureMember(ctx context.Context, platformID int64, handle string) (*models.Member, error)

	// ListCharacters returns the member's characters, main first
	ListCharacters(ctx context.Context, memberID int64) ([]*models.Character, error)

	// ProposeMain sets the main character, or returns a change that needs ConfirmMain
	ProposeMain(ctx context.Context, memberID int64, nickname string) (*models.MainChange, error)

	// ConfirmMain replaces the main character and moves every membership to it
	ConfirmMain(ctx context.Context, memberID int64, nickname string) (*models.MainChange, error)

	// AddAlt registers an alternate character
	AddAlt(ctx context.Context, memberID int64, nickname string) (*models.Character, error)

	// DeleteCharacter deletes a character, handling its memberships per policy
	DeleteCharacter(ctx context.Context, actorID, characterID int64, policy models.DeletePolicy) (*models.CharacterDeletion, error)
}

// LimitService resolves and administers membership limits
type LimitService interface {
	// EffectiveLimit returns the member's concurrent membership cap
	EffectiveLimit(ctx context.Context, memberID int64) (int, error)

	// GlobalLimit returns the default limit
	GlobalLimit(ctx context.Context) (int, error)

	// SetGlobalLimit changes the default limit
	SetGlobalLimit(ctx context.Context, actorID int64, limit int) error

	// SetPersonalLimit sets a member override; 0 clears it
	SetPersonalLimit(ctx context.Context, actorID, memberID int64, limit int) error

	// ListPersonalLimits returns members with an override
	ListPersonalLimits(ctx context.Context, actorID int64) ([]*models.Member, error)
}

// QueueService runs the queue membership engine
type QueueService interface {
	ListQueues(ctx context.Context) ([]*models.QueueSummary, error)
	GetQueue(ctx context.Context, queueID int64) (*models.QueueDetail, error)
	ListMemberships(ctx context.Context, memberID int64) ([]*models.Membership, error)

	Join(ctx context.Context, memberID, queueID, characterID int64) (*models.Membership, error)
	Leave(ctx context.Context, memberID, queueID int64) error
	Swap(ctx context.Context, memberID, membershipID, characterID int64) (*models.Membership, error)

	Issue(ctx context.Context, issuerID, membershipID int64) (*models.RewardHistoryEntry, error)
	ForceAdd(ctx context.Context, actorID, queueID int64, nickname string) (*models.Membership, error)
	ForceRemove(ctx context.Context, actorID, membershipID int64) error

	ToggleLock(ctx context.Context, actorID, queueID int64) (*models.QueueDefinition, error)
	SetDescription(ctx context.Context, actorID, queueID int64, description string) error
	Deactivate(ctx context.Context, actorID, queueID int64) error
}

// AdminService covers guildmaster member management and history views
type AdminService interface {
	ListMembers(ctx context.Context, actorID int64) ([]*models.Member, error)
	ToggleBan(ctx context.Context, actorID, memberID int64) (*models.Member, error)
	Promote(ctx context.Context, actorID int64, handle string) (*models.Member, error)
	RecentRewards(ctx context.Context, actorID int64, limit int) ([]*models.RewardHistoryEntry, error)
	RecentAudit(ctx context.Context, actorID int64, limit int) ([]*models.AuditEntry, error)
	MemberRewards(ctx context.Context, memberID int64, limit int) ([]*models.RewardHistoryEntry, error)
}

// AnnouncementService creates, cancels and runs scheduled announcements
type AnnouncementService interface {
	Create(ctx context.Context, actorID int64, request models.AnnouncementRequest) (*models.Announcement, error)
	Cancel(ctx context.Context, actorID, announcementID int64) error
	ListActive(ctx context.Context, actorID int64) ([]*models.Announcement, error)

	// RestoreSchedules re-registers every active scheduled announcement; call before the scheduler starts
	RestoreSchedules(ctx context.Context) (int, error)

	// RunAnnouncement broadcasts an announcement when its job fires.
	// An error means nothing was sent and the run may be retried.
	RunAnnouncement(ctx context.Context, announcementID int64) error
}
