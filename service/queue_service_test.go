package service

import (
	"context"
	"testing"
	"time"

	"guildbot/events"
	"guildbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type queueFixture struct {
	ctx     context.Context
	uow     *MockUnitOfWork
	factory *MockUnitOfWorkFactory
	service QueueService
}

func newQueueFixture() *queueFixture {
	f := &queueFixture{
		ctx:     context.Background(),
		uow:     NewMockUnitOfWork(),
		factory: new(MockUnitOfWorkFactory),
	}
	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", f.ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.service = NewQueueService(f.factory)
	return f
}

func isEvent[T events.Event]() any {
	return mock.MatchedBy(func(e events.Event) bool {
		_, ok := e.(T)
		return ok
	})
}

func auditWith(status models.AuditStatus) any {
	return mock.MatchedBy(func(entry *models.AuditEntry) bool {
		return entry.Status == status
	})
}

var (
	meteors  = &models.QueueDefinition{ID: 10, Name: "Meteors", IsActive: true}
	hero     = &models.Member{ID: 1, PlatformID: 1001, Handle: "hero"}
	heroMain = &models.Character{ID: 100, MemberID: 1, Nickname: "Hero", IsMain: true}
)

func TestQueueService_Join_Success(t *testing.T) {
	f := newQueueFixture()
	f.uow.On("Commit").Return(nil)

	f.uow.Members.On("GetByIDForUpdate", f.ctx, int64(1)).Return(hero, nil)
	f.uow.Queues.On("GetByID", f.ctx, int64(10)).Return(meteors, nil)
	f.uow.Characters.On("GetByID", f.ctx, int64(100)).Return(heroMain, nil)
	f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(1), int64(10)).Return(nil, nil)
	f.uow.Memberships.On("CountByMember", f.ctx, int64(1)).Return(0, nil)
	f.uow.Settings.On("Get", f.ctx, models.SettingDefaultLimit).Return("1", true, nil)
	f.uow.Memberships.On("Create", f.ctx, int64(1), int64(10), "Hero").
		Return(&models.Membership{ID: 50, MemberID: 1, QueueID: 10, CharacterNickname: "Hero"}, nil)
	f.uow.Characters.On("GetMain", f.ctx, int64(1)).Return(heroMain, nil)
	f.uow.Audit.On("Append", f.ctx, mock.MatchedBy(func(entry *models.AuditEntry) bool {
		return entry.Status == models.AuditStatusJoined &&
			entry.QueueName == "Meteors" &&
			entry.MainNickname == "Hero" &&
			entry.ActorHandle == "hero"
	})).Return(nil)
	f.uow.Events.On("Publish", isEvent[events.AuditRecordedEvent]()).Return()

	membership, err := f.service.Join(f.ctx, 1, 10, 100)

	require.NoError(t, err)
	assert.Equal(t, int64(50), membership.ID)
	f.uow.AssertAllExpectations(t)
}

func TestQueueService_Join_CheckOrder(t *testing.T) {
	t.Run("banned member is refused before anything else", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByIDForUpdate", f.ctx, int64(1)).
			Return(&models.Member{ID: 1, IsBanned: true}, nil)

		_, err := f.service.Join(f.ctx, 1, 10, 100)

		assert.ErrorIs(t, err, ErrBanned)
		f.uow.Queues.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("inactive queue is not found", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByIDForUpdate", f.ctx, int64(1)).Return(hero, nil)
		f.uow.Queues.On("GetByID", f.ctx, int64(10)).
			Return(&models.QueueDefinition{ID: 10, Name: "Meteors", IsActive: false}, nil)

		_, err := f.service.Join(f.ctx, 1, 10, 100)

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("someone else's character is forbidden", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByIDForUpdate", f.ctx, int64(1)).Return(hero, nil)
		f.uow.Queues.On("GetByID", f.ctx, int64(10)).Return(meteors, nil)
		f.uow.Characters.On("GetByID", f.ctx, int64(200)).
			Return(&models.Character{ID: 200, MemberID: 2, Nickname: "Zeus"}, nil)

		_, err := f.service.Join(f.ctx, 1, 10, 200)

		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("existing membership wins over the lock", func(t *testing.T) {
		f := newQueueFixture()
		locked := &models.QueueDefinition{ID: 10, Name: "Meteors", IsActive: true, IsLocked: true}
		f.uow.Members.On("GetByIDForUpdate", f.ctx, int64(1)).Return(hero, nil)
		f.uow.Queues.On("GetByID", f.ctx, int64(10)).Return(locked, nil)
		f.uow.Characters.On("GetByID", f.ctx, int64(100)).Return(heroMain, nil)
		f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(1), int64(10)).
			Return(&models.Membership{ID: 50}, nil)

		_, err := f.service.Join(f.ctx, 1, 10, 100)

		assert.ErrorIs(t, err, ErrAlreadyMember)
	})

	t.Run("locked queue refuses new joins", func(t *testing.T) {
		f := newQueueFixture()
		locked := &models.QueueDefinition{ID: 10, Name: "Meteors", IsActive: true, IsLocked: true}
		f.uow.Members.On("GetByIDForUpdate", f.ctx, int64(1)).Return(hero, nil)
		f.uow.Queues.On("GetByID", f.ctx, int64(10)).Return(locked, nil)
		f.uow.Characters.On("GetByID", f.ctx, int64(100)).Return(heroMain, nil)
		f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(1), int64(10)).Return(nil, nil)

		_, err := f.service.Join(f.ctx, 1, 10, 100)

		assert.ErrorIs(t, err, ErrQueueLocked)
		f.uow.Memberships.AssertNotCalled(t, "CountByMember", mock.Anything, mock.Anything)
	})

	t.Run("limit counts every queue", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByIDForUpdate", f.ctx, int64(1)).Return(hero, nil)
		f.uow.Queues.On("GetByID", f.ctx, int64(10)).Return(meteors, nil)
		f.uow.Characters.On("GetByID", f.ctx, int64(100)).Return(heroMain, nil)
		f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(1), int64(10)).Return(nil, nil)
		f.uow.Memberships.On("CountByMember", f.ctx, int64(1)).Return(1, nil)
		f.uow.Settings.On("Get", f.ctx, models.SettingDefaultLimit).Return("1", true, nil)

		_, err := f.service.Join(f.ctx, 1, 10, 100)

		assert.ErrorIs(t, err, ErrLimitExceeded)
		f.uow.Memberships.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.uow.AssertNotCalled(t, "Commit")
	})
}

func TestQueueService_Leave_NotMember(t *testing.T) {
	f := newQueueFixture()
	f.uow.Members.On("GetByID", f.ctx, int64(1)).Return(hero, nil)
	f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(1), int64(10)).Return(nil, nil)

	err := f.service.Leave(f.ctx, 1, 10)

	assert.ErrorIs(t, err, ErrNotMember)
}

func TestQueueService_Leave_DeleteRaceReportsNotMember(t *testing.T) {
	f := newQueueFixture()
	f.uow.Members.On("GetByID", f.ctx, int64(1)).Return(hero, nil)
	f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(1), int64(10)).
		Return(&models.Membership{ID: 50, MemberID: 1, QueueName: "Meteors"}, nil)
	f.uow.Memberships.On("Delete", f.ctx, int64(50)).Return(false, nil)

	err := f.service.Leave(f.ctx, 1, 10)

	assert.ErrorIs(t, err, ErrNotMember)
	f.uow.Audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestQueueService_Swap(t *testing.T) {
	t.Run("updates the nickname in place", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.On("Commit").Return(nil)
		alt := &models.Character{ID: 101, MemberID: 1, Nickname: "HeroAlt"}
		f.uow.Members.On("GetByID", f.ctx, int64(1)).Return(hero, nil)
		f.uow.Characters.On("GetByID", f.ctx, int64(101)).Return(alt, nil)
		f.uow.Memberships.On("GetByID", f.ctx, int64(50)).
			Return(&models.Membership{ID: 50, MemberID: 1, QueueID: 10, QueueName: "Meteors", CharacterNickname: "Hero"}, nil)
		f.uow.Memberships.On("UpdateCharacter", f.ctx, int64(50), "HeroAlt").Return(nil)
		f.uow.Characters.On("GetMain", f.ctx, int64(1)).Return(heroMain, nil)
		f.uow.Audit.On("Append", f.ctx, mock.MatchedBy(func(entry *models.AuditEntry) bool {
			return entry.Status == models.AuditStatusSwapped && entry.Detail == "Hero" && entry.CharacterNickname == "HeroAlt"
		})).Return(nil)
		f.uow.Events.On("Publish", isEvent[events.AuditRecordedEvent]()).Return()

		membership, err := f.service.Swap(f.ctx, 1, 50, 101)

		require.NoError(t, err)
		assert.Equal(t, "HeroAlt", membership.CharacterNickname)
		assert.Equal(t, int64(10), membership.QueueID)
		f.uow.AssertAllExpectations(t)
	})

	t.Run("membership of another member", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByID", f.ctx, int64(1)).Return(hero, nil)
		f.uow.Characters.On("GetByID", f.ctx, int64(100)).Return(heroMain, nil)
		f.uow.Memberships.On("GetByID", f.ctx, int64(77)).
			Return(&models.Membership{ID: 77, MemberID: 2}, nil)

		_, err := f.service.Swap(f.ctx, 1, 77, 100)

		assert.ErrorIs(t, err, ErrNotMember)
	})
}

func TestQueueService_Issue(t *testing.T) {
	gm := &models.Member{ID: 9, Handle: "boss", IsGuildmaster: true}
	membership := &models.Membership{
		ID: 50, MemberID: 1, QueueID: 10, QueueName: "Meteors",
		CharacterNickname: "Hero", MemberPlatformID: 1001,
	}

	t.Run("records history and vacates the slot", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.On("Commit").Return(nil)
		issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		f.uow.Members.On("GetByID", f.ctx, int64(9)).Return(gm, nil)
		f.uow.Memberships.On("GetByID", f.ctx, int64(50)).Return(membership, nil)
		f.uow.Memberships.On("Delete", f.ctx, int64(50)).Return(true, nil)
		f.uow.Rewards.On("Record", f.ctx, mock.MatchedBy(func(entry *models.RewardHistoryEntry) bool {
			return entry.MemberID == 1 && entry.QueueName == "Meteors" && entry.IssuerHandle == "boss"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.RewardHistoryEntry).IssuedAt = issuedAt
		}).Return(nil)
		f.uow.Characters.On("GetMain", f.ctx, int64(1)).Return(heroMain, nil)
		f.uow.Audit.On("Append", f.ctx, auditWith(models.AuditStatusIssued)).Return(nil)
		f.uow.Events.On("Publish", isEvent[events.AuditRecordedEvent]()).Return()
		f.uow.Events.On("Publish", events.RewardIssuedEvent{
			MemberID:          1,
			PlatformID:        1001,
			QueueID:           10,
			QueueName:         "Meteors",
			CharacterNickname: "Hero",
			IssuerHandle:      "boss",
			IssuedAt:          issuedAt,
		}).Return()

		entry, err := f.service.Issue(f.ctx, 9, 50)

		require.NoError(t, err)
		assert.Equal(t, "Hero", entry.CharacterNickname)
		f.uow.AssertAllExpectations(t)
	})

	t.Run("second issue finds nothing", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByID", f.ctx, int64(9)).Return(gm, nil)
		f.uow.Memberships.On("GetByID", f.ctx, int64(50)).Return(membership, nil)
		f.uow.Memberships.On("Delete", f.ctx, int64(50)).Return(false, nil)

		_, err := f.service.Issue(f.ctx, 9, 50)

		assert.ErrorIs(t, err, ErrAlreadyIssued)
		f.uow.Rewards.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
		f.uow.Events.AssertNotCalled(t, "Publish", mock.Anything)
	})

	t.Run("missing membership", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByID", f.ctx, int64(9)).Return(gm, nil)
		f.uow.Memberships.On("GetByID", f.ctx, int64(50)).Return(nil, nil)

		_, err := f.service.Issue(f.ctx, 9, 50)

		assert.ErrorIs(t, err, ErrAlreadyIssued)
	})

	t.Run("members cannot issue", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByID", f.ctx, int64(1)).Return(hero, nil)

		_, err := f.service.Issue(f.ctx, 1, 50)

		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestQueueService_ForceAdd(t *testing.T) {
	gm := &models.Member{ID: 9, Handle: "boss", IsGuildmaster: true}

	t.Run("unknown nickname is attributed to the guildmaster", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.On("Commit").Return(nil)
		f.uow.Members.On("GetByID", f.ctx, int64(9)).Return(gm, nil)
		f.uow.Queues.On("GetByID", f.ctx, int64(10)).
			Return(&models.QueueDefinition{ID: 10, Name: "Meteors", IsActive: true, IsLocked: true}, nil)
		f.uow.Characters.On("GetByNickname", f.ctx, "Stranger").Return(nil, nil)
		f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(9), int64(10)).Return(nil, nil)
		f.uow.Memberships.On("Create", f.ctx, int64(9), int64(10), "Stranger").
			Return(&models.Membership{ID: 60, MemberID: 9, QueueID: 10, CharacterNickname: "Stranger"}, nil)
		f.uow.Characters.On("GetMain", f.ctx, int64(9)).Return(nil, nil)
		f.uow.Audit.On("Append", f.ctx, mock.MatchedBy(func(entry *models.AuditEntry) bool {
			return entry.Status == models.AuditStatusForceAdded &&
				entry.MemberID == 9 &&
				entry.MainNickname == "Stranger" &&
				entry.ActorHandle == "boss"
		})).Return(nil)
		f.uow.Events.On("Publish", isEvent[events.AuditRecordedEvent]()).Return()

		membership, err := f.service.ForceAdd(f.ctx, 9, 10, " Stranger ")

		require.NoError(t, err)
		assert.Equal(t, int64(9), membership.MemberID)
		f.uow.Characters.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.uow.AssertAllExpectations(t)
	})

	t.Run("known nickname goes to its owner", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.On("Commit").Return(nil)
		f.uow.Members.On("GetByID", f.ctx, int64(9)).Return(gm, nil)
		f.uow.Queues.On("GetByID", f.ctx, int64(10)).Return(meteors, nil)
		f.uow.Characters.On("GetByNickname", f.ctx, "HeroAlt").
			Return(&models.Character{ID: 101, MemberID: 1, Nickname: "HeroAlt"}, nil)
		f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(1), int64(10)).Return(nil, nil)
		f.uow.Memberships.On("Create", f.ctx, int64(1), int64(10), "HeroAlt").
			Return(&models.Membership{ID: 61, MemberID: 1, QueueID: 10, CharacterNickname: "HeroAlt"}, nil)
		f.uow.Characters.On("GetMain", f.ctx, int64(1)).Return(heroMain, nil)
		f.uow.Audit.On("Append", f.ctx, mock.MatchedBy(func(entry *models.AuditEntry) bool {
			return entry.MemberID == 1 && entry.MainNickname == "Hero"
		})).Return(nil)
		f.uow.Events.On("Publish", isEvent[events.AuditRecordedEvent]()).Return()

		membership, err := f.service.ForceAdd(f.ctx, 9, 10, "HeroAlt")

		require.NoError(t, err)
		assert.Equal(t, int64(1), membership.MemberID)
	})

	t.Run("still refuses a second membership", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByID", f.ctx, int64(9)).Return(gm, nil)
		f.uow.Queues.On("GetByID", f.ctx, int64(10)).Return(meteors, nil)
		f.uow.Characters.On("GetByNickname", f.ctx, "Hero").Return(heroMain, nil)
		f.uow.Memberships.On("GetByMemberAndQueue", f.ctx, int64(1), int64(10)).
			Return(&models.Membership{ID: 50}, nil)

		_, err := f.service.ForceAdd(f.ctx, 9, 10, "Hero")

		assert.ErrorIs(t, err, ErrAlreadyMember)
	})

	t.Run("regular member is refused before any lookup", func(t *testing.T) {
		f := newQueueFixture()
		f.uow.Members.On("GetByID", f.ctx, int64(1)).Return(&models.Member{ID: 1, Handle: "hero"}, nil)

		_, err := f.service.ForceAdd(f.ctx, 1, 10, "Nobody")

		assert.ErrorIs(t, err, ErrForbidden)
		f.uow.Characters.AssertNotCalled(t, "GetByNickname", mock.Anything, mock.Anything)
		f.uow.Memberships.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestQueueService_ForceRemove_Gone(t *testing.T) {
	f := newQueueFixture()
	f.uow.Members.On("GetByID", f.ctx, int64(9)).Return(&models.Member{ID: 9, IsGuildmaster: true}, nil)
	f.uow.Memberships.On("GetByID", f.ctx, int64(50)).Return(nil, nil)

	err := f.service.ForceRemove(f.ctx, 9, 50)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueService_ToggleLock_LeavesMembershipsAlone(t *testing.T) {
	f := newQueueFixture()
	f.uow.On("Commit").Return(nil)
	f.uow.Members.On("GetByID", f.ctx, int64(9)).Return(&models.Member{ID: 9, IsGuildmaster: true}, nil)
	f.uow.Queues.On("GetByID", f.ctx, int64(10)).
		Return(&models.QueueDefinition{ID: 10, Name: "Meteors", IsActive: true}, nil)
	f.uow.Queues.On("SetLocked", f.ctx, int64(10), true).Return(nil)

	queue, err := f.service.ToggleLock(f.ctx, 9, 10)

	require.NoError(t, err)
	assert.True(t, queue.IsLocked)
	assert.Empty(t, f.uow.Memberships.Calls)
	f.uow.AssertAllExpectations(t)
}
