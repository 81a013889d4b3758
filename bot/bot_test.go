package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"guildbot/bot/common"
	"guildbot/models"
	"guildbot/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockMembers struct {
	mock.Mock
}

func (m *mockMembers) EnsureMember(ctx context.Context, platformID int64, handle string) (*models.Member, error) {
	args := m.Called(ctx, platformID, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *mockMembers) ListCharacters(ctx context.Context, memberID int64) ([]*models.Character, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Character), args.Error(1)
}

type mockQueues struct {
	mock.Mock
}

func (m *mockQueues) ListQueues(ctx context.Context) ([]*models.QueueSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QueueSummary), args.Error(1)
}

func (m *mockQueues) Join(ctx context.Context, memberID, queueID, characterID int64) (*models.Membership, error) {
	args := m.Called(ctx, memberID, queueID, characterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func newTestBot() (*Bot, *mockMembers, *mockQueues) {
	members := &mockMembers{}
	queues := &mockQueues{}
	return &Bot{members: members, queues: queues}, members, queues
}

var discordUser = &discordgo.User{ID: "1001", Username: "hero"}

func TestHandleComponent_Rejoin(t *testing.T) {
	ctx := context.Background()
	b, members, queues := newTestBot()

	hero := &models.Member{ID: 1, PlatformID: 1001, Handle: "hero"}
	members.On("EnsureMember", ctx, int64(1001), "hero").Return(hero, nil)
	members.On("ListCharacters", ctx, int64(1)).Return([]*models.Character{
		{ID: 100, MemberID: 1, Nickname: "Hero", IsMain: true},
		{ID: 101, MemberID: 1, Nickname: "HeroAlt"},
	}, nil)
	queues.On("Join", ctx, int64(1), int64(10), int64(100)).
		Return(&models.Membership{ID: 5, MemberID: 1, QueueID: 10, CharacterNickname: "Hero"}, nil)

	content, err := b.handleComponent(ctx, discordUser, "rejoin:10")

	require.NoError(t, err)
	assert.Equal(t, "✅ You are back in the queue as **Hero**.", content)
	members.AssertExpectations(t)
	queues.AssertExpectations(t)
}

func TestHandleComponent_RejoinWithoutMain(t *testing.T) {
	ctx := context.Background()
	b, members, queues := newTestBot()

	members.On("EnsureMember", ctx, int64(1001), "hero").Return(&models.Member{ID: 1}, nil)
	members.On("ListCharacters", ctx, int64(1)).Return([]*models.Character{}, nil)

	_, err := b.handleComponent(ctx, discordUser, "rejoin:10")

	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrMainRequired)
	queues.AssertNotCalled(t, "Join", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleComponent_RejoinRejected(t *testing.T) {
	ctx := context.Background()
	b, members, queues := newTestBot()

	members.On("EnsureMember", ctx, int64(1001), "hero").Return(&models.Member{ID: 1}, nil)
	members.On("ListCharacters", ctx, int64(1)).Return([]*models.Character{{ID: 100, Nickname: "Hero", IsMain: true}}, nil)
	queues.On("Join", ctx, int64(1), int64(10), int64(100)).Return(nil, service.ErrLimitExceeded)

	_, err := b.handleComponent(ctx, discordUser, "rejoin:10")

	var botErr *common.BotError
	require.ErrorAs(t, err, &botErr)
	assert.False(t, botErr.System)
	assert.Equal(t, "You have reached your queue limit. Leave a queue first.", botErr.UserMessage)
}

func TestHandleComponent_QueueList(t *testing.T) {
	ctx := context.Background()
	b, _, queues := newTestBot()

	queues.On("ListQueues", ctx).Return([]*models.QueueSummary{
		{Queue: &models.QueueDefinition{ID: 10, Name: "Meteors"}, MemberCount: 2},
	}, nil)

	content, err := b.handleComponent(ctx, discordUser, models.QueuesCustomID)

	require.NoError(t, err)
	assert.Contains(t, content, "**Meteors** (2)")
}

func TestHandleComponent_IgnoresForeignButtons(t *testing.T) {
	b, members, queues := newTestBot()

	for _, customID := range []string{"leaderboard_page_2", "rejoin:", "rejoin:abc", "rejoin:-3"} {
		content, err := b.handleComponent(context.Background(), discordUser, customID)
		assert.NoError(t, err, customID)
		assert.Empty(t, content, customID)
	}
	members.AssertNotCalled(t, "EnsureMember", mock.Anything, mock.Anything, mock.Anything)
	queues.AssertNotCalled(t, "ListQueues", mock.Anything)
}

type fakeMessenger struct {
	channelErr error
	sendErr    error
	recipients []string
	sent       []*discordgo.MessageSend
}

func (f *fakeMessenger) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.recipients = append(f.recipients, recipientID)
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeMessenger) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, data)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func TestDiscordNotifier_SendsButtons(t *testing.T) {
	messenger := &fakeMessenger{}
	notifier := newDiscordNotifier(messenger, rate.Inf, 1)

	err := notifier.Notify(context.Background(), 1001, "reward issued", []models.NotificationAction{
		models.RejoinAction(10),
		models.QueuesAction(),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"1001"}, messenger.recipients)
	require.Len(t, messenger.sent, 1)
	assert.Equal(t, "reward issued", messenger.sent[0].Content)
	require.Len(t, messenger.sent[0].Components, 2)

	row := messenger.sent[0].Components[0].(discordgo.ActionsRow)
	button := row.Components[0].(discordgo.Button)
	assert.Equal(t, "rejoin:10", button.CustomID)
	assert.Equal(t, "Join this queue again", button.Label)
}

func TestDiscordNotifier_PlainText(t *testing.T) {
	messenger := &fakeMessenger{}
	notifier := newDiscordNotifier(messenger, rate.Inf, 1)

	require.NoError(t, notifier.Notify(context.Background(), 1001, "raid tonight", nil))
	require.Len(t, messenger.sent, 1)
	assert.Empty(t, messenger.sent[0].Components)
}

func TestDiscordNotifier_Errors(t *testing.T) {
	closed := &fakeMessenger{channelErr: errors.New("cannot send messages to this user")}
	err := newDiscordNotifier(closed, rate.Inf, 1).Notify(context.Background(), 1001, "hi", nil)
	assert.ErrorContains(t, err, "failed to open DM channel for 1001")

	failing := &fakeMessenger{sendErr: errors.New("500")}
	err = newDiscordNotifier(failing, rate.Inf, 1).Notify(context.Background(), 1001, "hi", nil)
	assert.ErrorContains(t, err, "failed to send DM to 1001")
}

func TestDiscordNotifier_RespectsContextWhileThrottled(t *testing.T) {
	messenger := &fakeMessenger{}
	notifier := newDiscordNotifier(messenger, rate.Every(time.Hour), 1)

	require.NoError(t, notifier.Notify(context.Background(), 1, "first", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := notifier.Notify(ctx, 2, "second", nil)

	assert.Error(t, err)
	assert.Len(t, messenger.sent, 1)
}
