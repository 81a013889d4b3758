package repository

import (
	"context"
	"testing"

	"guildbot/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewMembershipRepository(testDB.DB)
	ctx := context.Background()

	t.Run("one membership per member and queue", func(t *testing.T) {
		testDB.Truncate(t)
		member := testutil.CreateTestMember(t, testDB.DB, 1, "player", false)
		queue := testutil.CreateTestQueue(t, testDB.DB, "Meteors")

		created, err := repo.Create(ctx, member.ID, queue.ID, "Hero")
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "Meteors", created.QueueName)
		assert.Equal(t, "player", created.MemberHandle)
		assert.Equal(t, int64(1), created.MemberPlatformID)

		duplicate, err := repo.Create(ctx, member.ID, queue.ID, "Alt")
		require.NoError(t, err)
		assert.Nil(t, duplicate)

		count, err := repo.CountByMember(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("delete reports whether a row went away", func(t *testing.T) {
		testDB.Truncate(t)
		member := testutil.CreateTestMember(t, testDB.DB, 2, "player", false)
		queue := testutil.CreateTestQueue(t, testDB.DB, "Qilin")
		id := testutil.CreateTestMembership(t, testDB.DB, member.ID, queue.ID, "Hero")

		deleted, err := repo.Delete(ctx, id)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, id)
		require.NoError(t, err)
		assert.False(t, deleted)

		gone, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("lists by queue in join order and by character", func(t *testing.T) {
		testDB.Truncate(t)
		queue := testutil.CreateTestQueue(t, testDB.DB, "Card Deck")
		other := testutil.CreateTestQueue(t, testDB.DB, "Card Essence")
		first := testutil.CreateTestMember(t, testDB.DB, 3, "first", false)
		second := testutil.CreateTestMember(t, testDB.DB, 4, "second", false)

		testutil.CreateTestMembership(t, testDB.DB, first.ID, queue.ID, "Alpha")
		testutil.CreateTestMembership(t, testDB.DB, second.ID, queue.ID, "Beta")
		testutil.CreateTestMembership(t, testDB.DB, first.ID, other.ID, "Alpha")

		inQueue, err := repo.ListByQueue(ctx, queue.ID)
		require.NoError(t, err)
		require.Len(t, inQueue, 2)
		assert.Equal(t, "Alpha", inQueue[0].CharacterNickname)
		assert.Equal(t, "Beta", inQueue[1].CharacterNickname)

		byCharacter, err := repo.ListByCharacter(ctx, first.ID, "Alpha")
		require.NoError(t, err)
		assert.Len(t, byCharacter, 2)

		byMember, err := repo.ListByMember(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, byMember, 2)
		assert.Equal(t, "Card Deck", byMember[0].QueueName)
	})

	t.Run("update character in place", func(t *testing.T) {
		testDB.Truncate(t)
		member := testutil.CreateTestMember(t, testDB.DB, 5, "player", false)
		queue := testutil.CreateTestQueue(t, testDB.DB, "Meteors")
		id := testutil.CreateTestMembership(t, testDB.DB, member.ID, queue.ID, "Old")

		require.NoError(t, repo.UpdateCharacter(ctx, id, "New"))

		updated, err := repo.GetByMemberAndQueue(ctx, member.ID, queue.ID)
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, id, updated.ID)
		assert.Equal(t, "New", updated.CharacterNickname)
	})
}
