package testutil

import (
	"context"
	"testing"

	"guildbot/database"
	"guildbot/models"

	"github.com/stretchr/testify/require"
)

// CreateTestMember inserts a member row directly
func CreateTestMember(t *testing.T, db *database.DB, platformID int64, handle string, guildmaster bool) *models.Member {
	t.Helper()

	var m models.Member
	err := db.QueryRow(context.Background(), `
		INSERT INTO members (platform_id, handle, is_guildmaster)
		VALUES ($1, $2, $3)
		RETURNING id, platform_id, handle, is_guildmaster, is_banned, personal_limit, created_at, updated_at
	`, platformID, handle, guildmaster).Scan(
		&m.ID, &m.PlatformID, &m.Handle, &m.IsGuildmaster, &m.IsBanned, &m.PersonalLimit, &m.CreatedAt, &m.UpdatedAt,
	)
	require.NoError(t, err)
	return &m
}

// CreateTestCharacter inserts a character row directly
func CreateTestCharacter(t *testing.T, db *database.DB, memberID int64, nickname string, isMain bool) *models.Character {
	t.Helper()

	var c models.Character
	err := db.QueryRow(context.Background(), `
		INSERT INTO characters (member_id, nickname, is_main)
		VALUES ($1, $2, $3)
		RETURNING id, member_id, nickname, is_main, created_at
	`, memberID, nickname, isMain).Scan(&c.ID, &c.MemberID, &c.Nickname, &c.IsMain, &c.CreatedAt)
	require.NoError(t, err)
	return &c
}

// CreateTestQueue inserts an active, unlocked queue
func CreateTestQueue(t *testing.T, db *database.DB, name string) *models.QueueDefinition {
	t.Helper()

	var q models.QueueDefinition
	err := db.QueryRow(context.Background(), `
		INSERT INTO queues (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, is_active, is_locked, created_at, updated_at
	`, name, models.DefaultQueueDescription).Scan(
		&q.ID, &q.Name, &q.Description, &q.IsActive, &q.IsLocked, &q.CreatedAt, &q.UpdatedAt,
	)
	require.NoError(t, err)
	return &q
}

// CreateTestMembership inserts a membership row directly
func CreateTestMembership(t *testing.T, db *database.DB, memberID, queueID int64, nickname string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO queue_memberships (member_id, queue_id, character_nickname)
		VALUES ($1, $2, $3)
		RETURNING id
	`, memberID, queueID, nickname).Scan(&id)
	require.NoError(t, err)
	return id
}

// SetDefaultLimit stores the global default limit
func SetDefaultLimit(t *testing.T, db *database.DB, value string) {
	t.Helper()

	_, err := db.Exec(context.Background(), `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, models.SettingDefaultLimit, value)
	require.NoError(t, err)
}

// CountRows counts the rows of a table
func CountRows(t *testing.T, db *database.DB, table string) int {
	t.Helper()

	var count int
	require.NoError(t, db.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&count))
	return count
}
