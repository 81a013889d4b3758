package models

import (
	"time"
)

// Member represents a guild member identified by their Discord ID
type Member struct {
	ID            int64     `db:"id"`
	PlatformID    int64     `db:"platform_id"`
	Handle        string    `db:"handle"`
	IsGuildmaster bool      `db:"is_guildmaster"`
	IsBanned      bool      `db:"is_banned"`
	PersonalLimit *int      `db:"personal_limit"` // nil inherits the global default
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// HasPersonalLimit reports whether the member overrides the global limit
func (m *Member) HasPersonalLimit() bool {
	return m.PersonalLimit != nil && *m.PersonalLimit > 0
}
