package models

import (
	"time"
)

// Membership places one member in one queue under a character nickname
type Membership struct {
	ID                int64     `db:"id"`
	MemberID          int64     `db:"member_id"`
	QueueID           int64     `db:"queue_id"`
	CharacterNickname string    `db:"character_nickname"`
	JoinedAt          time.Time `db:"joined_at"`

	// Populated by queries that join members and queues
	QueueName        string `db:"-"`
	MemberHandle     string `db:"-"`
	MemberPlatformID int64  `db:"-"`
}
