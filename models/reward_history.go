package models

import (
	"time"
)

// RewardHistoryEntry is an immutable record of an issued reward
type RewardHistoryEntry struct {
	ID                int64     `db:"id"`
	MemberID          int64     `db:"member_id"`
	CharacterNickname string    `db:"character_nickname"`
	QueueName         string    `db:"queue_name"`
	IssuerHandle      string    `db:"issuer_handle"`
	IssuedAt          time.Time `db:"issued_at"`
}
