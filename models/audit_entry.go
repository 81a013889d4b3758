package models

import (
	"fmt"
	"time"
)

// AuditStatus labels a membership change in the audit log
type AuditStatus string

const (
	AuditStatusJoined      AuditStatus = "joined"
	AuditStatusLeft        AuditStatus = "left"
	AuditStatusSwapped     AuditStatus = "swapped"
	AuditStatusIssued      AuditStatus = "issued"
	AuditStatusForceAdded  AuditStatus = "added by guildmaster"
	AuditStatusKicked      AuditStatus = "kicked by guildmaster"
	AuditStatusMainChanged AuditStatus = "main changed"
	AuditStatusReassigned  AuditStatus = "auto-reassigned"
	AuditStatusCharDeleted AuditStatus = "removed (character deleted)"
	AuditStatusBanRemoved  AuditStatus = "removed (banned)"
)

// AuditEntry is an append-only record of a queue membership change
type AuditEntry struct {
	ID                int64       `db:"id"`
	MemberID          int64       `db:"member_id"`
	QueueName         string      `db:"queue_name"`
	MainNickname      string      `db:"main_nickname"`
	CharacterNickname string      `db:"character_nickname"`
	ActorHandle       string      `db:"actor_handle"`
	Status            AuditStatus `db:"status"`
	Detail            string      `db:"detail"` // previous nickname for swaps and main changes
	CreatedAt         time.Time   `db:"created_at"`
}

// StatusLabel renders the status with its detail, e.g. "swapped (OldNick)"
func (e *AuditEntry) StatusLabel() string {
	if e.Detail == "" {
		return string(e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Status, e.Detail)
}
