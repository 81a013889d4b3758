package models

import (
	"time"
)

// DefaultQueueDescription is used for seeded queues
const DefaultQueueDescription = "Standard terms"

// DefaultQueueCatalog is the set of queues created on first boot
var DefaultQueueCatalog = []string{
	"Valor Stone",
	"Meteors",
	"Fu Xi Pearls",
	"Disk Experience",
	"Underworld Passes",
	"Unity Signs",
	"Card Deck",
	"Card Essence",
	"Deity Stone",
	"Immortal Stones",
	"Qilin",
}

// QueueDefinition is a named reward pool
type QueueDefinition struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsActive    bool      `db:"is_active"`
	IsLocked    bool      `db:"is_locked"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// QueueSummary is a queue together with its current membership count
type QueueSummary struct {
	Queue       *QueueDefinition
	MemberCount int
}

// QueueDetail is a queue together with its memberships in join order
type QueueDetail struct {
	Queue       *QueueDefinition
	Memberships []*Membership
}
