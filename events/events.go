package events

import (
	"context"
	"sync"
	"time"

	"guildbot/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeMemberCreated         EventType = "member_created"
	EventTypeAuditRecorded         EventType = "audit_recorded"
	EventTypeRewardIssued          EventType = "reward_issued"
	EventTypeAnnouncementBroadcast EventType = "announcement_broadcast"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// MemberCreatedEvent is emitted when a platform identity is seen for the first time
type MemberCreatedEvent struct {
	MemberID      int64  `json:"member_id"`
	PlatformID    int64  `json:"platform_id"`
	Handle        string `json:"handle"`
	IsGuildmaster bool   `json:"is_guildmaster"`
}

func (e MemberCreatedEvent) Type() EventType {
	return EventTypeMemberCreated
}

// AuditRecordedEvent carries a committed audit entry
type AuditRecordedEvent struct {
	Entry models.AuditEntry `json:"entry"`
}

func (e AuditRecordedEvent) Type() EventType {
	return EventTypeAuditRecorded
}

// RewardIssuedEvent is emitted once a reward has been issued and the slot vacated
type RewardIssuedEvent struct {
	MemberID          int64     `json:"member_id"`
	PlatformID        int64     `json:"platform_id"`
	QueueID           int64     `json:"queue_id"`
	QueueName         string    `json:"queue_name"`
	CharacterNickname string    `json:"character_nickname"`
	IssuerHandle      string    `json:"issuer_handle"`
	IssuedAt          time.Time `json:"issued_at"`
}

func (e RewardIssuedEvent) Type() EventType {
	return EventTypeRewardIssued
}

// AnnouncementBroadcastEvent is emitted after an announcement fan-out finishes
type AnnouncementBroadcastEvent struct {
	AnnouncementID int64                   `json:"announcement_id"`
	Kind           models.AnnouncementKind `json:"kind"`
	Recipients     int                     `json:"recipients"`
	Delivered      int                     `json:"delivered"`
	Failed         int                     `json:"failed"`
}

func (e AnnouncementBroadcastEvent) Type() EventType {
	return EventTypeAnnouncementBroadcast
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers.
// Handlers run on their own goroutines; a panicking handler is logged and does not affect the others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Publish emits the event immediately, which lets Bus stand in for a publisher outside a unit of work
func (b *Bus) Publish(e Event) {
	b.Emit(context.Background(), e)
}

// TransactionalBus holds events raised inside a unit of work until it commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits pending events; called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing transactional bus")

	// Handlers outlive the request that committed the transaction
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events; called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}
