package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"guildbot/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SubjectPrefix prefixes every forwarded event subject
const SubjectPrefix = "guildbot.events."

// ForwardedEventTypes are the committed domain events sent to NATS
var ForwardedEventTypes = []events.EventType{
	events.EventTypeMemberCreated,
	events.EventTypeAuditRecorded,
	events.EventTypeRewardIssued,
	events.EventTypeAnnouncementBroadcast,
}

// MessagePublisher sends raw payloads to a subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventEnvelope wraps a forwarded event
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// EventForwarder republishes committed events from the in-process bus to NATS
type EventForwarder struct {
	publisher   MessagePublisher
	onPublished func(eventType string)
}

// NewEventForwarder creates a forwarder; onPublished may be nil
func NewEventForwarder(publisher MessagePublisher, onPublished func(eventType string)) *EventForwarder {
	return &EventForwarder{
		publisher:   publisher,
		onPublished: onPublished,
	}
}

// SubjectFor returns the NATS subject of an event type
func SubjectFor(eventType events.EventType) string {
	return SubjectPrefix + string(eventType)
}

// Subscribe attaches the forwarder to every forwarded event type
func (f *EventForwarder) Subscribe(bus *events.Bus) {
	for _, eventType := range ForwardedEventTypes {
		bus.Subscribe(eventType, f.handleEvent)
	}
	log.WithField("eventTypes", len(ForwardedEventTypes)).Info("NATS forwarder subscribed to domain events")
}

// handleEvent runs after the originating request may have returned, so its cancellation is dropped
func (f *EventForwarder) handleEvent(ctx context.Context, event events.Event) {
	if err := f.Forward(context.WithoutCancel(ctx), event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to forward event to NATS")
	}
}

// Forward publishes one event
func (f *EventForwarder) Forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: "guildbot",
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := SubjectFor(event.Type())
	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	if f.onPublished != nil {
		f.onPublished(envelope.EventType)
	}

	log.WithFields(log.Fields{
		"eventType": envelope.EventType,
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event to NATS")

	return nil
}
