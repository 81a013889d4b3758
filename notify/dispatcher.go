package notify

import (
	"context"
	"fmt"

	"guildbot/events"
	"guildbot/models"
	"guildbot/service"
	"guildbot/worker"

	log "github.com/sirupsen/logrus"
)

// TaskSubmitter queues background work
type TaskSubmitter interface {
	Submit(name string, task worker.Task) bool
}

// Subscriber registers event handlers
type Subscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler)
}

// Dispatcher tells members about issued rewards
type Dispatcher struct {
	notifier service.Notifier
	tasks    TaskSubmitter
}

func NewDispatcher(notifier service.Notifier, tasks TaskSubmitter) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		tasks:    tasks,
	}
}

// Subscribe attaches the dispatcher to the event bus
func (d *Dispatcher) Subscribe(bus Subscriber) {
	bus.Subscribe(events.EventTypeRewardIssued, d.handleRewardIssued)
	log.Info("Reward notifications subscribed to reward events")
}

// RewardNotice renders the direct message sent when a reward is issued
func RewardNotice(queueName, characterNickname string) string {
	return fmt.Sprintf("🎉 **A guildmaster issued your reward:** %s (%s)\nCollect it in game, then join this or another queue again.",
		queueName, characterNickname)
}

func (d *Dispatcher) handleRewardIssued(_ context.Context, event events.Event) {
	issued, ok := event.(events.RewardIssuedEvent)
	if !ok {
		log.WithField("eventType", event.Type()).Error("Reward dispatcher received unexpected event")
		return
	}

	text := RewardNotice(issued.QueueName, issued.CharacterNickname)
	actions := []models.NotificationAction{
		models.RejoinAction(issued.QueueID),
		models.QueuesAction(),
	}

	accepted := d.tasks.Submit("reward-notification", func(ctx context.Context) error {
		if err := d.notifier.Notify(ctx, issued.PlatformID, text, actions); err != nil {
			// Members with closed DMs are common
			log.WithFields(log.Fields{
				"member_id": issued.MemberID,
				"queue":     issued.QueueName,
				"error":     err,
			}).Warn("Failed to deliver reward notification")
			return err
		}
		return nil
	})
	if !accepted {
		log.WithFields(log.Fields{
			"member_id": issued.MemberID,
			"queue":     issued.QueueName,
		}).Warn("Reward notification dropped")
	}
}
