package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"guildbot/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultBroadcastConcurrency bounds parallel deliveries of one broadcast
const DefaultBroadcastConcurrency = 4

// broadcaster implements the Broadcaster interface
type broadcaster struct {
	uowFactory  UnitOfWorkFactory
	notifier    Notifier
	concurrency int
}

// NewBroadcaster creates a broadcaster that delivers through notifier
func NewBroadcaster(uowFactory UnitOfWorkFactory, notifier Notifier, concurrency int) Broadcaster {
	if concurrency <= 0 {
		concurrency = DefaultBroadcastConcurrency
	}
	return &broadcaster{
		uowFactory:  uowFactory,
		notifier:    notifier,
		concurrency: concurrency,
	}
}

// Broadcast sends text to every member that owns a character. A ban only restricts queues.
// A failed delivery is counted and logged; it never stops the others.
func (b *broadcaster) Broadcast(ctx context.Context, text string) (models.BroadcastResult, error) {
	recipients, err := b.recipients(ctx)
	if err != nil {
		return models.BroadcastResult{}, err
	}

	var delivered, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, member := range recipients {
		g.Go(func() error {
			if err := b.notifier.Notify(gctx, member.PlatformID, text, nil); err != nil {
				failed.Add(1)
				log.WithFields(log.Fields{
					"member_id":   member.ID,
					"platform_id": member.PlatformID,
					"error":       err,
				}).Warn("Failed to deliver announcement")
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	g.Wait()

	return models.BroadcastResult{
		Recipients: len(recipients),
		Delivered:  int(delivered.Load()),
		Failed:     int(failed.Load()),
	}, nil
}

func (b *broadcaster) recipients(ctx context.Context) ([]*models.Member, error) {
	uow := b.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	members, err := uow.MemberRepository().ListBroadcastRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcast recipients: %w", err)
	}
	return members, nil
}
