package service

import (
	"context"
	"fmt"

	"guildbot/models"

	log "github.com/sirupsen/logrus"
)

// SeedDefaults inserts the catalog queues and the default limit. Existing rows are left alone.
func SeedDefaults(ctx context.Context, uowFactory UnitOfWorkFactory) error {
	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	created := 0
	for _, name := range models.DefaultQueueCatalog {
		inserted, err := uow.QueueRepository().CreateIfMissing(ctx, name, models.DefaultQueueDescription)
		if err != nil {
			return fmt.Errorf("failed to seed queue %q: %w", name, err)
		}
		if inserted {
			created++
		}
	}

	limitSeeded, err := uow.SettingsRepository().SetIfMissing(ctx, models.SettingDefaultLimit, models.DefaultLimitValue)
	if err != nil {
		return fmt.Errorf("failed to seed default limit: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"queues_created": created,
		"limit_seeded":   limitSeeded,
	}).Info("Default data seeded")

	return nil
}
