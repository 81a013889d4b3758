package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guildbot/events"
	"guildbot/models"
	"guildbot/scheduler"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// announcementService implements the AnnouncementService interface
type announcementService struct {
	uowFactory  UnitOfWorkFactory
	jobs        JobScheduler
	broadcaster Broadcaster
	clock       clockwork.Clock
	loc         *time.Location
}

// NewAnnouncementService creates a new announcement service.
// loc is the guild zone used to read one-shot times and to compute recurring fire times.
func NewAnnouncementService(uowFactory UnitOfWorkFactory, jobs JobScheduler, broadcaster Broadcaster, clock clockwork.Clock, loc *time.Location) AnnouncementService {
	return &announcementService{
		uowFactory:  uowFactory,
		jobs:        jobs,
		broadcaster: broadcaster,
		clock:       clock,
		loc:         loc,
	}
}

// buildAnnouncement validates raw input and turns it into an announcement ready to persist
func (s *announcementService) buildAnnouncement(request models.AnnouncementRequest) (*models.Announcement, error) {
	text := strings.TrimSpace(request.Text)
	if text == "" {
		return nil, fmt.Errorf("announcement text is empty: %w", ErrValidation)
	}

	announcement := &models.Announcement{
		Text:     text,
		Kind:     request.Kind,
		IsActive: true,
	}

	switch request.Kind {
	case models.AnnouncementImmediate:
		announcement.IsActive = false

	case models.AnnouncementDaily, models.AnnouncementWeekly:
		hour, minute, err := scheduler.ParseTimeOfDay(request.TimeOfDay)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		announcement.TimeOfDay = fmt.Sprintf("%02d:%02d", hour, minute)

		if request.Kind == models.AnnouncementWeekly {
			days, err := scheduler.NormalizeWeekdays(request.Weekdays)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrValidation, err)
			}
			announcement.Weekdays = days
		}

	case models.AnnouncementOnce:
		runAt, err := scheduler.ParseRunAt(request.RunAt, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if !runAt.After(s.clock.Now()) {
			return nil, fmt.Errorf("run time %s is in the past: %w", runAt.Format(scheduler.RunAtLayout), ErrValidation)
		}
		announcement.RunAt = &runAt

	default:
		return nil, fmt.Errorf("unknown announcement kind %q: %w", request.Kind, ErrValidation)
	}

	return announcement, nil
}

// Create stores an announcement. Immediate announcements are broadcast first and stored inactive;
// the other kinds are scheduled once the row is committed.
func (s *announcementService) Create(ctx context.Context, actorID int64, request models.AnnouncementRequest) (*models.Announcement, error) {
	announcement, err := s.buildAnnouncement(request)
	if err != nil {
		return nil, err
	}

	actor, err := s.guildmaster(ctx, actorID)
	if err != nil {
		return nil, err
	}
	announcement.CreatedBy = actor.Handle

	var result models.BroadcastResult
	if announcement.Kind == models.AnnouncementImmediate {
		result, err = s.broadcaster.Broadcast(ctx, announcement.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to broadcast announcement: %w", err)
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.AnnouncementRepository().Create(ctx, announcement); err != nil {
		return nil, fmt.Errorf("failed to store announcement: %w", err)
	}

	if announcement.Kind == models.AnnouncementImmediate {
		uow.EventBus().Publish(events.AnnouncementBroadcastEvent{
			AnnouncementID: announcement.ID,
			Kind:           announcement.Kind,
			Recipients:     result.Recipients,
			Delivered:      result.Delivered,
			Failed:         result.Failed,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if announcement.IsActive {
		if err := s.jobs.Schedule(announcement); err != nil {
			return nil, fmt.Errorf("failed to schedule announcement %d: %w", announcement.ID, err)
		}
	}

	log.WithFields(log.Fields{
		"announcement_id": announcement.ID,
		"kind":            announcement.Kind,
		"actor":           actor.Handle,
	}).Info("Announcement created")

	return announcement, nil
}

// Cancel deactivates an announcement and drops its job
func (s *announcementService) Cancel(ctx context.Context, actorID, announcementID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return err
	}

	found, err := uow.AnnouncementRepository().Deactivate(ctx, announcementID)
	if err != nil {
		return fmt.Errorf("failed to deactivate announcement: %w", err)
	}
	if !found {
		return fmt.Errorf("announcement %d: %w", announcementID, ErrNotFound)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.jobs.Unschedule(announcementID)
	return nil
}

// ListActive returns the active announcements
func (s *announcementService) ListActive(ctx context.Context, actorID int64) ([]*models.Announcement, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := requireGuildmaster(ctx, uow, actorID); err != nil {
		return nil, err
	}

	announcements, err := uow.AnnouncementRepository().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	return announcements, nil
}

// RestoreSchedules re-registers every active scheduled announcement.
// A row whose schedule no longer parses is logged and skipped.
func (s *announcementService) RestoreSchedules(ctx context.Context) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	announcements, err := uow.AnnouncementRepository().ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list announcements: %w", err)
	}

	restored := 0
	for _, announcement := range announcements {
		if announcement.Kind == models.AnnouncementImmediate {
			continue
		}
		if err := s.jobs.Schedule(announcement); err != nil {
			log.WithFields(log.Fields{
				"announcement_id": announcement.ID,
				"error":           err,
			}).Warn("Skipping announcement with an invalid schedule")
			continue
		}
		restored++
	}

	log.WithField("restored", restored).Info("Announcement schedules restored")
	return restored, nil
}

// RunAnnouncement broadcasts an announcement when its job fires.
// Inactive or missing rows are skipped; a one-shot row is deactivated after it runs.
// It returns an error only when nothing was sent, so a retry cannot deliver twice.
func (s *announcementService) RunAnnouncement(ctx context.Context, announcementID int64) error {
	logger := log.WithField("announcement_id", announcementID)

	announcement, err := s.loadAnnouncement(ctx, announcementID)
	if err != nil {
		return fmt.Errorf("failed to load announcement %d: %w", announcementID, err)
	}
	if announcement == nil || !announcement.IsActive {
		logger.Info("Announcement is no longer active, skipping")
		return nil
	}

	result, err := s.broadcaster.Broadcast(ctx, announcement.Text)
	if err != nil {
		return fmt.Errorf("failed to broadcast announcement %d: %w", announcementID, err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		logger.WithError(err).Error("Failed to begin transaction")
		return nil
	}
	defer uow.Rollback()

	if announcement.Kind == models.AnnouncementOnce {
		if _, err := uow.AnnouncementRepository().Deactivate(ctx, announcement.ID); err != nil {
			logger.WithError(err).Error("Failed to deactivate one-shot announcement")
			return nil
		}
	}

	uow.EventBus().Publish(events.AnnouncementBroadcastEvent{
		AnnouncementID: announcement.ID,
		Kind:           announcement.Kind,
		Recipients:     result.Recipients,
		Delivered:      result.Delivered,
		Failed:         result.Failed,
	})

	if err := uow.Commit(); err != nil {
		logger.WithError(err).Error("Failed to commit transaction")
		return nil
	}

	logger.WithFields(log.Fields{
		"recipients": result.Recipients,
		"delivered":  result.Delivered,
		"failed":     result.Failed,
	}).Info("Announcement broadcast")
	return nil
}

func (s *announcementService) loadAnnouncement(ctx context.Context, announcementID int64) (*models.Announcement, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.AnnouncementRepository().GetByID(ctx, announcementID)
}

func (s *announcementService) guildmaster(ctx context.Context, actorID int64) (*models.Member, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return requireGuildmaster(ctx, uow, actorID)
}
