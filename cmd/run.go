package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"guildbot/api"
	"guildbot/audit"
	"guildbot/bot"
	"guildbot/config"
	"guildbot/database"
	"guildbot/events"
	"guildbot/infrastructure"
	"guildbot/notify"
	"guildbot/observability"
	"guildbot/repository"
	"guildbot/roster"
	"guildbot/scheduler"
	"guildbot/service"
	"guildbot/worker"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	if err := configureLogging(cfg); err != nil {
		return err
	}
	log.Info("Starting guild bot...")

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	log.Info("Running database migrations...")
	if err := database.RunMigrationsWithURL(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	log.Info("Seeding default queues and settings...")
	if err := service.SeedDefaults(ctx, uowFactory); err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}

	// Initialize metrics
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		log.WithError(err).Warn("Metrics unavailable, continuing without them")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to flush metrics")
		}
	}()
	metrics.Subscribe(eventBus)

	// Background work
	pool := worker.NewPool(worker.Config{
		Backlog:     cfg.WorkerBacklog,
		Concurrency: int64(cfg.WorkerConcurrency),
		TaskTimeout: cfg.WorkerTaskTimeout,
	})
	pool.SetObserver(metrics.ObserveTask)
	pool.Start(ctx)
	defer pool.Stop()

	// Roster oracle
	log.Info("Initializing roster cache...")
	sheetsService, err := newSheetsService(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Spreadsheet access unavailable; nickname checks will fail closed")
	}
	cache := roster.NewCache(rosterSource(cfg, sheetsService),
		roster.WithTTL(cfg.RosterCacheTTL),
		roster.WithRetryInterval(cfg.RosterRetryInterval),
		roster.WithRefreshObserver(metrics.ObserveRosterRefresh),
	)
	if err := cache.Refresh(ctx); err != nil {
		log.WithError(err).Warn("Initial roster refresh failed")
	}

	// Initialize services
	log.Info("Initializing services...")
	registryService := service.NewRegistryService(uowFactory, cache)
	queueService := service.NewQueueService(uowFactory)
	limitService := service.NewLimitService(uowFactory)
	adminService := service.NewAdminService(uowFactory)

	// Initialize Discord bot
	log.Info("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:   cfg.DiscordToken,
		GuildID: cfg.DiscordGuildID,
	}, registryService, queueService)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	notifier := bot.NewDiscordNotifier(discordBot.Session(), rate.Limit(cfg.DMRatePerSecond), bot.DefaultDMBurst)

	// Event subscribers
	notify.NewDispatcher(notifier, pool).Subscribe(eventBus)
	if sheetsService != nil && cfg.AuditSpreadsheetID != "" {
		writer := audit.NewSheetsWriter(sheetsService, cfg.AuditSpreadsheetID)
		audit.NewMirror(writer, pool, nil, cfg.Location).Subscribe(eventBus)
	} else {
		log.Info("Audit mirror disabled")
	}
	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := natsClient.Connect(connectCtx)
		cancel()
		if err != nil {
			log.WithError(err).Error("NATS unavailable, events will not be forwarded")
		} else {
			defer natsClient.Close()
			infrastructure.NewEventForwarder(natsClient, metrics.RecordNATSMessagePublished).Subscribe(eventBus)
		}
	}

	// Scheduler
	log.Info("Restoring announcement schedules...")
	jobs := scheduler.New(cfg.Location)
	broadcaster := service.NewBroadcaster(uowFactory, notifier, cfg.BroadcastConcurrency)
	announcementService := service.NewAnnouncementService(uowFactory, jobs, broadcaster, clockwork.NewRealClock(), cfg.Location)
	restored, err := announcementService.RestoreSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore announcement schedules: %w", err)
	}
	log.WithField("announcements", restored).Info("Announcement schedules restored")
	stopScheduler := jobs.Start(ctx, announcementService.RunAnnouncement)

	if err := discordBot.Open(); err != nil {
		stopScheduler()
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	// Status API
	httpServer := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(db, cache, jobs, queueService, limitService, adminService),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.APIAddr).Info("Status API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Status API stopped")
		}
	}()

	// Wait for context cancellation
	log.Infof("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Info("Shutting down bot...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error shutting down status API")
	}
	stopScheduler()
	pool.Stop()
	if err := discordBot.Close(); err != nil {
		log.WithError(err).Warn("Error closing Discord bot")
	}

	log.Info("Shutdown completed")
	return nil
}

func configureLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func newSheetsService(ctx context.Context, cfg *config.Config) (*sheets.Service, error) {
	client, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.GoogleCredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return client, nil
}

// unavailableSource stands in for the roster when the spreadsheet cannot be reached
type unavailableSource struct {
	reason string
}

func (s unavailableSource) FetchNicknames(context.Context) ([]string, error) {
	return nil, errors.New(s.reason)
}

func rosterSource(cfg *config.Config, sheetsService *sheets.Service) roster.Source {
	switch {
	case sheetsService == nil:
		return unavailableSource{reason: "spreadsheet client is not configured"}
	case cfg.RosterSpreadsheetID == "":
		return unavailableSource{reason: "ROSTER_SPREADSHEET_ID is not set"}
	default:
		return roster.NewSheetsSource(sheetsService, cfg.RosterSpreadsheetID, cfg.RosterRange, cfg.RosterColumn, cfg.RosterHeaderRows)
	}
}
