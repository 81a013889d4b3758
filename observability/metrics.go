package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guildbot/config"
	"guildbot/events"
	"guildbot/roster"
	"guildbot/worker"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the bot
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	membershipChangesCounter    metric.Int64Counter
	rewardsIssuedCounter        metric.Int64Counter
	membersCreatedCounter       metric.Int64Counter
	announcementsCounter        metric.Int64Counter
	announcementDeliveryCounter metric.Int64Counter
	rosterRefreshCounter        metric.Int64Counter
	rosterRefreshDurationHist   metric.Float64Histogram
	rosterEntriesGauge          metric.Int64Gauge
	workerTasksCounter          metric.Int64Counter
	workerTaskDurationHist      metric.Float64Histogram
	natsPublishedCounter        metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.markInitialized(false)
		return nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.markInitialized(false)
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	if err := mp.initWithReader(reader); err != nil {
		return err
	}

	// Set as global meter provider
	otel.SetMeterProvider(mp.meterProvider)
	log.Info("Metrics provider initialized successfully")
	return nil
}

// initWithReader builds the meter provider around reader
func (mp *MetricsProvider) initWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("guildbot")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	return nil
}

func (mp *MetricsProvider) markInitialized(enabled bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.initialized = true
	mp.enabled = enabled
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.membershipChangesCounter, MembershipChangesTotal, "Queue membership changes by audit status"},
		{&mp.rewardsIssuedCounter, RewardsIssuedTotal, "Rewards issued by queue"},
		{&mp.membersCreatedCounter, MembersCreatedTotal, "Members registered"},
		{&mp.announcementsCounter, AnnouncementsBroadcastTotal, "Announcements broadcast by kind"},
		{&mp.announcementDeliveryCounter, AnnouncementDeliveriesTotal, "Announcement direct messages by result"},
		{&mp.rosterRefreshCounter, RosterRefreshesTotal, "Roster refresh attempts by result"},
		{&mp.workerTasksCounter, WorkerTasksTotal, "Background tasks by name and result"},
		{&mp.natsPublishedCounter, NATSMessagesPublishedTotal, "Events forwarded to NATS"},
	}
	for _, c := range counters {
		*c.target, err = mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}

	mp.rosterRefreshDurationHist, err = mp.meter.Float64Histogram(
		RosterRefreshDuration,
		metric.WithDescription("Duration of roster refreshes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create roster refresh histogram: %w", err)
	}

	mp.rosterEntriesGauge, err = mp.meter.Int64Gauge(
		RosterEntries,
		metric.WithDescription("Nicknames held by the roster cache"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create roster entries gauge: %w", err)
	}

	mp.workerTaskDurationHist, err = mp.meter.Float64Histogram(
		WorkerTaskDuration,
		metric.WithDescription("Duration of background tasks in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create worker task histogram: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// Subscribe records domain events from the bus
func (mp *MetricsProvider) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeAuditRecorded, mp.handleEvent)
	bus.Subscribe(events.EventTypeRewardIssued, mp.handleEvent)
	bus.Subscribe(events.EventTypeMemberCreated, mp.handleEvent)
	bus.Subscribe(events.EventTypeAnnouncementBroadcast, mp.handleEvent)
}

func (mp *MetricsProvider) handleEvent(ctx context.Context, event events.Event) {
	if !mp.isEnabled() {
		return
	}

	switch e := event.(type) {
	case events.AuditRecordedEvent:
		mp.membershipChangesCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelStatus, string(e.Entry.Status)),
		))
	case events.RewardIssuedEvent:
		mp.rewardsIssuedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelQueue, e.QueueName),
		))
	case events.MemberCreatedEvent:
		mp.membersCreatedCounter.Add(ctx, 1)
	case events.AnnouncementBroadcastEvent:
		mp.announcementsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(LabelKind, string(e.Kind)),
		))
		mp.announcementDeliveryCounter.Add(ctx, int64(e.Delivered), metric.WithAttributes(
			attribute.String(LabelResult, ResultSuccess),
		))
		mp.announcementDeliveryCounter.Add(ctx, int64(e.Failed), metric.WithAttributes(
			attribute.String(LabelResult, ResultFailure),
		))
	}
}

// ObserveRosterRefresh records one roster refresh attempt
func (mp *MetricsProvider) ObserveRosterRefresh(result roster.RefreshResult) {
	if !mp.isEnabled() {
		return
	}

	ctx := context.Background()
	outcome := ResultSuccess
	if result.Err != nil {
		outcome = ResultFailure
	}

	attrs := metric.WithAttributes(attribute.String(LabelResult, outcome))
	mp.rosterRefreshCounter.Add(ctx, 1, attrs)
	mp.rosterRefreshDurationHist.Record(ctx, result.Duration.Seconds(), attrs)
	if result.Err == nil {
		mp.rosterEntriesGauge.Record(ctx, int64(result.Entries))
	}
}

// ObserveTask records a finished background task
func (mp *MetricsProvider) ObserveTask(outcome worker.Outcome) {
	if !mp.isEnabled() {
		return
	}

	result := ResultSuccess
	switch {
	case outcome.Panicked:
		result = ResultPanic
	case outcome.Err != nil:
		result = ResultFailure
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelTask, outcome.Name),
		attribute.String(LabelResult, result),
	)
	mp.workerTasksCounter.Add(context.Background(), 1, attrs)
	mp.workerTaskDurationHist.Record(context.Background(), outcome.Duration.Seconds(), attrs)
}

// RecordNATSMessagePublished records an event forwarded to NATS
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}
