package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"guildbot/config"
	"guildbot/events"
	"guildbot/models"
	"guildbot/roster"
	"guildbot/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	t.Helper()
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true

	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.initWithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

// sumFor returns the counter value of the data point carrying attr
func sumFor(t *testing.T, m metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	for _, dp := range sum.DataPoints {
		if value, ok := dp.Attributes.Value(attr.Key); ok && value.AsString() == attr.Value.AsString() {
			return dp.Value
		}
	}
	return 0
}

func TestMetricsProvider_RecordsDomainEvents(t *testing.T) {
	mp, reader := newTestProvider(t)
	ctx := context.Background()

	mp.handleEvent(ctx, events.AuditRecordedEvent{Entry: models.AuditEntry{Status: models.AuditStatusJoined}})
	mp.handleEvent(ctx, events.AuditRecordedEvent{Entry: models.AuditEntry{Status: models.AuditStatusJoined}})
	mp.handleEvent(ctx, events.AuditRecordedEvent{Entry: models.AuditEntry{Status: models.AuditStatusIssued}})
	mp.handleEvent(ctx, events.RewardIssuedEvent{QueueName: "Meteors"})
	mp.handleEvent(ctx, events.AnnouncementBroadcastEvent{Kind: models.AnnouncementDaily, Recipients: 5, Delivered: 4, Failed: 1})

	metrics := collect(t, reader)

	assert.Equal(t, int64(2), sumFor(t, metrics[MembershipChangesTotal], attribute.String(LabelStatus, "joined")))
	assert.Equal(t, int64(1), sumFor(t, metrics[MembershipChangesTotal], attribute.String(LabelStatus, "issued")))
	assert.Equal(t, int64(1), sumFor(t, metrics[RewardsIssuedTotal], attribute.String(LabelQueue, "Meteors")))
	assert.Equal(t, int64(1), sumFor(t, metrics[AnnouncementsBroadcastTotal], attribute.String(LabelKind, "daily")))
	assert.Equal(t, int64(4), sumFor(t, metrics[AnnouncementDeliveriesTotal], attribute.String(LabelResult, ResultSuccess)))
	assert.Equal(t, int64(1), sumFor(t, metrics[AnnouncementDeliveriesTotal], attribute.String(LabelResult, ResultFailure)))
}

func TestMetricsProvider_RosterAndWorker(t *testing.T) {
	mp, reader := newTestProvider(t)

	mp.ObserveRosterRefresh(roster.RefreshResult{Entries: 42, Duration: 200 * time.Millisecond})
	mp.ObserveRosterRefresh(roster.RefreshResult{Duration: time.Second, Err: errors.New("quota")})
	mp.ObserveTask(worker.Outcome{Name: "audit-mirror", Duration: time.Millisecond})
	mp.ObserveTask(worker.Outcome{Name: "audit-mirror", Panicked: true})

	metrics := collect(t, reader)

	assert.Equal(t, int64(1), sumFor(t, metrics[RosterRefreshesTotal], attribute.String(LabelResult, ResultSuccess)))
	assert.Equal(t, int64(1), sumFor(t, metrics[RosterRefreshesTotal], attribute.String(LabelResult, ResultFailure)))
	assert.Equal(t, int64(1), sumFor(t, metrics[WorkerTasksTotal], attribute.String(LabelResult, ResultPanic)))

	gauge, ok := metrics[RosterEntries].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(42), gauge.DataPoints[0].Value)
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	cfg := config.NewTestConfig()
	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))

	assert.False(t, mp.isEnabled())
	assert.NotPanics(t, func() {
		mp.handleEvent(context.Background(), events.MemberCreatedEvent{})
		mp.ObserveRosterRefresh(roster.RefreshResult{})
		mp.ObserveTask(worker.Outcome{})
		mp.RecordNATSMessagePublished("member_created")
	})
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "carrier-pigeon"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	assert.ErrorContains(t, err, "unknown exporter type")
}
