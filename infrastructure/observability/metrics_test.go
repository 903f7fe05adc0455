package observability

import (
	"context"
	"testing"
	"time"

	"roulette/config"
	"roulette/domain/entities"
	"roulette/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newCollectingProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	t.Helper()

	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	mp := NewMetricsProvider(cfg)
	reader := sdkmetric.NewManualReader()

	mp.mu.Lock()
	err := mp.setup(reader)
	mp.mu.Unlock()
	require.NoError(t, err)

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

// sumOf adds up every data point of an int64 sum instrument
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsProvider_RecordsEngineActivity(t *testing.T) {
	mp, reader := newCollectingProvider(t)

	mp.RecordWagerAccepted("red", 50)
	mp.RecordWagerAccepted("green", 25)
	mp.RecordWagerRejected("PhaseClosed")
	mp.RecordRoundSettled("red", 20*time.Millisecond, 2)
	mp.RecordSettlementFailure(1, true)

	assert.Equal(t, int64(2), sumOf(t, reader, WagersAcceptedTotal))
	assert.Equal(t, int64(75), sumOf(t, reader, WageredAmountTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, WagersRejectedTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, RoundsSettledTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, SettlementFailuresTotal))
}

func TestMetricsProvider_TracksOpenConnections(t *testing.T) {
	mp, reader := newCollectingProvider(t)

	mp.RecordConnectionOpened(true)
	mp.RecordConnectionOpened(false)
	mp.RecordConnectionClosed(true)

	assert.Equal(t, int64(1), sumOf(t, reader, ConnectionsActive))
	assert.Equal(t, int64(2), sumOf(t, reader, ConnectionsTotal))
}

func TestMetricsProvider_CountsBalanceEvents(t *testing.T) {
	mp, reader := newCollectingProvider(t)
	bus := events.NewBus()
	mp.SubscribeToEvents(bus)

	bus.Emit(context.Background(), events.BalanceChangeEvent{
		AccountID:       7,
		TransactionType: entities.TransactionTypeWagerStake,
	})

	assert.Eventually(t, func() bool {
		return sumOf(t, reader, BalanceTransactionsTotal) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = false
	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))

	assert.False(t, mp.isEnabled())
	mp.RecordWagerAccepted("red", 10)
	mp.RecordConnectionOpened(true)

	var nilProvider *MetricsProvider
	assert.False(t, nilProvider.isEnabled())
	nilProvider.RecordWagerRejected("InvalidStake")
}

func TestMetricsProvider_NoneExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "none"
	mp := NewMetricsProvider(cfg)

	require.NoError(t, mp.Initialize(context.Background()))
	assert.False(t, mp.isEnabled())
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "carrier-pigeon"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	assert.ErrorContains(t, err, "unknown exporter type")
}
