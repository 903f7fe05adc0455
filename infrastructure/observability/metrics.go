package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"roulette/application"
	"roulette/config"
	"roulette/events"
	"roulette/gateway"

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

// MetricsProvider manages OpenTelemetry metrics for the roulette service.
// All Record methods are safe to call on a nil or disabled provider.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	wagersAcceptedCounter        metric.Int64Counter
	wagersRejectedCounter        metric.Int64Counter
	wageredAmountCounter         metric.Int64Counter
	roundsSettledCounter         metric.Int64Counter
	settlementDurationHist       metric.Float64Histogram
	settlementFailuresCounter    metric.Int64Counter
	wagersPerRoundHist           metric.Int64Histogram
	connectionsActiveGauge       metric.Int64UpDownCounter
	connectionsCounter           metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
	balanceTransactionsCounter   metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
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
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	if err := mp.setup(reader); err != nil {
		return err
	}

	// Set as global meter provider
	otel.SetMeterProvider(mp.meterProvider)

	log.Info("Metrics provider initialized successfully")
	return nil
}

// setup builds the meter provider around a reader and creates the
// instruments. The caller holds mu.
func (mp *MetricsProvider) setup(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
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
	mp.meter = mp.meterProvider.Meter("roulette")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	// Wager metrics
	mp.wagersAcceptedCounter, err = mp.meter.Int64Counter(
		WagersAcceptedTotal,
		metric.WithDescription("Total number of accepted wagers"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wagers accepted counter: %w", err)
	}

	mp.wagersRejectedCounter, err = mp.meter.Int64Counter(
		WagersRejectedTotal,
		metric.WithDescription("Total number of rejected wager submissions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wagers rejected counter: %w", err)
	}

	mp.wageredAmountCounter, err = mp.meter.Int64Counter(
		WageredAmountTotal,
		metric.WithDescription("Total amount staked on accepted wagers"),
		metric.WithUnit("{credit}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wagered amount counter: %w", err)
	}

	// Round metrics
	mp.roundsSettledCounter, err = mp.meter.Int64Counter(
		RoundsSettledTotal,
		metric.WithDescription("Total number of settled rounds by winning category"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rounds settled counter: %w", err)
	}

	mp.settlementDurationHist, err = mp.meter.Float64Histogram(
		RoundSettlementDuration,
		metric.WithDescription("Duration of round settlement in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create settlement duration histogram: %w", err)
	}

	mp.settlementFailuresCounter, err = mp.meter.Int64Counter(
		SettlementFailuresTotal,
		metric.WithDescription("Total number of failed settlement attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create settlement failures counter: %w", err)
	}

	mp.wagersPerRoundHist, err = mp.meter.Int64Histogram(
		RoundWagersPerRound,
		metric.WithDescription("Number of wagers settled per round"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wagers per round histogram: %w", err)
	}

	// Connection metrics - using UpDownCounter for gauge-like behavior
	mp.connectionsActiveGauge, err = mp.meter.Int64UpDownCounter(
		ConnectionsActive,
		metric.WithDescription("Current number of open websocket connections"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create connections active gauge: %w", err)
	}

	mp.connectionsCounter, err = mp.meter.Int64Counter(
		ConnectionsTotal,
		metric.WithDescription("Total number of websocket connections opened"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create connections counter: %w", err)
	}

	// NATS metrics
	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	// Balance metrics
	mp.balanceTransactionsCounter, err = mp.meter.Int64Counter(
		BalanceTransactionsTotal,
		metric.WithDescription("Total number of balance transactions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance transactions counter: %w", err)
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

// RecordWagerAccepted implements application.EngineMetrics
func (mp *MetricsProvider) RecordWagerAccepted(category string, amount int64) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelCategory, category))
	mp.wagersAcceptedCounter.Add(context.Background(), 1, attrs)
	mp.wageredAmountCounter.Add(context.Background(), amount, attrs)
}

// RecordWagerRejected implements application.EngineMetrics
func (mp *MetricsProvider) RecordWagerRejected(reason string) {
	if !mp.isEnabled() {
		return
	}

	mp.wagersRejectedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelReason, reason),
		),
	)
}

// RecordRoundSettled implements application.EngineMetrics
func (mp *MetricsProvider) RecordRoundSettled(category string, duration time.Duration, wagers int) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelCategory, category))
	mp.roundsSettledCounter.Add(context.Background(), 1, attrs)
	mp.settlementDurationHist.Record(context.Background(), duration.Seconds(), attrs)
	mp.wagersPerRoundHist.Record(context.Background(), int64(wagers), attrs)
}

// RecordSettlementFailure implements application.EngineMetrics
func (mp *MetricsProvider) RecordSettlementFailure(attempt int, transient bool) {
	if !mp.isEnabled() {
		return
	}

	mp.settlementFailuresCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.Bool(LabelTransient, transient),
			attribute.String("attempt", strconv.Itoa(attempt)),
		),
	)
}

// RecordConnectionOpened implements gateway.ConnectionMetrics
func (mp *MetricsProvider) RecordConnectionOpened(authenticated bool) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool(LabelAuthenticated, authenticated))
	mp.connectionsActiveGauge.Add(context.Background(), 1, attrs)
	mp.connectionsCounter.Add(context.Background(), 1, attrs)
}

// RecordConnectionClosed implements gateway.ConnectionMetrics
func (mp *MetricsProvider) RecordConnectionClosed(authenticated bool) {
	if !mp.isEnabled() {
		return
	}

	mp.connectionsActiveGauge.Add(context.Background(), -1,
		metric.WithAttributes(
			attribute.Bool(LabelAuthenticated, authenticated),
		),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// RecordBalanceTransaction records a balance transaction
func (mp *MetricsProvider) RecordBalanceTransaction(transactionType string) {
	if !mp.isEnabled() {
		return
	}

	mp.balanceTransactionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelType, transactionType),
		),
	)
}

// SubscribeToEvents counts committed balance changes from the event bus
func (mp *MetricsProvider) SubscribeToEvents(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		if change, ok := event.(events.BalanceChangeEvent); ok {
			mp.RecordBalanceTransaction(string(change.TransactionType))
		}
	})
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meter != nil
}

var (
	_ application.EngineMetrics = (*MetricsProvider)(nil)
	_ gateway.ConnectionMetrics = (*MetricsProvider)(nil)
)

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
