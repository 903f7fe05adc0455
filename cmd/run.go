package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"roulette/application"
	"roulette/auth"
	"roulette/config"
	"roulette/database"
	"roulette/domain/services"
	"roulette/events"
	"roulette/gateway"
	"roulette/infrastructure"
	"roulette/infrastructure/observability"
	"roulette/repository"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging sets the logrus level and formatter from configuration
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Run initializes and starts the roulette server
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.Info("Starting roulette server...")

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("Closing database connection...")
		db.Close()
	}()
	log.Info("Database connection established successfully")

	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize metrics
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics := observability.GetMetrics()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
			log.WithError(err).Warn("Error shutting down metrics")
		}
	}()

	// Initialize event bus
	eventBus := events.NewBus()
	metrics.SubscribeToEvents(eventBus)

	// Optional event exporters
	closeExporters := startEventExporters(ctx, cfg, eventBus, metrics)
	defer closeExporters()

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize round engine and gateway
	generator, err := services.NewOutcomeGenerator(cfg.Wheel, nil)
	if err != nil {
		return fmt.Errorf("failed to create outcome generator: %w", err)
	}
	ledger := application.NewLedger(uowFactory, cfg.Wheel, application.DefaultOperationTimeout)
	accounts := application.NewAccountHandler(uowFactory, cfg.StartingBalance, application.DefaultOperationTimeout)
	verifier := auth.NewJWT(cfg.JWTSecret, cfg.TokenTTL)

	engine := application.NewRoundEngine(application.EngineConfigFromConfig(cfg), ledger, generator, nil, metrics)
	gw := gateway.New(engine, accounts, verifier, gateway.WithMetrics(metrics))
	engine.SetListener(gw)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gateway.NewRouter(gw, verifier, cfg.Environment == "development"),
		ReadHeaderTimeout: 10 * time.Second,
		// Websocket handlers stop when the server context is cancelled
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Infof("Roulette server is running in %s mode...", cfg.Environment)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	case err := <-engineDone:
		// The engine only returns early when recovery failed
		runErr = err
		engineDone <- nil
	}

	log.Info("Shutting down roulette server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error shutting down HTTP server")
	}

	// The engine must finish settling or voiding before the pool closes
	select {
	case err := <-engineDone:
		if err != nil && runErr == nil {
			runErr = err
		}
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded while waiting for the round engine")
	}

	if runErr == nil {
		log.Info("Shutdown completed")
	}
	return runErr
}

// startEventExporters wires the optional NATS and Discord consumers of the
// event bus and returns a func that closes them.
func startEventExporters(ctx context.Context, cfg *config.Config, bus *events.Bus, metrics *observability.MetricsProvider) func() {
	var closers []func()

	if strings.TrimSpace(cfg.NATSServers) != "" {
		client := infrastructure.NewNATSClient(cfg.NATSServers)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := client.Connect(connectCtx)
		cancel()

		if err != nil {
			log.WithError(err).Warn("NATS unavailable, domain events will not be exported")
		} else {
			mapper := infrastructure.NewEventSubjectMapper()
			if err := infrastructure.EnsureDomainEventStream(client, mapper); err != nil {
				log.WithError(err).Warn("Failed to ensure domain event stream")
			}
			infrastructure.NewNATSEventPublisher(client, mapper, metrics).SubscribeToEvents(bus)
			closers = append(closers, func() { _ = client.Close() })
		}
	}

	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		feed, err := infrastructure.NewDiscordResultsFeed(cfg.DiscordToken, cfg.DiscordChannelID)
		if err != nil {
			log.WithError(err).Warn("Discord results feed unavailable")
		} else {
			feed.SubscribeToEvents(bus)
			closers = append(closers, func() {
				if err := feed.Close(); err != nil {
					log.WithError(err).Warn("Error closing Discord session")
				}
			})
		}
	}

	return func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
}
