package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"roulette/database"
	"roulette/domain/entities"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP / websocket listener
	ListenAddr string

	// Token verification
	JWTSecret string
	TokenTTL  time.Duration

	// Account configuration
	StartingBalance int64

	// Wheel configuration
	Wheel  *entities.Wheel
	MinBet int64
	MaxBet int64

	// Round timing
	BettingDuration time.Duration
	SpinDuration    time.Duration
	ResultDuration  time.Duration
	TickInterval    time.Duration
	HistorySize     int

	// Settlement retry policy
	SettlementMaxAttempts int
	SettlementRetryDelay  time.Duration

	// NATS configuration (optional, domain events are not exported when empty)
	NATSServers string

	// Discord results feed (optional)
	DiscordToken     string
	DiscordChannelID string

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		ListenAddr: getEnvWithDefault("LISTEN_ADDR", ":3000"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  30 * 24 * time.Hour,

		StartingBalance: 1000,

		MinBet: 10,
		MaxBet: 10000,

		BettingDuration: 25 * time.Second,
		SpinDuration:    8 * time.Second,
		ResultDuration:  5 * time.Second,
		TickInterval:    time.Second,
		HistorySize:     15,

		SettlementMaxAttempts: 5,
		SettlementRetryDelay:  500 * time.Millisecond,

		NATSServers: os.Getenv("NATS_SERVERS"),

		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),

		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "roulette"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "none"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelExportIntervalMillis: 15000,

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		if parsed, err := strconv.ParseInt(balance, 10, 64); err == nil {
			config.StartingBalance = parsed
		}
	}
	if v := os.Getenv("MIN_BET"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MinBet = parsed
		}
	}
	if v := os.Getenv("MAX_BET"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.MaxBet = parsed
		}
	}
	config.BettingDuration = getSecondsWithDefault("BETTING_SECONDS", config.BettingDuration)
	config.SpinDuration = getSecondsWithDefault("SPIN_SECONDS", config.SpinDuration)
	config.ResultDuration = getSecondsWithDefault("RESULT_SECONDS", config.ResultDuration)
	if v := os.Getenv("SETTLEMENT_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.SettlementMaxAttempts = parsed
		}
	}
	if v := os.Getenv("SETTLEMENT_RETRY_DELAY"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			config.SettlementRetryDelay = parsed
		}
	}
	if v := os.Getenv("OTEL_EXPORT_INTERVAL_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.OTelExportIntervalMillis = parsed
		}
	}

	wheel, err := ParseWheel(os.Getenv("WHEEL_SECTORS"), os.Getenv("WHEEL_MULTIPLIERS"))
	if err != nil {
		return nil, err
	}
	config.Wheel = wheel

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the game configuration. Any error here is fatal at startup.
func (c *Config) Validate() error {
	if c.Wheel == nil {
		return fmt.Errorf("wheel is not configured")
	}
	if err := c.Wheel.Validate(); err != nil {
		return fmt.Errorf("invalid wheel: %w", err)
	}
	if c.MinBet <= 0 {
		return fmt.Errorf("MIN_BET must be positive, got %d", c.MinBet)
	}
	if c.MaxBet < c.MinBet {
		return fmt.Errorf("MAX_BET (%d) must not be below MIN_BET (%d)", c.MaxBet, c.MinBet)
	}
	// A winning wager at MAX_BET must not overflow its payout
	if top := c.Wheel.MaxMultiplier(); top > 0 && c.MaxBet > math.MaxInt64/top {
		return fmt.Errorf("MAX_BET (%d) times the largest multiplier (%d) overflows", c.MaxBet, top)
	}
	if c.BettingDuration <= 0 || c.SpinDuration <= 0 || c.ResultDuration <= 0 {
		return fmt.Errorf("phase durations must be positive")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	return nil
}

// ParseWheel builds the wheel from a comma-separated sector list
// ("green,red,black,...", sector numbers follow list order) and a
// "category:multiplier" list. Empty inputs fall back to the default wheel.
func ParseWheel(sectorSpec, multiplierSpec string) (*entities.Wheel, error) {
	wheel := entities.DefaultWheel()

	if strings.TrimSpace(sectorSpec) != "" {
		var sectors []entities.Sector
		for i, raw := range strings.Split(sectorSpec, ",") {
			category := entities.Category(strings.ToLower(strings.TrimSpace(raw)))
			if category == "" {
				return nil, fmt.Errorf("WHEEL_SECTORS: empty category at position %d", i)
			}
			sectors = append(sectors, entities.Sector{Number: i, Category: category})
		}
		wheel.Sectors = sectors
	}

	if strings.TrimSpace(multiplierSpec) != "" {
		multipliers := make(map[entities.Category]int64)
		for _, pair := range strings.Split(multiplierSpec, ",") {
			parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("WHEEL_MULTIPLIERS: malformed entry %q", pair)
			}
			value, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("WHEEL_MULTIPLIERS: invalid multiplier in %q: %w", pair, err)
			}
			multipliers[entities.Category(strings.ToLower(strings.TrimSpace(parts[0])))] = value
		}
		wheel.Multipliers = multipliers
	}

	return wheel, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSecondsWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:           "test",
		ListenAddr:            ":0",
		JWTSecret:             "test-secret",
		TokenTTL:              time.Hour,
		StartingBalance:       1000,
		Wheel:                 entities.DefaultWheel(),
		MinBet:                10,
		MaxBet:                10000,
		BettingDuration:       25 * time.Second,
		SpinDuration:          8 * time.Second,
		ResultDuration:        5 * time.Second,
		TickInterval:          time.Second,
		HistorySize:           15,
		SettlementMaxAttempts: 3,
		SettlementRetryDelay:  time.Millisecond,
		OTelServiceName:       "roulette-test",
		OTelExporterType:      "none",
		LogLevel:              "debug",
	}
}
