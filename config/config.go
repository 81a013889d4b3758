package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken    string
	DiscordGuildID  string
	DMRatePerSecond float64

	// Database configuration
	DatabaseURL string

	// Civil zone announcements are scheduled in
	Timezone string
	Location *time.Location

	// Roster spreadsheet
	GoogleCredentialsFile string
	RosterSpreadsheetID   string
	RosterRange           string
	RosterColumn          int
	RosterHeaderRows      int
	RosterCacheTTL        time.Duration
	RosterRetryInterval   time.Duration

	// Audit mirror spreadsheet; empty disables the mirror
	AuditSpreadsheetID string

	// Background work
	WorkerBacklog        int
	WorkerConcurrency    int
	WorkerTaskTimeout    time.Duration
	BroadcastConcurrency int

	// NATS event forwarding; empty disables it
	NATSServers string

	// Status API
	APIAddr string

	// OpenTelemetry
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

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// Load reads configuration without touching the global instance
func Load() (*Config, error) {
	return load()
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	config := &Config{
		// Discord
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DiscordGuildID: os.Getenv("DISCORD_GUILD_ID"),

		// Database
		DatabaseURL: os.Getenv("DATABASE_URL"),

		Timezone: getEnvWithDefault("TIMEZONE", "Europe/Moscow"),

		// Roster
		GoogleCredentialsFile: getEnvWithDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		RosterSpreadsheetID:   os.Getenv("ROSTER_SPREADSHEET_ID"),
		RosterRange:           getEnvWithDefault("ROSTER_RANGE", "A:A"),

		AuditSpreadsheetID: os.Getenv("AUDIT_SPREADSHEET_ID"),

		NATSServers: os.Getenv("NATS_SERVERS"),

		APIAddr: getEnvWithDefault("API_ADDR", ":8080"),

		OTelEnabled:      os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:  getEnvWithDefault("OTEL_SERVICE_NAME", "guildbot"),
		OTelExporterType: getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint: getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	var err error
	if config.DMRatePerSecond, err = getEnvFloat("DM_RATE_PER_SECOND", 5); err != nil {
		return nil, err
	}
	if config.RosterColumn, err = getEnvInt("ROSTER_COLUMN", 0); err != nil {
		return nil, err
	}
	if config.RosterHeaderRows, err = getEnvInt("ROSTER_HEADER_ROWS", 1); err != nil {
		return nil, err
	}
	if config.RosterCacheTTL, err = getEnvDuration("ROSTER_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if config.RosterRetryInterval, err = getEnvDuration("ROSTER_RETRY_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if config.WorkerBacklog, err = getEnvInt("WORKER_BACKLOG", 256); err != nil {
		return nil, err
	}
	if config.WorkerConcurrency, err = getEnvInt("WORKER_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if config.WorkerTaskTimeout, err = getEnvDuration("WORKER_TASK_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if config.BroadcastConcurrency, err = getEnvInt("BROADCAST_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if config.OTelExportIntervalMillis, err = getEnvInt("OTEL_EXPORT_INTERVAL_MILLIS", 60000); err != nil {
		return nil, err
	}

	config.Location, err = time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", config.Timezone, err)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:          "test",
		Timezone:             "UTC",
		Location:             time.UTC,
		RosterRange:          "A:A",
		RosterHeaderRows:     1,
		RosterCacheTTL:       10 * time.Minute,
		RosterRetryInterval:  time.Minute,
		WorkerBacklog:        16,
		WorkerConcurrency:    2,
		WorkerTaskTimeout:    time.Second,
		BroadcastConcurrency: 2,
		DMRatePerSecond:      5,
		OTelServiceName:      "guildbot-test",
		OTelExporterType:     "none",
		LogLevel:             "debug",
	}
}
