// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for all databases (always absolute)
	LogLevel        string
	DefaultCurrency string
	Port            int
	DevMode         bool

	PriceAPIURL            string
	PriceRequestsPerSecond float64
	ExchangeRateAPIURL     string

	PriceRefreshSchedule      string
	ClientDataCleanupSchedule string
	MaintenanceSchedule       string

	GoldPricePerGram   float64
	SilverPricePerGram float64

	Backup BackupConfig
}

// BackupConfig holds S3-compatible backup settings
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ZAKAT_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),

		PriceAPIURL:            getEnv("PRICE_API_URL", ""),
		PriceRequestsPerSecond: getEnvAsFloat("PRICE_REQUESTS_PER_SECOND", 5),
		ExchangeRateAPIURL:     getEnv("EXCHANGE_RATE_API_URL", ""),

		PriceRefreshSchedule:      getEnv("PRICE_REFRESH_SCHEDULE", "0 */15 * * * *"),
		ClientDataCleanupSchedule: getEnv("CLIENT_DATA_CLEANUP_SCHEDULE", "0 0 3 * * *"),
		MaintenanceSchedule:       getEnv("MAINTENANCE_SCHEDULE", "0 30 2 * * *"),

		GoldPricePerGram:   getEnvAsFloat("GOLD_PRICE_PER_GRAM", 0),
		SilverPricePerGram: getEnvAsFloat("SILVER_PRICE_PER_GRAM", 0),

		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 4 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PriceRequestsPerSecond <= 0 {
		return fmt.Errorf("PRICE_REQUESTS_PER_SECOND must be positive")
	}
	if c.GoldPricePerGram < 0 || c.SilverPricePerGram < 0 {
		return fmt.Errorf("metal prices must not be negative")
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when backups are enabled")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
