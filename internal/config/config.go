package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Storage   StorageConfig
	Sync      SyncConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Silent   bool
}

// StorageConfig holds photo blob store configuration
type StorageConfig struct {
	Dir       string
	PublicURL string
}

// SyncConfig holds sync housekeeping configuration
type SyncConfig struct {
	RetentionDays int
	UpdatesWindow int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Env:       getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "3200"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "trozas"),
			Silent:   getEnv("DB_SILENT", "false") == "true",
		},
		Storage: StorageConfig{
			Dir:       getEnv("STORAGE_DIR", "./storage"),
			PublicURL: getEnv("STORAGE_PUBLIC_URL", "/storage"),
		},
		Sync: SyncConfig{
			RetentionDays: getEnvInt("SYNC_RETENTION_DAYS", 30),
			UpdatesWindow: getEnvInt("SYNC_UPDATES_WINDOW_DAYS", 30),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
