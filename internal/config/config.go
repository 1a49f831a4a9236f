// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kicadview/kicadview/internal/modules/settings"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the plugin's own databases (always absolute)
	HostDir          string // Host platform root: config/ files and filecache database live here
	IconSourceDir    string // Directory containing per-extension SVG icons (plus gen.svg fallback)
	HostBaseURL      string // Base URL of the host platform's file endpoints
	HostEventsURL    string // WebSocket URL of the host file-change feed (empty disables it)
	LogLevel         string
	Port             int
	DevMode          bool
	SessionTTL       time.Duration // Viewer sessions older than this are swept by the janitor
	BlobStoreMaxSize int64         // Total byte budget for in-memory blob URLs
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check KICADVIEW_DATA_DIR environment variable
	// 2. If not set, default to /var/lib/kicadview
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("KICADVIEW_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "/var/lib/kicadview"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		HostDir:          getEnv("HOST_DIR", "/var/www/files"),
		IconSourceDir:    getEnv("ICON_SOURCE_DIR", ""),
		HostBaseURL:      getEnv("HOST_BASE_URL", "http://localhost:8080"),
		HostEventsURL:    getEnv("HOST_EVENTS_URL", ""),
		Port:             getEnvAsInt("GO_PORT", 8002),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		SessionTTL:       time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		BlobStoreMaxSize: int64(getEnvAsInt("BLOB_STORE_MAX_BYTES", 256<<20)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings database.
// This should be called after the registry database is initialized.
// Settings DB values take precedence over environment variables.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	ttlMinutes, err := settingsRepo.GetInt("session_ttl_minutes", int(c.SessionTTL/time.Minute))
	if err != nil {
		return fmt.Errorf("failed to get session_ttl_minutes from settings: %w", err)
	}
	if ttlMinutes > 0 {
		c.SessionTTL = time.Duration(ttlMinutes) * time.Minute
	}

	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.HostDir == "" {
		return fmt.Errorf("HOST_DIR must not be empty")
	}
	if c.BlobStoreMaxSize <= 0 {
		return fmt.Errorf("BLOB_STORE_MAX_BYTES must be positive")
	}
	return nil
}

// HostConfigDir returns the host platform's config directory.
func (c *Config) HostConfigDir() string {
	return filepath.Join(c.HostDir, "config")
}

// HostFilecachePath returns the path of the host platform's filecache database.
func (c *Config) HostFilecachePath() string {
	return filepath.Join(c.HostDir, "data", "filecache.db")
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
