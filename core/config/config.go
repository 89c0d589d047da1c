package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
// Everything is loaded once at process start; there is no hot reload.
type Config struct {
	App       AppConfig
	Paths     PathsConfig
	Database  DatabaseConfig
	Facebook  FacebookConfig
	Scheduler SchedulerConfig
	Pool      PoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
}

type PathsConfig struct {
	Storages string
	Media    string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB name for Postgres
}

type FacebookConfig struct {
	BaseURL        string
	PageID         string
	AccessToken    string
	RequestTimeout time.Duration
}

type SchedulerConfig struct {
	TickInterval time.Duration
	MinLeadTime  time.Duration
	MaxLeadTime  time.Duration
	RetryBudget  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
}

type PoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration (set by LoadConfig).
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	storages := getEnv("APP_STORAGES_DIR", "storages")

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "8000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		CorsAllowedOrigins: splitEnv("CORS_ORIGINS", []string{"http://localhost:3000"}),
	}
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		appCfg.BasicAuth = strings.Split(v, ",")
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	cfg := &Config{
		App: appCfg,
		Paths: PathsConfig{
			Storages: storages,
			Media:    getEnv("PATH_MEDIA", filepath.Join(storages, "media")),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Name:     getEnv("DB_NAME", filepath.Join(storages, "postpilot.db")),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
		},
		Facebook: FacebookConfig{
			BaseURL:        getEnv("FACEBOOK_API_BASE_URL", "https://graph.facebook.com/v18.0"),
			PageID:         getEnv("FACEBOOK_PAGE_ID", ""),
			AccessToken:    getEnv("FACEBOOK_PAGE_ACCESS_TOKEN", ""),
			RequestTimeout: getEnvDuration("FACEBOOK_REQUEST_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			TickInterval: getEnvDuration("SCHEDULER_TICK_INTERVAL", 30*time.Second),
			MinLeadTime:  getEnvDuration("SCHEDULER_MIN_LEAD_TIME", 10*time.Minute),
			MaxLeadTime:  getEnvDuration("SCHEDULER_MAX_LEAD_TIME", 365*24*time.Hour),
			RetryBudget:  getEnvInt("SCHEDULER_RETRY_BUDGET", 3),
			BackoffBase:  getEnvDuration("SCHEDULER_BACKOFF_BASE", 30*time.Second),
			BackoffCap:   getEnvDuration("SCHEDULER_BACKOFF_CAP", time.Hour),
		},
		Pool: PoolConfig{
			Size:      getEnvInt("PUBLISH_WORKER_POOL_SIZE", 4),
			QueueSize: getEnvInt("PUBLISH_WORKER_QUEUE_SIZE", 100),
		},
	}

	Global = cfg
	return cfg, nil
}
