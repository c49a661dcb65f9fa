package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds environment-driven configuration. It is loaded once in main
// and passed by value to constructors; components never read the
// environment themselves. Variables are prefixed with CALSYNC_, e.g.
// CALSYNC_TOGGL_API_TOKEN, CALSYNC_MYSQL_DSN.
type Config struct {
	TogglAPIToken string `envconfig:"TOGGL_API_TOKEN"`
	TogglBaseURL  string `envconfig:"TOGGL_BASE_URL" default:"https://api.track.toggl.com"`

	CalendarID            string `envconfig:"CALENDAR_ID"`
	GoogleCredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE"`

	// MySQL DSN, e.g. user:pass@tcp(host:3306)/db?parseTime=true&multiStatements=true
	MySQLDSN string `envconfig:"MYSQL_DSN"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	OverlapSeconds int           `envconfig:"OVERLAP_SECONDS" default:"86400"`
	CacheTTL       time.Duration `envconfig:"CACHE_TTL" default:"6h"`
	LockWait       time.Duration `envconfig:"LOCK_WAIT" default:"30s"`
	RetryAttempts  uint64        `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryDelay     time.Duration `envconfig:"RETRY_DELAY" default:"2s"`
	LockBackend    string        `envconfig:"LOCK_BACKEND" default:"redis"` // redis or mysql

	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPFrom string `envconfig:"SMTP_FROM"`
	SMTPTo   string `envconfig:"SMTP_TO"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8090"`
}

// Load reads configuration from CALSYNC_-prefixed environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("calsync", &cfg); err != nil {
		return cfg, err
	}
	if cfg.TogglAPIToken == "" {
		return cfg, errors.New("CALSYNC_TOGGL_API_TOKEN is required")
	}
	if cfg.CalendarID == "" {
		return cfg, errors.New("CALSYNC_CALENDAR_ID is required")
	}
	if cfg.MySQLDSN == "" {
		return cfg, errors.New("CALSYNC_MYSQL_DSN is required")
	}
	switch cfg.LockBackend {
	case "redis", "mysql":
	default:
		return cfg, fmt.Errorf("CALSYNC_LOCK_BACKEND must be redis or mysql, got %q", cfg.LockBackend)
	}
	return cfg, nil
}
