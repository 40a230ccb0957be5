package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	// DirectoryBaseURL points at the HUGWAWI backend API that owns all
	// address, contact and bank data.
	DirectoryBaseURL  string        `envconfig:"DIRECTORY_BASE_URL" required:"true"`
	DirectoryAPIKey   string        `envconfig:"DIRECTORY_API_KEY" default:""`
	DirectoryTimeout  time.Duration `envconfig:"DIRECTORY_TIMEOUT" default:"15s"`
	DirectoryRetryMax int           `envconfig:"DIRECTORY_RETRY_MAX" default:"2"`

	// ContactTypesTTL bounds how long the contact-type catalogue is
	// served from Redis before the backend is asked again.
	ContactTypesTTL time.Duration `envconfig:"CONTACT_TYPES_TTL" default:"6h"`

	// SearchStateTTL evicts idle per-session search controllers.
	SearchStateTTL time.Duration `envconfig:"SEARCH_STATE_TTL" default:"2h"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.DirectoryBaseURL == "" {
		return nil, errors.New("directory base URL must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
