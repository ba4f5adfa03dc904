package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the avatar proxy service.
type Config struct {
	Port            int
	Env             string
	ShutdownTimeout time.Duration

	HeyGenAPIKey  string
	HeyGenBaseURL string

	UpstreamTimeout time.Duration

	SessionTTL    time.Duration
	SweepInterval time.Duration

	MetricsNamespace string

	ViewerBaseURL   string
	DefaultAvatarID string
	DefaultQuality  string
}

// Load reads environment variables and applies safe defaults. The upstream
// credential is the only setting without a usable default; Load fails without it.
func Load() (Config, error) {
	cfg := Config{
		Port:             3001,
		Env:              envOrDefault("APP_ENV", ""),
		HeyGenAPIKey:     trimSpaceEnv("HEYGEN_API_KEY"),
		HeyGenBaseURL:    envOrDefault("HEYGEN_API_BASE_URL", "https://api.heygen.com/v1"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "vair"),
		ViewerBaseURL:    envOrDefault("APP_VIEWER_BASE_URL", "http://localhost:5173/viewer"),
		// The public sitting avatar used by the demo frontend when none is requested.
		DefaultAvatarID: envOrDefault("APP_DEFAULT_AVATAR_ID", "Marianne_Chair_Sitting_public"),
		DefaultQuality:  envOrDefault("APP_DEFAULT_QUALITY", "medium"),
		ShutdownTimeout: 15 * time.Second,
		UpstreamTimeout: 30 * time.Second,
		SessionTTL:      60 * time.Minute,
		SweepInterval:   5 * time.Minute,
	}

	var err error
	cfg.Port, err = intFromEnv("PORT", cfg.Port)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamTimeout, err = durationFromEnv("APP_UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL, err = durationFromEnv("APP_SESSION_TTL", cfg.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("APP_SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}

	if cfg.HeyGenAPIKey == "" {
		return Config{}, fmt.Errorf("HEYGEN_API_KEY environment variable is not set")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("PORT must be between 1 and 65535")
	}
	if cfg.UpstreamTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_UPSTREAM_TIMEOUT must be positive")
	}
	if cfg.SessionTTL < time.Minute {
		return Config{}, fmt.Errorf("APP_SESSION_TTL must be at least 1m")
	}
	if cfg.SweepInterval < 0 {
		return Config{}, fmt.Errorf("APP_SWEEP_INTERVAL must be zero or positive")
	}

	cfg.HeyGenBaseURL = strings.TrimRight(cfg.HeyGenBaseURL, "/")
	return cfg, nil
}

// BindAddr is the listen address derived from the configured port.
func (c Config) BindAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Development reports whether the service runs with verbose debug behavior.
func (c Config) Development() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimSpaceEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimSpaceEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
