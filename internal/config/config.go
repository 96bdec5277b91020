package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	Env      string
	HTTPAddr string

	RedisURL    string
	DatabaseURL string

	SettingsFile string
	EventName    string
	SiteName     string

	CacheMaxAge  time.Duration
	FastPath     bool
	StoreTimeout time.Duration

	Peers       []string
	CORSOrigins []string
	AdminToken  string

	ActiveSeasonID int64
}

// Production reports whether in-memory fallbacks are forbidden.
func (c *AppConfig) Production() bool { return c.Env == "production" }

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Env:          "development",
		HTTPAddr:     ":8080",
		CacheMaxAge:  10 * time.Second,
		StoreTimeout: 3 * time.Second,
		CORSOrigins:  []string{"*"},
	}

	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		cfg.Env = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.SettingsFile = strings.TrimSpace(os.Getenv("BROADCAST_SETTINGS_FILE"))
	cfg.EventName = strings.TrimSpace(os.Getenv("BROADCAST_EVENT"))
	cfg.SiteName = strings.TrimSpace(os.Getenv("BROADCAST_SITE"))

	if v := strings.TrimSpace(os.Getenv("BROADCAST_CACHE_MAX_AGE")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.CacheMaxAge = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("BROADCAST_FAST_PATH")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.FastPath = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("BROADCAST_STORE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StoreTimeout = d
		}
	}

	cfg.Peers = splitList(os.Getenv("BROADCAST_PEERS"))
	if v := splitList(os.Getenv("BROADCAST_CORS_ORIGINS")); len(v) > 0 {
		cfg.CORSOrigins = v
	}
	cfg.AdminToken = strings.TrimSpace(os.Getenv("BROADCAST_ADMIN_TOKEN"))

	if v := strings.TrimSpace(os.Getenv("ACTIVE_SEASON_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.ActiveSeasonID = n
		}
	}

	if cfg.Production() {
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required")
		}
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
