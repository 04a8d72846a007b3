// README: Config loader with env defaults for HTTP, offer timing, and optional infra.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTP struct {
		Addr string
	}
	// Redis backs the optional driver GEO index used for unicast offer
	// targeting. Empty means broadcast-only matching.
	Redis struct {
		Addr string
	}
	// Audit.DSN enables the Postgres offer-audit archive. Empty means the
	// in-memory archive.
	Audit struct {
		DSN string
	}
	Offer struct {
		TTL time.Duration
	}
	Maps struct {
		APIKey string
	}
	// StrictCancel leaves passengerBoarded untouched on cancellation
	// instead of forcing it true, which is the default.
	StrictCancel bool
	LogLevel     string
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("TRIPSIM_HTTP_ADDR", ":8080")
	cfg.Redis.Addr = os.Getenv("TRIPSIM_REDIS_ADDR")
	cfg.Audit.DSN = os.Getenv("TRIPSIM_AUDIT_DSN")
	cfg.Offer.TTL = envOrDefaultDuration("TRIPSIM_OFFER_TTL", 30*time.Second)
	cfg.Maps.APIKey = os.Getenv("TRIPSIM_MAPS_API_KEY")
	cfg.StrictCancel = envOrDefaultBool("TRIPSIM_STRICT_CANCEL", false)
	cfg.LogLevel = envOrDefault("TRIPSIM_LOG_LEVEL", "INFO")
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
