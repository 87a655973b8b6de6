package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all service settings, loaded from the environment.
type Config struct {
	Port string `validate:"required"`

	// Auth. Empty disables authentication (useful behind a gateway that
	// terminates auth itself).
	APIKey string

	// Upload limits
	MaxUploadBytes int64 `validate:"min=1"`

	// Transform limits
	MaxConcurrentTransforms int `validate:"min=1,max=256"`
	MaxPages                int `validate:"min=0"`

	// Rebuild policy: strip references to removed pages (outlines,
	// destinations) instead of failing the request.
	StripDanglingRefs bool

	// Stats rolling window
	StatsWindow time.Duration `validate:"required"`
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("PAGESHIFT_API_KEY"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		MaxConcurrentTransforms: envInt("MAX_CONCURRENT_TRANSFORMS", 4),
		MaxPages:                envInt("MAX_PAGES", 10000),

		StripDanglingRefs: envBool("STRIP_DANGLING_REFS", true),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxConcurrentTransforms <= 0 {
		cfg.MaxConcurrentTransforms = 4
	}
	if cfg.MaxPages < 0 {
		cfg.MaxPages = 10000
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	return validator.New().Struct(c)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
