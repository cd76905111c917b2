// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Prefix is prepended to every environment variable name.
const Prefix = "CONCIERGE_"

type Config struct {
	HTTPAddr  string
	LogLevel  slog.Level
	LogFormat string // text or json

	Storage     string
	DataDir     string
	PostgresDSN string

	Redis RedisConfig

	SessionTTL   time.Duration
	LockTTL      time.Duration
	CacheSize    int
	MaxInputSize int

	EmitterWorkers   int
	EmitterQueueSize int

	EncryptionKey []byte
	PIIPatterns   []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Enabled reports whether sessions and locks go through Redis.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		HTTPAddr:         ":8080",
		LogLevel:         slog.LevelInfo,
		LogFormat:        "text",
		Storage:          StorageMemory,
		DataDir:          ".concierge",
		Redis:            RedisConfig{Prefix: "concierge:"},
		SessionTTL:       24 * time.Hour,
		LockTTL:          30 * time.Second,
		CacheSize:        128,
		MaxInputSize:     4096,
		EmitterWorkers:   4,
		EmitterQueueSize: 256,
	}
}

// Load reads the given .env files (".env" when none is given, missing files are
// ignored) and then the CONCIERGE_* environment variables over the defaults.
// Variables already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := Default()
	var errs []string
	fail := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s%s: %v", Prefix, key, err))
	}

	cfg.HTTPAddr = str("HTTP_ADDR", cfg.HTTPAddr)
	if raw := env("LOG_LEVEL"); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			fail("LOG_LEVEL", err)
		}
	}
	cfg.LogFormat = strings.ToLower(str("LOG_FORMAT", cfg.LogFormat))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		fail("LOG_FORMAT", fmt.Errorf("want text or json, got %q", cfg.LogFormat))
	}

	cfg.Storage = strings.ToLower(str("STORAGE", cfg.Storage))
	switch cfg.Storage {
	case StorageMemory, StorageFile, StoragePostgres:
	default:
		fail("STORAGE", fmt.Errorf("unknown backend %q", cfg.Storage))
	}
	cfg.DataDir = str("DATA_DIR", cfg.DataDir)
	cfg.PostgresDSN = str("POSTGRES_DSN", cfg.PostgresDSN)
	if cfg.Storage == StoragePostgres && cfg.PostgresDSN == "" {
		fail("POSTGRES_DSN", fmt.Errorf("required by the postgres backend"))
	}

	cfg.Redis.Addr = str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = str("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.Prefix = str("REDIS_PREFIX", cfg.Redis.Prefix)

	integer := func(key string, dst *int) {
		if raw := env(key); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = v
		}
	}
	duration := func(key string, dst *time.Duration) {
		if raw := env(key); raw != "" {
			v, err := time.ParseDuration(raw)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = v
		}
	}
	integer("REDIS_DB", &cfg.Redis.DB)
	integer("CACHE_SIZE", &cfg.CacheSize)
	integer("MAX_INPUT_SIZE", &cfg.MaxInputSize)
	integer("EMITTER_WORKERS", &cfg.EmitterWorkers)
	integer("EMITTER_QUEUE_SIZE", &cfg.EmitterQueueSize)
	duration("SESSION_TTL", &cfg.SessionTTL)
	duration("LOCK_TTL", &cfg.LockTTL)

	if raw := env("ENCRYPTION_KEY"); raw != "" {
		key, err := decodeKey(raw)
		if err != nil {
			fail("ENCRYPTION_KEY", err)
		}
		cfg.EncryptionKey = key
	}
	if raw := env("PII_PATTERNS"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.PIIPatterns = append(cfg.PIIPatterns, p)
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// decodeKey accepts a 32-byte AES key as hex or base64.
func decodeKey(raw string) ([]byte, error) {
	if key, err := hex.DecodeString(raw); err == nil && len(key) == 32 {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(raw); err == nil && len(key) == 32 {
		return key, nil
	}
	return nil, fmt.Errorf("want 32 bytes as hex or base64")
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(Prefix + key))
}

func str(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}
