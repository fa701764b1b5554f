// Package config reads service settings from the environment. A .env file
// in the working directory, when present, is loaded first and never
// overrides variables already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration

	Store           string
	PostgresDSN     string
	PostgresMigrate bool

	RedisAddr             string
	RedisQueueKey         string
	RedisProcessingKey    string
	RedisProcessingMapKey string
	Workers               int
	RequeueInterval       time.Duration

	JWTSecret string

	LogLevel  string
	LogFormat string

	RestoreStockOnDelete bool
	JobNumberMaxAttempts int
}

// Load reads the environment. Malformed numeric, boolean and duration
// values are errors rather than silent defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		RequestTimeout: p.duration("REQUEST_TIMEOUT", 15*time.Second),

		Store:           strings.ToLower(envOr("STORE", StorePostgres)),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		PostgresMigrate: p.boolean("POSTGRES_MIGRATE", true),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisQueueKey:      envOr("REDIS_QUEUE_KEY", "repair:notify:queue"),
		RedisProcessingKey: envOr("REDIS_PROCESSING_KEY", "repair:notify:processing"),
		Workers:            p.integer("WORKERS", 4),
		RequeueInterval:    p.duration("REQUEUE_INTERVAL", 30*time.Second),

		JWTSecret: os.Getenv("JWT_SECRET"),

		LogLevel:  strings.ToLower(envOr("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(envOr("LOG_FORMAT", "console")),

		RestoreStockOnDelete: p.boolean("RESTORE_STOCK_ON_DELETE", false),
		JobNumberMaxAttempts: p.integer("JOB_NUMBER_MAX_ATTEMPTS", 5),
	}
	cfg.RedisProcessingMapKey = envOr("REDIS_PROCESSING_MAP_KEY", cfg.RedisProcessingKey+":map")

	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.Workers <= 0 {
		errs = append(errs, fmt.Errorf("WORKERS must be positive, got %d", cfg.Workers))
	}
	if cfg.JobNumberMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("JOB_NUMBER_MAX_ATTEMPTS must be positive, got %d", cfg.JobNumberMaxAttempts))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Fields returns the settings worth logging at startup, secrets masked.
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("http_addr", c.HTTPAddr),
		zap.String("store", c.Store),
		zap.String("postgres_dsn", RedactDSN(c.PostgresDSN)),
		zap.String("redis_addr", c.RedisAddr),
		zap.String("queue_key", c.RedisQueueKey),
		zap.Int("workers", c.Workers),
		zap.Bool("restore_stock_on_delete", c.RestoreStockOnDelete),
	}
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*zap.Logger, error) {
	var zapCfg zap.Config
	if c.LogFormat == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch c.LogLevel {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	return zapCfg.Build()
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password in a URL-style DSN: user:pass@ -> user:****@.
func RedactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

type parser struct {
	errs *[]error
}

func (p parser) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return i
}

func (p parser) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
