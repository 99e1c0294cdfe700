// Package config loads the service configuration with koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	DefaultServerPort     = 8080
	DefaultMaxRequestSize = 1 << 20

	DefaultStoreMaxConns = 10

	DefaultCacheBreakerMaxFailures   = 5
	DefaultCacheBreakerHalfOpenLimit = 2
	DefaultCachePoolSize             = 20

	// TTLs for cached feed reads.
	DefaultRandomQuoteTTL = 60 * time.Second
	DefaultAuthorListTTL  = 300 * time.Second

	DefaultFeedLimit    = 20
	DefaultFeedMaxLimit = 100

	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28
)

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Auth      AuthConfig      `koanf:"auth"      validate:"required"`
	Store     StoreConfig     `koanf:"store"     validate:"required"`
	Cache     CacheConfig     `koanf:"cache"     validate:"required"`
	Events    EventsConfig    `koanf:"events"`
	Feed      FeedConfig      `koanf:"feed"      validate:"required"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=100ms"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig names the gateway headers carrying the caller identity.
type AuthConfig struct {
	SubjectHeader string `koanf:"subject_header" validate:"required"`
}

// StoreConfig selects and configures the durable store.
type StoreConfig struct {
	Driver         string        `koanf:"driver"          validate:"required,oneof=postgres sqlite"`
	DSN            string        `koanf:"dsn"             validate:"required"`
	MaxConns       int32         `koanf:"max_conns"       validate:"min=1,max=1000"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"required,min=100ms"`
}

// CacheConfig selects and configures the cache tier.
type CacheConfig struct {
	Driver       string        `koanf:"driver"        validate:"required,oneof=redis memory none"`
	Addr         string        `koanf:"addr"          validate:"required_if=Driver redis"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"            validate:"min=0,max=15"`
	PoolSize     int           `koanf:"pool_size"     validate:"min=1"`
	DialTimeout  time.Duration `koanf:"dial_timeout"  validate:"required,min=10ms"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  validate:"required,min=10ms"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required,min=10ms"`
	Breaker      BreakerConfig `koanf:"breaker"       validate:"required"`
	TTL          CacheTTL      `koanf:"ttl"           validate:"required"`
}

// BreakerConfig controls when the cache is considered unusable.
type BreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=100ms"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// CacheTTL holds the lifetime of each cached key family.
type CacheTTL struct {
	RandomQuote time.Duration `koanf:"random_quote" validate:"required,min=1s"`
	AuthorList  time.Duration `koanf:"author_list"  validate:"required,min=1s"`
	LikeCounter time.Duration `koanf:"like_counter" validate:"required,min=1s"`
	Membership  time.Duration `koanf:"membership"   validate:"required,min=1s"`
}

// EventsConfig configures engagement event publishing.
type EventsConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"             validate:"required_if=Enabled true"`
	Stream         string        `koanf:"stream"          validate:"required_if=Enabled true"`
	PublishTimeout time.Duration `koanf:"publish_timeout" validate:"omitempty,min=10ms"`
}

// FeedConfig holds page size limits.
type FeedConfig struct {
	DefaultLimit int `koanf:"default_limit" validate:"required,min=1,ltefield=MaxLimit"`
	MaxLimit     int `koanf:"max_limit"     validate:"required,min=1,max=1000"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":        "quote-feed",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "15s",
		"server.write_timeout":    "15s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "5s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/quote-feed.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "quote-feed",
		"telemetry.sampling_rate": 1.0,

		"auth.subject_header": "X-User-ID",

		"store.driver":          "sqlite",
		"store.dsn":             "file:quote-feed.db",
		"store.max_conns":       DefaultStoreMaxConns,
		"store.connect_timeout": "5s",

		"cache.driver":                  "memory",
		"cache.addr":                    "",
		"cache.password":                "",
		"cache.db":                      0,
		"cache.pool_size":               DefaultCachePoolSize,
		"cache.dial_timeout":            "500ms",
		"cache.read_timeout":            "200ms",
		"cache.write_timeout":           "200ms",
		"cache.breaker.max_failures":    DefaultCacheBreakerMaxFailures,
		"cache.breaker.timeout":         "10s",
		"cache.breaker.half_open_limit": DefaultCacheBreakerHalfOpenLimit,
		"cache.ttl.random_quote":        DefaultRandomQuoteTTL.String(),
		"cache.ttl.author_list":         DefaultAuthorListTTL.String(),
		"cache.ttl.like_counter":        "1h",
		"cache.ttl.membership":          "24h",

		"events.enabled":         false,
		"events.url":             "",
		"events.stream":          "QUOTE_ENGAGEMENT",
		"events.publish_timeout": "2s",

		"feed.default_limit": DefaultFeedLimit,
		"feed.max_limit":     DefaultFeedMaxLimit,
	}
}

// Load loads configuration with the following precedence (highest first):
//  1. Environment variables (APP_ prefix)
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
func Load(profile string) (*Config, error) {
	return LoadFrom("configs", profile)
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(dir, profile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := loadFileIfExists(k, dir+"/base.yaml"); err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		if err := loadFileIfExists(k, fmt.Sprintf("%s/%s.yaml", dir, profile)); err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	if err := k.Load(env.Provider("APP_", ".", envKeyMapper(k.Keys())), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper maps APP_CACHE_TTL_RANDOM_QUOTE to cache.ttl.random_quote.
// Underscores are ambiguous, so known keys are matched first; unknown
// variables fall back to treating every underscore as a separator.
func envKeyMapper(known []string) func(string) string {
	byEnv := make(map[string]string, len(known))
	for _, key := range known {
		byEnv[strings.ReplaceAll(key, ".", "_")] = key
	}

	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, "APP_"))
		if key, ok := byEnv[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
