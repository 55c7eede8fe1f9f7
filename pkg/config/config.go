package config

import (
	"brokerage/pkg/client"
	"brokerage/pkg/logger"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	PostgresURL      string
	PostgresMaxConns int

	RedisURL          string
	DirectoryCacheTTL time.Duration

	BreakerFailureThreshold int
	BreakerOpenTimeout      time.Duration

	KafkaEnabled     bool
	KafkaVisitsTopic string

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	VisitLockTTL time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		MongoURI:          env.str(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: env.str(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  env.duration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		PostgresURL:      env.str(EnvPostgresURL, DefaultPostgresURL),
		PostgresMaxConns: env.num(EnvPostgresMaxConns, DefaultPostgresMaxConns),

		RedisURL:          env.str(EnvRedisURL, DefaultRedisURL),
		DirectoryCacheTTL: env.duration(EnvDirectoryCacheTTL, DefaultDirectoryCacheTTL),

		BreakerFailureThreshold: env.num(EnvBreakerFailureThreshold, DefaultBreakerFailureThreshold),
		BreakerOpenTimeout:      env.duration(EnvBreakerOpenTimeout, DefaultBreakerOpenTimeout),

		KafkaEnabled:     env.flag(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaVisitsTopic: env.str(EnvKafkaVisitsTopic, DefaultKafkaVisitsTopic),

		Port: env.str(EnvPort, DefaultPort),

		RateLimitRequests: env.num(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   env.duration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: env.duration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: env.duration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: env.num(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     env.duration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    env.duration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     env.duration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: env.duration(EnvShutdownTimeout, DefaultShutdownTimeout),

		VisitLockTTL: env.duration(EnvVisitLockTTL, DefaultVisitLockTTL),

		Log: logger.New(logger.Config{
			Level:     env.str(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := errors.Join(env.err(), cfg.Validate()); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, cfg.PostgresURL, cfg.PostgresMaxConns, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisURL, cfg.MongoConnTimeout)
}

var (
	mongoSchemes    = []string{"mongodb://", "mongodb+srv://"}
	postgresSchemes = []string{"postgres://", "postgresql://"}
	redisSchemes    = []string{"redis://", "rediss://"}
)

// Validate reports every problem at once, joined with errors.Join.
func (cfg *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		fail("Port must be between 1 and 65535, got: %s", cfg.Port)
	}
	if cfg.MongoDatabaseName == "" {
		fail("MongoDatabaseName cannot be empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaVisitsTopic == "" {
		fail("KafkaVisitsTopic cannot be empty when Kafka is enabled")
	}

	for _, u := range []struct {
		name    string
		value   string
		schemes []string
	}{
		{"MongoURI", cfg.MongoURI, mongoSchemes},
		{"PostgresURL", cfg.PostgresURL, postgresSchemes},
		{"RedisURL", cfg.RedisURL, redisSchemes},
	} {
		if !hasAnyPrefix(u.value, u.schemes) {
			fail("%s must start with %s, got: %q", u.name, strings.Join(u.schemes, " or "), redactURI(u.value))
		}
	}

	for name, n := range map[string]int{
		"PostgresMaxConns":        cfg.PostgresMaxConns,
		"BreakerFailureThreshold": cfg.BreakerFailureThreshold,
		"RateLimitRequests":       cfg.RateLimitRequests,
		"MaxRequestSize":          cfg.MaxRequestSize,
	} {
		if n <= 0 {
			fail("%s must be positive, got: %d", name, n)
		}
	}

	for name, d := range map[string]time.Duration{
		"MongoConnTimeout":   cfg.MongoConnTimeout,
		"DirectoryCacheTTL":  cfg.DirectoryCacheTTL,
		"BreakerOpenTimeout": cfg.BreakerOpenTimeout,
		"RateLimitWindow":    cfg.RateLimitWindow,
		"RequestTimeout":     cfg.RequestTimeout,
		"IdempotencyTTL":     cfg.IdempotencyTTL,
		"ReadTimeout":        cfg.ReadTimeout,
		"WriteTimeout":       cfg.WriteTimeout,
		"IdleTimeout":        cfg.IdleTimeout,
		"ShutdownTimeout":    cfg.ShutdownTimeout,
		"VisitLockTTL":       cfg.VisitLockTTL,
	} {
		if d <= 0 {
			fail("%s must be positive, got: %s", name, d)
		}
	}

	return errors.Join(errs...)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"postgres_url", redactURI(cfg.PostgresURL),
		"postgres_max_conns", cfg.PostgresMaxConns,
		"redis_url", redactURI(cfg.RedisURL),
		"directory_cache_ttl", cfg.DirectoryCacheTTL,
		"breaker_failure_threshold", cfg.BreakerFailureThreshold,
		"breaker_open_timeout", cfg.BreakerOpenTimeout,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_visits_topic", cfg.KafkaVisitsTopic,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"visit_lock_ttl", cfg.VisitLockTTL,
	)
}

var credentialRegex = regexp.MustCompile(`^([a-z+]+://)[^:/@]+:[^@]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

// envReader reads typed values and remembers every malformed one, so a
// typo in a duration fails startup instead of silently using the default.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (r *envReader) num(key string, fallback int) int {
	return parseEnv(r, key, fallback, strconv.Atoi)
}

func (r *envReader) flag(key string, fallback bool) bool {
	return parseEnv(r, key, fallback, strconv.ParseBool)
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	return parseEnv(r, key, fallback, time.ParseDuration)
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

func parseEnv[T any](r *envReader, key string, fallback T, parse func(string) (T, error)) T {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	v, err := parse(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, value, err))
		return fallback
	}
	return v
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = MinPaginationLimit
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
