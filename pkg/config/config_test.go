package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		MongoURI:                DefaultMongoURI,
		MongoDatabaseName:       DefaultMongoDatabaseName,
		MongoConnTimeout:        DefaultMongoConnTimeout,
		PostgresURL:             DefaultPostgresURL,
		PostgresMaxConns:        DefaultPostgresMaxConns,
		RedisURL:                DefaultRedisURL,
		DirectoryCacheTTL:       DefaultDirectoryCacheTTL,
		BreakerFailureThreshold: DefaultBreakerFailureThreshold,
		BreakerOpenTimeout:      DefaultBreakerOpenTimeout,
		KafkaVisitsTopic:        DefaultKafkaVisitsTopic,
		Port:                    DefaultPort,
		RateLimitRequests:       DefaultRateLimitRequests,
		RateLimitWindow:         DefaultRateLimitWindow,
		RequestTimeout:          DefaultRequestTimeout,
		IdempotencyTTL:          DefaultIdempotencyTTL,
		MaxRequestSize:          DefaultMaxRequestSize,
		ReadTimeout:             DefaultReadTimeout,
		WriteTimeout:            DefaultWriteTimeout,
		IdleTimeout:             DefaultIdleTimeout,
		ShutdownTimeout:         DefaultShutdownTimeout,
		VisitLockTTL:            DefaultVisitLockTTL,
	}
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "70000"
	cfg.MongoURI = "http://nope"
	cfg.PostgresURL = "mysql://x"
	cfg.VisitLockTTL = 0
	cfg.KafkaEnabled = true
	cfg.KafkaVisitsTopic = ""

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Port must be between 1 and 65535")
	assert.Contains(t, msg, "MongoURI must start with")
	assert.Contains(t, msg, "PostgresURL must start with")
	assert.Contains(t, msg, "VisitLockTTL must be positive")
	assert.Contains(t, msg, "KafkaVisitsTopic cannot be empty")
}

func TestRedactURI(t *testing.T) {
	assert.Equal(t, "mongodb://***:***@db:27017", redactURI("mongodb://admin:s3cret@db:27017"))
	assert.Equal(t, "postgres://***:***@pg:5432/app", redactURI("postgres://app:pw@pg:5432/app"))
	assert.Equal(t, "redis://localhost:6379/0", redactURI("redis://localhost:6379/0"))
}

func TestEnvReader(t *testing.T) {
	t.Setenv("TEST_DURATION", "250ms")
	t.Setenv("TEST_BOOL", "true")

	env := &envReader{}
	assert.Equal(t, 250*time.Millisecond, env.duration("TEST_DURATION", time.Second))
	assert.True(t, env.flag("TEST_BOOL", false))
	assert.Equal(t, "fallback", env.str("TEST_UNSET_KEY", "fallback"))
	assert.Equal(t, 7, env.num("TEST_UNSET_NUM", 7))
	assert.NoError(t, env.err())
}

func TestEnvReader_RecordsMalformedValues(t *testing.T) {
	t.Setenv("TEST_NUM", "not-a-number")
	t.Setenv("TEST_DURATION", "10 minutes")

	env := &envReader{}
	assert.Equal(t, 7, env.num("TEST_NUM", 7))
	assert.Equal(t, time.Second, env.duration("TEST_DURATION", time.Second))

	err := env.err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_NUM")
	assert.Contains(t, err.Error(), "TEST_DURATION")
}

func TestValidate_RejectsNonPositiveCounts(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimitRequests = 0
	cfg.RedisURL = "memcached://x"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RateLimitRequests must be positive")
	assert.Contains(t, err.Error(), "RedisURL must start with")
}

func TestNormalizePagination(t *testing.T) {
	assert.Equal(t, MinPaginationLimit, NormalizePaginationLimit(0))
	assert.Equal(t, 25, NormalizePaginationLimit(25))
	assert.Equal(t, DefaultPaginationLimit, NormalizePaginationLimit(5000))
	assert.Equal(t, int64(0), NormalizeOffset(-3))
	assert.Equal(t, int64(40), NormalizeOffset(40))
}
