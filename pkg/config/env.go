package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresURL      = "POSTGRES_URL"
	EnvPostgresMaxConns = "POSTGRES_MAX_CONNS"

	EnvRedisURL          = "REDIS_URL"
	EnvDirectoryCacheTTL = "DIRECTORY_CACHE_TTL"

	EnvBreakerFailureThreshold = "BREAKER_FAILURE_THRESHOLD"
	EnvBreakerOpenTimeout      = "BREAKER_OPEN_TIMEOUT"

	EnvKafkaEnabled     = "KAFKA_ENABLED"
	EnvKafkaVisitsTopic = "KAFKA_VISITS_TOPIC"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvVisitLockTTL = "VISIT_LOCK_TTL"
)
