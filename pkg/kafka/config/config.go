package kafka_config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

// Config holds the producer settings for visit events. Writes are always
// synchronous so a failed publish reaches the middleware chain and the
// dead letter topic.
type Config struct {
	Brokers []string

	MaxAttempts  int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	Acks         string
	Compression  string

	DLQTopic string
}

var compressions = map[string]compress.Compression{
	"none":   compress.None,
	"gzip":   compress.Gzip,
	"snappy": compress.Snappy,
	"lz4":    compress.Lz4,
	"zstd":   compress.Zstd,
}

var acks = map[string]kafka.RequiredAcks{
	AcksAll:    kafka.RequireAll,
	AcksLeader: kafka.RequireOne,
	AcksNone:   kafka.RequireNone,
}

func Load() (*Config, error) {
	var brokers []string
	for _, b := range strings.Split(env(EnvKafkaBrokers, DefaultKafkaBrokers), ",") {
		brokers = append(brokers, strings.TrimSpace(b))
	}

	var errs []error
	cfg := &Config{
		Brokers:      brokers,
		MaxAttempts:  envParse(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts, strconv.Atoi, &errs),
		BatchTimeout: envParse(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout, time.ParseDuration, &errs),
		WriteTimeout: envParse(EnvKafkaProducerWriteTimeout, DefaultProducerWriteTimeout, time.ParseDuration, &errs),
		Acks:         strings.ToLower(env(EnvKafkaProducerAcks, DefaultProducerAcks)),
		Compression:  strings.ToLower(env(EnvKafkaProducerCompression, DefaultProducerCompression)),
		DLQTopic:     env(EnvKafkaDLQTopic, DefaultDLQTopic),
	}

	if err := errors.Join(append(errs, cfg.Validate())...); err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	var errs []error

	if len(cfg.Brokers) == 0 {
		errs = append(errs, errors.New("at least one broker is required"))
	}
	for i, broker := range cfg.Brokers {
		if broker == "" {
			errs = append(errs, fmt.Errorf("broker %d is empty", i))
		}
	}
	if cfg.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts))
	}
	if cfg.BatchTimeout <= 0 || cfg.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("batch and write timeouts must be positive, got %s and %s", cfg.BatchTimeout, cfg.WriteTimeout))
	}
	if _, ok := compressions[cfg.Compression]; !ok {
		errs = append(errs, fmt.Errorf("unknown compression %q", cfg.Compression))
	}
	if _, ok := acks[cfg.Acks]; !ok {
		errs = append(errs, fmt.Errorf("acks must be all, leader or none, got %q", cfg.Acks))
	}

	return errors.Join(errs...)
}

func (cfg *Config) CompressionCodec() compress.Compression {
	if c, ok := compressions[cfg.Compression]; ok {
		return c
	}
	return compress.Snappy
}

func (cfg *Config) RequiredAcks() kafka.RequiredAcks {
	if a, ok := acks[cfg.Acks]; ok {
		return a
	}
	return kafka.RequireAll
}

func (cfg *Config) LogConfiguration(logFunc func(msg string, args ...any)) {
	logFunc("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"max_attempts", cfg.MaxAttempts,
		"batch_timeout", cfg.BatchTimeout,
		"write_timeout", cfg.WriteTimeout,
		"acks", cfg.Acks,
		"compression", cfg.Compression,
		"dlq_topic", cfg.DLQTopic,
	)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envParse keeps fallback when key is unset and records a parse failure
// instead of silently ignoring a malformed value.
func envParse[T any](key string, fallback T, parse func(string) (T, error), errs *[]error) T {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}
