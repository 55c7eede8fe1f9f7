package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerWriteTimeout = 5 * time.Second
	DefaultProducerAcks         = AcksAll
	DefaultProducerCompression  = "snappy"

	// Empty disables the dead letter writer.
	DefaultDLQTopic = ""
)

const (
	AcksAll    = "all"
	AcksLeader = "leader"
	AcksNone   = "none"
)
