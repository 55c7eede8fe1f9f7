package kafka_middleware

import (
	"brokerage/pkg/kafka"
	"brokerage/pkg/logger"
	"context"
	"time"
)

func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.PublishFunc) error {
		start := time.Now()

		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_type", msg.EventType(),
			"event_id", msg.EventID(),
			"duration", time.Since(start),
		}
		if cid := msg.CorrelationID(); cid != "" {
			attrs = append(attrs, "correlation_id", cid)
		}

		if err != nil {
			log.Error("Failed to publish kafka message", append(attrs, "error", err)...)
		} else {
			log.Debug("Published kafka message", attrs...)
		}

		return err
	}
}
