package kafka_middleware

import (
	"brokerage/pkg/kafka"
	"context"
	"sync/atomic"
	"time"
)

// Metrics counts publish outcomes for one producer.
type Metrics struct {
	published     atomic.Int64
	failed        atomic.Int64
	durationTotal atomic.Int64 // nanoseconds
}

type MetricsSnapshot struct {
	MessagesPublished       int64
	MessagesPublishedFailed int64
	AvgPublishDuration      time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.PublishFunc) error {
		start := time.Now()
		err := next(ctx, msg)
		m.durationTotal.Add(int64(time.Since(start)))

		if err != nil {
			m.failed.Add(1)
		} else {
			m.published.Add(1)
		}
		return err
	}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	published := m.published.Load()
	failed := m.failed.Load()

	var avg time.Duration
	if total := published + failed; total > 0 {
		avg = time.Duration(m.durationTotal.Load() / total)
	}

	return MetricsSnapshot{
		MessagesPublished:       published,
		MessagesPublishedFailed: failed,
		AvgPublishDuration:      avg,
	}
}
