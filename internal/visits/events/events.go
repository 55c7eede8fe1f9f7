// Package events publishes visit lifecycle changes to Kafka.
package events

import (
	"brokerage/pkg/kafka"
	"brokerage/pkg/logger"
	"brokerage/pkg/middleware"
	"brokerage/pkg/model"
	"context"
	"time"
)

type Type string

const (
	VisitCreated          Type = "visit.created"
	VisitScheduled        Type = "visit.scheduled"
	VisitRescheduled      Type = "visit.rescheduled"
	VisitClaimed          Type = "visit.claimed"
	VisitCanceled         Type = "visit.canceled"
	VisitUpdated          Type = "visit.updated"
	VisitStatusOverridden Type = "visit.status_overridden"
	VisitDeleted          Type = "visit.deleted"
)

const (
	SchemaVersion = "1"
	Source        = "visits-service"
)

// Event is the JSON payload. Visit is nil for deletions.
type Event struct {
	Type       Type         `json:"type"`
	VisitID    string       `json:"visit_id"`
	Visit      *model.Visit `json:"visit,omitempty"`
	FromStatus string       `json:"from_status,omitempty"`
	ToStatus   string       `json:"to_status,omitempty"`
	Override   bool         `json:"override,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Publisher is notified after a mutation has been committed. Failures
// are the publisher's concern and never reach the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer MessagePublisher
	log      *logger.Logger
}

func NewKafkaPublisher(producer MessagePublisher, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg, err := kafka.Encode(kafka.Envelope{
		Key:           event.VisitID,
		EventType:     string(event.Type),
		SchemaVersion: SchemaVersion,
		Source:        Source,
		CorrelationID: middleware.RequestIDFromContext(ctx),
		OccurredAt:    event.OccurredAt,
		Payload:       event,
	})
	if err != nil {
		p.log.Error("Failed to build visit event",
			"event_type", event.Type,
			"visit_id", event.VisitID,
			"error", err,
		)
		return
	}

	// The request may already be finishing; the event outlives it.
	if err := p.producer.Publish(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Error("Failed to publish visit event",
			"event_type", event.Type,
			"visit_id", event.VisitID,
			"error", err,
		)
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
