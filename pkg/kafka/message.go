package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is a record to publish together with its routing metadata.
type Message struct {
	Key       string // partition key, the visit id for lifecycle events
	Value     []byte // JSON payload
	Headers   map[string]string
	Topic     string
	Timestamp time.Time
}

const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderCorrelationID = "correlation-id"
	HeaderSchemaVersion = "schema-version"
	HeaderSource        = "source"
	HeaderOriginalTopic = "original-topic"
	HeaderDLQError      = "dlq-error"
	HeaderDLQTimestamp  = "dlq-timestamp"
)

// Envelope describes an event before encoding. Empty optional fields
// produce no header.
type Envelope struct {
	Key           string
	EventType     string
	SchemaVersion string
	Source        string
	CorrelationID string
	OccurredAt    time.Time
	Payload       any
}

// Encode JSON-encodes the payload and stamps a fresh event id.
func Encode(e Envelope) (Message, error) {
	value, err := json.Marshal(e.Payload)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	at := e.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	headers := map[string]string{HeaderEventID: uuid.NewString()}
	for name, v := range map[string]string{
		HeaderEventType:     e.EventType,
		HeaderSchemaVersion: e.SchemaVersion,
		HeaderSource:        e.Source,
		HeaderCorrelationID: e.CorrelationID,
	} {
		if v != "" {
			headers[name] = v
		}
	}

	return Message{Key: e.Key, Value: value, Headers: headers, Timestamp: at.UTC()}, nil
}

func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Value, v)
}

func (m Message) EventID() string       { return m.Headers[HeaderEventID] }
func (m Message) EventType() string     { return m.Headers[HeaderEventType] }
func (m Message) CorrelationID() string { return m.Headers[HeaderCorrelationID] }

// withDLQHeaders copies m for the dead letter topic, leaving the caller's
// headers untouched.
func (m Message) withDLQHeaders(originalTopic string, cause error, at time.Time) Message {
	headers := make(map[string]string, len(m.Headers)+3)
	for k, v := range m.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = originalTopic
	headers[HeaderDLQError] = cause.Error()
	headers[HeaderDLQTimestamp] = at.Format(time.RFC3339)
	m.Headers = headers
	m.Timestamp = at
	return m
}
