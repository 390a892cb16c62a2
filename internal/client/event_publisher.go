package client

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventPublisher publishes import lifecycle events to NATS JetStream for
// consumption by downstream notification services.
//
// Subject convention: attendance.imports.<event_type>
// Event types: completed, failed
//
// All publish operations are non-fatal: errors are logged but never
// propagated, so a broker outage cannot interrupt an import.
type EventPublisher struct {
	js  nats.JetStreamContext
	nc  *nats.Conn
	log zerolog.Logger
}

// ImportEvent is the JSON schema published per import.
type ImportEvent struct {
	JobID        string    `json:"job_id"`
	Source       string    `json:"source"`
	Processed    int       `json:"processed"`
	Valid        int       `json:"valid"`
	Duplicates   int       `json:"duplicates"`
	Errors       int       `json:"errors"`
	NewEmployees int       `json:"new_employees"`
	Stored       int       `json:"stored"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewEventPublisher connects to NATS. An empty URL yields a disabled
// publisher whose Publish calls are no-ops.
func NewEventPublisher(natsURL string, log zerolog.Logger) (*EventPublisher, error) {
	pub := &EventPublisher{log: log.With().Str("component", "event_publisher").Logger()}
	if natsURL == "" {
		return pub, nil
	}

	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	pub.nc = nc
	pub.js = js
	return pub, nil
}

// PublishImportEvent publishes an import lifecycle event.
// Subject: attendance.imports.<eventType>
func (p *EventPublisher) PublishImportEvent(eventType string, event ImportEvent) {
	if p.js == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("event_type", eventType).Msg("Failed to marshal import event")
		return
	}

	subject := "attendance.imports." + eventType
	if _, err := p.js.Publish(subject, data); err != nil {
		p.log.Error().Err(err).Str("subject", subject).Msg("Failed to publish import event")
		return
	}
	p.log.Debug().Str("subject", subject).Str("job_id", event.JobID).Msg("Published import event")
}

// Close drains the NATS connection.
func (p *EventPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
