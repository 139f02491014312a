package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Lifecycle event types.
const (
	ResponseCreated   = "response.created"
	ResponseRound     = "response.round"
	ResponseCompleted = "response.completed"
	ResponseDeleted   = "response.deleted"
	SurveyExported    = "survey.exported"
)

// Event describes one lifecycle transition.
type Event struct {
	Type       string    `json:"type"`
	ResponseID string    `json:"responseId,omitempty"`
	SurveyID   string    `json:"surveyId,omitempty"`
	Step       string    `json:"step,omitempty"`
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

var _ Conn = (*nats.Conn)(nil)

// NATSPublisher publishes events under "<subject>.<type>".
type NATSPublisher struct {
	conn    Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher builds a publisher on an established connection.
func NewNATSPublisher(conn Conn, subject string, logger zerolog.Logger) *NATSPublisher {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = "avatair"
	}
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish encodes the event as JSON. It never blocks on the broker beyond the
// client's own buffering.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	subject := p.subject + "." + event.Type
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug().Str("subject", subject).Str("response_id", event.ResponseID).Msg("event published")
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
