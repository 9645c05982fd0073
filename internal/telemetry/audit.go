// Package telemetry emits structured audit events for relay activity
// (joins, leaves, message relays) onto the event bus.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yaohuangguan/orion-chat/internal/rabbitmq"
)

type AuditEmitter struct {
	publisher   rabbitmq.Publisher
	routingKey  string
	service     string
	environment string
	log         zerolog.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	UserID        string       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func NewAuditEmitter(publisher rabbitmq.Publisher, routingKey, service, environment string, logger zerolog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         logger.With().Str("component", "audit").Logger(),
	}
}

// Emit publishes one audit event. Nil emitters and publish failures are
// tolerated; auditing never blocks chat traffic.
func (e *AuditEmitter) Emit(ctx context.Context, userID, action, channel, detail string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "chat_audit",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		UserID:        userID,
		Payload: AuditPayload{
			Action:  action,
			Channel: channel,
			Detail:  detail,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope, nil); err != nil {
		e.log.Warn().Err(err).Str("action", action).Msg("audit publish failed")
	}
}
