package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// ActorRef identifies who produced the event. The operator is the opaque
// identity supplied by the presentation layer.
type ActorRef struct {
	Operator string `json:"operator"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// NonRetryableError marks an outbox row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable outbox event"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// DecodeEnvelope validates a stored row and returns its envelope.
func DecodeEnvelope(event models.OutboxEvent) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if !event.EventType.IsValid() {
		return envelope, NonRetryableError{Err: fmt.Errorf("unknown event type %q", event.EventType)}
	}
	if !event.AggregateType.IsValid() {
		return envelope, NonRetryableError{Err: fmt.Errorf("unknown aggregate type %q", event.AggregateType)}
	}
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return envelope, NonRetryableError{Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if envelope.EventID == "" {
		return envelope, NonRetryableError{Err: fmt.Errorf("envelope missing event id")}
	}
	return envelope, nil
}
