package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// EnvelopeVersion is bumped when PayloadEnvelope changes shape. Readers
// reject versions newer than they know.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event. Nil for system writes.
type ActorRef struct {
	AccountID string     `json:"accountId"`
	Role      enums.Role `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// newEnvelope marshals data under a fresh event id.
func newEnvelope(data any, occurredAt time.Time, actor *ActorRef) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, err
	}
	return PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      actor,
		Data:       raw,
	}, nil
}
