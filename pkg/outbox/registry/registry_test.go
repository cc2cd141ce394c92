package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	"github.com/tomaskub292929/to-korea-sub000/pkg/outbox"
	"github.com/tomaskub292929/to-korea-sub000/pkg/outbox/payloads"
)

func TestResolveStatusChange(t *testing.T) {
	reg := newTestEventRegistry(t)
	appID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventApplicationStatusChanged,
		AggregateType: enums.AggregateApplication,
		AggregateID:   appID,
		Payload: envelope(t, 1, payloads.ApplicationStatusChangedEvent{
			ApplicationID: appID,
			UserID:        "user-1",
			From:          enums.ApplicationStatusPaid,
			To:            enums.ApplicationStatusUnderReview,
			ChangedBy:     "admin-1",
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "applications-topic", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(payloads.ApplicationStatusChangedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, enums.ApplicationStatusUnderReview, payload.To)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEveryEventTypeIsRouted(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventApplicationCreated,
		enums.EventApplicationSubmitted,
		enums.EventApplicationPaid,
		enums.EventApplicationPaymentFailed,
		enums.EventApplicationStatusChanged,
	} {
		desc, ok := reg.Descriptor(eventType)
		require.True(t, ok, eventType)
		assert.Equal(t, enums.AggregateApplication, desc.AggregateType)
		assert.Equal(t, "applications-topic", desc.Topic)
	}
}

func TestResolveRejections(t *testing.T) {
	reg := newTestEventRegistry(t)
	appID := uuid.New()
	created := payloads.ApplicationCreatedEvent{ApplicationID: appID, UserID: "user-1"}

	cases := []struct {
		name  string
		event models.OutboxEvent
	}{
		{"unknown event", models.OutboxEvent{EventType: "application_archived", AggregateType: enums.AggregateApplication, AggregateID: appID, Payload: envelope(t, 1, created)}},
		{"aggregate mismatch", models.OutboxEvent{EventType: enums.EventApplicationCreated, AggregateType: "user", AggregateID: appID, Payload: envelope(t, 1, created)}},
		{"missing aggregate id", models.OutboxEvent{EventType: enums.EventApplicationCreated, AggregateType: enums.AggregateApplication, Payload: envelope(t, 1, created)}},
		{"null payload", models.OutboxEvent{EventType: enums.EventApplicationCreated, AggregateType: enums.AggregateApplication, AggregateID: appID, Payload: envelope(t, 1, nil)}},
		{"future envelope", models.OutboxEvent{EventType: enums.EventApplicationCreated, AggregateType: enums.AggregateApplication, AggregateID: appID, Payload: envelope(t, 2, created)}},
		{"other application", models.OutboxEvent{EventType: enums.EventApplicationCreated, AggregateType: enums.AggregateApplication, AggregateID: uuid.New(), Payload: envelope(t, 1, created)}},
		{"broken envelope", models.OutboxEvent{EventType: enums.EventApplicationPaid, AggregateType: enums.AggregateApplication, AggregateID: appID, Payload: json.RawMessage(`{"data":`)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Resolve(tc.event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "expected non-retryable, got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	assert.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{ApplicationsTopic: "applications-topic"})
	require.NoError(t, err)
	return reg
}

func envelope(t *testing.T, version int, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return out
}
