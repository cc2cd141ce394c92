package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
	"github.com/tomaskub292929/to-korea-sub000/pkg/outbox"
	"github.com/tomaskub292929/to-korea-sub000/pkg/outbox/payloads"
	"github.com/tomaskub292929/to-korea-sub000/pkg/outbox/registry"
)

func TestFailureHoldsBackSameApplicationOnly(t *testing.T) {
	appA, appB := uuid.New(), uuid.New()
	first := applicationEvent(t, appA, enums.EventApplicationSubmitted, 0)
	second := applicationEvent(t, appA, enums.EventApplicationPaid, 0)
	other := applicationEvent(t, appB, enums.EventApplicationSubmitted, 0)

	repo := &fakeRepo{events: []models.OutboxEvent{first, other, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: submittedResolved()}, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{other.ID}, repo.published)
	assert.Empty(t, repo.terminal)
	assert.Len(t, pub.messages, 2, "held-back event must not reach pubsub")
	assert.Equal(t, []string{appA.String()}, pub.resumed)
}

func TestParkedEventDoesNotBlockLaterEvents(t *testing.T) {
	app := uuid.New()
	broken := applicationEvent(t, app, enums.EventApplicationCreated, 0)
	next := applicationEvent(t, app, enums.EventApplicationSubmitted, 0)

	repo := &fakeRepo{events: []models.OutboxEvent{broken, next}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: registry.NewNonRetryableError(errors.New("topic deleted"))},
		fakePublishResult{},
	}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: submittedResolved()}, nil)

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{broken.ID}, repo.terminal)
	assert.Equal(t, []uuid.UUID{next.ID}, repo.published)
}

func TestPublishedMessageCarriesOrderingKeyAndAttributes(t *testing.T) {
	event := applicationEvent(t, uuid.New(), enums.EventApplicationSubmitted, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	resolved := submittedResolved()
	resolved.Envelope.Version = 1
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, nil)

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)

	msg := pub.messages[0]
	assert.Equal(t, event.AggregateID.String(), msg.OrderingKey)
	assert.Equal(t, []byte(event.Payload), msg.Data)
	assert.JSONEq(t, string(event.Payload), string(msg.Data))
	assert.Equal(t, string(enums.EventApplicationSubmitted), msg.Attributes["event_type"])
	assert.Equal(t, event.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, string(enums.AggregateApplication), msg.Attributes["aggregate_type"])
	assert.Equal(t, "1", msg.Attributes["schema_version"])
	assert.Equal(t, event.ID.String(), msg.Attributes["event_id"])
}

func TestUnresolvableEventIsParked(t *testing.T) {
	event := applicationEvent(t, uuid.New(), enums.EventApplicationCreated, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub, reg, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	assert.Empty(t, repo.published)
	assert.Empty(t, pub.messages)
}

func TestEventParkedAtMaxAttempts(t *testing.T) {
	event := applicationEvent(t, uuid.New(), enums.EventApplicationSubmitted, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: submittedResolved()}, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	assert.Empty(t, repo.failed, "terminal row should not also be marked failed")
}

func TestRepositoryErrorAbortsBatch(t *testing.T) {
	event := applicationEvent(t, uuid.New(), enums.EventApplicationSubmitted, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}, markErr: errors.New("connection reset")}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: submittedResolved()}, nil)

	_, err := service.processBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark published")
}

func TestEmptyBatch(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, nil)
	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestNewServiceDefaults(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &config.OutboxConfig{})
	assert.Equal(t, defaultBatchSize, service.batchSize)
	assert.Equal(t, defaultMaxAttempts, service.maxAttempts)
	assert.Equal(t, defaultPollInterval, service.pollInterval)

	_, err := NewService(ServiceParams{Config: &config.Config{}})
	assert.EqualError(t, err, "logger is required")
}

func TestRunStopsOnCancel(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, service.Run(ctx), context.DeadlineExceeded)
}

func TestBackoffAndJitter(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(0, time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextBackoff(8*time.Second, time.Second, 10*time.Second))

	assert.Zero(t, withJitter(0))
	for range 20 {
		got := withJitter(time.Second)
		assert.GreaterOrEqual(t, got, time.Second)
		assert.Less(t, got, time.Second+jitterWindow)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, override *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      10,
		PollIntervalMS: 10,
		MaxAttempts:    5,
	}
	if override != nil {
		outboxCfg = *override
	}
	service, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(string) publisher { return pub },
	})
	require.NoError(t, err)
	return service
}

func applicationEvent(t *testing.T, applicationID uuid.UUID, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateApplication,
		AggregateID:   applicationID,
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
}

func submittedResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "applications",
			AggregateType: enums.AggregateApplication,
		},
		Payload: payloads.ApplicationSubmittedEvent{},
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	markErr   error
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (*fakeDB) Ping(context.Context) error { return nil }

func (*fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (*fakePubSubClient) Ping(context.Context) error { return nil }

func (*fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	resumed  []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func (f *fakePublisher) Resume(orderingKey string) {
	f.resumed = append(f.resumed, orderingKey)
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, nil
}
