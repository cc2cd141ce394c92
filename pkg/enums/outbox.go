package enums

// OutboxAggregateType names the aggregate an outbox row belongs to. The
// aggregate id doubles as the Pub/Sub ordering key.
type OutboxAggregateType string

const AggregateApplication OutboxAggregateType = "application"

var aggregateTypes = set[OutboxAggregateType]{AggregateApplication}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType names an application lifecycle event.
type OutboxEventType string

const (
	EventApplicationCreated       OutboxEventType = "application_created"
	EventApplicationSubmitted     OutboxEventType = "application_submitted"
	EventApplicationPaid          OutboxEventType = "application_paid"
	EventApplicationPaymentFailed OutboxEventType = "application_payment_failed"
	EventApplicationStatusChanged OutboxEventType = "application_status_changed"
)

var outboxEventTypes = set[OutboxEventType]{
	EventApplicationCreated,
	EventApplicationSubmitted,
	EventApplicationPaid,
	EventApplicationPaymentFailed,
	EventApplicationStatusChanged,
}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse("event type", value)
}
