package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// ApplicationCreatedEvent signals a new draft for a user and school.
type ApplicationCreatedEvent struct {
	ApplicationID   uuid.UUID `json:"application_id"`
	UserID          string    `json:"user_id"`
	SchoolID        string    `json:"school_id"`
	ReferenceNumber string    `json:"reference_number"`
}

// ApplicationSubmittedEvent is emitted once a draft leaves the wizard.
type ApplicationSubmittedEvent struct {
	ApplicationID uuid.UUID `json:"application_id"`
	UserID        string    `json:"user_id"`
	SchoolID      string    `json:"school_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// ApplicationPaidEvent carries the settled payment for an application.
type ApplicationPaidEvent struct {
	ApplicationID uuid.UUID       `json:"application_id"`
	UserID        string          `json:"user_id"`
	PaymentID     string          `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      enums.Currency  `json:"currency"`
	PaidAt        time.Time       `json:"paid_at"`
}

// ApplicationPaymentFailedEvent records a declined charge.
type ApplicationPaymentFailedEvent struct {
	ApplicationID uuid.UUID `json:"application_id"`
	UserID        string    `json:"user_id"`
	PaymentID     string    `json:"payment_id,omitempty"`
	Reason        string    `json:"reason"`
}

// ApplicationStatusChangedEvent is emitted for administrative status moves.
type ApplicationStatusChangedEvent struct {
	ApplicationID uuid.UUID               `json:"application_id"`
	UserID        string                  `json:"user_id"`
	From          enums.ApplicationStatus `json:"from"`
	To            enums.ApplicationStatus `json:"to"`
	ChangedBy     string                  `json:"changed_by"`
	OutOfSequence bool                    `json:"out_of_sequence,omitempty"`
}

// AggregateID lets the registry check a payload against its outbox row.
func (e ApplicationCreatedEvent) AggregateID() uuid.UUID { return e.ApplicationID }
func (e ApplicationSubmittedEvent) AggregateID() uuid.UUID { return e.ApplicationID }
func (e ApplicationPaidEvent) AggregateID() uuid.UUID { return e.ApplicationID }
func (e ApplicationPaymentFailedEvent) AggregateID() uuid.UUID { return e.ApplicationID }
func (e ApplicationStatusChangedEvent) AggregateID() uuid.UUID { return e.ApplicationID }
