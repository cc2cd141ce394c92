package payments

import (
	"github.com/google/uuid"

	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

// CardDetails is collected for card payments only. The simulated gateway
// never reads it.
type CardDetails struct {
	Number string `json:"cardNumber" validate:"required"`
	Expiry string `json:"expiryDate" validate:"required"`
	CVC    string `json:"cvc" validate:"required"`
	Name   string `json:"cardName" validate:"required"`
}

// QuoteInput selects the add-on and promo for a computation.
type QuoteInput struct {
	IncludePremium bool   `json:"includePremium"`
	PromoCode      string `json:"promoCode,omitempty"`
}

// PayInput is a payment attempt for one application.
type PayInput struct {
	QuoteInput
	Method enums.PaymentMethod `json:"paymentMethod"`
	Card   *CardDetails        `json:"card,omitempty"`
}

// Receipt is the outcome of Pay.
type Receipt struct {
	ApplicationID uuid.UUID                    `json:"applicationId"`
	PaymentID     string                       `json:"paymentId"`
	Status        enums.PaymentStatus          `json:"status"`
	Computation   *Computation                 `json:"computation,omitempty"`
	Application   *applications.ApplicationDTO `json:"application"`
	AlreadyPaid   bool                         `json:"alreadyPaid"`
}
