package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tomaskub292929/to-korea-sub000/api/middleware"
	"github.com/tomaskub292929/to-korea-sub000/api/responses"
	"github.com/tomaskub292929/to-korea-sub000/api/validators"
	"github.com/tomaskub292929/to-korea-sub000/internal/payments"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

type paymentService interface {
	Quote(ctx context.Context, userID string, applicationID uuid.UUID, input payments.QuoteInput) (*payments.Computation, error)
	Pay(ctx context.Context, userID string, applicationID uuid.UUID, input payments.PayInput) (*payments.Receipt, error)
}

// PaymentQuote prices the checkout without charging.
func PaymentQuote(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body payments.QuoteInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Quote(r.Context(), middleware.UserIDFromContext(r.Context()), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// PaymentCharge charges the application fee. A repeat on a paid application
// answers with the stored payment instead of charging again.
func PaymentCharge(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "applicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body payments.PayInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt, err := svc.Pay(r.Context(), middleware.UserIDFromContext(r.Context()), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}
