package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
	"github.com/tomaskub292929/to-korea-sub000/pkg/metrics"
)

const (
	msgUnauthorizedAccess = "Unauthorized access"
	msgPaymentFailed      = "Payment failed. Please try again."
	msgCardDetails        = "Please fill in all card details"
)

type applicationStore interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	UpdateApplicationPayment(ctx context.Context, id uuid.UUID, paymentID string, status enums.PaymentStatus, amount decimal.Decimal) (*models.Application, error)
}

// Service prices and settles the application fee.
type Service struct {
	apps     applicationStore
	gateway  Gateway
	validate *validator.Validate
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	now      func() time.Time
}

type ServiceParams struct {
	Applications applicationStore
	Gateway      Gateway
	Metrics      *metrics.PaymentMetrics
	Logger       *logger.Logger
	Clock        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Applications == nil {
		return nil, fmt.Errorf("applications service is required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		apps:     params.Applications,
		gateway:  params.Gateway,
		validate: validator.New(),
		metrics:  params.Metrics,
		logg:     logg,
		now:      clock,
	}, nil
}

// Quote prices an order for the caller's application without charging.
func (s *Service) Quote(ctx context.Context, userID string, applicationID uuid.UUID, input QuoteInput) (*Computation, error) {
	if _, err := s.owned(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	return price(input)
}

// Pay charges the gateway for a submitted application and records the
// outcome on it. Paying an already paid application changes nothing.
func (s *Service) Pay(ctx context.Context, userID string, applicationID uuid.UUID, input PayInput) (*Receipt, error) {
	app, err := s.owned(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}
	if alreadyPaid(app) {
		return &Receipt{
			ApplicationID: app.ID,
			PaymentID:     deref(app.PaymentID),
			Status:        enums.PaymentStatusCompleted,
			Application:   applications.FromModel(app),
			AlreadyPaid:   true,
		}, nil
	}
	if app.Status == enums.ApplicationStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "application must be submitted before payment")
	}
	if err := s.checkMethod(input); err != nil {
		return nil, err
	}
	computation, err := price(input.QuoteInput)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithApplicationID(ctx, app.ID.String())
	logCtx = s.logg.WithUserID(logCtx, userID)

	started := s.now()
	paymentID, chargeErr := s.gateway.Charge(ctx, ChargeRequest{
		ApplicationID: app.ID.String(),
		Amount:        computation.Total,
		Currency:      enums.CurrencyUSD,
		Method:        input.Method,
	})
	elapsed := s.now().Sub(started)

	if chargeErr != nil {
		s.metrics.ObserveCharge(input.Method.String(), "failed", elapsed)
		s.logg.Error(logCtx, "payment charge failed", chargeErr)
		// A cancelled caller never reached the gateway outcome; leave the
		// application untouched.
		if errors.Is(chargeErr, context.Canceled) || errors.Is(chargeErr, context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, chargeErr, msgPaymentFailed)
		}
		if _, err := s.apps.UpdateApplicationPayment(ctx, app.ID, paymentID, enums.PaymentStatusFailed, computation.Total); err != nil {
			s.logg.Error(logCtx, "record failed payment", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, chargeErr, msgPaymentFailed)
	}
	s.metrics.ObserveCharge(input.Method.String(), "completed", elapsed)

	updated, err := s.apps.UpdateApplicationPayment(ctx, app.ID, paymentID, enums.PaymentStatusCompleted, computation.Total)
	if err != nil {
		// The charge went through; the payment id lets support reconcile.
		logCtx = s.logg.WithField(logCtx, "payment_id", paymentID)
		s.logg.Error(logCtx, "record completed payment", err)
		return nil, err
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"payment_id": paymentID,
		"amount":     computation.Total.StringFixed(2),
		"method":     input.Method,
	})
	s.logg.Info(logCtx, "payment completed")

	return &Receipt{
		ApplicationID: updated.ID,
		PaymentID:     paymentID,
		Status:        enums.PaymentStatusCompleted,
		Computation:   computation,
		Application:   applications.FromModel(updated),
	}, nil
}

func (s *Service) owned(ctx context.Context, userID string, applicationID uuid.UUID) (*models.Application, error) {
	app, err := s.apps.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, msgUnauthorizedAccess)
	}
	return app, nil
}

func (s *Service) checkMethod(input PayInput) error {
	if !input.Method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if !input.Method.NeedsCard() {
		return nil
	}
	if input.Card == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, msgCardDetails)
	}
	card := *input.Card
	card.Number = strings.TrimSpace(card.Number)
	card.Expiry = strings.TrimSpace(card.Expiry)
	card.CVC = strings.TrimSpace(card.CVC)
	card.Name = strings.TrimSpace(card.Name)
	if err := s.validate.Struct(card); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgCardDetails)
	}
	return nil
}

// price replays a finished checkout form: the add-on is chosen before the
// promo is applied, so a percentage promo covers it. Checkout keeps the
// discount fixed only for toggles made after ApplyPromo.
func price(input QuoteInput) (*Computation, error) {
	checkout := NewCheckout()
	checkout.SetPremium(input.IncludePremium)
	if strings.TrimSpace(input.PromoCode) != "" {
		if err := checkout.ApplyPromo(input.PromoCode); err != nil {
			return nil, err
		}
	}
	computation := checkout.Compute()
	return &computation, nil
}

func alreadyPaid(app *models.Application) bool {
	if app.Status == enums.ApplicationStatusPaid || app.PaidAt != nil {
		return true
	}
	return app.PaymentStatus != nil && *app.PaymentStatus == enums.PaymentStatusCompleted
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
