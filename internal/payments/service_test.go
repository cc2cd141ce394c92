package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/dbtest"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
)

type stubGateway struct {
	id    string
	err   error
	calls []ChargeRequest
}

func (g *stubGateway) Charge(_ context.Context, req ChargeRequest) (string, error) {
	g.calls = append(g.calls, req)
	return g.id, g.err
}

var validCard = &CardDetails{Number: "4242424242424242", Expiry: "12/30", CVC: "123", Name: "Anna Kim"}

func newPaymentFixture(t *testing.T, gw Gateway) (*Service, *applications.Service) {
	t.Helper()
	conn := dbtest.Open(t)
	apps, err := applications.NewService(applications.ServiceParams{
		Repo: applications.NewRepository(conn),
		Tx:   db.NewFromGorm(conn),
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Applications: apps, Gateway: gw})
	require.NoError(t, err)
	return svc, apps
}

func submittedApplication(t *testing.T, apps *applications.Service, userID string) *models.Application {
	t.Helper()
	ctx := context.Background()
	app, err := apps.GetOrCreateApplication(ctx, userID, "school-1", "SNU")
	require.NoError(t, err)
	app, err = apps.SubmitApplication(ctx, app.ID)
	require.NoError(t, err)
	return app
}

func TestPayRecordsCompletedPayment(t *testing.T) {
	gw := &stubGateway{id: "PAY-1-ABCDEF"}
	svc, apps := newPaymentFixture(t, gw)
	app := submittedApplication(t, apps, "user-1")

	receipt, err := svc.Pay(context.Background(), "user-1", app.ID, PayInput{
		QuoteInput: QuoteInput{PromoCode: "WELCOME10"},
		Method:     enums.PaymentMethodCard,
		Card:       validCard,
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-1-ABCDEF", receipt.PaymentID)
	assert.Equal(t, enums.PaymentStatusCompleted, receipt.Status)
	assert.True(t, receipt.Computation.Total.Equal(decimal.NewFromInt(135)))
	require.Len(t, gw.calls, 1)
	assert.Equal(t, enums.CurrencyUSD, gw.calls[0].Currency)

	stored, err := apps.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusPaid, stored.Status)
	require.NotNil(t, stored.PaymentAmount)
	assert.True(t, stored.PaymentAmount.Equal(decimal.NewFromInt(135)))
}

func TestPayIsNoopWhenAlreadyPaid(t *testing.T) {
	gw := &stubGateway{id: "PAY-1-ABCDEF"}
	svc, apps := newPaymentFixture(t, gw)
	app := submittedApplication(t, apps, "user-1")
	input := PayInput{Method: enums.PaymentMethodPayPal}

	_, err := svc.Pay(context.Background(), "user-1", app.ID, input)
	require.NoError(t, err)

	again, err := svc.Pay(context.Background(), "user-1", app.ID, input)
	require.NoError(t, err)
	assert.True(t, again.AlreadyPaid)
	assert.Equal(t, "PAY-1-ABCDEF", again.PaymentID)
	assert.Len(t, gw.calls, 1)
}

func TestPayRejectsOtherUsers(t *testing.T) {
	svc, apps := newPaymentFixture(t, &stubGateway{id: "PAY"})
	app := submittedApplication(t, apps, "user-1")

	_, err := svc.Pay(context.Background(), "user-2", app.ID, PayInput{Method: enums.PaymentMethodPayPal})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, "Unauthorized access", pkgerrors.As(err).Message())

	_, err = svc.Quote(context.Background(), "user-2", app.ID, QuoteInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestPayRejectsDraft(t *testing.T) {
	gw := &stubGateway{id: "PAY"}
	svc, apps := newPaymentFixture(t, gw)
	draft, err := apps.GetOrCreateApplication(context.Background(), "user-1", "school-1", "SNU")
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), "user-1", draft.ID, PayInput{Method: enums.PaymentMethodPayPal})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, gw.calls)
}

func TestPayValidatesMethod(t *testing.T) {
	gw := &stubGateway{id: "PAY"}
	svc, apps := newPaymentFixture(t, gw)
	app := submittedApplication(t, apps, "user-1")
	ctx := context.Background()

	_, err := svc.Pay(ctx, "user-1", app.ID, PayInput{Method: "crypto"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Pay(ctx, "user-1", app.ID, PayInput{Method: enums.PaymentMethodCard})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Pay(ctx, "user-1", app.ID, PayInput{
		Method: enums.PaymentMethodCard,
		Card:   &CardDetails{Number: "4242", Expiry: "12/30", CVC: " ", Name: "Anna"},
	})
	require.Error(t, err)
	assert.Equal(t, "Please fill in all card details", pkgerrors.As(err).Message())

	_, err = svc.Pay(ctx, "user-1", app.ID, PayInput{
		QuoteInput: QuoteInput{PromoCode: "NOPE"},
		Method:     enums.PaymentMethodBankTransfer,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, gw.calls)
}

func TestPayRecordsGatewayFailure(t *testing.T) {
	gw := &stubGateway{id: "PAY-2-FAILED", err: errors.New("card declined")}
	svc, apps := newPaymentFixture(t, gw)
	app := submittedApplication(t, apps, "user-1")

	_, err := svc.Pay(context.Background(), "user-1", app.ID, PayInput{Method: enums.PaymentMethodPayPal})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, "Payment failed. Please try again.", pkgerrors.As(err).Message())

	stored, err := apps.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ApplicationStatusSubmitted, stored.Status)
	require.NotNil(t, stored.PaymentStatus)
	assert.Equal(t, enums.PaymentStatusFailed, *stored.PaymentStatus)
}

func TestPayLeavesApplicationOnCancellation(t *testing.T) {
	gw := &stubGateway{err: context.Canceled}
	svc, apps := newPaymentFixture(t, gw)
	app := submittedApplication(t, apps, "user-1")

	_, err := svc.Pay(context.Background(), "user-1", app.ID, PayInput{Method: enums.PaymentMethodPayPal})
	require.Error(t, err)

	stored, err := apps.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PaymentStatus)
}

func TestQuotePercentPromoCoversPremium(t *testing.T) {
	gw := &stubGateway{id: "PAY"}
	svc, apps := newPaymentFixture(t, gw)
	app := submittedApplication(t, apps, "user-1")

	quote, err := svc.Quote(context.Background(), "user-1", app.ID, QuoteInput{IncludePremium: true, PromoCode: "WELCOME10"})
	require.NoError(t, err)
	assert.True(t, quote.Subtotal.Equal(decimal.NewFromInt(350)))
	assert.True(t, quote.Discount.Equal(decimal.NewFromInt(35)))
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(315)))

	base, err := svc.Quote(context.Background(), "user-1", app.ID, QuoteInput{PromoCode: "WELCOME10"})
	require.NoError(t, err)
	assert.True(t, base.Discount.Equal(decimal.NewFromInt(15)))
}

func TestQuoteDoesNotCharge(t *testing.T) {
	gw := &stubGateway{id: "PAY"}
	svc, apps := newPaymentFixture(t, gw)
	app := submittedApplication(t, apps, "user-1")

	quote, err := svc.Quote(context.Background(), "user-1", app.ID, QuoteInput{IncludePremium: true, PromoCode: "STUDY2026"})
	require.NoError(t, err)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(330)))
	assert.Empty(t, gw.calls)
}
