package payments

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	"github.com/tomaskub292929/to-korea-sub000/pkg/enums"
)

const (
	paymentIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	paymentIDSuffix   = 6
)

// ChargeRequest is what a gateway needs to take a payment.
type ChargeRequest struct {
	ApplicationID string
	Amount        decimal.Decimal
	Currency      enums.Currency
	Method        enums.PaymentMethod
}

// Gateway takes payments.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
}

// SimulatedGateway approves every charge after a fixed delay.
type SimulatedGateway struct {
	delay time.Duration
	now   func() time.Time
}

func NewSimulatedGateway(cfg config.PaymentConfig) *SimulatedGateway {
	return &SimulatedGateway{
		delay: cfg.SimulatedDelay,
		now:   time.Now,
	}
}

func (g *SimulatedGateway) Charge(ctx context.Context, _ ChargeRequest) (string, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return NewPaymentID(g.now())
}

// NewPaymentID returns PAY-<unix ms>-<6 uppercase base36 chars>.
func NewPaymentID(now time.Time) (string, error) {
	var b strings.Builder
	radix := big.NewInt(int64(len(paymentIDAlphabet)))
	for i := 0; i < paymentIDSuffix; i++ {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", err
		}
		b.WriteByte(paymentIDAlphabet[n.Int64()])
	}
	return fmt.Sprintf("PAY-%d-%s", now.UnixMilli(), b.String()), nil
}
