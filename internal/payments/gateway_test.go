package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
)

func TestSimulatedGatewayIssuesPaymentID(t *testing.T) {
	gw := NewSimulatedGateway(config.PaymentConfig{SimulatedDelay: time.Millisecond})
	gw.now = func() time.Time { return time.UnixMilli(1767225600000) }

	id, err := gw.Charge(context.Background(), ChargeRequest{})
	require.NoError(t, err)
	assert.Regexp(t, `^PAY-1767225600000-[0-9A-Z]{6}$`, id)
}

func TestSimulatedGatewayHonorsCancellation(t *testing.T) {
	gw := NewSimulatedGateway(config.PaymentConfig{SimulatedDelay: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Charge(ctx, ChargeRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPaymentIDIsRandom(t *testing.T) {
	now := time.Now()
	a, err := NewPaymentID(now)
	require.NoError(t, err)
	b, err := NewPaymentID(now)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
