package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertMoney(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %d, got %s", want, got)
}

func TestCheckoutBaseOrder(t *testing.T) {
	got := NewCheckout().Compute()
	require.Len(t, got.Items, 2)
	assertMoney(t, 150, got.Subtotal)
	assertMoney(t, 0, got.Discount)
	assertMoney(t, 150, got.Total)
}

func TestCheckoutPremiumAddsConsulting(t *testing.T) {
	c := NewCheckout()
	c.SetPremium(true)
	got := c.Compute()
	require.Len(t, got.Items, 3)
	assert.Equal(t, "1:1 Admission Consulting (Optional)", got.Items[2].Description)
	assertMoney(t, 350, got.Total)

	c.SetPremium(false)
	assertMoney(t, 150, c.Compute().Total)
}

func TestCheckoutPromoCodes(t *testing.T) {
	cases := []struct {
		name     string
		code     string
		premium  bool
		discount int64
		total    int64
	}{
		{name: "welcome on base", code: "WELCOME10", discount: 15, total: 135},
		{name: "welcome lowercase with spaces", code: "  welcome10 ", discount: 15, total: 135},
		{name: "welcome with premium", code: "WELCOME10", premium: true, discount: 35, total: 315},
		{name: "flat", code: "study2026", discount: 20, total: 130},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCheckout()
			c.SetPremium(tc.premium)
			require.NoError(t, c.ApplyPromo(tc.code))
			got := c.Compute()
			assertMoney(t, tc.discount, got.Discount)
			assertMoney(t, tc.total, got.Total)
			assert.True(t, c.PromoApplied())
		})
	}
}

func TestCheckoutRejectsUnknownPromo(t *testing.T) {
	c := NewCheckout()
	err := c.ApplyPromo("FREEMONEY")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "Invalid promo code", pkgerrors.As(err).Message())
	assert.False(t, c.PromoApplied())

	require.NoError(t, c.ApplyPromo("STUDY2026"))
}

func TestCheckoutPromoIsOneShot(t *testing.T) {
	c := NewCheckout()
	require.NoError(t, c.ApplyPromo("WELCOME10"))

	err := c.ApplyPromo("STUDY2026")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assertMoney(t, 15, c.Compute().Discount)
	assert.Equal(t, "WELCOME10", c.Compute().PromoCode)
}

func TestCheckoutDiscountFixedAtApplyTime(t *testing.T) {
	c := NewCheckout()
	require.NoError(t, c.ApplyPromo("WELCOME10"))
	c.SetPremium(true)

	got := c.Compute()
	assertMoney(t, 350, got.Subtotal)
	assertMoney(t, 15, got.Discount)
	assertMoney(t, 335, got.Total)
}

func TestCheckoutTotalNeverNegative(t *testing.T) {
	c := &Checkout{discount: dec(500)}
	assertMoney(t, 0, c.Compute().Total)
}

func TestPercentDiscountRoundsHalfAwayFromZero(t *testing.T) {
	p := promo{percent: decimal.New(1, -1)}
	assertMoney(t, 16, p.discount(dec(155)))
	assertMoney(t, 15, p.discount(dec(154)))
}
