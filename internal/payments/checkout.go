package payments

import (
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/tomaskub292929/to-korea-sub000/pkg/errors"
)

// LineItem is one row of the order summary.
type LineItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Quantity    int             `json:"quantity"`
}

func (l LineItem) total() decimal.Decimal {
	return l.Amount.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

var requiredItems = []LineItem{
	{Name: "지원 수수료", Description: "Application Processing Fee", Amount: decimal.NewFromInt(50), Quantity: 1},
	{Name: "서류 대행", Description: "Document Translation & Processing", Amount: decimal.NewFromInt(100), Quantity: 1},
}

var premiumConsulting = LineItem{
	Name:        "프리미엄 컨설팅",
	Description: "1:1 Admission Consulting (Optional)",
	Amount:      decimal.NewFromInt(200),
	Quantity:    1,
}

// RequiredItems returns the fixed fee rows.
func RequiredItems() []LineItem {
	out := make([]LineItem, len(requiredItems))
	copy(out, requiredItems)
	return out
}

// PremiumConsulting returns the optional add-on row.
func PremiumConsulting() LineItem { return premiumConsulting }

type promo struct {
	percent decimal.Decimal
	flat    decimal.Decimal
}

func (p promo) discount(subtotal decimal.Decimal) decimal.Decimal {
	if !p.percent.IsZero() {
		// Round rounds half away from zero.
		return subtotal.Mul(p.percent).Round(0)
	}
	return p.flat
}

var promoCodes = map[string]promo{
	"WELCOME10": {percent: decimal.New(1, -1)},
	"STUDY2026": {flat: decimal.NewFromInt(20)},
}

const (
	msgInvalidPromo = "Invalid promo code"
	msgPromoApplied = "Promo code already applied"
)

// Computation is a priced order. It is never persisted.
type Computation struct {
	Items     []LineItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	PromoCode string          `json:"promoCode,omitempty"`
}

// Checkout prices the payment step. It is not safe for concurrent use.
type Checkout struct {
	premium   bool
	promoCode string
	discount  decimal.Decimal
}

func NewCheckout() *Checkout {
	return &Checkout{}
}

// SetPremium toggles the consulting add-on. An applied discount keeps its
// amount.
func (c *Checkout) SetPremium(include bool) {
	c.premium = include
}

// ApplyPromo resolves code against the promo table and fixes the discount at
// the current subtotal. Only the first successful call has any effect.
func (c *Checkout) ApplyPromo(code string) error {
	if c.promoCode != "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, msgPromoApplied)
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	p, ok := promoCodes[normalized]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, msgInvalidPromo).
			WithDetails(map[string]any{"promoCode": code})
	}
	c.promoCode = normalized
	c.discount = p.discount(c.subtotal(c.items()))
	return nil
}

// PromoApplied reports whether a promo code is locked in.
func (c *Checkout) PromoApplied() bool { return c.promoCode != "" }

func (c *Checkout) Compute() Computation {
	items := c.items()
	subtotal := c.subtotal(items)
	total := subtotal.Sub(c.discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Computation{
		Items:     items,
		Subtotal:  subtotal,
		Discount:  c.discount,
		Total:     total,
		PromoCode: c.promoCode,
	}
}

func (c *Checkout) items() []LineItem {
	items := RequiredItems()
	if c.premium {
		items = append(items, premiumConsulting)
	}
	return items
}

func (c *Checkout) subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.total())
	}
	return sum
}
