package enums

// PaymentMethod is the option picked on the payment step. Only card requires
// card details; the others are simulated hand-offs.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

var paymentMethods = set[PaymentMethod]{PaymentMethodCard, PaymentMethodPayPal, PaymentMethodBankTransfer}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

// NeedsCard reports whether the method is charged against card details.
func (p PaymentMethod) NeedsCard() bool { return p == PaymentMethodCard }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parse("payment method", value)
}
