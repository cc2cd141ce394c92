package enums

// Currency is the denomination shown on the payment step. Application fees
// are quoted in USD.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKRW Currency = "KRW"
)

var currencies = set[Currency]{CurrencyUSD, CurrencyKRW}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return currencies.has(c) }

func ParseCurrency(value string) (Currency, error) {
	return currencies.parse("currency", value)
}
