package quote

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"

	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

// DefaultCurrency is used when a create command names no currency.
const DefaultCurrency = stripe.CurrencyUSD

var supportedCurrencies = map[stripe.Currency]struct{}{
	stripe.CurrencyUSD: {},
	stripe.CurrencyEUR: {},
	stripe.CurrencyGBP: {},
	stripe.CurrencyCAD: {},
	stripe.CurrencyAUD: {},
	stripe.CurrencyNZD: {},
	stripe.CurrencyJPY: {},
	stripe.CurrencyCHF: {},
	stripe.CurrencySEK: {},
	stripe.CurrencyNOK: {},
	stripe.CurrencyDKK: {},
	stripe.CurrencySGD: {},
	stripe.CurrencyHKD: {},
	stripe.CurrencyTWD: {},
}

// ParseCurrency normalises an ISO 4217 code and checks it is supported.
func ParseCurrency(code string) (stripe.Currency, error) {
	if strings.TrimSpace(code) == "" {
		return DefaultCurrency, nil
	}
	currency := stripe.Currency(strings.ToLower(strings.TrimSpace(code)))
	if _, ok := supportedCurrencies[currency]; !ok {
		return "", fmt.Errorf("currency %q is not supported", code)
	}
	return currency, nil
}

type CreateCommand struct {
	CustomerID    uint64               `json:"customer_id" validate:"required"`
	Currency      string               `json:"currency"`
	MalleableData models.MalleableData `json:"malleable_data"`
}

type AddLineCommand struct {
	QuoteID     uint64          `json:"-"`
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	GroupType   string          `json:"group_type"`
}

// AddComponentCommand carries the variant payload undecoded; Data must match
// the shape of Type.
type AddComponentCommand struct {
	QuoteID uint64             `json:"-"`
	Type    enum.ComponentType `json:"type" validate:"required"`
	Data    json.RawMessage    `json:"data" validate:"required"`
}

type SetPaymentScheduleCommand struct {
	QuoteID    uint64                    `json:"-"`
	Milestones []models.PaymentMilestone `json:"milestones"`
}
