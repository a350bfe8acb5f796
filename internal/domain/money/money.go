// Package money provides currency-tagged decimal amounts used by the ledger.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned when combining amounts of different currencies
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrInvalidCurrency is returned for malformed currency codes
var ErrInvalidCurrency = errors.New("invalid currency code")

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Amount is a signed decimal value tagged with a currency code
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// New creates an amount, normalizing the currency code
func New(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value, Currency: NormalizeCurrency(currency)}
}

// Zero returns a zero amount in the given currency
func Zero(currency string) Amount {
	return New(decimal.Zero, currency)
}

// NormalizeCurrency trims and upper-cases a currency code
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency checks that a code looks like an ISO-4217 code
func ValidateCurrency(code string) error {
	if !currencyPattern.MatchString(NormalizeCurrency(code)) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return nil
}

// Add returns a + b. Both amounts must share a currency.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, a.Currency, b.Currency)
	}
	return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency}, nil
}

// Sub returns a - b. Both amounts must share a currency.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, a.Currency, b.Currency)
	}
	return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency}, nil
}

// Neg returns the amount with its sign flipped
func (a Amount) Neg() Amount {
	return Amount{Value: a.Value.Neg(), Currency: a.Currency}
}

// Convert multiplies by rate and re-tags the result with the target currency.
// Callers decide which rate applies; nothing in the ledger converts implicitly.
func (a Amount) Convert(rate decimal.Decimal, target string) Amount {
	return New(a.Value.Mul(rate), target)
}

// IsPositive reports whether the value is strictly greater than zero
func (a Amount) IsPositive() bool {
	return a.Value.IsPositive()
}

// IsNegative reports whether the value is strictly below zero
func (a Amount) IsNegative() bool {
	return a.Value.IsNegative()
}

// IsZero reports whether the value is zero
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// Equal compares value and currency
func (a Amount) Equal(b Amount) bool {
	return a.Currency == b.Currency && a.Value.Equal(b.Value)
}

// String formats the amount with two decimals, e.g. "700.00 PEN"
func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Value.StringFixed(2), a.Currency)
}
