package ledger

import (
	"fmt"
	"sort"

	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/money"
	"github.com/shopspring/decimal"
)

// CurrencyBalance holds the reconciliation totals of one currency bucket
type CurrencyBalance struct {
	Currency      string          `json:"currency"`
	TotalAssigned decimal.Decimal `json:"total_assigned"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	Balance       decimal.Decimal `json:"balance"`
}

// BalanceByCurrency maps a currency code to its totals
type BalanceByCurrency map[string]CurrencyBalance

// Get returns the bucket for a currency, or a zero bucket if absent
func (b BalanceByCurrency) Get(currency string) CurrencyBalance {
	currency = money.NormalizeCurrency(currency)
	if cb, ok := b[currency]; ok {
		return cb
	}
	return zeroBucket(currency)
}

// Currencies returns the bucket keys in sorted order
func (b BalanceByCurrency) Currencies() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal compares two balances bucket by bucket
func (b BalanceByCurrency) Equal(other BalanceByCurrency) bool {
	if len(b) != len(other) {
		return false
	}
	for currency, cb := range b {
		ob, ok := other[currency]
		if !ok {
			return false
		}
		if !cb.TotalAssigned.Equal(ob.TotalAssigned) ||
			!cb.TotalSpent.Equal(ob.TotalSpent) ||
			!cb.Balance.Equal(ob.Balance) {
			return false
		}
	}
	return true
}

// ComputeBalance folds the movements of one advance into per-currency totals.
// Only movements included in the advance calculation count. Buckets are never
// converted into each other. An advance without counted movements yields a
// zero bucket in its default currency.
func ComputeBalance(defaultCurrency string, movements []*entity.Movement) BalanceByCurrency {
	return fold(defaultCurrency, movements, func(m *entity.Movement) bool {
		return m.IncludedInAdvanceCalculation
	})
}

// ComputeCrewBalance folds the movements flagged for the crew liquidation
func ComputeCrewBalance(defaultCurrency string, movements []*entity.Movement) BalanceByCurrency {
	return fold(defaultCurrency, movements, func(m *entity.Movement) bool {
		return m.IncludedInCrewLiquidationCalculation
	})
}

func fold(defaultCurrency string, movements []*entity.Movement, include func(*entity.Movement) bool) BalanceByCurrency {
	result := make(BalanceByCurrency)

	for _, m := range movements {
		if m == nil || !include(m) {
			continue
		}
		currency := money.NormalizeCurrency(m.Currency)
		cb, ok := result[currency]
		if !ok {
			cb = zeroBucket(currency)
		}
		switch {
		case m.Kind.IsAssignment():
			cb.TotalAssigned = cb.TotalAssigned.Add(m.Amount)
		case m.Kind.IsExpense():
			cb.TotalSpent = cb.TotalSpent.Add(m.Amount)
		}
		cb.Balance = cb.TotalAssigned.Sub(cb.TotalSpent)
		result[currency] = cb
	}

	if len(result) == 0 {
		currency := money.NormalizeCurrency(defaultCurrency)
		result[currency] = zeroBucket(currency)
	}

	return result
}

func zeroBucket(currency string) CurrencyBalance {
	return CurrencyBalance{
		Currency:      currency,
		TotalAssigned: decimal.Zero,
		TotalSpent:    decimal.Zero,
		Balance:       decimal.Zero,
	}
}

// Consolidate converts every counted movement into the target currency using
// the movement's own exchange rate and returns the single resulting balance.
// Movements already in the target currency are taken at face value. This is
// an explicit reporting helper; ComputeBalance never converts.
func Consolidate(target string, movements []*entity.Movement) (money.Amount, error) {
	target = money.NormalizeCurrency(target)
	total := money.Zero(target)

	for _, m := range movements {
		if m == nil || !m.IncludedInAdvanceCalculation {
			continue
		}
		amount := m.Money()
		if amount.Currency != target {
			if !m.ExchangeRate.IsPositive() {
				return money.Amount{}, Errorf(KindInvalidField, "exchange_rate",
					"movement %d in %s has no usable exchange rate", m.ID, amount.Currency)
			}
			amount = amount.Convert(m.ExchangeRate, target)
		}
		if m.Kind.IsExpense() {
			amount = amount.Neg()
		}
		var err error
		if total, err = total.Add(amount); err != nil {
			return money.Amount{}, fmt.Errorf("consolidate movement %d: %w", m.ID, err)
		}
	}

	return total, nil
}

// AssignmentDrawdown reports how much of one assignment has been spent
type AssignmentDrawdown struct {
	AssignmentID int64           `json:"assignment_id"`
	Currency     string          `json:"currency"`
	Assigned     decimal.Decimal `json:"assigned"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
}

// PerAssignment groups counted expenses under the assignment that funded them.
// Results follow the order of the assignments in the input.
func PerAssignment(movements []*entity.Movement) []AssignmentDrawdown {
	index := make(map[int64]int)
	var result []AssignmentDrawdown

	for _, m := range movements {
		if m == nil || !m.Kind.IsAssignment() || !m.IncludedInAdvanceCalculation {
			continue
		}
		index[m.ID] = len(result)
		result = append(result, AssignmentDrawdown{
			AssignmentID: m.ID,
			Currency:     money.NormalizeCurrency(m.Currency),
			Assigned:     m.Amount,
			Spent:        decimal.Zero,
			Remaining:    m.Amount,
		})
	}

	for _, m := range movements {
		if m == nil || !m.Kind.IsExpense() || !m.IncludedInAdvanceCalculation {
			continue
		}
		sourceID, ok := m.SourceAssignment()
		if !ok {
			continue
		}
		i, ok := index[sourceID]
		if !ok {
			continue
		}
		d := result[i]
		d.Spent = d.Spent.Add(m.Amount)
		d.Remaining = d.Assigned.Sub(d.Spent)
		result[i] = d
	}

	return result
}
