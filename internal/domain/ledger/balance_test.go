package ledger

import (
	"testing"

	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v int64) *int64 {
	return &v
}

func assignment(id int64, amount, currency string) *entity.Movement {
	return &entity.Movement{
		ID:                           id,
		AdvanceID:                    1,
		Kind:                         entity.KindAssignmentInitial,
		Amount:                       dec(amount),
		Currency:                     currency,
		ExchangeRate:                 decimal.NewFromInt(1),
		IncludedInAdvanceCalculation: true,
		HasNoInvoice:                 true,
	}
}

func expense(id, source int64, amount, currency string) *entity.Movement {
	return &entity.Movement{
		ID:                           id,
		AdvanceID:                    1,
		Kind:                         entity.KindExpense,
		Amount:                       dec(amount),
		Currency:                     currency,
		ExchangeRate:                 decimal.NewFromInt(1),
		Expense:                      &entity.ExpenseDetail{SourceAssignmentID: ptr(source)},
		IncludedInAdvanceCalculation: true,
		HasNoInvoice:                 true,
	}
}

func assertBucket(t *testing.T, b BalanceByCurrency, currency, assigned, spent, balance string) {
	t.Helper()
	cb, ok := b[currency]
	require.True(t, ok, "missing bucket %s", currency)
	assert.True(t, cb.TotalAssigned.Equal(dec(assigned)), "assigned = %s, want %s", cb.TotalAssigned, assigned)
	assert.True(t, cb.TotalSpent.Equal(dec(spent)), "spent = %s, want %s", cb.TotalSpent, spent)
	assert.True(t, cb.Balance.Equal(dec(balance)), "balance = %s, want %s", cb.Balance, balance)
}

func TestComputeBalance_SimpleRoundTrip(t *testing.T) {
	movements := []*entity.Movement{
		assignment(1, "1000", "PEN"),
		expense(2, 1, "300", "PEN"),
	}

	b := ComputeBalance("PEN", movements)

	require.Len(t, b, 1)
	assertBucket(t, b, "PEN", "1000", "300", "700")
}

func TestComputeBalance_EmptyAdvanceReturnsZeroDefaultBucket(t *testing.T) {
	b := ComputeBalance("pen", nil)

	require.Len(t, b, 1)
	assertBucket(t, b, "PEN", "0", "0", "0")
}

func TestComputeBalance_ExcludedMovementsIgnored(t *testing.T) {
	excluded := expense(3, 1, "200", "PEN")
	excluded.IncludedInAdvanceCalculation = false

	b := ComputeBalance("PEN", []*entity.Movement{
		assignment(1, "1000", "PEN"),
		expense(2, 1, "300", "PEN"),
		excluded,
	})

	assertBucket(t, b, "PEN", "1000", "300", "700")
}

func TestComputeBalance_SeparateCurrencyBuckets(t *testing.T) {
	usdAssign := assignment(3, "200", "USD")
	usdAssign.ExchangeRate = dec("3.70")
	usdExpense := expense(4, 3, "50", "USD")
	usdExpense.ExchangeRate = dec("3.70")

	b := ComputeBalance("PEN", []*entity.Movement{
		assignment(1, "1000", "PEN"),
		expense(2, 1, "300", "PEN"),
		usdAssign,
		usdExpense,
	})

	require.Len(t, b, 2)
	assertBucket(t, b, "PEN", "1000", "300", "700")
	assertBucket(t, b, "USD", "200", "50", "150")
	assert.Equal(t, []string{"PEN", "USD"}, b.Currencies())
}

func TestComputeBalance_IsPure(t *testing.T) {
	movements := []*entity.Movement{
		assignment(1, "1000", "PEN"),
		expense(2, 1, "300", "PEN"),
		assignment(3, "50.25", "USD"),
	}
	snapshot := make([]entity.Movement, len(movements))
	for i, m := range movements {
		snapshot[i] = *m
	}

	first := ComputeBalance("PEN", movements)
	second := ComputeBalance("PEN", movements)

	assert.True(t, first.Equal(second))
	for i, m := range movements {
		assert.True(t, snapshot[i].Amount.Equal(m.Amount))
		assert.Equal(t, snapshot[i].IncludedInAdvanceCalculation, m.IncludedInAdvanceCalculation)
	}
}

func TestComputeCrewBalance(t *testing.T) {
	crew := expense(2, 1, "120", "PEN")
	crew.IncludedInCrewLiquidationCalculation = true
	assign := assignment(1, "1000", "PEN")
	assign.IncludedInCrewLiquidationCalculation = true

	b := ComputeCrewBalance("PEN", []*entity.Movement{assign, crew, expense(3, 1, "50", "PEN")})

	assertBucket(t, b, "PEN", "1000", "120", "880")
}

func TestConsolidate(t *testing.T) {
	usdAssign := assignment(3, "100", "USD")
	usdAssign.ExchangeRate = dec("3.5")

	total, err := Consolidate("PEN", []*entity.Movement{
		assignment(1, "1000", "PEN"),
		expense(2, 1, "300", "PEN"),
		usdAssign,
	})

	require.NoError(t, err)
	assert.Equal(t, "PEN", total.Currency)
	assert.True(t, total.Value.Equal(dec("1050")), "got %s", total.Value)
}

func TestConsolidate_MissingRate(t *testing.T) {
	usdAssign := assignment(3, "100", "USD")
	usdAssign.ExchangeRate = decimal.Zero

	_, err := Consolidate("PEN", []*entity.Movement{usdAssign})

	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestPerAssignment(t *testing.T) {
	drawdown := PerAssignment([]*entity.Movement{
		assignment(1, "1000", "PEN"),
		expense(2, 1, "300", "PEN"),
		assignment(3, "500", "PEN"),
		expense(4, 1, "100", "PEN"),
		expense(5, 3, "50", "PEN"),
	})

	require.Len(t, drawdown, 2)
	assert.Equal(t, int64(1), drawdown[0].AssignmentID)
	assert.True(t, drawdown[0].Spent.Equal(dec("400")))
	assert.True(t, drawdown[0].Remaining.Equal(dec("600")))
	assert.Equal(t, int64(3), drawdown[1].AssignmentID)
	assert.True(t, drawdown[1].Remaining.Equal(dec("450")))
}
