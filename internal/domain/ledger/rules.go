package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/money"
	"github.com/garyjia/cash-advance/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// Policy toggles the business rules that vary between deployments
type Policy struct {
	// EnforceBalance rejects changes that drive a currency bucket negative
	EnforceBalance bool
	// RequireExpenseCounterparty demands a counterparty on every expense
	RequireExpenseCounterparty bool
}

// DefaultPolicy is the rule set observed in production
func DefaultPolicy() Policy {
	return Policy{EnforceBalance: true}
}

// CheckAdvanceOpen rejects any mutation on a liquidated advance
func CheckAdvanceOpen(advance *entity.Advance) error {
	if advance.IsLocked() {
		return Errorf(KindAdvanceLocked, "", "advance %d is liquidated", advance.ID)
	}
	return nil
}

// CheckMovementMutable rejects direct changes to a locked or validated movement
func CheckMovementMutable(advance *entity.Advance, movement *entity.Movement) error {
	if err := CheckAdvanceOpen(advance); err != nil {
		return err
	}
	if movement.TreasuryValidated {
		return Errorf(KindMovementValidated, "", "movement %d is treasury-validated", movement.ID)
	}
	return nil
}

// Normalize fills defaults and applies the forced flags of assignments.
// It mutates the draft in place.
func Normalize(advance *entity.Advance, m *entity.Movement) {
	m.Currency = money.NormalizeCurrency(m.Currency)
	if m.Currency == "" {
		m.Currency = advance.DefaultCurrency
	}
	if m.ExchangeRate.IsZero() {
		m.ExchangeRate = decimal.NewFromInt(1)
	}
	if m.ResponsiblePersonID == 0 {
		m.ResponsiblePersonID = advance.ResponsiblePersonID
	}
	if m.CostCenterID == 0 {
		m.CostCenterID = advance.CostCenterID
	}
	if m.Kind.IsAssignment() {
		m.IncludedInAdvanceCalculation = true
	}
	if m.HasNoInvoice {
		m.Invoice = nil
	}
	m.Description = strings.TrimSpace(m.Description)
}

// ValidateMovement checks the record-level invariants of a movement against
// the other movements of its advance. siblings must not contain m itself.
func ValidateMovement(advance *entity.Advance, m *entity.Movement, siblings []*entity.Movement, policy Policy) error {
	if !m.Kind.IsValid() {
		return Errorf(KindInvalidField, "kind", "unknown movement kind %q", m.Kind)
	}
	if !m.Amount.IsPositive() {
		return Errorf(KindInvalidAmount, "amount", "amount must be greater than zero, got %s", m.Amount.String())
	}
	if err := money.ValidateCurrency(m.Currency); err != nil {
		return Errorf(KindInvalidCurrency, "currency", "%v", err)
	}
	if !m.ExchangeRate.IsPositive() {
		return Errorf(KindInvalidField, "exchange_rate", "exchange rate must be greater than zero")
	}
	if m.AdvanceID != advance.ID {
		return Errorf(KindImmutableField, "advance_id", "movement belongs to advance %d", m.AdvanceID)
	}

	if m.Kind.IsAssignment() {
		if m.Expense != nil && (m.Expense.SourceAssignmentID != nil || m.Expense.CategoryID != nil) {
			return Errorf(KindInvalidField, "source_assignment_id", "assignments cannot reference a source assignment or expense category")
		}
	}

	if m.Kind.IsExpense() {
		if err := validateExpenseLink(m, siblings); err != nil {
			return err
		}
		if policy.RequireExpenseCounterparty && m.CounterpartyID == nil {
			return Errorf(KindMissingCounterparty, "counterparty_id", "expense requires a counterparty")
		}
	}

	if !m.HasNoInvoice {
		if m.Invoice == nil || m.Invoice.DocumentTypeID == 0 {
			return Errorf(KindMissingDocument, "document_type_id", "document type is required when the movement has an invoice")
		}
		if strings.TrimSpace(m.Invoice.Series) == "" {
			return Errorf(KindMissingDocument, "document_series", "document series is required when the movement has an invoice")
		}
		if strings.TrimSpace(m.Invoice.Correlative) == "" {
			return Errorf(KindMissingDocument, "document_correlative", "document correlative is required when the movement has an invoice")
		}
	}

	return nil
}

func validateExpenseLink(m *entity.Movement, siblings []*entity.Movement) error {
	sourceID, linked := m.SourceAssignment()
	if !m.IncludedInAdvanceCalculation && !linked {
		return nil
	}
	if !linked {
		return Errorf(KindMissingSourceAssignment, "source_assignment_id", "expenses counted in the advance must reference the assignment that funded them")
	}

	for _, s := range siblings {
		if s.ID != sourceID {
			continue
		}
		if !s.Kind.IsAssignment() {
			return Errorf(KindInvalidField, "source_assignment_id", "movement %d is not an assignment", sourceID)
		}
		return nil
	}
	return Errorf(KindNotFound, "source_assignment_id", "assignment %d not found in advance %d", sourceID, m.AdvanceID)
}

// CheckBalance rejects a change that leaves a currency bucket negative when
// that bucket is lower than before the change. before and after are the full
// movement sets of the advance.
func CheckBalance(advance *entity.Advance, before, after []*entity.Movement, currencies ...string) error {
	prev := ComputeBalance(advance.DefaultCurrency, before)
	next := ComputeBalance(advance.DefaultCurrency, after)

	for _, currency := range currencies {
		nb := next.Get(currency)
		pb := prev.Get(currency)
		if nb.Balance.IsNegative() && nb.Balance.LessThan(pb.Balance) {
			available := pb.Balance
			if available.IsNegative() {
				available = decimal.Zero
			}
			return Errorf(KindExceedsBalance, "amount",
				"available balance is %s %s", available.StringFixed(2), nb.Currency)
		}
	}
	return nil
}

// ReplaceMovement returns a copy of the set with m substituted by id,
// or appended when it is new (id 0 or absent)
func ReplaceMovement(set []*entity.Movement, m *entity.Movement) []*entity.Movement {
	out := make([]*entity.Movement, 0, len(set)+1)
	replaced := false
	for _, s := range set {
		if m.ID != 0 && s.ID == m.ID {
			out = append(out, m)
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, m)
	}
	return out
}

// WithoutMovement returns a copy of the set minus the movement with the given id
func WithoutMovement(set []*entity.Movement, id int64) []*entity.Movement {
	out := make([]*entity.Movement, 0, len(set))
	for _, s := range set {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

// CheckDeletable rejects removing an assignment that still funds expenses
func CheckDeletable(m *entity.Movement, siblings []*entity.Movement) error {
	if !m.Kind.IsAssignment() {
		return nil
	}
	for _, s := range siblings {
		if sourceID, ok := s.SourceAssignment(); ok && sourceID == m.ID {
			return Errorf(KindAssignmentInUse, "id", "assignment %d funds expense %d", m.ID, s.ID)
		}
	}
	return nil
}

// Liquidate applies the OPEN -> LIQUIDATED transition to copies of the advance
// and its movements. Every movement is stamped as treasury-validated at now,
// including those validated earlier. The inputs are not modified.
func Liquidate(ctx context.Context, advance *entity.Advance, movements []*entity.Movement, actorID int64, now time.Time) (*entity.Advance, []*entity.Movement, error) {
	machine := workflow.NewAdvanceMachine(workflow.AdvanceState(advance.Liquidated))
	if err := machine.Fire(ctx, workflow.TriggerLiquidate); err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			return nil, nil, Errorf(KindAlreadyLiquidated, "", "advance %d is already liquidated", advance.ID)
		}
		return nil, nil, err
	}

	liquidated := advance.Clone()
	liquidated.Liquidated = machine.State() == workflow.StateLiquidated
	liquidated.LiquidationDate = &now
	actor := actorID
	liquidated.LiquidatedByID = &actor

	stamped := make([]*entity.Movement, 0, len(movements))
	for _, m := range movements {
		c := m.Clone()
		c.TreasuryValidated = true
		stampedAt := now
		c.TreasuryValidationDate = &stampedAt
		stamped = append(stamped, c)
	}

	return liquidated, stamped, nil
}
