package entity

import (
	"time"

	"github.com/garyjia/cash-advance/internal/domain/money"
	"github.com/shopspring/decimal"
)

// MovementKind classifies a ledger movement
type MovementKind string

const (
	KindAssignmentInitial    MovementKind = "ASSIGNMENT_INITIAL"    // first money handed over
	KindAssignmentAdditional MovementKind = "ASSIGNMENT_ADDITIONAL" // top-up during the season
	KindExpense              MovementKind = "EXPENSE"
)

// IsAssignment reports whether the kind increases the available balance
func (k MovementKind) IsAssignment() bool {
	return k == KindAssignmentInitial || k == KindAssignmentAdditional
}

// IsExpense reports whether the kind decreases the available balance
func (k MovementKind) IsExpense() bool {
	return k == KindExpense
}

// IsValid returns true for known kinds
func (k MovementKind) IsValid() bool {
	return k.IsAssignment() || k.IsExpense()
}

// String returns the string representation of the kind
func (k MovementKind) String() string {
	return string(k)
}

// ExpenseDetail carries the fields that only exist on expense movements.
// It is nil on assignments.
type ExpenseDetail struct {
	CategoryID         *int64 `json:"expense_category_id,omitempty"`
	SourceAssignmentID *int64 `json:"source_assignment_id,omitempty"`
}

// InvoiceDocument identifies the tax document backing a movement
type InvoiceDocument struct {
	DocumentTypeID int64  `json:"document_type_id"`
	Series         string `json:"series"`
	Correlative    string `json:"correlative"`
}

// Movement is a single ledger entry against an advance
type Movement struct {
	ID                  int64           `json:"id"`
	AdvanceID           int64           `json:"advance_id"`
	ResponsiblePersonID int64           `json:"responsible_person_id"`
	MovementDate        time.Time       `json:"movement_date"`
	Kind                MovementKind    `json:"kind"`
	CostCenterID        int64           `json:"cost_center_id"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	ExchangeRate        decimal.Decimal `json:"exchange_rate"`
	Description         string          `json:"description"`
	CounterpartyID      *int64          `json:"counterparty_id,omitempty"`
	Expense             *ExpenseDetail  `json:"expense,omitempty"`

	IncludedInAdvanceCalculation         bool `json:"included_in_advance_calculation"`
	IncludedInCrewLiquidationCalculation bool `json:"included_in_crew_liquidation_calculation"`

	TreasuryValidated      bool       `json:"treasury_validated"`
	TreasuryValidationDate *time.Time `json:"treasury_validation_date,omitempty"`

	HasNoInvoice bool             `json:"has_no_invoice"`
	Invoice      *InvoiceDocument `json:"invoice,omitempty"`

	ReceiptURL          string `json:"receipt_url,omitempty"`
	OperationReceiptURL string `json:"operation_receipt_url,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Money returns the movement amount tagged with its currency
func (m *Movement) Money() money.Amount {
	return money.New(m.Amount, m.Currency)
}

// SourceAssignment returns the funding assignment id of an expense, if any
func (m *Movement) SourceAssignment() (int64, bool) {
	if m.Expense == nil || m.Expense.SourceAssignmentID == nil {
		return 0, false
	}
	return *m.Expense.SourceAssignmentID, true
}

// Clone returns a deep copy of the movement
func (m *Movement) Clone() *Movement {
	c := *m
	c.CounterpartyID = cloneID(m.CounterpartyID)
	if m.Expense != nil {
		c.Expense = &ExpenseDetail{
			CategoryID:         cloneID(m.Expense.CategoryID),
			SourceAssignmentID: cloneID(m.Expense.SourceAssignmentID),
		}
	}
	if m.Invoice != nil {
		inv := *m.Invoice
		c.Invoice = &inv
	}
	if m.TreasuryValidationDate != nil {
		t := *m.TreasuryValidationDate
		c.TreasuryValidationDate = &t
	}
	return &c
}

// MovementPatch holds the fields an update may change. Nil means unchanged.
type MovementPatch struct {
	// AdvanceID is accepted only so that reparenting can be rejected
	AdvanceID                            *int64
	MovementDate                         *time.Time
	Kind                                 *MovementKind
	CostCenterID                         *int64
	Amount                               *decimal.Decimal
	Currency                             *string
	ExchangeRate                         *decimal.Decimal
	Description                          *string
	CounterpartyID                       *int64
	ClearCounterparty                    bool
	Expense                              *ExpenseDetail
	IncludedInAdvanceCalculation         *bool
	IncludedInCrewLiquidationCalculation *bool
	HasNoInvoice                         *bool
	Invoice                              *InvoiceDocument
	ReceiptURL                           *string
	OperationReceiptURL                  *string
}

// Apply merges the patch into a copy of the movement
func (p *MovementPatch) Apply(m *Movement) *Movement {
	merged := m.Clone()
	if p.AdvanceID != nil {
		merged.AdvanceID = *p.AdvanceID
	}
	if p.MovementDate != nil {
		merged.MovementDate = *p.MovementDate
	}
	if p.Kind != nil {
		merged.Kind = *p.Kind
	}
	if p.CostCenterID != nil {
		merged.CostCenterID = *p.CostCenterID
	}
	if p.Amount != nil {
		merged.Amount = *p.Amount
	}
	if p.Currency != nil {
		merged.Currency = *p.Currency
	}
	if p.ExchangeRate != nil {
		merged.ExchangeRate = *p.ExchangeRate
	}
	if p.Description != nil {
		merged.Description = *p.Description
	}
	if p.ClearCounterparty {
		merged.CounterpartyID = nil
	} else if p.CounterpartyID != nil {
		merged.CounterpartyID = cloneID(p.CounterpartyID)
	}
	if p.Expense != nil {
		merged.Expense = &ExpenseDetail{
			CategoryID:         cloneID(p.Expense.CategoryID),
			SourceAssignmentID: cloneID(p.Expense.SourceAssignmentID),
		}
	}
	if p.IncludedInAdvanceCalculation != nil {
		merged.IncludedInAdvanceCalculation = *p.IncludedInAdvanceCalculation
	}
	if p.IncludedInCrewLiquidationCalculation != nil {
		merged.IncludedInCrewLiquidationCalculation = *p.IncludedInCrewLiquidationCalculation
	}
	if p.HasNoInvoice != nil {
		merged.HasNoInvoice = *p.HasNoInvoice
	}
	if p.Invoice != nil {
		inv := *p.Invoice
		merged.Invoice = &inv
	}
	if p.ReceiptURL != nil {
		merged.ReceiptURL = *p.ReceiptURL
	}
	if p.OperationReceiptURL != nil {
		merged.OperationReceiptURL = *p.OperationReceiptURL
	}
	return merged
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
