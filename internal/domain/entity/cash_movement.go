package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashMovementStatus is the treasury validation state of a cash movement
type CashMovementStatus string

const (
	CashStatusPending  CashMovementStatus = "PENDING"
	CashStatusApproved CashMovementStatus = "APPROVED"
	CashStatusRejected CashMovementStatus = "REJECTED"
)

// ReversalLink marks a record as the compensating entry of an approved one
type ReversalLink struct {
	OriginalID int64  `json:"original_id"`
	Reason     string `json:"reason"`
}

// CashMovement is a treasury-tracked cash record ("movimiento de caja").
// It may mirror a ledger movement of an advance; approving it validates
// that movement for reconciliation.
type CashMovement struct {
	ID          int64              `json:"id"`
	AdvanceID   *int64             `json:"advance_id,omitempty"`
	MovementID  *int64             `json:"movement_id,omitempty"`
	Amount      decimal.Decimal    `json:"amount"`
	Currency    string             `json:"currency"`
	Description string             `json:"description"`
	Status      CashMovementStatus `json:"status"`
	CreatedByID int64              `json:"created_by_id"`

	ApprovedByID    *int64     `json:"approved_by_id,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedByID    *int64     `json:"rejected_by_id,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	// Reversal is set only on compensating records
	Reversal *ReversalLink `json:"reversal,omitempty"`
	// ReversedByID is set on an approved original once it has been reverted
	ReversedByID *int64 `json:"reversed_by_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsReversal reports whether the record is a compensating entry
func (c *CashMovement) IsReversal() bool {
	return c.Reversal != nil
}

// IsReverted reports whether a compensating entry already exists
func (c *CashMovement) IsReverted() bool {
	return c.ReversedByID != nil
}
