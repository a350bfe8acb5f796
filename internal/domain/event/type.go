package event

// Type identifies the type of domain event
type Type string

const (
	TypeAdvanceCreated       Type = "advance.created"
	TypeAdvanceLiquidated    Type = "advance.liquidated"
	TypeMovementCreated      Type = "movement.created"
	TypeMovementUpdated      Type = "movement.updated"
	TypeMovementDeleted      Type = "movement.deleted"
	TypeCashMovementApproved Type = "cash_movement.approved"
	TypeCashMovementRejected Type = "cash_movement.rejected"
	TypeCashMovementReversed Type = "cash_movement.reversed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeAdvanceCreated,
		TypeAdvanceLiquidated,
		TypeMovementCreated,
		TypeMovementUpdated,
		TypeMovementDeleted,
		TypeCashMovementApproved,
		TypeCashMovementRejected,
		TypeCashMovementReversed:
		return true
	default:
		return false
	}
}
