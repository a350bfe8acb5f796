package workflow

// State represents a lifecycle state of an advance or a cash movement
type State string

const (
	// Advance lifecycle
	StateOpen       State = "OPEN"
	StateLiquidated State = "LIQUIDATED"

	// Cash movement treasury lifecycle
	StatePending  State = "PENDING"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
)

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	switch s {
	case StateLiquidated, StateRejected:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	switch s {
	case StateOpen, StateLiquidated, StatePending, StateApproved, StateRejected:
		return true
	default:
		return false
	}
}
