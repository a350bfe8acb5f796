package workflow

// advanceLifecycle: OPEN -> LIQUIDATED, one way.
func advanceLifecycle() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StateOpen).
		Permit(TriggerLiquidate, StateLiquidated)
	b.Configure(StateLiquidated)
	return b
}

// NewAdvanceMachine returns the liquidation state machine positioned at the given state
func NewAdvanceMachine(current State) StateMachine {
	return advanceLifecycle().Build(current)
}

// AdvanceState maps the liquidated flag to a lifecycle state
func AdvanceState(liquidated bool) State {
	if liquidated {
		return StateLiquidated
	}
	return StateOpen
}

// NewCashMovementMachine returns the treasury validation machine for one record.
// canRevert guards the APPROVED self-transition that produces a compensating record.
func NewCashMovementMachine(current State, canRevert GuardFunc) StateMachine {
	b := NewBuilder()
	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)
	b.Configure(StateApproved).
		PermitReentryIf(TriggerRevert, canRevert)
	b.Configure(StateRejected)
	return b.Build(current)
}
