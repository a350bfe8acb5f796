package entity

import "time"

// Entity types recorded in the ledger history
const (
	HistoryEntityAdvance      = "ADVANCE"
	HistoryEntityMovement     = "MOVEMENT"
	HistoryEntityCashMovement = "CASH_MOVEMENT"
)

// History actions
const (
	ActionCreate    = "CREATE"
	ActionUpdate    = "UPDATE"
	ActionDelete    = "DELETE"
	ActionLiquidate = "LIQUIDATE"
	ActionValidate  = "VALIDATE"
	ActionApprove   = "APPROVE"
	ActionReject    = "REJECT"
	ActionRevert    = "REVERT"
)

// LedgerHistory is the audit trail entry of a ledger mutation
type LedgerHistory struct {
	ID            int64     `json:"id"`
	AdvanceID     *int64    `json:"advance_id,omitempty"`
	EntityType    string    `json:"entity_type"`
	EntityID      int64     `json:"entity_id"`
	ActorID       int64     `json:"actor_id"`
	Action        string    `json:"action"`
	PreviousState string    `json:"previous_state,omitempty"`
	NewState      string    `json:"new_state,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
