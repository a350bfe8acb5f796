package entity

import "time"

// Advance is a cash float ("entrega a rendir") handed to a responsible person
// for one fishing season. It owns the movements drawn against it.
type Advance struct {
	ID                  int64      `json:"id"`
	SeasonID            int64      `json:"season_id"`
	ResponsiblePersonID int64      `json:"responsible_person_id"`
	CostCenterID        int64      `json:"cost_center_id"`
	DefaultCurrency     string     `json:"default_currency"`
	Description         string     `json:"description,omitempty"`
	Liquidated          bool       `json:"liquidated"`
	LiquidationDate     *time.Time `json:"liquidation_date,omitempty"`
	LiquidatedByID      *int64     `json:"liquidated_by_id,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsLocked reports whether the advance and its movements are frozen
func (a *Advance) IsLocked() bool {
	return a.Liquidated
}

// Clone returns a copy that can be mutated without touching the receiver
func (a *Advance) Clone() *Advance {
	c := *a
	if a.LiquidationDate != nil {
		t := *a.LiquidationDate
		c.LiquidationDate = &t
	}
	if a.LiquidatedByID != nil {
		id := *a.LiquidatedByID
		c.LiquidatedByID = &id
	}
	return &c
}

// AdvanceFilter narrows advance listings
type AdvanceFilter struct {
	SeasonID            *int64
	ResponsiblePersonID *int64
	Liquidated          *bool
	Limit               int
	Offset              int
}
