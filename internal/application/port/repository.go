package port

import (
	"context"

	"github.com/garyjia/cash-advance/internal/domain/entity"
)

// AdvanceRepository defines persistence operations for Advance.
// Get methods return (nil, nil) when the record does not exist.
type AdvanceRepository interface {
	Create(ctx context.Context, advance *entity.Advance) error
	GetByID(ctx context.Context, id int64) (*entity.Advance, error)
	// GetOpenBySeasonAndPerson returns the non-liquidated advance of a season and person
	GetOpenBySeasonAndPerson(ctx context.Context, seasonID, responsiblePersonID int64) (*entity.Advance, error)
	List(ctx context.Context, filter entity.AdvanceFilter) ([]*entity.Advance, error)
	// MarkLiquidated flips the liquidation flag; fails with a version conflict
	// when the stored version differs from advance.Version
	MarkLiquidated(ctx context.Context, advance *entity.Advance) error
}

// MovementRepository defines persistence operations for Movement
type MovementRepository interface {
	Create(ctx context.Context, movement *entity.Movement) error
	GetByID(ctx context.Context, id int64) (*entity.Movement, error)
	// ListByAdvance returns the movements of an advance ordered by date, then id
	ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.Movement, error)
	// Update writes the movement when the stored version matches movement.Version
	// and increments the version
	Update(ctx context.Context, movement *entity.Movement) error
	// MarkValidated stamps the treasury validation of one movement
	MarkValidated(ctx context.Context, movement *entity.Movement) error
	Delete(ctx context.Context, id int64) error
}

// CashMovementRepository defines persistence operations for CashMovement
type CashMovementRepository interface {
	Create(ctx context.Context, cm *entity.CashMovement) error
	GetByID(ctx context.Context, id int64) (*entity.CashMovement, error)
	ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.CashMovement, error)
	// UpdateDecision persists status, approver/rejecter and reversal back-reference
	UpdateDecision(ctx context.Context, cm *entity.CashMovement) error
}

// HistoryRepository defines persistence operations for LedgerHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.LedgerHistory) error
	ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.LedgerHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
