package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/garyjia/cash-advance/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const cashMovementColumns = `id, advance_id, movement_id, amount, currency, description, status, created_by_id,
	approved_by_id, approved_at, rejected_by_id, rejected_at, rejection_reason,
	reversal_of_id, reversal_reason, reversed_by_id, created_at, updated_at`

// CashMovementRepository implements port.CashMovementRepository
type CashMovementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCashMovementRepository creates a new cash movement repository
func NewCashMovementRepository(db *sql.DB, logger *zap.Logger) port.CashMovementRepository {
	return &CashMovementRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a cash movement, including the reversal link of compensating records
func (r *CashMovementRepository) Create(ctx context.Context, cm *entity.CashMovement) error {
	query := `
		INSERT INTO cash_movements (
			advance_id, movement_id, amount, currency, description, status, created_by_id,
			approved_by_id, approved_at, rejected_by_id, rejected_at, rejection_reason,
			reversal_of_id, reversal_reason, reversed_by_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var (
		reversalOf     sql.NullInt64
		reversalReason string
	)
	if cm.Reversal != nil {
		reversalOf = sql.NullInt64{Int64: cm.Reversal.OriginalID, Valid: true}
		reversalReason = cm.Reversal.Reason
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		nullInt64(cm.AdvanceID),
		nullInt64(cm.MovementID),
		cm.Amount,
		cm.Currency,
		cm.Description,
		string(cm.Status),
		cm.CreatedByID,
		nullInt64(cm.ApprovedByID),
		nullTime(cm.ApprovedAt),
		nullInt64(cm.RejectedByID),
		nullTime(cm.RejectedAt),
		cm.RejectionReason,
		reversalOf,
		reversalReason,
		nullInt64(cm.ReversedByID),
		cm.CreatedAt.UTC(),
		cm.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create cash movement", zap.Error(err))
		return fmt.Errorf("failed to create cash movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	cm.ID = id
	return nil
}

// GetByID retrieves a cash movement, or nil when it does not exist
func (r *CashMovementRepository) GetByID(ctx context.Context, id int64) (*entity.CashMovement, error) {
	query := `SELECT ` + cashMovementColumns + ` FROM cash_movements WHERE id = ?`

	cm, err := scanCashMovement(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get cash movement", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get cash movement: %w", err)
	}
	return cm, nil
}

// ListByAdvance returns the cash movements linked to an advance in creation order
func (r *CashMovementRepository) ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.CashMovement, error) {
	query := `SELECT ` + cashMovementColumns + ` FROM cash_movements WHERE advance_id = ? ORDER BY id ASC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, advanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash movements: %w", err)
	}
	defer rows.Close()

	var list []*entity.CashMovement
	for rows.Next() {
		cm, err := scanCashMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash movement: %w", err)
		}
		list = append(list, cm)
	}
	return list, rows.Err()
}

// UpdateDecision persists the workflow columns. Amount, currency and links
// are never rewritten.
func (r *CashMovementRepository) UpdateDecision(ctx context.Context, cm *entity.CashMovement) error {
	query := `
		UPDATE cash_movements SET
			status = ?, approved_by_id = ?, approved_at = ?,
			rejected_by_id = ?, rejected_at = ?, rejection_reason = ?,
			reversed_by_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		string(cm.Status),
		nullInt64(cm.ApprovedByID),
		nullTime(cm.ApprovedAt),
		nullInt64(cm.RejectedByID),
		nullTime(cm.RejectedAt),
		cm.RejectionReason,
		nullInt64(cm.ReversedByID),
		cm.UpdatedAt.UTC(),
		cm.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update cash movement", zap.Int64("id", cm.ID), zap.Error(err))
		return fmt.Errorf("failed to update cash movement: %w", err)
	}
	return expectOneRow(result, ledger.NotFound("cash_movement", cm.ID))
}

func scanCashMovement(row rowScanner) (*entity.CashMovement, error) {
	var (
		cm             entity.CashMovement
		status         string
		advanceID      sql.NullInt64
		movementID     sql.NullInt64
		approvedByID   sql.NullInt64
		approvedAt     sql.NullTime
		rejectedByID   sql.NullInt64
		rejectedAt     sql.NullTime
		reversalOf     sql.NullInt64
		reversalReason string
		reversedByID   sql.NullInt64
	)
	err := row.Scan(
		&cm.ID,
		&advanceID,
		&movementID,
		&cm.Amount,
		&cm.Currency,
		&cm.Description,
		&status,
		&cm.CreatedByID,
		&approvedByID,
		&approvedAt,
		&rejectedByID,
		&rejectedAt,
		&cm.RejectionReason,
		&reversalOf,
		&reversalReason,
		&reversedByID,
		&cm.CreatedAt,
		&cm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cm.Status = entity.CashMovementStatus(status)
	cm.AdvanceID = int64Ptr(advanceID)
	cm.MovementID = int64Ptr(movementID)
	cm.ApprovedByID = int64Ptr(approvedByID)
	cm.ApprovedAt = timePtr(approvedAt)
	cm.RejectedByID = int64Ptr(rejectedByID)
	cm.RejectedAt = timePtr(rejectedAt)
	cm.ReversedByID = int64Ptr(reversedByID)
	if reversalOf.Valid {
		cm.Reversal = &entity.ReversalLink{OriginalID: reversalOf.Int64, Reason: reversalReason}
	}
	return &cm, nil
}

var _ port.CashMovementRepository = (*CashMovementRepository)(nil)
