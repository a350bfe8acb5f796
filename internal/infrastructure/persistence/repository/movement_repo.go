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

const movementColumns = `id, advance_id, responsible_person_id, movement_date, kind, cost_center_id,
	amount, currency, exchange_rate, description, counterparty_id,
	expense_category_id, source_assignment_id,
	included_in_advance_calculation, included_in_crew_liquidation_calculation,
	treasury_validated, treasury_validation_date,
	has_no_invoice, document_type_id, document_series, document_correlative,
	receipt_url, operation_receipt_url, version, created_at, updated_at`

// MovementRepository implements port.MovementRepository
type MovementRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *sql.DB, logger *zap.Logger) port.MovementRepository {
	return &MovementRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a movement at version 1
func (r *MovementRepository) Create(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO advance_movements (
			advance_id, responsible_person_id, movement_date, kind, cost_center_id,
			amount, currency, exchange_rate, description, counterparty_id,
			expense_category_id, source_assignment_id,
			included_in_advance_calculation, included_in_crew_liquidation_calculation,
			treasury_validated, treasury_validation_date,
			has_no_invoice, document_type_id, document_series, document_correlative,
			receipt_url, operation_receipt_url, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	args := append([]interface{}{m.AdvanceID}, movementValues(m)...)
	args = append(args, m.CreatedAt.UTC(), m.UpdatedAt.UTC())

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to create movement",
			zap.Int64("advance_id", m.AdvanceID),
			zap.String("kind", m.Kind.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	m.ID = id
	m.Version = 1
	return nil
}

// GetByID retrieves a movement, or nil when it does not exist
func (r *MovementRepository) GetByID(ctx context.Context, id int64) (*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM advance_movements WHERE id = ?`

	m, err := scanMovement(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get movement", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	return m, nil
}

// ListByAdvance returns the movements of an advance by date, then id
func (r *MovementRepository) ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM advance_movements
		WHERE advance_id = ?
		ORDER BY movement_date ASC, id ASC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, advanceID)
	if err != nil {
		r.logger.Error("Failed to list movements", zap.Int64("advance_id", advanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var movements []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// Update rewrites the editable columns when the stored version matches
func (r *MovementRepository) Update(ctx context.Context, m *entity.Movement) error {
	query := `
		UPDATE advance_movements SET
			responsible_person_id = ?, movement_date = ?, kind = ?, cost_center_id = ?,
			amount = ?, currency = ?, exchange_rate = ?, description = ?, counterparty_id = ?,
			expense_category_id = ?, source_assignment_id = ?,
			included_in_advance_calculation = ?, included_in_crew_liquidation_calculation = ?,
			treasury_validated = ?, treasury_validation_date = ?,
			has_no_invoice = ?, document_type_id = ?, document_series = ?, document_correlative = ?,
			receipt_url = ?, operation_receipt_url = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	args := append(movementValues(m), m.UpdatedAt.UTC(), m.ID, m.Version)
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update movement", zap.Int64("id", m.ID), zap.Error(err))
		return fmt.Errorf("failed to update movement: %w", err)
	}

	if err := expectOneRow(result, ledger.Errorf(ledger.KindVersionConflict, "version",
		"movement %d changed since version %d", m.ID, m.Version)); err != nil {
		return err
	}
	m.Version++
	return nil
}

// MarkValidated stamps the treasury validation flag and date
func (r *MovementRepository) MarkValidated(ctx context.Context, m *entity.Movement) error {
	query := `
		UPDATE advance_movements
		SET treasury_validated = ?, treasury_validation_date = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		m.TreasuryValidated,
		nullTime(m.TreasuryValidationDate),
		timeNow(),
		m.ID,
	)
	if err != nil {
		r.logger.Error("Failed to validate movement", zap.Int64("id", m.ID), zap.Error(err))
		return fmt.Errorf("failed to validate movement: %w", err)
	}

	if err := expectOneRow(result, ledger.NotFound("movement", m.ID)); err != nil {
		return err
	}
	m.Version++
	return nil
}

// Delete removes a movement
func (r *MovementRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM advance_movements WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete movement", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete movement: %w", err)
	}
	return expectOneRow(result, ledger.NotFound("movement", id))
}

// movementValues lists the column values shared by insert and update,
// starting at responsible_person_id
func movementValues(m *entity.Movement) []interface{} {
	var categoryID, sourceID *int64
	if m.Expense != nil {
		categoryID = m.Expense.CategoryID
		sourceID = m.Expense.SourceAssignmentID
	}

	var (
		docType     sql.NullInt64
		series      sql.NullString
		correlative sql.NullString
	)
	if m.Invoice != nil {
		docType = sql.NullInt64{Int64: m.Invoice.DocumentTypeID, Valid: m.Invoice.DocumentTypeID != 0}
		series = nullString(m.Invoice.Series)
		correlative = nullString(m.Invoice.Correlative)
	}

	return []interface{}{
		m.ResponsiblePersonID,
		m.MovementDate.UTC(),
		m.Kind.String(),
		m.CostCenterID,
		m.Amount,
		m.Currency,
		m.ExchangeRate,
		m.Description,
		nullInt64(m.CounterpartyID),
		nullInt64(categoryID),
		nullInt64(sourceID),
		m.IncludedInAdvanceCalculation,
		m.IncludedInCrewLiquidationCalculation,
		m.TreasuryValidated,
		nullTime(m.TreasuryValidationDate),
		m.HasNoInvoice,
		docType,
		series,
		correlative,
		m.ReceiptURL,
		m.OperationReceiptURL,
	}
}

func scanMovement(row rowScanner) (*entity.Movement, error) {
	var (
		m              entity.Movement
		kind           string
		counterpartyID sql.NullInt64
		categoryID     sql.NullInt64
		sourceID       sql.NullInt64
		validatedAt    sql.NullTime
		docType        sql.NullInt64
		series         sql.NullString
		correlative    sql.NullString
	)
	err := row.Scan(
		&m.ID,
		&m.AdvanceID,
		&m.ResponsiblePersonID,
		&m.MovementDate,
		&kind,
		&m.CostCenterID,
		&m.Amount,
		&m.Currency,
		&m.ExchangeRate,
		&m.Description,
		&counterpartyID,
		&categoryID,
		&sourceID,
		&m.IncludedInAdvanceCalculation,
		&m.IncludedInCrewLiquidationCalculation,
		&m.TreasuryValidated,
		&validatedAt,
		&m.HasNoInvoice,
		&docType,
		&series,
		&correlative,
		&m.ReceiptURL,
		&m.OperationReceiptURL,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Kind = entity.MovementKind(kind)
	m.MovementDate = m.MovementDate.UTC()
	m.CounterpartyID = int64Ptr(counterpartyID)
	m.TreasuryValidationDate = timePtr(validatedAt)
	if m.Kind.IsExpense() && (categoryID.Valid || sourceID.Valid) {
		m.Expense = &entity.ExpenseDetail{
			CategoryID:         int64Ptr(categoryID),
			SourceAssignmentID: int64Ptr(sourceID),
		}
	}
	if docType.Valid || series.Valid || correlative.Valid {
		m.Invoice = &entity.InvoiceDocument{
			DocumentTypeID: docType.Int64,
			Series:         series.String,
			Correlative:    correlative.String,
		}
	}
	return &m, nil
}

func expectOneRow(result sql.Result, notMatched error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notMatched
	}
	return nil
}

var _ port.MovementRepository = (*MovementRepository)(nil)
