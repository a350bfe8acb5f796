package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/garyjia/cash-advance/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const advanceColumns = `id, season_id, responsible_person_id, cost_center_id, default_currency,
	description, liquidated, liquidation_date, liquidated_by_id, version, created_at, updated_at`

// AdvanceRepository implements port.AdvanceRepository
type AdvanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAdvanceRepository creates a new advance repository
func NewAdvanceRepository(db *sql.DB, logger *zap.Logger) port.AdvanceRepository {
	return &AdvanceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new advance at version 1
func (r *AdvanceRepository) Create(ctx context.Context, advance *entity.Advance) error {
	query := `
		INSERT INTO advances (
			season_id, responsible_person_id, cost_center_id, default_currency,
			description, liquidated, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, 1, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		advance.SeasonID,
		advance.ResponsiblePersonID,
		advance.CostCenterID,
		advance.DefaultCurrency,
		advance.Description,
		advance.CreatedAt.UTC(),
		advance.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create advance", zap.Int64("season_id", advance.SeasonID), zap.Error(err))
		return fmt.Errorf("failed to create advance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	advance.ID = id
	advance.Version = 1
	return nil
}

// GetByID retrieves an advance, or nil when it does not exist
func (r *AdvanceRepository) GetByID(ctx context.Context, id int64) (*entity.Advance, error) {
	query := `SELECT ` + advanceColumns + ` FROM advances WHERE id = ?`

	advance, err := scanAdvance(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get advance", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get advance: %w", err)
	}
	return advance, nil
}

// GetOpenBySeasonAndPerson returns the open advance of a season and person, if any
func (r *AdvanceRepository) GetOpenBySeasonAndPerson(ctx context.Context, seasonID, responsiblePersonID int64) (*entity.Advance, error) {
	query := `SELECT ` + advanceColumns + ` FROM advances
		WHERE season_id = ? AND responsible_person_id = ? AND liquidated = 0
		ORDER BY id LIMIT 1`

	advance, err := scanAdvance(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, seasonID, responsiblePersonID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open advance: %w", err)
	}
	return advance, nil
}

// List returns advances matching the filter, newest first
func (r *AdvanceRepository) List(ctx context.Context, filter entity.AdvanceFilter) ([]*entity.Advance, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.SeasonID != nil {
		where = append(where, "season_id = ?")
		args = append(args, *filter.SeasonID)
	}
	if filter.ResponsiblePersonID != nil {
		where = append(where, "responsible_person_id = ?")
		args = append(args, *filter.ResponsiblePersonID)
	}
	if filter.Liquidated != nil {
		where = append(where, "liquidated = ?")
		args = append(args, *filter.Liquidated)
	}

	query := `SELECT ` + advanceColumns + ` FROM advances`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list advances", zap.Error(err))
		return nil, fmt.Errorf("failed to list advances: %w", err)
	}
	defer rows.Close()

	var advances []*entity.Advance
	for rows.Next() {
		advance, err := scanAdvance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan advance: %w", err)
		}
		advances = append(advances, advance)
	}
	return advances, rows.Err()
}

// MarkLiquidated persists the liquidation flag, date and actor. The stored
// version must match advance.Version; on success the version is incremented.
func (r *AdvanceRepository) MarkLiquidated(ctx context.Context, advance *entity.Advance) error {
	query := `
		UPDATE advances
		SET liquidated = 1, liquidation_date = ?, liquidated_by_id = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND liquidated = 0
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		nullTime(advance.LiquidationDate),
		nullInt64(advance.LiquidatedByID),
		timeNow(),
		advance.ID,
		advance.Version,
	)
	if err != nil {
		r.logger.Error("Failed to liquidate advance", zap.Int64("id", advance.ID), zap.Error(err))
		return fmt.Errorf("failed to liquidate advance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ledger.Errorf(ledger.KindVersionConflict, "version",
			"advance %d changed since version %d", advance.ID, advance.Version)
	}

	advance.Version++
	return nil
}

func scanAdvance(row rowScanner) (*entity.Advance, error) {
	var (
		a              entity.Advance
		liquidationAt  sql.NullTime
		liquidatedByID sql.NullInt64
	)
	err := row.Scan(
		&a.ID,
		&a.SeasonID,
		&a.ResponsiblePersonID,
		&a.CostCenterID,
		&a.DefaultCurrency,
		&a.Description,
		&a.Liquidated,
		&liquidationAt,
		&liquidatedByID,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.LiquidationDate = timePtr(liquidationAt)
	a.LiquidatedByID = int64Ptr(liquidatedByID)
	return &a, nil
}

var _ port.AdvanceRepository = (*AdvanceRepository)(nil)
