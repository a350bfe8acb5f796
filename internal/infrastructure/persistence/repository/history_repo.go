package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.LedgerHistory) error {
	query := `
		INSERT INTO ledger_history (
			advance_id, entity_type, entity_id, actor_id, action,
			previous_state, new_state, detail, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		nullInt64(history.AdvanceID),
		history.EntityType,
		history.EntityID,
		history.ActorID,
		history.Action,
		history.PreviousState,
		history.NewState,
		history.Detail,
		history.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// ListByAdvance retrieves the audit trail of an advance, oldest first
func (r *HistoryRepository) ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.LedgerHistory, error) {
	query := `
		SELECT id, advance_id, entity_type, entity_id, actor_id, action,
			previous_state, new_state, detail, timestamp
		FROM ledger_history
		WHERE advance_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, advanceID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.Int64("advance_id", advanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.LedgerHistory
	for rows.Next() {
		var (
			record    entity.LedgerHistory
			advanceID sql.NullInt64
		)
		err := rows.Scan(
			&record.ID,
			&advanceID,
			&record.EntityType,
			&record.EntityID,
			&record.ActorID,
			&record.Action,
			&record.PreviousState,
			&record.NewState,
			&record.Detail,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.AdvanceID = int64Ptr(advanceID)
		records = append(records, &record)
	}

	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
