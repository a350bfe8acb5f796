package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/event"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
)

func loadAdvance(ctx context.Context, repo port.AdvanceRepository, id int64) (*entity.Advance, error) {
	advance, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get advance: %w", err)
	}
	if advance == nil {
		return nil, ledger.NotFound("advance", id)
	}
	return advance, nil
}

func loadMovement(ctx context.Context, repo port.MovementRepository, id int64) (*entity.Movement, error) {
	movement, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get movement: %w", err)
	}
	if movement == nil {
		return nil, ledger.NotFound("movement", id)
	}
	return movement, nil
}

func loadLedger(ctx context.Context, advances port.AdvanceRepository, movements port.MovementRepository, id int64) (*entity.Advance, []*entity.Movement, error) {
	advance, err := loadAdvance(ctx, advances, id)
	if err != nil {
		return nil, nil, err
	}
	list, err := movements.ListByAdvance(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list movements: %w", err)
	}
	return advance, list, nil
}

func recordHistory(ctx context.Context, repo port.HistoryRepository, h *entity.LedgerHistory) error {
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}
	if err := repo.Create(ctx, h); err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	return nil
}

// publish hands a committed event to the subscribers. Failures are logged only.
func publish(ctx context.Context, publisher port.EventPublisher, logger Logger, evt *event.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, evt); err != nil {
		logger.Error("Failed to publish event", "event_type", evt.Type, "event_id", evt.ID, "error", err)
	}
}

// logFailure logs infrastructure errors; domain rejections are expected
// outcomes and are logged at info level.
func logFailure(logger Logger, msg string, err error, keysAndValues ...interface{}) {
	kv := append([]interface{}{"error", err}, keysAndValues...)
	if e, ok := ledger.AsError(err); ok {
		logger.Info(msg, append(kv, "kind", e.Kind)...)
		return
	}
	logger.Error(msg, kv...)
}
