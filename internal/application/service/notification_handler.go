package service

import (
	"context"
	"fmt"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/event"
)

// NotificationHandler turns committed ledger events into treasury notices.
// Its methods match the dispatcher handler signature.
type NotificationHandler struct {
	advances AdvanceService
	treasury TreasuryService
	notifier port.TreasuryNotifier
	logger   Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(advances AdvanceService, treasury TreasuryService, notifier port.TreasuryNotifier, logger Logger) *NotificationHandler {
	return &NotificationHandler{advances: advances, treasury: treasury, notifier: notifier, logger: logger}
}

// HandleAdvanceLiquidated reloads the advance and sends its final balances
func (h *NotificationHandler) HandleAdvanceLiquidated(ctx context.Context, evt *event.Event) error {
	agg, err := h.advances.GetAdvance(ctx, evt.AdvanceID)
	if err != nil {
		return fmt.Errorf("load liquidated advance: %w", err)
	}
	if err := h.notifier.NotifyLiquidation(ctx, agg.Advance, agg.Balance); err != nil {
		h.logger.Error("Failed to notify liquidation", "advance_id", evt.AdvanceID, "error", err)
		return err
	}
	h.logger.Info("Liquidation notice sent", "advance_id", evt.AdvanceID)
	return nil
}

// HandleCashMovementReversed sends the original and its compensating entry
func (h *NotificationHandler) HandleCashMovementReversed(ctx context.Context, evt *event.Event) error {
	reversal, err := h.treasury.Get(ctx, evt.EntityID)
	if err != nil {
		return fmt.Errorf("load reversal: %w", err)
	}
	if reversal.Reversal == nil {
		return fmt.Errorf("cash movement %d is not a reversal", reversal.ID)
	}
	original, err := h.treasury.Get(ctx, reversal.Reversal.OriginalID)
	if err != nil {
		return fmt.Errorf("load reverted cash movement: %w", err)
	}
	if err := h.notifier.NotifyReversal(ctx, original, reversal); err != nil {
		h.logger.Error("Failed to notify reversal", "cash_movement_id", original.ID, "error", err)
		return err
	}
	h.logger.Info("Reversal notice sent", "cash_movement_id", original.ID, "reversal_id", reversal.ID)
	return nil
}

// EventLogHandler returns a handler that writes every committed event to the log
func EventLogHandler(logger Logger) func(ctx context.Context, evt *event.Event) error {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Ledger event",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"advance_id", evt.AdvanceID,
			"entity_id", evt.EntityID,
			"actor_id", evt.ActorID)
		return nil
	}
}
