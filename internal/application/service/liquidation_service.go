package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/event"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/garyjia/cash-advance/internal/domain/workflow"
)

// LiquidationResult is the frozen advance after liquidation
type LiquidationResult struct {
	Advance   *entity.Advance          `json:"advance"`
	Movements []*entity.Movement       `json:"movements"`
	Balance   ledger.BalanceByCurrency `json:"balance"`
}

// LiquidationService closes advances
type LiquidationService interface {
	// Liquidate flips the advance to LIQUIDATED and stamps every movement as
	// treasury-validated in one transaction. Nothing is written on failure.
	Liquidate(ctx context.Context, advanceID, actorID int64) (*LiquidationResult, error)
}

type liquidationServiceImpl struct {
	advanceRepo  port.AdvanceRepository
	movementRepo port.MovementRepository
	historyRepo  port.HistoryRepository
	txManager    port.TransactionManager
	publisher    port.EventPublisher
	logger       Logger
}

// NewLiquidationService creates a new LiquidationService
func NewLiquidationService(
	advanceRepo port.AdvanceRepository,
	movementRepo port.MovementRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	logger Logger,
) LiquidationService {
	return &liquidationServiceImpl{
		advanceRepo:  advanceRepo,
		movementRepo: movementRepo,
		historyRepo:  historyRepo,
		txManager:    txManager,
		publisher:    publisher,
		logger:       logger,
	}
}

func (s *liquidationServiceImpl) Liquidate(ctx context.Context, advanceID, actorID int64) (*LiquidationResult, error) {
	var result *LiquidationResult

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		advance, movements, err := loadLedger(txCtx, s.advanceRepo, s.movementRepo, advanceID)
		if err != nil {
			return err
		}

		restamped := earlierValidations(movements)

		liquidated, stamped, err := ledger.Liquidate(txCtx, advance, movements, actorID, time.Now().UTC())
		if err != nil {
			return err
		}

		if err := s.advanceRepo.MarkLiquidated(txCtx, liquidated); err != nil {
			return fmt.Errorf("mark advance liquidated: %w", err)
		}

		for _, m := range stamped {
			if err := s.movementRepo.MarkValidated(txCtx, m); err != nil {
				return fmt.Errorf("stamp movement %d: %w", m.ID, err)
			}
		}

		balance := ledger.ComputeBalance(liquidated.DefaultCurrency, stamped)
		if err := recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:     &liquidated.ID,
			EntityType:    entity.HistoryEntityAdvance,
			EntityID:      liquidated.ID,
			ActorID:       actorID,
			Action:        entity.ActionLiquidate,
			PreviousState: workflow.StateOpen.String(),
			NewState:      workflow.StateLiquidated.String(),
			Detail:        liquidationDetail(len(stamped), restamped),
		}); err != nil {
			return err
		}

		result = &LiquidationResult{Advance: liquidated, Movements: stamped, Balance: balance}
		return nil
	})
	if err != nil {
		logFailure(s.logger, "Failed to liquidate advance", err, "advance_id", advanceID)
		return nil, err
	}

	s.logger.Info("Advance liquidated", "advance_id", advanceID, "movements", len(result.Movements), "actor_id", actorID)

	payload := map[string]interface{}{"movements": len(result.Movements)}
	for _, currency := range result.Balance.Currencies() {
		payload["balance_"+currency] = result.Balance[currency].Balance.StringFixed(2)
	}
	publish(ctx, s.publisher, s.logger, event.NewEvent(event.TypeAdvanceLiquidated, advanceID, advanceID, actorID, payload))
	return result, nil
}

// earlierValidations lists movements that treasury had already validated
// before liquidation, with the date being overwritten.
func earlierValidations(movements []*entity.Movement) []string {
	var out []string
	for _, m := range movements {
		if m.TreasuryValidated && m.TreasuryValidationDate != nil {
			out = append(out, fmt.Sprintf("#%d@%s", m.ID, m.TreasuryValidationDate.UTC().Format(time.RFC3339)))
		}
	}
	return out
}

func liquidationDetail(count int, restamped []string) string {
	detail := fmt.Sprintf("%d movements validated", count)
	if len(restamped) > 0 {
		detail += "; previously validated " + strings.Join(restamped, ", ")
	}
	return detail
}
