package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/event"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/garyjia/cash-advance/internal/domain/money"
	"github.com/garyjia/cash-advance/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// RegisterCashMovementInput carries the fields of a new cash movement
type RegisterCashMovementInput struct {
	AdvanceID   *int64
	MovementID  *int64
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// RevertResult pairs an approved record with its compensating entry
type RevertResult struct {
	Original *entity.CashMovement `json:"original"`
	Reversal *entity.CashMovement `json:"reversal"`
}

// TreasuryService runs the treasury validation workflow over cash movements
type TreasuryService interface {
	Register(ctx context.Context, input RegisterCashMovementInput, actorID int64) (*entity.CashMovement, error)
	Get(ctx context.Context, id int64) (*entity.CashMovement, error)
	ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.CashMovement, error)
	Approve(ctx context.Context, id, actorID int64) (*entity.CashMovement, error)
	Reject(ctx context.Context, id, actorID int64, reason string) (*entity.CashMovement, error)
	// Revert never mutates the approved record beyond its back-reference;
	// it creates an approved compensating record with the opposite amount.
	Revert(ctx context.Context, id, actorID int64, reason string) (*RevertResult, error)
}

type treasuryServiceImpl struct {
	cashRepo     port.CashMovementRepository
	advanceRepo  port.AdvanceRepository
	movementRepo port.MovementRepository
	historyRepo  port.HistoryRepository
	txManager    port.TransactionManager
	publisher    port.EventPublisher
	logger       Logger
}

// NewTreasuryService creates a new TreasuryService
func NewTreasuryService(
	cashRepo port.CashMovementRepository,
	advanceRepo port.AdvanceRepository,
	movementRepo port.MovementRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	logger Logger,
) TreasuryService {
	return &treasuryServiceImpl{
		cashRepo:     cashRepo,
		advanceRepo:  advanceRepo,
		movementRepo: movementRepo,
		historyRepo:  historyRepo,
		txManager:    txManager,
		publisher:    publisher,
		logger:       logger,
	}
}

// Register records a pending cash movement, optionally linked to a ledger movement
func (s *treasuryServiceImpl) Register(ctx context.Context, input RegisterCashMovementInput, actorID int64) (*entity.CashMovement, error) {
	if input.Amount.IsZero() {
		return nil, ledger.Errorf(ledger.KindInvalidAmount, "amount", "amount cannot be zero")
	}
	currency := money.NormalizeCurrency(input.Currency)
	if err := money.ValidateCurrency(currency); err != nil {
		return nil, ledger.Errorf(ledger.KindInvalidCurrency, "currency", "%v", err)
	}

	now := time.Now().UTC()
	cm := &entity.CashMovement{
		AdvanceID:   input.AdvanceID,
		MovementID:  input.MovementID,
		Amount:      input.Amount,
		Currency:    currency,
		Description: strings.TrimSpace(input.Description),
		Status:      entity.CashStatusPending,
		CreatedByID: actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if cm.MovementID != nil {
			m, err := loadMovement(txCtx, s.movementRepo, *cm.MovementID)
			if err != nil {
				return err
			}
			if cm.AdvanceID != nil && *cm.AdvanceID != m.AdvanceID {
				return ledger.Errorf(ledger.KindInvalidField, "advance_id",
					"movement %d belongs to advance %d", m.ID, m.AdvanceID)
			}
			advanceID := m.AdvanceID
			cm.AdvanceID = &advanceID
		}
		if cm.AdvanceID != nil {
			if _, err := loadAdvance(txCtx, s.advanceRepo, *cm.AdvanceID); err != nil {
				return err
			}
		}

		if err := s.cashRepo.Create(txCtx, cm); err != nil {
			return fmt.Errorf("create cash movement: %w", err)
		}
		return recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:  cm.AdvanceID,
			EntityType: entity.HistoryEntityCashMovement,
			EntityID:   cm.ID,
			ActorID:    actorID,
			Action:     entity.ActionCreate,
			NewState:   string(cm.Status),
			Detail:     money.New(cm.Amount, cm.Currency).String(),
		})
	})
	if err != nil {
		logFailure(s.logger, "Failed to register cash movement", err)
		return nil, err
	}

	s.logger.Info("Cash movement registered", "id", cm.ID, "amount", money.New(cm.Amount, cm.Currency).String())
	return cm, nil
}

// Get retrieves a cash movement by ID
func (s *treasuryServiceImpl) Get(ctx context.Context, id int64) (*entity.CashMovement, error) {
	return s.load(ctx, id)
}

// ListByAdvance lists the cash movements linked to an advance
func (s *treasuryServiceImpl) ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.CashMovement, error) {
	if _, err := loadAdvance(ctx, s.advanceRepo, advanceID); err != nil {
		return nil, err
	}
	list, err := s.cashRepo.ListByAdvance(ctx, advanceID)
	if err != nil {
		s.logger.Error("Failed to list cash movements", "error", err, "advance_id", advanceID)
		return nil, err
	}
	return list, nil
}

// Approve moves a pending record to APPROVED. A linked ledger movement is
// stamped as treasury-validated in the same transaction unless it already is.
// The liquidation lock does not block treasury decisions.
func (s *treasuryServiceImpl) Approve(ctx context.Context, id, actorID int64) (*entity.CashMovement, error) {
	var cm *entity.CashMovement
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if cm, err = s.load(txCtx, id); err != nil {
			return err
		}
		previous := cm.Status
		if err := s.fire(txCtx, cm, workflow.TriggerApprove); err != nil {
			return err
		}

		now := time.Now().UTC()
		if cm.MovementID != nil {
			if err := s.validateLinkedMovement(txCtx, cm, actorID, now); err != nil {
				return err
			}
		}

		cm.Status = entity.CashStatusApproved
		cm.ApprovedByID = &actorID
		cm.ApprovedAt = &now
		cm.UpdatedAt = now
		if err := s.cashRepo.UpdateDecision(txCtx, cm); err != nil {
			return fmt.Errorf("approve cash movement: %w", err)
		}
		return recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:     cm.AdvanceID,
			EntityType:    entity.HistoryEntityCashMovement,
			EntityID:      cm.ID,
			ActorID:       actorID,
			Action:        entity.ActionApprove,
			PreviousState: string(previous),
			NewState:      string(cm.Status),
		})
	})
	if err != nil {
		logFailure(s.logger, "Failed to approve cash movement", err, "id", id)
		return nil, err
	}

	s.logger.Info("Cash movement approved", "id", id, "actor_id", actorID)
	publish(ctx, s.publisher, s.logger, event.NewEvent(event.TypeCashMovementApproved, advanceOf(cm), cm.ID, actorID, map[string]interface{}{
		"amount": money.New(cm.Amount, cm.Currency).String(),
	}))
	return cm, nil
}

func (s *treasuryServiceImpl) validateLinkedMovement(ctx context.Context, cm *entity.CashMovement, actorID int64, now time.Time) error {
	m, err := loadMovement(ctx, s.movementRepo, *cm.MovementID)
	if err != nil {
		return err
	}
	advance, err := loadAdvance(ctx, s.advanceRepo, m.AdvanceID)
	if err != nil {
		return err
	}
	// Liquidation already stamped every movement of a closed advance.
	if advance.Liquidated || m.TreasuryValidated {
		return nil
	}

	m.TreasuryValidated = true
	m.TreasuryValidationDate = &now
	if err := s.movementRepo.MarkValidated(ctx, m); err != nil {
		return fmt.Errorf("validate movement %d: %w", m.ID, err)
	}
	return recordHistory(ctx, s.historyRepo, &entity.LedgerHistory{
		AdvanceID:  &advance.ID,
		EntityType: entity.HistoryEntityMovement,
		EntityID:   m.ID,
		ActorID:    actorID,
		Action:     entity.ActionValidate,
		NewState:   "VALIDATED",
		Detail:     fmt.Sprintf("cash movement #%d approved", cm.ID),
	})
}

// Reject moves a pending record to REJECTED with a mandatory reason
func (s *treasuryServiceImpl) Reject(ctx context.Context, id, actorID int64, reason string) (*entity.CashMovement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ledger.Errorf(ledger.KindReasonRequired, "reason", "a rejection reason is required")
	}

	var cm *entity.CashMovement
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if cm, err = s.load(txCtx, id); err != nil {
			return err
		}
		previous := cm.Status
		if err := s.fire(txCtx, cm, workflow.TriggerReject); err != nil {
			return err
		}

		now := time.Now().UTC()
		cm.Status = entity.CashStatusRejected
		cm.RejectedByID = &actorID
		cm.RejectedAt = &now
		cm.RejectionReason = reason
		cm.UpdatedAt = now
		if err := s.cashRepo.UpdateDecision(txCtx, cm); err != nil {
			return fmt.Errorf("reject cash movement: %w", err)
		}
		return recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:     cm.AdvanceID,
			EntityType:    entity.HistoryEntityCashMovement,
			EntityID:      cm.ID,
			ActorID:       actorID,
			Action:        entity.ActionReject,
			PreviousState: string(previous),
			NewState:      string(cm.Status),
			Detail:        reason,
		})
	})
	if err != nil {
		logFailure(s.logger, "Failed to reject cash movement", err, "id", id)
		return nil, err
	}

	s.logger.Info("Cash movement rejected", "id", id, "actor_id", actorID)
	publish(ctx, s.publisher, s.logger, event.NewEvent(event.TypeCashMovementRejected, advanceOf(cm), cm.ID, actorID, map[string]interface{}{
		"reason": reason,
	}))
	return cm, nil
}

// Revert compensates an approved record
func (s *treasuryServiceImpl) Revert(ctx context.Context, id, actorID int64, reason string) (*RevertResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ledger.Errorf(ledger.KindReasonRequired, "reason", "a reversal reason is required")
	}

	var result *RevertResult
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		original, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if original.IsReversal() {
			return ledger.Errorf(ledger.KindInvalidTransition, "id", "cash movement %d is itself a reversal", id)
		}
		if original.IsReverted() {
			return ledger.Errorf(ledger.KindInvalidTransition, "id", "cash movement %d was already reverted by %d", id, *original.ReversedByID)
		}
		if err := s.fire(txCtx, original, workflow.TriggerRevert); err != nil {
			return err
		}

		now := time.Now().UTC()
		reversal := &entity.CashMovement{
			AdvanceID:    original.AdvanceID,
			Amount:       original.Amount.Neg(),
			Currency:     original.Currency,
			Description:  fmt.Sprintf("Reversal of #%d: %s", original.ID, reason),
			Status:       entity.CashStatusApproved,
			CreatedByID:  actorID,
			ApprovedByID: &actorID,
			ApprovedAt:   &now,
			Reversal:     &entity.ReversalLink{OriginalID: original.ID, Reason: reason},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.cashRepo.Create(txCtx, reversal); err != nil {
			return fmt.Errorf("create reversal: %w", err)
		}

		original.ReversedByID = &reversal.ID
		original.UpdatedAt = now
		if err := s.cashRepo.UpdateDecision(txCtx, original); err != nil {
			return fmt.Errorf("link reversal: %w", err)
		}

		if err := recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:     original.AdvanceID,
			EntityType:    entity.HistoryEntityCashMovement,
			EntityID:      original.ID,
			ActorID:       actorID,
			Action:        entity.ActionRevert,
			PreviousState: string(original.Status),
			NewState:      string(original.Status),
			Detail:        fmt.Sprintf("reversed by #%d: %s", reversal.ID, reason),
		}); err != nil {
			return err
		}

		result = &RevertResult{Original: original, Reversal: reversal}
		return nil
	})
	if err != nil {
		logFailure(s.logger, "Failed to revert cash movement", err, "id", id)
		return nil, err
	}

	s.logger.Info("Cash movement reverted", "id", id, "reversal_id", result.Reversal.ID)
	publish(ctx, s.publisher, s.logger, event.NewEvent(event.TypeCashMovementReversed, advanceOf(result.Original), result.Reversal.ID, actorID, map[string]interface{}{
		"original_id": result.Original.ID,
		"reason":      reason,
	}))
	return result, nil
}

func (s *treasuryServiceImpl) load(ctx context.Context, id int64) (*entity.CashMovement, error) {
	cm, err := s.cashRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get cash movement: %w", err)
	}
	if cm == nil {
		return nil, ledger.NotFound("cash_movement", id)
	}
	return cm, nil
}

// fire runs the treasury state machine for one record and maps a refused
// transition to a domain error
func (s *treasuryServiceImpl) fire(ctx context.Context, cm *entity.CashMovement, trigger workflow.Trigger) error {
	machine := workflow.NewCashMovementMachine(workflow.State(cm.Status), func(context.Context) bool {
		return !cm.IsReversal() && !cm.IsReverted()
	})
	if err := machine.Fire(ctx, trigger); err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) || errors.Is(err, workflow.ErrGuardFailed) {
			return ledger.Errorf(ledger.KindInvalidTransition, "status",
				"cannot %s a cash movement in status %s", strings.ToLower(trigger.String()), cm.Status)
		}
		return err
	}
	return nil
}

func advanceOf(cm *entity.CashMovement) int64 {
	if cm.AdvanceID == nil {
		return 0
	}
	return *cm.AdvanceID
}
