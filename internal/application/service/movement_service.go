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

// DocumentSlot names the URL field a stored document fills
type DocumentSlot string

const (
	SlotReceipt          DocumentSlot = "receipt"
	SlotOperationReceipt DocumentSlot = "operation_receipt"
)

// documentModule is the module name under which movement documents are stored
const documentModule = "advance-movements"

// MovementResult is a mutated movement with the recomputed advance balance
type MovementResult struct {
	Movement *entity.Movement         `json:"movement"`
	Balance  ledger.BalanceByCurrency `json:"balance"`
}

// MovementService creates, edits and removes ledger movements
type MovementService interface {
	CreateMovement(ctx context.Context, advanceID int64, draft *entity.Movement, actorID int64) (*MovementResult, error)
	// UpdateMovement applies a patch. expectedVersion 0 skips the concurrency check.
	UpdateMovement(ctx context.Context, id, expectedVersion int64, patch *entity.MovementPatch, actorID int64) (*MovementResult, error)
	DeleteMovement(ctx context.Context, id, expectedVersion, actorID int64) (ledger.BalanceByCurrency, error)
	GetMovement(ctx context.Context, id int64) (*entity.Movement, error)
	AttachDocuments(ctx context.Context, id int64, slot DocumentSlot, files []port.DocumentFile, actorID int64) (*MovementResult, error)
}

type movementServiceImpl struct {
	advanceRepo  port.AdvanceRepository
	movementRepo port.MovementRepository
	historyRepo  port.HistoryRepository
	txManager    port.TransactionManager
	documents    port.DocumentStore
	publisher    port.EventPublisher
	policy       ledger.Policy
	logger       Logger
}

// NewMovementService creates a new MovementService
func NewMovementService(
	advanceRepo port.AdvanceRepository,
	movementRepo port.MovementRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	documents port.DocumentStore,
	publisher port.EventPublisher,
	policy ledger.Policy,
	logger Logger,
) MovementService {
	return &movementServiceImpl{
		advanceRepo:  advanceRepo,
		movementRepo: movementRepo,
		historyRepo:  historyRepo,
		txManager:    txManager,
		documents:    documents,
		publisher:    publisher,
		policy:       policy,
		logger:       logger,
	}
}

// CreateMovement records a new assignment or expense on an open advance
func (s *movementServiceImpl) CreateMovement(ctx context.Context, advanceID int64, draft *entity.Movement, actorID int64) (*MovementResult, error) {
	m := draft.Clone()
	if m.AdvanceID == 0 {
		m.AdvanceID = advanceID
	}
	m.ID = 0
	m.TreasuryValidated = false
	m.TreasuryValidationDate = nil

	var balance ledger.BalanceByCurrency
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		advance, siblings, err := loadLedger(txCtx, s.advanceRepo, s.movementRepo, advanceID)
		if err != nil {
			return err
		}
		if err := ledger.CheckAdvanceOpen(advance); err != nil {
			return err
		}

		ledger.Normalize(advance, m)
		if m.MovementDate.IsZero() {
			m.MovementDate = time.Now().UTC()
		}
		if err := ledger.ValidateMovement(advance, m, siblings, s.policy); err != nil {
			return err
		}
		after := ledger.ReplaceMovement(siblings, m)
		if s.policy.EnforceBalance {
			if err := ledger.CheckBalance(advance, siblings, after, m.Currency); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		m.CreatedAt = now
		m.UpdatedAt = now
		if err := s.movementRepo.Create(txCtx, m); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		balance = ledger.ComputeBalance(advance.DefaultCurrency, after)
		return recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:  &advance.ID,
			EntityType: entity.HistoryEntityMovement,
			EntityID:   m.ID,
			ActorID:    actorID,
			Action:     entity.ActionCreate,
			NewState:   describeMovement(m),
		})
	})
	if err != nil {
		logFailure(s.logger, "Failed to create movement", err, "advance_id", advanceID, "kind", draft.Kind)
		return nil, err
	}

	s.logger.Info("Movement created", "id", m.ID, "advance_id", advanceID, "kind", m.Kind, "amount", m.Money().String())
	publish(ctx, s.publisher, s.logger, event.NewEvent(event.TypeMovementCreated, advanceID, m.ID, actorID, map[string]interface{}{
		"kind":   m.Kind.String(),
		"amount": m.Money().String(),
	}))
	return &MovementResult{Movement: m, Balance: balance}, nil
}

// UpdateMovement merges a patch into an unvalidated movement of an open advance
func (s *movementServiceImpl) UpdateMovement(ctx context.Context, id, expectedVersion int64, patch *entity.MovementPatch, actorID int64) (*MovementResult, error) {
	var (
		merged  *entity.Movement
		balance ledger.BalanceByCurrency
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := loadMovement(txCtx, s.movementRepo, id)
		if err != nil {
			return err
		}
		advance, all, err := loadLedger(txCtx, s.advanceRepo, s.movementRepo, current.AdvanceID)
		if err != nil {
			return err
		}
		if err := ledger.CheckMovementMutable(advance, current); err != nil {
			return err
		}
		if expectedVersion != 0 && expectedVersion != current.Version {
			return ledger.Errorf(ledger.KindVersionConflict, "version",
				"movement %d is at version %d, not %d", id, current.Version, expectedVersion)
		}

		merged = patch.Apply(current)
		ledger.Normalize(advance, merged)
		siblings := ledger.WithoutMovement(all, id)
		if err := ledger.ValidateMovement(advance, merged, siblings, s.policy); err != nil {
			return err
		}
		if current.Kind.IsAssignment() && !merged.Kind.IsAssignment() {
			if err := ledger.CheckDeletable(current, siblings); err != nil {
				return err
			}
		}
		after := ledger.ReplaceMovement(all, merged)
		if s.policy.EnforceBalance {
			if err := ledger.CheckBalance(advance, all, after, current.Currency, merged.Currency); err != nil {
				return err
			}
		}

		merged.UpdatedAt = time.Now().UTC()
		if err := s.movementRepo.Update(txCtx, merged); err != nil {
			return fmt.Errorf("update movement: %w", err)
		}

		balance = ledger.ComputeBalance(advance.DefaultCurrency, after)
		return recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:     &advance.ID,
			EntityType:    entity.HistoryEntityMovement,
			EntityID:      id,
			ActorID:       actorID,
			Action:        entity.ActionUpdate,
			PreviousState: describeMovement(current),
			NewState:      describeMovement(merged),
		})
	})
	if err != nil {
		logFailure(s.logger, "Failed to update movement", err, "id", id)
		return nil, err
	}

	s.logger.Info("Movement updated", "id", id, "version", merged.Version)
	publish(ctx, s.publisher, s.logger, event.NewEvent(event.TypeMovementUpdated, merged.AdvanceID, id, actorID, map[string]interface{}{
		"amount": merged.Money().String(),
	}))
	return &MovementResult{Movement: merged, Balance: balance}, nil
}

// DeleteMovement removes an unvalidated movement of an open advance
func (s *movementServiceImpl) DeleteMovement(ctx context.Context, id, expectedVersion, actorID int64) (ledger.BalanceByCurrency, error) {
	var (
		removed *entity.Movement
		balance ledger.BalanceByCurrency
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := loadMovement(txCtx, s.movementRepo, id)
		if err != nil {
			return err
		}
		advance, all, err := loadLedger(txCtx, s.advanceRepo, s.movementRepo, current.AdvanceID)
		if err != nil {
			return err
		}
		if err := ledger.CheckMovementMutable(advance, current); err != nil {
			return err
		}
		if expectedVersion != 0 && expectedVersion != current.Version {
			return ledger.Errorf(ledger.KindVersionConflict, "version",
				"movement %d is at version %d, not %d", id, current.Version, expectedVersion)
		}
		after := ledger.WithoutMovement(all, id)
		if err := ledger.CheckDeletable(current, after); err != nil {
			return err
		}
		if s.policy.EnforceBalance {
			if err := ledger.CheckBalance(advance, all, after, current.Currency); err != nil {
				return err
			}
		}

		if err := s.movementRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete movement: %w", err)
		}

		removed = current
		balance = ledger.ComputeBalance(advance.DefaultCurrency, after)
		return recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:     &advance.ID,
			EntityType:    entity.HistoryEntityMovement,
			EntityID:      id,
			ActorID:       actorID,
			Action:        entity.ActionDelete,
			PreviousState: describeMovement(current),
		})
	})
	if err != nil {
		logFailure(s.logger, "Failed to delete movement", err, "id", id)
		return nil, err
	}

	s.logger.Info("Movement deleted", "id", id, "advance_id", removed.AdvanceID)
	publish(ctx, s.publisher, s.logger, event.NewEvent(event.TypeMovementDeleted, removed.AdvanceID, id, actorID, map[string]interface{}{
		"kind":   removed.Kind.String(),
		"amount": removed.Money().String(),
	}))
	return balance, nil
}

// GetMovement retrieves a movement by ID
func (s *movementServiceImpl) GetMovement(ctx context.Context, id int64) (*entity.Movement, error) {
	return loadMovement(ctx, s.movementRepo, id)
}

// AttachDocuments stores uploaded files and records the resulting document URL
// in the receipt or operation receipt slot of the movement
func (s *movementServiceImpl) AttachDocuments(ctx context.Context, id int64, slot DocumentSlot, files []port.DocumentFile, actorID int64) (*MovementResult, error) {
	if slot != SlotReceipt && slot != SlotOperationReceipt {
		return nil, ledger.Errorf(ledger.KindInvalidField, "slot", "unknown document slot %q", slot)
	}
	if len(files) == 0 {
		return nil, ledger.Errorf(ledger.KindMissingDocument, "files", "at least one file is required")
	}
	if s.documents == nil {
		return nil, fmt.Errorf("document store is not configured")
	}

	// fail fast before writing files for a locked movement
	current, err := loadMovement(ctx, s.movementRepo, id)
	if err != nil {
		return nil, err
	}
	advance, err := loadAdvance(ctx, s.advanceRepo, current.AdvanceID)
	if err != nil {
		return nil, err
	}
	if err := ledger.CheckMovementMutable(advance, current); err != nil {
		return nil, err
	}

	url, err := s.documents.Store(ctx, fmt.Sprintf("%s/%s", documentModule, slot), id, files)
	if err != nil {
		s.logger.Error("Failed to store documents", "error", err, "movement_id", id)
		return nil, fmt.Errorf("store documents: %w", err)
	}

	patch := &entity.MovementPatch{}
	if slot == SlotReceipt {
		patch.ReceiptURL = &url
	} else {
		patch.OperationReceiptURL = &url
	}
	return s.UpdateMovement(ctx, id, current.Version, patch, actorID)
}

func describeMovement(m *entity.Movement) string {
	state := fmt.Sprintf("%s %s", m.Kind, m.Money().String())
	if sourceID, ok := m.SourceAssignment(); ok {
		state += fmt.Sprintf(" from #%d", sourceID)
	}
	if !m.IncludedInAdvanceCalculation {
		state += " (excluded)"
	}
	return state
}
