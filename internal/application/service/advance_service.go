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
	"github.com/garyjia/cash-advance/internal/domain/money"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateAdvanceInput carries the fields of a new advance
type CreateAdvanceInput struct {
	SeasonID            int64
	ResponsiblePersonID int64
	CostCenterID        int64
	DefaultCurrency     string
	Description         string
}

// AdvanceAggregate is an advance with its movements and derived balances
type AdvanceAggregate struct {
	Advance     *entity.Advance          `json:"advance"`
	Movements   []*entity.Movement       `json:"movements"`
	Balance     ledger.BalanceByCurrency `json:"balance"`
	CrewBalance ledger.BalanceByCurrency `json:"crew_balance"`
}

// AdvanceService manages advances and their read models
type AdvanceService interface {
	CreateAdvance(ctx context.Context, input CreateAdvanceInput, actorID int64) (*entity.Advance, error)
	GetAdvance(ctx context.Context, id int64) (*AdvanceAggregate, error)
	ListAdvances(ctx context.Context, filter entity.AdvanceFilter) ([]*entity.Advance, error)
	GetBalance(ctx context.Context, id int64) (ledger.BalanceByCurrency, error)
	GetAssignments(ctx context.Context, id int64) ([]ledger.AssignmentDrawdown, error)
	GetHistory(ctx context.Context, id int64) ([]*entity.LedgerHistory, error)
}

type advanceServiceImpl struct {
	advanceRepo     port.AdvanceRepository
	movementRepo    port.MovementRepository
	historyRepo     port.HistoryRepository
	txManager       port.TransactionManager
	publisher       port.EventPublisher
	defaultCurrency string
	logger          Logger
}

// NewAdvanceService creates a new AdvanceService. defaultCurrency applies to
// advances created without an explicit currency.
func NewAdvanceService(
	advanceRepo port.AdvanceRepository,
	movementRepo port.MovementRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	defaultCurrency string,
	logger Logger,
) AdvanceService {
	return &advanceServiceImpl{
		advanceRepo:     advanceRepo,
		movementRepo:    movementRepo,
		historyRepo:     historyRepo,
		txManager:       txManager,
		publisher:       publisher,
		defaultCurrency: money.NormalizeCurrency(defaultCurrency),
		logger:          logger,
	}
}

// CreateAdvance opens a new advance. Only one open advance may exist per
// season and responsible person.
func (s *advanceServiceImpl) CreateAdvance(ctx context.Context, input CreateAdvanceInput, actorID int64) (*entity.Advance, error) {
	if input.SeasonID <= 0 {
		return nil, ledger.Errorf(ledger.KindInvalidField, "season_id", "season is required")
	}
	if input.ResponsiblePersonID <= 0 {
		return nil, ledger.Errorf(ledger.KindInvalidField, "responsible_person_id", "responsible person is required")
	}
	currency := money.NormalizeCurrency(input.DefaultCurrency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	if err := money.ValidateCurrency(currency); err != nil {
		return nil, ledger.Errorf(ledger.KindInvalidCurrency, "default_currency", "%v", err)
	}

	now := time.Now().UTC()
	advance := &entity.Advance{
		SeasonID:            input.SeasonID,
		ResponsiblePersonID: input.ResponsiblePersonID,
		CostCenterID:        input.CostCenterID,
		DefaultCurrency:     currency,
		Description:         strings.TrimSpace(input.Description),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.advanceRepo.GetOpenBySeasonAndPerson(txCtx, input.SeasonID, input.ResponsiblePersonID)
		if err != nil {
			return fmt.Errorf("check open advance: %w", err)
		}
		if existing != nil {
			return ledger.Errorf(ledger.KindDuplicateAdvance, "season_id",
				"advance %d is still open for season %d and person %d", existing.ID, input.SeasonID, input.ResponsiblePersonID)
		}

		if err := s.advanceRepo.Create(txCtx, advance); err != nil {
			return fmt.Errorf("create advance: %w", err)
		}

		return recordHistory(txCtx, s.historyRepo, &entity.LedgerHistory{
			AdvanceID:  &advance.ID,
			EntityType: entity.HistoryEntityAdvance,
			EntityID:   advance.ID,
			ActorID:    actorID,
			Action:     entity.ActionCreate,
			NewState:   "OPEN",
			Detail:     fmt.Sprintf("season %d, currency %s", advance.SeasonID, advance.DefaultCurrency),
		})
	})
	if err != nil {
		logFailure(s.logger, "Failed to create advance", err, "season_id", input.SeasonID, "responsible_person_id", input.ResponsiblePersonID)
		return nil, err
	}

	s.logger.Info("Advance created", "id", advance.ID, "season_id", advance.SeasonID)
	publish(ctx, s.publisher, s.logger, event.NewEvent(event.TypeAdvanceCreated, advance.ID, advance.ID, actorID, map[string]interface{}{
		"season_id":             advance.SeasonID,
		"responsible_person_id": advance.ResponsiblePersonID,
	}))
	return advance, nil
}

// GetAdvance loads an advance with its movements and balances
func (s *advanceServiceImpl) GetAdvance(ctx context.Context, id int64) (*AdvanceAggregate, error) {
	advance, movements, err := loadLedger(ctx, s.advanceRepo, s.movementRepo, id)
	if err != nil {
		return nil, err
	}
	return &AdvanceAggregate{
		Advance:     advance,
		Movements:   movements,
		Balance:     ledger.ComputeBalance(advance.DefaultCurrency, movements),
		CrewBalance: ledger.ComputeCrewBalance(advance.DefaultCurrency, movements),
	}, nil
}

// ListAdvances returns advances matching the filter
func (s *advanceServiceImpl) ListAdvances(ctx context.Context, filter entity.AdvanceFilter) ([]*entity.Advance, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	advances, err := s.advanceRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list advances", "error", err)
		return nil, err
	}
	return advances, nil
}

// GetBalance computes the per-currency balance of an advance
func (s *advanceServiceImpl) GetBalance(ctx context.Context, id int64) (ledger.BalanceByCurrency, error) {
	advance, movements, err := loadLedger(ctx, s.advanceRepo, s.movementRepo, id)
	if err != nil {
		return nil, err
	}
	return ledger.ComputeBalance(advance.DefaultCurrency, movements), nil
}

// GetAssignments reports the drawdown of each assignment of an advance
func (s *advanceServiceImpl) GetAssignments(ctx context.Context, id int64) ([]ledger.AssignmentDrawdown, error) {
	_, movements, err := loadLedger(ctx, s.advanceRepo, s.movementRepo, id)
	if err != nil {
		return nil, err
	}
	return ledger.PerAssignment(movements), nil
}

// GetHistory lists the audit trail of an advance, oldest first
func (s *advanceServiceImpl) GetHistory(ctx context.Context, id int64) ([]*entity.LedgerHistory, error) {
	if _, err := loadAdvance(ctx, s.advanceRepo, id); err != nil {
		return nil, err
	}
	history, err := s.historyRepo.ListByAdvance(ctx, id)
	if err != nil {
		s.logger.Error("Failed to list history", "error", err, "advance_id", id)
		return nil, err
	}
	return history, nil
}
