package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
)

// StatementService builds the liquidation statement of an advance
type StatementService interface {
	Build(ctx context.Context, advanceID int64) (*port.Statement, error)
	Export(ctx context.Context, advanceID int64, w io.Writer) error
}

type statementServiceImpl struct {
	advanceRepo  port.AdvanceRepository
	movementRepo port.MovementRepository
	writer       port.StatementWriter
	logger       Logger
}

// NewStatementService creates a new StatementService
func NewStatementService(
	advanceRepo port.AdvanceRepository,
	movementRepo port.MovementRepository,
	writer port.StatementWriter,
	logger Logger,
) StatementService {
	return &statementServiceImpl{
		advanceRepo:  advanceRepo,
		movementRepo: movementRepo,
		writer:       writer,
		logger:       logger,
	}
}

func (s *statementServiceImpl) Build(ctx context.Context, advanceID int64) (*port.Statement, error) {
	advance, movements, err := loadLedger(ctx, s.advanceRepo, s.movementRepo, advanceID)
	if err != nil {
		return nil, err
	}
	return &port.Statement{
		Advance:   advance,
		Movements: movements,
		Balance:   ledger.ComputeBalance(advance.DefaultCurrency, movements),
		Crew:      ledger.ComputeCrewBalance(advance.DefaultCurrency, movements),
		Drawdown:  ledger.PerAssignment(movements),
	}, nil
}

func (s *statementServiceImpl) Export(ctx context.Context, advanceID int64, w io.Writer) error {
	statement, err := s.Build(ctx, advanceID)
	if err != nil {
		return err
	}
	if err := s.writer.Write(ctx, statement, w); err != nil {
		s.logger.Error("Failed to write statement", "error", err, "advance_id", advanceID)
		return fmt.Errorf("write statement: %w", err)
	}
	s.logger.Info("Statement exported", "advance_id", advanceID, "movements", len(statement.Movements))
	return nil
}
