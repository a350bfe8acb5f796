package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetStatement   = "Statement"
	sheetBalances    = "Balances"
	sheetAssignments = "Assignments"

	// movement rows start below the header block
	movementHeaderRow = 8
	dateLayout        = "2006-01-02"
)

var movementColumns = []interface{}{
	"ID", "Date", "Kind", "Description", "Currency", "Amount", "Exchange rate",
	"Source assignment", "Counted", "Crew", "Validated", "Invoice", "Receipt",
}

// StatementWriter renders liquidation statements as xlsx workbooks
type StatementWriter struct {
	font   string
	logger *zap.Logger
}

// NewStatementWriter creates a writer. font may be empty to keep the default.
func NewStatementWriter(font string, logger *zap.Logger) *StatementWriter {
	return &StatementWriter{font: font, logger: logger}
}

var _ port.StatementWriter = (*StatementWriter)(nil)

// Write builds the workbook for statement and streams it to w
func (s *StatementWriter) Write(ctx context.Context, statement *port.Statement, w io.Writer) error {
	if statement == nil || statement.Advance == nil {
		return fmt.Errorf("statement has no advance")
	}

	file := excelize.NewFile()
	defer file.Close()

	if s.font != "" {
		if err := file.SetDefaultFont(s.font); err != nil {
			s.logger.Warn("Failed to set workbook font", zap.String("font", s.font), zap.Error(err))
		}
	}

	if err := file.SetSheetName("Sheet1", sheetStatement); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	amountStyle, err := file.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}
	boldStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := s.fillStatement(file, statement, amountStyle, boldStyle); err != nil {
		return err
	}
	if err := s.fillBalances(file, statement, amountStyle, boldStyle); err != nil {
		return err
	}
	if err := s.fillAssignments(file, statement, amountStyle, boldStyle); err != nil {
		return err
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Liquidation statement written",
		zap.Int64("advance_id", statement.Advance.ID),
		zap.Int("movements", len(statement.Movements)))
	return nil
}

func (s *StatementWriter) fillStatement(file *excelize.File, st *port.Statement, amountStyle, boldStyle int) error {
	a := st.Advance
	status := "OPEN"
	liquidatedAt := ""
	if a.Liquidated {
		status = "LIQUIDATED"
		if a.LiquidationDate != nil {
			liquidatedAt = a.LiquidationDate.Format(dateLayout)
		}
	}

	header := [][]interface{}{
		{"Cash advance statement"},
		{"Advance", a.ID},
		{"Season", a.SeasonID},
		{"Responsible person", a.ResponsiblePersonID},
		{"Cost center", a.CostCenterID},
		{"Status", status, "Liquidated at", liquidatedAt},
	}
	for i, row := range header {
		if err := setRow(file, sheetStatement, 1, i+1, row); err != nil {
			return err
		}
	}

	if err := setRow(file, sheetStatement, 1, movementHeaderRow, movementColumns); err != nil {
		return err
	}
	if err := styleRow(file, sheetStatement, movementHeaderRow, len(movementColumns), boldStyle); err != nil {
		return err
	}

	for i, m := range st.Movements {
		row := movementHeaderRow + 1 + i
		if err := setRow(file, sheetStatement, 1, row, movementRow(m)); err != nil {
			return err
		}
	}
	if n := len(st.Movements); n > 0 {
		first, _ := excelize.CoordinatesToCellName(6, movementHeaderRow+1)
		last, _ := excelize.CoordinatesToCellName(6, movementHeaderRow+n)
		if err := file.SetCellStyle(sheetStatement, first, last, amountStyle); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}
	return nil
}

func (s *StatementWriter) fillBalances(file *excelize.File, st *port.Statement, amountStyle, boldStyle int) error {
	if _, err := file.NewSheet(sheetBalances); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	columns := []interface{}{"Currency", "Assigned", "Spent", "Balance", "Crew spent"}
	if err := setRow(file, sheetBalances, 1, 1, columns); err != nil {
		return err
	}
	if err := styleRow(file, sheetBalances, 1, len(columns), boldStyle); err != nil {
		return err
	}

	for i, cur := range st.Balance.Currencies() {
		cb := st.Balance[cur]
		row := []interface{}{cur, amount(cb.TotalAssigned), amount(cb.TotalSpent), amount(cb.Balance), amount(st.Crew.Get(cur).TotalSpent)}
		if err := setRow(file, sheetBalances, 1, i+2, row); err != nil {
			return err
		}
		first, _ := excelize.CoordinatesToCellName(2, i+2)
		last, _ := excelize.CoordinatesToCellName(5, i+2)
		if err := file.SetCellStyle(sheetBalances, first, last, amountStyle); err != nil {
			return fmt.Errorf("failed to style balances: %w", err)
		}
	}
	return nil
}

func (s *StatementWriter) fillAssignments(file *excelize.File, st *port.Statement, amountStyle, boldStyle int) error {
	if _, err := file.NewSheet(sheetAssignments); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	columns := []interface{}{"Assignment", "Currency", "Assigned", "Spent", "Remaining"}
	if err := setRow(file, sheetAssignments, 1, 1, columns); err != nil {
		return err
	}
	if err := styleRow(file, sheetAssignments, 1, len(columns), boldStyle); err != nil {
		return err
	}

	for i, d := range st.Drawdown {
		row := []interface{}{d.AssignmentID, d.Currency, amount(d.Assigned), amount(d.Spent), amount(d.Remaining)}
		if err := setRow(file, sheetAssignments, 1, i+2, row); err != nil {
			return err
		}
		first, _ := excelize.CoordinatesToCellName(3, i+2)
		last, _ := excelize.CoordinatesToCellName(5, i+2)
		if err := file.SetCellStyle(sheetAssignments, first, last, amountStyle); err != nil {
			return fmt.Errorf("failed to style drawdown: %w", err)
		}
	}
	return nil
}

func movementRow(m *entity.Movement) []interface{} {
	source := ""
	if id, ok := m.SourceAssignment(); ok {
		source = strconv.FormatInt(id, 10)
	}
	invoice := ""
	if m.Invoice != nil {
		invoice = m.Invoice.Series + "-" + m.Invoice.Correlative
	} else if m.HasNoInvoice {
		invoice = "none"
	}
	rate := ""
	if !m.ExchangeRate.IsZero() {
		rate = m.ExchangeRate.String()
	}
	return []interface{}{
		m.ID,
		m.MovementDate.Format(dateLayout),
		m.Kind.String(),
		m.Description,
		m.Currency,
		amount(m.Amount),
		rate,
		source,
		yesNo(m.IncludedInAdvanceCalculation),
		yesNo(m.IncludedInCrewLiquidationCalculation),
		yesNo(m.TreasuryValidated),
		invoice,
		m.ReceiptURL,
	}
}

func setRow(file *excelize.File, sheet string, col, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to set row %d on %s: %w", row, sheet, err)
	}
	return nil
}

func styleRow(file *excelize.File, sheet string, row, width, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(width, row)
	if err := file.SetCellStyle(sheet, first, last, style); err != nil {
		return fmt.Errorf("failed to style row %d on %s: %w", row, sheet, err)
	}
	return nil
}

// amount converts to a float for display; the ledger itself never uses floats
func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
