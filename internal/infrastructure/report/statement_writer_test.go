package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func sampleStatement() *port.Statement {
	at := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	source := int64(1)
	movements := []*entity.Movement{
		{ID: 1, AdvanceID: 9, Kind: entity.KindAssignmentInitial, Amount: decimal.NewFromInt(1000), Currency: "PEN",
			MovementDate: day, IncludedInAdvanceCalculation: true, HasNoInvoice: true, TreasuryValidated: true},
		{ID: 2, AdvanceID: 9, Kind: entity.KindExpense, Amount: decimal.RequireFromString("300.5"), Currency: "PEN",
			MovementDate: day, Description: "fuel", Expense: &entity.ExpenseDetail{SourceAssignmentID: &source},
			IncludedInAdvanceCalculation: true, IncludedInCrewLiquidationCalculation: true,
			Invoice: &entity.InvoiceDocument{DocumentTypeID: 1, Series: "F001", Correlative: "123"}},
	}
	return &port.Statement{
		Advance:   &entity.Advance{ID: 9, SeasonID: 2024, ResponsiblePersonID: 7, CostCenterID: 3, Liquidated: true, LiquidationDate: &at},
		Movements: movements,
		Balance:   ledger.ComputeBalance("PEN", movements),
		Crew:      ledger.ComputeCrewBalance("PEN", movements),
		Drawdown:  ledger.PerAssignment(movements),
	}
}

func cell(t *testing.T, f *excelize.File, sheet, axis string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return v
}

func TestStatementWriter_Write(t *testing.T) {
	w := NewStatementWriter("", zap.NewNop())
	var buf bytes.Buffer

	require.NoError(t, w.Write(context.Background(), sampleStatement(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetStatement, sheetBalances, sheetAssignments}, f.GetSheetList())

	assert.Equal(t, "9", cell(t, f, sheetStatement, "B2"))
	assert.Equal(t, "LIQUIDATED", cell(t, f, sheetStatement, "B6"))
	assert.Equal(t, "2024-06-30", cell(t, f, sheetStatement, "D6"))

	assert.Equal(t, "Kind", cell(t, f, sheetStatement, "C8"))
	assert.Equal(t, "ASSIGNMENT_INITIAL", cell(t, f, sheetStatement, "C9"))
	assert.Equal(t, "EXPENSE", cell(t, f, sheetStatement, "C10"))
	assert.Equal(t, "300.5", cell(t, f, sheetStatement, "F10"))
	assert.Equal(t, "1", cell(t, f, sheetStatement, "H10"))
	assert.Equal(t, "F001-123", cell(t, f, sheetStatement, "L10"))

	assert.Equal(t, "PEN", cell(t, f, sheetBalances, "A2"))
	assert.Equal(t, "1000", cell(t, f, sheetBalances, "B2"))
	assert.Equal(t, "699.5", cell(t, f, sheetBalances, "D2"))
	assert.Equal(t, "300.5", cell(t, f, sheetBalances, "E2"))

	assert.Equal(t, "1", cell(t, f, sheetAssignments, "A2"))
	assert.Equal(t, "699.5", cell(t, f, sheetAssignments, "E2"))
}

func TestStatementWriter_OpenAdvanceWithoutMovements(t *testing.T) {
	w := NewStatementWriter("", zap.NewNop())
	var buf bytes.Buffer
	st := &port.Statement{
		Advance: &entity.Advance{ID: 4, DefaultCurrency: "USD"},
		Balance: ledger.ComputeBalance("USD", nil),
		Crew:    ledger.ComputeCrewBalance("USD", nil),
	}

	require.NoError(t, w.Write(context.Background(), st, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "OPEN", cell(t, f, sheetStatement, "B6"))
	assert.Equal(t, "USD", cell(t, f, sheetBalances, "A2"))
	assert.Equal(t, "", cell(t, f, sheetStatement, "A9"))
}

func TestStatementWriter_RejectsEmptyStatement(t *testing.T) {
	w := NewStatementWriter("", zap.NewNop())

	assert.Error(t, w.Write(context.Background(), &port.Statement{}, &bytes.Buffer{}))
}
