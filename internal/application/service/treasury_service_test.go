package service

import (
	"context"
	"testing"

	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/event"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerPending(t *testing.T, f *fixture, amount string) *entity.CashMovement {
	t.Helper()
	cm, err := f.treasury.Register(context.Background(), RegisterCashMovementInput{
		Amount:      dec(amount),
		Currency:    "pen",
		Description: "petty cash",
	}, 42)
	require.NoError(t, err)
	return cm
}

func TestTreasuryService_Register(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cm := registerPending(t, f, "150")
	assert.Equal(t, entity.CashStatusPending, cm.Status)
	assert.Equal(t, "PEN", cm.Currency)

	_, err := f.treasury.Register(ctx, RegisterCashMovementInput{Amount: dec("0"), Currency: "PEN"}, 42)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = f.treasury.Register(ctx, RegisterCashMovementInput{Amount: dec("5"), Currency: "XX"}, 42)
	assert.ErrorIs(t, err, ledger.ErrInvalidCurrency)

	missing := int64(404)
	_, err = f.treasury.Register(ctx, RegisterCashMovementInput{Amount: dec("5"), Currency: "PEN", MovementID: &missing}, 42)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTreasuryService_ApproveThenReject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cm := registerPending(t, f, "150")

	approved, err := f.treasury.Approve(ctx, cm.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, entity.CashStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedByID)
	assert.Equal(t, int64(7), *approved.ApprovedByID)
	assert.NotNil(t, approved.ApprovedAt)

	_, err = f.treasury.Reject(ctx, cm.ID, 7, "duplicate")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

	_, err = f.treasury.Approve(ctx, cm.ID, 7)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestTreasuryService_Reject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cm := registerPending(t, f, "150")

	_, err := f.treasury.Reject(ctx, cm.ID, 7, "   ")
	assert.ErrorIs(t, err, ledger.ErrReasonRequired)
	assert.Equal(t, entity.CashStatusPending, f.ledger.cash[cm.ID].Status)

	rejected, err := f.treasury.Reject(ctx, cm.ID, 7, "no voucher")
	require.NoError(t, err)
	assert.Equal(t, entity.CashStatusRejected, rejected.Status)
	assert.Equal(t, "no voucher", rejected.RejectionReason)
	require.NotNil(t, rejected.RejectedByID)

	_, err = f.treasury.Approve(ctx, cm.ID, 7)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

	_, err = f.treasury.Revert(ctx, cm.ID, 7, "undo")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
}

func TestTreasuryService_Revert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cm := registerPending(t, f, "150")
	_, err := f.treasury.Approve(ctx, cm.ID, 7)
	require.NoError(t, err)

	_, err = f.treasury.Revert(ctx, cm.ID, 7, "")
	assert.ErrorIs(t, err, ledger.ErrReasonRequired)

	res, err := f.treasury.Revert(ctx, cm.ID, 7, "wrong amount")
	require.NoError(t, err)

	assert.True(t, res.Reversal.Amount.Equal(dec("-150")))
	assert.Equal(t, entity.CashStatusApproved, res.Reversal.Status)
	require.NotNil(t, res.Reversal.Reversal)
	assert.Equal(t, cm.ID, res.Reversal.Reversal.OriginalID)
	assert.Equal(t, "wrong amount", res.Reversal.Reversal.Reason)

	original := f.ledger.cash[cm.ID]
	assert.Equal(t, entity.CashStatusApproved, original.Status)
	assert.True(t, original.Amount.Equal(dec("150")))
	require.NotNil(t, original.ReversedByID)
	assert.Equal(t, res.Reversal.ID, *original.ReversedByID)
	assert.Equal(t, event.TypeCashMovementReversed, f.publisher.events[len(f.publisher.events)-1].Type)

	_, err = f.treasury.Revert(ctx, cm.ID, 7, "again")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

	_, err = f.treasury.Revert(ctx, res.Reversal.ID, 7, "undo the undo")
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
	assert.Len(t, f.ledger.cash, 2)
}

func TestTreasuryService_RevertPendingRejected(t *testing.T) {
	f := newFixture()
	cm := registerPending(t, f, "150")

	_, err := f.treasury.Revert(context.Background(), cm.ID, 7, "premature")

	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)
	assert.Len(t, f.ledger.cash, 1)
}

func TestTreasuryService_ApproveValidatesLinkedMovement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	advance, assignment := seedAdvance(t, f, "1000")
	expense, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
	require.NoError(t, err)

	cm, err := f.treasury.Register(ctx, RegisterCashMovementInput{
		MovementID: &expense.Movement.ID,
		Amount:     dec("-300"),
		Currency:   "PEN",
	}, 42)
	require.NoError(t, err)
	require.NotNil(t, cm.AdvanceID)
	assert.Equal(t, advance.ID, *cm.AdvanceID)

	_, err = f.treasury.Approve(ctx, cm.ID, 7)
	require.NoError(t, err)

	stored := f.ledger.movements[expense.Movement.ID]
	assert.True(t, stored.TreasuryValidated)
	assert.NotNil(t, stored.TreasuryValidationDate)

	amount := dec("1")
	_, err = f.movementSvc.UpdateMovement(ctx, expense.Movement.ID, 0, &entity.MovementPatch{Amount: &amount}, 42)
	assert.ErrorIs(t, err, ledger.ErrMovementValidated)

	list, err := f.treasury.ListByAdvance(ctx, advance.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTreasuryService_ApproveLinkedOnLiquidatedAdvance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	advance, assignment := seedAdvance(t, f, "1000")

	cm, err := f.treasury.Register(ctx, RegisterCashMovementInput{
		MovementID: &assignment.ID,
		Amount:     dec("1000"),
		Currency:   "PEN",
	}, 42)
	require.NoError(t, err)

	res, err := f.liquidation.Liquidate(ctx, advance.ID, 99)
	require.NoError(t, err)
	stampedAt := *f.ledger.movements[assignment.ID].TreasuryValidationDate
	historyBefore := len(f.ledger.history)

	approved, err := f.treasury.Approve(ctx, cm.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, entity.CashStatusApproved, approved.Status)
	assert.Equal(t, entity.CashStatusApproved, f.ledger.cash[cm.ID].Status)

	// the liquidation stamp is left alone
	stored := f.ledger.movements[assignment.ID]
	assert.True(t, stored.TreasuryValidated)
	assert.Equal(t, stampedAt, *stored.TreasuryValidationDate)
	assert.Equal(t, *res.Advance.LiquidationDate, *stored.TreasuryValidationDate)
	require.Len(t, f.ledger.history, historyBefore+1)
	assert.Equal(t, entity.ActionApprove, f.ledger.history[historyBefore].Action)
}

func TestTreasuryService_RegisterOnLiquidatedAdvance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	advance, assignment := seedAdvance(t, f, "1000")

	_, err := f.liquidation.Liquidate(ctx, advance.ID, 99)
	require.NoError(t, err)

	cm, err := f.treasury.Register(ctx, RegisterCashMovementInput{
		MovementID: &assignment.ID,
		Amount:     dec("1000"),
		Currency:   "PEN",
	}, 42)
	require.NoError(t, err)
	require.NotNil(t, cm.AdvanceID)
	assert.Equal(t, advance.ID, *cm.AdvanceID)

	_, err = f.treasury.Reject(ctx, cm.ID, 7, "duplicate voucher")
	require.NoError(t, err)
	assert.Equal(t, entity.CashStatusRejected, f.ledger.cash[cm.ID].Status)

	missing := int64(404)
	_, err = f.treasury.Register(ctx, RegisterCashMovementInput{AdvanceID: &missing, Amount: dec("5"), Currency: "PEN"}, 42)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
