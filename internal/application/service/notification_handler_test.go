package service

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/event"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	liquidated []*entity.Advance
	balances   []ledger.BalanceByCurrency
	reversals  [][2]*entity.CashMovement
	err        error
}

func (m *mockNotifier) NotifyLiquidation(ctx context.Context, advance *entity.Advance, balance ledger.BalanceByCurrency) error {
	if m.err != nil {
		return m.err
	}
	m.liquidated = append(m.liquidated, advance)
	m.balances = append(m.balances, balance)
	return nil
}

func (m *mockNotifier) NotifyReversal(ctx context.Context, original, reversal *entity.CashMovement) error {
	if m.err != nil {
		return m.err
	}
	m.reversals = append(m.reversals, [2]*entity.CashMovement{original, reversal})
	return nil
}

func TestNotificationHandler_AdvanceLiquidated(t *testing.T) {
	f := newFixture()
	notifier := &mockNotifier{}
	h := NewNotificationHandler(f.advanceSvc, f.treasury, notifier, &mockLogger{})
	advance, assignment := seedAdvance(t, f, "1000")
	ctx := context.Background()
	_, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "250"), 42)
	require.NoError(t, err)
	_, err = f.liquidation.Liquidate(ctx, advance.ID, 99)
	require.NoError(t, err)

	evt := f.publisher.events[len(f.publisher.events)-1]
	require.NoError(t, h.HandleAdvanceLiquidated(ctx, evt))

	require.Len(t, notifier.liquidated, 1)
	assert.True(t, notifier.liquidated[0].Liquidated)
	assert.True(t, notifier.balances[0].Get("PEN").Balance.Equal(dec("750")))
}

func TestNotificationHandler_CashMovementReversed(t *testing.T) {
	f := newFixture()
	notifier := &mockNotifier{}
	h := NewNotificationHandler(f.advanceSvc, f.treasury, notifier, &mockLogger{})
	ctx := context.Background()
	cm := registerPending(t, f, "80")
	_, err := f.treasury.Approve(ctx, cm.ID, 7)
	require.NoError(t, err)
	res, err := f.treasury.Revert(ctx, cm.ID, 7, "typo")
	require.NoError(t, err)

	evt := f.publisher.events[len(f.publisher.events)-1]
	require.Equal(t, event.TypeCashMovementReversed, evt.Type)
	require.NoError(t, h.HandleCashMovementReversed(ctx, evt))

	require.Len(t, notifier.reversals, 1)
	assert.Equal(t, cm.ID, notifier.reversals[0][0].ID)
	assert.Equal(t, res.Reversal.ID, notifier.reversals[0][1].ID)
}

func TestNotificationHandler_Failures(t *testing.T) {
	f := newFixture()
	notifier := &mockNotifier{err: errors.New("lark down")}
	h := NewNotificationHandler(f.advanceSvc, f.treasury, notifier, &mockLogger{})
	ctx := context.Background()

	err := h.HandleAdvanceLiquidated(ctx, event.NewEvent(event.TypeAdvanceLiquidated, 404, 404, 1, nil))
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	cm := registerPending(t, f, "80")
	err = h.HandleCashMovementReversed(ctx, event.NewEvent(event.TypeCashMovementReversed, 0, cm.ID, 1, nil))
	assert.Error(t, err, "a record without a reversal link is rejected")

	advance, _ := seedAdvance(t, f, "10")
	err = h.HandleAdvanceLiquidated(ctx, event.NewEvent(event.TypeAdvanceLiquidated, advance.ID, advance.ID, 1, nil))
	assert.EqualError(t, err, "lark down")
}

func TestEventLogHandler(t *testing.T) {
	handler := EventLogHandler(&mockLogger{})

	assert.NoError(t, handler(context.Background(), event.NewEvent(event.TypeMovementCreated, 1, 2, 3, nil)))
}
