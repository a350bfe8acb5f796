package service

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/event"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedAdvance opens an advance funded by one PEN assignment
func seedAdvance(t *testing.T, f *fixture, assigned string) (*entity.Advance, *entity.Movement) {
	t.Helper()
	ctx := context.Background()
	advance, err := f.advanceSvc.CreateAdvance(ctx, CreateAdvanceInput{SeasonID: 2024, ResponsiblePersonID: 7, CostCenterID: 3}, 42)
	require.NoError(t, err)
	res, err := f.movementSvc.CreateMovement(ctx, advance.ID, assignmentDraft(assigned), 42)
	require.NoError(t, err)
	return advance, res.Movement
}

func TestMovementService_SimpleRoundTrip(t *testing.T) {
	f := newFixture()
	advance, assignment := seedAdvance(t, f, "1000")

	res, err := f.movementSvc.CreateMovement(context.Background(), advance.ID, expenseDraft(assignment.ID, "300"), 42)
	require.NoError(t, err)

	pen := res.Balance.Get("PEN")
	assert.True(t, pen.TotalAssigned.Equal(dec("1000")))
	assert.True(t, pen.TotalSpent.Equal(dec("300")))
	assert.True(t, pen.Balance.Equal(dec("700")))
	assert.NotZero(t, res.Movement.ID)
	assert.Equal(t, int64(1), res.Movement.Version)
	assert.False(t, res.Movement.CreatedAt.IsZero())
}

func TestMovementService_CreateAssignment_ForcesInclusion(t *testing.T) {
	f := newFixture()
	advance, _ := seedAdvance(t, f, "1000")

	draft := assignmentDraft("250")
	draft.Kind = entity.KindAssignmentAdditional
	draft.IncludedInAdvanceCalculation = false

	res, err := f.movementSvc.CreateMovement(context.Background(), advance.ID, draft, 42)
	require.NoError(t, err)

	assert.True(t, res.Movement.IncludedInAdvanceCalculation)
	assert.True(t, res.Balance.Get("PEN").Balance.Equal(dec("1250")))
	assert.Equal(t, advance.ResponsiblePersonID, res.Movement.ResponsiblePersonID)
}

func TestMovementService_OverSpendRejected(t *testing.T) {
	f := newFixture()
	advance, assignment := seedAdvance(t, f, "1000")
	ctx := context.Background()
	_, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
	require.NoError(t, err)
	before := len(f.ledger.movements)

	_, err = f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "800"), 42)

	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrExceedsBalance)
	assert.Contains(t, err.Error(), "700.00 PEN")
	assert.Len(t, f.ledger.movements, before)

	balance, err := f.advanceSvc.GetBalance(ctx, advance.ID)
	require.NoError(t, err)
	assert.True(t, balance.Get("PEN").Balance.Equal(dec("700")))
}

func TestMovementService_CreateValidation(t *testing.T) {
	f := newFixture()
	advance, assignment := seedAdvance(t, f, "1000")
	ctx := context.Background()

	tests := []struct {
		name    string
		draft   func() *entity.Movement
		wantErr error
	}{
		{
			name:    "zero amount",
			draft:   func() *entity.Movement { d := expenseDraft(assignment.ID, "0"); return d },
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name: "included expense without source",
			draft: func() *entity.Movement {
				d := expenseDraft(assignment.ID, "10")
				d.Expense = nil
				return d
			},
			wantErr: ledger.ErrMissingCounterparty,
		},
		{
			name: "invoice without correlative",
			draft: func() *entity.Movement {
				d := expenseDraft(assignment.ID, "10")
				d.HasNoInvoice = false
				d.Invoice = &entity.InvoiceDocument{DocumentTypeID: 1, Series: "F001"}
				return d
			},
			wantErr: ledger.ErrMissingDocument,
		},
		{
			name: "reparenting through the body",
			draft: func() *entity.Movement {
				d := expenseDraft(assignment.ID, "10")
				d.AdvanceID = advance.ID + 100
				return d
			},
			wantErr: ledger.ErrImmutableField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.movementSvc.CreateMovement(ctx, advance.ID, tt.draft(), 42)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMovementService_CreateOnMissingAdvance(t *testing.T) {
	f := newFixture()

	_, err := f.movementSvc.CreateMovement(context.Background(), 404, assignmentDraft("10"), 42)

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestMovementService_UpdateMovement(t *testing.T) {
	f := newFixture()
	advance, assignment := seedAdvance(t, f, "1000")
	ctx := context.Background()
	created, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
	require.NoError(t, err)

	amount := dec("450")
	desc := "  fuel  "
	res, err := f.movementSvc.UpdateMovement(ctx, created.Movement.ID, created.Movement.Version,
		&entity.MovementPatch{Amount: &amount, Description: &desc}, 42)
	require.NoError(t, err)

	assert.True(t, res.Movement.Amount.Equal(dec("450")))
	assert.Equal(t, "fuel", res.Movement.Description)
	assert.Equal(t, created.Movement.Version+1, res.Movement.Version)
	assert.True(t, res.Balance.Get("PEN").Balance.Equal(dec("550")))
	assert.Contains(t, f.publisher.types(), event.TypeMovementUpdated)

	last := f.ledger.history[len(f.ledger.history)-1]
	assert.Equal(t, entity.ActionUpdate, last.Action)
	assert.Contains(t, last.PreviousState, "300.00 PEN")
	assert.Contains(t, last.NewState, "450.00 PEN")
}

func TestMovementService_UpdateMovement_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("stale version", func(t *testing.T) {
		f := newFixture()
		advance, assignment := seedAdvance(t, f, "1000")
		created, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
		require.NoError(t, err)

		amount := dec("10")
		_, err = f.movementSvc.UpdateMovement(ctx, created.Movement.ID, created.Movement.Version+5, &entity.MovementPatch{Amount: &amount}, 42)
		assert.ErrorIs(t, err, ledger.ErrVersionConflict)
	})

	t.Run("over-spend through update", func(t *testing.T) {
		f := newFixture()
		advance, assignment := seedAdvance(t, f, "1000")
		created, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
		require.NoError(t, err)

		amount := dec("1000.01")
		_, err = f.movementSvc.UpdateMovement(ctx, created.Movement.ID, 0, &entity.MovementPatch{Amount: &amount}, 42)
		assert.ErrorIs(t, err, ledger.ErrExceedsBalance)
		stored := f.ledger.movements[created.Movement.ID]
		assert.True(t, stored.Amount.Equal(dec("300")))
	})

	t.Run("validated movement", func(t *testing.T) {
		f := newFixture()
		advance, assignment := seedAdvance(t, f, "1000")
		created, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
		require.NoError(t, err)
		f.ledger.movements[created.Movement.ID].TreasuryValidated = true

		desc := "late edit"
		_, err = f.movementSvc.UpdateMovement(ctx, created.Movement.ID, 0, &entity.MovementPatch{Description: &desc}, 42)
		assert.ErrorIs(t, err, ledger.ErrMovementValidated)
	})

	t.Run("assignment turned into expense while funding others", func(t *testing.T) {
		f := newFixture()
		advance, assignment := seedAdvance(t, f, "1000")
		_, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
		require.NoError(t, err)

		kind := entity.KindExpense
		_, err = f.movementSvc.UpdateMovement(ctx, assignment.ID, 0, &entity.MovementPatch{Kind: &kind}, 42)
		require.Error(t, err)
		assert.True(t, ledger.IsDomainError(err))
	})

	t.Run("reparenting", func(t *testing.T) {
		f := newFixture()
		advance, assignment := seedAdvance(t, f, "1000")
		other, err := f.advanceSvc.CreateAdvance(ctx, CreateAdvanceInput{SeasonID: 2024, ResponsiblePersonID: 8}, 42)
		require.NoError(t, err)

		_, err = f.movementSvc.UpdateMovement(ctx, assignment.ID, 0, &entity.MovementPatch{AdvanceID: &other.ID}, 42)
		assert.ErrorIs(t, err, ledger.ErrImmutableField)
		assert.Equal(t, advance.ID, f.ledger.movements[assignment.ID].AdvanceID)
	})

	t.Run("missing movement", func(t *testing.T) {
		f := newFixture()
		desc := "x"
		_, err := f.movementSvc.UpdateMovement(ctx, 404, 0, &entity.MovementPatch{Description: &desc}, 42)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})
}

func TestMovementService_DeleteMovement(t *testing.T) {
	f := newFixture()
	advance, assignment := seedAdvance(t, f, "1000")
	ctx := context.Background()
	created, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
	require.NoError(t, err)

	_, err = f.movementSvc.DeleteMovement(ctx, assignment.ID, 0, 42)
	assert.ErrorIs(t, err, ledger.ErrAssignmentInUse)

	balance, err := f.movementSvc.DeleteMovement(ctx, created.Movement.ID, created.Movement.Version, 42)
	require.NoError(t, err)
	assert.True(t, balance.Get("PEN").Balance.Equal(dec("1000")))
	assert.NotContains(t, f.ledger.movements, created.Movement.ID)

	_, err = f.movementSvc.DeleteMovement(ctx, assignment.ID, 0, 42)
	require.NoError(t, err)
	assert.Empty(t, f.ledger.movements)
	assert.Contains(t, f.publisher.types(), event.TypeMovementDeleted)
}

func TestMovementService_AttachDocuments(t *testing.T) {
	f := newFixture()
	advance, assignment := seedAdvance(t, f, "1000")
	ctx := context.Background()
	created, err := f.movementSvc.CreateMovement(ctx, advance.ID, expenseDraft(assignment.ID, "300"), 42)
	require.NoError(t, err)

	var gotModule string
	f.documents.storeFunc = func(ctx context.Context, module string, entityID int64, files []port.DocumentFile) (string, error) {
		gotModule = module
		return "https://files.example.com/doc.pdf", nil
	}
	files := []port.DocumentFile{{Name: "receipt.pdf", Content: []byte("%PDF-1.4")}}

	res, err := f.movementSvc.AttachDocuments(ctx, created.Movement.ID, SlotReceipt, files, 42)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/doc.pdf", res.Movement.ReceiptURL)
	assert.Equal(t, "advance-movements/receipt", gotModule)

	_, err = f.movementSvc.AttachDocuments(ctx, created.Movement.ID, "selfie", files, 42)
	assert.ErrorIs(t, err, ledger.ErrInvalidField)

	_, err = f.movementSvc.AttachDocuments(ctx, created.Movement.ID, SlotReceipt, nil, 42)
	assert.ErrorIs(t, err, ledger.ErrMissingDocument)

	f.documents.storeFunc = func(ctx context.Context, module string, entityID int64, files []port.DocumentFile) (string, error) {
		return "", errors.New("disk full")
	}
	_, err = f.movementSvc.AttachDocuments(ctx, created.Movement.ID, SlotOperationReceipt, files, 42)
	require.Error(t, err)
	assert.False(t, ledger.IsDomainError(err))
}
