package service

import (
	"context"
	"sort"

	"github.com/garyjia/cash-advance/internal/application/port"
	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/event"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// memLedger is an in-memory stand-in for the SQLite tables. The mock
// transaction manager snapshots it and restores the snapshot on error.
type memLedger struct {
	advances  map[int64]*entity.Advance
	movements map[int64]*entity.Movement
	cash      map[int64]*entity.CashMovement
	history   []*entity.LedgerHistory
	nextID    int64
}

func newMemLedger() *memLedger {
	return &memLedger{
		advances:  map[int64]*entity.Advance{},
		movements: map[int64]*entity.Movement{},
		cash:      map[int64]*entity.CashMovement{},
	}
}

func (l *memLedger) id() int64 {
	l.nextID++
	return l.nextID
}

func (l *memLedger) snapshot() *memLedger {
	s := newMemLedger()
	s.nextID = l.nextID
	for k, v := range l.advances {
		s.advances[k] = v.Clone()
	}
	for k, v := range l.movements {
		s.movements[k] = v.Clone()
	}
	for k, v := range l.cash {
		c := *v
		s.cash[k] = &c
	}
	s.history = append(s.history, l.history...)
	return s
}

func (l *memLedger) restore(s *memLedger) {
	l.advances, l.movements, l.cash, l.history, l.nextID = s.advances, s.movements, s.cash, s.history, s.nextID
}

type mockTxManager struct {
	ledger *memLedger
	calls  int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	snap := m.ledger.snapshot()
	if err := fn(ctx); err != nil {
		m.ledger.restore(snap)
		return err
	}
	return nil
}

type mockAdvanceRepo struct {
	ledger *memLedger
}

func (r *mockAdvanceRepo) Create(ctx context.Context, advance *entity.Advance) error {
	advance.ID = r.ledger.id()
	advance.Version = 1
	r.ledger.advances[advance.ID] = advance.Clone()
	return nil
}

func (r *mockAdvanceRepo) GetByID(ctx context.Context, id int64) (*entity.Advance, error) {
	if a, ok := r.ledger.advances[id]; ok {
		return a.Clone(), nil
	}
	return nil, nil
}

func (r *mockAdvanceRepo) GetOpenBySeasonAndPerson(ctx context.Context, seasonID, personID int64) (*entity.Advance, error) {
	for _, a := range r.ledger.advances {
		if a.SeasonID == seasonID && a.ResponsiblePersonID == personID && !a.Liquidated {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (r *mockAdvanceRepo) List(ctx context.Context, filter entity.AdvanceFilter) ([]*entity.Advance, error) {
	var out []*entity.Advance
	for _, a := range r.ledger.advances {
		if filter.SeasonID != nil && a.SeasonID != *filter.SeasonID {
			continue
		}
		if filter.Liquidated != nil && a.Liquidated != *filter.Liquidated {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockAdvanceRepo) MarkLiquidated(ctx context.Context, advance *entity.Advance) error {
	stored, ok := r.ledger.advances[advance.ID]
	if !ok || stored.Version != advance.Version {
		return ledger.ErrVersionConflict
	}
	advance.Version++
	r.ledger.advances[advance.ID] = advance.Clone()
	return nil
}

type mockMovementRepo struct {
	ledger            *memLedger
	markValidatedFunc func(m *entity.Movement) error
}

func (r *mockMovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	m.ID = r.ledger.id()
	m.Version = 1
	r.ledger.movements[m.ID] = m.Clone()
	return nil
}

func (r *mockMovementRepo) GetByID(ctx context.Context, id int64) (*entity.Movement, error) {
	if m, ok := r.ledger.movements[id]; ok {
		return m.Clone(), nil
	}
	return nil, nil
}

func (r *mockMovementRepo) ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.Movement, error) {
	var out []*entity.Movement
	for _, m := range r.ledger.movements {
		if m.AdvanceID == advanceID {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockMovementRepo) Update(ctx context.Context, m *entity.Movement) error {
	stored, ok := r.ledger.movements[m.ID]
	if !ok || stored.Version != m.Version {
		return ledger.ErrVersionConflict
	}
	m.Version++
	r.ledger.movements[m.ID] = m.Clone()
	return nil
}

func (r *mockMovementRepo) MarkValidated(ctx context.Context, m *entity.Movement) error {
	if r.markValidatedFunc != nil {
		if err := r.markValidatedFunc(m); err != nil {
			return err
		}
	}
	stored, ok := r.ledger.movements[m.ID]
	if !ok {
		return ledger.NotFound("movement", m.ID)
	}
	stored.TreasuryValidated = m.TreasuryValidated
	stored.TreasuryValidationDate = m.TreasuryValidationDate
	stored.Version++
	return nil
}

func (r *mockMovementRepo) Delete(ctx context.Context, id int64) error {
	delete(r.ledger.movements, id)
	return nil
}

type mockCashRepo struct {
	ledger *memLedger
}

func (r *mockCashRepo) Create(ctx context.Context, cm *entity.CashMovement) error {
	cm.ID = r.ledger.id()
	c := *cm
	r.ledger.cash[cm.ID] = &c
	return nil
}

func (r *mockCashRepo) GetByID(ctx context.Context, id int64) (*entity.CashMovement, error) {
	if cm, ok := r.ledger.cash[id]; ok {
		c := *cm
		return &c, nil
	}
	return nil, nil
}

func (r *mockCashRepo) ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.CashMovement, error) {
	var out []*entity.CashMovement
	for _, cm := range r.ledger.cash {
		if cm.AdvanceID != nil && *cm.AdvanceID == advanceID {
			c := *cm
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockCashRepo) UpdateDecision(ctx context.Context, cm *entity.CashMovement) error {
	if _, ok := r.ledger.cash[cm.ID]; !ok {
		return ledger.NotFound("cash_movement", cm.ID)
	}
	c := *cm
	r.ledger.cash[cm.ID] = &c
	return nil
}

type mockHistoryRepo struct {
	ledger *memLedger
}

func (r *mockHistoryRepo) Create(ctx context.Context, h *entity.LedgerHistory) error {
	h.ID = int64(len(r.ledger.history) + 1)
	r.ledger.history = append(r.ledger.history, h)
	return nil
}

func (r *mockHistoryRepo) ListByAdvance(ctx context.Context, advanceID int64) ([]*entity.LedgerHistory, error) {
	var out []*entity.LedgerHistory
	for _, h := range r.ledger.history {
		if h.AdvanceID != nil && *h.AdvanceID == advanceID {
			out = append(out, h)
		}
	}
	return out, nil
}

type mockPublisher struct {
	events []*event.Event
}

func (p *mockPublisher) Publish(ctx context.Context, evt *event.Event) error {
	p.events = append(p.events, evt)
	return nil
}

func (p *mockPublisher) types() []event.Type {
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type mockDocumentStore struct {
	storeFunc func(ctx context.Context, module string, entityID int64, files []port.DocumentFile) (string, error)
}

func (m *mockDocumentStore) Store(ctx context.Context, module string, entityID int64, files []port.DocumentFile) (string, error) {
	if m.storeFunc != nil {
		return m.storeFunc(ctx, module, entityID, files)
	}
	return "https://files.example.com/" + module, nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// fixture wires every service to one in-memory ledger
type fixture struct {
	ledger      *memLedger
	tx          *mockTxManager
	advances    *mockAdvanceRepo
	movements   *mockMovementRepo
	cash        *mockCashRepo
	history     *mockHistoryRepo
	publisher   *mockPublisher
	documents   *mockDocumentStore
	advanceSvc  AdvanceService
	movementSvc MovementService
	liquidation LiquidationService
	treasury    TreasuryService
}

func newFixture() *fixture {
	l := newMemLedger()
	f := &fixture{
		ledger:    l,
		tx:        &mockTxManager{ledger: l},
		advances:  &mockAdvanceRepo{ledger: l},
		movements: &mockMovementRepo{ledger: l},
		cash:      &mockCashRepo{ledger: l},
		history:   &mockHistoryRepo{ledger: l},
		publisher: &mockPublisher{},
		documents: &mockDocumentStore{},
	}
	logger := &mockLogger{}
	f.advanceSvc = NewAdvanceService(f.advances, f.movements, f.history, f.tx, f.publisher, "PEN", logger)
	f.movementSvc = NewMovementService(f.advances, f.movements, f.history, f.tx, f.documents, f.publisher, ledger.DefaultPolicy(), logger)
	f.liquidation = NewLiquidationService(f.advances, f.movements, f.history, f.tx, f.publisher, logger)
	f.treasury = NewTreasuryService(f.cash, f.advances, f.movements, f.history, f.tx, f.publisher, logger)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assignmentDraft(amount string) *entity.Movement {
	return &entity.Movement{
		Kind:         entity.KindAssignmentInitial,
		Amount:       dec(amount),
		Currency:     "PEN",
		HasNoInvoice: true,
	}
}

func expenseDraft(sourceID int64, amount string) *entity.Movement {
	return &entity.Movement{
		Kind:                         entity.KindExpense,
		Amount:                       dec(amount),
		Currency:                     "PEN",
		Expense:                      &entity.ExpenseDetail{SourceAssignmentID: &sourceID},
		IncludedInAdvanceCalculation: true,
		HasNoInvoice:                 true,
	}
}
