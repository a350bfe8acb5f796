package port

import (
	"context"
	"io"

	"github.com/garyjia/cash-advance/internal/domain/entity"
	"github.com/garyjia/cash-advance/internal/domain/event"
	"github.com/garyjia/cash-advance/internal/domain/ledger"
)

// EventPublisher hands committed domain events to their subscribers
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// DocumentFile is one file handed to the document store
type DocumentFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// DocumentStore consolidates uploaded files for an entity and returns the
// URL of the resulting document. The ledger never inspects the content.
type DocumentStore interface {
	Store(ctx context.Context, moduleName string, entityID int64, files []DocumentFile) (string, error)
}

// TreasuryNotifier delivers ledger notices to the treasury team
type TreasuryNotifier interface {
	NotifyLiquidation(ctx context.Context, advance *entity.Advance, balance ledger.BalanceByCurrency) error
	NotifyReversal(ctx context.Context, original, reversal *entity.CashMovement) error
}

// Statement is the data rendered into a liquidation statement
type Statement struct {
	Advance   *entity.Advance
	Movements []*entity.Movement
	Balance   ledger.BalanceByCurrency
	Crew      ledger.BalanceByCurrency
	Drawdown  []ledger.AssignmentDrawdown
}

// StatementWriter renders a statement into a document
type StatementWriter interface {
	Write(ctx context.Context, statement *Statement, w io.Writer) error
}
