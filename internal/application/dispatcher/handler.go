package dispatcher

import (
	"context"

	"github.com/garyjia/cash-advance/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// Mode selects how a handler is run when an event is published
type Mode int

const (
	// Sync handlers run in registration order on the publishing goroutine
	Sync Mode = iota
	// Async handlers run on their own goroutine after the sync handlers
	Async
)

// String returns a readable mode name for logs
func (m Mode) String() string {
	if m == Async {
		return "async"
	}
	return "sync"
}

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Mode      Mode
	Handler   Handler
}
