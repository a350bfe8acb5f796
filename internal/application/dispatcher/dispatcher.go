package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/cash-advance/internal/domain/event"
)

// ErrClosed is returned when publishing on a closed dispatcher
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes ledger events to registered handlers.
// Events are published after the originating transaction commits, so a
// failing handler never rolls back a ledger mutation.
type Dispatcher interface {
	// Subscribe registers a named handler for one event type
	Subscribe(eventType event.Type, name string, mode Mode, handler Handler)

	// SubscribeAll registers a named handler for every event type
	SubscribeAll(name string, mode Mode, handler Handler)

	// Unsubscribe removes a handler by name
	Unsubscribe(eventType event.Type, name string)

	// Publish runs the sync handlers in order, then starts the async ones.
	// The returned error joins every sync handler failure.
	Publish(ctx context.Context, evt *event.Event) error

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close stops accepting events and waits for async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	wildcard []HandlerInfo
	logger   Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, mode Mode, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Mode:      mode,
		Handler:   handler,
	})
	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name, "mode", mode)
}

func (d *eventDispatcher) SubscribeAll(name string, mode Mode, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.wildcard = append(d.wildcard, HandlerInfo{Name: name, Mode: mode, Handler: handler})
	d.logInfo("Handler registered for all events", "handler_name", name, "mode", mode)
}

func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers := d.handlers[eventType]
	filtered := make([]HandlerInfo, 0, len(handlers))
	for _, h := range handlers {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	d.handlers[eventType] = filtered
}

func (d *eventDispatcher) Publish(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		d.logError("Event dropped, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return ErrClosed
	}

	d.mu.RLock()
	targets := make([]HandlerInfo, 0, len(d.wildcard)+len(d.handlers[evt.Type]))
	targets = append(targets, d.wildcard...)
	targets = append(targets, d.handlers[evt.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, info := range targets {
		if info.Mode != Sync {
			continue
		}
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logError("Handler error", "event_type", evt.Type, "event_id", evt.ID, "handler_name", info.Name, "error", err)
			errs = append(errs, fmt.Errorf("handler %s: %w", info.Name, err))
		}
	}

	// async handlers outlive the request that published the event
	asyncCtx := context.WithoutCancel(ctx)
	for _, info := range targets {
		if info.Mode != Async {
			continue
		}
		d.wg.Add(1)
		go func(h HandlerInfo) {
			defer d.wg.Done()
			if err := d.safeExecute(asyncCtx, evt, h); err != nil {
				d.logError("Async handler error", "event_type", evt.Type, "event_id", evt.ID, "handler_name", h.Name, "error", err)
			}
		}(info)
	}

	return errors.Join(errs...)
}

func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]HandlerInfo, 0, len(d.wildcard)+len(d.handlers[eventType]))
	for _, h := range append(append([]HandlerInfo{}, d.wildcard...), d.handlers[eventType]...) {
		result = append(result, HandlerInfo{Name: h.Name, EventType: eventType, Mode: h.Mode})
	}
	return result
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}
	d.logInfo("Closing dispatcher, waiting for async handlers")
	d.wg.Wait()
	d.logInfo("Dispatcher closed")
	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logError("Handler panic recovered", "event_type", evt.Type, "event_id", evt.ID, "handler_name", info.Name, "panic", r)
		}
	}()
	return info.Handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
