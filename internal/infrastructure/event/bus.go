package event

import (
	"context"
	"sync"

	"github.com/kekhai/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus fans committed domain events out to subscribers.
// Handlers run on their own goroutines; Publish never waits for them and
// never reports their failures back to the caller.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	wg       sync.WaitGroup

	// mu orders wg.Add in Publish before the wg.Wait in Stop
	mu      sync.RWMutex
	running bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event-bus"),
	}
}

// Publish hands every event to the handlers registered for its type.
// Events published while the bus is stopped are dropped.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running {
		for _, event := range events {
			b.logger.Debug("bus stopped, dropping event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
			)
		}
		return nil
	}

	detached := context.WithoutCancel(ctx)
	for _, event := range events {
		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			b.wg.Add(1)
			go func(h shared.EventHandler, e shared.DomainEvent) {
				defer b.wg.Done()
				b.dispatchToHandler(detached, h, e)
			}(handler, event)
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start starts accepting events
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()
	b.logger.Info("event bus started", zap.Int("handlers", b.registry.Count()))
	return nil
}

// Stop stops accepting events and waits for in-flight handlers or ctx expiry
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus stop timed out with handlers still running")
		return ctx.Err()
	}
}

// dispatchToHandler runs one handler, containing its errors and panics
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		b.logger.Error("handler failed to process event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.String("aggregate_id", event.AggregateID().String()),
			zap.Error(err),
		)
	}
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
