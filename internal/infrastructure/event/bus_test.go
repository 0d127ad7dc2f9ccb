package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New()),
		Data:            "test data",
	}
}

// testHandler implements EventHandler for testing
type testHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panics     bool
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{
		eventTypes: eventTypes,
		handled:    make([]shared.DomainEvent, 0),
	}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, event)
	panics, err := h.panics, h.err
	h.mu.Unlock()
	if panics {
		panic("handler exploded")
	}
	return err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func startedBus(t *testing.T) *InMemoryEventBus {
	t.Helper()
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	return bus
}

// drain waits for every dispatched handler to finish
func drain(t *testing.T, bus *InMemoryEventBus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := startedBus(t)
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler, "TestEvent")

	event := newTestEvent("TestEvent")
	require.NoError(t, bus.Publish(context.Background(), event))
	drain(t, bus)

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, event, handler.getHandled()[0])
}

func TestInMemoryEventBus_Publish_MultipleHandlers(t *testing.T) {
	bus := startedBus(t)
	first := newTestHandler("TestEvent")
	second := newTestHandler("TestEvent")
	other := newTestHandler("OtherEvent")
	bus.Subscribe(first)
	bus.Subscribe(second)
	bus.Subscribe(other)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("TestEvent"), newTestEvent("TestEvent")))
	drain(t, bus)

	assert.Len(t, first.getHandled(), 2)
	assert.Len(t, second.getHandled(), 2)
	assert.Empty(t, other.getHandled())
}

func TestInMemoryEventBus_Publish_WildcardHandler(t *testing.T) {
	bus := startedBus(t)
	handler := newTestHandler()
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A"), newTestEvent("B")))
	drain(t, bus)

	assert.Len(t, handler.getHandled(), 2)
}

func TestInMemoryEventBus_Publish_HandlerFailuresAreContained(t *testing.T) {
	bus := startedBus(t)
	failing := newTestHandler("TestEvent")
	failing.err = errors.New("smtp down")
	panicking := newTestHandler("TestEvent")
	panicking.panics = true
	healthy := newTestHandler("TestEvent")
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("TestEvent"))
	drain(t, bus)

	assert.NoError(t, err)
	assert.Len(t, healthy.getHandled(), 1)
	assert.Len(t, failing.getHandled(), 1)
}

func TestInMemoryEventBus_Publish_OutlivesRequestContext(t *testing.T) {
	bus := startedBus(t)
	var seen error
	var mu sync.Mutex
	handler := &ctxHandler{fn: func(ctx context.Context) {
		mu.Lock()
		seen = ctx.Err()
		mu.Unlock()
	}}
	bus.Subscribe(handler, "TestEvent")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, newTestEvent("TestEvent")))
	cancel()
	drain(t, bus)

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, seen)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := startedBus(t)
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("TestEvent")))
	drain(t, bus)

	assert.Empty(t, handler.getHandled())
}

func TestInMemoryEventBus_StoppedBusDropsEvents(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("TestEvent")))
	drain(t, bus)
	assert.Empty(t, handler.getHandled())
}

func TestInMemoryEventBus_StopTimesOut(t *testing.T) {
	bus := startedBus(t)
	release := make(chan struct{})
	bus.Subscribe(&ctxHandler{fn: func(context.Context) { <-release }}, "TestEvent")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("TestEvent")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Stop(ctx), context.DeadlineExceeded)

	close(release)
	drain(t, bus)
}

type ctxHandler struct {
	fn func(ctx context.Context)
}

func (h *ctxHandler) Handle(ctx context.Context, _ shared.DomainEvent) error {
	h.fn(ctx)
	return nil
}

func (h *ctxHandler) EventTypes() []string { return nil }

func TestInMemoryEventBus_PublishDuringStop(t *testing.T) {
	for round := 0; round < 50; round++ {
		bus := startedBus(t)
		handler := newTestHandler("TestEvent")
		bus.Subscribe(handler)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					_ = bus.Publish(context.Background(), newTestEvent("TestEvent"))
				}
			}()
		}
		drain(t, bus)
		handledAtStop := len(handler.getHandled())
		wg.Wait()

		// nothing dispatched after Stop returned
		assert.Equal(t, handledAtStop, len(handler.getHandled()))
	}
}
