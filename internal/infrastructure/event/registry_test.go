package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register_SpecificTypes(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := newTestHandler("DeclarationStatusChanged", "PaymentConfirmed")

	registry.Register(handler, handler.EventTypes()...)

	assert.Len(t, registry.GetHandlers("DeclarationStatusChanged"), 1)
	assert.Len(t, registry.GetHandlers("PaymentConfirmed"), 1)
	assert.Empty(t, registry.GetHandlers("Unknown"))
	assert.Equal(t, 1, registry.Count())
}

func TestHandlerRegistry_Register_Wildcard(t *testing.T) {
	registry := NewHandlerRegistry()
	typed := newTestHandler("PaymentConfirmed")
	wildcard := newTestHandler()

	registry.Register(typed, "PaymentConfirmed")
	registry.Register(wildcard)

	handlers := registry.GetHandlers("PaymentConfirmed")
	assert.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0])
	assert.Same(t, wildcard, handlers[1])
	assert.Len(t, registry.GetHandlers("Anything"), 1)
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	keep := newTestHandler("PaymentConfirmed")
	drop := newTestHandler("PaymentConfirmed")
	wildcard := newTestHandler()

	registry.Register(keep, "PaymentConfirmed")
	registry.Register(drop, "PaymentConfirmed")
	registry.Register(wildcard)

	registry.Unregister(drop)
	registry.Unregister(wildcard)

	handlers := registry.GetHandlers("PaymentConfirmed")
	assert.Len(t, handlers, 1)
	assert.Same(t, keep, handlers[0])
	assert.Equal(t, 1, registry.Count())
}
