package event

import (
	"github.com/kekhai/backend/internal/domain/declaration"
)

// RegisterDeclarationEvents registers the declaration event types with the serializer
// so relay subscribers can decode them.
func RegisterDeclarationEvents(serializer *EventSerializer) {
	serializer.Register(declaration.EventTypeDeclarationStatusChanged, &declaration.DeclarationStatusChangedEvent{})
	serializer.Register(declaration.EventTypePaymentConfirmed, &declaration.PaymentConfirmedEvent{})
}
