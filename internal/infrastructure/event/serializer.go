package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kekhai/backend/internal/domain/shared"
)

// Envelope is the wire form of a domain event on external channels
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSerializer handles JSON serialization/deserialization of domain events
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type // eventType -> Go type
}

// NewEventSerializer creates a new event serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{
		registry: make(map[string]reflect.Type),
	}
}

// Register registers an event type for deserialization
// The eventType should match what EventType() returns on the event
func (s *EventSerializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// Serialize wraps a domain event in an Envelope and encodes it
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return json.Marshal(Envelope{
		ID:            event.EventID(),
		Type:          event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
	})
}

// Deserialize decodes an Envelope back into its registered event type
func (s *EventSerializer) Deserialize(data []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	s.mu.RLock()
	t, ok := s.registry[env.Type]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.Type)
	}

	eventPtr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Payload, eventPtr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	event, ok := eventPtr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("deserialized object does not implement DomainEvent")
	}

	return event, nil
}

// IsRegistered checks if an event type is registered
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// RegisteredTypes returns all registered event types, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
