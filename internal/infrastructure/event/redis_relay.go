package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kekhai/backend/internal/domain/shared"
	"github.com/kekhai/backend/internal/infrastructure/config"
	"github.com/kekhai/backend/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultRelayChannel = "kekhai:notifications"
	defaultCloseTimeout = 5 * time.Second
)

// RedisPublisher is the slice of the Redis client the relay writes through
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotificationRelay forwards committed declaration events to a Redis
// Pub/Sub channel so notification workers outside this process can react.
type RedisNotificationRelay struct {
	publisher  RedisPublisher
	client     *redis.Client // nil when constructed with a bare publisher
	ownsClient bool
	channel    string
	serializer *EventSerializer
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// RedisNotificationRelayOption is a functional option for configuring the relay
type RedisNotificationRelayOption func(*RedisNotificationRelay)

// WithRelayChannel sets the Pub/Sub channel name
func WithRelayChannel(channel string) RedisNotificationRelayOption {
	return func(r *RedisNotificationRelay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithRelayLogger sets the logger for the relay
func WithRelayLogger(logger *zap.Logger) RedisNotificationRelayOption {
	return func(r *RedisNotificationRelay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedisNotificationRelay connects to Redis and returns a relay that owns the client
func NewRedisNotificationRelay(cfg config.RedisConfig, opts ...RedisNotificationRelayOption) (*RedisNotificationRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	relay := NewRedisNotificationRelayWithClient(client, append([]RedisNotificationRelayOption{WithRelayChannel(cfg.Channel)}, opts...)...)
	relay.ownsClient = true
	return relay, nil
}

// NewRedisNotificationRelayWithClient creates a relay over an existing client.
// The caller keeps ownership of the client.
func NewRedisNotificationRelayWithClient(client *redis.Client, opts ...RedisNotificationRelayOption) *RedisNotificationRelay {
	relay := newRelay(client, opts...)
	relay.client = client
	return relay
}

// NewRedisNotificationRelayWithPublisher creates a publish-only relay
func NewRedisNotificationRelayWithPublisher(publisher RedisPublisher, opts ...RedisNotificationRelayOption) *RedisNotificationRelay {
	return newRelay(publisher, opts...)
}

func newRelay(publisher RedisPublisher, opts ...RedisNotificationRelayOption) *RedisNotificationRelay {
	serializer := NewEventSerializer()
	RegisterDeclarationEvents(serializer)

	relay := &RedisNotificationRelay{
		publisher:  publisher,
		channel:    defaultRelayChannel,
		serializer: serializer,
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(relay)
	}
	return relay
}

// EventTypes returns the declaration events forwarded to Redis
func (r *RedisNotificationRelay) EventTypes() []string {
	return r.serializer.RegisteredTypes()
}

// Handle publishes one event envelope to the channel. Event types the
// serializer does not know are skipped.
func (r *RedisNotificationRelay) Handle(ctx context.Context, event shared.DomainEvent) (err error) {
	if !r.serializer.IsRegistered(event.EventType()) {
		r.logger.Debug("Skipping unregistered notification event",
			zap.String("event_type", event.EventType()))
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "notification.publish",
		telemetry.WithSpanKind(trace.SpanKindProducer),
		telemetry.WithAttribute("messaging.system", "redis"),
		telemetry.WithAttribute("messaging.destination.name", r.channel),
		telemetry.WithAttribute("event_type", event.EventType()),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	data, err := r.serializer.Serialize(event)
	if err != nil {
		r.logger.Error("Failed to serialize notification event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if err := r.publisher.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Error("Failed to publish notification event",
			zap.String("channel", r.channel),
			zap.String("event_type", event.EventType()),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	r.logger.Debug("Published notification event",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("channel", r.channel))
	return nil
}

// Listen subscribes to the channel and invokes callback with each decoded event.
// It blocks until ctx is cancelled or Close is called.
func (r *RedisNotificationRelay) Listen(ctx context.Context, callback func(shared.DomainEvent)) error {
	if r.client == nil {
		return fmt.Errorf("relay has no subscribable client")
	}

	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	r.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	r.cancelFn = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.isRunning = false
		r.mu.Unlock()
		r.markDone()
	}()

	pubsub := r.client.Subscribe(subCtx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	r.logger.Info("Subscribed to notification channel", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			r.logger.Info("Notification subscription stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Notification channel closed")
				return nil
			}

			event, err := r.serializer.Deserialize([]byte(msg.Payload))
			if err != nil {
				r.logger.Error("Failed to decode notification event",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}

			go func(e shared.DomainEvent) {
				defer func() {
					if rec := recover(); rec != nil {
						r.logger.Error("Panic in notification callback", zap.Any("panic", rec))
					}
				}()
				callback(e)
			}(event)
		}
	}
}

func (r *RedisNotificationRelay) markDone() {
	r.doneOnce.Do(func() {
		close(r.doneCh)
	})
}

// Close stops a running Listen and releases an owned client
func (r *RedisNotificationRelay) Close() error {
	r.mu.Lock()
	cancelFn := r.cancelFn
	r.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-r.doneCh:
		case <-time.After(defaultCloseTimeout):
			r.logger.Warn("Timeout waiting for subscription to stop")
		}
	}

	if r.ownsClient && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Channel returns the Pub/Sub channel name
func (r *RedisNotificationRelay) Channel() string {
	return r.channel
}

var _ shared.EventHandler = (*RedisNotificationRelay)(nil)
