package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/domain"
)

const defaultEventChannel = "quiz:session-events"

// envelope is what travels over pub/sub. Payloads stay raw JSON on the receiving side.
type envelope struct {
	Type      domain.EventType `json:"type"`
	SessionID string           `json:"sessionId"`
	Exclude   string           `json:"exclude,omitempty"`
	Payload   json.RawMessage  `json:"payload"`
}

// EventBus fans session events out to every instance through Redis pub/sub.
// Each instance, including the publisher, hands received events to its local broadcaster.
type EventBus struct {
	client  *redis.Client
	local   app.Broadcaster
	channel string
	log     zerolog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewEventBus(client *redis.Client, local app.Broadcaster, channel string, log zerolog.Logger) *EventBus {
	if channel == "" {
		channel = defaultEventChannel
	}
	return &EventBus{client: client, local: local, channel: channel, log: log}
}

func (b *EventBus) Broadcast(ctx context.Context, sessionID string, event domain.Event) {
	b.publish(ctx, sessionID, "", event)
}

func (b *EventBus) BroadcastOthers(ctx context.Context, sessionID, excludeObserverID string, event domain.Event) {
	b.publish(ctx, sessionID, excludeObserverID, event)
}

func (b *EventBus) publish(ctx context.Context, sessionID, exclude string, event domain.Event) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		b.log.Error().Err(err).Str("session_id", sessionID).Str("event", string(event.Type)).Msg("encode event")
		return
	}
	msg, err := json.Marshal(envelope{Type: event.Type, SessionID: sessionID, Exclude: exclude, Payload: payload})
	if err != nil {
		b.log.Error().Err(err).Msg("encode envelope")
		return
	}
	// publish is fire-and-forget for the engine; a failure is reported, not retried
	if err := b.client.Publish(context.WithoutCancel(ctx), b.channel, msg).Err(); err != nil {
		b.log.Error().Err(err).Str("session_id", sessionID).Str("event", string(event.Type)).Msg("publish event")
	}
}

// Start subscribes and forwards events to the local broadcaster until ctx is done.
// It returns once the subscription is confirmed.
func (b *EventBus) Start(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	b.mu.Lock()
	b.pubsub = pubsub
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = b.Close()
	}()
	go b.forward(pubsub.Channel())
	return nil
}

func (b *EventBus) forward(messages <-chan *redis.Message) {
	for msg := range messages {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.log.Warn().Err(err).Msg("drop malformed event")
			continue
		}
		event := domain.Event{Type: env.Type, SessionID: env.SessionID, Payload: env.Payload}
		ctx := context.Background()
		if env.Exclude != "" {
			b.local.BroadcastOthers(ctx, env.SessionID, env.Exclude, event)
			continue
		}
		b.local.Broadcast(ctx, env.SessionID, event)
	}
}

// Close stops the subscription.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	b.pubsub = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
