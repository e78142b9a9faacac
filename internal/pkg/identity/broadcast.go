package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const eventsChannel = "identity:events"

// Broadcaster forwards locally emitted events to other server instances.
type Broadcaster interface {
	Broadcast(ctx context.Context, key string, event Event, session *Session) error
}

type envelope struct {
	Origin   string   `json:"origin"`
	Key      string   `json:"key"`
	Event    Event    `json:"event"`
	Session  *Session `json:"session,omitempty"`
	RawToken string   `json:"raw_token,omitempty"`
}

// RedisBroadcaster publishes events on a Redis channel and replays events from
// other instances into the local hub.
type RedisBroadcaster struct {
	client *redis.Client
	hub    *Hub
	origin string
}

func NewRedisBroadcaster(client *redis.Client, hub *Hub) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, hub: hub, origin: uuid.NewString()}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, key string, event Event, session *Session) error {
	env := envelope{Origin: b.origin, Key: key, Event: event, Session: session}
	if session != nil {
		env.RawToken = session.RawToken
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish auth event: %w", err)
	}
	return nil
}

// Run consumes the channel until ctx is cancelled.
func (b *RedisBroadcaster) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, eventsChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.deliver(msg.Payload)
		}
	}
}

func (b *RedisBroadcaster) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Warnf("[Identity] dropping malformed event: %v", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	if env.Session != nil {
		env.Session.RawToken = env.RawToken
	}
	b.hub.Publish(env.Key, env.Event, env.Session)
}
