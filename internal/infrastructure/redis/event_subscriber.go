package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

var _ domain.EventSubscriber = (*RedisEventSubscriber)(nil)

func NewRedisEventSubscriber(client *redis.Client, channel string, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// SubscribeToMutations blocks, handing every decoded event to handler until ctx ends.
// Undecodable payloads and handler errors are logged and skipped.
func (r *RedisEventSubscriber) SubscribeToMutations(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()

	r.log.Info("Subscribed to mutation events", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.log.Warn("Mutation channel closed", "channel", r.channel)
				return nil
			}

			event, err := parseEventData(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(ctx, event); err != nil {
				r.log.Error("Failed to handle event", "type", event.Type, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func parseEventData(payload string) (*domain.MutationEvent, error) {
	var event domain.MutationEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: missing type", domain.ErrInvalidMutation)
	}
	return &event, nil
}
