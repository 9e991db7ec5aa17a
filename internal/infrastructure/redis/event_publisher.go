package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"ticketing-realtime/internal/domain"

	"github.com/go-redis/redis/v8"
)

type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

var _ domain.EventPublisher = (*EventPublisherImpl)(nil)

func NewEventPublisher(client *redis.Client, channel string) *EventPublisherImpl {
	return &EventPublisherImpl{client: client, channel: channel}
}

// PublishMutation validates and publishes the event as JSON on the mutation channel.
func (r *EventPublisherImpl) PublishMutation(ctx context.Context, event *domain.MutationEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode mutation: %w", err)
	}

	return r.client.Publish(ctx, r.channel, eventData).Err()
}
